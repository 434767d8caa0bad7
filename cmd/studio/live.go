package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/eventlog"
)

// liveSession is a connection kept up until the command's context ends.
type liveSession struct {
	conn      *studio.Connection
	reconnect *studio.Reconnector
	recorder  *eventlog.Recorder
	closers   []func()
}

// startLive connects and reconnects after drops. When recordPath is set
// every event is appended to that file.
func startLive(cmd *cobra.Command, recordPath string) (*liveSession, error) {
	conn, err := openConnection(cmd.Context())
	if err != nil {
		return nil, err
	}
	st := conn.State()
	ls := &liveSession{
		conn:      conn,
		reconnect: studio.NewReconnector(conn.Client(), st.GatewayURL, st.Token, studio.ReconnectConfig{}),
	}

	if recordPath != "" {
		f, err := os.OpenFile(recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			ls.Close()
			return nil, fmt.Errorf("open record file: %w", err)
		}
		ls.recorder = eventlog.NewRecorder(f, nil, nil)
		detach := ls.recorder.Attach(conn.Client())
		ls.closers = append(ls.closers, func() {
			detach()
			if err := ls.recorder.Close(); err != nil {
				slog.Error("flush record file", "path", recordPath, "error", err)
			}
			f.Close()
			slog.Info("recording saved", "path", recordPath, "events", ls.recorder.Count())
		})
	}
	return ls, nil
}

func (ls *liveSession) Client() *studio.Client { return ls.conn.Client() }

// Close stops reconnecting, flushes the recording and disconnects.
func (ls *liveSession) Close() {
	ls.reconnect.Stop()
	for i := len(ls.closers) - 1; i >= 0; i-- {
		ls.closers[i]()
	}
	ls.conn.Close(context.Background())
}
