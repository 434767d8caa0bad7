package studio

import (
	"bytes"
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/grp06/openclaw-studio/frame"
)

// wsConn is one client-side WebSocket. Reads happen on a single goroutine;
// writes (data frames and control replies) are serialized by wmu.
type wsConn struct {
	conn net.Conn
	r    io.Reader
	wmu  sync.Mutex
}

func dial(ctx context.Context, url string, timeout time.Duration) (*wsConn, error) {
	d := ws.Dialer{Timeout: timeout}
	conn, br, _, err := d.Dial(ctx, url)
	if err != nil {
		return nil, err
	}
	c := &wsConn{conn: conn, r: conn}
	if br != nil {
		// Bytes the server sent right after the upgrade response.
		c.r = io.MultiReader(br, conn)
	}
	return c, nil
}

// ReadMessage returns the next text or binary message, answering pings and
// close frames along the way.
func (c *wsConn) ReadMessage() ([]byte, error) {
	control := func(h ws.Header, r io.Reader) error {
		var reply bytes.Buffer
		if err := wsutil.ControlFrameHandler(&reply, ws.StateClientSide)(h, r); err != nil {
			return err
		}
		if reply.Len() == 0 {
			return nil
		}
		c.wmu.Lock()
		defer c.wmu.Unlock()
		_, err := c.conn.Write(reply.Bytes())
		return err
	}
	rd := wsutil.Reader{
		Source:         c.r,
		State:          ws.StateClientSide,
		CheckUTF8:      true,
		MaxFrameSize:   frame.MaxFrameLen,
		OnIntermediate: control,
	}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return nil, err
		}
		if hdr.OpCode.IsControl() {
			if err := control(hdr, &rd); err != nil {
				return nil, err
			}
			continue
		}
		if hdr.OpCode&(ws.OpText|ws.OpBinary) == 0 {
			if err := rd.Discard(); err != nil {
				return nil, err
			}
			continue
		}
		return io.ReadAll(&rd)
	}
}

// WriteMessage sends p as one text message.
func (c *wsConn) WriteMessage(p []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return wsutil.WriteClientText(c.conn, p)
}

// SetReadDeadline bounds the handshake reads.
func (c *wsConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Close sends a normal closure frame, best effort, and closes the socket.
func (c *wsConn) Close() error {
	c.wmu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
	ws.WriteFrame(c.conn, ws.MaskFrameInPlace(ws.NewCloseFrame(body)))
	c.wmu.Unlock()
	return c.conn.Close()
}
