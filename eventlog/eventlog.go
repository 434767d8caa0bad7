// Package eventlog records gateway event frames to a compact binary log and
// plays them back. A log is a sequence of CBOR records; payloads above 1KB
// are zstd-compressed individually.
package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/frame"
	"github.com/grp06/openclaw-studio/internal/clock"
	"github.com/grp06/openclaw-studio/wire"
)

// FlagCompressed marks a record whose payload went through frame.Compress.
const FlagCompressed uint8 = 0x01

// record is the on-disk form of one frame.
type record struct {
	At      int64  `cbor:"1,keyasint"`
	Event   string `cbor:"2,keyasint"`
	Seq     uint64 `cbor:"3,keyasint,omitempty"`
	HasSeq  bool   `cbor:"4,keyasint,omitempty"`
	Flags   uint8  `cbor:"5,keyasint,omitempty"`
	Payload []byte `cbor:"6,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("eventlog: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{DefaultMapType: reflect.TypeOf(map[string]any(nil))}.DecMode()
	if err != nil {
		panic("eventlog: CBOR decoder initialization failed: " + err.Error())
	}
}

// Entry is one replayed frame with the time it was recorded.
type Entry struct {
	At    time.Time
	Frame wire.EventFrame
}

// Recorder appends frames to a writer. It is safe for concurrent use.
type Recorder struct {
	clock clock.Clock
	log   *slog.Logger

	mu    sync.Mutex
	buf   *bufio.Writer
	enc   *cbor.Encoder
	count int
	err   error
}

// NewRecorder returns a Recorder writing to w. Call Close to flush.
func NewRecorder(w io.Writer, c clock.Clock, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	buf := bufio.NewWriter(w)
	return &Recorder{
		clock: clock.OrReal(c),
		log:   logger.With("component", "eventlog"),
		buf:   buf,
		enc:   encMode.NewEncoder(buf),
	}
}

// Record appends f. After the first write error every call returns it.
func (r *Recorder) Record(f wire.EventFrame) error {
	rec := record{At: r.clock.Now().UnixMilli(), Event: f.Event}
	if f.Seq != nil {
		rec.Seq, rec.HasSeq = *f.Seq, true
	}
	if payload, compressed := frame.Compress(f.Payload); compressed {
		rec.Payload, rec.Flags = payload, FlagCompressed
	} else {
		rec.Payload = f.Payload
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := r.enc.Encode(rec); err != nil {
		r.err = fmt.Errorf("eventlog: write record: %w", err)
		return r.err
	}
	r.count++
	return nil
}

// Attach records every event of src until the returned func is called.
// Write errors are logged once.
func (r *Recorder) Attach(src interface {
	OnEvent(studio.EventFilter, studio.EventHandler) func()
}) (detach func()) {
	var once sync.Once
	return src.OnEvent(nil, func(f wire.EventFrame) {
		if err := r.Record(f); err != nil {
			once.Do(func() { r.log.Error("recording stopped", "error", err) })
		}
	})
}

// Count returns the number of records written.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes buffered records. It does not close the underlying writer.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if err := r.buf.Flush(); err != nil {
		r.err = fmt.Errorf("eventlog: flush: %w", err)
		return r.err
	}
	return nil
}

// Reader reads entries back in recording order.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader returns a Reader over a log produced by a Recorder.
func NewReader(rd io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(bufio.NewReader(rd))}
}

// Next returns the next entry, or io.EOF after the last one.
func (r *Reader) Next() (Entry, error) {
	var rec record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Entry{}, io.EOF
		}
		return Entry{}, fmt.Errorf("eventlog: read record: %w", err)
	}

	payload := rec.Payload
	if rec.Flags&FlagCompressed != 0 {
		var err error
		if payload, err = frame.Decompress(payload); err != nil {
			return Entry{}, fmt.Errorf("eventlog: decompress %s payload: %w", rec.Event, err)
		}
	}
	f := wire.EventFrame{Type: wire.TypeEvent, Event: rec.Event}
	if len(payload) > 0 {
		f.Payload = payload
	}
	if rec.HasSeq {
		seq := rec.Seq
		f.Seq = &seq
	}
	return Entry{At: time.UnixMilli(rec.At), Frame: f}, nil
}

// Replay calls fn for every entry of rd in order. It stops at the first
// error fn returns.
func Replay(rd io.Reader, fn func(Entry) error) error {
	r := NewReader(rd)
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
}
