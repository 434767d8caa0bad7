package frame

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// ULID is a 128-bit lexicographically sortable identifier.
type ULID [16]byte

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// String renders the canonical 26 character Crockford base32 form.
func (id ULID) String() string {
	var out [26]byte
	// 130 bits of output for 128 bits of input: two leading zero bits.
	hi := binary.BigEndian.Uint64(id[:8])
	lo := binary.BigEndian.Uint64(id[8:])
	for i := 25; i >= 0; i-- {
		out[i] = crockford[lo&0x1f]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Time returns the millisecond timestamp embedded in id.
func (id ULID) Time() time.Time {
	ms := uint64(id[0])<<40 | uint64(id[1])<<32 | uint64(id[2])<<24 |
		uint64(id[3])<<16 | uint64(id[4])<<8 | uint64(id[5])
	return time.UnixMilli(int64(ms))
}

// ULIDGen generates monotonic ULIDs. Safe for concurrent use.
type ULIDGen struct {
	mu   sync.Mutex
	now  func() time.Time
	last ULID
}

// NewULIDGen returns a generator reading time from now (time.Now if nil).
func NewULIDGen(now func() time.Time) *ULIDGen {
	if now == nil {
		now = time.Now
	}
	return &ULIDGen{now: now}
}

// Next returns an id strictly greater than every id previously returned.
//
//	[0-5]   48-bit Unix millisecond timestamp (big-endian)
//	[6-15]  80-bit random, incremented within the same millisecond
func (g *ULIDGen) Next() ULID {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := uint64(g.now().UnixMilli())
	var id ULID
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)

	// A clock that did not move (or stepped back) keeps the previous
	// timestamp so ordering holds.
	if compareTS(id, g.last) <= 0 {
		copy(id[:], g.last[:])
		for i := 15; i >= 6; i-- {
			id[i]++
			if id[i] != 0 {
				break
			}
		}
	} else {
		rand.Read(id[6:])
	}

	g.last = id
	return id
}

func compareTS(a, b ULID) int {
	for i := 0; i < 6; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
