package id

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUID generates a random UUID v4 string.
func UUID() string {
	return uuid.NewString()
}

// ulidEncoding is Crockford's base32 alphabet (no I, L, O, U).
const ulidEncoding = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Generator produces ULIDs. The zero value is not usable; use NewGenerator.
type Generator struct {
	mu      sync.Mutex
	now     func() time.Time
	lastMs  int64
	counter uint16
}

// NewGenerator returns a Generator reading the wall clock.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

var defaultGenerator = NewGenerator()

// ULID generates a new ULID from the package-level generator.
func ULID() string {
	return defaultGenerator.Next()
}

// Next returns the next ULID. IDs generated by the same Generator sort in
// generation order, including within one millisecond.
func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	if ms <= g.lastMs {
		ms = g.lastMs
		g.counter++
		if g.counter == 0 {
			// counter exhausted for this millisecond, borrow the next one
			ms++
		}
	} else {
		g.counter = 0
	}
	g.lastMs = ms

	return encodeULID(ms, g.counter)
}

// encodeULID packs 48 bits of milliseconds, a 16-bit counter and 64 random
// bits into 26 base32 characters. The counter sits directly after the
// timestamp so same-millisecond IDs sort by counter.
func encodeULID(ms int64, counter uint16) string {
	var raw [16]byte
	raw[0] = byte(ms >> 40)
	raw[1] = byte(ms >> 32)
	raw[2] = byte(ms >> 24)
	raw[3] = byte(ms >> 16)
	raw[4] = byte(ms >> 8)
	raw[5] = byte(ms)
	raw[6] = byte(counter >> 8)
	raw[7] = byte(counter)
	_, _ = rand.Read(raw[8:])

	out := make([]byte, 26)
	// 128 bits -> 26 chars; the first char carries only 3 bits.
	var acc uint32
	bits := 2 // pad to 130 bits so the groups align
	idx := 0
	for _, b := range raw {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[idx] = ulidEncoding[(acc>>uint(bits))&0x1F]
			idx++
		}
	}
	return string(out)
}

// IsValidULID reports whether s is a syntactically valid ULID.
func IsValidULID(s string) bool {
	if len(s) != 26 || s[0] > '7' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if decodeULIDChar(s[i]) < 0 {
			return false
		}
	}
	return true
}

// ULIDTime extracts the millisecond timestamp from a ULID.
func ULIDTime(s string) (time.Time, error) {
	if !IsValidULID(s) {
		return time.Time{}, fmt.Errorf("invalid ULID: %s", s)
	}
	// first 10 chars hold 50 bits: 2 pad bits + 48 timestamp bits
	var v int64
	for i := 0; i < 10; i++ {
		v = v<<5 | int64(decodeULIDChar(s[i]))
	}
	return time.UnixMilli(v & (1<<48 - 1)), nil
}

func decodeULIDChar(c byte) int {
	for i := 0; i < len(ulidEncoding); i++ {
		if ulidEncoding[i] == c {
			return i
		}
	}
	return -1
}
