package id

import (
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID_Format(t *testing.T) {
	uuidRegex := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	for i := 0; i < 50; i++ {
		got := UUID()
		assert.Regexp(t, uuidRegex, got)
	}
}

func TestULID_LengthAndCharset(t *testing.T) {
	for i := 0; i < 100; i++ {
		got := ULID()
		require.Len(t, got, 26)
		assert.True(t, IsValidULID(got), "ULID() = %q is not valid", got)
		assert.NotContains(t, got, "I")
		assert.NotContains(t, got, "L")
		assert.NotContains(t, got, "O")
		assert.NotContains(t, got, "U")
	}
}

func TestGenerator_SameMillisecondSorted(t *testing.T) {
	fixed := time.UnixMilli(1708363121314)
	g := &Generator{now: func() time.Time { return fixed }}

	ids := make([]string, 500)
	for i := range ids {
		ids[i] = g.Next()
	}

	assert.True(t, sort.StringsAreSorted(ids), "same-millisecond ids must sort in generation order")

	seen := make(map[string]bool, len(ids))
	for _, v := range ids {
		require.False(t, seen[v], "duplicate ULID %s", v)
		seen[v] = true
	}
}

func TestGenerator_ClockGoesBackwards(t *testing.T) {
	times := []time.Time{time.UnixMilli(2000), time.UnixMilli(1000)}
	i := 0
	g := &Generator{now: func() time.Time {
		v := times[i]
		i++
		return v
	}}

	first := g.Next()
	second := g.Next()
	assert.Less(t, first, second)
}

func TestULIDTime_RoundTrip(t *testing.T) {
	fixed := time.UnixMilli(1708363121314)
	g := &Generator{now: func() time.Time { return fixed }}

	got, err := ULIDTime(g.Next())
	require.NoError(t, err)
	assert.Equal(t, fixed.UnixMilli(), got.UnixMilli())
}

func TestULIDTime_Invalid(t *testing.T) {
	_, err := ULIDTime("not-a-ulid")
	assert.Error(t, err)
}

func TestIsValidULID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid", "01ARZ3NDEKTSV4RRFFQ69G5FAV", true},
		{"too short", "01ARZ3NDEK", false},
		{"lowercase", "01arz3ndektsv4rrffq69g5fav", false},
		{"excluded letter", "01ARZ3NDEKTSV4RRFFQ69G5FAI", false},
		{"overflow first char", "81ARZ3NDEKTSV4RRFFQ69G5FAV", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidULID(tt.input))
		})
	}
}

func TestULID_Concurrent(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]bool)
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				v := ULID()
				mu.Lock()
				if seen[v] {
					t.Errorf("duplicate ULID %s", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
}
