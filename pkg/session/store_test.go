package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netpanel/pkg/capture"
	"github.com/getmockd/netpanel/pkg/normalize"
)

func item(id string, c normalize.Category) normalize.RequestItem {
	return normalize.RequestItem{
		ID:       id,
		Category: c,
		Headers:  []capture.Header{{Name: "Accept", Value: "*/*"}},
	}
}

func ids(items []normalize.RequestItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestStore_AppendKeepsArrivalOrder(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.NoError(t, s.Append(item("a", normalize.CategoryJSON)))
	require.NoError(t, s.Append(item("b", normalize.CategoryGQL)))
	require.NoError(t, s.Append(item("c", normalize.CategoryIMG)))

	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Items()))
	assert.Equal(t, 3, s.Len())
}

func TestStore_ClearThenAppendStartsEmpty(t *testing.T) {
	t.Parallel()

	s := New(nil)
	require.NoError(t, s.Append(item("a", normalize.CategoryJSON)))
	require.NoError(t, s.Append(item("b", normalize.CategoryJSON)))
	require.NoError(t, s.Clear())
	assert.Empty(t, s.Items())

	require.NoError(t, s.Append(item("c", normalize.CategoryJSON)))
	assert.Equal(t, []string{"c"}, ids(s.Items()))

	_, ok := s.Get("a")
	assert.False(t, ok)
}

func TestStore_ItemsAreCopies(t *testing.T) {
	t.Parallel()

	s := New(nil)
	orig := item("a", normalize.CategoryJSON)
	require.NoError(t, s.Append(orig))
	orig.Headers[0].Value = "changed by caller"

	items := s.Items()
	items[0].Headers[0].Value = "changed by reader"
	items[0].Name = "renamed"

	got, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, "*/*", got.Headers[0].Value)
	assert.Empty(t, got.Name)
}

func TestStore_SelectIsMutuallyExclusive(t *testing.T) {
	t.Parallel()

	s := New(nil)
	_, ok := s.Settings().Selected()
	assert.False(t, ok, "no filter selected initially")

	require.NoError(t, s.Select(normalize.CategoryGQL))
	require.NoError(t, s.Select(normalize.CategoryJSON))

	st := s.Settings()
	selected, ok := st.Selected()
	require.True(t, ok)
	assert.Equal(t, normalize.CategoryJSON, selected)

	on := 0
	for _, v := range st.Filters {
		if v {
			on++
		}
	}
	assert.Equal(t, 1, on)
	assert.True(t, st.Allows(normalize.CategoryJSON))
	assert.False(t, st.Allows(normalize.CategoryGQL))

	require.NoError(t, s.SelectAll())
	st = s.Settings()
	for _, c := range normalize.Categories {
		assert.False(t, st.Filters[c], c)
		assert.True(t, st.Allows(c), c)
	}
}

func TestStore_SelectUnknownCategory(t *testing.T) {
	t.Parallel()

	s := New(nil)
	err := s.Select(normalize.Category("HTML"))
	require.ErrorIs(t, err, ErrUnknownCategory)
}

func TestStore_SettingsAreCopies(t *testing.T) {
	t.Parallel()

	s := New(nil)
	st := s.Settings()
	st.Filters[normalize.CategoryIMG] = true

	_, ok := s.Settings().Selected()
	assert.False(t, ok)
}

func TestStore_Subscribe(t *testing.T) {
	t.Parallel()

	s := New(nil)
	events, cancel := s.Subscribe()
	defer cancel()

	require.NoError(t, s.Append(item("a", normalize.CategoryJSON)))
	require.NoError(t, s.Select(normalize.CategoryIMG))
	require.NoError(t, s.Clear())

	ev := <-events
	assert.Equal(t, EventAppended, ev.Type)
	require.NotNil(t, ev.Item)
	assert.Equal(t, "a", ev.Item.ID)

	ev = <-events
	assert.Equal(t, EventSettings, ev.Type)
	require.NotNil(t, ev.Settings)
	assert.True(t, ev.Settings.Filters[normalize.CategoryIMG])

	ev = <-events
	assert.Equal(t, EventCleared, ev.Type)
}

func TestStore_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	s := New(nil)
	events, cancel := s.Subscribe()
	defer cancel()

	for i := range DefaultSubscriberBuffer + 10 {
		require.NoError(t, s.Append(item(fmt.Sprint(i), normalize.CategoryOther)))
	}
	assert.Len(t, events, DefaultSubscriberBuffer)
	assert.Equal(t, DefaultSubscriberBuffer+10, s.Len())
}

func TestStore_CancelSubscription(t *testing.T) {
	t.Parallel()

	s := New(nil)
	events, cancel := s.Subscribe()
	cancel()
	cancel()

	_, open := <-events
	assert.False(t, open)
	require.NoError(t, s.Append(item("a", normalize.CategoryJSON)))
}

func TestStore_Close(t *testing.T) {
	t.Parallel()

	s := New(nil)
	events, cancel := s.Subscribe()
	require.NoError(t, s.Append(item("a", normalize.CategoryJSON)))

	s.Close()
	s.Close()
	cancel()

	<-events // the append event
	_, open := <-events
	assert.False(t, open)

	assert.ErrorIs(t, s.Append(item("b", normalize.CategoryJSON)), ErrClosed)
	assert.ErrorIs(t, s.Clear(), ErrClosed)
	assert.ErrorIs(t, s.Select(normalize.CategoryJSON), ErrClosed)
	assert.Equal(t, 0, s.Len())

	late, _ := s.Subscribe()
	_, open = <-late
	assert.False(t, open)
}

func TestStore_ConcurrentAppend(t *testing.T) {
	t.Parallel()

	s := New(nil)
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Append(item(fmt.Sprint(i), normalize.CategoryJSON))
			_ = s.Items()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
