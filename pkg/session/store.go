package session

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/getmockd/netpanel/pkg/logging"
	"github.com/getmockd/netpanel/pkg/normalize"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("session closed")

// ErrUnknownCategory is returned by Select for a category outside normalize.Categories.
var ErrUnknownCategory = errors.New("unknown category")

// EventType identifies what changed in a Store.
type EventType string

// Event types.
const (
	EventAppended EventType = "appended"
	EventCleared  EventType = "cleared"
	EventSettings EventType = "settings"
)

// Event describes a single Store change.
type Event struct {
	Type     EventType              `json:"type"`
	Item     *normalize.RequestItem `json:"item,omitempty"`
	Settings *Settings              `json:"settings,omitempty"`
}

// DefaultSubscriberBuffer is the channel capacity given to each subscriber.
const DefaultSubscriberBuffer = 256

// Store is an append-only ordered sequence of RequestItems plus filter settings.
// Items are never mutated or removed individually; Clear drops all of them.
type Store struct {
	mu          sync.Mutex
	items       []normalize.RequestItem
	settings    Settings
	subscribers map[chan Event]struct{}
	closed      bool
	logger      *slog.Logger
}

// New creates an empty Store. A nil logger discards output.
func New(logger *slog.Logger) *Store {
	return &Store{
		settings:    DefaultSettings(),
		subscribers: make(map[chan Event]struct{}),
		logger:      logging.OrNop(logger),
	}
}

// Append adds item to the end of the sequence.
func (s *Store) Append(item normalize.RequestItem) error {
	item = item.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items = append(s.items, item)
	s.logger.Debug("item appended", "entry_id", item.ID, "type", item.Category, "count", len(s.items))

	published := item.Clone()
	s.publish(Event{Type: EventAppended, Item: &published})
	return nil
}

// Clear empties the sequence. Settings are kept.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.items = nil
	s.logger.Debug("session cleared")
	s.publish(Event{Type: EventCleared})
	return nil
}

// Items returns a copy of the items in arrival order.
func (s *Store) Items() []normalize.RequestItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]normalize.RequestItem, len(s.items))
	for i, it := range s.items {
		out[i] = it.Clone()
	}
	return out
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (normalize.RequestItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.items, func(it normalize.RequestItem) bool { return it.ID == id })
	if i < 0 {
		return normalize.RequestItem{}, false
	}
	return s.items[i].Clone(), true
}

// Len returns the number of items.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Settings returns a copy of the current filter settings.
func (s *Store) Settings() Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings.clone()
}

// Select turns on the toggle for c and turns off all others.
func (s *Store) Select(c normalize.Category) error {
	if !slices.Contains(normalize.Categories, c) {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return s.updateSettings(func(st *Settings) {
		for k := range st.Filters {
			st.Filters[k] = false
		}
		st.Filters[c] = true
	})
}

// SelectAll turns every toggle off so that all categories are shown.
func (s *Store) SelectAll() error {
	return s.updateSettings(func(st *Settings) {
		for k := range st.Filters {
			st.Filters[k] = false
		}
	})
}

func (s *Store) updateSettings(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	fn(&s.settings)
	published := s.settings.clone()
	s.publish(Event{Type: EventSettings, Settings: &published})
	return nil
}

// Subscribe returns a channel of Store events and a function that ends the
// subscription. Delivery never blocks the Store: events are dropped for a
// subscriber whose buffer is full. On a closed Store the channel is already closed.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, DefaultSubscriberBuffer)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	s.subscribers[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.subscribers[ch]; ok {
				delete(s.subscribers, ch)
				close(ch)
			}
		})
	}
}

// Close drops all items, closes every subscriber channel and rejects further
// mutations. It is safe to call more than once.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.items = nil
	for ch := range s.subscribers {
		close(ch)
	}
	clear(s.subscribers)
}

// publish must be called with s.mu held so that events are seen in commit order.
func (s *Store) publish(ev Event) {
	for ch := range s.subscribers {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("subscriber slow, event dropped", "event", ev.Type)
		}
	}
}
