package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/netpanel/pkg/config"
	"github.com/getmockd/netpanel/pkg/logging"
	"github.com/getmockd/netpanel/pkg/normalize"
	"github.com/getmockd/netpanel/pkg/panelapi"
	"github.com/getmockd/netpanel/pkg/session"
)

func sampleItem(name string) normalize.RequestItem {
	return normalize.RequestItem{
		ID:                    name,
		Timestamp:             time.Date(2024, 2, 19, 17, 18, 41, 0, time.UTC),
		Time:                  12,
		Name:                  name,
		Category:              normalize.CategoryJSON,
		Method:                "GET",
		URL:                   "http://localhost:3000/" + name,
		RequestDomain:         "http://localhost:3000",
		ResponseStatusCode:    200,
		ResponseStatusMessage: "OK",
		ResponsePayload:       "{}",
	}
}

func TestPrintEvents_Text(t *testing.T) {
	t.Parallel()

	item := sampleItem("user")
	events := make(chan session.Event, 3)
	events <- session.Event{Type: session.EventAppended, Item: &item}
	events <- session.Event{Type: session.EventSettings, Settings: &session.Settings{}}
	events <- session.Event{Type: session.EventCleared}
	close(events)

	var buf bytes.Buffer
	printEvents(&buf, events, false)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"JSON", "GET", "200", "OK", "user", "12ms"}, strings.Fields(lines[0])[1:])
	assert.Equal(t, "-- session cleared --", lines[1])
}

func TestPrintEvents_JSONLines(t *testing.T) {
	t.Parallel()

	first, second := sampleItem("a"), sampleItem("b")
	events := make(chan session.Event, 2)
	events <- session.Event{Type: session.EventAppended, Item: &first}
	events <- session.Event{Type: session.EventAppended, Item: &second}
	close(events)

	var buf bytes.Buffer
	printEvents(&buf, events, true)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for i, want := range []string{"a", "b"} {
		var ev session.Event
		require.NoError(t, json.Unmarshal([]byte(lines[i]), &ev))
		assert.Equal(t, session.EventAppended, ev.Type)
		require.NotNil(t, ev.Item)
		assert.Equal(t, want, ev.Item.Name)
	}
}

func TestServeAPI(t *testing.T) {
	t.Parallel()

	store := session.New(nil)
	t.Cleanup(store.Close)
	require.NoError(t, store.Append(sampleItem("user")))

	a := &app{cfg: &config.Config{Listen: "127.0.0.1:0"}, logger: logging.Nop()}
	srv, addr, err := a.serveAPI(store, panelapi.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	resp, err := http.Get("http://" + addr.String() + "/api/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 1, body.Count)
}

func TestServeAPI_AddressInUse(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	a := &app{cfg: &config.Config{Listen: ln.Addr().String()}, logger: logging.Nop()}
	_, _, err = a.serveAPI(session.New(nil), panelapi.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
}

func TestWatch_UnreachableBrowser(t *testing.T) {
	isolate(t)

	// A port that was just released refuses connections.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cdpURL := "http://" + ln.Addr().String()
	require.NoError(t, ln.Close())

	_, _, err = runCLI(t, "watch", "--cdp-url", cdpURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to attach to "+cdpURL)
}

func TestWatch_RejectsArguments(t *testing.T) {
	isolate(t)

	_, _, err := runCLI(t, "watch", "extra")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}
