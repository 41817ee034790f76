//go:build integration
// +build integration

// integration/session_flow_test.go
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/client"
	"classpulse/models"
	"classpulse/services"
	websocket2 "classpulse/websocket"
)

// startSessionServer wires a real store, coordinator and broadcast loop behind
// an httptest server, the same shape main builds.
func startSessionServer(t *testing.T) *httptest.Server {
	t.Helper()

	store := services.NewSessionStore(60)
	coordinator := websocket2.NewSessionCoordinator(store, websocket2.DefaultMessenger(), time.Hour)
	websocket2.InitCoordinator(coordinator)
	go websocket2.HandleMessages()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		websocket2.ServeWs(w, r)
	}))
	t.Cleanup(server.Close)
	return server
}

func connectMirror(t *testing.T, serverURL string) *client.Mirror {
	t.Helper()

	m := client.NewMirror(serverURL)
	require.NoError(t, m.Connect(context.Background()))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// Two participants join, a poll runs, both answer, and the poll ends the
// moment the second answer lands. Every state assertion reads a mirror, not
// the server, so this exercises the full push path.
func TestSessionFlow_FullCoverageEndsPoll(t *testing.T) {
	server := startSessionServer(t)

	alice := connectMirror(t, server.URL)
	bob := connectMirror(t, server.URL)

	require.NoError(t, alice.Join("Alice"))
	require.NoError(t, bob.Join("Bob"))

	assert.Eventually(t, func() bool {
		return alice.Identity() != nil && bob.Identity() != nil &&
			len(alice.Roster()) == 2 && len(bob.Roster()) == 2
	}, 2*time.Second, 20*time.Millisecond, "both joins should reach both mirrors")

	require.NoError(t, alice.CreatePoll("Favourite language?", []string{"Go", "Rust"}))
	assert.Eventually(t, func() bool {
		return alice.Poll() != nil && bob.Poll() != nil
	}, 2*time.Second, 20*time.Millisecond, "poll_created should reach both mirrors")

	require.NoError(t, alice.SubmitResponse("Go"))
	assert.Eventually(t, func() bool {
		p := bob.Poll()
		return p != nil && len(p.Responses) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, models.PollStatusActive, bob.Poll().Status, "poll stays open until Bob answers")

	require.NoError(t, bob.SubmitResponse("Rust"))
	assert.Eventually(t, func() bool {
		p := alice.Poll()
		return p != nil && p.Status == models.PollStatusEnded && len(p.Responses) == 2
	}, 2*time.Second, 20*time.Millisecond, "full coverage should end the poll everywhere")

	tally := alice.ResponseTally()
	assert.Equal(t, 1, tally["Go"])
	assert.Equal(t, 1, tally["Rust"])
}

// A reconnect under a case-variant name keeps a single roster entry, and the
// removed participant's mirror drops its identity when the moderator acts.
func TestSessionFlow_ReconnectAndRemoval(t *testing.T) {
	server := startSessionServer(t)

	moderator := connectMirror(t, server.URL)
	first := connectMirror(t, server.URL)

	require.NoError(t, first.Join("Carol"))
	assert.Eventually(t, func() bool {
		return len(moderator.Roster()) == 1
	}, 2*time.Second, 20*time.Millisecond)

	// Drop the tab and come back under a different casing.
	require.NoError(t, first.Close())
	assert.Eventually(t, func() bool {
		return len(moderator.Roster()) == 0
	}, 2*time.Second, 20*time.Millisecond, "disconnect should empty the roster")

	second := connectMirror(t, server.URL)
	removed := make(chan struct{})
	second.OnRemoved = func() { close(removed) }
	require.NoError(t, second.Join("carol"))

	assert.Eventually(t, func() bool {
		return second.Identity() != nil && len(moderator.Roster()) == 1
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, "Carol", second.Identity().Name, "original casing survives the reconnect")

	require.NoError(t, moderator.RemoveStudent(second.Identity().ID))
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("removed participant was never notified")
	}
	assert.Eventually(t, func() bool {
		return len(moderator.Roster()) == 0 && second.Identity() == nil
	}, 2*time.Second, 20*time.Millisecond)
}
