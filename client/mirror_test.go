// File: client/mirror_test.go
package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpulse/models"
)

func activePoll(responses ...models.Response) *models.Poll {
	return &models.Poll{
		ID:        "poll-1",
		Question:  "Q?",
		Options:   []string{"A", "B", "C"},
		Status:    models.PollStatusActive,
		Responses: responses,
		CreatedAt: time.Now(),
		TimeLimit: 60,
	}
}

// Each poll event replaces the local poll wholesale.
func TestApply_PollLifecycle(t *testing.T) {
	m := NewMirror("http://example.invalid")
	assert.Nil(t, m.Poll())

	m.apply(serverEvent{Action: "poll_created", Poll: activePoll()})
	require.NotNil(t, m.Poll())
	assert.Equal(t, models.PollStatusActive, m.Poll().Status)
	assert.Empty(t, m.Poll().Responses)

	m.apply(serverEvent{Action: "response_received", Poll: activePoll(
		models.Response{StudentID: "s1", Answer: "A"},
	)})
	assert.Len(t, m.Poll().Responses, 1)

	ended := activePoll(models.Response{StudentID: "s1", Answer: "A"})
	ended.Status = models.PollStatusEnded
	m.apply(serverEvent{Action: "poll_ended", Poll: ended})
	assert.Equal(t, models.PollStatusEnded, m.Poll().Status)
}

func TestApply_RosterReplacement(t *testing.T) {
	m := NewMirror("http://example.invalid")
	assert.Empty(t, m.Roster())

	m.apply(serverEvent{Action: "students_updated", Students: []models.Student{
		{ID: "s1", Name: "Alice", IsActive: true},
		{ID: "s2", Name: "Bob", IsActive: true},
	}})
	assert.Len(t, m.Roster(), 2)

	// A shorter roster fully displaces the longer one; nothing is merged.
	m.apply(serverEvent{Action: "students_updated", Students: []models.Student{
		{ID: "s2", Name: "Bob", IsActive: true},
	}})
	roster := m.Roster()
	require.Len(t, roster, 1)
	assert.Equal(t, "Bob", roster[0].Name)
}

func TestApply_IdentityAndRemoval(t *testing.T) {
	m := NewMirror("http://example.invalid")
	removed := false
	m.OnRemoved = func() { removed = true }

	m.apply(serverEvent{Action: "student_joined", Student: &models.Student{ID: "s1", Name: "Alice", IsActive: true}})
	require.NotNil(t, m.Identity())
	assert.Equal(t, "Alice", m.Identity().Name)

	m.apply(serverEvent{Action: "student_removed"})
	assert.Nil(t, m.Identity())
	assert.True(t, removed, "OnRemoved should fire")
}

func TestApply_ErrorCallbacks(t *testing.T) {
	m := NewMirror("http://example.invalid")
	var joinMsg, rejCmd, rejMsg string
	m.OnJoinError = func(msg string) { joinMsg = msg }
	m.OnRejected = func(cmd, msg string) { rejCmd, rejMsg = cmd, msg }

	m.apply(serverEvent{Action: "join_error", Message: "name must not be empty"})
	assert.Equal(t, "name must not be empty", joinMsg)

	m.apply(serverEvent{Action: "command_rejected", Command: "create_poll", Message: "a poll is already active"})
	assert.Equal(t, "create_poll", rejCmd)
	assert.Equal(t, "a poll is already active", rejMsg)

	// Unknown actions are ignored without touching local state.
	m.apply(serverEvent{Action: "no_such_action"})
	assert.Nil(t, m.Poll())
}

// The tally carries every option, including the ones nobody picked.
func TestResponseTally(t *testing.T) {
	m := NewMirror("http://example.invalid")
	assert.Empty(t, m.ResponseTally())

	m.apply(serverEvent{Action: "poll_created", Poll: activePoll(
		models.Response{StudentID: "s1", Answer: "A"},
		models.Response{StudentID: "s2", Answer: "A"},
		models.Response{StudentID: "s3", Answer: "C"},
	)})
	assert.Equal(t, map[string]int{"A": 2, "B": 0, "C": 1}, m.ResponseTally())
}

func TestResponseRate(t *testing.T) {
	m := NewMirror("http://example.invalid")
	assert.Zero(t, m.ResponseRate(), "no poll yet")

	m.apply(serverEvent{Action: "poll_created", Poll: activePoll(
		models.Response{StudentID: "s1", Answer: "A"},
	)})
	assert.Zero(t, m.ResponseRate(), "empty roster yields zero, not a division error")

	m.apply(serverEvent{Action: "students_updated", Students: []models.Student{
		{ID: "s1", Name: "Alice", IsActive: true},
		{ID: "s2", Name: "Bob", IsActive: true},
	}})
	assert.InDelta(t, 0.5, m.ResponseRate(), 1e-9)
}

// Ties go to the earliest option in the poll's option order.
func TestLeadingOption(t *testing.T) {
	m := NewMirror("http://example.invalid")

	option, count := m.LeadingOption()
	assert.Empty(t, option)
	assert.Zero(t, count)

	m.apply(serverEvent{Action: "poll_created", Poll: activePoll()})
	option, count = m.LeadingOption()
	assert.Equal(t, "A", option, "zero responses leads with the first option")
	assert.Zero(t, count)

	m.apply(serverEvent{Action: "response_received", Poll: activePoll(
		models.Response{StudentID: "s1", Answer: "C"},
		models.Response{StudentID: "s2", Answer: "B"},
		models.Response{StudentID: "s3", Answer: "C"},
		models.Response{StudentID: "s4", Answer: "B"},
	)})
	option, count = m.LeadingOption()
	assert.Equal(t, "B", option, "tie between B and C resolves in option order")
	assert.Equal(t, 2, count)
}

// Snapshots handed out by the accessors must not alias mirror state.
func TestAccessors_ReturnCopies(t *testing.T) {
	m := NewMirror("http://example.invalid")
	m.apply(serverEvent{Action: "poll_created", Poll: activePoll()})
	m.apply(serverEvent{Action: "students_updated", Students: []models.Student{
		{ID: "s1", Name: "Alice", IsActive: true},
	}})

	poll := m.Poll()
	poll.Options[0] = "tampered"
	assert.Equal(t, "A", m.Poll().Options[0])

	roster := m.Roster()
	roster[0].Name = "tampered"
	assert.Equal(t, "Alice", m.Roster()[0].Name)
}

// One full round trip against a stub server: dial, send a command, receive the
// resulting event, then tear down.
func TestConnect_RoundTrip(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/poll-updates", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		var cmd map[string]interface{}
		if err := conn.ReadJSON(&cmd); err != nil {
			return
		}
		assert.Equal(t, "create_poll", cmd["action"])
		_ = conn.WriteJSON(serverEvent{Action: "poll_created", Poll: activePoll()})

		// Hold the connection until the client hangs up.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	m := NewMirror(server.URL)
	require.NoError(t, m.Connect(context.Background()))

	require.NoError(t, m.CreatePoll("Q?", []string{"A", "B", "C"}))
	assert.Eventually(t, func() bool {
		return m.Poll() != nil
	}, time.Second, 10*time.Millisecond, "poll_created should reach the mirror")

	require.NoError(t, m.Close())
	select {
	case <-m.Done():
	case <-time.After(time.Second):
		t.Fatal("read loop did not exit after Close")
	}
}
