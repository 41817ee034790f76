// Package client holds the participant-side view of the polling session.
// File: client/mirror.go
//
// A Mirror never computes roster membership or poll results itself: it keeps
// the last snapshot pushed by the server and replaces the matching local
// field wholesale on every event. The derived views (tally, response rate,
// leading option) are read-only computations over that snapshot for the
// presentation layer.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/gorilla/websocket"

	"classpulse/logger"
	"classpulse/models"
)

// serverEvent is the outbound envelope the server pushes; only the fields
// relevant to the given Action are populated.
type serverEvent struct {
	Action   string           `json:"action"`
	Poll     *models.Poll     `json:"poll,omitempty"`
	Students []models.Student `json:"students,omitempty"`
	Student  *models.Student  `json:"student,omitempty"`
	Command  string           `json:"command,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// Mirror is one participant's connection to the session. Commands are
// fire-and-forget; state arrives asynchronously through the read loop.
type Mirror struct {
	ServerURL string

	// OnRemoved fires when the moderator removes this participant, so the
	// presentation layer can return to an unjoined state.
	OnRemoved func()
	// OnJoinError fires when a join is rejected (e.g. empty name).
	OnJoinError func(message string)
	// OnRejected fires for any other rejected command.
	OnRejected func(command, message string)

	conn    *websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}

	mu       sync.RWMutex
	poll     *models.Poll
	roster   []models.Student
	identity *models.Student
}

// NewMirror creates a mirror for the given server base URL (http or ws scheme).
func NewMirror(serverURL string) *Mirror {
	return &Mirror{
		ServerURL: serverURL,
		done:      make(chan struct{}),
	}
}

// Connect dials the session endpoint and starts the read loop.
func (m *Mirror) Connect(ctx context.Context) error {
	u, err := url.Parse(m.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	u.Path = "/poll-updates"

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	m.conn = conn

	go m.readLoop()
	return nil
}

// Close tears the connection down. The read loop exits on its own.
func (m *Mirror) Close() error {
	if m.conn == nil {
		return nil
	}
	return m.conn.Close()
}

// Done is closed once the server connection is gone.
func (m *Mirror) Done() <-chan struct{} {
	return m.done
}

// readLoop consumes pushed events until the connection dies.
func (m *Mirror) readLoop() {
	defer close(m.done)
	for {
		var ev serverEvent
		if err := m.conn.ReadJSON(&ev); err != nil {
			logger.Debug.Printf("[Mirror.readLoop] Connection closed: %v", err)
			return
		}
		m.apply(ev)
	}
}

// apply replaces local state from one pushed event. Last write wins; there is
// no merging or diffing.
func (m *Mirror) apply(ev serverEvent) {
	switch ev.Action {
	case "poll_created", "poll_ended", "response_received":
		m.mu.Lock()
		m.poll = ev.Poll
		m.mu.Unlock()
	case "students_updated":
		m.mu.Lock()
		m.roster = ev.Students
		m.mu.Unlock()
	case "student_joined":
		m.mu.Lock()
		m.identity = ev.Student
		m.mu.Unlock()
	case "student_removed":
		m.mu.Lock()
		m.identity = nil
		m.mu.Unlock()
		if m.OnRemoved != nil {
			m.OnRemoved()
		}
	case "join_error":
		if m.OnJoinError != nil {
			m.OnJoinError(ev.Message)
		}
	case "command_rejected":
		logger.Debug.Printf("[Mirror.apply] Command %q rejected: %s", ev.Command, ev.Message)
		if m.OnRejected != nil {
			m.OnRejected(ev.Command, ev.Message)
		}
	default:
		logger.Debug.Printf("[Mirror.apply] Unhandled action: %s", ev.Action)
	}
}

// ---------------------- outbound commands ----------------------

func (m *Mirror) send(cmd map[string]interface{}) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if m.conn == nil {
		return fmt.Errorf("not connected")
	}
	return m.conn.WriteJSON(cmd)
}

// CreatePoll asks the server to start a new poll.
func (m *Mirror) CreatePoll(question string, options []string) error {
	return m.send(map[string]interface{}{
		"action":   "create_poll",
		"question": question,
		"options":  options,
	})
}

// Join registers this connection as a student under the given name.
func (m *Mirror) Join(name string) error {
	return m.send(map[string]interface{}{
		"action": "student_join",
		"name":   name,
	})
}

// SubmitResponse answers the current poll. The server derives the student
// identity from the connection.
func (m *Mirror) SubmitResponse(answer string) error {
	return m.send(map[string]interface{}{
		"action": "submit_response",
		"answer": answer,
	})
}

// EndPoll closes the current poll.
func (m *Mirror) EndPoll() error {
	return m.send(map[string]interface{}{
		"action": "end_poll",
	})
}

// RemoveStudent asks the server to delete a student from the roster.
func (m *Mirror) RemoveStudent(studentID string) error {
	return m.send(map[string]interface{}{
		"action":    "remove_student",
		"studentId": studentID,
	})
}

// ---------------------- local view accessors ----------------------

// Poll returns the last poll snapshot, or nil before any poll was seen.
func (m *Mirror) Poll() *models.Poll {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.poll == nil {
		return nil
	}
	return m.poll.Clone()
}

// Roster returns the last roster snapshot.
func (m *Mirror) Roster() []models.Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Student(nil), m.roster...)
}

// Identity returns this participant's Student record, or nil when unjoined.
func (m *Mirror) Identity() *models.Student {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.identity == nil {
		return nil
	}
	out := *m.identity
	return &out
}

// ---------------------- derived read-only views ----------------------

// ResponseTally counts responses per option, including zero-count options.
func (m *Mirror) ResponseTally() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tally := make(map[string]int)
	if m.poll == nil {
		return tally
	}
	for _, o := range m.poll.Options {
		tally[o] = 0
	}
	for _, r := range m.poll.Responses {
		tally[r.Answer]++
	}
	return tally
}

// ResponseRate is responses over active students, in [0, 1] under normal
// operation (responses from since-departed students can push it past 1).
func (m *Mirror) ResponseRate() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.poll == nil || len(m.roster) == 0 {
		return 0
	}
	return float64(len(m.poll.Responses)) / float64(len(m.roster))
}

// LeadingOption returns the option with the most responses and its count.
// Ties resolve to the first option in the poll's options order, so the
// result is deterministic.
func (m *Mirror) LeadingOption() (string, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.poll == nil {
		return "", 0
	}
	counts := make(map[string]int, len(m.poll.Options))
	for _, r := range m.poll.Responses {
		counts[r.Answer]++
	}
	leading, best := "", -1
	for _, o := range m.poll.Options {
		if counts[o] > best {
			leading, best = o, counts[o]
		}
	}
	if best < 0 {
		return "", 0
	}
	return leading, best
}
