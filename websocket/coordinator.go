// Package websocket manages the live polling session protocol.
// File: websocket/coordinator.go
package websocket

import (
	"strings"
	"sync"
	"time"

	"classpulse/logger"
	"classpulse/services"
)

// defaultCoordinator is the coordinator the connection pumps dispatch into.
var defaultCoordinator *SessionCoordinator

// SessionCoordinator validates inbound commands, applies them to the session
// store and emits the resulting events. Handlers serialize on mu, so every
// command runs validate -> mutate -> emit to completion before the next one,
// in the order commands arrive.
type SessionCoordinator struct {
	Store         services.SessionStoreInterface
	Messenger     Messenger
	PollTimeLimit time.Duration // deferred auto-end delay for each created poll
	mu            sync.Mutex
}

// NewSessionCoordinator wires a coordinator to its store and messenger.
func NewSessionCoordinator(store services.SessionStoreInterface, messenger Messenger, timeLimit time.Duration) *SessionCoordinator {
	if timeLimit <= 0 {
		timeLimit = 60 * time.Second
	}
	return &SessionCoordinator{
		Store:         store,
		Messenger:     messenger,
		PollTimeLimit: timeLimit,
	}
}

// InitCoordinator installs the coordinator used by incoming connections.
// Called once from main after the store is constructed.
func InitCoordinator(c *SessionCoordinator) {
	defaultCoordinator = c
}

// --------------------- command handlers ---------------------

// HandleCreatePoll starts a new poll, broadcasts it, and schedules the single
// deferred auto-end for this poll instance.
func (sc *SessionCoordinator) HandleCreatePoll(origin *Connection, question string, options []string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	poll, err := sc.Store.CreatePoll(question, options)
	if err != nil {
		logger.Warn.Printf("[HandleCreatePoll] Rejected from %s: %v", originID(origin), err)
		sc.Messenger.SendTo(origin, commandRejectedEvent(ActionCreatePoll, err.Error()))
		return
	}

	sc.Messenger.Broadcast(pollEvent(EventPollCreated, poll))

	// One timer per created poll. It is never cancelled; the EndPollIf guard
	// makes a firing after manual end, full coverage or a newer poll a no-op.
	pollID := poll.ID
	time.AfterFunc(sc.PollTimeLimit, func() {
		sc.autoEndPoll(pollID)
	})
}

// autoEndPoll is the deferred action scheduled by HandleCreatePoll.
func (sc *SessionCoordinator) autoEndPoll(pollID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	ended, ok := sc.Store.EndPollIf(pollID)
	if !ok {
		logger.Debug.Printf("[autoEndPoll] Timer for poll %s fired after the poll was gone or ended; no-op", pollID)
		return
	}
	logger.Info.Printf("[autoEndPoll] Poll %s hit its time limit", pollID)
	sc.Messenger.Broadcast(pollEvent(EventPollEnded, ended))
}

// HandleStudentJoin registers (or re-registers) a student under the
// connection identity. The joiner gets its Student record privately, everyone
// gets the refreshed roster.
func (sc *SessionCoordinator) HandleStudentJoin(origin *Connection, name string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if strings.TrimSpace(name) == "" {
		logger.Warn.Printf("[HandleStudentJoin] Empty name from %s", originID(origin))
		sc.Messenger.SendTo(origin, joinErrorEvent("name must not be empty"))
		return
	}

	student := sc.Store.UpsertStudent(origin.ID, name)
	sc.Messenger.SendTo(origin, studentJoinedEvent(student))
	sc.Messenger.Broadcast(rosterEvent(sc.Store.RosterSnapshot()))

	go PublishStudentConnections(sc.Store.ActiveStudentCount())
}

// HandleSubmitResponse records an answer and broadcasts the updated poll.
// When the last active student answers, the poll ends immediately,
// preempting the scheduled timeout.
func (sc *SessionCoordinator) HandleSubmitResponse(origin *Connection, answer string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	poll, allAnswered, err := sc.Store.RecordResponse(origin.ID, answer)
	if err != nil {
		logger.Warn.Printf("[HandleSubmitResponse] Rejected from %s: %v", originID(origin), err)
		sc.Messenger.SendTo(origin, commandRejectedEvent(ActionSubmitResponse, err.Error()))
		return
	}

	sc.Messenger.Broadcast(pollEvent(EventResponseReceived, poll))
	go PublishResponseLatency(time.Since(poll.CreatedAt).Seconds() * 1000)

	if allAnswered {
		if ended, ok := sc.Store.EndPollIf(poll.ID); ok {
			logger.Info.Printf("[HandleSubmitResponse] All active students answered; ending poll %s", poll.ID)
			sc.Messenger.Broadcast(pollEvent(EventPollEnded, ended))
		}
	}
}

// HandleEndPoll closes the poll on the moderator's request.
func (sc *SessionCoordinator) HandleEndPoll(origin *Connection) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	poll, err := sc.Store.EndPoll()
	if err != nil {
		logger.Warn.Printf("[HandleEndPoll] Rejected from %s: %v", originID(origin), err)
		sc.Messenger.SendTo(origin, commandRejectedEvent(ActionEndPoll, err.Error()))
		return
	}
	sc.Messenger.Broadcast(pollEvent(EventPollEnded, poll))
}

// HandleRemoveStudent deletes a student from the roster. Everyone gets the
// new roster; the removed connection alone gets a student_removed notice so
// its mirror can clear local identity.
func (sc *SessionCoordinator) HandleRemoveStudent(origin *Connection, studentID string) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if !sc.Store.RemoveStudent(studentID) {
		logger.Warn.Printf("[HandleRemoveStudent] Unknown student %s requested by %s", studentID, originID(origin))
		sc.Messenger.SendTo(origin, commandRejectedEvent(ActionRemoveStudent, services.ErrUnknownStudent.Error()))
		return
	}

	sc.Messenger.Broadcast(rosterEvent(sc.Store.RosterSnapshot()))
	if target := lookupConnection(studentID); target != nil {
		sc.Messenger.SendTo(target, studentRemovedEvent())
	}

	go PublishStudentConnections(sc.Store.ActiveStudentCount())
}

// HandleDisconnect marks the connection's student inactive and refreshes the
// roster. A connection that never joined deactivates nothing; the snapshot
// broadcast is still harmless.
func (sc *SessionCoordinator) HandleDisconnect(c *Connection) {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	sc.Store.DeactivateStudent(c.ID)
	sc.Messenger.Broadcast(rosterEvent(sc.Store.RosterSnapshot()))

	go PublishStudentConnections(sc.Store.ActiveStudentCount())
}

// originID is nil-safe for logging.
func originID(c *Connection) string {
	if c == nil {
		return "<none>"
	}
	return c.ID
}
