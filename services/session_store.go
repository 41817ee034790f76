// Package services: services/session_store.go
package services

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"classpulse/logger"
	"classpulse/models"
)

// Rejection reasons surfaced by the store. The coordinator decides whether
// and how each one is reported back to the issuing connection.
var (
	ErrPollActive        = errors.New("a poll is already active")
	ErrEmptyQuestion     = errors.New("poll question must not be empty")
	ErrTooFewOptions     = errors.New("poll needs at least two non-empty options")
	ErrNoPoll            = errors.New("no poll exists")
	ErrPollNotActive     = errors.New("poll is not active")
	ErrUnknownStudent    = errors.New("unknown student identity")
	ErrInvalidAnswer     = errors.New("answer is not one of the poll options")
	ErrDuplicateResponse = errors.New("student has already responded to this poll")
)

// SessionStoreInterface is the mutation surface the coordinator works against.
type SessionStoreInterface interface {
	CreatePoll(question string, options []string) (*models.Poll, error)
	EndPoll() (*models.Poll, error)
	EndPollIf(pollID string) (*models.Poll, bool)
	UpsertStudent(connectionID, name string) *models.Student
	RecordResponse(connectionID, answer string) (*models.Poll, bool, error)
	DeactivateStudent(connectionID string)
	RemoveStudent(connectionID string) bool
	RosterSnapshot() []models.Student
	CurrentPoll() *models.Poll
	ActiveStudentCount() int
}

// SessionStore is the authoritative in-memory session state: the single
// current poll (or none) and the roster of known student identities.
// Constructed once at process start; nothing survives a restart.
type SessionStore struct {
	mu               sync.Mutex
	poll             *models.Poll
	students         map[string]*models.Student // connection id -> student
	defaultTimeLimit int                        // seconds, fixed per created poll
}

// NewSessionStore creates the session store. defaultTimeLimit is the number
// of seconds each created poll stays open before auto-ending.
func NewSessionStore(defaultTimeLimit int) *SessionStore {
	if defaultTimeLimit <= 0 {
		defaultTimeLimit = 60
	}
	return &SessionStore{
		students:         make(map[string]*models.Student),
		defaultTimeLimit: defaultTimeLimit,
	}
}

// CreatePoll starts a new poll. Rejected while a poll is still active, when
// the question is empty, or when fewer than two non-empty options remain
// after trimming. The previous (ended) poll is discarded; no history is kept.
func (s *SessionStore) CreatePoll(question string, options []string) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll != nil && s.poll.Status == models.PollStatusActive {
		return nil, ErrPollActive
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	cleaned := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	if len(cleaned) < 2 {
		return nil, ErrTooFewOptions
	}

	poll := &models.Poll{
		ID:        uuid.NewString(),
		Question:  question,
		Options:   cleaned,
		Status:    models.PollStatusActive,
		Responses: []models.Response{},
		CreatedAt: time.Now(),
		TimeLimit: s.defaultTimeLimit,
	}
	s.poll = poll

	logger.Info.Printf("[CreatePoll] New poll %s (%d options, %ds limit): %q",
		poll.ID, len(poll.Options), poll.TimeLimit, poll.Question)
	return poll.Clone(), nil
}

// EndPoll closes the current poll. Rejected when no poll exists or it has
// already ended; the active->ended transition is forward-only.
func (s *SessionStore) EndPoll() (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll == nil {
		return nil, ErrNoPoll
	}
	if s.poll.Status != models.PollStatusActive {
		return nil, ErrPollNotActive
	}
	s.poll.Status = models.PollStatusEnded
	logger.Info.Printf("[EndPoll] Poll %s ended with %d responses", s.poll.ID, len(s.poll.Responses))
	return s.poll.Clone(), nil
}

// EndPollIf ends the poll only if it is still the same instance and still
// active. This is the guard for the deferred auto-end: a stale timer firing
// after a manual end, full coverage, or a newer poll must be a no-op.
func (s *SessionStore) EndPollIf(pollID string) (*models.Poll, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll == nil || s.poll.ID != pollID || s.poll.Status != models.PollStatusActive {
		return nil, false
	}
	s.poll.Status = models.PollStatusEnded
	logger.Info.Printf("[EndPollIf] Poll %s auto-ended with %d responses", s.poll.ID, len(s.poll.Responses))
	return s.poll.Clone(), true
}

// UpsertStudent registers a join under the given connection id. If a student
// already holds the (case-insensitive) name, that record is re-keyed to the
// new connection id, keeping its name and earliest joinedAt — this is how a
// tab reload or reconnect reclaims its identity. Inactive records left behind
// by disconnects are reclaimed the same way; that is what they are retained
// for. Empty-name validation is the caller's job; this operation never fails.
func (s *SessionStore) UpsertStudent(connectionID, name string) *models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)

	var match *models.Student
	var matchID string
	for id, st := range s.students {
		if !strings.EqualFold(st.Name, name) {
			continue
		}
		// Prefer an active holder of the name; among equals, the earliest join.
		if match == nil ||
			(st.IsActive && !match.IsActive) ||
			(st.IsActive == match.IsActive && st.JoinedAt.Before(match.JoinedAt)) {
			match, matchID = st, id
		}
	}
	if match != nil {
		delete(s.students, matchID)
		reclaimed := &models.Student{
			ID:       connectionID,
			Name:     match.Name,
			IsActive: true,
			JoinedAt: match.JoinedAt,
		}
		s.students[connectionID] = reclaimed
		logger.Info.Printf("[UpsertStudent] %q reconnected: %s -> %s", match.Name, matchID, connectionID)
		out := *reclaimed
		return &out
	}

	student := &models.Student{
		ID:       connectionID,
		Name:     name,
		IsActive: true,
		JoinedAt: time.Now(),
	}
	s.students[connectionID] = student
	logger.Info.Printf("[UpsertStudent] %q joined as %s", name, connectionID)
	out := *student
	return &out
}

// RecordResponse appends an answer to the current poll. The returned bool
// reports whether every currently-active student has now answered, i.e. the
// poll should end without waiting for the timer.
func (s *SessionStore) RecordResponse(connectionID, answer string) (*models.Poll, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll == nil {
		return nil, false, ErrNoPoll
	}
	if s.poll.Status != models.PollStatusActive {
		return nil, false, ErrPollNotActive
	}
	st, ok := s.students[connectionID]
	if !ok || !st.IsActive {
		return nil, false, ErrUnknownStudent
	}
	if !s.poll.HasOption(answer) {
		return nil, false, ErrInvalidAnswer
	}
	if s.poll.HasResponseFrom(connectionID) {
		return nil, false, ErrDuplicateResponse
	}

	s.poll.Responses = append(s.poll.Responses, models.Response{
		StudentID: connectionID,
		Answer:    answer,
		Timestamp: time.Now(),
	})
	logger.Info.Printf("[RecordResponse] %q answered %q on poll %s (%d responses)",
		st.Name, answer, s.poll.ID, len(s.poll.Responses))

	return s.poll.Clone(), s.allActiveAnsweredLocked(), nil
}

// allActiveAnsweredLocked reports whether each active student's current
// connection id has a response on the current poll. Callers hold s.mu.
func (s *SessionStore) allActiveAnsweredLocked() bool {
	for id, st := range s.students {
		if st.IsActive && !s.poll.HasResponseFrom(id) {
			return false
		}
	}
	return true
}

// DeactivateStudent marks the student inactive. The record is retained so a
// later join under the same name can reclaim it. Unknown ids are ignored —
// a disconnect is never an error.
func (s *SessionStore) DeactivateStudent(connectionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.students[connectionID]; ok {
		st.IsActive = false
		logger.Info.Printf("[DeactivateStudent] %q (%s) marked inactive", st.Name, connectionID)
	}
}

// RemoveStudent hard-deletes the roster entry and reports whether one existed.
func (s *SessionStore) RemoveStudent(connectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.students[connectionID]
	if !ok {
		return false
	}
	delete(s.students, connectionID)
	logger.Info.Printf("[RemoveStudent] %q (%s) removed from roster", st.Name, connectionID)
	return true
}

// RosterSnapshot returns the roster view broadcast to all clients: active
// students only, deduplicated by case-insensitive name, newest join first.
// Recomputed on every call, never cached.
func (s *SessionStore) RosterSnapshot() []models.Student {
	s.mu.Lock()
	defer s.mu.Unlock()

	roster := make([]models.Student, 0, len(s.students))
	for _, st := range s.students {
		if st.IsActive {
			roster = append(roster, *st)
		}
	}
	sort.Slice(roster, func(i, j int) bool {
		if roster[i].JoinedAt.Equal(roster[j].JoinedAt) {
			return roster[i].Name < roster[j].Name
		}
		return roster[i].JoinedAt.After(roster[j].JoinedAt)
	})

	seen := make(map[string]bool, len(roster))
	unique := roster[:0]
	for _, st := range roster {
		key := strings.ToLower(st.Name)
		if !seen[key] {
			seen[key] = true
			unique = append(unique, st)
		}
	}
	return unique
}

// CurrentPoll returns a copy of the current poll, or nil if none was created.
func (s *SessionStore) CurrentPoll() *models.Poll {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.poll == nil {
		return nil
	}
	return s.poll.Clone()
}

// ActiveStudentCount returns the number of active roster entries.
func (s *SessionStore) ActiveStudentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, st := range s.students {
		if st.IsActive {
			count++
		}
	}
	return count
}
