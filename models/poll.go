// Package models defines data structures used across the application.
// File: models/poll.go
package models

import "time"

// ----------------------- poll status -----------------------

// Poll status values. A poll only ever moves from active to ended.
const (
	PollStatusActive = "active"
	PollStatusEnded  = "ended"
)

// ----------------------- student model -----------------------

// Student represents one participant identity. The ID is connection-scoped:
// a reconnect under the same name replaces the ID but keeps the record.
type Student struct {
	ID       string    `json:"id"`       // Connection-scoped identifier
	Name     string    `json:"name"`     // Display name, unique (case-insensitive) among active students
	IsActive bool      `json:"isActive"` // False after disconnect; record is retained
	JoinedAt time.Time `json:"joinedAt"` // Earliest join time for this name
}

// ----------------------- response model -----------------------

// Response records a single student's answer to the current poll.
type Response struct {
	StudentID string    `json:"studentId"` // Identity valid at submission time
	Answer    string    `json:"answer"`    // Must equal one of the poll's options
	Timestamp time.Time `json:"timestamp"`
}

// ------------------------ poll model -----------------------

// Poll is the single question currently (or last) put to the class.
type Poll struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Options   []string   `json:"options"` // Ordered, at least two non-empty entries
	Status    string     `json:"status"`  // PollStatusActive or PollStatusEnded
	Responses []Response `json:"responses"`
	CreatedAt time.Time  `json:"createdAt"`
	TimeLimit int        `json:"timeLimit"` // Seconds until auto-end, fixed at creation
}

// Clone returns a deep copy, so snapshots handed to other goroutines never
// alias the store's backing slices.
func (p *Poll) Clone() *Poll {
	c := *p
	c.Options = append([]string(nil), p.Options...)
	c.Responses = append([]Response(nil), p.Responses...)
	return &c
}

// HasResponseFrom reports whether the given student identity already answered.
func (p *Poll) HasResponseFrom(studentID string) bool {
	for _, r := range p.Responses {
		if r.StudentID == studentID {
			return true
		}
	}
	return false
}

// HasOption reports whether answer is one of the poll's options.
func (p *Poll) HasOption(answer string) bool {
	for _, o := range p.Options {
		if o == answer {
			return true
		}
	}
	return false
}
