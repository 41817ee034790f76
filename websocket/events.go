// Package websocket - websocket/events.go
// Wire protocol: every frame is JSON keyed by an "action" field.
package websocket

import "classpulse/models"

// Inbound command actions (participant -> coordinator).
const (
	ActionCreatePoll     = "create_poll"
	ActionStudentJoin    = "student_join"
	ActionSubmitResponse = "submit_response"
	ActionEndPoll        = "end_poll"
	ActionRemoveStudent  = "remove_student"
)

// Outbound event actions (coordinator -> participants).
const (
	EventPollCreated      = "poll_created"      // broadcast
	EventPollEnded        = "poll_ended"        // broadcast
	EventResponseReceived = "response_received" // broadcast
	EventStudentsUpdated  = "students_updated"  // broadcast
	EventStudentJoined    = "student_joined"    // unicast to the joiner
	EventJoinError        = "join_error"        // unicast to the joiner
	EventStudentRemoved   = "student_removed"   // unicast to the removed connection
	EventCommandRejected  = "command_rejected"  // unicast to the issuer
)

// CommandMessage is the inbound envelope. Only the fields relevant to the
// given Action are populated; the student identity for submit_response is the
// connection itself, never a payload field.
type CommandMessage struct {
	Action    string   `json:"action"`
	Question  string   `json:"question,omitempty"`
	Options   []string `json:"options,omitempty"`
	Name      string   `json:"name,omitempty"`
	Answer    string   `json:"answer,omitempty"`
	StudentID string   `json:"studentId,omitempty"`
}

// ---------------- outbound event constructors ----------------

func pollEvent(action string, poll *models.Poll) map[string]interface{} {
	return map[string]interface{}{
		"action": action,
		"poll":   poll,
	}
}

func rosterEvent(students []models.Student) map[string]interface{} {
	return map[string]interface{}{
		"action":   EventStudentsUpdated,
		"students": students,
	}
}

func studentJoinedEvent(student *models.Student) map[string]interface{} {
	return map[string]interface{}{
		"action":  EventStudentJoined,
		"student": student,
	}
}

func joinErrorEvent(message string) map[string]interface{} {
	return map[string]interface{}{
		"action":  EventJoinError,
		"message": message,
	}
}

func studentRemovedEvent() map[string]interface{} {
	return map[string]interface{}{
		"action": EventStudentRemoved,
	}
}

func commandRejectedEvent(command, message string) map[string]interface{} {
	return map[string]interface{}{
		"action":  EventCommandRejected,
		"command": command,
		"message": message,
	}
}
