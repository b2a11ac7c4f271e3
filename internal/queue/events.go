package queue

import "encoding/json"

// RegistrationEvent is published after a successful registration.
type RegistrationEvent struct {
	LRN         string  `json:"lrn"`
	StudentName string  `json:"student_name"`
	Status      string  `json:"status"`
	ParentIDs   []int64 `json:"parent_ids"`
}

// Message packs the event for publishing.
func (e RegistrationEvent) Message() Message {
	b, _ := json.Marshal(e)
	return Message{Type: TypeRegistration, Body: b}
}

// ApprovalEvent is published after a guardian approval action.
type ApprovalEvent struct {
	GuardianID   int64  `json:"guardian_id"`
	GuardianName string `json:"guardian_name"`
	StudentName  string `json:"student_name"`
	Status       string `json:"status"`
	Source       string `json:"source,omitempty"`
}

// Message packs the event for publishing.
func (e ApprovalEvent) Message() Message {
	b, _ := json.Marshal(e)
	return Message{Type: TypeApproval, Body: b}
}
