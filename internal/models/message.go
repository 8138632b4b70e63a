package models

// ActionCancel is the host message action sent when the user abandons the input.
const ActionCancel = "cancel"

// HostMessage is a message exchanged with the embedding page.
type HostMessage struct {
	Action  string `json:"action,omitempty"`
	InputID string `json:"input_id,omitempty"`
}

// IsCancel returns true for a cancel request.
func (m HostMessage) IsCancel() bool {
	return m.Action == ActionCancel
}
