package model

// Domain event types published to the broker.
const (
	EventPatientSubmitted        = "patient.submitted"
	EventPatientSubmissionFailed = "patient.submission_failed"
	EventChatExchanged           = "chat.exchanged"
	EventChatCleared             = "chat.cleared"
)

// PatientSubmittedEvent never carries patient fields, only references.
type PatientSubmittedEvent struct {
	PatientID string `json:"patientId"`
	BlobURL   string `json:"blobUrl"`
}

type PatientSubmissionFailedEvent struct {
	Stage     string `json:"stage"`
	Message   string `json:"message"`
	PatientID string `json:"patientId,omitempty"`
	TimedOut  bool   `json:"timedOut,omitempty"`
}

type ChatExchangedEvent struct {
	UserMessageID      string `json:"userMessageId"`
	AssistantMessageID string `json:"assistantMessageId"`
}
