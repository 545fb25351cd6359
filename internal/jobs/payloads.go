package jobs

// BulkGenerateCertificatesPayload drives one whole-event batch. The
// participant list is snapshotted at enqueue time so the batch is stable
// even if registrations change while the job waits in the queue.
type BulkGenerateCertificatesPayload struct {
	EventID        string   `json:"eventId"`
	TemplateID     *string  `json:"templateId,omitempty"`
	ParticipantIDs []string `json:"participantIds"`
	ActorID        string   `json:"actorId,omitempty"`  // admin who triggered the batch
	RequestID      string   `json:"requestId,omitempty"` // correlation
}

// GenerateCertificatePayload issues a single certificate asynchronously.
type GenerateCertificatePayload struct {
	ParticipantID string  `json:"participantId"`
	TemplateID    *string `json:"templateId,omitempty"`
	ActorID       string  `json:"actorId,omitempty"`
}
