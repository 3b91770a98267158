package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusProcessed OutboxStatus = "processed"
	OutboxStatusFailed    OutboxStatus = "failed"
)

// Lifecycle event types published to collaborators (notifications, chat).
const (
	EventRequestCreated    = "request.created"
	EventRequestTransition = "request.transition"
	EventRequestCancelled  = "request.cancelled"
	EventRequestCompleted  = "request.completed"
	EventRequestPaid       = "request.paid"
)

// OutboxEvent is a pending lifecycle notification, written in the same
// flow as the transition and drained by the worker.
type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// TransitionEvent is the payload for request.* events.
type TransitionEvent struct {
	RequestID  uuid.UUID     `json:"request_id"`
	PatientID  uuid.UUID     `json:"patient_id"`
	ProviderID uuid.UUID     `json:"provider_id"`
	From       RequestStatus `json:"from"`
	To         RequestStatus `json:"to"`
	OccurredAt time.Time     `json:"occurred_at"`
}
