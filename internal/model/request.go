package model

import (
	"time"

	"github.com/google/uuid"
)

type RequestStatus string

const (
	StatusRequested      RequestStatus = "requested"
	StatusAccepted       RequestStatus = "accepted"
	StatusPreparing      RequestStatus = "preparing"
	StatusOnTheWay       RequestStatus = "on_the_way"
	StatusArrived        RequestStatus = "arrived"
	StatusInConsultation RequestStatus = "in_consultation"
	StatusCompleted      RequestStatus = "completed"
	StatusPaymentPending RequestStatus = "payment_pending"
	StatusPaid           RequestStatus = "paid"
	StatusCancelled      RequestStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are permitted.
func (s RequestStatus) IsTerminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// IsArchivable reports whether a request may leave the active set.
// Completed requests are archived too; only the settlement transitions
// (payment_pending, paid) remain legal on them afterwards.
func (s RequestStatus) IsArchivable() bool {
	return s == StatusCompleted || s == StatusPaymentPending || s.IsTerminal()
}

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// Rating is a 1-5 post-completion score.
type Rating int

func (r Rating) IsValid() bool { return r >= 1 && r <= 5 }

// ServiceRequest tracks one patient/provider engagement through the
// on-demand lifecycle. Mutated only by the lifecycle service.
type ServiceRequest struct {
	ID               uuid.UUID        `json:"id" db:"id"`
	PatientID        uuid.UUID        `json:"patient_id" db:"patient_id"`
	ProviderID       uuid.UUID        `json:"provider_id" db:"provider_id"`
	ConsultationKind ConsultationKind `json:"consultation_kind" db:"consultation_kind"`
	Status           RequestStatus    `json:"status" db:"status"`

	Symptoms string  `json:"symptoms,omitempty" db:"symptoms"`
	Urgency  Urgency `json:"urgency,omitempty" db:"urgency"`
	Notes    string  `json:"notes,omitempty" db:"notes"`

	// Live coordinates, required only for home visits.
	PatientLocation  *Coordinates `json:"patient_location,omitempty"`
	ProviderLocation *Coordinates `json:"provider_location,omitempty"`

	RequestedAt time.Time  `json:"requested_at" db:"requested_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty" db:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`

	BasePrice   float64 `json:"base_price" db:"base_price"`
	FinalPrice  float64 `json:"final_price" db:"final_price"`
	PlatformFee float64 `json:"platform_fee" db:"platform_fee"`

	PatientRating    Rating `json:"patient_rating,omitempty" db:"patient_rating"`
	ProviderRating   Rating `json:"provider_rating,omitempty" db:"provider_rating"`
	PatientFeedback  string `json:"patient_feedback,omitempty" db:"patient_feedback"`
	ProviderFeedback string `json:"provider_feedback,omitempty" db:"provider_feedback"`

	CancelReason *string `json:"cancel_reason,omitempty" db:"cancel_reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a deep copy safe to hand to tracking UIs while the
// lifecycle service keeps mutating the original.
func (r *ServiceRequest) Clone() *ServiceRequest {
	cp := *r
	if r.PatientLocation != nil {
		loc := *r.PatientLocation
		cp.PatientLocation = &loc
	}
	if r.ProviderLocation != nil {
		loc := *r.ProviderLocation
		cp.ProviderLocation = &loc
	}
	if r.AcceptedAt != nil {
		t := *r.AcceptedAt
		cp.AcceptedAt = &t
	}
	if r.StartedAt != nil {
		t := *r.StartedAt
		cp.StartedAt = &t
	}
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	if r.CancelReason != nil {
		s := *r.CancelReason
		cp.CancelReason = &s
	}
	return &cp
}

type CreateRequestInput struct {
	PatientID        uuid.UUID        `json:"patient_id" binding:"required"`
	ProviderID       uuid.UUID        `json:"provider_id" binding:"required"`
	ConsultationKind ConsultationKind `json:"consultation_kind" binding:"required,consultation_kind"`
	Symptoms         string           `json:"symptoms" binding:"max=2000"`
	Urgency          Urgency          `json:"urgency"`
	Notes            string           `json:"notes" binding:"max=2000"`
	PatientLocation  *Coordinates     `json:"patient_location,omitempty"`
	BasePrice        float64          `json:"base_price" binding:"gte=0"`
}

type AcceptRequestInput struct {
	ProviderLocation *Coordinates `json:"provider_location,omitempty"`
}

type CompleteRequestInput struct {
	FinalPrice       float64 `json:"final_price" binding:"gte=0"`
	PatientRating    Rating  `json:"patient_rating" binding:"required"`
	ProviderRating   Rating  `json:"provider_rating" binding:"required"`
	PatientFeedback  string  `json:"patient_feedback" binding:"max=2000"`
	ProviderFeedback string  `json:"provider_feedback" binding:"max=2000"`
}

type CancelRequestInput struct {
	Reason string `json:"reason" binding:"required,max=500"`
}
