package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/dispatch-api/internal/model"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
)

type historyRow struct {
	ID               uuid.UUID  `db:"id"`
	PatientID        uuid.UUID  `db:"patient_id"`
	ProviderID       uuid.UUID  `db:"provider_id"`
	ConsultationKind string     `db:"consultation_kind"`
	Status           string     `db:"status"`
	Symptoms         string     `db:"symptoms"`
	Urgency          string     `db:"urgency"`
	Notes            string     `db:"notes"`
	PatientLat       *float64   `db:"patient_lat"`
	PatientLng       *float64   `db:"patient_lng"`
	ProviderLat      *float64   `db:"provider_lat"`
	ProviderLng      *float64   `db:"provider_lng"`
	RequestedAt      time.Time  `db:"requested_at"`
	AcceptedAt       *time.Time `db:"accepted_at"`
	StartedAt        *time.Time `db:"started_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	BasePrice        float64    `db:"base_price"`
	FinalPrice       float64    `db:"final_price"`
	PlatformFee      float64    `db:"platform_fee"`
	PatientRating    int        `db:"patient_rating"`
	ProviderRating   int        `db:"provider_rating"`
	PatientFeedback  string     `db:"patient_feedback"`
	ProviderFeedback string     `db:"provider_feedback"`
	CancelReason     *string    `db:"cancel_reason"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r historyRow) toModel() *model.ServiceRequest {
	req := &model.ServiceRequest{
		ID:               r.ID,
		PatientID:        r.PatientID,
		ProviderID:       r.ProviderID,
		ConsultationKind: model.ConsultationKind(r.ConsultationKind),
		Status:           model.RequestStatus(r.Status),
		Symptoms:         r.Symptoms,
		Urgency:          model.Urgency(r.Urgency),
		Notes:            r.Notes,
		RequestedAt:      r.RequestedAt,
		AcceptedAt:       r.AcceptedAt,
		StartedAt:        r.StartedAt,
		CompletedAt:      r.CompletedAt,
		BasePrice:        r.BasePrice,
		FinalPrice:       r.FinalPrice,
		PlatformFee:      r.PlatformFee,
		PatientRating:    model.Rating(r.PatientRating),
		ProviderRating:   model.Rating(r.ProviderRating),
		PatientFeedback:  r.PatientFeedback,
		ProviderFeedback: r.ProviderFeedback,
		CancelReason:     r.CancelReason,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.PatientLat != nil && r.PatientLng != nil {
		req.PatientLocation = &model.Coordinates{Latitude: *r.PatientLat, Longitude: *r.PatientLng}
	}
	if r.ProviderLat != nil && r.ProviderLng != nil {
		req.ProviderLocation = &model.Coordinates{Latitude: *r.ProviderLat, Longitude: *r.ProviderLng}
	}
	return req
}

const historyColumns = `
	id, patient_id, provider_id, consultation_kind, status,
	symptoms, urgency, notes,
	patient_lat, patient_lng, provider_lat, provider_lng,
	requested_at, accepted_at, started_at, completed_at,
	base_price, final_price, platform_fee,
	patient_rating, provider_rating, patient_feedback, provider_feedback,
	cancel_reason, created_at, updated_at
`

func (r *historyRepository) Archive(ctx context.Context, req *model.ServiceRequest) error {
	if !req.Status.IsArchivable() {
		return fmt.Errorf("cannot archive request %s still in active status %s", req.ID, req.Status)
	}

	query := `
		INSERT INTO request_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
				$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26)
		ON CONFLICT (id) DO NOTHING
	`
	var patientLat, patientLng, providerLat, providerLng *float64
	if req.PatientLocation != nil {
		patientLat, patientLng = &req.PatientLocation.Latitude, &req.PatientLocation.Longitude
	}
	if req.ProviderLocation != nil {
		providerLat, providerLng = &req.ProviderLocation.Latitude, &req.ProviderLocation.Longitude
	}

	_, err := r.db.ExecContext(ctx, query,
		req.ID, req.PatientID, req.ProviderID, req.ConsultationKind, req.Status,
		req.Symptoms, req.Urgency, req.Notes,
		patientLat, patientLng, providerLat, providerLng,
		req.RequestedAt, req.AcceptedAt, req.StartedAt, req.CompletedAt,
		req.BasePrice, req.FinalPrice, req.PlatformFee,
		req.PatientRating, req.ProviderRating, req.PatientFeedback, req.ProviderFeedback,
		req.CancelReason, req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive request: %w", err)
	}
	return nil
}

func (r *historyRepository) Get(ctx context.Context, id uuid.UUID) (*model.ServiceRequest, error) {
	query := `SELECT ` + historyColumns + ` FROM request_history WHERE id = $1`

	var row historyRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("request", err)
		}
		return nil, fmt.Errorf("failed to get archived request: %w", err)
	}
	return row.toModel(), nil
}

func (r *historyRepository) List(ctx context.Context) ([]*model.ServiceRequest, error) {
	query := `SELECT ` + historyColumns + ` FROM request_history ORDER BY requested_at`

	var rows []historyRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list request history: %w", err)
	}
	reqs := make([]*model.ServiceRequest, 0, len(rows))
	for _, row := range rows {
		reqs = append(reqs, row.toModel())
	}
	return reqs, nil
}

func (r *historyRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from []model.RequestStatus, to model.RequestStatus) error {
	fromStrs := make([]string, 0, len(from))
	for _, s := range from {
		fromStrs = append(fromStrs, string(s))
	}
	query := `
		UPDATE request_history
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = ANY($3)
	`
	result, err := r.db.ExecContext(ctx, query, to, id, pq.StringArray(fromStrs))
	if err != nil {
		return fmt.Errorf("failed to update archived request status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.InvalidTransition("archived", string(to))
	}
	return nil
}
