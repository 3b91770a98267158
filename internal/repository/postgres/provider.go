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

type providerRow struct {
	ID              uuid.UUID      `db:"id"`
	Name            string         `db:"name"`
	Specialty       string         `db:"specialty"`
	Rating          float64        `db:"rating"`
	Latitude        float64        `db:"latitude"`
	Longitude       float64        `db:"longitude"`
	Address         string         `db:"address"`
	Available       bool           `db:"available"`
	Consultations   pq.StringArray `db:"consultations"`
	PriceMin        float64        `db:"price_min"`
	PriceMax        float64        `db:"price_max"`
	HoursStart      string         `db:"hours_start"`
	HoursEnd        string         `db:"hours_end"`
	ServiceRadiusKm float64        `db:"service_radius_km"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r providerRow) toModel() *model.Provider {
	kinds := make([]model.ConsultationKind, 0, len(r.Consultations))
	for _, k := range r.Consultations {
		kinds = append(kinds, model.ConsultationKind(k))
	}
	return &model.Provider{
		ID:        r.ID,
		Name:      r.Name,
		Specialty: model.Specialty(r.Specialty),
		Rating:    r.Rating,
		Location: model.Coordinates{
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		},
		Address:         r.Address,
		Available:       r.Available,
		Consultations:   kinds,
		PriceRange:      model.PriceRange{Min: r.PriceMin, Max: r.PriceMax},
		WorkingHours:    model.WorkingHours{Start: r.HoursStart, End: r.HoursEnd},
		ServiceRadiusKm: r.ServiceRadiusKm,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func (r *providerRepository) Upsert(ctx context.Context, provider *model.Provider) error {
	query := `
		INSERT INTO providers (
			id, name, specialty, rating, latitude, longitude, address,
			available, consultations, price_min, price_max,
			hours_start, hours_end, service_radius_km, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			specialty = EXCLUDED.specialty,
			rating = EXCLUDED.rating,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			address = EXCLUDED.address,
			available = EXCLUDED.available,
			consultations = EXCLUDED.consultations,
			price_min = EXCLUDED.price_min,
			price_max = EXCLUDED.price_max,
			hours_start = EXCLUDED.hours_start,
			hours_end = EXCLUDED.hours_end,
			service_radius_km = EXCLUDED.service_radius_km,
			updated_at = EXCLUDED.updated_at
	`
	kinds := make([]string, 0, len(provider.Consultations))
	for _, k := range provider.Consultations {
		kinds = append(kinds, string(k))
	}
	provider.UpdatedAt = time.Now()
	if provider.CreatedAt.IsZero() {
		provider.CreatedAt = provider.UpdatedAt
	}

	_, err := r.db.ExecContext(ctx, query,
		provider.ID,
		provider.Name,
		provider.Specialty,
		provider.Rating,
		provider.Location.Latitude,
		provider.Location.Longitude,
		provider.Address,
		provider.Available,
		pq.StringArray(kinds),
		provider.PriceRange.Min,
		provider.PriceRange.Max,
		provider.WorkingHours.Start,
		provider.WorkingHours.End,
		provider.ServiceRadiusKm,
		provider.CreatedAt,
		provider.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert provider: %w", err)
	}
	return nil
}

func (r *providerRepository) Get(ctx context.Context, id uuid.UUID) (*model.Provider, error) {
	query := `
		SELECT id, name, specialty, rating, latitude, longitude, address,
			   available, consultations, price_min, price_max,
			   hours_start, hours_end, service_radius_km, created_at, updated_at
		FROM providers
		WHERE id = $1
	`
	var row providerRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NotFound("provider", err)
		}
		return nil, fmt.Errorf("failed to get provider: %w", err)
	}
	return row.toModel(), nil
}

func (r *providerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM providers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete provider: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return apperrors.NotFound("provider", nil)
	}
	return nil
}

func (r *providerRepository) List(ctx context.Context) ([]*model.Provider, error) {
	query := `
		SELECT id, name, specialty, rating, latitude, longitude, address,
			   available, consultations, price_min, price_max,
			   hours_start, hours_end, service_radius_km, created_at, updated_at
		FROM providers
		ORDER BY id
	`
	var rows []providerRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("failed to list providers: %w", err)
	}
	providers := make([]*model.Provider, 0, len(rows))
	for _, row := range rows {
		providers = append(providers, row.toModel())
	}
	return providers, nil
}
