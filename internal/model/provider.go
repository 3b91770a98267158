package model

import (
	"time"

	"github.com/google/uuid"
)

type Specialty string

const (
	SpecialtyGeneral      Specialty = "general"
	SpecialtyPediatrics   Specialty = "pediatrics"
	SpecialtyCardiology   Specialty = "cardiology"
	SpecialtyDermatology  Specialty = "dermatology"
	SpecialtyPsychiatry   Specialty = "psychiatry"
	SpecialtyTraumatology Specialty = "traumatology"
)

func (s Specialty) IsValid() bool {
	switch s {
	case SpecialtyGeneral, SpecialtyPediatrics, SpecialtyCardiology,
		SpecialtyDermatology, SpecialtyPsychiatry, SpecialtyTraumatology:
		return true
	}
	return false
}

// ConsultationKind determines which lifecycle states apply to a request.
type ConsultationKind string

const (
	ConsultationVirtual   ConsultationKind = "virtual"
	ConsultationInPerson  ConsultationKind = "in_person"
	ConsultationHomeVisit ConsultationKind = "home_visit"
)

func (k ConsultationKind) IsValid() bool {
	switch k {
	case ConsultationVirtual, ConsultationInPerson, ConsultationHomeVisit:
		return true
	}
	return false
}

// PriceRange is the provider's advertised min/max consultation price.
type PriceRange struct {
	Min float64 `json:"min" db:"price_min"`
	Max float64 `json:"max" db:"price_max"`
}

// Overlaps reports whether two ranges share at least one price point.
func (p PriceRange) Overlaps(other PriceRange) bool {
	return p.Max >= other.Min && p.Min <= other.Max
}

// WorkingHours is a daily availability window, "HH:MM" 24h format.
type WorkingHours struct {
	Start string `json:"start" db:"hours_start"`
	End   string `json:"end" db:"hours_end"`
}

// Provider is a service provider record. It is created and updated by the
// external provider-management feed and read-only to the matching engine.
type Provider struct {
	ID              uuid.UUID          `json:"id" db:"id"`
	Name            string             `json:"name" db:"name"`
	Specialty       Specialty          `json:"specialty" db:"specialty"`
	Rating          float64            `json:"rating" db:"rating"`
	Location        Coordinates        `json:"location"`
	Address         string             `json:"address" db:"address"`
	Available       bool               `json:"available" db:"available"`
	Consultations   []ConsultationKind `json:"consultations"`
	PriceRange      PriceRange         `json:"price_range"`
	WorkingHours    WorkingHours       `json:"working_hours"`
	ServiceRadiusKm float64            `json:"service_radius_km" db:"service_radius_km"`
	CreatedAt       time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" db:"updated_at"`
}

// Supports reports whether the provider offers the given consultation kind.
func (p *Provider) Supports(kind ConsultationKind) bool {
	for _, k := range p.Consultations {
		if k == kind {
			return true
		}
	}
	return false
}

type UpsertProviderRequest struct {
	Name            string             `json:"name" binding:"required,max=200"`
	Specialty       Specialty          `json:"specialty" binding:"required,specialty"`
	Rating          float64            `json:"rating" binding:"gte=0,lte=5"`
	Location        Coordinates        `json:"location" binding:"required"`
	Address         string             `json:"address" binding:"max=500"`
	Available       bool               `json:"available"`
	Consultations   []ConsultationKind `json:"consultations" binding:"required,min=1,dive,consultation_kind"`
	PriceRange      PriceRange         `json:"price_range" binding:"required"`
	WorkingHours    WorkingHours       `json:"working_hours"`
	ServiceRadiusKm float64            `json:"service_radius_km" binding:"gte=0"`
}
