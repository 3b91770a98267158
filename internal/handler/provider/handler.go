package provider

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/service/directory"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/httputil"
)

// Handler exposes the provider-management feed endpoints.
type Handler struct {
	directory *directory.Service
}

func NewHandler(directory *directory.Service) *Handler {
	return &Handler{directory: directory}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	providers := r.Group("/providers")
	{
		providers.GET("", h.ListProviders)
		providers.GET("/:id", h.GetProvider)
		providers.POST("", h.CreateProvider)
		providers.PUT("/:id", h.UpdateProvider)
		providers.DELETE("/:id", h.DeleteProvider)
	}
}

func (h *Handler) ListProviders(c *gin.Context) {
	if c.Query("available") == "true" {
		httputil.RespondWithSuccess(c, h.directory.ListAvailable())
		return
	}
	httputil.RespondWithSuccess(c, h.directory.Snapshot())
}

func (h *Handler) GetProvider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid provider ID", err))
		return
	}

	p, err := h.directory.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) CreateProvider(c *gin.Context) {
	var req model.UpsertProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	p := toProvider(uuid.Nil, &req)
	if err := h.directory.Upsert(c.Request.Context(), p); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, p)
}

func (h *Handler) UpdateProvider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid provider ID", err))
		return
	}

	var req model.UpsertProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	// Updates only apply to known providers.
	existing, err := h.directory.Get(id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	p := toProvider(id, &req)
	p.CreatedAt = existing.CreatedAt
	if err := h.directory.Upsert(c.Request.Context(), p); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, p)
}

func (h *Handler) DeleteProvider(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid provider ID", err))
		return
	}

	if err := h.directory.Remove(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"deleted": id})
}

func toProvider(id uuid.UUID, req *model.UpsertProviderRequest) *model.Provider {
	return &model.Provider{
		ID:              id,
		Name:            req.Name,
		Specialty:       req.Specialty,
		Rating:          req.Rating,
		Location:        req.Location,
		Address:         req.Address,
		Available:       req.Available,
		Consultations:   req.Consultations,
		PriceRange:      req.PriceRange,
		WorkingHours:    req.WorkingHours,
		ServiceRadiusKm: req.ServiceRadiusKm,
	}
}
