package metrics

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dispatch-api/internal/service/metrics"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/httputil"
)

// Handler serves the dashboard metrics endpoints.
type Handler struct {
	service *metrics.Service
}

func NewHandler(service *metrics.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	business := r.Group("/metrics")
	{
		business.GET("/business", h.GetSnapshot)
		business.GET("/business/projection", h.GetProjection)
	}
}

func (h *Handler) GetSnapshot(c *gin.Context) {
	snapshot, err := h.service.Snapshot(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, snapshot)
}

func (h *Handler) GetProjection(c *gin.Context) {
	growthRate, err := strconv.ParseFloat(c.DefaultQuery("growth_rate", "0.1"), 64)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid growth_rate", err))
		return
	}
	months, err := strconv.Atoi(c.DefaultQuery("months", "6"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid months", err))
		return
	}

	projection, err := h.service.Projection(c.Request.Context(), growthRate, months)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, projection)
}
