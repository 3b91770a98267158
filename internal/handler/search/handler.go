package search

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/service/search"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/httputil"
)

type Handler struct {
	service *search.Service
}

func NewHandler(service *search.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/search", h.Search)
}

// Search returns the ranked candidate list for the caller's location
// and criteria. An empty list is a normal response, not an error.
func (h *Handler) Search(c *gin.Context) {
	var req model.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}
	if !req.Origin.Valid() {
		httputil.RespondWithError(c, apperrors.BadRequest("origin out of range", nil))
		return
	}

	candidates := h.service.Search(c.Request.Context(), *req.Origin, req.Criteria)
	httputil.RespondWithSuccess(c, candidates)
}
