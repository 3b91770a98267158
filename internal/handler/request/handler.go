package request

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/dispatch-api/internal/middleware"
	"github.com/jwalitptl/dispatch-api/internal/model"
	"github.com/jwalitptl/dispatch-api/internal/service/eta"
	"github.com/jwalitptl/dispatch-api/internal/service/lifecycle"
	apperrors "github.com/jwalitptl/dispatch-api/pkg/errors"
	"github.com/jwalitptl/dispatch-api/pkg/httputil"
)

// Handler exposes the service-request lifecycle commands issued by the
// tracking UIs: create, accept, advance, complete, pay, cancel.
type Handler struct {
	lifecycle *lifecycle.Service
	eta       *eta.Service
}

func NewHandler(lifecycle *lifecycle.Service, eta *eta.Service) *Handler {
	return &Handler{lifecycle: lifecycle, eta: eta}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	requests := r.Group("/requests")
	{
		requests.POST("", h.CreateRequest)
		requests.GET("", h.ListActive)
		requests.GET("/:id", h.GetRequest)
		requests.GET("/:id/eta", h.GetETA)
		requests.POST("/:id/accept", h.AcceptRequest)
		requests.POST("/:id/advance", h.AdvanceRequest)
		requests.POST("/:id/complete", h.CompleteRequest)
		requests.POST("/:id/payment-pending", h.MarkPaymentPending)
		requests.POST("/:id/pay", h.PayRequest)
		requests.POST("/:id/cancel", h.CancelRequest)
	}
}

func (h *Handler) CreateRequest(c *gin.Context) {
	var input model.CreateRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	req, err := h.lifecycle.CreateRequest(c.Request.Context(), &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, req)
}

func (h *Handler) ListActive(c *gin.Context) {
	httputil.RespondWithSuccess(c, h.lifecycle.ListActive())
}

func (h *Handler) GetRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	req, err := h.lifecycle.GetRequest(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

// GetETA returns the provider's estimated arrival in minutes. Only
// meaningful for home visits; missing live coordinates fall back to the
// configured default rather than failing.
func (h *Handler) GetETA(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	req, err := h.lifecycle.GetRequest(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	if req.ConsultationKind != model.ConsultationHomeVisit {
		httputil.RespondWithError(c, apperrors.BadRequest("ETA applies only to home visits", nil))
		return
	}

	httputil.RespondWithSuccess(c, gin.H{
		"request_id":  req.ID,
		"eta_minutes": h.eta.EstimateMinutes(req),
	})
}

func (h *Handler) AcceptRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	if !h.authorizeProvider(c, id) {
		return
	}

	var input model.AcceptRequestInput
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&input); err != nil {
			httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
			return
		}
	}

	req, err := h.lifecycle.Accept(c.Request.Context(), id, &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) AdvanceRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	if !h.authorizeProvider(c, id) {
		return
	}

	req, err := h.lifecycle.Advance(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) CompleteRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}
	if !h.authorizeProvider(c, id) {
		return
	}

	var input model.CompleteRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(err.Error(), err))
		return
	}

	req, err := h.lifecycle.Complete(c.Request.Context(), id, &input)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

// MarkPaymentPending defers settlement for a completed request while the
// payment proof is pending verification.
func (h *Handler) MarkPaymentPending(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.MarkPaymentPending(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"request_id": id, "status": model.StatusPaymentPending})
}

// PayRequest marks settlement for a completed request. Driven by the
// external payment-proof verification callback.
func (h *Handler) PayRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	if err := h.lifecycle.Pay(c.Request.Context(), id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"request_id": id, "status": model.StatusPaid})
}

func (h *Handler) CancelRequest(c *gin.Context) {
	id, ok := h.requestID(c)
	if !ok {
		return
	}

	var input model.CancelRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("cancellation requires a reason", err))
		return
	}

	req, err := h.lifecycle.Cancel(c.Request.Context(), id, input.Reason)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, req)
}

func (h *Handler) requestID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest("invalid request ID", err))
		return uuid.Nil, false
	}
	return id, true
}

// authorizeProvider rejects provider-authenticated calls that target a
// request assigned to a different provider. Unauthenticated requests pass
// through untouched so the auth middleware stays optional per route group.
func (h *Handler) authorizeProvider(c *gin.Context, id uuid.UUID) bool {
	if c.GetString(middleware.ContextRole) != "provider" {
		return true
	}
	actorID, ok := c.Get(middleware.ContextActorID)
	if !ok {
		return true
	}
	req, err := h.lifecycle.GetRequest(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return false
	}
	if aid, ok := actorID.(uuid.UUID); ok && aid != req.ProviderID {
		httputil.RespondWithError(c, apperrors.PermissionDenied("request belongs to another provider"))
		return false
	}
	return true
}
