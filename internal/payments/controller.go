package payments

import (
	"net/http"

	"venuely/internal/shared/middleware"
	"venuely/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

func parseUUIDParam(ctx *gin.Context, name, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid "+label+" ID", nil, label+" id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// InitiatePayment handles POST /api/v1/payments/initiate
func (c *Controller) InitiatePayment(ctx *gin.Context) {
	userID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	var req InitiatePaymentRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	result, err := c.service.Initiate(ctx.Request.Context(), userID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Payment initiated successfully", result, nil)
}

// PaymentSuccess handles GET /api/v1/payments/success?gateway=esewa|khalti
//
// Gateways redirect the customer here, so the route is public; the callback
// is trusted only after the gateway confirms it.
func (c *Controller) PaymentSuccess(ctx *gin.Context) {
	gw := ctx.Query("gateway")
	if gw == "" {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, "gateway is required")
		return
	}

	result, err := c.service.Verify(ctx.Request.Context(), gw, ctx.Request.URL.Query())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, result.Message, result, nil)
}

// PaymentFailure handles GET /api/v1/payments/failure
func (c *Controller) PaymentFailure(ctx *gin.Context) {
	response.RespondJSON(ctx, "error", http.StatusOK, "Payment was cancelled or failed at the gateway", nil, nil)
}

// GetPayment handles GET /api/v1/payments/:id
func (c *Controller) GetPayment(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "payment")
	if !ok {
		return
	}

	payment, err := c.service.GetPayment(ctx.Request.Context(), id, actorID, role)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment retrieved successfully", payment, nil)
}

// ListBookingPayments handles GET /api/v1/payments/booking/:bookingId
func (c *Controller) ListBookingPayments(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	bookingID, ok := parseUUIDParam(ctx, "bookingId", "booking")
	if !ok {
		return
	}

	items, err := c.service.ListForBooking(ctx.Request.Context(), bookingID, actorID, role)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payments retrieved successfully", items, nil)
}

// RequestRefund handles POST /api/v1/payments/:id/refund
func (c *Controller) RequestRefund(ctx *gin.Context) {
	actorID, role, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "payment")
	if !ok {
		return
	}

	var req RefundRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request data", nil, err.Error())
		return
	}

	refund, err := c.service.InitiateRefund(ctx.Request.Context(), id, actorID, role, req.Reason)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Refund requested successfully", RefundResponse{
		Message: "Refund is pending settlement",
		Refund:  refund,
	}, nil)
}

// OwnerEarnings handles GET /api/v1/owner/earnings
func (c *Controller) OwnerEarnings(ctx *gin.Context) {
	ownerID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}

	earnings, err := c.service.OwnerEarnings(ctx.Request.Context(), ownerID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Earnings retrieved successfully", earnings, nil)
}

// ReconcilePayment handles POST /api/v1/admin/payments/:id/reconcile, where
// :id is the payment reference.
func (c *Controller) ReconcilePayment(ctx *gin.Context) {
	if _, _, ok := middleware.Authenticated(ctx); !ok {
		return
	}

	result, err := c.service.Reconcile(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, result.Message, result, nil)
}

// SettleRefund handles PATCH /api/v1/admin/payments/:id/refund/settle
func (c *Controller) SettleRefund(ctx *gin.Context) {
	actorID, _, ok := middleware.Authenticated(ctx)
	if !ok {
		return
	}
	id, ok := parseUUIDParam(ctx, "id", "refund")
	if !ok {
		return
	}

	refund, err := c.service.SettleRefund(ctx.Request.Context(), id, actorID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Refund settled successfully", refund, nil)
}
