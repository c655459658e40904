package api

import (
	"io"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"paylane-backend-go/internal/core"
	"paylane-backend-go/internal/models"
)

// PaymentHandler handles payment provisioning and money-movement endpoints.
type PaymentHandler struct {
	paymentService core.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(ps core.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: ps}
}

// --- Request DTOs ---

// CreateCustomerSourceRequest attaches a tokenized card to the caller's
// processor customer.
type CreateCustomerSourceRequest struct {
	Source         string `json:"source" binding:"required"`
	CardHolderName string `json:"cardHolderName" binding:"required"`
}

// CreateAccountLinkRequest asks for a hosted onboarding link.
type CreateAccountLinkRequest struct {
	RefreshURL string `json:"refreshUrl" binding:"required"`
	ReturnURL  string `json:"returnUrl" binding:"required"`
}

// RefundRequest reverses a charge in full.
type RefundRequest struct {
	Charge string `json:"charge" binding:"required"`
}

// --- Response DTOs ---

// AccountLinkResponse returns the processor-hosted onboarding URL.
type AccountLinkResponse struct {
	URL string `json:"url"`
}

// CreateCustomerSource handles POST /payments/customer-source. Repeating the
// call replaces the stored card on the same customer.
func (h *PaymentHandler) CreateCustomerSource(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req CreateCustomerSourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	account, err := h.paymentService.ProvisionCustomerSource(c.Request.Context(), actor.ID, actor.Email, req.Source, req.CardHolderName)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateConnectedAccount handles POST /payments/connected-account. Repeating
// the call returns the existing account unchanged.
func (h *PaymentHandler) CreateConnectedAccount(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	account, err := h.paymentService.ProvisionConnectedAccount(c.Request.Context(), actor.ID, actor.Email)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

// CreateAccountLink handles POST /payments/connected-account/link.
func (h *PaymentHandler) CreateAccountLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req CreateAccountLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	url, err := h.paymentService.CreateAccountLink(c.Request.Context(), actor.ID, req.RefreshURL, req.ReturnURL)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, AccountLinkResponse{URL: url})
}

// ListAccounts handles GET /payments/accounts.
func (h *PaymentHandler) ListAccounts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	accounts, err := h.paymentService.ListAccounts(c.Request.Context(), actor.ID)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

// Charge handles POST /payments/charge.
func (h *PaymentHandler) Charge(c *gin.Context) {
	var req models.ChargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	charge, err := h.paymentService.Charge(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, charge)
}

// Refund handles POST /payments/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	refund, err := h.paymentService.Refund(c.Request.Context(), req.Charge)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, refund)
}

// Transfer handles POST /payments/transfer. The destination account is
// resolved from the target user's stored connected account.
func (h *PaymentHandler) Transfer(c *gin.Context) {
	var req models.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	transfer, err := h.paymentService.Transfer(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, transfer)
}

// Topup handles POST /payments/topup.
func (h *PaymentHandler) Topup(c *gin.Context) {
	var req models.TopupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request payload", Details: err.Error()})
		return
	}

	topup, err := h.paymentService.Topup(c.Request.Context(), &req)
	if err != nil {
		mapServiceErrorToStatus(c, err)
		return
	}
	c.JSON(http.StatusOK, topup)
}

// HandleStripeWebhook handles POST /payments/webhooks/stripe.
// This endpoint is public; Stripe authenticates webhooks using the
// 'Stripe-Signature' header, verified inside the service.
func (h *PaymentHandler) HandleStripeWebhook(c *gin.Context) {
	signature := c.GetHeader("Stripe-Signature")
	if signature == "" {
		log.Println("Stripe Webhook: Missing Stripe-Signature header.")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Missing Stripe-Signature header"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Printf("Stripe Webhook: Error reading request body: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Failed to read webhook payload"})
		return
	}
	defer c.Request.Body.Close()

	if _, err := h.paymentService.Reconcile(c.Request.Context(), payload, signature); err != nil {
		log.Printf("Stripe Webhook: Error handling webhook: %v", err)
		mapServiceErrorToStatus(c, err)
		return
	}

	// Stripe expects a 2xx response to acknowledge receipt.
	c.JSON(http.StatusOK, SuccessResponse{Message: "Webhook received successfully"})
}
