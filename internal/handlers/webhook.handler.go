package handlers

import (
	"context"
	"errors"

	"github.com/fasthttp/router"
	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/internal/webhook"
	xhttp "github.com/rifadigital/raffle-gateway/pkg/http"
)

const signatureHeader = "X-Signature"

type WebhookPipeline interface {
	Process(ctx context.Context, body []byte, signature string) (*webhook.Result, error)
}

type WebhookHandler struct {
	pipeline WebhookPipeline
}

func RegisterWebhookRoutes(e *router.Group, h *WebhookHandler) {
	e.POST("/webhooks/payments", h.ReceivePayment)
}

func NewWebhookHandler(pipeline WebhookPipeline) *WebhookHandler {
	return &WebhookHandler{
		pipeline: pipeline,
	}
}

type webhookResponse struct {
	Status    string  `json:"status"`
	PaymentID string  `json:"payment_id,omitempty"`
	Sold      []int64 `json:"sold,omitempty"`
	Skipped   []int64 `json:"skipped,omitempty"`
}

// ReceivePayment accepts one provider delivery. Every handled delivery is
// answered 200 so the provider stops redelivering; only authentication,
// payload and infrastructure failures get non-200 codes and trigger a
// provider-side retry.
func (h *WebhookHandler) ReceivePayment(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()
	signature := string(ctx.Request.Header.Peek(signatureHeader))

	result, err := h.pipeline.Process(ctx, body, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrMissingSignature),
			errors.Is(err, payments.ErrSignatureMismatch):
			writeError(ctx, xhttp.StatusUnauthorized, "invalid signature")
		case errors.Is(err, webhook.ErrMalformedPayload),
			errors.Is(err, model.ErrInvalidReference):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		default:
			// missing secret, upstream fetch and storage failures: the
			// provider should redeliver later
			writeError(ctx, xhttp.StatusInternalServerError, "webhook processing failed")
		}
		return
	}

	resp := webhookResponse{
		Status:    string(result.Outcome),
		PaymentID: result.PaymentID,
	}
	if result.Settlement != nil {
		resp.Sold = result.Settlement.Sold
		resp.Skipped = result.Settlement.Skipped
	}
	writeJSON(ctx, xhttp.StatusOK, resp)
}
