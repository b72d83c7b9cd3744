package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWebhookPipeline struct {
	mock.Mock
}

func (m *MockWebhookPipeline) Process(ctx context.Context, body []byte, signature string) (*webhook.Result, error) {
	args := m.Called(ctx, body, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*webhook.Result), args.Error(1)
}

func TestWebhookHandler_ReceivePayment(t *testing.T) {
	deliveryBody := []byte(`{"type":"payment","data":{"id":100}}`)

	t.Run("settled delivery answers 200", func(t *testing.T) {
		pipeline := new(MockWebhookPipeline)
		handler := NewWebhookHandler(pipeline)

		pipeline.On("Process", mock.Anything, deliveryBody, "sig").Return(&webhook.Result{
			Outcome:   webhook.OutcomeSettled,
			PaymentID: "100",
			Settlement: &model.SettlementResult{
				Sold:    []int64{1, 2},
				Skipped: []int64{},
			},
		}, nil)

		ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
		ctx.Request.Header.Set("X-Signature", "sig")
		handler.ReceivePayment(ctx)

		assert.Equal(t, 200, ctx.Response.StatusCode())

		var resp webhookResponse
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.Equal(t, "settled", resp.Status)
		assert.Equal(t, []int64{1, 2}, resp.Sold)

		pipeline.AssertExpectations(t)
	})

	t.Run("ignored and pending deliveries also answer 200", func(t *testing.T) {
		for _, outcome := range []webhook.Outcome{
			webhook.OutcomeIgnored,
			webhook.OutcomePending,
			webhook.OutcomeRejected,
			webhook.OutcomeDuplicate,
		} {
			pipeline := new(MockWebhookPipeline)
			handler := NewWebhookHandler(pipeline)

			pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).
				Return(&webhook.Result{Outcome: outcome}, nil)

			ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
			handler.ReceivePayment(ctx)

			assert.Equal(t, 200, ctx.Response.StatusCode(), string(outcome))
		}
	})

	t.Run("signature failure answers 401", func(t *testing.T) {
		for _, err := range []error{payments.ErrMissingSignature, payments.ErrSignatureMismatch} {
			pipeline := new(MockWebhookPipeline)
			handler := NewWebhookHandler(pipeline)

			pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).Return(nil, err)

			ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
			handler.ReceivePayment(ctx)

			assert.Equal(t, 401, ctx.Response.StatusCode())
		}
	})

	t.Run("malformed payload answers 400", func(t *testing.T) {
		pipeline := new(MockWebhookPipeline)
		handler := NewWebhookHandler(pipeline)

		pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, webhook.ErrMalformedPayload)

		ctx := setupTestContext("POST", "/webhooks/payments", []byte("junk"))
		handler.ReceivePayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("undecodable reference answers 400", func(t *testing.T) {
		pipeline := new(MockWebhookPipeline)
		handler := NewWebhookHandler(pipeline)

		pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, model.ErrInvalidReference)

		ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
		handler.ReceivePayment(ctx)

		assert.Equal(t, 400, ctx.Response.StatusCode())
	})

	t.Run("missing secret answers 500", func(t *testing.T) {
		pipeline := new(MockWebhookPipeline)
		handler := NewWebhookHandler(pipeline)

		pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, payments.ErrMissingSecret)

		ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
		handler.ReceivePayment(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})

	t.Run("upstream failure answers 500", func(t *testing.T) {
		pipeline := new(MockWebhookPipeline)
		handler := NewWebhookHandler(pipeline)

		pipeline.On("Process", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, errors.New("fetch payment 100: gave up after 3 attempts"))

		ctx := setupTestContext("POST", "/webhooks/payments", deliveryBody)
		handler.ReceivePayment(ctx)

		assert.Equal(t, 500, ctx.Response.StatusCode())
	})
}
