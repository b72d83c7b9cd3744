package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/payments"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/pkg/logger"
	"github.com/rifadigital/raffle-gateway/pkg/prom"
)

var (
	ErrMalformedPayload = errors.New("webhook payload is malformed")
	ErrUpstreamFailed   = errors.New("payment detail fetch failed")
)

// Outcome is the terminal classification of one webhook delivery. All of
// these are handled deliveries and answered with 200.
type Outcome string

const (
	OutcomeIgnored   Outcome = "ignored"
	OutcomePending   Outcome = "pending"
	OutcomeRejected  Outcome = "rejected"
	OutcomeSettled   Outcome = "settled"
	OutcomeDuplicate Outcome = "duplicate"
)

type Result struct {
	Outcome    Outcome
	PaymentID  string
	Settlement *model.SettlementResult
}

type PaymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*payments.Payment, error)
}

type TicketStore interface {
	Get(ctx context.Context, raffleID, number int64) (*model.Ticket, error)
	TryTransition(ctx context.Context, raffleID, number int64, expectedStatus model.TicketStatus, expectedVersion int64, newStatus model.TicketStatus, ownerID *int64) (int64, error)
}

type Ledger interface {
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, bool, error)
}

type ConfirmationPublisher interface {
	PublishJSON(ctx context.Context, v interface{}, metadata map[string]string) (string, error)
}

type PipelineConfig struct {
	WebhookSecret string
	RaffleID      int64
}

// Pipeline settles payment webhooks. A delivery moves through authenticate,
// classify, fetch, settle and record; the incoming payload is never trusted
// for status or amount, only the authoritative fetched payment is.
type Pipeline struct {
	fetcher       PaymentFetcher
	tickets       TicketStore
	ledger        Ledger
	guard         *Guard
	confirmations ConfirmationPublisher
	config        PipelineConfig
}

func NewPipeline(fetcher PaymentFetcher, tickets TicketStore, ledger Ledger, guard *Guard, confirmations ConfirmationPublisher, config PipelineConfig) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		tickets:       tickets,
		ledger:        ledger,
		guard:         guard,
		confirmations: confirmations,
		config:        config,
	}
}

// Process runs one delivery through the pipeline. Signature and payload
// errors are returned to the handler for status mapping; handled deliveries
// return a Result and nil error.
func (p *Pipeline) Process(ctx context.Context, body []byte, signature string) (*Result, error) {
	if err := payments.VerifySignature(p.config.WebhookSecret, body, signature); err != nil {
		return nil, err
	}

	var notification model.WebhookNotification
	if err := json.Unmarshal(body, &notification); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if notification.Kind() != model.NotificationPaymentUpdate {
		p.observe(OutcomeIgnored)
		return &Result{Outcome: OutcomeIgnored}, nil
	}

	paymentID := notification.PaymentID()
	if paymentID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrMalformedPayload)
	}

	if p.guard != nil {
		switch err := p.guard.Acquire(paymentID); {
		case errors.Is(err, ErrAlreadySettled), errors.Is(err, ErrDeliveryLocked):
			p.observe(OutcomeDuplicate)
			return &Result{Outcome: OutcomeDuplicate, PaymentID: paymentID}, nil
		case err != nil:
			return nil, err
		}
	}

	result, err := p.process(ctx, paymentID)
	if p.guard != nil {
		if err == nil && result.Outcome == OutcomeSettled {
			p.guard.MarkSettled(paymentID)
		} else {
			p.guard.Release(paymentID)
		}
	}
	if err != nil {
		return nil, err
	}

	p.observe(result.Outcome)
	return result, nil
}

func (p *Pipeline) process(ctx context.Context, paymentID string) (*Result, error) {
	payment, err := p.fetcher.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailed, err)
	}

	switch payment.Status {
	case payments.StatusApproved:
		return p.settle(ctx, payment)
	case payments.StatusRejected, payments.StatusCancelled:
		// reservations are left alone, the expiry sweeper reclaims them
		logger.Info("payment not approved, acknowledged without settlement",
			"payment_id", paymentID,
			"status", payment.Status)
		return &Result{Outcome: OutcomeRejected, PaymentID: paymentID}, nil
	default:
		return &Result{Outcome: OutcomePending, PaymentID: paymentID}, nil
	}
}

// settle marks every referenced number sold and appends the ledger row. A
// number that cannot be sold is skipped, never blocking the rest.
func (p *Pipeline) settle(ctx context.Context, payment *payments.Payment) (*Result, error) {
	start := time.Now()

	ref, err := model.DecodePaymentReference(payment.ExternalReference)
	if err != nil {
		return nil, err
	}

	paymentID := payment.ID.String()
	settlement := &model.SettlementResult{
		Sold:    []int64{},
		Skipped: []int64{},
	}

	for _, number := range ref.Numbers {
		if p.sellNumber(ctx, number, ref.UserID) {
			settlement.Sold = append(settlement.Sold, number)
		} else {
			settlement.Skipped = append(settlement.Skipped, number)
		}
	}

	txn := &model.Transaction{
		UserID:        ref.UserID,
		RaffleID:      p.config.RaffleID,
		Amount:        payment.TransactionAmount,
		PaymentID:     paymentID,
		PaymentMethod: payment.PaymentMethodID,
		Status:        model.TransactionStatusCompleted,
		Numbers:       settlement.Sold,
	}

	recorded, created, err := p.ledger.Create(ctx, txn)
	if err != nil {
		return nil, fmt.Errorf("record transaction for payment %s: %w", paymentID, err)
	}
	if !created {
		logger.Info("transaction already recorded, duplicate delivery",
			"payment_id", paymentID,
			"transaction_id", recorded.ID)
		return &Result{Outcome: OutcomeDuplicate, PaymentID: paymentID, Settlement: settlement}, nil
	}

	prom.AddCounter(prom.SystemWebhook, prom.MetricTicketsSold, float64(len(settlement.Sold)))
	prom.AddHistogram(prom.SystemWebhook, prom.MetricSettlementDuration, time.Since(start).Seconds())

	logger.Info("payment settled",
		"payment_id", paymentID,
		"user_id", ref.UserID,
		"sold", len(settlement.Sold),
		"skipped", len(settlement.Skipped),
		"amount", payment.TransactionAmount)

	p.publishConfirmation(ctx, payment, settlement.Sold)

	return &Result{Outcome: OutcomeSettled, PaymentID: paymentID, Settlement: settlement}, nil
}

// sellNumber moves one number to sold from whichever state it is in. The
// reservation may have expired and been reclaimed, so a number found
// available is sold directly. A number already sold to this buyer counts as
// sold too: if a previous delivery moved the tickets but died before the
// ledger append, the redelivery must still record the full set. Only a
// number someone else bought is skipped.
func (p *Pipeline) sellNumber(ctx context.Context, number, userID int64) bool {
	ticket, err := p.tickets.Get(ctx, p.config.RaffleID, number)
	if err != nil {
		logger.Warn("skipping number, read failed", "number", number, "error", err)
		return false
	}

	switch ticket.Status {
	case model.TicketStatusReserved, model.TicketStatusAvailable:
		_, err = p.tickets.TryTransition(ctx, p.config.RaffleID, number,
			ticket.Status, ticket.Version,
			model.TicketStatusSold, &userID)
		if err != nil {
			if !errors.Is(err, repository.ErrConflict) {
				logger.Warn("skipping number, transition failed", "number", number, "error", err)
			}
			return false
		}
		return true
	case model.TicketStatusSold:
		return ticket.OwnerID != nil && *ticket.OwnerID == userID
	default:
		return false
	}
}

func (p *Pipeline) publishConfirmation(ctx context.Context, payment *payments.Payment, sold []int64) {
	if p.confirmations == nil || payment.Payer.Email == "" || len(sold) == 0 {
		return
	}

	confirmation := model.PurchaseConfirmation{
		Email:       payment.Payer.Email,
		Name:        payment.Payer.FirstName,
		Numbers:     sold,
		Amount:      payment.TransactionAmount,
		PaymentID:   payment.ID.String(),
		PurchasedAt: time.Now(),
	}

	// fire and forget, a lost email never fails settlement
	if _, err := p.confirmations.PublishJSON(ctx, confirmation, nil); err != nil {
		logger.Warn("failed to enqueue purchase confirmation",
			"payment_id", confirmation.PaymentID,
			"error", err)
	}
}

func (p *Pipeline) observe(outcome Outcome) {
	prom.IncCounterVec(prom.SystemWebhook, prom.MetricWebhookOutcome, string(outcome))
}
