package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/fasthttp/router"
	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	"github.com/rifadigital/raffle-gateway/internal/services"
	xhttp "github.com/rifadigital/raffle-gateway/pkg/http"
)

type TicketService interface {
	Reserve(ctx context.Context, raffleID int64, numbers []int64, buyerID int64) (*model.ReservationResult, error)
	Release(ctx context.Context, raffleID int64, numbers []int64, buyerID int64) ([]int64, error)
	ListAvailable(ctx context.Context, raffleID int64, limit int) ([]*model.Ticket, error)
	ListByOwner(ctx context.Context, raffleID, ownerID int64) ([]*model.Ticket, error)
	GetTicket(ctx context.Context, raffleID, number int64) (*model.Ticket, error)
}

type CheckoutService interface {
	Checkout(ctx context.Context, req services.CheckoutRequest) (*services.CheckoutResponse, error)
}

type TicketHandler struct {
	tickets  TicketService
	checkout CheckoutService
	raffleID int64
}

func RegisterTicketRoutes(e *router.Group, h *TicketHandler) {
	e.GET("/numbers", h.ListAvailable)
	e.GET("/numbers/{number}", h.GetNumber)
	e.GET("/users/{user_id}/numbers", h.ListOwned)
	e.POST("/reservations", h.Reserve)
	e.POST("/reservations/release", h.Release)
	e.POST("/checkout", h.Checkout)
}

func NewTicketHandler(tickets TicketService, checkout CheckoutService, raffleID int64) *TicketHandler {
	return &TicketHandler{
		tickets:  tickets,
		checkout: checkout,
		raffleID: raffleID,
	}
}

type reservationRequest struct {
	BuyerID int64   `json:"buyer_id"`
	Numbers []int64 `json:"numbers"`
}

type reservationResponse struct {
	Reserved []int64 `json:"reserved"`
	Rejected []int64 `json:"rejected"`
}

type releaseResponse struct {
	Released []int64 `json:"released"`
}

type numbersResponse struct {
	Items []*model.Ticket `json:"items"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *TicketHandler) ListAvailable(ctx *xhttp.RequestCtx) {
	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}

	items, err := h.tickets.ListAvailable(ctx, h.raffleID, limit)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, numbersResponse{Items: items})
}

func (h *TicketHandler) GetNumber(ctx *xhttp.RequestCtx) {
	number, err := pathInt64(ctx, "number")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid number")
		return
	}

	ticket, err := h.tickets.GetTicket(ctx, h.raffleID, number)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(ctx, xhttp.StatusNotFound, "number not found")
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, ticket)
}

func (h *TicketHandler) ListOwned(ctx *xhttp.RequestCtx) {
	ownerID, err := pathInt64(ctx, "user_id")
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid user id")
		return
	}

	items, err := h.tickets.ListByOwner(ctx, h.raffleID, ownerID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, numbersResponse{Items: items})
}

func (h *TicketHandler) Reserve(ctx *xhttp.RequestCtx) {
	var req reservationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	result, err := h.tickets.Reserve(ctx, h.raffleID, req.Numbers, req.BuyerID)
	if err != nil {
		if errors.Is(err, services.ErrInvalidBuyer) {
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
			return
		}
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, reservationResponse{
		Reserved: result.Reserved,
		Rejected: result.Rejected,
	})
}

func (h *TicketHandler) Release(ctx *xhttp.RequestCtx) {
	var req reservationRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	released, err := h.tickets.Release(ctx, h.raffleID, req.Numbers, req.BuyerID)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, releaseResponse{Released: released})
}

func (h *TicketHandler) Checkout(ctx *xhttp.RequestCtx) {
	var req services.CheckoutRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	resp, err := h.checkout.Checkout(ctx, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidBuyer):
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrNothingReserved):
			// everything the buyer wanted is already taken
			writeJSON(ctx, 409, resp)
		default:
			writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(ctx, 201, resp)
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	return json.Unmarshal(ctx.PostBody(), dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func pathInt64(ctx *xhttp.RequestCtx, name string) (int64, error) {
	v, ok := ctx.UserValue(name).(string)
	if !ok {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseInt(v, 10, 64)
}
