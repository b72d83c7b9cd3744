package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/fasthttp/router"
	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/rifadigital/raffle-gateway/internal/repository"
	xhttp "github.com/rifadigital/raffle-gateway/pkg/http"
)

type StatsService interface {
	RaffleStats(ctx context.Context) (*model.RaffleStats, error)
	ListTransactions(ctx context.Context, f repository.TransactionFilter) ([]*model.Transaction, int64, error)
}

type StatsHandler struct {
	svc StatsService
}

func RegisterStatsRoutes(e *router.Group, h *StatsHandler) {
	e.GET("/stats", h.GetStats)
	e.GET("/transactions", h.ListTransactions)
}

func NewStatsHandler(statsService StatsService) *StatsHandler {
	return &StatsHandler{
		svc: statsService,
	}
}

type transactionListResponse struct {
	Items []*model.Transaction `json:"items"`
	Total int64                `json:"total"`
}

func (h *StatsHandler) GetStats(ctx *xhttp.RequestCtx) {
	stats, err := h.svc.RaffleStats(ctx)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, stats)
}

func (h *StatsHandler) ListTransactions(ctx *xhttp.RequestCtx) {
	var f repository.TransactionFilter

	if v := query(ctx, "user_id"); v != "" {
		if id, e := strconv.ParseInt(v, 10, 64); e == nil {
			f.UserID = &id
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.ListTransactions(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, transactionListResponse{Items: items, Total: total})
}
