package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/auth"
	"tradejournal/src/model"
	"tradejournal/src/repository"
)

type tradeSearcher interface {
	Search(ctx context.Context, options repository.TradeSearchOptions) ([]model.Trade, error)
	Count(ctx context.Context, options repository.TradeSearchOptions) (int64, error)
}

type tradeFinder interface {
	FindByID(ctx context.Context, userID uint, id uint) (*model.Trade, error)
}

type tradeUpdater interface {
	ApplyUpdate(ctx context.Context, userID uint, id uint, upd model.TradeUpdate) (*model.Trade, error)
}

type tradeDeleter interface {
	Delete(ctx context.Context, userID uint, id uint) (*model.Trade, error)
}

func tradeIDParam(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// SearchTradesHandler lists the authenticated user's trades.
// Filters: status (OPEN|CLOSED), symbol. Orders are included when withOrders=true.
func SearchTradesHandler(repo tradeSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		status := optionalQuery(r, "status")
		if status != nil {
			upper := strings.ToUpper(*status)
			if upper != model.TradeStatusOpen && upper != model.TradeStatusClosed {
				http.Error(w, "invalid status", http.StatusBadRequest)
				return
			}
			status = &upper
		}

		symbol := optionalQuery(r, "symbol")
		if symbol != nil {
			upper := strings.ToUpper(*symbol)
			symbol = &upper
		}

		page, pageSize, msg := parsePagination(r)
		if msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		opts := repository.TradeSearchOptions{
			UserID:     user.ID,
			Status:     status,
			Symbol:     symbol,
			WithOrders: r.URL.Query().Get("withOrders") == "true",
			Limit:      pageSize,
			Offset:     (page - 1) * pageSize,
		}

		trades, err := repo.Search(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to search trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		total, err := repo.Count(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to count trades")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if trades == nil {
			trades = []model.Trade{}
		}
		writeJSON(w, http.StatusOK, Page[model.Trade]{Items: trades, Total: total, Page: page, PageSize: pageSize})
	}
}

func GetTradeHandler(repo tradeFinder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := tradeIDParam(r)
		if !ok {
			http.Error(w, "invalid trade id", http.StatusBadRequest)
			return
		}

		trade, err := repo.FindByID(r.Context(), user.ID, id)
		if err != nil {
			logger.WithError(err).WithField("trade_id", id).Error("failed to fetch trade")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if trade == nil {
			http.Error(w, "Trade not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, trade)
	}
}

// UpdateTradeHandler applies a partial update. Only notes are user editable;
// the statistics belong to the aggregator.
func UpdateTradeHandler(repo tradeUpdater) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := tradeIDParam(r)
		if !ok {
			http.Error(w, "invalid trade id", http.StatusBadRequest)
			return
		}

		var payload model.UpdateTradePayload
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&payload); err != nil {
			logger.WithError(err).Warn("invalid trade update payload")
			http.Error(w, "Invalid payload", http.StatusBadRequest)
			return
		}

		trade, err := repo.ApplyUpdate(r.Context(), user.ID, id, model.TradeUpdate{Notes: payload.Notes})
		if err != nil {
			logger.WithError(err).WithField("trade_id", id).Error("failed to update trade")
			http.Error(w, "Unable to update trade", http.StatusInternalServerError)
			return
		}
		if trade == nil {
			http.Error(w, "Trade not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, trade)
	}
}

// DeleteTradeHandler removes a trade together with its orders.
func DeleteTradeHandler(repo tradeDeleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		id, ok := tradeIDParam(r)
		if !ok {
			http.Error(w, "invalid trade id", http.StatusBadRequest)
			return
		}

		trade, err := repo.Delete(r.Context(), user.ID, id)
		if err != nil {
			logger.WithError(err).WithField("trade_id", id).Error("failed to delete trade")
			http.Error(w, "Unable to delete trade", http.StatusInternalServerError)
			return
		}
		if trade == nil {
			http.Error(w, "Trade not found", http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, trade)
	}
}

func DefaultSearchTradesHandler() http.HandlerFunc {
	return SearchTradesHandler(repository.NewTradeRepository())
}

func DefaultGetTradeHandler() http.HandlerFunc {
	return GetTradeHandler(repository.NewTradeRepository())
}

func DefaultUpdateTradeHandler() http.HandlerFunc {
	return UpdateTradeHandler(repository.NewTradeRepository())
}

func DefaultDeleteTradeHandler() http.HandlerFunc {
	return DeleteTradeHandler(repository.NewTradeRepository())
}
