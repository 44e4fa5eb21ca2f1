package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"tradejournal/src/aggregator"
	"tradejournal/src/auth"
	"tradejournal/src/ingest"
	"tradejournal/src/model"
	"tradejournal/src/repository"
	"tradejournal/src/service"
	"tradejournal/src/utils"
)

const (
	maxUploadBytes  = 10 << 20
	multipartMemory = 2 << 20
)

type orderSearcher interface {
	Search(ctx context.Context, options repository.OrderSearchOptions) ([]model.Order, error)
	Count(ctx context.Context, options repository.OrderSearchOptions) (int64, error)
}

type orderImporter interface {
	Import(ctx context.Context, userID uint, orders []*model.Order) (*service.ImportSummary, error)
}

// SearchOrdersHandler returns a handler that lists orders for the authenticated user.
// Supports pagination and filters (symbol, executedFrom, executedTo).
func SearchOrdersHandler(repo orderSearcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		executedFrom, ok := optionalTimeQuery(r, "executedFrom")
		if !ok {
			http.Error(w, "invalid executedFrom", http.StatusBadRequest)
			return
		}
		executedTo, ok := optionalTimeQuery(r, "executedTo")
		if !ok {
			http.Error(w, "invalid executedTo", http.StatusBadRequest)
			return
		}

		page, pageSize, msg := parsePagination(r)
		if msg != "" {
			http.Error(w, msg, http.StatusBadRequest)
			return
		}

		symbol := optionalQuery(r, "symbol")
		if symbol != nil {
			upper := strings.ToUpper(*symbol)
			symbol = &upper
		}

		opts := repository.OrderSearchOptions{
			UserID:         user.ID,
			Symbol:         symbol,
			ImportID:       optionalQuery(r, "importId"),
			ExecutedAfter:  executedFrom,
			ExecutedBefore: executedTo,
			Limit:          pageSize,
			Offset:         (page - 1) * pageSize,
		}

		orders, err := repo.Search(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to search orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		total, err := repo.Count(r.Context(), opts)
		if err != nil {
			logger.WithError(err).Error("failed to count orders")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		if orders == nil {
			orders = []model.Order{}
		}
		writeJSON(w, http.StatusOK, Page[model.Order]{Items: orders, Total: total, Page: page, PageSize: pageSize})
	}
}

// DefaultSearchOrdersHandler wires the handler to the production repository implementation.
func DefaultSearchOrdersHandler() http.HandlerFunc {
	return SearchOrdersHandler(repository.NewOrderRepository())
}

type UploadResponse struct {
	Message string `json:"message"`
	*service.ImportSummary
}

// UploadOrdersHandler accepts a broker CSV or XLSX export as multipart field "file"
// and an optional IANA "timezone" for timestamps without an offset.
func UploadOrdersHandler(importer orderImporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := auth.GetUserFromContext(r.Context())
		if !ok {
			http.Error(w, "Not authenticated", http.StatusUnauthorized)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			logger.WithError(err).Warn("invalid multipart upload")
			http.Error(w, "Invalid upload", http.StatusBadRequest)
			return
		}
		defer func() {
			if r.MultipartForm != nil {
				_ = r.MultipartForm.RemoveAll()
			}
		}()

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		format, err := ingest.DetectFormat(header.Filename, header.Header.Get("Content-Type"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		loc, err := utils.LoadLocation(r.FormValue("timezone"))
		if err != nil {
			http.Error(w, "invalid timezone", http.StatusBadRequest)
			return
		}

		log := logger.WithFields(map[string]interface{}{
			"handler":  "UploadOrders",
			"user_id":  user.ID,
			"filename": header.Filename,
		})

		orders, err := ingest.Parse(file, format, ingest.Options{
			UserID:   user.ID,
			ImportID: uuid.NewString(),
			Location: loc,
		})
		if err != nil {
			log.WithError(err).Warn("rejected upload")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		summary, err := importer.Import(r.Context(), user.ID, orders)
		if err != nil {
			if errors.Is(err, aggregator.ErrInvalidOrder) || errors.Is(err, service.ErrEmptyBatch) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.WithError(err).Error("failed to import orders")
			http.Error(w, "Unable to process orders", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, UploadResponse{
			Message:       fmt.Sprintf("%d orders have been successfully uploaded and processed.", summary.OrdersImported),
			ImportSummary: summary,
		})
	}
}

func DefaultUploadOrdersHandler(importer *service.ImportService) http.HandlerFunc {
	return UploadOrdersHandler(importer)
}
