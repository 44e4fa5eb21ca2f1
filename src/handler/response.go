package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 500
)

// Page is the envelope of every listing endpoint.
type Page[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithError(err).Error("failed to encode response")
	}
}

// parsePagination reads page and pageSize; both must be positive integers.
func parsePagination(r *http.Request) (page, pageSize int, msg string) {
	page = 1
	if pageParam := r.URL.Query().Get("page"); pageParam != "" {
		parsedPage, err := strconv.Atoi(pageParam)
		if err != nil || parsedPage <= 0 {
			return 0, 0, "invalid page"
		}
		page = parsedPage
	}

	pageSize = defaultPageSize
	if sizeParam := r.URL.Query().Get("pageSize"); sizeParam != "" {
		parsedSize, err := strconv.Atoi(sizeParam)
		if err != nil || parsedSize <= 0 || parsedSize > maxPageSize {
			return 0, 0, "invalid pageSize"
		}
		pageSize = parsedSize
	}

	return page, pageSize, ""
}

func optionalQuery(r *http.Request, name string) *string {
	if v := r.URL.Query().Get(name); v != "" {
		return &v
	}
	return nil
}

func optionalTimeQuery(r *http.Request, name string) (*time.Time, bool) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil, true
	}
	parsed, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, false
	}
	return &parsed, true
}
