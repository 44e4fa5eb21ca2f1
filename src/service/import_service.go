package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/moby/locker"
	"github.com/sirupsen/logrus"

	"tradejournal/src/aggregator"
	"tradejournal/src/model"
	"tradejournal/src/repository"
)

var (
	ErrEmptyBatch   = errors.New("import batch is empty")
	ErrCommitFailed = errors.New("import could not be committed")
)

// Gateway is the storage the import needs: open trades in, one atomic write out.
type Gateway interface {
	FindOpenBySymbols(ctx context.Context, userID uint, symbols []string) (map[string]*model.Trade, error)
	Commit(ctx context.Context, batch repository.CommitBatch) error
}

type WarningSummary struct {
	Kind          string    `json:"kind"`
	Symbol        string    `json:"symbol"`
	Position      int       `json:"position"`
	ExecutionTime time.Time `json:"execution_time"`
	Message       string    `json:"message"`
}

type ImportSummary struct {
	ImportID       string           `json:"import_id"`
	OrdersImported int              `json:"orders_imported"`
	TradesCreated  int              `json:"trades_created"`
	TradesClosed   int              `json:"trades_closed"`
	TradesOpen     int              `json:"trades_open"`
	Warnings       []WarningSummary `json:"warnings"`
	Attempts       int              `json:"attempts"`
}

// ImportService runs fetch, reconcile and commit for one account at a time.
type ImportService struct {
	logger     *logrus.Entry
	gateway    Gateway
	exceptions ExceptionRecorder
	aggregator *aggregator.Aggregator
	locks      *locker.Locker
	config     Config
	newID      func() string
}

func NewImportService(logger *logrus.Entry, gateway Gateway, exceptions ExceptionRecorder, config Config) *ImportService {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	if config.CommitAttempts < 1 {
		config.CommitAttempts = 1
	}

	return &ImportService{
		logger:     logger,
		gateway:    gateway,
		exceptions: exceptions,
		aggregator: aggregator.NewAggregator(logger.WithField("component", "aggregator")),
		locks:      locker.New(),
		config:     config,
		newID:      uuid.NewString,
	}
}

// DefaultImportService wires the service to the production database.
func DefaultImportService() *ImportService {
	return NewImportService(
		logrus.WithField("component", "import_service"),
		repository.NewTradeRepository(),
		repository.NewExceptionRepository(),
		GetConfig(),
	)
}

// Import reconciles orders into the user's trades and stores the outcome.
// The orders are never modified; every attempt works on fresh copies, so a
// failed commit leaves nothing behind. Imports for the same user are serialized.
func (s *ImportService) Import(ctx context.Context, userID uint, orders []*model.Order) (*ImportSummary, error) {
	if len(orders) == 0 {
		return nil, ErrEmptyBatch
	}

	importID := orders[0].ImportID
	if importID == "" {
		importID = s.newID()
	}

	log := s.logger.WithFields(logrus.Fields{
		"user_id":   userID,
		"import_id": importID,
		"orders":    len(orders),
	})

	lockKey := strconv.FormatUint(uint64(userID), 10)
	s.locks.Lock(lockKey)
	defer func() {
		if err := s.locks.Unlock(lockKey); err != nil {
			log.WithError(err).Error("failed to release import lock")
		}
	}()

	var lastErr error
	for attempt := 1; attempt <= s.config.CommitAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("import cancelled: %w", err)
		}

		summary, err := s.attempt(ctx, userID, importID, orders)
		if err == nil {
			summary.Attempts = attempt
			log.WithFields(logrus.Fields{
				"created":  summary.TradesCreated,
				"closed":   summary.TradesClosed,
				"warnings": len(summary.Warnings),
				"attempt":  attempt,
			}).Info("import committed")
			return summary, nil
		}
		if errors.Is(err, aggregator.ErrInvalidOrder) {
			return nil, err
		}

		lastErr = err
		log.WithError(err).WithField("attempt", attempt).Warn("import attempt failed")

		if attempt < s.config.CommitAttempts && s.config.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("import cancelled: %w", ctx.Err())
			case <-time.After(s.config.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	Capture(ctx, s.exceptions, s.config.ServiceName, "import_service", "Import", "error", lastErr, map[string]interface{}{
		"user_id":   userID,
		"import_id": importID,
		"orders":    len(orders),
		"attempts":  s.config.CommitAttempts,
	})

	return nil, fmt.Errorf("%w after %d attempts: %w", ErrCommitFailed, s.config.CommitAttempts, lastErr)
}

func (s *ImportService) attempt(ctx context.Context, userID uint, importID string, orders []*model.Order) (*ImportSummary, error) {
	batch := cloneOrders(orders, userID, importID)

	open, err := s.gateway.FindOpenBySymbols(ctx, userID, symbolsOf(batch))
	if err != nil {
		return nil, fmt.Errorf("load open trades: %w", err)
	}

	result, err := s.aggregator.Reconcile(batch, open)
	if err != nil {
		return nil, err
	}

	logs := make([]repository.PendingLog, 0, len(result.Warnings))
	warnings := make([]WarningSummary, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		logs = append(logs, repository.PendingLog{
			Log: &model.ImportLog{
				ImportID: importID,
				UserID:   userID,
				Level:    model.ImportLogLevelWarn,
				Kind:     string(w.Kind),
				Message:  w.Message,
				Metadata: w.Fields(),
			},
			Order: w.Order,
			Trade: w.Trade,
		})
		warnings = append(warnings, WarningSummary{
			Kind:          string(w.Kind),
			Symbol:        w.Symbol,
			Position:      w.Index + 1,
			ExecutionTime: w.Order.ExecutionTime,
			Message:       w.Message,
		})
	}

	dirtyOpen := result.DirtyOpen()
	err = s.gateway.Commit(ctx, repository.CommitBatch{
		UserID:   userID,
		ImportID: importID,
		Orders:   batch,
		Closed:   result.Closed,
		Open:     dirtyOpen,
		Logs:     logs,
	})
	if err != nil {
		return nil, err
	}

	return &ImportSummary{
		ImportID:       importID,
		OrdersImported: len(batch),
		TradesCreated:  len(result.Created),
		TradesClosed:   len(result.Closed),
		TradesOpen:     len(dirtyOpen),
		Warnings:       warnings,
	}, nil
}

func cloneOrders(orders []*model.Order, userID uint, importID string) []*model.Order {
	out := make([]*model.Order, 0, len(orders))
	for _, o := range orders {
		if o == nil {
			out = append(out, nil)
			continue
		}
		c := *o
		c.ID = 0
		c.UserID = userID
		c.ImportID = importID
		c.CreatedAt = time.Time{}
		c.UpdatedAt = time.Time{}
		out = append(out, &c)
	}
	return out
}

func symbolsOf(orders []*model.Order) []string {
	seen := make(map[string]struct{})
	for _, o := range orders {
		if o != nil {
			seen[o.Symbol] = struct{}{}
		}
	}
	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
