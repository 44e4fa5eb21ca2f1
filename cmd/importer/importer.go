package importer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"tradejournal/src/database"
	"tradejournal/src/ingest"
	"tradejournal/src/model"
	"tradejournal/src/repository"
	"tradejournal/src/service"
	"tradejournal/src/utils"
)

var ErrUserNotFound = errors.New("no user with that email")

type userLookup interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

type orderImporter interface {
	Import(ctx context.Context, userID uint, orders []*model.Order) (*service.ImportSummary, error)
}

// Importer loads a CSV or XLSX export from disk straight into the database,
// bypassing the HTTP API.
type Importer struct {
	Log    *logrus.Entry
	Config *Config

	Users    userLookup
	Importer orderImporter
}

func (i *Importer) Start() error {
	if i.Config == nil {
		i.Config = GetConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		i.Log.WithError(err).Error("Failed to connect to main database")
		return err
	}
	if err := database.InitReadOnlyDB(); err != nil {
		i.Log.WithError(err).Error("Failed to connect to read-only database")
		return err
	}

	if i.Users == nil {
		i.Users = repository.NewUserRepository()
	}
	if i.Importer == nil {
		i.Importer = service.DefaultImportService()
	}

	_, err := i.Run(ctx)
	return err
}

// Run parses Config.File and imports it for the user owning Config.UserEmail.
func (i *Importer) Run(ctx context.Context) (*service.ImportSummary, error) {
	log := i.Log.WithFields(logrus.Fields{
		"file":  i.Config.File,
		"email": i.Config.UserEmail,
	})

	if i.Config.File == "" || i.Config.UserEmail == "" {
		return nil, errors.New("a file and a user email are required")
	}
	format, err := ingest.DetectFormat(filepath.Base(i.Config.File), "")
	if err != nil {
		return nil, err
	}

	loc, err := utils.LoadLocation(i.Config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", i.Config.Timezone, err)
	}

	user, err := i.Users.FindByEmail(ctx, i.Config.UserEmail)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, i.Config.UserEmail)
	}

	f, err := os.Open(i.Config.File)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	orders, err := ingest.Parse(f, format, ingest.Options{
		UserID:   user.ID,
		ImportID: uuid.NewString(),
		Location: loc,
	})
	if err != nil {
		log.WithError(err).Error("Failed to parse file")
		return nil, err
	}

	summary, err := i.Importer.Import(ctx, user.ID, orders)
	if err != nil {
		log.WithError(err).Error("Import failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"import_id":      summary.ImportID,
		"orders":         summary.OrdersImported,
		"trades_created": summary.TradesCreated,
		"trades_closed":  summary.TradesClosed,
		"warnings":       len(summary.Warnings),
	}).Info("Import finished")

	for _, w := range summary.Warnings {
		log.WithFields(logrus.Fields{
			"kind":   w.Kind,
			"symbol": w.Symbol,
		}).Warn(w.Message)
	}

	return summary, nil
}
