package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"tradejournal/src/database"
	"tradejournal/src/model"
)

// ExceptionRepository stores failures that outlived every retry, such as an
// import whose commit kept failing.
type ExceptionRepository struct {
	db *gorm.DB
}

func NewExceptionRepository() *ExceptionRepository {
	return &ExceptionRepository{db: database.MainDB}
}

func (r *ExceptionRepository) WithDB(db *gorm.DB) *ExceptionRepository {
	return &ExceptionRepository{db: db}
}

// Create persists exc. A failure here is logged and returned; callers
// treat it as best effort.
func (r *ExceptionRepository) Create(ctx context.Context, exc *model.Exception) error {
	fields := map[string]interface{}{
		"repo":   "ExceptionRepository",
		"op":     "Create",
		"module": exc.Module,
		"method": exc.Method,
		"level":  exc.Level,
	}
	if exc.UserID != nil {
		fields["user_id"] = *exc.UserID
	}

	if err := r.db.WithContext(ctx).Create(exc).Error; err != nil {
		logger.WithFields(fields).WithError(err).Error("Failed to record exception")
		return err
	}

	logger.WithFields(fields).WithField("exception_id", exc.ID).Info("Exception recorded")
	return nil
}
