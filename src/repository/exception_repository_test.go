package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

func TestExceptionRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExceptionRepository().WithDB(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exceptions"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	userID := uint(3)
	exc := &model.Exception{
		Service:   "tradejournal",
		Module:    "import_service",
		Method:    "Import",
		Message:   "boom",
		Level:     "error",
		UserID:    &userID,
		CreatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), exc))
	assert.Equal(t, uint(1), exc.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExceptionRepositoryCreateFailureLogsUser(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewExceptionRepository().WithDB(db)

	hook := test.NewGlobal()
	defer hook.Reset()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "exceptions"`)).WillReturnError(assert.AnError)
	mock.ExpectRollback()

	userID := uint(9)
	err := repo.Create(context.Background(), &model.Exception{Module: "import_service", Method: "Import", Level: "error", UserID: &userID})
	require.ErrorIs(t, err, assert.AnError)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, uint(9), entry.Data["user_id"])
	assert.Equal(t, "import_service", entry.Data["module"])
	require.NoError(t, mock.ExpectationsWereMet())
}
