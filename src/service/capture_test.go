package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/src/model"
)

type recordingRecorder struct {
	exceptions []*model.Exception
	ctxErr     error
	err        error
}

func (r *recordingRecorder) Create(ctx context.Context, exc *model.Exception) error {
	r.ctxErr = ctx.Err()
	r.exceptions = append(r.exceptions, exc)
	return r.err
}

func TestCapturePersistsException(t *testing.T) {
	repo := &recordingRecorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	Capture(ctx, repo, "tradejournal", "import_service", "Import", "error", errors.New("boom"),
		map[string]interface{}{"user_id": uint(4), "orders": 12})

	require.Len(t, repo.exceptions, 1)
	exc := repo.exceptions[0]
	assert.NoError(t, repo.ctxErr)
	assert.Equal(t, "boom", exc.Message)
	assert.Equal(t, "import_service", exc.Module)
	assert.NotEmpty(t, exc.Stack)
	require.NotNil(t, exc.UserID)
	assert.Equal(t, uint(4), *exc.UserID)

	var data map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(exc.Context), &data))
	assert.Equal(t, float64(12), data["orders"])
}

func TestCaptureIgnoresNilErrorAndSurvivesRepoFailure(t *testing.T) {
	repo := &recordingRecorder{err: assert.AnError}

	Capture(context.Background(), repo, "s", "m", "f", "error", nil, nil)
	assert.Empty(t, repo.exceptions)

	Capture(context.Background(), repo, "s", "m", "f", "warn", errors.New("x"), nil)
	require.Len(t, repo.exceptions, 1)
	assert.Nil(t, repo.exceptions[0].UserID)
	assert.Empty(t, repo.exceptions[0].Context)

	Capture(context.Background(), nil, "s", "m", "f", "warn", errors.New("no repo"), nil)
}
