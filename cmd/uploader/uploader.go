package uploader

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"tradejournal/src/handler"
)

type Uploader struct {
	Log    *logrus.Entry
	Config *Config
	client *Client
}

func (u *Uploader) Start() error {
	if u.Config == nil {
		u.Config = GetConfig()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err := u.Run(ctx)
	return err
}

func (u *Uploader) Run(ctx context.Context) (*handler.UploadResponse, error) {
	if u.Config.File == "" || u.Config.Email == "" || u.Config.Password == "" {
		return nil, errors.New("file, email and password are required")
	}
	if u.client == nil {
		u.client = NewClient(u.Config.BaseURL, u.Config.Timeout, u.Config.RetryCount)
	}

	log := u.Log.WithFields(logrus.Fields{
		"api":  u.Config.BaseURL,
		"file": u.Config.File,
	})

	token, err := u.client.Login(ctx, u.Config.Email, u.Config.Password)
	if err != nil {
		log.WithError(err).Error("Login failed")
		return nil, err
	}

	result, err := u.client.Upload(ctx, token, u.Config.File, u.Config.Timezone)
	if err != nil {
		log.WithError(err).Error("Upload failed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"import_id":      result.ImportID,
		"trades_created": result.TradesCreated,
		"trades_closed":  result.TradesClosed,
		"warnings":       len(result.Warnings),
	}).Info(result.Message)

	return result, nil
}
