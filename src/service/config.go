package service

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	ServiceName    string        `envconfig:"SERVICE_NAME" default:"tradejournal"`
	CommitAttempts int           `envconfig:"IMPORT_COMMIT_ATTEMPTS" default:"3"`
	RetryBackoff   time.Duration `envconfig:"IMPORT_RETRY_BACKOFF" default:"200ms"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
