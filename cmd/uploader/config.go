package uploader

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL    string        `envconfig:"API_BASE_URL" default:"http://localhost:9898"`
	Email      string        `envconfig:"UPLOAD_EMAIL"`
	Password   string        `envconfig:"UPLOAD_PASSWORD"`
	File       string        `envconfig:"UPLOAD_FILE"`
	Timezone   string        `envconfig:"UPLOAD_TIMEZONE"`
	Timeout    time.Duration `envconfig:"UPLOAD_TIMEOUT" default:"60s"`
	RetryCount int           `envconfig:"UPLOAD_RETRY_COUNT" default:"2"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
