package importer

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	File      string `envconfig:"IMPORT_FILE"`
	UserEmail string `envconfig:"IMPORT_USER_EMAIL"`
	Timezone  string `envconfig:"IMPORT_TIMEZONE" default:"UTC"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
