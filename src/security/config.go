package security

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BcryptCost        int `envconfig:"BCRYPT_COST" default:"10"`
	MinPasswordLength int `envconfig:"MIN_PASSWORD_LENGTH" default:"8"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
