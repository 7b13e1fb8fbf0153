package app

import "errors"

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Path string // .tyco file or directory

	Format string // json or yaml
	Pretty bool

	StrictGlobals bool

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.Path == "" {
		return nil, errors.New("Path is a required configuration field and cannot be empty")
	}
	return &cfg, nil
}
