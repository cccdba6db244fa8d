package config

import "errors"

var (
	ErrReadConfigFile    = errors.New("config: failed to read config file")
	ErrAllowAllExclusive = errors.New("config: --allow-all is mutually exclusive with other --allow-* flags")
)
