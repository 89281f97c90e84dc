package config

import "errors"

// ErrInvalidConfig wraps every validation failure; the more specific
// kinds below are wrapped alongside it.
var (
	ErrInvalidConfig  = errors.New("invalid config")
	ErrUnknownBackend = errors.New("unknown backend")
	ErrMissingSetting = errors.New("missing required setting")
	ErrLoadConfig     = errors.New("load config failed")
)
