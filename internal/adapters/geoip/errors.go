package geoip

import "errors"

var (
	// ErrBadStatus is returned for non-2xx responses.
	ErrBadStatus = errors.New("unexpected status")
	// ErrMalformed is returned when a body is not the expected JSON.
	ErrMalformed = errors.New("malformed response")
	// ErrProviderError is returned when a provider flags the lookup as failed.
	ErrProviderError = errors.New("provider reported error")
	// ErrNoCountry is returned when a response carries no country.
	ErrNoCountry = errors.New("no country in response")
	// ErrUnknownProvider is returned by FromNames for unsupported names.
	ErrUnknownProvider = errors.New("unknown geo provider")
)
