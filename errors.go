package flare

import (
	"fmt"

	"github.com/OrlandoBitencourt/flare/internal/domain"
	"github.com/OrlandoBitencourt/flare/internal/poller"
)

// Error types that may be returned by Flare operations.
type (
	// NetworkError is a transport failure talking to the service.
	NetworkError = domain.NetworkError

	// APIError is a non-2xx response from the service.
	APIError = domain.APIError

	// ParseError is a response body that could not be decoded.
	ParseError = domain.ParseError

	// InvalidArgumentError is a caller mistake, such as a context without a scope.
	InvalidArgumentError = domain.InvalidArgumentError
)

// ErrRefreshInFlight is returned by Sync while a poll is already running.
var ErrRefreshInFlight = poller.ErrRefreshInFlight

// ErrStopped is returned by Sync and Start after Stop.
var ErrStopped = poller.ErrStopped

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool { return domain.IsNetwork(err) }

// IsTimeout reports whether err is a NetworkError caused by a timeout.
func IsTimeout(err error) bool { return domain.IsTimeout(err) }

// IsAPI reports whether err is an APIError.
func IsAPI(err error) bool { return domain.IsAPI(err) }

// IsParse reports whether err is a ParseError.
func IsParse(err error) bool { return domain.IsParse(err) }

// IsInvalidArgument reports whether err is an InvalidArgumentError.
func IsInvalidArgument(err error) bool { return domain.IsInvalidArgument(err) }

// ConfigError indicates invalid configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error [%s]: %s", e.Field, e.Message)
}
