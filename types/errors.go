package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfigNotFound       = errors.New("config not found")
	ErrConfigInvalidPath    = errors.New("config invalid path")
	ErrConfigParseFailed    = errors.New("config parse failed")
	ErrConfigValidateFailed = errors.New("config validate failed")
)

var (
	ErrCacheKeyEmpty       = errors.New("cache key empty")
	ErrCacheEntryNotFound  = errors.New("cache entry not found")
	ErrCacheEntryMalformed = errors.New("cache entry malformed")
	ErrCachePatternInvalid = errors.New("cache pattern invalid")
	ErrCacheTypeUnknown    = errors.New("cache type unknown")
	ErrCacheIsDisabled     = errors.New("cache manager is disabled")
	ErrCacheStorageFailed  = errors.New("cache storage failed")
)

var (
	ErrHistoryTypeUnknown = errors.New("history journal type unknown")
	ErrHistoryClosed      = errors.New("history journal closed")
)

var (
	ErrEventsTypeUnknown  = errors.New("event broker type unknown")
	ErrEventsIsDisabled   = errors.New("event broker is disabled")
	ErrEventHandlerIsNil  = errors.New("event handler is nil")
	ErrEventNameIsEmpty   = errors.New("event name is empty")
	ErrEventPublishFailed = errors.New("event publish failed")
)

var (
	ErrCronJobNameIsEmpty    = errors.New("cron job name is empty")
	ErrCronJobIsNil          = errors.New("cron job is nil")
	ErrCronJobExists         = errors.New("cron job exists")
	ErrCronExpressionInvalid = errors.New("cron expression invalid")
)

var (
	ErrMetricsTypeUnknown = errors.New("metrics type unknown")
	ErrMetricsIsDisabled  = errors.New("metrics manager is disabled")
)

var (
	ErrLogFileIsEmpty     = errors.New("log file is empty")
	ErrLogFileWrongFormat = errors.New("log file wrong format")
	ErrLoggerTypeUnknown  = errors.New("logger type unknown")
)

var (
	ErrAlreadyRunning = errors.New("component already running")
	ErrNotRunning     = errors.New("component not running")
)

func Errorf(baseErr error, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", baseErr, fmt.Sprintf(format, args...))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func NewErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func IsError(err, target error) bool {
	return errors.Is(err, target)
}
