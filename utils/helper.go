package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stockpit/ledger/config"
)

var validate = validator.New()

// ValidateStruct runs validator/v10 tags over any input struct.
func ValidateStruct(input any) error {
	return validate.Struct(input)
}

func ProcessValidationErrors(err error) map[string]string {
	validationErrors := err.(validator.ValidationErrors)

	errorResponse := make(map[string]string)
	for _, ve := range validationErrors {
		errorResponse[ve.Field()] = ve.Tag()
	}
	return errorResponse
}

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// DecimalPtr returns a pointer copy; gorm needs pointers for nullable columns.
func DecimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

// ConvertToDate truncates t to the start of its calendar day in the given
// timezone, returned in UTC.
func ConvertToDate(t time.Time, timezone string) (time.Time, error) {
	if timezone == "" {
		timezone = "UTC"
	}
	location, err := time.LoadLocation(timezone)
	if err != nil {
		return time.Time{}, err
	}
	local := t.In(location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, location)
	return day.In(time.UTC), nil
}

// ScopeLock serializes multi-statement stock flows (rebuild, correction
// approval) on a single ledger scope across instances using Redis.
// The returned release func must be called when the flow commits or aborts.
//
// Single-statement appends do not need this: the projection row update is
// already atomic.
func ScopeLock(lockKey string, moduleName string, functionName string) (func(), error) {
	logger := config.GetLogger()
	locker := config.GetRedisLock()
	if locker == nil {
		// Avoid nil-pointer panics when Redis lock isn't initialized yet.
		config.LogError(logger, moduleName, functionName, "Redis lock not initialized", lockKey, errors.New("redis lock is nil"))
		return nil, errors.New("service not ready (redis lock not initialized)")
	}
	ctx := config.GetRedisContext()
	lock, err := locker.Obtain(ctx, lockKey, 30*time.Second, nil)
	if err == redislock.ErrNotObtained {
		config.LogError(logger, moduleName, functionName, "Could not obtain scope lock", lockKey, err)
		return nil, fmt.Errorf("could not obtain lock %q", lockKey)
	} else if err != nil {
		config.LogError(logger, moduleName, functionName, "Error obtaining scope lock", lockKey, err)
		return nil, err
	}
	return func() {
		_ = lock.Release(ctx)
	}, nil
}
