package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"artisan-storefront/internal/auth"
)

var (
	// ErrAuthenticationRequired means no identity is present for an operation that needs one
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrAuthorizationDenied means the caller lacks the required role
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrNotFound covers both missing records and records owned by someone else
	ErrNotFound = errors.New("not found")
	// ErrValidationFailed covers stock, quantity and input shape failures
	ErrValidationFailed = errors.New("validation failed")
	// ErrCheckoutInProgress is returned while another checkout of the same user holds the lock
	ErrCheckoutInProgress = errors.New("checkout already in progress")
)

// MaxQuantity is the largest quantity the INTEGER columns of the store can hold
const MaxQuantity = math.MaxInt32

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidationFailed, fmt.Sprintf(format, args...))
}

func requireUser(ctx context.Context) (string, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return "", ErrAuthenticationRequired
	}
	return userID, nil
}
