package db

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryableError is a function that decides whether an error is worth retrying.
type IsRetryableError func(err error) bool

const DefaultMaxRetries = 3

// Try executes an operation with default retry settings for transient
// MongoDB errors. It uses DefaultMaxRetries and IsMongoTransientError.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsMongoTransientError)
}

// WithRetries executes an operation up to maxRetries additional times when
// the error is classified retryable, with a simple incremental backoff.
func WithRetries(op Operation, maxRetries int, isRetryable IsRetryableError) error {
	var err error
	// Loop for initial attempt (attempt = 0) + maxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil // Success
		}

		// If this was the last attempt and it failed, return the error.
		if attempt == maxRetries {
			break
		}

		if isRetryable(err) {
			time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond) // Simple incremental backoff
		} else {
			return err // Not retryable, return immediately
		}
	}
	return err
}

// IsMongoTransientError reports whether an error from MongoDB is a timeout or
// a network-level failure that a retry can plausibly recover from. Duplicate
// key violations are NOT retryable: the unique payments index rejecting a
// second record for the same month is a business error the caller must surface.
func IsMongoTransientError(err error) bool {
	if err == nil {
		return false
	}
	if IsDuplicateKeyError(err) {
		return false
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.HasErrorLabel("RetryableWriteError") || ce.HasErrorLabel("TransientTransactionError")
	}
	return false
}

// IsDuplicateKeyError checks if an error from MongoDB is a unique index
// violation (code 11000).
func IsDuplicateKeyError(err error) bool {
	var e mongo.WriteException
	if errors.As(err, &e) {
		for _, we := range e.WriteErrors {
			if we.Code == 11000 {
				return true
			}
		}
	}
	// Also check for BulkWriteException, which can contain duplicate key errors
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, writeError := range bwe.WriteErrors {
			if writeError.Code == 11000 {
				return true
			}
		}
	}
	return false
}
