package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// ErrInvalidConfig wraps every configuration problem found by Validate.
var ErrInvalidConfig = errors.New("invalid scenario config")

// MutexConfig configures RunMutex.
type MutexConfig struct {
	Workers    int
	Iterations int
	// Hold is how long each acquisition keeps the lock.
	Hold time.Duration
	Fair bool
}

// SemaphoreConfig configures RunSemaphore.
type SemaphoreConfig struct {
	Permits    int64
	Workers    int
	Iterations int
	Hold       time.Duration
	// SampleInterval is the period at which the number of holders is
	// recorded.
	SampleInterval time.Duration
	Fair           bool
}

// QueueConfig configures RunProducerConsumer.
type QueueConfig struct {
	Producers int
	Consumers int
	// Items is the number of items each producer puts.
	Items    int
	Capacity int
}

func positive(merr error, name string, v int64) error {
	if v <= 0 {
		merr = multierror.Append(merr, fmt.Errorf("%s must be positive, got %d", name, v))
	}
	return merr
}

func nonNegative(merr error, name string, d time.Duration) error {
	if d < 0 {
		merr = multierror.Append(merr, fmt.Errorf("%s must not be negative, got %s", name, d))
	}
	return merr
}

func wrapInvalid(merr error) error {
	if merr == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, merr)
}

// Validate reports every problem with c.
func (c MutexConfig) Validate() error {
	var merr error
	merr = positive(merr, "workers", int64(c.Workers))
	merr = positive(merr, "iterations", int64(c.Iterations))
	merr = nonNegative(merr, "hold", c.Hold)
	return wrapInvalid(merr)
}

// Validate reports every problem with c.
func (c SemaphoreConfig) Validate() error {
	var merr error
	merr = positive(merr, "permits", c.Permits)
	merr = positive(merr, "workers", int64(c.Workers))
	merr = positive(merr, "iterations", int64(c.Iterations))
	merr = nonNegative(merr, "hold", c.Hold)
	merr = positive(merr, "sample interval", int64(c.SampleInterval))
	return wrapInvalid(merr)
}

// Validate reports every problem with c.
func (c QueueConfig) Validate() error {
	var merr error
	merr = positive(merr, "producers", int64(c.Producers))
	merr = positive(merr, "consumers", int64(c.Consumers))
	merr = positive(merr, "items", int64(c.Items))
	merr = positive(merr, "capacity", int64(c.Capacity))
	return wrapInvalid(merr)
}
