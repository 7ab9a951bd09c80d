package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/llxisdsh/qsync/internal/scenario"
)

const scenarioExample = `  # Three workers contending for a fair mutex
  qsync mutex --workers 3 --iterations 100 --fair

  # Eight workers sharing two permits, sampled every 100µs
  qsync semaphore --permits 2 --workers 8 --sample 100us

  # Producers and consumers over a bounded queue
  qsync prodcons --producers 4 --consumers 2 --capacity 16
`

// flagReader collects every flag lookup error instead of stopping at the
// first one.
type flagReader struct {
	flags *pflag.FlagSet
	merr  error
}

func (r *flagReader) getInt(name string) int {
	v, err := r.flags.GetInt(name)
	if err != nil {
		r.merr = multierror.Append(r.merr, err)
	}
	return v
}

func (r *flagReader) getInt64(name string) int64 {
	v, err := r.flags.GetInt64(name)
	if err != nil {
		r.merr = multierror.Append(r.merr, err)
	}
	return v
}

func (r *flagReader) getDuration(name string) time.Duration {
	v, err := r.flags.GetDuration(name)
	if err != nil {
		r.merr = multierror.Append(r.merr, err)
	}
	return v
}

func (r *flagReader) getBool(name string) bool {
	v, err := r.flags.GetBool(name)
	if err != nil {
		r.merr = multierror.Append(r.merr, err)
	}
	return v
}

func (r *flagReader) err() error {
	if r.merr != nil {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, r.merr)
	}
	return nil
}

func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().Duration("timeout", time.Minute, "Abort the scenario after this long")
}

// runScenario applies the timeout flag and prints the report.
func runScenario(cc *cobra.Command, timeout time.Duration, run func(context.Context) (scenario.Report, error)) error {
	ctx, cancel := context.WithTimeout(cc.Context(), timeout)
	defer cancel()

	r, err := run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(cc.OutOrStdout(), r.String())
	return nil
}

// NewMutexCmd returns the mutex scenario command.
func NewMutexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mutex",
		Short:   "Check mutual exclusion under contention",
		Example: scenarioExample,
		RunE: func(cc *cobra.Command, _ []string) error {
			r := &flagReader{flags: cc.Flags()}
			cfg := scenario.MutexConfig{
				Workers:    r.getInt("workers"),
				Iterations: r.getInt("iterations"),
				Hold:       r.getDuration("hold"),
				Fair:       r.getBool("fair"),
			}
			timeout := r.getDuration("timeout")
			if err := r.err(); err != nil {
				return err
			}
			return runScenario(cc, timeout, func(ctx context.Context) (scenario.Report, error) {
				return scenario.RunMutex(ctx, cfg)
			})
		},
	}

	cmd.Flags().Int("workers", 3, "Number of contending goroutines")
	cmd.Flags().Int("iterations", 100, "Acquisitions per goroutine")
	cmd.Flags().Duration("hold", 0, "Time spent inside each critical section")
	cmd.Flags().Bool("fair", false, "Grant the lock in arrival order")
	addCommonFlags(cmd)

	return cmd
}

// NewSemaphoreCmd returns the semaphore scenario command.
func NewSemaphoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "semaphore",
		Short:   "Check that holders never exceed the permits",
		Example: scenarioExample,
		RunE: func(cc *cobra.Command, _ []string) error {
			r := &flagReader{flags: cc.Flags()}
			cfg := scenario.SemaphoreConfig{
				Permits:        r.getInt64("permits"),
				Workers:        r.getInt("workers"),
				Iterations:     r.getInt("iterations"),
				Hold:           r.getDuration("hold"),
				SampleInterval: r.getDuration("sample"),
				Fair:           r.getBool("fair"),
			}
			timeout := r.getDuration("timeout")
			if err := r.err(); err != nil {
				return err
			}
			return runScenario(cc, timeout, func(ctx context.Context) (scenario.Report, error) {
				return scenario.RunSemaphore(ctx, cfg)
			})
		},
	}

	cmd.Flags().Int64("permits", 2, "Initial permits")
	cmd.Flags().Int("workers", 8, "Number of contending goroutines")
	cmd.Flags().Int("iterations", 50, "Acquisitions per goroutine")
	cmd.Flags().Duration("hold", 100*time.Microsecond, "Time each holder keeps its permit")
	cmd.Flags().Duration("sample", 50*time.Microsecond, "Interval between holder samples")
	cmd.Flags().Bool("fair", false, "Grant permits in arrival order")
	addCommonFlags(cmd)

	return cmd
}

// NewProdConsCmd returns the producer/consumer scenario command.
func NewProdConsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prodcons",
		Short:   "Move items through a bounded blocking queue",
		Example: scenarioExample,
		RunE: func(cc *cobra.Command, _ []string) error {
			r := &flagReader{flags: cc.Flags()}
			cfg := scenario.QueueConfig{
				Producers: r.getInt("producers"),
				Consumers: r.getInt("consumers"),
				Items:     r.getInt("items"),
				Capacity:  r.getInt("capacity"),
			}
			timeout := r.getDuration("timeout")
			if err := r.err(); err != nil {
				return err
			}
			return runScenario(cc, timeout, func(ctx context.Context) (scenario.Report, error) {
				return scenario.RunProducerConsumer(ctx, cfg)
			})
		},
	}

	cmd.Flags().Int("producers", 2, "Number of producing goroutines")
	cmd.Flags().Int("consumers", 2, "Number of consuming goroutines")
	cmd.Flags().Int("items", 1000, "Items put by each producer")
	cmd.Flags().Int("capacity", 8, "Queue capacity")
	addCommonFlags(cmd)

	return cmd
}
