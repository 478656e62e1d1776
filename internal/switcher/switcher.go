// Package switcher moves an interface to a different profile and puts the
// enablement of every other profile back afterwards, whatever the outcome.
package switcher

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"x-netctl/internal/catalog"
	"x-netctl/internal/profile"
	"x-netctl/internal/supplicant"
)

// DefaultPollInterval is how often the association state is polled
const DefaultPollInterval = time.Second

var (
	// ErrAssociationTimeout is returned when the target never reached
	// COMPLETED. The interface has been restored.
	ErrAssociationTimeout = errors.New("association timed out")
	// ErrInterrupted is returned when the switch context was cancelled.
	// The interface has been restored.
	ErrInterrupted = errors.New("switch interrupted")
)

// State is a step of a switch attempt
type State int

const (
	Idle State = iota
	Resolved
	Snapshotted
	Switching
	Waiting
	Restoring
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolved:
		return "resolved"
	case Snapshotted:
		return "snapshotted"
	case Switching:
		return "switching"
	case Waiting:
		return "waiting"
	case Restoring:
		return "restoring"
	case Done:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TimeoutSource supplies the association timeout of a profile
type TimeoutSource interface {
	TimeoutWPA(name string) (time.Duration, error)
}

// Coordinator performs switches. It holds no state between calls.
type Coordinator struct {
	catalog      *catalog.Catalog
	timeouts     TimeoutSource
	pollInterval time.Duration
	logger       *zap.Logger
}

// New creates a coordinator. A nil timeouts uses profile.DefaultTimeoutWPA
// for every profile; pollInterval <= 0 uses DefaultPollInterval.
func New(cat *catalog.Catalog, timeouts TimeoutSource, pollInterval time.Duration, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Coordinator{
		catalog:      cat,
		timeouts:     timeouts,
		pollInterval: pollInterval,
		logger:       logger.Named("switcher"),
	}
}

// SwitchTo selects the profile name on its interface and waits for it to
// associate. Cancelling ctx interrupts the wait; the restore step runs on
// every path once the interface has been touched.
func (c *Coordinator) SwitchTo(ctx context.Context, name string) (err error) {
	log := c.logger.With(zap.String("profile", name))
	step := func(s State) { log.Debug("switch state", zap.Stringer("state", s)) }
	step(Idle)

	rec, err := c.catalog.Resolve(ctx, name)
	if err != nil {
		return err
	}
	log = log.With(zap.String("interface", rec.Interface), zap.Int("network", rec.NetworkID))
	step(Resolved)

	timeout := c.timeout(log, name)

	client, err := c.catalog.Dial(ctx, rec.Interface)
	if err != nil {
		return err
	}
	defer client.Close()

	snapshot, err := TakeSnapshot(ctx, client)
	if err != nil {
		return err
	}
	step(Snapshotted)

	if ctx.Err() != nil {
		return interrupted(ctx)
	}

	defer func() {
		step(Restoring)
		if rerr := Restore(context.WithoutCancel(ctx), client, snapshot, rec.NetworkID, log); rerr != nil {
			err = errors.Join(err, rerr)
		}
		step(Done)
		if err != nil {
			log.Info("switch failed", zap.Error(err))
		} else {
			log.Info("switched")
		}
	}()

	step(Switching)
	if err := client.SelectNetwork(ctx, rec.NetworkID); err != nil {
		if ctx.Err() != nil {
			return interrupted(ctx)
		}
		return err
	}

	step(Waiting)
	if err := c.wait(ctx, client, timeout); err != nil {
		if errors.Is(err, ErrAssociationTimeout) {
			return fmt.Errorf("profile '%s' on %s: %w after %s", name, rec.Interface, err, timeout)
		}
		return err
	}
	return nil
}

func (c *Coordinator) timeout(log *zap.Logger, name string) time.Duration {
	if c.timeouts == nil {
		return profile.DefaultTimeoutWPA
	}
	timeout, err := c.timeouts.TimeoutWPA(name)
	if timeout <= 0 {
		timeout = profile.DefaultTimeoutWPA
	}
	if err != nil {
		log.Warn("using default association timeout", zap.Duration("timeout", timeout), zap.Error(err))
	}
	return timeout
}

// wait polls the connection state until it is COMPLETED, the timeout
// elapses or ctx is cancelled. Staleness is bounded by the poll interval.
func (c *Coordinator) wait(ctx context.Context, client supplicant.Client, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		state, err := client.State(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return interrupted(ctx)
			}
			return err
		}
		if state == supplicant.StateCompleted {
			return nil
		}

		select {
		case <-ctx.Done():
			return interrupted(ctx)
		case <-deadline.C:
			return ErrAssociationTimeout
		case <-ticker.C:
		}
	}
}

func interrupted(ctx context.Context) error {
	return fmt.Errorf("%w: %w", ErrInterrupted, context.Cause(ctx))
}

// Snapshot is the sorted set of network ids that were enabled before a
// switch
type Snapshot []int

// Contains reports whether id was enabled
func (s Snapshot) Contains(id int) bool {
	_, ok := slices.BinarySearch(s, id)
	return ok
}

// TakeSnapshot records every network of the client that is not disabled
func TakeSnapshot(ctx context.Context, client supplicant.Client) (Snapshot, error) {
	networks, err := client.ListNetworks(ctx)
	if err != nil {
		return nil, err
	}
	var snapshot Snapshot
	for _, net := range networks {
		if !net.Disabled {
			snapshot = append(snapshot, net.ID)
		}
	}
	slices.Sort(snapshot)
	return snapshot, nil
}

// Restore re-enables every snapshot network. When the client is not
// associated and target was disabled before the switch, target is disabled
// again. Running it more than once leaves the same enablement as running it
// once.
func Restore(ctx context.Context, client supplicant.Client, snapshot Snapshot, target int, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	var errs []error
	for _, id := range snapshot {
		if err := client.EnableNetwork(ctx, id); err != nil {
			logger.Warn("failed to re-enable network", zap.Int("id", id), zap.Error(err))
			errs = append(errs, err)
		}
	}

	if snapshot.Contains(target) {
		return errors.Join(errs...)
	}

	state, err := client.State(ctx)
	if err != nil {
		// Unknown state counts as not associated
		logger.Warn("failed to read state during restore", zap.Error(err))
		errs = append(errs, err)
	}
	if state != supplicant.StateCompleted {
		if err := client.DisableNetwork(ctx, target); err != nil {
			logger.Warn("failed to disable target", zap.Int("id", target), zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
