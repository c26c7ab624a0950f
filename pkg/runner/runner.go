// Package runner executes descriptors against a collection handle, one at a
// time and in order, stopping at the first failure.
package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/mnohosten/querybook/pkg/aggregation"
	"github.com/mnohosten/querybook/pkg/database"
	"github.com/mnohosten/querybook/pkg/descriptor"
	"github.com/mnohosten/querybook/pkg/index"
	"github.com/mnohosten/querybook/pkg/metrics"
	"github.com/mnohosten/querybook/pkg/query"
	"github.com/mnohosten/querybook/pkg/update"
)

// State is a runner state
type State string

const (
	StateIdle      State = "Idle"
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
)

const (
	eventStart    = "start"
	eventComplete = "complete"
	eventFail     = "fail"
	eventReset    = "reset"
)

// Handle is the collection a runner operates on. *database.Collection
// implements it.
type Handle interface {
	Find(q *query.Query) (*database.Cursor, error)
	UpdateOne(filter query.Filter, m *update.Mutation) (*database.UpdateResult, error)
	DeleteOne(filter query.Filter) (*database.DeleteResult, error)
	Aggregate(p *aggregation.Pipeline) (*database.Cursor, error)
	CreateIndex(keys index.KeySpec) (string, error)
	Explain(q *query.Query) (*database.ExplainResult, error)
}

var _ Handle = (*database.Collection)(nil)

// ExplainHook receives the execution statistics of find operations that
// asked for them
type ExplainHook func(index int, d *descriptor.Descriptor, stats *database.ExplainResult)

// Option configures a Runner
type Option func(*Runner)

// WithLogger sets the logger (default: no-op)
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMetrics records operations and runs into c
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Runner) { r.metrics = c }
}

// WithExplainHook installs the explain hook
func WithExplainHook(hook ExplainHook) Option {
	return func(r *Runner) { r.explainHook = hook }
}

// WithSlowThreshold logs a warning for operations slower than d
func WithSlowThreshold(d time.Duration) Option {
	return func(r *Runner) { r.slowThreshold = d }
}

// Runner executes descriptors sequentially against one handle. A runner
// moves Idle -> Running -> Completed or Failed; Reset returns it to Idle.
type Runner struct {
	handle        Handle
	logger        *zap.Logger
	metrics       *metrics.Collector
	explainHook   ExplainHook
	slowThreshold time.Duration
	machine       *fsm.FSM
	mu            sync.Mutex
}

// New creates a runner for handle
func New(handle Handle, opts ...Option) (*Runner, error) {
	if handle == nil {
		return nil, ErrNilHandle
	}

	r := &Runner{handle: handle, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}

	r.machine = fsm.NewFSM(
		string(StateIdle),
		fsm.Events{
			{Name: eventStart, Src: []string{string(StateIdle)}, Dst: string(StateRunning)},
			{Name: eventComplete, Src: []string{string(StateRunning)}, Dst: string(StateCompleted)},
			{Name: eventFail, Src: []string{string(StateRunning)}, Dst: string(StateFailed)},
			{Name: eventReset, Src: []string{string(StateCompleted), string(StateFailed)}, Dst: string(StateIdle)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				r.logger.Info("runner state changed",
					zap.String("from", e.Src),
					zap.String("to", e.Dst),
					zap.String("event", e.Event))
			},
		},
	)

	return r, nil
}

// State returns the current state
func (r *Runner) State() State {
	return State(r.machine.Current())
}

// Reset returns a finished runner to Idle
func (r *Runner) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.machine.Event(context.Background(), eventReset); err != nil {
		return fmt.Errorf("runner: cannot reset from %s: %w", r.machine.Current(), err)
	}
	return nil
}

// Run executes descs in order. It stops at the first operation that fails
// and returns a *RunError naming it; the report holds the results of the
// operations that ran.
func (r *Runner) Run(ctx context.Context, descs []*descriptor.Descriptor) (*Report, error) {
	return r.run(ctx, len(descs), func(i int) (*descriptor.Descriptor, error) {
		if descs[i] == nil {
			return nil, fmt.Errorf("%w: nil descriptor", descriptor.ErrInvalidDescriptor)
		}
		return descs[i], nil
	})
}

// RunSpecs builds each descriptor from its mapping form right before it
// runs. An invalid mapping fails the run at its index; earlier operations
// have already been applied.
func (r *Runner) RunSpecs(ctx context.Context, specs []map[string]interface{}) (*Report, error) {
	return r.run(ctx, len(specs), func(i int) (*descriptor.Descriptor, error) {
		return descriptor.FromSpec(specs[i])
	})
}

func (r *Runner) run(ctx context.Context, n int, next func(int) (*descriptor.Descriptor, error)) (*Report, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// transitions must not be interrupted by the caller's cancellation
	fsmCtx := context.WithoutCancel(ctx)

	if err := r.machine.Event(fsmCtx, eventStart); err != nil {
		return nil, fmt.Errorf("%w: state is %s", ErrNotIdle, r.machine.Current())
	}

	report := &Report{
		RunID:       uuid.NewString(),
		FailedIndex: -1,
		StartedAt:   time.Now(),
	}
	log := r.logger.With(zap.String("runID", report.RunID))
	log.Info("run started", zap.Int("operations", n))

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return r.fail(fsmCtx, log, report, &RunError{Index: i, Err: err})
		}

		d, err := next(i)
		if err != nil {
			return r.fail(fsmCtx, log, report, &RunError{Index: i, Err: err})
		}

		log.Debug("operation started", zap.Int("index", i), zap.Stringer("operation", d))
		res, err := r.execute(i, d)
		if r.metrics != nil {
			r.metrics.RecordOperation(d.Kind().String(), res.Duration, err)
		}
		if err != nil {
			return r.fail(fsmCtx, log, report, &RunError{Index: i, Kind: d.Kind().String(), Err: err})
		}
		if r.slowThreshold > 0 && res.Duration > r.slowThreshold {
			log.Warn("slow operation",
				zap.Int("index", i),
				zap.Stringer("operation", d),
				zap.Duration("duration", res.Duration))
		}

		report.Results = append(report.Results, res)
	}

	report.Duration = time.Since(report.StartedAt)
	if err := r.machine.Event(fsmCtx, eventComplete); err != nil {
		return report, fmt.Errorf("runner: %w", err)
	}
	report.State = StateCompleted
	if r.metrics != nil {
		r.metrics.RecordRun(string(StateCompleted))
	}
	log.Info("run completed", zap.Int("operations", n), zap.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) fail(ctx context.Context, log *zap.Logger, report *Report, runErr *RunError) (*Report, error) {
	report.Duration = time.Since(report.StartedAt)
	report.FailedIndex = runErr.Index
	if err := r.machine.Event(ctx, eventFail); err != nil {
		log.Error("failed to record run failure", zap.Error(err))
	}
	report.State = StateFailed
	if r.metrics != nil {
		r.metrics.RecordRun(string(StateFailed))
	}
	log.Error("run failed",
		zap.Int("index", runErr.Index),
		zap.String("kind", runErr.Kind),
		zap.Error(runErr.Err))
	return report, runErr
}

// execute runs one descriptor to completion
func (r *Runner) execute(i int, d *descriptor.Descriptor) (Result, error) {
	res := Result{Index: i, Kind: d.Kind()}
	start := time.Now()

	var err error
	switch d.Kind() {
	case descriptor.KindFind:
		if d.Explain() {
			if res.Explain, err = r.handle.Explain(d.Query()); err != nil {
				break
			}
			if r.explainHook != nil {
				r.explainHook(i, d, res.Explain)
			}
		}
		var cursor *database.Cursor
		if cursor, err = r.handle.Find(d.Query()); err == nil {
			res.Documents, err = cursor.Documents()
		}
	case descriptor.KindUpdateOne:
		res.Update, err = r.handle.UpdateOne(d.Filter(), d.Mutation())
	case descriptor.KindDeleteOne:
		res.Delete, err = r.handle.DeleteOne(d.Filter())
	case descriptor.KindAggregate:
		var cursor *database.Cursor
		if cursor, err = r.handle.Aggregate(d.Pipeline()); err == nil {
			res.Documents, err = cursor.Documents()
		}
	case descriptor.KindCreateIndex:
		res.IndexName, err = r.handle.CreateIndex(d.Keys())
	default:
		err = fmt.Errorf("%w: unknown kind %v", descriptor.ErrInvalidDescriptor, d.Kind())
	}

	res.Duration = time.Since(start)
	if err == nil && r.metrics != nil && res.Documents != nil {
		r.metrics.RecordDocuments(d.Kind().String(), len(res.Documents))
	}
	return res, err
}
