package backfill

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/phonelink/internal/apperr"
	"github.com/sells-group/phonelink/internal/directory"
	"github.com/sells-group/phonelink/internal/identity"
	"github.com/sells-group/phonelink/internal/metrics"
	"github.com/sells-group/phonelink/internal/model"
	"github.com/sells-group/phonelink/internal/phone"
)

// DefaultConcurrency is the number of candidates reconciled at once.
const DefaultConcurrency = 20

// Request describes one backfill batch.
type Request struct {
	Domain    string `json:"domain"`
	Password  string `json:"password,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	DryRun    bool   `json:"dryRun,omitempty"`
	Community string `json:"communityCode,omitempty"`
}

// LinkRequest describes one phone-linking batch.
type LinkRequest struct {
	Limit     int    `json:"limit,omitempty"`
	DryRun    bool   `json:"dryRun,omitempty"`
	Community string `json:"communityCode,omitempty"`
}

// Orchestrator runs reconciliations over a candidate set with bounded
// parallelism and aggregates their outcomes. Callers authorize requests
// before invoking it.
type Orchestrator struct {
	accounts    identity.Store
	dir         directory.Store
	metrics     *metrics.Metrics
	concurrency int
	callTimeout time.Duration
	plan        phone.Plan
	newPassword PasswordFunc
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcurrency sets the worker limit. Non-positive values are ignored.
func WithConcurrency(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithCallTimeout sets the per-call timeout applied to every store call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.callTimeout = d
		}
	}
}

// WithMetrics records outcomes and batch durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithPlan overrides the numbering plan used to normalize phones.
func WithPlan(p phone.Plan) Option {
	return func(o *Orchestrator) {
		o.plan = p
	}
}

// WithPasswordFunc overrides the temporary password generator.
func WithPasswordFunc(fn PasswordFunc) Option {
	return func(o *Orchestrator) {
		o.newPassword = fn
	}
}

// New creates an Orchestrator over the identity and directory stores.
func New(accounts identity.Store, dir directory.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		accounts:    accounts,
		dir:         dir,
		concurrency: DefaultConcurrency,
		callTimeout: DefaultCallTimeout,
		plan:        phone.Taiwan,
		newPassword: TempPassword,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run backfills derived emails for every eligible record. Per-record
// failures are reported in the result; only setup failures return an
// error.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*model.BatchResult, error) {
	domain := strings.TrimPrefix(strings.TrimSpace(req.Domain), "@")
	if domain == "" {
		return nil, apperr.New(apperr.InvalidArgument, "domain is required")
	}

	cands, err := SelectCandidates(ctx, o.dir, Filter{Community: req.Community, Limit: req.Limit, Plan: o.plan})
	if err != nil {
		return nil, err
	}

	r := NewReconciler(o.accounts, o.dir, Options{
		Domain:      domain,
		Password:    strings.TrimSpace(req.Password),
		DryRun:      req.DryRun,
		CallTimeout: o.callTimeout,
	}, o.newPassword)

	return o.process(ctx, "backfill", req.DryRun, cands, r.Reconcile), nil
}

// RunLinkPhones attaches canonical phones to existing identity accounts.
func (o *Orchestrator) RunLinkPhones(ctx context.Context, req LinkRequest) (*model.BatchResult, error) {
	cands, err := SelectLinkCandidates(ctx, o.dir, Filter{Community: req.Community, Limit: req.Limit, Plan: o.plan})
	if err != nil {
		return nil, err
	}

	r := NewReconciler(o.accounts, o.dir, Options{
		DryRun:      req.DryRun,
		CallTimeout: o.callTimeout,
	}, o.newPassword)

	return o.process(ctx, "link", req.DryRun, cands, r.Link), nil
}

// process fans cands out to fn under the concurrency limit. Each outcome
// lands at its candidate's index so Items keep candidate order.
func (o *Orchestrator) process(ctx context.Context, op string, dryRun bool, cands []model.Candidate, fn func(context.Context, model.Candidate) model.Outcome) *model.BatchResult {
	result := &model.BatchResult{
		RunID:     uuid.NewString(),
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Items:     make([]model.Outcome, 0, len(cands)),
	}
	log := zap.L().With(zap.String("run_id", result.RunID), zap.String("operation", op))

	if len(cands) == 0 {
		log.Info("no candidates found")
		return result
	}

	log.Info("processing batch",
		zap.Int("candidates", len(cands)),
		zap.Int("concurrency", o.concurrency),
		zap.Bool("dry_run", dryRun),
	)

	outcomes := make([]model.Outcome, len(cands))
	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, c := range cands {
		g.Go(func() error {
			out := fn(ctx, c)
			outcomes[i] = out
			o.metrics.IncOutcome(op, string(out.Kind))

			if out.Kind.Failed() {
				log.Warn("reconcile failed",
					zap.String("uid", out.ID),
					zap.String("action", string(out.Kind)),
					zap.String("detail", out.Detail),
				)
			} else {
				log.Debug("reconciled",
					zap.String("uid", out.ID),
					zap.String("action", string(out.Kind)),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, out := range outcomes {
		result.Add(out)
	}
	result.Duration = time.Since(result.StartedAt)
	o.metrics.ObserveBatch(op, result.Duration)

	log.Info("batch complete",
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("linked", result.Linked),
		zap.Int("planned", result.Planned),
		zap.Int("failures", result.Failures()),
		zap.Duration("duration", result.Duration),
	)
	return result
}
