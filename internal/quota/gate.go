// Package quota enforces the per-owner scan allowance over rolling billing cycles.
//
// CanScan is read-only and fails open: denial only ever follows a positively
// confirmed over-limit counter. IncrementUsage is the single place where a
// cycle rollover is written.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/cardscan/internal/metrics"
	"github.com/mmynk/cardscan/internal/models"
)

const (
	// ReasonLimitReached is the denial reason when the cycle allowance is used up.
	ReasonLimitReached = "limit_reached"

	DefaultWarnPercent = 80
	DefaultCycleLength = 30 * 24 * time.Hour
)

// ErrUsageWrite wraps every failure to record a scan.
var ErrUsageWrite = errors.New("failed to record scan usage")

// Store is the slice of the record store the gate needs.
type Store interface {
	GetProfile(ctx context.Context, ownerID string) (*models.Profile, error)
	LatestUsage(ctx context.Context, ownerID string) (*models.UsageCounter, error)
	CreateUsage(ctx context.Context, counter *models.UsageCounter) error
	IncrementUsage(ctx context.Context, counterID string) error
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
	Warning bool

	// Used and Limit describe the active cycle. Both are zero when the owner
	// has no active counter, and Limit is zero for admins.
	Used  int
	Limit int
}

// Gate decides whether an owner may scan and records scans.
type Gate struct {
	store       Store
	warnPercent int
	cycleLength time.Duration
	now         func() time.Time
	metrics     *metrics.Metrics
}

type Option func(*Gate)

// WithWarnPercent sets the usage percentage at which a warning is raised.
func WithWarnPercent(p int) Option {
	return func(g *Gate) {
		if p > 0 && p <= 100 {
			g.warnPercent = p
		}
	}
}

// WithCycleLength sets the cycle length used when no billing cycle end is known.
func WithCycleLength(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.cycleLength = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		g.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) {
		g.metrics = m
	}
}

// New creates a Gate over store.
func New(store Store, opts ...Option) (*Gate, error) {
	if store == nil {
		return nil, fmt.Errorf("quota store is required")
	}
	g := &Gate{
		store:       store,
		warnPercent: DefaultWarnPercent,
		cycleLength: DefaultCycleLength,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CanScan decides whether ownerID may scan one more card.
func (g *Gate) CanScan(ctx context.Context, ownerID string) Decision {
	d, err := g.check(ctx, ownerID)
	if err != nil {
		slog.Warn("Quota check failed, allowing scan", "owner_id", ownerID, "error", err)
		g.metrics.IncrementQuotaDecision("fail_open")
		return Decision{Allowed: true}
	}
	return d
}

func (g *Gate) check(ctx context.Context, ownerID string) (Decision, error) {
	profile, err := g.store.GetProfile(ctx, ownerID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get profile: %w", err)
	}
	if profile == nil {
		profile = &models.Profile{OwnerID: ownerID, Tier: models.TierStarter}
	}
	if profile.IsAdmin {
		g.metrics.IncrementQuotaDecision("bypass")
		return Decision{Allowed: true}, nil
	}

	limit := profile.ScanLimit()

	counter, err := g.store.LatestUsage(ctx, ownerID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to get usage: %w", err)
	}
	// No counter yet, or the cycle is over and IncrementUsage will roll it.
	if counter == nil || !counter.Active(g.now().Unix()) {
		g.metrics.IncrementQuotaDecision("allowed")
		return Decision{Allowed: true, Limit: limit}, nil
	}

	d := Decision{Used: counter.ScansCount, Limit: limit}
	switch {
	case counter.ScansCount >= limit:
		d.Reason = ReasonLimitReached
		g.metrics.IncrementQuotaDecision("denied")
	case g.nearLimit(counter.ScansCount, limit):
		d.Allowed = true
		d.Warning = true
		g.metrics.IncrementQuotaDecision("warning")
	default:
		d.Allowed = true
		g.metrics.IncrementQuotaDecision("allowed")
	}
	return d, nil
}

// nearLimit is true when the scan being requested brings usage to the
// warning threshold: 79 used of 100 warns at 80%.
func (g *Gate) nearLimit(used, limit int) bool {
	return (used+1)*100 >= limit*g.warnPercent
}

// IncrementUsage records one scan for ownerID. Within an active cycle the
// counter is bumped in place; otherwise a fresh cycle starts at one scan.
func (g *Gate) IncrementUsage(ctx context.Context, ownerID string) error {
	now := g.now()

	counter, err := g.store.LatestUsage(ctx, ownerID)
	if err != nil {
		g.metrics.IncrementUsageWrite("error")
		return fmt.Errorf("%w: %v", ErrUsageWrite, err)
	}

	if counter != nil && counter.Active(now.Unix()) {
		if err := g.store.IncrementUsage(ctx, counter.ID); err != nil {
			g.metrics.IncrementUsageWrite("error")
			return fmt.Errorf("%w: %v", ErrUsageWrite, err)
		}
		g.metrics.IncrementUsageWrite("increment")
		return nil
	}

	fresh := &models.UsageCounter{
		OwnerID:    ownerID,
		ScansCount: 1,
		CycleStart: now.Unix(),
		CycleEnd:   g.cycleEnd(ctx, ownerID, now),
		CreatedAt:  now.Unix(),
	}
	if err := g.store.CreateUsage(ctx, fresh); err != nil {
		g.metrics.IncrementUsageWrite("error")
		return fmt.Errorf("%w: %v", ErrUsageWrite, err)
	}
	g.metrics.IncrementUsageWrite("rollover")
	slog.Info("Usage cycle started", "owner_id", ownerID, "cycle_end", time.Unix(fresh.CycleEnd, 0).UTC())
	return nil
}

// cycleEnd prefers the owner's billing cycle end when it lies in the future.
func (g *Gate) cycleEnd(ctx context.Context, ownerID string, now time.Time) int64 {
	profile, err := g.store.GetProfile(ctx, ownerID)
	if err != nil {
		slog.Warn("Failed to read billing cycle end, using default cycle", "owner_id", ownerID, "error", err)
	}
	if err == nil && profile != nil && profile.BillingCycleEnd > now.Unix() {
		return profile.BillingCycleEnd
	}
	return now.Add(g.cycleLength).Unix()
}
