// Package service orchestrates carts, checkout, persistence, reports and
// change notifications for the shop.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"motopos/backend/internal/cache"
	"motopos/backend/internal/cart"
	"motopos/backend/internal/domain"
	"motopos/backend/internal/logger"
	"motopos/backend/internal/metrics"
	"motopos/backend/internal/store"
	"motopos/backend/internal/xid"
)

var (
	ErrCheckoutInProgress = errors.New("a checkout is already in progress for this terminal")
	ErrAdminRequired      = errors.New("admin role required")
	ErrInvalidTransition  = errors.New("work order status transition not allowed")
	ErrInvalidRange       = errors.New("invalid date range")
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	DefaultBranchID string
	Location        *time.Location
	ReportCacheTTL  time.Duration
	Cache           cache.ReportCache
	Notifier        cache.Notifier
	Metrics         *metrics.ShopMetrics
	Logger          *logger.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

type Service struct {
	repo            store.Repository
	carts           *cart.Registry
	cache           cache.ReportCache
	notifier        cache.Notifier
	metrics         *metrics.ShopMetrics
	log             *logger.Logger
	defaultBranchID string
	loc             *time.Location
	cacheTTL        time.Duration
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.DefaultBranchID == "" {
		opts.DefaultBranchID = "branch-hcm"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ReportCacheTTL <= 0 {
		opts.ReportCacheTTL = time.Minute
	}
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.Notifier == nil {
		opts.Notifier = cache.NoopNotifier{}
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:            repo,
		carts:           cart.NewRegistry(),
		cache:           opts.Cache,
		notifier:        opts.Notifier,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		defaultBranchID: opts.DefaultBranchID,
		loc:             opts.Location,
		cacheTTL:        opts.ReportCacheTTL,
		now:             opts.Now,
	}
}

func (s *Service) DefaultBranchID() string {
	return s.defaultBranchID
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// ParseDateRange turns inclusive YYYY-MM-DD bounds into a half-open
// [from, to) interval in the shop's time zone. Empty bounds stay open.
func (s *Service) ParseDateRange(fromDate, toDate string) (time.Time, time.Time, error) {
	var from, to time.Time
	if v := strings.TrimSpace(fromDate); v != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: from: %v", ErrInvalidRange, err)
		}
		from = parsed
	}
	if v := strings.TrimSpace(toDate); v != "" {
		parsed, err := time.ParseInLocation(time.DateOnly, v, s.loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("%w: to: %v", ErrInvalidRange, err)
		}
		to = parsed.AddDate(0, 0, 1)
	}
	if !from.IsZero() && !to.IsZero() && !from.Before(to) {
		return time.Time{}, time.Time{}, ErrInvalidRange
	}
	return from, to, nil
}

func (s *Service) branch(branchID string) string {
	if b := strings.TrimSpace(branchID); b != "" {
		return b
	}
	return s.defaultBranchID
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Actor{}, ErrAdminRequired
	}
	return actor, nil
}

func (s *Service) logAudit(ctx context.Context, branchID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		BranchID:      s.branch(branchID),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now().UTC(),
	}); err != nil {
		s.log.Zerolog(ctx).Warn().Err(err).
			Str("action", action).
			Str("entity", entityType+"/"+entityID).
			Msg("failed to write audit log")
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, branchID string, from, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, s.branch(branchID), from, to, limit)
}

// salesChanged invalidates this instance's report cache and tells the other
// instances to do the same.
func (s *Service) salesChanged(ctx context.Context, branchID, saleID string, kind cache.SaleEventKind) {
	s.invalidateReports(ctx, branchID)
	event := cache.SaleEvent{BranchID: branchID, SaleID: saleID, Kind: kind, At: s.now().UTC()}
	if err := s.notifier.Publish(ctx, event); err != nil {
		s.log.Warn(s.log.WithField(ctx, "sale_id", saleID), "failed to publish sale event", err)
	}
}

// HandleSaleEvent is the subscriber callback for change notifications.
func (s *Service) HandleSaleEvent(ctx context.Context, event cache.SaleEvent) {
	ctx = s.log.WithFields(ctx, map[string]any{"branch_id": event.BranchID, "sale_id": event.SaleID, "kind": string(event.Kind)})
	s.log.Debug(ctx, "sale event received")
	s.invalidateReports(ctx, event.BranchID)
}

func (s *Service) invalidateReports(ctx context.Context, branchID string) {
	if err := s.cache.Invalidate(ctx, branchID); err != nil {
		s.log.Warn(s.log.WithField(ctx, "branch_id", branchID), "failed to invalidate report cache", err)
		return
	}
	s.metrics.IncInvalidation(branchID)
}
