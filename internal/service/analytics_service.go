package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-desk/internal/analytics"
	"github.com/spec-kit/complaint-desk/internal/domain"
	"github.com/spec-kit/complaint-desk/internal/observability"
	"github.com/spec-kit/complaint-desk/internal/policy"
	"github.com/spec-kit/complaint-desk/internal/repository"
	apperrors "github.com/spec-kit/complaint-desk/pkg/util"
)

// OverviewQuery selects the analytics window and drill-down.
type OverviewQuery struct {
	Range      domain.TimeRange
	Department string
}

// AnalyticsService aggregates dashboard statistics over the actor's scope.
type AnalyticsService struct {
	store    repository.Store
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *zap.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// NewAnalyticsService constructs the service. cache may be nil.
func NewAnalyticsService(store repository.Store, cache *redis.Client, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		store:    store,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With(zap.String("component", "analytics_service")),
		tracer:   otel.Tracer(tracerName + "/analytics"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ComputeOverview builds the snapshot for actor's organization. Every read is
// bounded by the actor's visibility scope, narrowed by the department filter.
func (s *AnalyticsService) ComputeOverview(ctx context.Context, actor domain.Actor, query OverviewQuery) (domain.AnalyticsSnapshot, error) {
	if query.Range == "" {
		query.Range = domain.TimeRange30d
	}
	days := query.Range.Days()
	if days == 0 {
		return domain.AnalyticsSnapshot{}, apperrors.NewValidationError("range", "range must be one of 7d, 30d, 90d, 365d")
	}
	department := strings.TrimSpace(query.Department)
	if department == "" {
		department = domain.AllDepartments
	}
	if !actor.Role.IsStaff() {
		return domain.AnalyticsSnapshot{}, apperrors.NewForbidden("analytics are available to supervisors and admins")
	}

	scope := policy.ComputeFilter(actor).Narrow(department)
	cacheKey := overviewCacheKey(actor.OrganizationID, scope, query.Range, department)

	ctx, span := s.tracer.Start(ctx, "analytics.overview")
	span.SetAttributes(
		attribute.String("analytics.range", string(query.Range)),
		attribute.String("analytics.department", department),
	)
	defer span.End()

	if cached, ok := s.readCache(ctx, cacheKey, span); ok {
		return cached, nil
	}

	now := s.now()
	snapshot := domain.AnalyticsSnapshot{UserActivity: []domain.DailyActivity{}}
	if !scope.Empty {
		input, err := s.load(ctx, scope, now, days)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "load_failed")
			return domain.AnalyticsSnapshot{}, err
		}
		snapshot = analytics.Compute(input)
	} else {
		current, _ := analytics.Windows(now, days)
		snapshot.WindowStart, snapshot.WindowEnd = current.Start, current.End
		snapshot.UserActivity = analytics.DailySeries(now, days, nil, nil, nil)
		snapshot.GeneratedAt = now
	}
	snapshot.OrganizationID = actor.OrganizationID
	snapshot.Range = query.Range
	snapshot.Department = department

	span.SetAttributes(attribute.Int("analytics.total_tickets", snapshot.TotalTickets))
	s.writeCache(ctx, cacheKey, snapshot, span)
	return snapshot, nil
}

func (s *AnalyticsService) load(ctx context.Context, scope policy.TicketScope, now time.Time, days int) (analytics.Input, error) {
	repos := s.store.Repositories()
	_, previous := analytics.Windows(now, days)

	tickets, err := repos.Tickets.ListForAnalytics(ctx, scope, previous.Start, previous.Start)
	if err != nil {
		return analytics.Input{}, storeError(err, "ticket")
	}

	users, err := repos.Users.ListByOrganization(ctx, scope.OrganizationID)
	if err != nil {
		return analytics.Input{}, storeError(err, "user")
	}
	staff := users
	if scope.DepartmentID != nil {
		filtered := users[:0:0]
		for _, u := range users {
			if u.DepartmentID != nil && *u.DepartmentID == *scope.DepartmentID {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	departments, err := repos.Departments.ListByOrganization(ctx, scope.OrganizationID)
	if err != nil {
		return analytics.Input{}, storeError(err, "department")
	}
	if scope.DepartmentID != nil {
		filtered := departments[:0:0]
		for _, d := range departments {
			if d.ID == *scope.DepartmentID {
				filtered = append(filtered, d)
			}
		}
		departments = filtered
	}

	activities, err := repos.Activities.ListForScope(ctx, scope, analytics.SeriesStart(now, days))
	if err != nil {
		return analytics.Input{}, storeError(err, "activity")
	}

	return analytics.Input{
		Now:         now,
		Days:        days,
		Tickets:     tickets,
		Users:       users,
		Staff:       staff,
		Departments: departments,
		Activities:  activities,
	}, nil
}

func (s *AnalyticsService) readCache(ctx context.Context, key string, span trace.Span) (domain.AnalyticsSnapshot, bool) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return domain.AnalyticsSnapshot{}, false
	}
	cached, err := s.cache.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("failed to read analytics cache", zap.String("key", key), zap.Error(err))
			span.RecordError(err)
		}
		observability.RecordCacheLookup(false)
		return domain.AnalyticsSnapshot{}, false
	}
	var snapshot domain.AnalyticsSnapshot
	if err := json.Unmarshal([]byte(cached), &snapshot); err != nil {
		s.logger.Warn("discarding malformed analytics cache entry", zap.String("key", key), zap.Error(err))
		observability.RecordCacheLookup(false)
		return domain.AnalyticsSnapshot{}, false
	}
	snapshot.CacheHit = true
	span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
	observability.RecordCacheLookup(true)
	return snapshot, true
}

func (s *AnalyticsService) writeCache(ctx context.Context, key string, snapshot domain.AnalyticsSnapshot, span trace.Span) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn("failed to store analytics cache", zap.String("key", key), zap.Error(err))
		span.RecordError(err)
	}
}

func overviewCacheKey(organizationID string, scope policy.TicketScope, timeRange domain.TimeRange, department string) string {
	scopeKey := "org"
	switch {
	case scope.Empty:
		scopeKey = "none"
	case scope.DepartmentID != nil:
		scopeKey = "dept:" + *scope.DepartmentID
	}
	return fmt.Sprintf("analytics:overview:%s:%s:%s:%s", organizationID, scopeKey, timeRange, department)
}
