// Package analytics holds the pure aggregation formulas behind the overview
// dashboard. Callers load scoped data; nothing here performs I/O.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/spec-kit/complaint-desk/internal/domain"
)

const (
	maxPerformers = 5
	maxSeriesDays = 30
	day           = 24 * time.Hour
)

// Input is the scoped dataset for one overview.
type Input struct {
	Now  time.Time
	Days int
	// Tickets must include every in-scope ticket created or resolved since
	// Now - 2*Days.
	Tickets     []domain.Ticket
	Users       []domain.User
	// Staff ranks for the leaderboard. Resolvers may sit outside a
	// department filter, so callers pass the whole organization here;
	// nil falls back to Users.
	Staff       []domain.User
	Departments []domain.Department
	// Activities must include every in-scope entry since the series start.
	Activities []domain.Activity
}

// Window is a half-open or closed interval of time.
type Window struct {
	Start time.Time
	End   time.Time
	// Closed includes End.
	Closed bool
}

// Contains reports whether t lies in the window.
func (w Window) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	if w.Closed {
		return !t.After(w.End)
	}
	return t.Before(w.End)
}

// Windows returns the current window [now-N, now] and the contiguous previous
// window [now-2N, now-N).
func Windows(now time.Time, days int) (current, previous Window) {
	length := time.Duration(days) * day
	current = Window{Start: now.Add(-length), End: now, Closed: true}
	previous = Window{Start: now.Add(-2 * length), End: current.Start}
	return current, previous
}

// SeriesStart is the first instant covered by the daily series.
func SeriesStart(now time.Time, days int) time.Time {
	return startOfDay(now).AddDate(0, 0, -seriesDays(days))
}

// GrowthRate is (current - previous) / previous * 100, floored to 0 when
// there is no previous activity.
func GrowthRate(current, previous int) float64 {
	if previous == 0 {
		return 0
	}
	return float64(current-previous) / float64(previous) * 100
}

// ResolutionRate is resolved / total * 100, or 0 for an empty window.
func ResolutionRate(resolved, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(resolved) / float64(total) * 100
}

// AverageResolutionHours is the mean resolved_at - created_at in hours over
// tickets whose status is resolved and that carry a resolution stamp.
func AverageResolutionHours(tickets []domain.Ticket) float64 {
	var total time.Duration
	count := 0
	for i := range tickets {
		t := &tickets[i]
		if t.Status != domain.TicketStatusResolved || t.ResolvedAt == nil {
			continue
		}
		total += t.ResolvedAt.Sub(t.CreatedAt)
		count++
	}
	if count == 0 {
		return 0
	}
	return total.Hours() / float64(count)
}

// Percentage is round(count / total * 100).
func Percentage(count, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(count) / float64(total) * 100))
}

// Compute builds the overview snapshot body. Identity fields (organization,
// range, department) are left to the caller.
func Compute(in Input) domain.AnalyticsSnapshot {
	current, previous := Windows(in.Now, in.Days)

	var inWindow []domain.Ticket
	previousCount := 0
	resolvedNow, resolvedBefore := 0, 0
	for _, t := range in.Tickets {
		switch {
		case current.Contains(t.CreatedAt):
			inWindow = append(inWindow, t)
		case previous.Contains(t.CreatedAt):
			previousCount++
		}
		if t.ResolvedAt != nil {
			switch {
			case current.Contains(*t.ResolvedAt):
				resolvedNow++
			case previous.Contains(*t.ResolvedAt):
				resolvedBefore++
			}
		}
	}

	resolved, open := 0, 0
	for _, t := range inWindow {
		switch t.Status {
		case domain.TicketStatusResolved:
			resolved++
		case domain.TicketStatusOpen, domain.TicketStatusInProgress, domain.TicketStatusPending:
			open++
		case domain.TicketStatusClosed:
		}
	}

	staff := in.Staff
	if staff == nil {
		staff = in.Users
	}

	totalUsers, newUsers, previousUsers := 0, 0, 0
	for _, u := range in.Users {
		if u.CreatedAt.After(in.Now) {
			continue
		}
		totalUsers++
		switch {
		case current.Contains(u.CreatedAt):
			newUsers++
		case previous.Contains(u.CreatedAt):
			previousUsers++
		}
	}

	return domain.AnalyticsSnapshot{
		WindowStart:        current.Start,
		WindowEnd:          current.End,
		TotalTickets:       len(inWindow),
		PreviousTickets:    previousCount,
		TicketGrowthRate:   GrowthRate(len(inWindow), previousCount),
		OpenTickets:        open,
		ResolvedTickets:    resolved,
		ResolvedGrowthRate: GrowthRate(resolvedNow, resolvedBefore),
		ResolutionRate:     ResolutionRate(resolved, len(inWindow)),
		AvgResolutionHours: AverageResolutionHours(inWindow),
		TotalUsers:         totalUsers,
		NewUsers:           newUsers,
		UserGrowthRate:     GrowthRate(newUsers, previousUsers),
		ByStatus:           ByStatus(inWindow),
		ByPriority:         ByPriority(inWindow),
		ByDepartment:       ByDepartment(inWindow, in.Departments),
		TopPerformers:      TopPerformers(in.Tickets, staff, current),
		UserActivity:       DailySeries(in.Now, in.Days, in.Tickets, in.Users, in.Activities),
		GeneratedAt:        in.Now,
	}
}

// ByStatus groups tickets by status in lifecycle order, omitting empty groups.
func ByStatus(tickets []domain.Ticket) []domain.BreakdownItem {
	counts := make(map[domain.TicketStatus]int)
	for _, t := range tickets {
		counts[t.Status]++
	}
	items := make([]domain.BreakdownItem, 0, len(counts))
	for _, status := range domain.TicketStatuses {
		if n := counts[status]; n > 0 {
			items = append(items, domain.BreakdownItem{Key: string(status), Count: n, Percentage: Percentage(n, len(tickets))})
		}
	}
	return items
}

// ByPriority groups tickets by priority from low to urgent, omitting empty groups.
func ByPriority(tickets []domain.Ticket) []domain.BreakdownItem {
	counts := make(map[domain.TicketPriority]int)
	for _, t := range tickets {
		counts[t.Priority]++
	}
	items := make([]domain.BreakdownItem, 0, len(counts))
	for _, priority := range domain.TicketPriorities {
		if n := counts[priority]; n > 0 {
			items = append(items, domain.BreakdownItem{Key: string(priority), Count: n, Percentage: Percentage(n, len(tickets))})
		}
	}
	return items
}

// ByDepartment reports every department, including those without tickets.
func ByDepartment(tickets []domain.Ticket, departments []domain.Department) []domain.DepartmentBreakdown {
	counts := make(map[string]int)
	for _, t := range tickets {
		if t.DepartmentID != nil {
			counts[*t.DepartmentID]++
		}
	}
	rows := make([]domain.DepartmentBreakdown, 0, len(departments))
	for _, d := range departments {
		n := counts[d.ID]
		rows = append(rows, domain.DepartmentBreakdown{
			DepartmentID: d.ID,
			Name:         d.Name,
			Count:        n,
			Percentage:   Percentage(n, len(tickets)),
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Count != rows[j].Count {
			return rows[i].Count > rows[j].Count
		}
		return rows[i].Name < rows[j].Name
	})
	return rows
}

type performerTally struct {
	resolved    int
	total       time.Duration
	ratingSum   int
	ratingCount int
}

// TopPerformers ranks non-user members by tickets they resolved within
// window, ties broken by the lower mean resolution time and then by id.
func TopPerformers(tickets []domain.Ticket, users []domain.User, window Window) []domain.Performer {
	staff := make(map[string]domain.User)
	for _, u := range users {
		if u.Role != domain.RoleUser {
			staff[u.ID] = u
		}
	}

	tallies := make(map[string]*performerTally)
	for _, t := range tickets {
		if t.ResolvedAt == nil || t.ResolvedBy == nil || !window.Contains(*t.ResolvedAt) {
			continue
		}
		if _, ok := staff[*t.ResolvedBy]; !ok {
			continue
		}
		tally := tallies[*t.ResolvedBy]
		if tally == nil {
			tally = &performerTally{}
			tallies[*t.ResolvedBy] = tally
		}
		tally.resolved++
		tally.total += t.ResolvedAt.Sub(t.CreatedAt)
		if t.SatisfactionRating != nil {
			tally.ratingSum += *t.SatisfactionRating
			tally.ratingCount++
		}
	}

	performers := make([]domain.Performer, 0, len(tallies))
	for id, tally := range tallies {
		u := staff[id]
		p := domain.Performer{
			UserID:             id,
			Name:               u.Name,
			Role:               u.Role,
			ResolvedCount:      tally.resolved,
			AvgResolutionHours: tally.total.Hours() / float64(tally.resolved),
		}
		if tally.ratingCount > 0 {
			p.Rating = float64(tally.ratingSum) / float64(tally.ratingCount)
		}
		performers = append(performers, p)
	}

	sort.Slice(performers, func(i, j int) bool {
		a, b := performers[i], performers[j]
		if a.ResolvedCount != b.ResolvedCount {
			return a.ResolvedCount > b.ResolvedCount
		}
		if a.AvgResolutionHours != b.AvgResolutionHours {
			return a.AvgResolutionHours < b.AvgResolutionHours
		}
		return a.UserID < b.UserID
	})
	if len(performers) > maxPerformers {
		performers = performers[:maxPerformers]
	}
	return performers
}

// DailySeries emits one UTC calendar day per point from now-min(days,30)
// through today. Resolutions count on their resolved_at day.
func DailySeries(now time.Time, days int, tickets []domain.Ticket, users []domain.User, activities []domain.Activity) []domain.DailyActivity {
	span := seriesDays(days)
	first := startOfDay(now).AddDate(0, 0, -span)

	points := make([]domain.DailyActivity, span+1)
	for i := range points {
		points[i].Date = first.AddDate(0, 0, i).Format("2006-01-02")
	}
	index := func(t time.Time) int {
		if t.After(now) {
			return -1
		}
		d := startOfDay(t)
		if d.Before(first) {
			return -1
		}
		i := int(d.Sub(first) / day)
		if i >= len(points) {
			return -1
		}
		return i
	}

	for _, t := range tickets {
		if i := index(t.CreatedAt); i >= 0 {
			points[i].TicketsCreated++
		}
		if t.ResolvedAt != nil {
			if i := index(*t.ResolvedAt); i >= 0 {
				points[i].TicketsResolved++
			}
		}
	}
	for _, u := range users {
		if i := index(u.CreatedAt); i >= 0 {
			points[i].NewUsers++
		}
	}

	active := make([]map[string]struct{}, len(points))
	for _, a := range activities {
		i := index(a.CreatedAt)
		if i < 0 {
			continue
		}
		if active[i] == nil {
			active[i] = make(map[string]struct{})
		}
		active[i][a.UserID] = struct{}{}
	}
	for i := range points {
		points[i].ActiveUsers = len(active[i])
	}
	return points
}

func seriesDays(days int) int {
	if days > maxSeriesDays {
		return maxSeriesDays
	}
	if days < 0 {
		return 0
	}
	return days
}

func startOfDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

