package domain

import "time"

// TimeRange selects the analytics lookback window.
type TimeRange string

const (
	TimeRange7d   TimeRange = "7d"
	TimeRange30d  TimeRange = "30d"
	TimeRange90d  TimeRange = "90d"
	TimeRange365d TimeRange = "365d"
)

// Days returns the window length, or 0 for an unknown range.
func (r TimeRange) Days() int {
	switch r {
	case TimeRange7d:
		return 7
	case TimeRange30d:
		return 30
	case TimeRange90d:
		return 90
	case TimeRange365d:
		return 365
	}
	return 0
}

// AllDepartments disables departmental drill-down.
const AllDepartments = "all"

// BreakdownItem is one group of a categorical breakdown.
type BreakdownItem struct {
	Key        string `json:"key"`
	Count      int    `json:"count"`
	Percentage int    `json:"percentage"`
}

// DepartmentBreakdown is one department row; zero-count rows are kept.
type DepartmentBreakdown struct {
	DepartmentID string `json:"department_id"`
	Name         string `json:"name"`
	Count        int    `json:"count"`
	Percentage   int    `json:"percentage"`
}

// Performer is a leaderboard entry.
type Performer struct {
	UserID             string  `json:"user_id"`
	Name               string  `json:"name"`
	Role               Role    `json:"role"`
	ResolvedCount      int     `json:"resolved_count"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	Rating             float64 `json:"rating"`
}

// DailyActivity is one calendar day of the activity time-series.
type DailyActivity struct {
	Date            string `json:"date"`
	TicketsCreated  int    `json:"tickets_created"`
	TicketsResolved int    `json:"tickets_resolved"`
	NewUsers        int    `json:"new_users"`
	ActiveUsers     int    `json:"active_users"`
}

// AnalyticsSnapshot is the aggregate returned by the analytics engine.
type AnalyticsSnapshot struct {
	OrganizationID     string                `json:"organization_id"`
	Range              TimeRange             `json:"range"`
	Department         string                `json:"department"`
	WindowStart        time.Time             `json:"window_start"`
	WindowEnd          time.Time             `json:"window_end"`
	TotalTickets       int                   `json:"total_tickets"`
	PreviousTickets    int                   `json:"previous_tickets"`
	TicketGrowthRate   float64               `json:"ticket_growth_rate"`
	OpenTickets        int                   `json:"open_tickets"`
	ResolvedTickets    int                   `json:"resolved_tickets"`
	ResolvedGrowthRate float64               `json:"resolved_growth_rate"`
	ResolutionRate     float64               `json:"resolution_rate"`
	AvgResolutionHours float64               `json:"avg_resolution_hours"`
	TotalUsers         int                   `json:"total_users"`
	NewUsers           int                   `json:"new_users"`
	UserGrowthRate     float64               `json:"user_growth_rate"`
	ByStatus           []BreakdownItem       `json:"by_status"`
	ByPriority         []BreakdownItem       `json:"by_priority"`
	ByDepartment       []DepartmentBreakdown `json:"by_department"`
	TopPerformers      []Performer           `json:"top_performers"`
	UserActivity       []DailyActivity       `json:"user_activity"`
	GeneratedAt        time.Time             `json:"generated_at"`
	CacheHit           bool                  `json:"cache_hit"`
}
