// Package dashboard loads the data shown on the CRM home screen: the won/lost
// deals series and the next upcoming calendar events.
package dashboard

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/crmdash/crmdash/internal/cli/client"
)

// DefaultEventLimit is the page size used when none is given
const DefaultEventLimit = 5

const (
	chartTimeLayout = "Jan 2006"
	eventTimeLayout = "Jan 02, 2006 - 15:04"
)

// Session supplies the stored credential and enforces forced logout on
// failed requests. *authsession.Manager satisfies it.
type Session interface {
	Token() string
	Enforce(ctx context.Context, err error) error
}

// DealPoint is one month of won or lost deal value
type DealPoint struct {
	TimeUnix int64   `json:"timeUnix"`
	TimeText string  `json:"timeText"`
	Value    float64 `json:"value"`
	State    string  `json:"state"`
}

// Event is an upcoming calendar entry
type Event struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Color     string    `json:"color"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// Service fetches dashboard data on behalf of the current session
type Service struct {
	session Session
	gateway client.Executor
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithNow overrides the clock used to compute "today"
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a dashboard service
func New(session Session, gateway client.Executor, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		session: session,
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DealsChart returns the won and lost deal series ordered by month
func (s *Service) DealsChart(ctx context.Context) ([]DealPoint, error) {
	payload, err := s.gateway.Execute(ctx, dealsChartRequest(), s.session.Token())
	if err != nil {
		return nil, s.session.Enforce(ctx, err)
	}

	var resp dealsChartResponse
	if err := client.Decode(payload, &resp); err != nil {
		return nil, err
	}

	points := mapDealsData(resp.DealStages.Nodes)
	s.logger.Debug().Int("stages", len(resp.DealStages.Nodes)).Int("points", len(points)).Msg("Loaded deals chart")

	return points, nil
}

// UpcomingEvents returns up to limit events starting today or later
func (s *Service) UpcomingEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	payload, err := s.gateway.Execute(ctx, upcomingEventsRequest(s.now(), limit), s.session.Token())
	if err != nil {
		return nil, s.session.Enforce(ctx, err)
	}

	var resp upcomingEventsResponse
	if err := client.Decode(payload, &resp); err != nil {
		return nil, err
	}

	s.logger.Debug().Int("events", len(resp.Events.Nodes)).Int("total", resp.Events.TotalCount).Msg("Loaded upcoming events")

	return resp.Events.Nodes, nil
}

// mapDealsData flattens the WON and LOST stage aggregates into one series.
// Groups without a close month or year are dropped; a missing sum is 0.
func mapDealsData(stages []dealStage) []DealPoint {
	var points []DealPoint

	for _, title := range []string{StageWon, StageLost} {
		stage := findStage(stages, title)
		if stage == nil {
			continue
		}
		state := stageLabel(title)

		for _, agg := range stage.DealsAggregate {
			if agg.GroupBy.CloseDateMonth == nil || agg.GroupBy.CloseDateYear == nil {
				continue
			}
			month := time.Date(*agg.GroupBy.CloseDateYear, time.Month(*agg.GroupBy.CloseDateMonth), 1, 0, 0, 0, 0, time.UTC)

			value := 0.0
			if agg.Sum != nil && agg.Sum.Value != nil {
				value = *agg.Sum.Value
			}

			points = append(points, DealPoint{
				TimeUnix: month.Unix(),
				TimeText: month.Format(chartTimeLayout),
				Value:    value,
				State:    state,
			})
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].TimeUnix < points[j].TimeUnix
	})

	return points
}

func findStage(stages []dealStage, title string) *dealStage {
	for i := range stages {
		if stages[i].Title == title {
			return &stages[i]
		}
	}
	return nil
}

// stageLabel renders a stage title such as "WON" as "Won". Casers are not
// safe for concurrent use, so each call builds its own.
func stageLabel(title string) string {
	return cases.Title(language.English).String(strings.ToLower(title))
}

// FormatEventDate renders an event's time range, e.g.
// "Mar 04, 2024 - 09:00 - Mar 04, 2024 - 10:30"
func FormatEventDate(start, end time.Time) string {
	if start.IsZero() {
		return "Invalid Date"
	}
	if end.IsZero() {
		return start.Format(eventTimeLayout)
	}
	return start.Format(eventTimeLayout) + " - " + end.Format(eventTimeLayout)
}
