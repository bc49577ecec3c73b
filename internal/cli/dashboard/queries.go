package dashboard

import (
	"time"

	"github.com/crmdash/crmdash/internal/cli/client"
)

const dealsChartQuery = `
query DashboardDealsChart(
    $filter: DealStageFilter!
    $sorting: [DealStageSort!]
    $paging: OffsetPaging
) {
    dealStages(filter: $filter, sorting: $sorting, paging: $paging) {
        nodes {
            id
            title
            dealsAggregate {
                groupBy {
                    closeDateMonth
                    closeDateYear
                }
                sum {
                    value
                }
            }
        }
        totalCount
    }
}`

const upcomingEventsQuery = `
query DashboardCalendarUpcomingEvents(
    $filter: EventFilter!
    $sorting: [EventSort!]
    $paging: OffsetPaging!
) {
    events(filter: $filter, sorting: $sorting, paging: $paging) {
        totalCount
        nodes {
            id
            title
            color
            startDate
            endDate
        }
    }
}`

// Deal stage titles plotted on the chart
const (
	StageWon  = "WON"
	StageLost = "LOST"
)

func dealsChartRequest() client.Request {
	return client.Request{
		OperationName: "DashboardDealsChart",
		Query:         dealsChartQuery,
		Variables: map[string]any{
			"filter": map[string]any{
				"title": map[string]any{"in": []string{StageWon, StageLost}},
			},
			"sorting": []map[string]any{
				{"field": "title", "direction": "ASC"},
			},
		},
	}
}

func upcomingEventsRequest(from time.Time, limit int) client.Request {
	return client.Request{
		OperationName: "DashboardCalendarUpcomingEvents",
		Query:         upcomingEventsQuery,
		Variables: map[string]any{
			"filter": map[string]any{
				"startDate": map[string]any{"gte": from.Format(time.DateOnly)},
			},
			"sorting": []map[string]any{
				{"field": "startDate", "direction": "ASC"},
			},
			"paging": map[string]any{"limit": limit},
		},
	}
}

type dealsAggregate struct {
	GroupBy struct {
		CloseDateMonth *int `json:"closeDateMonth"`
		CloseDateYear  *int `json:"closeDateYear"`
	} `json:"groupBy"`
	Sum *struct {
		Value *float64 `json:"value"`
	} `json:"sum"`
}

type dealStage struct {
	ID             string           `json:"id"`
	Title          string           `json:"title"`
	DealsAggregate []dealsAggregate `json:"dealsAggregate"`
}

type dealsChartResponse struct {
	DealStages struct {
		Nodes      []dealStage `json:"nodes"`
		TotalCount int         `json:"totalCount"`
	} `json:"dealStages"`
}

type upcomingEventsResponse struct {
	Events struct {
		Nodes      []Event `json:"nodes"`
		TotalCount int     `json:"totalCount"`
	} `json:"events"`
}
