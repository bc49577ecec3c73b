package commands

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crmdash/crmdash/internal/cli/client"
	"github.com/crmdash/crmdash/internal/cli/dashboard"
	"github.com/crmdash/crmdash/internal/cli/output"
)

// NewDashCmd creates the dash command group
func NewDashCmd(opts *GlobalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Show dashboard data",
		Long: `Show dashboard data.

Without a subcommand, the deals chart and the upcoming events are loaded
concurrently and printed together.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runDashOverview(cmd.Context(), s, newDashboard(s), dashboard.DefaultEventLimit)
		},
	}

	cmd.AddCommand(newDashDealsCmd(opts))
	cmd.AddCommand(newDashEventsCmd(opts))

	return cmd
}

func newDashDealsCmd(opts *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deals",
		Short: "Show won and lost deal value by month",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runDashDeals(cmd.Context(), s, newDashboard(s))
		},
	}
}

func newDashEventsCmd(opts *GlobalOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show upcoming calendar events",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd, opts)
			if err != nil {
				return err
			}
			return runDashEvents(cmd.Context(), s, newDashboard(s), limit)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", dashboard.DefaultEventLimit, "Maximum number of events to show")

	return cmd
}

func newDashboard(s *session) *dashboard.Service {
	retrying := client.NewRetryExecutor(s.gateway, log.Logger)
	return dashboard.New(s.manager, retrying, log.Logger)
}

func runDashOverview(ctx context.Context, s *session, svc *dashboard.Service, limit int) error {
	var (
		points []dashboard.DealPoint
		events []dashboard.Event
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if points, err = svc.DealsChart(gctx); err != nil {
			return fmt.Errorf("failed to load deals: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if events, err = svc.UpcomingEvents(gctx, limit); err != nil {
			return fmt.Errorf("failed to load events: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return reportSessionError(s.printer, err)
	}

	if err := renderDeals(s, points); err != nil {
		return err
	}
	s.printer.Print("")
	return renderEvents(s, events)
}

func runDashDeals(ctx context.Context, s *session, svc *dashboard.Service) error {
	points, err := svc.DealsChart(ctx)
	if err != nil {
		return reportSessionError(s.printer, fmt.Errorf("failed to load deals: %w", err))
	}
	return renderDeals(s, points)
}

func renderDeals(s *session, points []dashboard.DealPoint) error {
	s.printer.Header("Deals")
	if len(points) == 0 {
		s.printer.Print("No deals data available")
		return nil
	}

	table := output.NewTable(s.printer.Out(), []string{"Month", "State", "Value"})
	for _, point := range points {
		table.AddRow(point.TimeText, s.printer.StateBadge(point.State), formatThousands(point.Value))
	}
	return table.Render()
}

func runDashEvents(ctx context.Context, s *session, svc *dashboard.Service, limit int) error {
	events, err := svc.UpcomingEvents(ctx, limit)
	if err != nil {
		return reportSessionError(s.printer, fmt.Errorf("failed to load events: %w", err))
	}
	return renderEvents(s, events)
}

func renderEvents(s *session, events []dashboard.Event) error {
	s.printer.Header("Upcoming Events")
	if len(events) == 0 {
		s.printer.Print("No upcoming events")
		return nil
	}

	table := output.NewTable(s.printer.Out(), []string{"When", "Title", "Color"})
	for _, event := range events {
		table.AddRow(dashboard.FormatEventDate(event.StartDate, event.EndDate), event.Title, event.Color)
	}
	return table.Render()
}

// formatThousands renders a value as "$12.5k"
func formatThousands(value float64) string {
	return fmt.Sprintf("$%gk", value/1000)
}
