package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/junction-dev/junction-go/pkg/junction"
	"github.com/junction-dev/junction-go/pkg/pagination"
)

type searchFlags struct {
	from       string
	to         string
	departure  string
	birthDates []string
	limit      int
}

func (f *searchFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "origin place ID")
	cmd.Flags().StringVar(&f.to, "to", "", "destination place ID")
	cmd.Flags().StringVar(&f.departure, "departure", "", "earliest departure (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringSliceVar(&f.birthDates, "passenger", nil, "passenger date of birth, YYYY-MM-DD (repeatable)")
	cmd.Flags().IntVar(&f.limit, "max", 20, "stop after this many offers (0 for all)")

	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("departure")
	_ = cmd.MarkFlagRequired("passenger")
}

func (f *searchFlags) parse() (time.Time, []junction.Date, error) {
	departure, err := parseTime(f.departure)
	if err != nil {
		return time.Time{}, nil, err
	}
	dates, err := parseDates(f.birthDates)
	if err != nil {
		return time.Time{}, nil, err
	}
	return departure, dates, nil
}

// NewFlightsCommand creates the flights command group.
func NewFlightsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "flights",
		Aliases: []string{"flight"},
		Short:   "Search flights",
	}
	cmd.AddCommand(newFlightsSearchCommand())
	return cmd
}

func newFlightsSearchCommand() *cobra.Command {
	var flags searchFlags

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search one-way flight offers",
		Long: `Create a flight search and list its offers. Results that are still
being collected are polled until they are ready or --timeout expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			departure, dates, err := flags.parse()
			if err != nil {
				return err
			}

			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			it, err := client.SearchFlights(ctx, junction.FlightSearch{
				Origin:              junction.PlaceID(flags.from),
				Destination:         junction.PlaceID(flags.to),
				DepartureAfter:      departure,
				PassengerBirthDates: dates,
			})
			if err != nil {
				return fmt.Errorf("failed to search flights: %w", err)
			}

			offers, err := collect(ctx, it, flags.limit)
			if err != nil {
				return fmt.Errorf("failed to list flight offers: %w", err)
			}

			return render(cmd.OutOrStdout(), offers, func(t *tablewriter.Table) {
				t.Header("Offer", "Price", "Departure", "Arrival", "Route", "Expires")
				for _, o := range offers {
					if len(o.Segments) == 0 {
						continue
					}
					first, last := o.Segments[0], o.Segments[len(o.Segments)-1]
					route := make([]string, 0, len(o.Segments)+1)
					route = append(route, orDash(first.Origin.IATACode))
					for _, s := range o.Segments {
						route = append(route, orDash(s.Destination.IATACode))
					}
					_ = t.Append(
						string(o.ID),
						o.Price.String(),
						formatTime(first.DepartureAt),
						formatTime(last.ArrivalAt),
						strings.Join(route, " > "),
						formatTime(o.ExpiresAt),
					)
				}
			})
		},
	}

	flags.register(cmd)

	return cmd
}

// NewTrainsCommand creates the trains command group.
func NewTrainsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "trains",
		Aliases: []string{"train"},
		Short:   "Search trains",
	}
	cmd.AddCommand(newTrainsSearchCommand())
	return cmd
}

func newTrainsSearchCommand() *cobra.Command {
	var (
		flags           searchFlags
		returnDeparture string
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search train offers",
		Long: `Create a train search and list its offers. Pass --return for return
journeys.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			departure, dates, err := flags.parse()
			if err != nil {
				return err
			}
			search := junction.TrainSearch{
				Origin:              junction.PlaceID(flags.from),
				Destination:         junction.PlaceID(flags.to),
				DepartureAfter:      departure,
				PassengerBirthDates: dates,
			}
			if returnDeparture != "" {
				r, err := parseTime(returnDeparture)
				if err != nil {
					return err
				}
				search.ReturnDepartureAfter = &r
			}

			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			it, err := client.SearchTrains(ctx, search)
			if err != nil {
				return fmt.Errorf("failed to search trains: %w", err)
			}

			offers, err := collect(ctx, it, flags.limit)
			if err != nil {
				return fmt.Errorf("failed to list train offers: %w", err)
			}

			return render(cmd.OutOrStdout(), offers, func(t *tablewriter.Table) {
				t.Header("Offer", "Price", "Departure", "Arrival", "Route", "Fare")
				for _, o := range offers {
					if len(o.Segments) == 0 {
						continue
					}
					first, last := o.Segments[0], o.Segments[len(o.Segments)-1]
					route := []string{orDash(first.Origin.Name)}
					for _, s := range o.Segments {
						route = append(route, orDash(s.Destination.Name))
					}
					_ = t.Append(
						string(o.ID),
						o.Price.String(),
						formatTime(first.DepartureAt),
						formatTime(last.ArrivalAt),
						strings.Join(route, " > "),
						orDash(first.Fare.MarketingName),
					)
				}
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&returnDeparture, "return", "", "earliest return departure (YYYY-MM-DD or RFC 3339)")

	return cmd
}

// collect drains it, stopping after limit items when limit > 0.
func collect[T any](ctx context.Context, it *pagination.Iterator[T], limit int) ([]T, error) {
	defer it.Stop()

	out := []T{}
	for it.Next(ctx) {
		out = append(out, it.Item())
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, it.Err()
}
