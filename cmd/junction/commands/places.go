package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/junction-dev/junction-go/pkg/junction"
)

// NewPlacesCommand creates the places command group.
func NewPlacesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "places",
		Aliases: []string{"place"},
		Short:   "Search and inspect places",
		Long:    "Search cities, stations, airports and ports, and look up places by ID",
	}

	cmd.AddCommand(newPlacesSearchCommand())
	cmd.AddCommand(newPlacesGetCommand())

	return cmd
}

func newPlacesSearchCommand() *cobra.Command {
	var (
		name     string
		kind     string
		iata     string
		near     string
		within   string
		pageSize int
		maxPages int
		limit    int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search places",
		Long:  "Search places by name, type, IATA code or location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := junction.PlaceQuery{
				NameLike: name,
				Type:     junction.PlaceType(kind),
				IATA:     strings.ToUpper(iata),
				Within:   junction.PlaceID(within),
				PageSize: pageSize,
				MaxPages: maxPages,
			}
			if near != "" {
				geo, err := parseGeoFilter(near)
				if err != nil {
					return err
				}
				q.Near = geo
			}

			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			it, err := client.SearchPlaces(q)
			if err != nil {
				return err
			}

			places, err := collect(ctx, it, limit)
			switch {
			case errors.Is(err, junction.ErrPageLimit):
				fmt.Fprintf(cmd.ErrOrStderr(), "Stopped after %d pages; more results are available\n", maxPages)
			case err != nil:
				return fmt.Errorf("failed to search places: %w", err)
			}

			return renderPlaces(cmd, places)
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "match places whose name contains the value")
	cmd.Flags().StringVarP(&kind, "type", "t", "", "place type (city, railway-station, airport, ferry-port)")
	cmd.Flags().StringVar(&iata, "iata", "", "exact IATA code")
	cmd.Flags().StringVar(&near, "near", "", "LAT,LON,RADIUS_KM")
	cmd.Flags().StringVar(&within, "within", "", "only places inside this place ID")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "places per page (1-100)")
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "stop after this many pages (0 for no cap)")
	cmd.Flags().IntVar(&limit, "max", 50, "stop after this many places (0 for all)")

	return cmd
}

func newPlacesGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get PLACE_ID...",
		Short: "Get places by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			ids := make([]junction.PlaceID, len(args))
			for i, a := range args {
				ids[i] = junction.PlaceID(a)
			}

			found, err := client.GetPlaces(ctx, ids...)
			if err != nil {
				return err
			}

			places := make([]junction.Place, 0, len(ids))
			for _, id := range ids {
				if p, ok := found[id]; ok {
					places = append(places, *p)
				}
			}
			return renderPlaces(cmd, places)
		},
	}
}

func renderPlaces(cmd *cobra.Command, places []junction.Place) error {
	return render(cmd.OutOrStdout(), places, func(t *tablewriter.Table) {
		t.Header("ID", "Name", "Types", "IATA", "Country", "Coordinates")
		for _, p := range places {
			types := make([]string, len(p.PlaceTypes))
			for i, pt := range p.PlaceTypes {
				types[i] = string(pt)
			}
			iata := ""
			if p.IATACode != nil {
				iata = *p.IATACode
			}
			_ = t.Append(
				string(p.ID),
				p.Name,
				strings.Join(types, ","),
				orDash(iata),
				orDash(p.CountryCode),
				fmt.Sprintf("%.4f,%.4f", p.Coordinates.Latitude, p.Coordinates.Longitude),
			)
		}
	})
}

func parseGeoFilter(s string) (*junction.GeoFilter, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid --near %q: want LAT,LON,RADIUS_KM", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q", parts[1])
	}
	radius, err := strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return nil, fmt.Errorf("invalid radius %q", parts[2])
	}
	return &junction.GeoFilter{Latitude: lat, Longitude: lon, Radius: radius}, nil
}
