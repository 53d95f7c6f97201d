package junction

import (
	"context"
	"fmt"
	"strconv"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/decode"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/pkg/pagination"
)

// GeoFilter restricts a place search to a radius around a point.
type GeoFilter struct {
	Latitude  float64
	Longitude float64

	// Radius in kilometres.
	Radius int
}

func (g GeoFilter) String() string {
	return strconv.FormatFloat(g.Latitude, 'f', -1, 64) + "," +
		strconv.FormatFloat(g.Longitude, 'f', -1, 64) + "," +
		strconv.Itoa(g.Radius)
}

// PlaceQuery filters a place search. Zero fields are not sent.
type PlaceQuery struct {
	// NameLike matches places whose name contains the value.
	NameLike string

	Type PlaceType

	// IATA matches an exact three-letter IATA code.
	IATA string

	Near *GeoFilter

	// Within restricts results to places inside another place.
	Within PlaceID

	// PageSize is the number of places per page, 1 to 100. Defaults to 100.
	PageSize int

	// MaxPages caps the pages fetched. Iteration ends with ErrPageLimit when
	// more remain. Zero means no cap.
	MaxPages int
}

func (q PlaceQuery) params() request.Params {
	p := request.Params{"page[limit]": request.DefaultPageLimit}
	if q.PageSize != 0 {
		p["page[limit]"] = q.PageSize
	}
	if q.NameLike != "" {
		p["filter[name][like]"] = q.NameLike
	}
	if q.Type != "" {
		p["filter[type][eq]"] = q.Type
	}
	if q.IATA != "" {
		p["filter[iata][eq]"] = q.IATA
	}
	if q.Near != nil {
		p["query[coordinates]"] = q.Near.String()
	}
	if q.Within != "" {
		p["query[placeToSearchWithin]"] = q.Within
	}
	return p
}

// SearchPlaces returns an iterator over the places matching q. The query is
// validated immediately; pages are fetched as the iterator advances.
func (c *Client) SearchPlaces(q PlaceQuery) (*pagination.Iterator[Place], error) {
	if q.MaxPages < 0 {
		return nil, c.fail(&apierr.ValidationError{
			Meta:    apierr.Meta{Operation: string(request.OpSearchPlaces)},
			Param:   "maxPages",
			Message: "must not be negative",
		})
	}
	first, err := c.builder.Build(request.OpSearchPlaces, q.params(), nil)
	if err != nil {
		return nil, c.fail(err)
	}
	return pagination.New(func(ctx context.Context, cursor *string) (pagination.Page[Place], error) {
		spec := first
		if cursor != nil {
			next, err := c.builder.FromCursor(request.OpSearchPlaces, *cursor)
			if err != nil {
				return pagination.Page[Place]{}, c.fail(err)
			}
			spec = next
		}
		return fetchPage[Place](ctx, c, spec)
	}, pagination.WithLogger(c.logger), pagination.WithMaxPages(q.MaxPages)), nil
}

// GetPlace returns one place.
func (c *Client) GetPlace(ctx context.Context, id PlaceID) (*Place, error) {
	var p Place
	if err := c.do(ctx, request.OpGetPlace, request.Params{"placeId": id}, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPlaces fetches several places in parallel, bounded by
// Config.BatchConcurrency. On partial failure it returns the places that
// were fetched together with an error describing the failures.
func (c *Client) GetPlaces(ctx context.Context, ids ...PlaceID) (map[PlaceID]*Place, error) {
	results, err := pagination.FetchAll(ctx, ids, c.GetPlace, c.batchConfig())
	out := make(map[PlaceID]*Place, len(results))
	for _, r := range results {
		if r.Err == nil {
			out[r.Key] = r.Value
		}
	}
	if err != nil {
		return out, fmt.Errorf("get places: %w", err)
	}
	return out, nil
}

func (c *Client) batchConfig() pagination.BatchConfig {
	cfg := pagination.DefaultBatchConfig()
	cfg.MaxConcurrency = c.cfg.BatchConcurrency
	cfg.Timeout = 0
	cfg.Logger = c.logger
	return cfg
}

// fetchPage executes spec and decodes one collection page.
func fetchPage[T any](ctx context.Context, c *Client, spec *request.Spec) (pagination.Page[T], error) {
	env, meta, err := c.execute(ctx, spec)
	if err != nil {
		return pagination.Page[T]{}, err
	}
	var page collection[T]
	if err := c.fail(decode.Decode(env, meta, &page)); err != nil {
		return pagination.Page[T]{}, err
	}
	return pagination.Page[T]{Items: page.Items, Next: page.Links.Next}, nil
}
