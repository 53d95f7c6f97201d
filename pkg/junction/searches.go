package junction

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/decode"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/internal/transport"
	"github.com/junction-dev/junction-go/pkg/pagination"
)

// FlightSearch describes a one-way flight search.
type FlightSearch struct {
	Origin      PlaceID
	Destination PlaceID

	// DepartureAfter is the earliest departure time.
	DepartureAfter time.Time

	// PassengerBirthDates has one entry per traveller.
	PassengerBirthDates []Date
}

// TrainSearch describes a train search, optionally with a return journey.
type TrainSearch struct {
	Origin         PlaceID
	Destination    PlaceID
	DepartureAfter time.Time

	// ReturnDepartureAfter requests return offers when set.
	ReturnDepartureAfter *time.Time

	PassengerBirthDates []Date
}

type searchBody struct {
	OriginID       PlaceID        `json:"originId"`
	DestinationID  PlaceID        `json:"destinationId"`
	DepartureAfter time.Time      `json:"departureAfter"`
	PassengerAges  []passengerAge `json:"passengerAges"`
}

type flightSearchBody struct {
	searchBody
}

type trainSearchBody struct {
	searchBody

	// Sent as null for one-way searches.
	ReturnDepartureAfter *time.Time `json:"returnDepartureAfter"`
}

func newSearchBody(origin, destination PlaceID, departure time.Time, births []Date) searchBody {
	ages := make([]passengerAge, len(births))
	for i, d := range births {
		ages[i] = passengerAge{DateOfBirth: d}
	}
	return searchBody{
		OriginID:       origin,
		DestinationID:  destination,
		DepartureAfter: departure.UTC(),
		PassengerAges:  ages,
	}
}

// Validate implements request validation for search bodies.
func (b searchBody) Validate() error {
	invalid := func(param, msg string) error {
		return &apierr.ValidationError{Param: param, Message: msg}
	}
	switch {
	case b.OriginID == "":
		return invalid("originId", "origin is required")
	case b.DestinationID == "":
		return invalid("destinationId", "destination is required")
	case b.OriginID == b.DestinationID:
		return invalid("destinationId", "destination must differ from origin")
	case b.DepartureAfter.IsZero():
		return invalid("departureAfter", "departure time is required")
	case len(b.PassengerAges) == 0:
		return invalid("passengerAges", "at least one passenger is required")
	}
	for i, p := range b.PassengerAges {
		if p.DateOfBirth.IsZero() {
			return invalid(fmt.Sprintf("passengerAges[%d].dateOfBirth", i), "date of birth is required")
		}
	}
	return nil
}

// Validate implements request validation for train searches.
func (b trainSearchBody) Validate() error {
	if err := b.searchBody.Validate(); err != nil {
		return err
	}
	if b.ReturnDepartureAfter != nil && !b.ReturnDepartureAfter.After(b.DepartureAfter) {
		return &apierr.ValidationError{Param: "returnDepartureAfter", Message: "return must be after departure"}
	}
	return nil
}

// SearchFlights starts a flight search and returns an iterator over its
// offers. Offer pages that are still being collected are polled until
// Config.PendingTimeout.
func (c *Client) SearchFlights(ctx context.Context, s FlightSearch) (*pagination.Iterator[FlightOffer], error) {
	body := flightSearchBody{newSearchBody(s.Origin, s.Destination, s.DepartureAfter, s.PassengerBirthDates)}
	location, err := c.startSearch(ctx, request.OpCreateFlightSearch, body)
	if err != nil {
		return nil, err
	}
	return offers[FlightOffer](c, location), nil
}

// SearchTrains starts a train search and returns an iterator over its
// offers.
func (c *Client) SearchTrains(ctx context.Context, s TrainSearch) (*pagination.Iterator[TrainOffer], error) {
	body := trainSearchBody{searchBody: newSearchBody(s.Origin, s.Destination, s.DepartureAfter, s.PassengerBirthDates)}
	if s.ReturnDepartureAfter != nil {
		r := s.ReturnDepartureAfter.UTC()
		body.ReturnDepartureAfter = &r
	}
	location, err := c.startSearch(ctx, request.OpCreateTrainSearch, body)
	if err != nil {
		return nil, err
	}
	return offers[TrainOffer](c, location), nil
}

// startSearch creates a search and returns the link to its offers.
func (c *Client) startSearch(ctx context.Context, op request.OperationID, body any) (string, error) {
	spec, err := c.builder.Build(op, nil, body)
	if err != nil {
		return "", c.fail(err)
	}
	spec = idempotent(spec, nil)

	env, meta, err := c.execute(ctx, spec)
	if err != nil {
		return "", err
	}
	location, err := decode.Location(env, meta)
	if err != nil {
		return "", c.fail(err)
	}
	c.logger.Debug().
		Str("operation", string(op)).
		Str("request_id", meta.RequestID).
		Str("location", location).
		Msg("Search created")
	return location, nil
}

// offers walks the offer collection at location.
func offers[T any](c *Client, location string) *pagination.Iterator[T] {
	return pagination.New(func(ctx context.Context, cursor *string) (pagination.Page[T], error) {
		link := location
		if cursor != nil {
			link = *cursor
		}
		spec, err := c.builder.FromCursor(request.OpOffersPage, link)
		if err != nil {
			return pagination.Page[T]{}, c.fail(err)
		}
		return fetchPending[T](ctx, c, spec)
	}, pagination.WithLogger(c.logger))
}

// fetchPending fetches one offers page, waiting while the server answers
// 202 Accepted.
func fetchPending[T any](ctx context.Context, c *Client, spec *request.Spec) (pagination.Page[T], error) {
	start := time.Now()
	for polls := 1; ; polls++ {
		env, meta, err := c.execute(ctx, spec)
		if err != nil {
			return pagination.Page[T]{}, err
		}
		if env.StatusCode != http.StatusAccepted {
			var page collection[T]
			if err := c.fail(decode.Decode(env, meta, &page)); err != nil {
				return pagination.Page[T]{}, err
			}
			return pagination.Page[T]{Items: page.Items, Next: page.Links.Next}, nil
		}

		wait := c.cfg.PendingInterval
		if d, ok := transport.ParseRetryAfter(env.Header, time.Now()); ok && d > 0 {
			wait = d
		}
		if time.Since(start)+wait > c.cfg.PendingTimeout {
			return pagination.Page[T]{}, fmt.Errorf("%s after %d polls [request_id=%s]: %w", meta.Operation, polls, meta.RequestID, ErrResultsPending)
		}

		c.logger.Debug().
			Str("operation", meta.Operation).
			Int("polls", polls).
			Dur("wait", wait).
			Msg("Results pending, polling again")

		if err := c.sleep(ctx, wait); err != nil {
			return pagination.Page[T]{}, c.fail(&apierr.CancelledError{Meta: meta, Err: ctx.Err()})
		}
	}
}
