package request

import "net/http"

// OperationID names one logical API action.
type OperationID string

// Registered operations.
const (
	OpSearchPlaces        OperationID = "places.search"
	OpGetPlace            OperationID = "places.get"
	OpCreateFlightSearch  OperationID = "flight-searches.create"
	OpCreateTrainSearch   OperationID = "train-searches.create"
	OpOffersPage          OperationID = "offers.page"
	OpCreateBooking       OperationID = "bookings.create"
	OpGetBooking          OperationID = "bookings.get"
	OpConfirmBooking      OperationID = "bookings.confirm"
	OpRequestCancellation OperationID = "cancellations.request"
	OpConfirmCancellation OperationID = "cancellations.confirm"
)

// BodyRule states whether an operation takes a request body.
type BodyRule int

const (
	BodyNone BodyRule = iota
	BodyRequired
	BodyOptional
)

// Operation is the static description of one API action.
type Operation struct {
	ID     OperationID
	Method string

	// Path is a template such as /bookings/{bookingId}. Each {name}
	// must have a matching path Param.
	Path   string
	Params []Param
	Body   BodyRule
}

// PlaceTypes lists the values accepted by the place type filter.
var PlaceTypes = []string{"unspecified", "city", "railway-station", "airport", "ferry-port"}

// DefaultPageLimit is the page size requested when the caller gives none.
const DefaultPageLimit = 100

func intp(v int) *int { return &v }

// Operations returns the registry of supported actions.
func Operations() []Operation {
	return []Operation{
		{
			ID:     OpSearchPlaces,
			Method: http.MethodGet,
			Path:   "/places",
			Params: []Param{
				{Name: "page[limit]", In: InQuery, Kind: KindInteger, Min: intp(1), Max: intp(100)},
				{Name: "filter[name][like]", In: InQuery, Kind: KindString},
				{Name: "filter[type][eq]", In: InQuery, Kind: KindEnum, Enum: PlaceTypes},
				{Name: "filter[iata][eq]", In: InQuery, Kind: KindString, Pattern: iataPattern},
				{Name: "query[coordinates]", In: InQuery, Kind: KindString},
				{Name: "query[placeToSearchWithin]", In: InQuery, Kind: KindString},
			},
		},
		{
			ID:     OpGetPlace,
			Method: http.MethodGet,
			Path:   "/places/{placeId}",
			Params: []Param{{Name: "placeId", In: InPath, Kind: KindString, Required: true}},
		},
		{
			ID:     OpCreateFlightSearch,
			Method: http.MethodPost,
			Path:   "/flight-searches",
			Body:   BodyRequired,
		},
		{
			ID:     OpCreateTrainSearch,
			Method: http.MethodPost,
			Path:   "/train-searches",
			Body:   BodyRequired,
		},
		{
			// Reached only through server-issued links.
			ID:     OpOffersPage,
			Method: http.MethodGet,
		},
		{
			ID:     OpCreateBooking,
			Method: http.MethodPost,
			Path:   "/bookings",
			Body:   BodyRequired,
		},
		{
			ID:     OpGetBooking,
			Method: http.MethodGet,
			Path:   "/bookings/{bookingId}",
			Params: []Param{{Name: "bookingId", In: InPath, Kind: KindString, Required: true}},
		},
		{
			ID:     OpConfirmBooking,
			Method: http.MethodPost,
			Path:   "/bookings/{bookingId}/confirm",
			Params: []Param{{Name: "bookingId", In: InPath, Kind: KindString, Required: true}},
			Body:   BodyOptional,
		},
		{
			ID:     OpRequestCancellation,
			Method: http.MethodPost,
			Path:   "/bookings/{bookingId}/request-cancellation",
			Params: []Param{{Name: "bookingId", In: InPath, Kind: KindString, Required: true}},
		},
		{
			ID:     OpConfirmCancellation,
			Method: http.MethodPost,
			Path:   "/cancellations/{cancellationId}/confirm",
			Params: []Param{{Name: "cancellationId", In: InPath, Kind: KindString, Required: true}},
		},
	}
}
