package junction

import (
	"fmt"
	"time"
)

// PlaceID identifies a place such as a city, station or airport.
type PlaceID string

// OfferID identifies a flight or train offer.
type OfferID string

// BookingID identifies a booking.
type BookingID string

// CancellationID identifies a cancellation request.
type CancellationID string

// PlaceType classifies a place.
type PlaceType string

// Place types accepted by the place search filter.
const (
	PlaceTypeUnspecified    PlaceType = "unspecified"
	PlaceTypeCity           PlaceType = "city"
	PlaceTypeRailwayStation PlaceType = "railway-station"
	PlaceTypeAirport        PlaceType = "airport"
	PlaceTypeFerryPort      PlaceType = "ferry-port"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

// Booking statuses.
const (
	BookingStatusPending     BookingStatus = "pending"
	BookingStatusConfirmed   BookingStatus = "confirmed"
	BookingStatusRejected    BookingStatus = "rejected"
	BookingStatusNotTicketed BookingStatus = "not-ticketed"
	BookingStatusError       BookingStatus = "error"
	BookingStatusCancelled   BookingStatus = "cancelled"
	BookingStatusFulfilled   BookingStatus = "fulfilled"
)

// PaymentStatus is the payment state of a booking.
type PaymentStatus string

// Payment statuses.
const (
	PaymentStatusRequested PaymentStatus = "requested"
	PaymentStatusConfirmed PaymentStatus = "confirmed"
)

// RefundStatus is the state of a cancellation refund.
type RefundStatus string

// Refund statuses.
const (
	RefundStatusRequested RefundStatus = "requested"
	RefundStatusConfirmed RefundStatus = "confirmed"
)

// Gender of a passenger as accepted by the booking endpoint.
type Gender string

// Genders.
const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day, encoded as YYYY-MM-DD.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate returns the calendar date of t in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return NewDate(t), nil
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Time returns midnight UTC at the start of d.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// String formats d as YYYY-MM-DD.
func (d Date) String() string {
	return d.Time().Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Coordinates is a WGS84 position.
type Coordinates struct {
	Latitude  float64 `json:"latitude" schema:"required"`
	Longitude float64 `json:"longitude" schema:"required"`
}

// Place is a location that can be used as a search origin or destination.
type Place struct {
	ID          PlaceID     `json:"id" schema:"required"`
	Name        string      `json:"name" schema:"required"`
	PlaceTypes  []PlaceType `json:"placeTypes" schema:"required"`
	Coordinates Coordinates `json:"coordinates" schema:"required"`
	CountryCode string      `json:"countryCode"`
	CountryName string      `json:"countryName"`
	IATACode    *string     `json:"iataCode"`
	TimeZone    string      `json:"timeZone"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Price is a monetary amount. Amount is a decimal string to avoid rounding.
type Price struct {
	Currency string `json:"currency" schema:"required"`
	Amount   string `json:"amount" schema:"required"`
}

// String formats the price as "amount currency".
func (p Price) String() string {
	return p.Amount + " " + p.Currency
}

// PriceBreakdown is one component of an offer price.
type PriceBreakdown struct {
	Price         Price  `json:"price" schema:"required"`
	BreakdownType string `json:"breakdownType"`
}

// Fare describes the cabin or class of a segment.
type Fare struct {
	Type          string `json:"type"`
	MarketingName string `json:"marketingName"`
}

// Airport is a flight segment endpoint.
type Airport struct {
	PlaceID     PlaceID     `json:"placeId" schema:"required"`
	Name        string      `json:"name"`
	IATACode    string      `json:"iataCode"`
	Coordinates Coordinates `json:"coordinates"`
}

// TrainStation is a train segment endpoint.
type TrainStation struct {
	PlaceID     PlaceID     `json:"placeId" schema:"required"`
	Name        string      `json:"name"`
	Coordinates Coordinates `json:"coordinates"`
}

// FlightSegment is one leg of a flight offer.
type FlightSegment struct {
	Origin      Airport   `json:"origin" schema:"required"`
	Destination Airport   `json:"destination" schema:"required"`
	DepartureAt time.Time `json:"departureAt" schema:"required"`
	ArrivalAt   time.Time `json:"arrivalAt"`
	Fare        Fare      `json:"fare"`
}

// TrainSegment is one leg of a train offer.
type TrainSegment struct {
	Origin      TrainStation `json:"origin" schema:"required"`
	Destination TrainStation `json:"destination" schema:"required"`
	DepartureAt time.Time    `json:"departureAt" schema:"required"`
	ArrivalAt   time.Time    `json:"arrivalAt"`
	Fare        Fare         `json:"fare"`
}

// OfferTerms are the fields shared by flight and train offers.
type OfferTerms struct {
	ExpiresAt           time.Time        `json:"expiresAt" schema:"required"`
	Price               Price            `json:"price" schema:"required"`
	PriceBreakdown      []PriceBreakdown `json:"priceBreakdown"`
	PassportInformation string           `json:"passportInformation"`
}

// FlightOffer is one result of a flight search.
type FlightOffer struct {
	ID OfferID `json:"id" schema:"required"`
	OfferTerms
	Segments []FlightSegment `json:"segments" schema:"required"`
}

// TrainOffer is one result of a train search.
type TrainOffer struct {
	ID OfferID `json:"id" schema:"required"`
	OfferTerms
	Segments []TrainSegment `json:"segments" schema:"required"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Address is a postal address.
type Address struct {
	AddressLines []string `json:"addressLines"`
	CountryCode  string   `json:"countryCode"`
	PostalCode   string   `json:"postalCode"`
	City         string   `json:"city"`
}

// PassportInformation is required by offers whose PassportInformation
// terms are not "not-required".
type PassportInformation struct {
	DocumentNumber string `json:"documentNumber"`
	IssueCountry   string `json:"issueCountry"`
	Nationality    string `json:"nationality"`
	ExpirationDate Date   `json:"expirationDate"`
	IssueDate      *Date  `json:"issueDate,omitempty"`
}

// Passenger is a traveller on a booking.
type Passenger struct {
	DateOfBirth         Date                 `json:"dateOfBirth" schema:"required"`
	FirstName           string               `json:"firstName" schema:"required"`
	LastName            string               `json:"lastName" schema:"required"`
	Gender              Gender               `json:"gender"`
	Email               string               `json:"email"`
	PhoneNumber         string               `json:"phoneNumber"`
	PassportInformation *PassportInformation `json:"passportInformation,omitempty"`
	ResidentialAddress  *Address             `json:"residentialAddress,omitempty"`
}

// FareRule is a human-readable condition attached to a booking.
type FareRule struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Fulfillment states how the tickets of one segment are delivered.
type Fulfillment struct {
	DeliveryOption  string `json:"deliveryOptions"`
	SegmentSequence int    `json:"segmentSequence"`
}

// Ticket is an issued ticket. TicketURL and CollectionReference are set
// once the ticket is fulfilled, depending on the delivery option.
type Ticket struct {
	Status              string  `json:"status"`
	TicketURL           *string `json:"ticketUrl"`
	CollectionReference *string `json:"collectionReference"`
}

// Booking is a reservation of an offer for a set of passengers.
type Booking struct {
	ID            BookingID     `json:"id" schema:"required"`
	Status        BookingStatus `json:"status"`
	PaymentStatus PaymentStatus `json:"paymentStatus,omitempty"`
	OfferID       OfferID       `json:"offerId,omitempty"`
	Price         Price         `json:"price" schema:"required"`
	Passengers    []Passenger   `json:"passengers"`
	FareRules     []FareRule    `json:"fareRules,omitempty"`
	Fulfillment   []Fulfillment `json:"fulfillmentInformation,omitempty"`
	Tickets       []Ticket      `json:"tickets,omitempty"`
}

// Confirmed reports whether the booking has been confirmed or fulfilled.
func (b *Booking) Confirmed() bool {
	return b.Status == BookingStatusConfirmed || b.Status == BookingStatusFulfilled
}

// Refund describes the refund of a cancellation.
type Refund struct {
	ID           CancellationID `json:"id"`
	Status       RefundStatus   `json:"status" schema:"required"`
	BookingPrice Price          `json:"bookingPrice" schema:"required"`
	RefundAmount Price          `json:"refundAmount" schema:"required"`
}

// collection is the wire envelope of paginated endpoints.
type collection[T any] struct {
	Items []T `json:"items" schema:"required"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

// passengerAge is how searches describe travellers.
type passengerAge struct {
	DateOfBirth Date `json:"dateOfBirth"`
}
