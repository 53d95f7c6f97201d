package junction

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/junction-dev/junction-go/internal/apierr"
	"github.com/junction-dev/junction-go/internal/request"
	"github.com/junction-dev/junction-go/pkg/pagination"
)

// BookingRequest reserves an offer for the given passengers.
type BookingRequest struct {
	OfferID    OfferID     `json:"offerId"`
	Passengers []Passenger `json:"passengers"`
}

// Validate implements request validation for bookings.
func (r BookingRequest) Validate() error {
	if r.OfferID == "" {
		return &apierr.ValidationError{Param: "offerId", Message: "offer is required"}
	}
	if len(r.Passengers) == 0 {
		return &apierr.ValidationError{Param: "passengers", Message: "at least one passenger is required"}
	}
	for i, p := range r.Passengers {
		if err := p.validate(fmt.Sprintf("passengers[%d]", i)); err != nil {
			return err
		}
	}
	return nil
}

func (p Passenger) validate(path string) error {
	invalid := func(field, msg string) error {
		return &apierr.ValidationError{Param: path + "." + field, Message: msg}
	}
	switch {
	case p.FirstName == "":
		return invalid("firstName", "first name is required")
	case p.LastName == "":
		return invalid("lastName", "last name is required")
	case p.DateOfBirth.IsZero():
		return invalid("dateOfBirth", "date of birth is required")
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale:
	default:
		return invalid("gender", fmt.Sprintf("must be %q or %q", GenderMale, GenderFemale))
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return invalid("email", "not a valid address")
		}
	}
	if pi := p.PassportInformation; pi != nil {
		if pi.DocumentNumber == "" {
			return invalid("passportInformation.documentNumber", "document number is required")
		}
		if pi.ExpirationDate.IsZero() {
			return invalid("passportInformation.expirationDate", "expiration date is required")
		}
	}
	return nil
}

// CreateBooking reserves an offer. The booking stays pending until
// ConfirmBooking is called.
func (c *Client) CreateBooking(ctx context.Context, req BookingRequest, opts ...CallOption) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, request.OpCreateBooking, nil, req, &b, opts...); err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("booking_id", string(b.ID)).
		Str("status", string(b.Status)).
		Msg("Booking created")
	return &b, nil
}

// GetBooking returns the current state of a booking.
func (c *Client) GetBooking(ctx context.Context, id BookingID) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, request.OpGetBooking, request.Params{"bookingId": id}, nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// GetBookings fetches several bookings in parallel. On partial failure it
// returns the bookings that were fetched together with an error.
func (c *Client) GetBookings(ctx context.Context, ids ...BookingID) (map[BookingID]*Booking, error) {
	results, err := pagination.FetchAll(ctx, ids, c.GetBooking, c.batchConfig())
	out := make(map[BookingID]*Booking, len(results))
	for _, r := range results {
		if r.Err == nil {
			out[r.Key] = r.Value
		}
	}
	if err != nil {
		return out, fmt.Errorf("get bookings: %w", err)
	}
	return out, nil
}

// ConfirmBooking confirms a pending booking and starts payment and
// ticketing.
func (c *Client) ConfirmBooking(ctx context.Context, id BookingID, opts ...CallOption) (*Booking, error) {
	var b Booking
	if err := c.do(ctx, request.OpConfirmBooking, request.Params{"bookingId": id}, nil, &b, opts...); err != nil {
		return nil, err
	}
	return &b, nil
}

// RequestCancellation asks to cancel a booking and returns the refund on
// offer. The cancellation takes effect once confirmed with
// ConfirmCancellation using the returned Refund.ID.
func (c *Client) RequestCancellation(ctx context.Context, id BookingID, opts ...CallOption) (*Refund, error) {
	var r Refund
	if err := c.do(ctx, request.OpRequestCancellation, request.Params{"bookingId": id}, nil, &r, opts...); err != nil {
		return nil, err
	}
	return &r, nil
}

// ConfirmCancellation confirms a requested cancellation.
func (c *Client) ConfirmCancellation(ctx context.Context, id CancellationID, opts ...CallOption) (*Refund, error) {
	var r Refund
	if err := c.do(ctx, request.OpConfirmCancellation, request.Params{"cancellationId": id}, nil, &r, opts...); err != nil {
		return nil, err
	}
	return &r, nil
}
