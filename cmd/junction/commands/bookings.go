package commands

import (
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/junction-dev/junction-go/pkg/junction"
)

// NewBookingsCommand creates the bookings command group.
func NewBookingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "Manage bookings",
		Long:    "Create, inspect and confirm bookings",
	}

	cmd.AddCommand(newBookingsCreateCommand())
	cmd.AddCommand(newBookingsGetCommand())
	cmd.AddCommand(newBookingsConfirmCommand())

	return cmd
}

func newBookingsCreateCommand() *cobra.Command {
	var (
		offerID        string
		passengersFile string
		idempotencyKey string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book an offer",
		Long: `Reserve an offer for the passengers listed in a YAML or JSON file.
The file holds a list of passengers using the API's field names:

  - firstName: Ada
    lastName: Lovelace
    dateOfBirth: "1990-12-10"
    gender: female
    email: ada@example.com

The booking stays pending until 'junction bookings confirm'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var passengers []junction.Passenger
			if err := readStructured(passengersFile, &passengers); err != nil {
				return err
			}

			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var opts []junction.CallOption
			if idempotencyKey != "" {
				opts = append(opts, junction.WithIdempotencyKey(idempotencyKey))
			}

			booking, err := client.CreateBooking(ctx, junction.BookingRequest{
				OfferID:    junction.OfferID(offerID),
				Passengers: passengers,
			}, opts...)
			if err != nil {
				return fmt.Errorf("failed to create booking: %w", err)
			}
			return renderBooking(cmd, booking)
		},
	}

	cmd.Flags().StringVar(&offerID, "offer", "", "offer ID to book")
	cmd.Flags().StringVarP(&passengersFile, "passengers", "p", "", "YAML or JSON file with the passengers")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key that makes a repeated create return the same booking")
	_ = cmd.MarkFlagRequired("offer")
	_ = cmd.MarkFlagRequired("passengers")

	return cmd
}

func newBookingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get BOOKING_ID...",
		Short: "Get bookings by ID",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			if len(args) == 1 {
				booking, err := client.GetBooking(ctx, junction.BookingID(args[0]))
				if err != nil {
					return err
				}
				return renderBooking(cmd, booking)
			}

			ids := make([]junction.BookingID, len(args))
			for i, a := range args {
				ids[i] = junction.BookingID(a)
			}
			found, err := client.GetBookings(ctx, ids...)
			if err != nil {
				return err
			}
			bookings := make([]junction.Booking, 0, len(ids))
			for _, id := range ids {
				if b, ok := found[id]; ok {
					bookings = append(bookings, *b)
				}
			}
			return render(cmd.OutOrStdout(), bookings, func(t *tablewriter.Table) {
				t.Header("ID", "Status", "Payment", "Price", "Passengers")
				for _, b := range bookings {
					_ = t.Append(string(b.ID), orDash(string(b.Status)), orDash(string(b.PaymentStatus)),
						b.Price.String(), fmt.Sprint(len(b.Passengers)))
				}
			})
		},
	}
}

func newBookingsConfirmCommand() *cobra.Command {
	var idempotencyKey string

	cmd := &cobra.Command{
		Use:   "confirm BOOKING_ID",
		Short: "Confirm a pending booking",
		Long:  "Confirm a pending booking and start payment and ticketing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			var opts []junction.CallOption
			if idempotencyKey != "" {
				opts = append(opts, junction.WithIdempotencyKey(idempotencyKey))
			}

			booking, err := client.ConfirmBooking(ctx, junction.BookingID(args[0]), opts...)
			if err != nil {
				return fmt.Errorf("failed to confirm booking: %w", err)
			}
			return renderBooking(cmd, booking)
		},
	}

	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "key that makes a repeated confirm safe")

	return cmd
}

func renderBooking(cmd *cobra.Command, b *junction.Booking) error {
	return render(cmd.OutOrStdout(), b, func(t *tablewriter.Table) {
		t.Header("Property", "Value")
		_ = t.Append("ID", string(b.ID))
		_ = t.Append("Status", orDash(string(b.Status)))
		_ = t.Append("Payment", orDash(string(b.PaymentStatus)))
		_ = t.Append("Offer", orDash(string(b.OfferID)))
		_ = t.Append("Price", b.Price.String())
		for i, p := range b.Passengers {
			_ = t.Append(fmt.Sprintf("Passenger %d", i+1), p.FirstName+" "+p.LastName)
		}
		for _, tk := range b.Tickets {
			if tk.TicketURL != nil {
				_ = t.Append("Ticket", *tk.TicketURL)
			}
		}
	})
}

// NewCancellationsCommand creates the cancellations command group.
func NewCancellationsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "cancellations",
		Aliases: []string{"cancellation", "cancel"},
		Short:   "Cancel bookings",
		Long: `Cancel a booking in two steps: 'request' returns the refund on offer
and a cancellation ID, 'confirm' accepts it.`,
	}

	cmd.AddCommand(newCancellationsRequestCommand())
	cmd.AddCommand(newCancellationsConfirmCommand())

	return cmd
}

func newCancellationsRequestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "request BOOKING_ID",
		Short: "Request cancellation of a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			refund, err := client.RequestCancellation(ctx, junction.BookingID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to request cancellation: %w", err)
			}
			return renderRefund(cmd, refund)
		},
	}
}

func newCancellationsConfirmCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm CANCELLATION_ID",
		Short: "Confirm a requested cancellation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, done, err := newClient(cmd)
			if err != nil {
				return err
			}
			defer done()

			ctx, cancel := commandContext(cmd)
			defer cancel()

			refund, err := client.ConfirmCancellation(ctx, junction.CancellationID(args[0]))
			if err != nil {
				return fmt.Errorf("failed to confirm cancellation: %w", err)
			}
			return renderRefund(cmd, refund)
		},
	}
}

func renderRefund(cmd *cobra.Command, r *junction.Refund) error {
	return render(cmd.OutOrStdout(), r, func(t *tablewriter.Table) {
		t.Header("Property", "Value")
		_ = t.Append("Cancellation ID", orDash(string(r.ID)))
		_ = t.Append("Status", string(r.Status))
		_ = t.Append("Booking price", r.BookingPrice.String())
		_ = t.Append("Refund", r.RefundAmount.String())
	})
}
