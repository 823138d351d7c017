package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	bookingCommands "github.com/felixgeelhaar/tempora/internal/booking/application/commands"
	bookingDomain "github.com/felixgeelhaar/tempora/internal/booking/domain"
)

var bookCmd = &cobra.Command{
	Use:   "book <slug> <start>",
	Short: "Attempt a booking",
	Long: `Attempt to book a slot. The slot is verified against current
availability and claimed atomically; a losing attempt is recorded as
rejected with the reason.

Example:
  tempora book intro-call 2026-09-07T10:00:00Z --user <id> \
    --attendee "Ada Lovelace" --email ada@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		startAt, err := parseDateOrTime(args[1])
		if err != nil {
			return fmt.Errorf("invalid start time %q: %w", args[1], err)
		}
		attendee, _ := cmd.Flags().GetString("attendee")
		email, _ := cmd.Flags().GetString("email")

		booking, err := c.AttemptBooking.Attempt(cmd.Context(), bookingCommands.AttemptBookingCommand{
			UserID:        userID,
			Slug:          args[0],
			StartAt:       startAt,
			AttendeeName:  attendee,
			AttendeeEmail: email,
		})
		if err != nil {
			if errors.Is(err, bookingDomain.ErrSlotUnavailable) {
				fmt.Println("Slot unavailable.")
				fmt.Printf("  Reason: %s\n", booking.RejectReason())
				return nil
			}
			return fmt.Errorf("booking attempt failed: %w", err)
		}

		fmt.Println("Booking confirmed!")
		fmt.Printf("  ID: %s\n", booking.ID())
		fmt.Printf("  Slot: %s - %s\n",
			booking.StartAt().Format("Mon, Jan 2 2006 15:04"),
			booking.EndAt().Format("15:04"),
		)
		fmt.Printf("  Attendee: %s <%s>\n", booking.Attendee().Name, booking.Attendee().Email)
		return nil
	},
}

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List bookings",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		bookings, err := c.ListBookings.Execute(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list bookings: %w", err)
		}
		if len(bookings) == 0 {
			fmt.Println("No bookings yet.")
			return nil
		}

		for _, b := range bookings {
			fmt.Printf("%s  %-10s %s  %s\n",
				b.ID(),
				b.Status(),
				b.StartAt().Format("2006-01-02 15:04"),
				b.Attendee().Name,
			)
		}
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <booking-id>",
	Short: "Cancel a confirmed booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		bookingID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid booking ID %q: %w", args[0], err)
		}

		booking, err := c.CancelBooking.Cancel(cmd.Context(), bookingID)
		if err != nil {
			if errors.Is(err, bookingDomain.ErrBookingNotFound) {
				return fmt.Errorf("booking %s not found", bookingID)
			}
			if errors.Is(err, bookingDomain.ErrInvalidTransition) {
				return fmt.Errorf("only confirmed bookings can be cancelled")
			}
			return fmt.Errorf("failed to cancel booking: %w", err)
		}

		fmt.Println("Booking cancelled.")
		fmt.Printf("  Freed slot: %s - %s\n",
			booking.StartAt().Format("Mon, Jan 2 2006 15:04"),
			booking.EndAt().Format("15:04"),
		)
		return nil
	},
}

func init() {
	bookCmd.Flags().String("user", "", "host user ID")
	bookCmd.Flags().String("attendee", "", "attendee name")
	bookCmd.Flags().String("email", "", "attendee email")
	_ = bookCmd.MarkFlagRequired("user")

	bookingsCmd.Flags().String("user", "", "host user ID")
	_ = bookingsCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(bookingsCmd)
	rootCmd.AddCommand(cancelCmd)
}
