package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	availabilityQueries "github.com/felixgeelhaar/tempora/internal/availability/application/queries"
)

var slotsCmd = &cobra.Command{
	Use:   "slots <slug>",
	Short: "Show bookable slots for an event type",
	Long: `Compute the bookable slot grid for an event type over a date range.

Examples:
  tempora slots intro-call --user <id> --from 2026-09-07 --to 2026-09-08
  tempora slots intro-call --user <id>    (defaults to the next 7 days)`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		from, to, err := parseRangeFlags(cmd)
		if err != nil {
			return err
		}

		resp, err := c.GetSlots.Execute(cmd.Context(), availabilityQueries.SlotsRequest{
			UserID: userID,
			Slug:   args[0],
			From:   from,
			To:     to,
		})
		if err != nil {
			return fmt.Errorf("failed to compute slots: %w", err)
		}

		if resp.Degraded {
			fmt.Printf("Warning: some sources were unreachable (%v); grid may be incomplete.\n",
				resp.ExcludedSources)
		}
		if len(resp.Slots) == 0 {
			fmt.Println("No slots available in this range.")
			return nil
		}

		day := ""
		for _, slot := range resp.Slots {
			if d := slot.Start.Format("Mon, Jan 2 2006"); d != day {
				day = d
				fmt.Printf("\n%s\n", day)
			}
			fmt.Printf("  %s - %s\n",
				slot.Start.Format("15:04"),
				slot.End.Format("15:04"),
			)
		}
		return nil
	},
}

// parseRangeFlags reads --from/--to, defaulting to the next 7 days.
func parseRangeFlags(cmd *cobra.Command) (time.Time, time.Time, error) {
	fromStr, _ := cmd.Flags().GetString("from")
	toStr, _ := cmd.Flags().GetString("to")

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	var err error
	if fromStr != "" {
		if from, err = parseDateOrTime(fromStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --from: %w", err)
		}
	}
	if toStr != "" {
		if to, err = parseDateOrTime(toStr); err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid --to: %w", err)
		}
	}
	return from, to, nil
}

func parseDateOrTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", value)
}

func init() {
	slotsCmd.Flags().String("user", "", "host user ID")
	slotsCmd.Flags().String("from", "", "range start (YYYY-MM-DD or RFC 3339)")
	slotsCmd.Flags().String("to", "", "range end (YYYY-MM-DD or RFC 3339)")
	_ = slotsCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(slotsCmd)
}
