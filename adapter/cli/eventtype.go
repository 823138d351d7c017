package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	eventtypesApp "github.com/felixgeelhaar/tempora/internal/eventtypes/application"
)

var eventTypeCmd = &cobra.Command{
	Use:   "event-type",
	Short: "Manage bookable event types",
}

var eventTypeCreateCmd = &cobra.Command{
	Use:   "create <slug>",
	Short: "Create an event type",
	Long: `Create a bookable event type.

Windows are weekly recurring ranges in the form DAY:HH:MM-HH:MM,
repeatable, e.g. --window mon:09:00-17:00 --window fri:09:00-12:00.

Examples:
  tempora event-type create intro-call --user <id> --title "Intro Call" \
    --duration 30m --window mon:09:00-17:00 --window tue:09:00-17:00
  tempora event-type create deep-dive --user <id> --title "Deep Dive" \
    --duration 1h --buffer-after 15m --min-notice 24h --max-per-day 4`,
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

		title, _ := cmd.Flags().GetString("title")
		duration, _ := cmd.Flags().GetDuration("duration")
		increment, _ := cmd.Flags().GetDuration("increment")
		timezone, _ := cmd.Flags().GetString("timezone")
		bufferBefore, _ := cmd.Flags().GetDuration("buffer-before")
		bufferAfter, _ := cmd.Flags().GetDuration("buffer-after")
		minNotice, _ := cmd.Flags().GetDuration("min-notice")
		maxPerDay, _ := cmd.Flags().GetInt("max-per-day")
		windowSpecs, _ := cmd.Flags().GetStringArray("window")

		if increment == 0 {
			increment = duration
		}

		windows := make([]eventtypesApp.WindowInput, 0, len(windowSpecs))
		for _, spec := range windowSpecs {
			win, err := parseWindowSpec(spec, timezone)
			if err != nil {
				return err
			}
			windows = append(windows, win)
		}

		eventType, err := c.EventTypeService.Create(cmd.Context(), eventtypesApp.CreateEventTypeCommand{
			UserID:            userID,
			Slug:              args[0],
			Title:             title,
			Duration:          duration,
			Increment:         increment,
			Timezone:          timezone,
			BufferBefore:      bufferBefore,
			BufferAfter:       bufferAfter,
			MinimumNotice:     minNotice,
			MaxBookingsPerDay: maxPerDay,
			Windows:           windows,
		})
		if err != nil {
			return fmt.Errorf("failed to create event type: %w", err)
		}

		fmt.Println("Event type created!")
		fmt.Printf("  Slug: %s\n", eventType.Slug())
		fmt.Printf("  Title: %s\n", eventType.Title())
		fmt.Printf("  Duration: %s\n", eventType.Duration())
		fmt.Printf("  Windows: %d\n", len(windows))
		return nil
	},
}

var eventTypeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List event types",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		eventTypes, err := c.EventTypeService.List(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list event types: %w", err)
		}
		if len(eventTypes) == 0 {
			fmt.Println("No event types yet. Create one with: tempora event-type create")
			return nil
		}

		for _, et := range eventTypes {
			fmt.Printf("%-20s %-30s %s\n", et.Slug(), et.Title(), et.Duration())
		}
		return nil
	},
}

var eventTypeDeleteCmd = &cobra.Command{
	Use:   "delete <slug>",
	Short: "Delete an event type",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		if err := c.EventTypeService.Delete(cmd.Context(), userID, args[0]); err != nil {
			return fmt.Errorf("failed to delete event type: %w", err)
		}
		fmt.Printf("Event type %q deleted.\n", args[0])
		return nil
	},
}

// parseWindowSpec parses DAY:HH:MM-HH:MM into a weekly window.
func parseWindowSpec(spec, timezone string) (eventtypesApp.WindowInput, error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 {
		return eventtypesApp.WindowInput{}, fmt.Errorf("invalid window %q, expected DAY:HH:MM-HH:MM", spec)
	}

	weekday, err := parseWeekday(parts[0])
	if err != nil {
		return eventtypesApp.WindowInput{}, err
	}

	times := strings.SplitN(parts[1], "-", 2)
	if len(times) != 2 {
		return eventtypesApp.WindowInput{}, fmt.Errorf("invalid window %q, expected DAY:HH:MM-HH:MM", spec)
	}
	start, err := parseMinuteOfDay(times[0])
	if err != nil {
		return eventtypesApp.WindowInput{}, fmt.Errorf("invalid window %q: %w", spec, err)
	}
	end, err := parseMinuteOfDay(times[1])
	if err != nil {
		return eventtypesApp.WindowInput{}, fmt.Errorf("invalid window %q: %w", spec, err)
	}

	return eventtypesApp.WindowInput{
		Weekday:     weekday,
		StartMinute: start,
		EndMinute:   end,
		Timezone:    timezone,
	}, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	switch strings.ToLower(name) {
	case "sun", "sunday":
		return time.Sunday, nil
	case "mon", "monday":
		return time.Monday, nil
	case "tue", "tuesday":
		return time.Tuesday, nil
	case "wed", "wednesday":
		return time.Wednesday, nil
	case "thu", "thursday":
		return time.Thursday, nil
	case "fri", "friday":
		return time.Friday, nil
	case "sat", "saturday":
		return time.Saturday, nil
	default:
		return 0, fmt.Errorf("unknown weekday %q", name)
	}
}

func parseMinuteOfDay(value string) (int, error) {
	parts := strings.SplitN(value, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", value)
	}
	return hour*60 + minute, nil
}

func init() {
	eventTypeCreateCmd.Flags().String("user", "", "host user ID")
	eventTypeCreateCmd.Flags().String("title", "", "display title")
	eventTypeCreateCmd.Flags().Duration("duration", 30*time.Minute, "meeting duration")
	eventTypeCreateCmd.Flags().Duration("increment", 0, "slot grid step (defaults to duration)")
	eventTypeCreateCmd.Flags().String("timezone", "UTC", "host timezone")
	eventTypeCreateCmd.Flags().Duration("buffer-before", 0, "buffer before each booking")
	eventTypeCreateCmd.Flags().Duration("buffer-after", 0, "buffer after each booking")
	eventTypeCreateCmd.Flags().Duration("min-notice", 0, "minimum notice before a slot")
	eventTypeCreateCmd.Flags().Int("max-per-day", 0, "daily booking cap (0 = unlimited)")
	eventTypeCreateCmd.Flags().StringArray("window", nil, "weekly window DAY:HH:MM-HH:MM (repeatable)")
	_ = eventTypeCreateCmd.MarkFlagRequired("user")

	eventTypeListCmd.Flags().String("user", "", "host user ID")
	_ = eventTypeListCmd.MarkFlagRequired("user")

	eventTypeDeleteCmd.Flags().String("user", "", "host user ID")
	_ = eventTypeDeleteCmd.MarkFlagRequired("user")

	eventTypeCmd.AddCommand(eventTypeCreateCmd)
	eventTypeCmd.AddCommand(eventTypeListCmd)
	eventTypeCmd.AddCommand(eventTypeDeleteCmd)
	rootCmd.AddCommand(eventTypeCmd)
}
