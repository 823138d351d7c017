package cli

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	sourcesApp "github.com/felixgeelhaar/tempora/internal/sources/application"
	"github.com/felixgeelhaar/tempora/internal/sources/domain"
)

var sourceCmd = &cobra.Command{
	Use:   "source",
	Short: "Manage connected busy sources",
}

var sourceConnectCmd = &cobra.Command{
	Use:   "connect <type>",
	Short: "Connect a busy source",
	Long: `Connect a calendar or booking source whose busy time should block
slots. Supported types: caldav, google, bookings.

Settings are passed as key=value pairs, e.g.:
  tempora source connect caldav --user <id> --name "Work" \
    --setting caldav_url=https://cal.example.com \
    --setting caldav_username=me --setting caldav_password=secret
  tempora source connect bookings --user <id> --name "Tempora"`,
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

		name, _ := cmd.Flags().GetString("name")
		pairs, _ := cmd.Flags().GetStringArray("setting")

		settings := make(map[string]string, len(pairs))
		for _, pair := range pairs {
			key, value, found := strings.Cut(pair, "=")
			if !found {
				return fmt.Errorf("invalid --setting %q, expected key=value", pair)
			}
			settings[key] = value
		}

		source, err := c.ConnectSource.Connect(cmd.Context(), sourcesApp.ConnectSourceCommand{
			UserID:     userID,
			SourceType: domain.SourceType(args[0]),
			Name:       name,
			Settings:   settings,
		})
		if err != nil {
			return fmt.Errorf("failed to connect source: %w", err)
		}

		fmt.Println("Source connected!")
		fmt.Printf("  ID: %s\n", source.ID())
		fmt.Printf("  Type: %s\n", source.SourceType())
		fmt.Printf("  Name: %s\n", source.Name())
		return nil
	},
}

var sourceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("command requires storage; check DATABASE_URL")
		}
		userID, err := parseUserFlag(cmd)
		if err != nil {
			return err
		}

		sources, err := c.ListSources.Execute(cmd.Context(), userID)
		if err != nil {
			return fmt.Errorf("failed to list sources: %w", err)
		}
		if len(sources) == 0 {
			fmt.Println("No sources connected.")
			return nil
		}

		for _, s := range sources {
			state := "enabled"
			if !s.IsEnabled() {
				state = "disabled"
			}
			fmt.Printf("%s  %-10s %-20s %s\n", s.ID(), s.SourceType(), s.Name(), state)
		}
		return nil
	},
}

var sourceDisconnectCmd = &cobra.Command{
	Use:   "disconnect <source-id>",
	Short: "Disconnect a source",
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
		sourceID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid source ID %q: %w", args[0], err)
		}

		if err := c.DisconnectSource.Disconnect(cmd.Context(), userID, sourceID); err != nil {
			return fmt.Errorf("failed to disconnect source: %w", err)
		}
		fmt.Println("Source disconnected.")
		return nil
	},
}

func init() {
	sourceConnectCmd.Flags().String("user", "", "host user ID")
	sourceConnectCmd.Flags().String("name", "", "display name")
	sourceConnectCmd.Flags().StringArray("setting", nil, "provider setting key=value (repeatable)")
	_ = sourceConnectCmd.MarkFlagRequired("user")

	sourceListCmd.Flags().String("user", "", "host user ID")
	_ = sourceListCmd.MarkFlagRequired("user")

	sourceDisconnectCmd.Flags().String("user", "", "host user ID")
	_ = sourceDisconnectCmd.MarkFlagRequired("user")

	sourceCmd.AddCommand(sourceConnectCmd)
	sourceCmd.AddCommand(sourceListCmd)
	sourceCmd.AddCommand(sourceDisconnectCmd)
	rootCmd.AddCommand(sourceCmd)
}
