package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/tempora/adapter/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	Long: `Start the booking API server.

Exposes slot queries, booking attempts and cancellations over REST.
The outbox processor runs alongside the server unless disabled via
OUTBOX_PROCESSOR_ENABLED=false.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := GetContainer()
		if c == nil {
			return fmt.Errorf("server requires storage; check DATABASE_URL")
		}

		handler := api.NewSchedulingHandler(api.SchedulingHandlerConfig{
			Slots:          c.GetSlots,
			AttemptBooking: c.AttemptBooking,
			CancelBooking:  c.CancelBooking,
			GetBooking:     c.GetBooking,
			ListBookings:   c.ListBookings,
			Logger:         c.Logger,
		})

		serverCfg := api.DefaultServerConfig()
		serverCfg.Addr = c.Config.APIAddr
		serverCfg.ReadTimeout = c.Config.APIReadTimeout
		serverCfg.WriteTimeout = c.Config.APIWriteTimeout
		server := api.NewServer(serverCfg, handler, c.Logger)

		ctx := cmd.Context()
		if c.Config.OutboxProcessorEnabled {
			if err := c.OutboxProcessor.Start(ctx); err != nil {
				return fmt.Errorf("failed to start outbox processor: %w", err)
			}
		}
		if c.InProcessEventBus != nil {
			if err := c.InProcessEventBus.Start(ctx); err != nil {
				return fmt.Errorf("failed to start event bus: %w", err)
			}
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		fmt.Printf("Tempora listening on %s\n", serverCfg.Addr)

		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case err := <-errCh:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
