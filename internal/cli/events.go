package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"expenses/internal/amqp"
)

func newEventsCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the expense event stream",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "watch",
		Short: "Print expense events from the queue as JSON lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfg.AMQPURL == "" {
				return errors.New("events watch needs AMQP_URL")
			}
			client, err := amqp.Connect(cmd.Context(), rt.cfg.AMQPURL, rt.cfg.AMQPExchange, rt.cfg.AMQPQueue, amqpConnectAttempts)
			if err != nil {
				return err
			}
			defer client.Close()

			err = client.Consume(cmd.Context(), printEvent(cmd.OutOrStdout()))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	})
	return cmd
}

func printEvent(w io.Writer) func(amqp.ExpenseEvent) error {
	enc := json.NewEncoder(w)
	return func(ev amqp.ExpenseEvent) error {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("write event: %w", err)
		}
		return nil
	}
}
