package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewEventCmd создаёт группу команд для отправки тестовых событий.
func NewEventCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Send store events for testing",
	}

	cmd.AddCommand(newEventSendCmd(clientFn, outputFn))

	return cmd
}

func newEventSendCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var eventID string
	var payloadFile string
	var payloadInline string

	cmd := &cobra.Command{
		Use:   "send TOPIC",
		Short: "Send an event to the webhook endpoint",
		Long: `Send an event to the webhook endpoint.

The topic uses the store format, e.g. "orders/create" or "customers/update".
Payload comes from --payload-file or --payload; with neither, an empty
object is sent. Pass --event-id to make redelivery idempotent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			topic := strings.Trim(args[0], "/")
			if topic == "" {
				return fmt.Errorf("topic is required")
			}

			raw := []byte(`{}`)
			switch {
			case payloadFile != "":
				data, err := os.ReadFile(payloadFile)
				if err != nil {
					return fmt.Errorf("failed to read payload file: %w", err)
				}
				raw = data
			case payloadInline != "":
				raw = []byte(payloadInline)
			}

			var payload map[string]any
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("payload is not a valid JSON object: %w", err)
			}

			resp, err := client.SendEvent(cmd.Context(), topic, eventID, payload)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Event accepted: %d flows matched", resp.FlowsMatched))
			out.Print(
				[]string{"TOPIC", "EVENT_ID", "FLOWS_MATCHED"},
				[][]string{{resp.Topic, resp.ExternalEventID, strconv.Itoa(resp.FlowsMatched)}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&eventID, "event-id", "", "External event ID for idempotency")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Path to payload JSON file")
	cmd.Flags().StringVar(&payloadInline, "payload", "", "Inline payload JSON")

	return cmd
}
