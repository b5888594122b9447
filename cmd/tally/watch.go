package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/alfredjeanlab/tally/internal/events"
	"github.com/alfredjeanlab/tally/internal/ui"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [topic]",
	Short: "Stream server events as they happen",
	Long: `Watch subscribes to the server's NATS event stream and prints events as
they arrive. By default it watches everything ("tally.>"); pass a topic
pattern to narrow it, e.g. "tally.partition.>" or "tally.fact.appended".

The NATS URL comes from TALLY_NATS_URL or the active remote.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		topic := "tally.>"
		if len(args) == 1 {
			topic = args[0]
		}

		natsURL := os.Getenv("TALLY_NATS_URL")
		if natsURL == "" {
			natsURL = activeRemoteNATSURL()
		}
		if natsURL == "" {
			return fmt.Errorf("no NATS URL: set TALLY_NATS_URL or configure one with 'tally remote add --nats'")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Printf("nats: disconnected: %v", err)
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Printf("nats: reconnected")
			}),
		)
		if err != nil {
			return fmt.Errorf("connecting to NATS: %w", err)
		}
		defer sub.Close()

		ch, cancel, err := sub.Subscribe(topic)
		if err != nil {
			return fmt.Errorf("subscribing to events: %w", err)
		}
		defer cancel()

		fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", topic)
		for {
			select {
			case <-ctx.Done():
				return nil
			case data, ok := <-ch:
				if !ok {
					return nil
				}
				printEvent(data)
			}
		}
	},
}

// printEvent renders one raw event payload. JSON mode emits the payload as is;
// otherwise a timestamped one-liner.
func printEvent(data []byte) {
	if jsonOutput {
		fmt.Println(string(data))
		return
	}
	line := new(bytes.Buffer)
	if err := json.Compact(line, data); err != nil {
		line = bytes.NewBuffer(data)
	}
	fmt.Printf("%s %s\n", ui.RenderMuted(time.Now().Format("15:04:05")), line.String())
}
