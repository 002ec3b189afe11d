package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/clousec/clousec/events/modules/cloudevents"
	"github.com/clousec/clousec/internal/config"
	"github.com/clousec/clousec/model"
	"github.com/spf13/cobra"
)

var eventFile string

var publishEventCmd = &cobra.Command{
	Use:   "publish-event",
	Short: "Publish a cloud event to the Kafka topic",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ev, err := readEvent(eventFile)
		if err != nil {
			return err
		}

		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if !cfg.KafkaEnabled() {
			return errors.New("KAFKA_BROKERS is not set")
		}

		producer := cloudevents.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaAPIKey, cfg.KafkaAPISecret)
		defer producer.Close()

		id, err := producer.Publish(cmd.Context(), ev)
		if err != nil {
			return fmt.Errorf("publishing event: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "published %s to %s\n", id, cfg.KafkaTopic)
		return nil
	},
}

func init() {
	publishEventCmd.Flags().StringVar(&eventFile, "file", "", "path to the event JSON")
	_ = publishEventCmd.MarkFlagRequired("file")
}

// readEvent loads and validates an event file, rejecting anything the /event
// endpoint would reject.
func readEvent(path string) (model.CloudEvent, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.CloudEvent{}, err
	}
	return cloudevents.ParseCloudEvent(data)
}
