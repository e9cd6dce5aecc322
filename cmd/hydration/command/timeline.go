package command

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tidepool-org/hydration/config"
	"github.com/tidepool-org/hydration/normalize"
	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/periods"
	"github.com/tidepool-org/hydration/thresholds"
	"github.com/tidepool-org/hydration/timeline"
)

var timelineReplayParams = struct {
	File      string
	PatientId string
	Group     string
	Now       string
}{}

var timelineCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Patient timelines",
	Long:  "The timeline command is used to work with raw intake and output records",
}

var timelineReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay raw records",
	Long:  "The replay command normalizes and merges a JSON list of raw records and prints the resulting dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		return RunOffline(replayTimeline)
	},
}

func init() {
	timelineReplayCmd.Flags().StringVar(&timelineReplayParams.File, "file", "", "JSON file with a list of raw records")
	timelineReplayCmd.Flags().StringVar(&timelineReplayParams.PatientId, "patient", "replay", "Patient id assigned to the records")
	timelineReplayCmd.Flags().StringVar(&timelineReplayParams.Group, "group", string(thresholds.GroupNone), "Patient group used for classification")
	timelineReplayCmd.Flags().StringVar(&timelineReplayParams.Now, "now", "", "Evaluation time in RFC 3339 format, defaults to the current time")
	_ = timelineReplayCmd.MarkFlagRequired("file")

	timelineCmd.AddCommand(timelineReplayCmd)
	rootCmd.AddCommand(timelineCmd)
}

func replayTimeline(cfg *config.Config, thresholdsConfig *thresholds.Config, clock config.Clock, logger *zap.SugaredLogger) error {
	data, err := os.ReadFile(timelineReplayParams.File)
	if err != nil {
		return err
	}
	var records []normalize.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("unable to parse records: %w", err)
	}

	now := clock()
	if timelineReplayParams.Now != "" {
		if now, err = time.Parse(time.RFC3339, timelineReplayParams.Now); err != nil {
			return fmt.Errorf("invalid evaluation time: %w", err)
		}
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}
	table, err := thresholds.NewTable(thresholdsConfig, logger)
	if err != nil {
		return err
	}

	group := thresholds.Group(timelineReplayParams.Group)
	limits, err := table.Limits(group)
	if err != nil {
		return err
	}

	patient := patients.Patient{
		Id:      timelineReplayParams.PatientId,
		Name:    timelineReplayParams.PatientId,
		Group:   group,
		Limits:  limits,
		Entries: []timeline.Entry{},
	}

	normalizer := normalize.New(location, func() time.Time { return now })
	batch, malformed := patients.NewBatch(normalizer, records)

	next, result := patients.Reduce(patient, batch, patients.Environment{
		Merger: timeline.NewMerger(cfg.MergerOptions()),
		Now:    now,
	})

	dashboard, err := patients.NewEvaluator(table, periods.NewBucketizer(nil, location)).Dashboard(next, now)
	if err != nil {
		return err
	}
	dashboard.Discarded = result.Discarded
	if malformed > 0 {
		dashboard.Discarded[timeline.DiscardMalformed] += malformed
	}

	output, err := json.MarshalIndent(dashboard, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(output))

	return nil
}
