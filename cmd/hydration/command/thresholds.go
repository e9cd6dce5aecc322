package command

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tidepool-org/hydration/thresholds"
)

var thresholdsValidateParams = struct {
	Override string
	Strict   bool
}{}

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "Threshold tables",
	Long:  "The thresholds command is used to inspect the status threshold tables",
}

var thresholdsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the threshold table",
	Long:  "The validate command loads the built-in table with an optional override and reports intervals that fall back to normal",
	RunE:  func(cmd *cobra.Command, args []string) error { return RunOffline(validateThresholds) },
}

func init() {
	thresholdsValidateCmd.Flags().StringVar(&thresholdsValidateParams.Override, "override", "", "YAML file with threshold overrides")
	thresholdsValidateCmd.Flags().BoolVar(&thresholdsValidateParams.Strict, "strict", false, "Treat coverage gaps as errors")

	thresholdsCmd.AddCommand(thresholdsValidateCmd)
	rootCmd.AddCommand(thresholdsCmd)
}

func validateThresholds(cfg *thresholds.Config) error {
	override := cfg.OverrideFile
	if thresholdsValidateParams.Override != "" {
		override = thresholdsValidateParams.Override
	}
	strict := cfg.Strict || thresholdsValidateParams.Strict

	var data []byte
	if override != "" {
		var err error
		if data, err = os.ReadFile(override); err != nil {
			return fmt.Errorf("unable to read thresholds override: %w", err)
		}
	}

	table, err := thresholds.Load(data, strict)
	if err != nil {
		return err
	}

	issues := table.Coverage()
	for _, issue := range issues {
		fmt.Println(issue.String())
	}
	fmt.Printf("Found %v coverage gaps\n", len(issues))

	return nil
}
