package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidepool-org/hydration/cohort"
	"github.com/tidepool-org/hydration/config"
)

var cohortReportParams = struct {
	CaregiverId string
	Out         string
}{}

var cohortCmd = &cobra.Command{
	Use:   "cohort",
	Short: "Caregiver cohorts",
	Long:  "The cohort command is used to inspect the patients of a caregiver",
}

var cohortReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Export a handover report",
	Long:  "The report command writes the dashboard of a caregiver to a spreadsheet",
	RunE:  func(cmd *cobra.Command, args []string) error { return Run(writeCohortReport) },
}

func init() {
	cohortReportCmd.Flags().StringVar(&cohortReportParams.CaregiverId, "caregiver", "", "Caregiver id")
	cohortReportCmd.Flags().StringVar(&cohortReportParams.Out, "out", "report.xlsx", "Output file")
	_ = cohortReportCmd.MarkFlagRequired("caregiver")

	cohortCmd.AddCommand(cohortReportCmd)
	rootCmd.AddCommand(cohortCmd)
}

func writeCohortReport(service cohort.Service, cfg *config.Config) error {
	dashboard, err := service.Dashboard(context.TODO(), cohortReportParams.CaregiverId)
	if err != nil {
		return err
	}
	location, err := cfg.Location()
	if err != nil {
		return err
	}

	report, err := cohort.NewReport(*dashboard, location).Generate()
	if err != nil {
		return err
	}
	if err := report.Save(cohortReportParams.Out); err != nil {
		return err
	}

	fmt.Printf("Wrote %v patients to %s\n", dashboard.Stats.Total, cohortReportParams.Out)
	return nil
}
