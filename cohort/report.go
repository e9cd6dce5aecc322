package cohort

import (
	"fmt"
	"time"

	"github.com/tealeg/xlsx/v3"
)

const (
	ReportSheetNameSummary  = "Summary"
	ReportSheetNamePatients = "Patients"
)

var patientColumns = []string{
	"Name", "Bed", "Stage", "Status", "Intake (ml)", "Output (ml)", "Net (ml)",
	"Intake %", "Output %", "Current Period", "Last Event",
}

// Report renders a caregiver dashboard as a spreadsheet for handover.
type Report struct {
	dashboard Dashboard
	location  *time.Location
}

func NewReport(dashboard Dashboard, location *time.Location) Report {
	if location == nil {
		location = time.UTC
	}
	return Report{dashboard: dashboard, location: location}
}

func (r Report) Generate() (*xlsx.File, error) {
	report := xlsx.NewFile()

	components := []func(report *xlsx.File) error{
		r.addSummarySheet,
		r.addPatientsSheet,
	}
	for _, fn := range components {
		if err := fn(report); err != nil {
			return nil, err
		}
	}

	return report, nil
}

func (r Report) addSummarySheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNameSummary)
	if err != nil {
		return err
	}

	stats := r.dashboard.Stats
	totals := r.dashboard.Totals
	rows := [][]interface{}{
		{"Caregiver", r.dashboard.CaregiverId},
		{"Evaluated", r.dashboard.EvaluatedTime.In(r.location).Format(time.DateTime)},
		{"Overall Status", stats.OverallStatus.String()},
		{},
		{"Patients", stats.Total},
		{"Emergency", stats.Emergency},
		{"Risk", stats.Risk},
		{"Normal", stats.Normal},
		{"Need Attention", totals.NeedAttentionCount},
		{},
		{"Total Intake (ml)", totals.TotalIntake},
		{"Total Output (ml)", totals.TotalOutput},
		{"Intake Limit (ml)", totals.TotalIntakeLimit},
		{"Output Limit (ml)", totals.TotalOutputLimit},
		{"Average Net Intake (ml)", totals.AverageNetIntake},
		{"Intake %", totals.IntakePercent},
		{"Output %", totals.OutputPercent},
	}
	for _, values := range rows {
		row := sh.AddRow()
		for _, value := range values {
			row.AddCell().SetValue(value)
		}
	}

	return nil
}

func (r Report) addPatientsSheet(report *xlsx.File) error {
	sh, err := report.AddSheet(ReportSheetNamePatients)
	if err != nil {
		return err
	}

	header := sh.AddRow()
	for _, column := range patientColumns {
		header.AddCell().SetValue(column)
	}

	for _, summary := range r.dashboard.Patients {
		lastEvent := ""
		if summary.LastEventTime != nil {
			lastEvent = summary.LastEventTime.In(r.location).Format("15:04")
		}

		row := sh.AddRow()
		row.AddCell().SetValue(summary.Patient.Name)
		row.AddCell().SetValue(summary.Patient.BedNumber)
		row.AddCell().SetValue(summary.Patient.Stage)
		row.AddCell().SetValue(summary.Status.String())
		row.AddCell().SetValue(summary.Rollup.TotalIntake)
		row.AddCell().SetValue(summary.Rollup.TotalOutput)
		row.AddCell().SetValue(summary.Rollup.NetIntake)
		row.AddCell().SetValue(summary.IntakePercent)
		row.AddCell().SetValue(summary.OutputPercent)
		row.AddCell().SetValue(fmt.Sprintf("%s (%d%% / %d%%)", summary.CurrentPeriod.Label,
			summary.CurrentPeriod.IntakePercent, summary.CurrentPeriod.OutputPercent))
		row.AddCell().SetValue(lastEvent)
	}

	return nil
}
