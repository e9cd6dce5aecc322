package command

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tidepool-org/hydration/patients"
	"github.com/tidepool-org/hydration/store"
)

var patientsListParams = struct {
	CaregiverId string
	Limit       int
}{}

var patientsCmd = &cobra.Command{
	Use:   "patients",
	Short: "Patients",
	Long:  "The patients command is used to inspect registered patients",
}

var patientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List patients",
	Long:  "The list command prints the registered patients with their threshold group",
	RunE:  func(cmd *cobra.Command, args []string) error { return Run(listPatients) },
}

func init() {
	patientsListCmd.Flags().StringVar(&patientsListParams.CaregiverId, "caregiver", "", "Only list the patients of this caregiver")
	patientsListCmd.Flags().IntVar(&patientsListParams.Limit, "limit", 1000, "Maximum number of patients")

	patientsCmd.AddCommand(patientsListCmd)
	rootCmd.AddCommand(patientsCmd)
}

func listPatients(service patients.Service) error {
	filter := patients.Filter{}
	if patientsListParams.CaregiverId != "" {
		filter.CaregiverId = &patientsListParams.CaregiverId
	}
	page := store.DefaultPagination()
	page.Limit = patientsListParams.Limit

	list, err := service.List(context.TODO(), filter, page)
	if err != nil {
		return err
	}

	for _, patient := range list {
		fmt.Printf("%s %s [%s] %s\n", patient.Id, patient.Name, patient.Group, patient.Meta())
	}
	fmt.Printf("Found %v patients\n", len(list))

	return nil
}
