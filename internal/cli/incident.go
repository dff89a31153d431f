package cli

import (
	"context"
	"fmt"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

func init() {
	incidentCmd.AddCommand(incidentLsCmd)
	rootCmd.AddCommand(incidentCmd)
}

var incidentCmd = &cobra.Command{
	Use:   "incident",
	Short: "Inspect the incident ledger",
}

var incidentLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List incidents from the server",
	RunE:  runIncidentLs,
}

func runIncidentLs(cmd *cobra.Command, args []string) error {
	if err := requireAddr(); err != nil {
		return err
	}
	if err := requireToken(); err != nil {
		return err
	}

	client := newAPIClient(addrFlag, tokenFlag)
	var resp incidentsWire
	if err := client.get(context.Background(), "/api/v1/incidents", &resp); err != nil {
		return err
	}

	if len(resp.Incidents) == 0 {
		fmt.Println("No incidents.")
		return nil
	}

	lines := []string{"TIMESTAMP | MESSAGE"}
	for _, inc := range resp.Incidents {
		lines = append(lines, fmt.Sprintf("%s | %s", inc.Timestamp.Format("2006-01-02 15:04:05"), inc.Message))
	}
	fmt.Println(columnize.SimpleFormat(lines))
	return nil
}
