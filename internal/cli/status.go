package cli

import (
	"context"
	"fmt"

	"github.com/ryanuber/columnize"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print region/group states from a running server",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := requireAddr(); err != nil {
		return err
	}
	if err := requireToken(); err != nil {
		return err
	}

	client := newAPIClient(addrFlag, tokenFlag)
	var resp analyticsWire
	if err := client.get(context.Background(), "/api/v1/analytics", &resp); err != nil {
		return err
	}

	regionLines := []string{"REGION | STATUS | LAST UPDATE"}
	for _, r := range resp.Regions {
		regionLines = append(regionLines, fmt.Sprintf("%s | %s | %s", r.Name, r.Status, r.LastUpdate.Format("2006-01-02 15:04:05")))
	}
	fmt.Println(columnize.SimpleFormat(regionLines))

	fmt.Println()

	groupLines := []string{"GROUP | STATUS | LAST UPDATE"}
	for _, g := range resp.Groups {
		groupLines = append(groupLines, fmt.Sprintf("%s | %s | %s", g.Name, g.Status, g.LastUpdate.Format("2006-01-02 15:04:05")))
	}
	fmt.Println(columnize.SimpleFormat(groupLines))

	return nil
}
