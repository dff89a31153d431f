package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	alertingCmd.AddCommand(alertingTestCmd)
	rootCmd.AddCommand(alertingCmd)
}

var alertingCmd = &cobra.Command{
	Use:   "alerting",
	Short: "Exercise configured alert mediums",
}

var alertingTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Fire one test alert through every configured medium",
	RunE:  runAlertingTest,
}

func runAlertingTest(cmd *cobra.Command, args []string) error {
	if err := requireAddr(); err != nil {
		return err
	}
	if err := requireToken(); err != nil {
		return err
	}

	client := newAPIClient(addrFlag, tokenFlag)
	if err := client.post(context.Background(), "/api/v1/alerting/test"); err != nil {
		return err
	}
	fmt.Println("test alert fired")
	return nil
}
