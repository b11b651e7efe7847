package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current running cost and budget limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(apiURL + "/status")
		if err != nil {
			return fmt.Errorf("request status: %w", err)
		}
		defer resp.Body.Close()

		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("total_cost=%v limit=%v\n", out["total_cost"], out["limit"])
		return nil
	},
}

var checkGateCmd = &cobra.Command{
	Use:   "check-gate",
	Short: "Check whether a request would currently be admitted",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(apiURL + "/check_gate")
		if err != nil {
			return fmt.Errorf("request check_gate: %w", err)
		}
		defer resp.Body.Close()

		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("allowed=%v current_cost=%v limit=%v\n", out["allowed"], out["current_cost"], out["limit"])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkGateCmd)
}
