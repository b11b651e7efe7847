package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var limitValue float64

var setLimitCmd = &cobra.Command{
	Use:   "set-limit",
	Short: "Set the budget limit",
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := json.Marshal(map[string]float64{"limit": limitValue})
		if err != nil {
			return err
		}
		resp, err := http.Post(apiURL+"/v1/config/limit", "application/json", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("set limit: %w", err)
		}
		defer resp.Body.Close()

		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("limit=%v\n", out["limit"])
		return nil
	},
}

var resetCostCmd = &cobra.Command{
	Use:   "reset-cost",
	Short: "Zero the running cost counter",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Post(apiURL+"/v1/config/reset_cost", "application/json", nil)
		if err != nil {
			return fmt.Errorf("reset cost: %w", err)
		}
		defer resp.Body.Close()

		var out map[string]interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		fmt.Printf("total_cost=%v\n", out["total_cost"])
		return nil
	},
}

func init() {
	setLimitCmd.Flags().Float64Var(&limitValue, "value", 0, "new budget limit")
	_ = setLimitCmd.MarkFlagRequired("value")
	rootCmd.AddCommand(setLimitCmd)
	rootCmd.AddCommand(resetCostCmd)
}
