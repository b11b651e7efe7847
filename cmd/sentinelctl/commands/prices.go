package commands

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var refreshPricesCmd = &cobra.Command{
	Use:   "refresh-prices",
	Short: "Force the in-memory price cache to refresh from the price store",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(apiURL + "/v1/admin/refresh_prices")
		if err != nil {
			return fmt.Errorf("refresh prices: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("refresh prices: server returned %s", resp.Status)
		}
		fmt.Println("price cache refreshed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshPricesCmd)
}
