package meter

import (
	"strings"

	"github.com/sentinelproxy/sentinel/internal/config"
	"github.com/sentinelproxy/sentinel/internal/pricing"
)

// deepseekFXFactor compensates for the catalogue storing DeepSeek prices in
// USD while its siblings are stored in CNY. This is a temporary calibration,
// not a general currency converter — see the open-question note in
// DESIGN.md before touching this.
const deepseekFXFactor = 7.2

// attributeCurrency is a display-only tag computation, except for the
// DeepSeek special case which does adjust the numeric cost.
func attributeCurrency(cfg config.CurrencyConfig, model string, price pricing.Entry, cost float64) (adjustedCost float64, currency string) {
	lower := strings.ToLower(model)
	isDeepseek := strings.Contains(lower, "deepseek")

	switch {
	case strings.Contains(lower, "qwen"), strings.Contains(lower, "glm"),
		strings.Contains(lower, "zhipu"), strings.Contains(lower, "yi-"), isDeepseek:
		currency = "CNY"
	case price.InputPrice > 0.01:
		currency = "CNY"
	default:
		currency = "USD"
	}

	adjustedCost = cost
	if cfg.ForceCNYForChineseModel && isDeepseek {
		adjustedCost = cost * deepseekFXFactor
	}
	return adjustedCost, currency
}
