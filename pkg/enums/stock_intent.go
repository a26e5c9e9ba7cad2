package enums

import "fmt"

// StockIntent describes why a caller is browsing products. Consuming intents
// only see products with stock on hand.
type StockIntent string

const (
	StockIntentConsume StockIntent = "consume"
	StockIntentRestock StockIntent = "restock"
)

var validStockIntents = []StockIntent{
	StockIntentConsume,
	StockIntentRestock,
}

// String implements fmt.Stringer.
func (s StockIntent) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StockIntent.
func (s StockIntent) IsValid() bool {
	for _, candidate := range validStockIntents {
		if candidate == s {
			return true
		}
	}
	return false
}

// RequiresStock reports whether products without stock must be hidden.
func (s StockIntent) RequiresStock() bool {
	return s == StockIntentConsume
}

// ParseStockIntent converts raw input into a StockIntent.
func ParseStockIntent(value string) (StockIntent, error) {
	for _, candidate := range validStockIntents {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock intent %q", value)
}
