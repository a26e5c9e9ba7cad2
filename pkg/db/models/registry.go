package models

// All lists the ledger tables in dependency order.
func All() []any {
	return []any{
		&Product{},
		&Order{},
		&OrderItem{},
		&ProfitAdjustment{},
	}
}
