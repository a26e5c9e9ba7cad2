package writeback

import (
	"time"

	"github.com/angelmondragon/stockledger/pkg/enums"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

// Job is one spreadsheet mutation. Kind selects which fields are meaningful.
type Job struct {
	Kind       enums.WriteBackJobKind
	ProductID  uint
	Cell       sheets.CellRef
	Quantity   int
	Sheet      string
	Values     []any
	EnqueuedAt time.Time
}

// QuantityUpdate mirrors a ledger quantity into its sheet cell.
func QuantityUpdate(productID uint, cell sheets.CellRef, quantity int) Job {
	return Job{
		Kind:      enums.WriteBackJobUpdateQuantity,
		ProductID: productID,
		Cell:      cell,
		Quantity:  quantity,
	}
}

// AppendRow adds a row to the end of a worksheet.
func AppendRow(sheet string, values []any) Job {
	return Job{
		Kind:   enums.WriteBackJobAppendRow,
		Sheet:  sheet,
		Values: values,
	}
}

func (j Job) fields() map[string]any {
	fields := map[string]any{"job_kind": j.Kind.String()}
	switch j.Kind {
	case enums.WriteBackJobUpdateQuantity:
		fields["product_id"] = j.ProductID
		fields["cell"] = j.Cell.A1()
		fields["quantity"] = j.Quantity
	case enums.WriteBackJobAppendRow:
		fields["sheet"] = j.Sheet
	}
	if !j.EnqueuedAt.IsZero() {
		fields["queued_ms"] = time.Since(j.EnqueuedAt).Milliseconds()
	}
	return fields
}
