package sheets

import "context"

// Gateway is the narrow contract the ledger keeps with the spreadsheet of record.
// Rows are 1-based, columns 0-based.
type Gateway interface {
	Worksheets(ctx context.Context) ([]string, error)
	ReadAll(ctx context.Context, sheet string) ([][]string, error)
	ReadRow(ctx context.Context, sheet string, row int) ([]string, error)
	WriteCell(ctx context.Context, ref CellRef, value any) error
	AppendRow(ctx context.Context, sheet string, values []any) error
}

// Reauthenticator rebuilds credentials after an authentication failure.
type Reauthenticator interface {
	Reauthenticate(ctx context.Context) error
}
