// Package sheetstest provides an in-memory spreadsheet for tests.
package sheetstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/angelmondragon/stockledger/pkg/sheets"
)

// Fake is an in-memory sheets.Gateway. Worksheets keep insertion order.
type Fake struct {
	mu     sync.Mutex
	order  []string
	grids  map[string][][]string
	writes []sheets.CellRef
	reauth int

	writeErrs []error
	readErrs  map[string]error
}

var (
	_ sheets.Gateway         = (*Fake)(nil)
	_ sheets.Reauthenticator = (*Fake)(nil)
)

func New() *Fake {
	return &Fake{grids: map[string][][]string{}, readErrs: map[string]error{}}
}

// SetSheet replaces the worksheet contents, creating it when needed.
func (f *Fake) SetSheet(title string, rows [][]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.grids[title]; !ok {
		f.order = append(f.order, title)
	}
	f.grids[title] = cloneGrid(rows)
}

// SetCell overwrites one cell, growing the grid as needed.
func (f *Fake) SetCell(ref sheets.CellRef, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCell(ref, value)
}

// Cell returns the value at ref, or "" when unset.
func (f *Fake) Cell(ref sheets.CellRef) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	grid := f.grids[ref.Sheet]
	if ref.Row < 1 || ref.Row > len(grid) {
		return ""
	}
	row := grid[ref.Row-1]
	if ref.Column < 0 || ref.Column >= len(row) {
		return ""
	}
	return row[ref.Column]
}

// Rows returns a copy of the worksheet.
func (f *Fake) Rows(title string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return cloneGrid(f.grids[title])
}

// FailWrites makes the next len(errs) WriteCell/AppendRow calls return errs in order.
func (f *Fake) FailWrites(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErrs = append(f.writeErrs, errs...)
}

// FailRead makes every ReadAll of title fail with err until cleared with nil.
func (f *Fake) FailRead(title string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.readErrs, title)
		return
	}
	f.readErrs[title] = err
}

// Writes returns the cells written so far.
func (f *Fake) Writes() []sheets.CellRef {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sheets.CellRef(nil), f.writes...)
}

// Reauthentications counts Reauthenticate calls.
func (f *Fake) Reauthentications() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reauth
}

func (f *Fake) Reauthenticate(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reauth++
	return nil
}

func (f *Fake) Worksheets(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...), nil
}

func (f *Fake) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.readErrs[sheet]; err != nil {
		return nil, err
	}
	grid, ok := f.grids[sheet]
	if !ok {
		return nil, fmt.Errorf("worksheet %q not found", sheet)
	}
	return cloneGrid(grid), nil
}

func (f *Fake) ReadRow(ctx context.Context, sheet string, row int) ([]string, error) {
	rows, err := f.ReadAll(ctx, sheet)
	if err != nil {
		return nil, err
	}
	if row < 1 || row > len(rows) {
		return nil, nil
	}
	return rows[row-1], nil
}

func (f *Fake) WriteCell(ctx context.Context, ref sheets.CellRef, value any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextWriteErr(); err != nil {
		return err
	}
	f.setCell(ref, fmt.Sprint(value))
	f.writes = append(f.writes, ref)
	return nil
}

func (f *Fake) AppendRow(ctx context.Context, sheet string, values []any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.nextWriteErr(); err != nil {
		return err
	}
	if _, ok := f.grids[sheet]; !ok {
		f.order = append(f.order, sheet)
	}
	row := make([]string, len(values))
	for i, v := range values {
		row[i] = fmt.Sprint(v)
	}
	f.grids[sheet] = append(f.grids[sheet], row)
	return nil
}

func (f *Fake) nextWriteErr() error {
	if len(f.writeErrs) == 0 {
		return nil
	}
	err := f.writeErrs[0]
	f.writeErrs = f.writeErrs[1:]
	return err
}

func (f *Fake) setCell(ref sheets.CellRef, value string) {
	grid := f.grids[ref.Sheet]
	if _, ok := f.grids[ref.Sheet]; !ok {
		f.order = append(f.order, ref.Sheet)
	}
	for len(grid) < ref.Row {
		grid = append(grid, nil)
	}
	row := grid[ref.Row-1]
	for len(row) <= ref.Column {
		row = append(row, "")
	}
	row[ref.Column] = value
	grid[ref.Row-1] = row
	f.grids[ref.Sheet] = grid
}

func cloneGrid(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string(nil), row...)
	}
	return out
}
