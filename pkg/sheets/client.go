package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const (
	defaultWorkers     = 4
	defaultCallTimeout = 20 * time.Second

	valueInputRaw      = "RAW"
	valueInputUser     = "USER_ENTERED"
	insertRows         = "INSERT_ROWS"
	renderUnformatted  = "UNFORMATTED_VALUE"
	worksheetTitleOnly = "sheets.properties.title"
)

type serviceFactory func(ctx context.Context) (*sheetsapi.Service, error)

// Client is the Google Sheets backed Gateway. Concurrent calls are bounded by a
// small worker pool and each call carries its own timeout.
type Client struct {
	spreadsheetID string
	callTimeout   time.Duration
	workers       *semaphore.Weighted
	newService    serviceFactory
	logg          *logger.Logger

	mu  sync.RWMutex
	svc *sheetsapi.Service
}

var _ Gateway = (*Client)(nil)

// NewClient builds an authenticated Sheets client for the configured spreadsheet.
func NewClient(ctx context.Context, cfg config.SheetsConfig, logg *logger.Logger) (*Client, error) {
	spreadsheetID := strings.TrimSpace(cfg.SpreadsheetID)
	if spreadsheetID == "" {
		return nil, errSpreadsheetRequired
	}

	opts := clientOptions(cfg)
	factory := func(ctx context.Context) (*sheetsapi.Service, error) {
		return sheetsapi.NewService(ctx, opts...)
	}

	svc, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"spreadsheet_id": spreadsheetID, "workers": workers})
		logg.Info(ctx, "sheets client initialized")
	}

	return &Client{
		spreadsheetID: spreadsheetID,
		callTimeout:   timeout,
		workers:       semaphore.NewWeighted(int64(workers)),
		newService:    factory,
		logg:          logg,
		svc:           svc,
	}, nil
}

func clientOptions(cfg config.SheetsConfig) []option.ClientOption {
	opts := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

// Reauthenticate replaces the underlying service with a freshly authorized one.
func (c *Client) Reauthenticate(ctx context.Context) error {
	if c == nil || c.newService == nil {
		return errClientNotInitialized
	}
	svc, err := c.newService(ctx)
	if err != nil {
		return fmt.Errorf("rebuilding sheets service: %w", err)
	}
	c.mu.Lock()
	c.svc = svc
	c.mu.Unlock()
	if c.logg != nil {
		c.logg.Warn(ctx, "sheets client re-authenticated")
	}
	return nil
}

// Worksheets lists worksheet titles in spreadsheet order.
func (c *Client) Worksheets(ctx context.Context) ([]string, error) {
	var titles []string
	err := c.call(ctx, func(ctx context.Context, svc *sheetsapi.Service) error {
		resp, err := svc.Spreadsheets.Get(c.spreadsheetID).Fields(worksheetTitleOnly).Context(ctx).Do()
		if err != nil {
			return err
		}
		for _, sheet := range resp.Sheets {
			if sheet == nil || sheet.Properties == nil {
				continue
			}
			titles = append(titles, sheet.Properties.Title)
		}
		return nil
	})
	return titles, err
}

// ReadAll returns every populated row of the worksheet, header included.
func (c *Client) ReadAll(ctx context.Context, sheet string) ([][]string, error) {
	var rows [][]string
	err := c.call(ctx, func(ctx context.Context, svc *sheetsapi.Service) error {
		resp, err := svc.Spreadsheets.Values.Get(c.spreadsheetID, quoteSheet(sheet)).
			ValueRenderOption(renderUnformatted).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		rows = toStrings(resp.Values)
		return nil
	})
	return rows, err
}

// ReadRow returns a single row; an empty slice when the row is blank.
func (c *Client) ReadRow(ctx context.Context, sheet string, row int) ([]string, error) {
	if row < 1 {
		return nil, fmt.Errorf("row must be >= 1, got %d", row)
	}
	var values []string
	err := c.call(ctx, func(ctx context.Context, svc *sheetsapi.Service) error {
		resp, err := svc.Spreadsheets.Values.Get(c.spreadsheetID, rowRange(sheet, row)).
			ValueRenderOption(renderUnformatted).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}
		if rows := toStrings(resp.Values); len(rows) > 0 {
			values = rows[0]
		}
		return nil
	})
	return values, err
}

// WriteCell stores value verbatim in the referenced cell.
func (c *Client) WriteCell(ctx context.Context, ref CellRef, value any) error {
	if ref.Row < 1 || ref.Column < 0 {
		return fmt.Errorf("invalid cell reference %s", ref)
	}
	return c.call(ctx, func(ctx context.Context, svc *sheetsapi.Service) error {
		body := &sheetsapi.ValueRange{Values: [][]any{{value}}}
		_, err := svc.Spreadsheets.Values.Update(c.spreadsheetID, ref.A1(), body).
			ValueInputOption(valueInputRaw).
			Context(ctx).
			Do()
		return err
	})
}

// AppendRow adds a row after the last populated row of the worksheet.
func (c *Client) AppendRow(ctx context.Context, sheet string, values []any) error {
	return c.call(ctx, func(ctx context.Context, svc *sheetsapi.Service) error {
		body := &sheetsapi.ValueRange{Values: [][]any{values}}
		_, err := svc.Spreadsheets.Values.Append(c.spreadsheetID, quoteSheet(sheet)+"!A1", body).
			ValueInputOption(valueInputUser).
			InsertDataOption(insertRows).
			Context(ctx).
			Do()
		return err
	})
}

func (c *Client) call(ctx context.Context, fn func(ctx context.Context, svc *sheetsapi.Service) error) error {
	if c == nil || c.workers == nil {
		return errClientNotInitialized
	}
	if err := c.workers.Acquire(ctx, 1); err != nil {
		return err
	}
	defer c.workers.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	err := fn(callCtx, c.service())
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return Classify(err)
}

func (c *Client) service() *sheetsapi.Service {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.svc
}

func toStrings(values [][]any) [][]string {
	rows := make([][]string, 0, len(values))
	for _, raw := range values {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	return rows
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
