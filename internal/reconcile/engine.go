package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	product "github.com/angelmondragon/stockledger/internal/products"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

// JobName identifies the reconciliation job in logs, locks and metrics.
const JobName = "sheet-reconcile"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type writeBackScheduler interface {
	QueueWriteBack(ctx context.Context, products ...models.Product)
}

// Stats summarises the ledger changes made by one pass.
type Stats struct {
	Created    int
	Updated    int
	Archived   int
	Unarchived int
	Skipped    int
	Requeued   int
}

// Mutations counts the ledger rows the pass changed.
func (s Stats) Mutations() int {
	return s.Created + s.Updated + s.Archived + s.Unarchived
}

func (s *Stats) add(o Stats) {
	s.Created += o.Created
	s.Updated += o.Updated
	s.Archived += o.Archived
	s.Unarchived += o.Unarchived
	s.Skipped += o.Skipped
	s.Requeued += o.Requeued
}

// EngineParams configure the reconciliation engine.
type EngineParams struct {
	Logger    *logger.Logger
	Gateway   sheets.Gateway
	Gate      *sheets.Gate
	Auth      sheets.Reauthenticator
	Repo      *product.Repository
	DB        txRunner
	WriteBack writeBackScheduler
	Sheets    config.SheetsConfig
	Retry     sheets.RetryPolicy
	Metrics   *metrics.ReconcileMetrics
}

// Engine reconciles the product ledger against the spreadsheet of record.
type Engine struct {
	logg      *logger.Logger
	gateway   sheets.Gateway
	gate      *sheets.Gate
	auth      sheets.Reauthenticator
	repo      *product.Repository
	db        txRunner
	writeBack writeBackScheduler
	sheets    config.SheetsConfig
	layout    Layout
	retry     sheets.RetryPolicy
	metrics   *metrics.ReconcileMetrics
}

// NewEngine builds a reconciliation engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Gateway == nil {
		return nil, errors.New("sheets gateway is required")
	}
	if params.Gate == nil {
		return nil, errors.New("sheets gate is required")
	}
	if params.Repo == nil {
		return nil, errors.New("product repository is required")
	}
	if params.DB == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.WriteBack == nil {
		return nil, errors.New("write-back scheduler is required")
	}
	return &Engine{
		logg:      params.Logger,
		gateway:   params.Gateway,
		gate:      params.Gate,
		auth:      params.Auth,
		repo:      params.Repo,
		db:        params.DB,
		writeBack: params.WriteBack,
		sheets:    params.Sheets,
		layout:    LayoutFromConfig(params.Sheets),
		retry:     params.Retry,
		metrics:   params.Metrics,
	}, nil
}

// Name implements cron.Job.
func (e *Engine) Name() string { return JobName }

// Run implements cron.Job.
func (e *Engine) Run(ctx context.Context) error {
	_, err := e.Reconcile(ctx)
	return err
}

// Reconcile runs one full pass while holding the sheet gate. A failure on one
// worksheet is logged and collected; the other worksheets are still reconciled.
func (e *Engine) Reconcile(ctx context.Context) (Stats, error) {
	var total Stats
	err := e.gate.Do(ctx, func(ctx context.Context) error {
		var err error
		total, err = e.reconcileLocked(ctx)
		return err
	})
	e.observe(total)
	return total, err
}

func (e *Engine) reconcileLocked(ctx context.Context) (Stats, error) {
	var total Stats

	titles, err := e.worksheets(ctx)
	if err != nil {
		return total, fmt.Errorf("listing worksheets: %w", err)
	}

	categories := make([]string, 0, len(titles))
	for _, title := range titles {
		if e.sheets.Excludes(title) || strings.TrimSpace(title) == "" {
			continue
		}
		categories = append(categories, title)
	}

	var errs error
	for _, category := range categories {
		if ctx.Err() != nil {
			return total, multierr.Append(errs, ctx.Err())
		}
		catCtx := e.logg.WithField(ctx, "category", category)
		stats, err := e.reconcileCategory(catCtx, category)
		total.add(stats)
		if err != nil {
			e.logg.Error(catCtx, "worksheet reconciliation failed", err)
			errs = multierr.Append(errs, fmt.Errorf("worksheet %q: %w", category, err))
		}
	}

	if len(categories) == 0 {
		e.logg.Warn(ctx, "no category worksheets found; skipping archive of missing categories")
		return total, errs
	}
	archived, err := e.repo.ArchiveMissingCategories(ctx, categories)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("archiving removed worksheets: %w", err))
	}
	total.Archived += int(archived)

	return total, errs
}

func (e *Engine) worksheets(ctx context.Context) ([]string, error) {
	var titles []string
	err := sheets.Do(ctx, e.retry, e.auth, func(ctx context.Context) error {
		var err error
		titles, err = e.gateway.Worksheets(ctx)
		return err
	})
	return titles, err
}

func (e *Engine) readAll(ctx context.Context, sheet string) ([][]string, error) {
	var rows [][]string
	err := sheets.Do(ctx, e.retry, e.auth, func(ctx context.Context) error {
		var err error
		rows, err = e.gateway.ReadAll(ctx, sheet)
		return err
	})
	return rows, err
}

type productKey struct {
	name      string
	attribute string
}

func (e *Engine) reconcileCategory(ctx context.Context, category string) (Stats, error) {
	var stats Stats

	rows, err := e.readAll(ctx, category)
	if err != nil {
		return stats, fmt.Errorf("reading rows: %w", err)
	}

	var requeue []models.Product
	err = e.db.WithTx(ctx, func(tx *gorm.DB) error {
		stats = Stats{}
		requeue = nil
		repo := e.repo.WithTx(tx)

		existing, err := repo.ListByCategory(ctx, category)
		if err != nil {
			return fmt.Errorf("loading ledger rows: %w", err)
		}
		known := make(map[productKey]models.Product, len(existing))
		for _, p := range existing {
			known[productKey{name: p.Name, attribute: p.Attribute}] = p
		}

		seen := make(map[productKey]struct{}, len(rows))
		for i, cells := range rows {
			sheetRow := i + 1
			if sheetRow <= e.layout.HeaderRows {
				continue
			}
			row, err := e.layout.ParseRow(cells, sheetRow)
			if errors.Is(err, errBlankRow) {
				continue
			}
			if err != nil {
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"sheet_row": sheetRow, "error": err.Error()}), "skipping malformed row")
				stats.Skipped++
				continue
			}

			key := productKey{name: row.Name, attribute: row.Attribute}
			if _, dup := seen[key]; dup {
				e.logg.Warn(e.logg.WithFields(ctx, map[string]any{"sheet_row": sheetRow, "product": row.Name, "attribute": row.Attribute}), "skipping duplicate product row")
				stats.Skipped++
				continue
			}
			seen[key] = struct{}{}

			current, ok := known[key]
			if !ok {
				created := &models.Product{
					Category:  category,
					Name:      row.Name,
					Attribute: row.Attribute,
					Quantity:  row.Quantity,
					Price:     row.Price,
					Cost:      row.Cost,
					SheetRow:  row.SheetRow,
				}
				if err := repo.Create(ctx, created); err != nil {
					return fmt.Errorf("creating %s: %w", created.DisplayName(), err)
				}
				stats.Created++
				continue
			}

			pending, err := e.applyRow(ctx, repo, current, row, &stats)
			if err != nil {
				return err
			}
			if pending != nil {
				requeue = append(requeue, *pending)
			}
		}

		for key, p := range known {
			if _, ok := seen[key]; ok || p.Archived {
				continue
			}
			if err := repo.Archive(ctx, p.ID); err != nil {
				return fmt.Errorf("archiving %s: %w", p.DisplayName(), err)
			}
			stats.Archived++
		}
		return nil
	})
	if err != nil {
		return Stats{}, err
	}

	if len(requeue) > 0 {
		stats.Requeued = len(requeue)
		e.writeBack.QueueWriteBack(ctx, requeue...)
	}
	return stats, nil
}

// applyRow brings an existing product in line with its sheet row. It returns
// the product when the ledger holds an unconfirmed quantity the sheet lacks.
func (e *Engine) applyRow(ctx context.Context, repo *product.Repository, current models.Product, row Row, stats *Stats) (*models.Product, error) {
	changes := map[string]any{}
	if !current.Price.Equal(row.Price) {
		changes["price"] = row.Price
	}
	if !current.Cost.Equal(row.Cost) {
		changes["cost"] = row.Cost
	}
	if current.SheetRow != row.SheetRow {
		changes["sheet_row"] = row.SheetRow
	}
	updated := len(changes) > 0
	if current.Archived {
		changes["archived"] = false
		stats.Unarchived++
	}
	if err := repo.UpdateFields(ctx, current.ID, changes); err != nil {
		return nil, fmt.Errorf("updating %s: %w", current.DisplayName(), err)
	}

	if current.WriteBackPending {
		if current.Quantity == row.Quantity {
			if _, err := repo.ClearWriteBackPending(ctx, current.ID, current.Quantity); err != nil {
				return nil, fmt.Errorf("confirming %s: %w", current.DisplayName(), err)
			}
		} else {
			current.SheetRow = row.SheetRow
			current.Archived = false
			e.logg.Info(e.logg.WithFields(e.logg.WithProductID(ctx, current.ID), map[string]any{
				"ledger_quantity": current.Quantity,
				"sheet_quantity":  row.Quantity,
			}), "sheet behind ledger; re-queueing write-back")
			if updated {
				stats.Updated++
			}
			return &current, nil
		}
	} else if current.Quantity != row.Quantity {
		overwritten, err := repo.OverwriteQuantity(ctx, current.ID, row.Quantity)
		if err != nil {
			return nil, fmt.Errorf("updating quantity of %s: %w", current.DisplayName(), err)
		}
		updated = updated || overwritten
	}

	if updated {
		stats.Updated++
	}
	return nil, nil
}

func (e *Engine) observe(s Stats) {
	e.metrics.Add("created", s.Created)
	e.metrics.Add("updated", s.Updated)
	e.metrics.Add("archived", s.Archived)
	e.metrics.Add("unarchived", s.Unarchived)
	e.metrics.Add("skipped", s.Skipped)
	e.metrics.Add("requeued", s.Requeued)
}
