package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	product "github.com/angelmondragon/stockledger/internal/products"
	"github.com/angelmondragon/stockledger/pkg/config"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/metrics"
	"github.com/angelmondragon/stockledger/pkg/sheets"
	"github.com/angelmondragon/stockledger/pkg/sheets/sheetstest"
)

type scheduledWriteBacks struct {
	mu       sync.Mutex
	products []models.Product
}

func (s *scheduledWriteBacks) QueueWriteBack(_ context.Context, products ...models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = append(s.products, products...)
}

func (s *scheduledWriteBacks) all() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Product(nil), s.products...)
}

type engineFixture struct {
	engine    *Engine
	fake      *sheetstest.Fake
	conn      *gorm.DB
	repo      *product.Repository
	writeBack *scheduledWriteBacks
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	fake := sheetstest.New()
	repo := product.NewRepository(conn)
	scheduled := &scheduledWriteBacks{}
	engine, err := NewEngine(EngineParams{
		Logger:    logger.New(logger.Options{ServiceName: "reconcile-test", Output: io.Discard}),
		Gateway:   fake,
		Gate:      sheets.NewGate(),
		Auth:      fake,
		Repo:      repo,
		DB:        db.Wrap(conn),
		WriteBack: scheduled,
		Sheets: config.SheetsConfig{
			SalesSheet:     "Sales",
			ExcludedSheets: []string{"Notes"},
			HeaderRows:     1,
			ColName:        0,
			ColAttribute:   1,
			ColQuantity:    2,
			ColPrice:       3,
			ColCost:        4,
		},
		Retry:   sheets.RetryPolicy{MaxAttempts: 2, BaseBackoff: time.Millisecond},
		Metrics: metrics.NewReconcileMetrics(prometheus.NewRegistry()),
	})
	require.NoError(t, err)
	return &engineFixture{engine: engine, fake: fake, conn: conn, repo: repo, writeBack: scheduled}
}

var header = []string{"Name", "Attribute", "Quantity", "Price", "Cost"}

func (f *engineFixture) find(t *testing.T, category, name, attribute string) models.Product {
	t.Helper()
	var p models.Product
	require.NoError(t, f.conn.Where("category = ? AND name = ? AND attribute = ?", category, name, attribute).First(&p).Error)
	return p
}

func TestReconcileImportsAndIsIdempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Liquids", [][]string{
		header,
		{"Berry", "10ml", "12", "4.50", "2.00"},
		{"Berry", "30ml", "3", "9.00", "5.00"},
		{},
		{"Mint", "", "0", "4.00", "1.50"},
	})
	f.fake.SetSheet("Sales", [][]string{{"Date", "Category"}, {"2026-01-01", "Liquids"}})
	f.fake.SetSheet("Notes", [][]string{{"anything", "goes"}})

	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Created)
	assert.Zero(t, stats.Skipped)

	berry := f.find(t, "Liquids", "Berry", "30ml")
	assert.Equal(t, 3, berry.Quantity)
	assert.Equal(t, 3, berry.SheetRow)
	assert.True(t, berry.Price.Equal(decimal.RequireFromString("9")))
	assert.False(t, berry.WriteBackPending)

	mint := f.find(t, "Liquids", "Mint", "")
	assert.Equal(t, 5, mint.SheetRow)

	var count int64
	require.NoError(t, f.conn.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 3, count)

	again, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Mutations())
	assert.Empty(t, f.writeBack.all())
}

func TestReconcileTakesSheetValuesForSettledProducts(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3.00", "1.00"}})
	_, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)

	f.fake.SetSheet("Pods", [][]string{header, {"Other", "", "1", "1", "1"}, {"Classic", "", "9", "3,50", "1.20"}})
	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.Updated)

	classic := f.find(t, "Pods", "Classic", "")
	assert.Equal(t, 9, classic.Quantity)
	assert.Equal(t, 3, classic.SheetRow)
	assert.True(t, classic.Price.Equal(decimal.RequireFromString("3.5")))
	assert.True(t, classic.Cost.Equal(decimal.RequireFromString("1.2")))
}

func TestReconcileArchivesAndRestoresByIdentity(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}, {"Menthol", "", "2", "3", "1"}})
	_, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	original := f.find(t, "Pods", "Menthol", "")

	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}})
	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Archived)
	archived := f.find(t, "Pods", "Menthol", "")
	assert.True(t, archived.Archived)
	assert.Zero(t, archived.SheetRow)
	_, placed := LayoutFromConfig(config.SheetsConfig{HeaderRows: 1, ColQuantity: 2}).QuantityCell(archived)
	assert.False(t, placed)

	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}, {"Menthol", "", "4", "3", "1"}})
	stats, err = f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Unarchived)
	assert.Zero(t, stats.Created)

	restored := f.find(t, "Pods", "Menthol", "")
	assert.Equal(t, original.ID, restored.ID)
	assert.False(t, restored.Archived)
	assert.Equal(t, 3, restored.SheetRow)
	assert.Equal(t, 4, restored.Quantity)
}

func TestReconcileArchivesRemovedWorksheets(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}})
	_, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.conn.Create(&models.Product{Category: "Retired", Name: "Old", Quantity: 1, SheetRow: 2}).Error)

	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Archived)
	retired := f.find(t, "Retired", "Old", "")
	assert.True(t, retired.Archived)
	assert.Zero(t, retired.SheetRow)
	assert.False(t, f.find(t, "Pods", "Classic", "").Archived)
}

func TestReconcileSkipsMalformedAndDuplicateRows(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{
		header,
		{"Classic", "", "7", "3", "1"},
		{"Broken", "", "lots", "3", "1"},
		{"Negative", "", "-2", "3", "1"},
		{"Classic", "", "99", "3", "1"},
	})

	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 3, stats.Skipped)
	assert.Equal(t, 7, f.find(t, "Pods", "Classic", "").Quantity)

	var count int64
	require.NoError(t, f.conn.Model(&models.Product{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReconcileIsolatesWorksheetFailures(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Liquids", [][]string{header, {"Berry", "10ml", "5", "4", "2"}})
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}})
	_, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)

	f.fake.FailRead("Liquids", errors.New("range parse failure"))
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "8", "3", "1"}})

	stats, err := f.engine.Reconcile(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Liquids")
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 8, f.find(t, "Pods", "Classic", "").Quantity)

	berry := f.find(t, "Liquids", "Berry", "10ml")
	assert.False(t, berry.Archived)
	assert.Equal(t, 5, berry.Quantity)
}

func TestReconcileKeepsUnconfirmedLedgerQuantity(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Liquids", [][]string{header, {"Berry", "10ml", "10", "4", "2"}})
	_, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)

	berry := f.find(t, "Liquids", "Berry", "10ml")
	applied, err := f.repo.ApplyDelta(context.Background(), berry.ID, -2)
	require.NoError(t, err)
	require.True(t, applied)

	stats, err := f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Requeued)

	berry = f.find(t, "Liquids", "Berry", "10ml")
	assert.Equal(t, 8, berry.Quantity)
	assert.True(t, berry.WriteBackPending)

	scheduled := f.writeBack.all()
	require.Len(t, scheduled, 1)
	assert.Equal(t, berry.ID, scheduled[0].ID)
	assert.Equal(t, 8, scheduled[0].Quantity)

	f.fake.SetSheet("Liquids", [][]string{header, {"Berry", "10ml", "8", "4", "2"}})
	stats, err = f.engine.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Requeued)

	berry = f.find(t, "Liquids", "Berry", "10ml")
	assert.Equal(t, 8, berry.Quantity)
	assert.False(t, berry.WriteBackPending)
}

func TestReconcileRetriesAuthFailures(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}})
	f.fake.FailRead("Pods", fmt.Errorf("%w: token expired", sheets.ErrUnauthenticated))

	_, err := f.engine.Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, sheets.ErrUnauthenticated)
	assert.Equal(t, 2, f.fake.Reauthentications())
}

func TestReconcileWaitsForGate(t *testing.T) {
	f := newEngineFixture(t)
	f.fake.SetSheet("Pods", [][]string{header, {"Classic", "", "7", "3", "1"}})

	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = f.engine.gate.Do(context.Background(), func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := f.engine.Reconcile(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(release)

	_, err = f.engine.Reconcile(context.Background())
	require.NoError(t, err)
}

func TestNewEngineValidatesParams(t *testing.T) {
	_, err := NewEngine(EngineParams{})
	require.Error(t, err)
}

func TestEngineName(t *testing.T) {
	f := newEngineFixture(t)
	assert.Equal(t, "sheet-reconcile", f.engine.Name())
}
