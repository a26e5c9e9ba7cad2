package product

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/writeback"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

type recordingQueue struct {
	mu   sync.Mutex
	jobs []writeback.Job
}

func (q *recordingQueue) Enqueue(_ context.Context, job writeback.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return true
}

func (q *recordingQueue) all() []writeback.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]writeback.Job(nil), q.jobs...)
}

type columnLocator struct{}

func (columnLocator) QuantityCell(p models.Product) (sheets.CellRef, bool) {
	if p.SheetRow < 2 {
		return sheets.CellRef{}, false
	}
	return sheets.CellRef{Sheet: p.Category, Row: p.SheetRow, Column: 2}, true
}

func newTestService(t *testing.T) (Service, *gorm.DB, *recordingQueue) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(models.All()...))

	queue := &recordingQueue{}
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		DB:      db.Wrap(conn),
		Queue:   queue,
		Locator: columnLocator{},
		Logger:  logger.New(logger.Options{ServiceName: "product-test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, conn, queue
}

func seedProduct(t *testing.T, conn *gorm.DB, category, name, attribute string, qty, row int) models.Product {
	t.Helper()
	p := models.Product{
		Category:  category,
		Name:      name,
		Attribute: attribute,
		Quantity:  qty,
		Price:     decimal.NewFromInt(10),
		Cost:      decimal.NewFromInt(6),
		SheetRow:  row,
	}
	require.NoError(t, conn.Create(&p).Error)
	return p
}

func TestAdjustQuantityConsumesAndQueuesWriteBack(t *testing.T) {
	svc, conn, queue := newTestService(t)
	mint := seedProduct(t, conn, "Liquids", "X", "Mint", 5, 4)

	updated, err := svc.AdjustQuantity(context.Background(), mint.ID, -3)
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Quantity)
	assert.True(t, updated.WriteBackPending)

	jobs := queue.all()
	require.Len(t, jobs, 1)
	assert.Equal(t, enums.WriteBackJobUpdateQuantity, jobs[0].Kind)
	assert.Equal(t, mint.ID, jobs[0].ProductID)
	assert.Equal(t, 2, jobs[0].Quantity)
	assert.Equal(t, "'Liquids'!C4", jobs[0].Cell.A1())
}

func TestAdjustQuantityRejectsOverdraw(t *testing.T) {
	svc, conn, queue := newTestService(t)
	mint := seedProduct(t, conn, "Liquids", "X", "Mint", 2, 4)

	_, err := svc.AdjustQuantity(context.Background(), mint.ID, -5)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
	assert.Contains(t, err.Error(), "only 2 left")

	reloaded, err := svc.GetProduct(context.Background(), mint.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Quantity)
	assert.False(t, reloaded.WriteBackPending)
	assert.Empty(t, queue.all())
}

func TestAdjustQuantityUnknownProduct(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.AdjustQuantity(context.Background(), 999, 1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = svc.AdjustQuantity(context.Background(), 999, -1)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdjustQuantityArchivedProductOnlyRestocks(t *testing.T) {
	svc, conn, queue := newTestService(t)
	ctx := context.Background()
	berry := seedProduct(t, conn, "Liquids", "Berry", "10ml", 4, 2)
	require.NoError(t, NewRepository(conn).Archive(ctx, berry.ID))

	_, err := svc.AdjustQuantity(ctx, berry.ID, -1)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	reloaded, err := svc.GetProduct(ctx, berry.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, reloaded.Quantity)
	assert.True(t, reloaded.Archived)
	assert.Zero(t, reloaded.SheetRow)

	restocked, err := svc.AdjustQuantity(ctx, berry.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 6, restocked.Quantity)
	assert.Empty(t, queue.all())
}

func TestQuantityNeverNegativeUnderRandomDeltas(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := seedProduct(t, conn, "Pods", "Classic", "", 10, 2)
	rng := rand.New(rand.NewSource(7))

	expected := 10
	for i := 0; i < 200; i++ {
		delta := rng.Intn(9) - 5
		updated, err := svc.AdjustQuantity(context.Background(), p.ID, delta)
		if expected+delta < 0 {
			require.Error(t, err)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficient))
			continue
		}
		require.NoError(t, err)
		expected += delta
		assert.Equal(t, expected, updated.Quantity)
	}

	final, err := svc.GetProduct(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, expected, final.Quantity)
	assert.GreaterOrEqual(t, final.Quantity, 0)
}

func TestNamesAndAttributesFollowIntent(t *testing.T) {
	svc, conn, _ := newTestService(t)
	seedProduct(t, conn, "Liquids", "Berry", "30ml", 0, 3)
	seedProduct(t, conn, "Liquids", "Berry", "10ml", 4, 2)
	seedProduct(t, conn, "Liquids", "Apple", "10ml", 0, 5)
	archived := seedProduct(t, conn, "Liquids", "Gone", "", 3, 6)
	require.NoError(t, conn.Model(&archived).Update("archived", true).Error)
	seedProduct(t, conn, "Pods", "Classic", "", 1, 2)

	ctx := context.Background()
	names, err := svc.GetProductNames(ctx, "Liquids", enums.StockIntentConsume)
	require.NoError(t, err)
	assert.Equal(t, []string{"Berry"}, names)

	names, err = svc.GetProductNames(ctx, "Liquids", enums.StockIntentRestock)
	require.NoError(t, err)
	assert.Equal(t, []string{"Berry", "Apple"}, names)

	attrs, err := svc.GetAttributes(ctx, "Liquids", "Berry", enums.StockIntentConsume)
	require.NoError(t, err)
	assert.Equal(t, []string{"10ml"}, attrs)

	attrs, err = svc.GetAttributes(ctx, "Liquids", "Berry", enums.StockIntentRestock)
	require.NoError(t, err)
	assert.Equal(t, []string{"10ml", "30ml"}, attrs)

	_, err = svc.GetProductNames(ctx, "Liquids", enums.StockIntent("borrow"))
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	categories, err := svc.GetCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Liquids", "Pods"}, categories)
}

func TestFindProductSkipsArchived(t *testing.T) {
	svc, conn, _ := newTestService(t)
	p := seedProduct(t, conn, "Liquids", "Berry", "10ml", 4, 2)

	found, err := svc.FindProduct(context.Background(), " Liquids ", "Berry", "10ml")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	require.NoError(t, conn.Model(&p).Update("archived", true).Error)
	_, err = svc.FindProduct(context.Background(), "Liquids", "Berry", "10ml")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConfirmWriteBackClearsOnlyMatchingQuantity(t *testing.T) {
	svc, conn, queue := newTestService(t)
	p := seedProduct(t, conn, "Pods", "Classic", "", 10, 2)
	ctx := context.Background()

	_, err := svc.AdjustQuantity(ctx, p.ID, -1)
	require.NoError(t, err)
	_, err = svc.AdjustQuantity(ctx, p.ID, -1)
	require.NoError(t, err)

	jobs := queue.all()
	require.Len(t, jobs, 2)

	svc.ConfirmWriteBack(ctx, jobs[0])
	reloaded, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.WriteBackPending, "stale confirmation must not clear the flag")

	svc.ConfirmWriteBack(ctx, jobs[1])
	reloaded, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.WriteBackPending)
	assert.Equal(t, 8, reloaded.Quantity)
}

func TestQueueWriteBackDefersUnplacedProducts(t *testing.T) {
	svc, conn, queue := newTestService(t)
	p := seedProduct(t, conn, "Pods", "Classic", "", 3, 0)

	updated, err := svc.AdjustQuantity(context.Background(), p.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Quantity)
	assert.True(t, updated.WriteBackPending)
	assert.Empty(t, queue.all())
}

func TestNewServiceValidatesParams(t *testing.T) {
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
}
