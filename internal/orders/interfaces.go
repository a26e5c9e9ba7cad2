package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/writeback"
	"github.com/angelmondragon/stockledger/pkg/db/models"
)

// Repository defines persistence operations for orders, line items and
// profit adjustments.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrder(ctx context.Context, id string) (*models.Order, error)
	ListActive(ctx context.Context) ([]models.Order, error)
	ListCompletedBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
	CompletionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error)
	NameInUse(ctx context.Context, name, excludeID string) (bool, error)
	UpdateOrder(ctx context.Context, id string, updates map[string]any) error
	DeleteOrder(ctx context.Context, id string) error

	FindItem(ctx context.Context, id uint) (*models.OrderItem, error)
	CreateItem(ctx context.Context, item *models.OrderItem) error
	UpdateItemQuantity(ctx context.Context, id uint, quantity int) error
	DeleteItem(ctx context.Context, id uint) error

	FindAdjustment(ctx context.Context, id uint) (*models.ProfitAdjustment, error)
	CreateAdjustment(ctx context.Context, adj *models.ProfitAdjustment) error
	DeleteAdjustment(ctx context.Context, id uint) error
}

// StockLedger is the product ledger surface orders need. Stock only changes
// through AdjustInTx; products it returns are handed to QueueWriteBack after
// the transaction commits.
type StockLedger interface {
	AdjustInTx(ctx context.Context, tx *gorm.DB, productID uint, delta int) (*models.Product, error)
	QueueWriteBack(ctx context.Context, products ...models.Product)
}

// SalesRecorder accepts sales worksheet rows without blocking.
type SalesRecorder interface {
	Enqueue(ctx context.Context, job writeback.Job) bool
}
