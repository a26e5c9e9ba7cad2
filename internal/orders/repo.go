package orders

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("order_items.id ASC") }).
		Preload("Items.Product").
		Preload("Adjustments", func(db *gorm.DB) *gorm.DB { return db.Order("profit_adjustments.id ASC") })
}

func (r *repository) FindOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.withChildren(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := r.withChildren(ctx).
		Where("status = ?", enums.OrderStatusPending).
		Order("created_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

// ListCompletedBetween returns completed orders with start <= completed_at < end.
func (r *repository) ListCompletedBetween(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	var orders []models.Order
	err := r.withChildren(ctx).
		Where("status = ? AND completed_at >= ? AND completed_at < ?", enums.OrderStatusCompleted, start, end).
		Order("completed_at ASC").
		Order("id ASC").
		Find(&orders).Error
	return orders, err
}

func (r *repository) CompletionTimesSince(ctx context.Context, since time.Time) ([]time.Time, error) {
	var stamps []time.Time
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("status = ? AND completed_at >= ?", enums.OrderStatusCompleted, since).
		Order("completed_at DESC").
		Pluck("completed_at", &stamps).Error
	return stamps, err
}

// NameInUse reports whether a non-completed order other than excludeID uses name.
func (r *repository) NameInUse(ctx context.Context, name, excludeID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("name = ? AND status <> ? AND id <> ?", name, enums.OrderStatusCompleted, excludeID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) UpdateOrder(ctx context.Context, id string, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// DeleteOrder removes the order and its children. Children are deleted
// explicitly so the behaviour does not depend on foreign key enforcement.
func (r *repository) DeleteOrder(ctx context.Context, id string) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", id).Delete(&models.ProfitAdjustment{}).Error; err != nil {
		return err
	}
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.Order{}).Error
}

func (r *repository) FindItem(ctx context.Context, id uint) (*models.OrderItem, error) {
	var item models.OrderItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *repository) UpdateItemQuantity(ctx context.Context, id uint, quantity int) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", id).
		Update("quantity", quantity).Error
}

func (r *repository) DeleteItem(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.OrderItem{}).Error
}

func (r *repository) FindAdjustment(ctx context.Context, id uint) (*models.ProfitAdjustment, error) {
	var adj models.ProfitAdjustment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&adj).Error; err != nil {
		return nil, err
	}
	return &adj, nil
}

func (r *repository) CreateAdjustment(ctx context.Context, adj *models.ProfitAdjustment) error {
	return r.db.WithContext(ctx).Create(adj).Error
}

func (r *repository) DeleteAdjustment(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.ProfitAdjustment{}).Error
}
