package product

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/pkg/db/models"
)

// Repository wires together the product ledger persistence helpers.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// FindByID loads the product, archived or not.
func (r *Repository) FindByID(ctx context.Context, id uint) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindActive loads a non-archived product by its identity tuple.
func (r *Repository) FindActive(ctx context.Context, category, name, attribute string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).
		Where("category = ? AND name = ? AND attribute = ? AND archived = ?", category, name, attribute, false).
		First(&product).
		Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListCategories returns categories that still have at least one live product.
func (r *Repository) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("archived = ?", false).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).
		Error
	return categories, err
}

// ListNames returns product names of a category in sheet order.
func (r *Repository) ListNames(ctx context.Context, category string, requireStock bool) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category = ? AND archived = ?", category, false)
	if requireStock {
		query = query.Where("quantity > 0")
	}

	var names []string
	err := query.
		Group("name").
		Order("MIN(sheet_row) ASC, name ASC").
		Pluck("name", &names).
		Error
	return names, err
}

// ListAttributes returns the attributes available for a product name in sheet order.
func (r *Repository) ListAttributes(ctx context.Context, category, name string, requireStock bool) ([]string, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("category = ? AND name = ? AND archived = ?", category, name, false)
	if requireStock {
		query = query.Where("quantity > 0")
	}

	var attributes []string
	err := query.
		Order("sheet_row ASC, attribute ASC").
		Pluck("attribute", &attributes).
		Error
	return attributes, err
}

// ListByCategory returns every product of a category, archived ones included.
func (r *Repository) ListByCategory(ctx context.Context, category string) ([]models.Product, error) {
	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("category = ?", category).
		Order("id ASC").
		Find(&rows).
		Error
	return rows, err
}

// Create inserts a new product row.
func (r *Repository) Create(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Create(product).Error
}

// UpdateFields applies a partial update to the product.
func (r *Repository) UpdateFields(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(fields).
		Error
}

// ApplyDelta adds delta to the quantity unless the result would be negative and
// flags the row as awaiting write-back. Archived products only take stock
// back. It reports whether a row was changed.
func (r *Repository) ApplyDelta(ctx context.Context, id uint, delta int) (bool, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity + ? >= 0", id, delta)
	if delta < 0 {
		query = query.Where("archived = ?", false)
	}
	result := query.
		Updates(map[string]any{
			"quantity":          gorm.Expr("quantity + ?", delta),
			"writeback_pending": true,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// OverwriteQuantity sets quantity from the sheet unless a ledger change is
// still waiting to be written back.
func (r *Repository) OverwriteQuantity(ctx context.Context, id uint, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND writeback_pending = ?", id, false).
		Update("quantity", quantity)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ClearWriteBackPending drops the pending flag if the ledger still holds quantity.
func (r *Repository) ClearWriteBackPending(ctx context.Context, id uint, quantity int) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity = ? AND writeback_pending = ?", id, quantity, true).
		UpdateColumn("writeback_pending", false)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// archivedFields archive a product and forget its sheet row, which later
// rows shift into once this one is removed.
var archivedFields = map[string]any{"archived": true, "sheet_row": 0}

// Archive hides a product whose sheet row disappeared. The write-back flag is
// left as is so an unconfirmed quantity is replayed if the row returns.
func (r *Repository) Archive(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(archivedFields).
		Error
}

// ArchiveMissingCategories archives live products whose category is not in keep.
func (r *Repository) ArchiveMissingCategories(ctx context.Context, keep []string) (int64, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("archived = ?", false)
	if len(keep) > 0 {
		query = query.Where("category NOT IN ?", keep)
	}
	result := query.Updates(archivedFields)
	return result.RowsAffected, result.Error
}
