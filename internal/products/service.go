package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/writeback"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
	"github.com/angelmondragon/stockledger/pkg/sheets"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Enqueuer accepts write-back jobs without blocking.
type Enqueuer interface {
	Enqueue(ctx context.Context, job writeback.Job) bool
}

// Locator resolves the spreadsheet cell that mirrors a product's quantity.
type Locator interface {
	QuantityCell(p models.Product) (sheets.CellRef, bool)
}

// Service is the product ledger. AdjustQuantity and AdjustInTx are the only
// paths that change stock.
type Service interface {
	GetCategories(ctx context.Context) ([]string, error)
	GetProductNames(ctx context.Context, category string, intent enums.StockIntent) ([]string, error)
	GetAttributes(ctx context.Context, category, name string, intent enums.StockIntent) ([]string, error)
	FindProduct(ctx context.Context, category, name, attribute string) (*models.Product, error)
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	AdjustQuantity(ctx context.Context, productID uint, delta int) (*models.Product, error)
	AdjustInTx(ctx context.Context, tx *gorm.DB, productID uint, delta int) (*models.Product, error)
	QueueWriteBack(ctx context.Context, products ...models.Product)
	ConfirmWriteBack(ctx context.Context, job writeback.Job)
}

// ServiceParams configure the product ledger.
type ServiceParams struct {
	Repo    *Repository
	DB      txRunner
	Queue   Enqueuer
	Locator Locator
	Logger  *logger.Logger
}

type service struct {
	repo    *Repository
	tx      txRunner
	queue   Enqueuer
	locator Locator
	logg    *logger.Logger
}

// NewService constructs the product ledger service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("write-back queue required")
	}
	if params.Locator == nil {
		return nil, fmt.Errorf("cell locator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.DB,
		queue:   params.Queue,
		locator: params.Locator,
		logg:    params.Logger,
	}, nil
}

func (s *service) GetCategories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}

func (s *service) GetProductNames(ctx context.Context, category string, intent enums.StockIntent) ([]string, error) {
	if !intent.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown intent %q", intent))
	}
	return s.repo.ListNames(ctx, strings.TrimSpace(category), intent.RequiresStock())
}

func (s *service) GetAttributes(ctx context.Context, category, name string, intent enums.StockIntent) ([]string, error) {
	if !intent.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown intent %q", intent))
	}
	return s.repo.ListAttributes(ctx, strings.TrimSpace(category), strings.TrimSpace(name), intent.RequiresStock())
}

func (s *service) FindProduct(ctx context.Context, category, name, attribute string) (*models.Product, error) {
	product, err := s.repo.FindActive(ctx, strings.TrimSpace(category), strings.TrimSpace(name), strings.TrimSpace(attribute))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find product")
	}
	return product, nil
}

func (s *service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) AdjustQuantity(ctx context.Context, productID uint, delta int) (*models.Product, error) {
	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		product, err := s.AdjustInTx(ctx, tx, productID, delta)
		if err != nil {
			return err
		}
		updated = product
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.QueueWriteBack(ctx, *updated)
	return updated, nil
}

// AdjustInTx applies delta inside the caller's transaction. The caller must
// QueueWriteBack the returned product once the transaction commits.
func (s *service) AdjustInTx(ctx context.Context, tx *gorm.DB, productID uint, delta int) (*models.Product, error) {
	repo := s.repo.WithTx(tx)
	if delta != 0 {
		changed, err := repo.ApplyDelta(ctx, productID, delta)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust quantity")
		}
		if !changed {
			return nil, s.explainRejectedDelta(ctx, repo, productID, delta)
		}
	}

	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload product")
	}
	return product, nil
}

func (s *service) explainRejectedDelta(ctx context.Context, repo *Repository, productID uint, delta int) error {
	product, err := repo.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if product.Archived && delta < 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product is no longer on the sheet").
			WithDetails(map[string]any{"product_id": productID})
	}
	return pkgerrors.New(pkgerrors.CodeInsufficient, fmt.Sprintf("insufficient stock: only %d left", product.Quantity)).
		WithDetails(map[string]any{
			"product_id": productID,
			"available":  product.Quantity,
			"requested":  -delta,
		})
}

// QueueWriteBack schedules the spreadsheet update for each product. Products
// without a known cell keep their pending flag for the next reconciliation.
func (s *service) QueueWriteBack(ctx context.Context, products ...models.Product) {
	for _, p := range products {
		cell, ok := s.locator.QuantityCell(p)
		if !ok {
			s.logg.Warn(s.logg.WithProductID(ctx, p.ID), "product has no sheet position; write-back deferred to reconciliation")
			continue
		}
		s.queue.Enqueue(ctx, writeback.QuantityUpdate(p.ID, cell, p.Quantity))
	}
}

// ConfirmWriteBack clears the pending flag after the sheet accepted a quantity.
func (s *service) ConfirmWriteBack(ctx context.Context, job writeback.Job) {
	if job.Kind != enums.WriteBackJobUpdateQuantity {
		return
	}
	if _, err := s.repo.ClearWriteBackPending(ctx, job.ProductID, job.Quantity); err != nil {
		s.logg.Error(s.logg.WithProductID(ctx, job.ProductID), "failed to clear write-back flag", err)
	}
}
