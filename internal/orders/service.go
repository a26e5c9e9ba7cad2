package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/stockledger/internal/writeback"
	"github.com/angelmondragon/stockledger/pkg/db"
	"github.com/angelmondragon/stockledger/pkg/db/models"
	"github.com/angelmondragon/stockledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockledger/pkg/errors"
	"github.com/angelmondragon/stockledger/pkg/logger"
)

const (
	// MaxNameLength bounds an order display name, in characters.
	MaxNameLength = 30
	// CompletionBackdateDays is how far before today a completion may be dated.
	CompletionBackdateDays = 3

	idLength         = 8
	createIDAttempts = 3
	addItemAttempts  = 2
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the order ledger. Every stock side effect goes through StockLedger.
type Service interface {
	CreateOrder(ctx context.Context) (*models.Order, error)
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	ListActiveOrders(ctx context.Context) ([]models.Order, error)
	RenameOrder(ctx context.Context, orderID, name string) (*models.Order, error)
	AddItem(ctx context.Context, orderID string, productID uint, quantity int) (*models.Order, error)
	UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) (*models.Order, error)
	RemoveItem(ctx context.Context, itemID uint) (*models.Order, error)
	CompleteOrder(ctx context.Context, orderID string, completedAt time.Time) (*models.Order, error)
	RestoreOrder(ctx context.Context, orderID string, newName *string) (*models.Order, error)
	DeleteOrder(ctx context.Context, orderID string) error
	AddProfitAdjustment(ctx context.Context, orderID string, input AdjustmentInput) (*models.Order, error)
	DeleteProfitAdjustment(ctx context.Context, adjustmentID uint) (*models.Order, error)
	CompletedOrdersOn(ctx context.Context, day time.Time) ([]models.Order, error)
	CompletedOrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error)
	CompletedDates(ctx context.Context, lastNDays int) ([]time.Time, error)
	CompletionDateOptions(order models.Order) []time.Time
}

// AdjustmentInput describes a profit adjustment. A negative Amount lowers
// profit; AffectsTotal also changes what the customer pays.
type AdjustmentInput struct {
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason" validate:"required,max=100"`
	AffectsTotal bool            `json:"affects_total"`
}

// ServiceParams configure the order ledger.
type ServiceParams struct {
	Repo       Repository
	DB         txRunner
	Stock      StockLedger
	Sales      SalesRecorder
	SalesSheet string
	Logger     *logger.Logger
	Location   *time.Location
	Clock      func() time.Time
}

type service struct {
	repo       Repository
	tx         txRunner
	stock      StockLedger
	sales      SalesRecorder
	salesSheet string
	logg       *logger.Logger
	loc        *time.Location
	now        func() time.Time
	validate   *validator.Validate
}

// NewService builds the order ledger with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sales == nil && params.SalesSheet != "" {
		return nil, fmt.Errorf("sales recorder required when a sales sheet is configured")
	}
	loc := params.Location
	if loc == nil {
		loc = time.Local
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:       params.Repo,
		tx:         params.DB,
		stock:      params.Stock,
		sales:      params.Sales,
		salesSheet: params.SalesSheet,
		logg:       params.Logger,
		loc:        loc,
		now:        now,
		validate:   validator.New(),
	}, nil
}

func (s *service) CreateOrder(ctx context.Context) (*models.Order, error) {
	for attempt := 0; attempt < createIDAttempts; attempt++ {
		order := &models.Order{
			ID:     newOrderID(),
			Status: enums.OrderStatusPending,
		}
		err := s.repo.CreateOrder(ctx, order)
		if err == nil {
			s.logg.Info(s.logg.WithOrderID(ctx, order.ID), "order created")
			return order, nil
		}
		if !db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "could not allocate an order id")
}

func newOrderID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:idLength]
}

func (s *service) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.loadOrder(ctx, s.repo, orderID)
}

func (s *service) ListActiveOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active orders")
	}
	return orders, nil
}

func (s *service) RenameOrder(ctx context.Context, orderID, name string) (*models.Order, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadPending(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if name == "" {
			return repo.UpdateOrder(ctx, order.ID, map[string]any{"name": nil})
		}
		if err := s.ensureNameFree(ctx, repo, name, order.ID); err != nil {
			return err
		}
		return repo.UpdateOrder(ctx, order.ID, map[string]any{"name": name})
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, nameConflict(name)
		}
		return nil, s.wrapInternal(err, "rename order")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *service) AddItem(ctx context.Context, orderID string, productID uint, quantity int) (*models.Order, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var (
		touched *models.Product
		err     error
	)
	for attempt := 1; attempt <= addItemAttempts; attempt++ {
		touched, err = s.addItem(ctx, orderID, productID, quantity)
		// A concurrent add created the line first; the next pass merges into it.
		if err == nil || !db.IsUniqueViolation(err, "") {
			break
		}
	}
	if err != nil {
		return nil, s.wrapInternal(err, "add item")
	}
	s.stock.QueueWriteBack(ctx, *touched)
	return s.GetOrder(ctx, orderID)
}

func (s *service) addItem(ctx context.Context, orderID string, productID uint, quantity int) (*models.Product, error) {
	var touched *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadPending(ctx, repo, orderID)
		if err != nil {
			return err
		}

		product, err := s.stock.AdjustInTx(ctx, tx, productID, -quantity)
		if err != nil {
			return err
		}
		touched = product

		if existing := order.ItemFor(productID); existing != nil {
			return repo.UpdateItemQuantity(ctx, existing.ID, existing.Quantity+quantity)
		}
		return repo.CreateItem(ctx, &models.OrderItem{
			OrderID:     order.ID,
			ProductID:   &product.ID,
			ProductName: product.DisplayName(),
			Quantity:    quantity,
			Price:       product.Price,
			Cost:        product.Cost,
		})
	})
	return touched, err
}

func (s *service) UpdateItemQuantity(ctx context.Context, itemID uint, quantity int) (*models.Order, error) {
	var (
		orderID string
		touched []models.Product
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItem(ctx, itemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order item not found")
			}
			return err
		}
		orderID = item.OrderID
		if _, err := s.loadPending(ctx, repo, item.OrderID); err != nil {
			return err
		}

		target := quantity
		if target < 0 {
			target = 0
		}
		product, err := s.returnStock(ctx, tx, item, item.Quantity-target)
		if err != nil {
			return err
		}
		if product != nil {
			touched = append(touched, *product)
		}

		if target == 0 {
			return repo.DeleteItem(ctx, item.ID)
		}
		return repo.UpdateItemQuantity(ctx, item.ID, target)
	})
	if err != nil {
		return nil, s.wrapInternal(err, "update item quantity")
	}
	s.stock.QueueWriteBack(ctx, touched...)
	return s.GetOrder(ctx, orderID)
}

func (s *service) RemoveItem(ctx context.Context, itemID uint) (*models.Order, error) {
	return s.UpdateItemQuantity(ctx, itemID, 0)
}

// returnStock moves delta units from the order back to the product. Returning
// units to a product that no longer exists is logged and skipped; taking more
// from it is rejected so the line never outgrows the stock it consumed.
func (s *service) returnStock(ctx context.Context, tx *gorm.DB, item *models.OrderItem, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, nil
	}
	itemCtx := s.logg.WithFields(ctx, map[string]any{"order_id": item.OrderID, "item_id": item.ID})
	if item.ProductID == nil {
		if delta < 0 {
			return nil, productGone(item)
		}
		s.logg.Warn(itemCtx, "order item has no product; stock left unchanged")
		return nil, nil
	}
	product, err := s.stock.AdjustInTx(ctx, tx, *item.ProductID, delta)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			if delta < 0 {
				return nil, productGone(item)
			}
			s.logg.Warn(s.logg.WithProductID(itemCtx, *item.ProductID), "order item product missing; stock left unchanged")
			return nil, nil
		}
		return nil, err
	}
	return product, nil
}

func productGone(item *models.OrderItem) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "product for this order item no longer exists").
		WithDetails(map[string]any{"item_id": item.ID, "product_name": item.ProductName})
}

func (s *service) CompleteOrder(ctx context.Context, orderID string, completedAt time.Time) (*models.Order, error) {
	if completedAt.IsZero() {
		completedAt = s.now()
	}

	var completed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadPending(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if len(order.Items) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot complete an empty order")
		}
		if s.day(completedAt).Before(s.day(order.CreatedAt)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "completion date cannot precede the order creation date").
				WithDetails(map[string]any{
					"created_at":   order.CreatedAt.In(s.loc).Format(time.DateOnly),
					"completed_at": completedAt.In(s.loc).Format(time.DateOnly),
				})
		}
		stamp := completedAt.UTC()
		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
			"status":       enums.OrderStatusCompleted,
			"completed_at": stamp,
		}); err != nil {
			return err
		}
		order.Status = enums.OrderStatusCompleted
		order.CompletedAt = &stamp
		completed = order
		return nil
	})
	if err != nil {
		return nil, s.wrapInternal(err, "complete order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, completed.ID), "order completed")
	s.recordSales(ctx, *completed)
	return completed, nil
}

func (s *service) recordSales(ctx context.Context, order models.Order) {
	if s.salesSheet == "" || order.CompletedAt == nil {
		return
	}
	date := order.CompletedAt.In(s.loc).Format(time.DateOnly)
	for _, item := range order.Items {
		category, name, attribute := "", item.ProductName, ""
		if item.Product != nil {
			category, name, attribute = item.Product.Category, item.Product.Name, item.Product.Attribute
		}
		row := []any{date, category, name, attribute, item.Quantity, item.LineTotal().StringFixed(2)}
		s.sales.Enqueue(ctx, writeback.AppendRow(s.salesSheet, row))
	}
}

func (s *service) RestoreOrder(ctx context.Context, orderID string, newName *string) (*models.Order, error) {
	var name string
	if newName != nil {
		name = strings.TrimSpace(*newName)
		if err := validateName(name); err != nil {
			return nil, err
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.IsCompleted() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed orders can be restored")
		}

		updates := map[string]any{
			"status":       enums.OrderStatusPending,
			"completed_at": nil,
		}
		if newName != nil {
			if name == "" {
				updates["name"] = nil
			} else {
				updates["name"] = name
			}
		} else if order.Name != nil {
			name = *order.Name
		}
		if name != "" {
			if err := s.ensureNameFree(ctx, repo, name, order.ID); err != nil {
				return err
			}
		}
		return repo.UpdateOrder(ctx, order.ID, updates)
	})
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, nameConflict(name)
		}
		return nil, s.wrapInternal(err, "restore order")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID), "order restored")
	return s.GetOrder(ctx, orderID)
}

func (s *service) DeleteOrder(ctx context.Context, orderID string) error {
	var touched []models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		touched = touched[:0]
		for i := range order.Items {
			product, err := s.returnStock(ctx, tx, &order.Items[i], order.Items[i].Quantity)
			if err != nil {
				return err
			}
			if product != nil {
				touched = append(touched, *product)
			}
		}
		return repo.DeleteOrder(ctx, order.ID)
	})
	if err != nil {
		return s.wrapInternal(err, "delete order")
	}
	s.logg.Info(s.logg.WithOrderID(ctx, orderID), "order deleted")
	s.stock.QueueWriteBack(ctx, touched...)
	return nil
}

func (s *service) AddProfitAdjustment(ctx context.Context, orderID string, input AdjustmentInput) (*models.Order, error) {
	input.Reason = strings.TrimSpace(input.Reason)
	if err := s.validate.Struct(input); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid profit adjustment")
	}
	if input.Amount.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "adjustment amount must not be zero")
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := s.loadPending(ctx, repo, orderID)
		if err != nil {
			return err
		}
		return repo.CreateAdjustment(ctx, &models.ProfitAdjustment{
			OrderID:      order.ID,
			Amount:       input.Amount.Round(2),
			Reason:       input.Reason,
			AffectsTotal: input.AffectsTotal,
		})
	})
	if err != nil {
		return nil, s.wrapInternal(err, "add profit adjustment")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *service) DeleteProfitAdjustment(ctx context.Context, adjustmentID uint) (*models.Order, error) {
	var orderID string
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		adj, err := repo.FindAdjustment(ctx, adjustmentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "profit adjustment not found")
			}
			return err
		}
		orderID = adj.OrderID
		if _, err := s.loadPending(ctx, repo, adj.OrderID); err != nil {
			return err
		}
		return repo.DeleteAdjustment(ctx, adj.ID)
	})
	if err != nil {
		return nil, s.wrapInternal(err, "delete profit adjustment")
	}
	return s.GetOrder(ctx, orderID)
}

func (s *service) CompletedOrdersOn(ctx context.Context, day time.Time) ([]models.Order, error) {
	start := s.day(day)
	return s.CompletedOrdersBetween(ctx, start, start)
}

// CompletedOrdersBetween returns orders completed on any calendar day from
// start through end, both inclusive.
func (s *service) CompletedOrdersBetween(ctx context.Context, start, end time.Time) ([]models.Order, error) {
	from := s.day(start)
	until := s.day(end).AddDate(0, 0, 1)
	if !until.After(from) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end date precedes start date")
	}
	orders, err := s.repo.ListCompletedBetween(ctx, from.UTC(), until.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list completed orders")
	}
	return orders, nil
}

// CompletedDates returns the distinct days, newest first, within the last
// lastNDays days (today included) on which at least one order was completed.
func (s *service) CompletedDates(ctx context.Context, lastNDays int) ([]time.Time, error) {
	if lastNDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "days must be positive")
	}
	since := s.day(s.now()).AddDate(0, 0, -(lastNDays - 1))
	stamps, err := s.repo.CompletionTimesSince(ctx, since.UTC())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list completion dates")
	}

	days := make([]time.Time, 0, len(stamps))
	seen := make(map[string]struct{}, len(stamps))
	for _, stamp := range stamps {
		day := s.day(stamp)
		key := day.Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		days = append(days, day)
	}
	return days, nil
}

// CompletionDateOptions lists the days an order may be completed on, newest
// first: today back to the later of its creation day and CompletionBackdateDays ago.
func (s *service) CompletionDateOptions(order models.Order) []time.Time {
	today := s.day(s.now())
	earliest := today.AddDate(0, 0, -CompletionBackdateDays)
	if created := s.day(order.CreatedAt); created.After(earliest) {
		earliest = created
	}
	var options []time.Time
	for day := today; !day.Before(earliest); day = day.AddDate(0, 0, -1) {
		options = append(options, day)
	}
	return options
}

func (s *service) day(t time.Time) time.Time {
	local := t.In(s.loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}

func (s *service) loadOrder(ctx context.Context, repo Repository, orderID string) (*models.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	return order, nil
}

func (s *service) loadPending(ctx context.Context, repo Repository, orderID string) (*models.Order, error) {
	order, err := s.loadOrder(ctx, repo, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsPending() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is not pending").
			WithDetails(map[string]any{"order_id": order.ID, "status": order.Status})
	}
	return order, nil
}

func (s *service) ensureNameFree(ctx context.Context, repo Repository, name, orderID string) error {
	taken, err := repo.NameInUse(ctx, name, orderID)
	if err != nil {
		return err
	}
	if taken {
		return nameConflict(name)
	}
	return nil
}

// nameConflict also covers the ux_orders_active_name index firing when two
// writers pass the NameInUse check at the same time.
func nameConflict(name string) error {
	return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("an active order named %q already exists", name)).
		WithDetails(map[string]any{"name": name})
}

func validateName(name string) error {
	if utf8.RuneCountInString(name) > MaxNameLength {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order name must be at most %d characters", MaxNameLength))
	}
	return nil
}

func (s *service) wrapInternal(err error, msg string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, msg)
}
