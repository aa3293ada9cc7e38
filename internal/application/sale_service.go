package application

import (
	"context"
	"fmt"
	"sync"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/pkg/errors"
	"github.com/marcelogudines/sales/pkg/logging"
	"github.com/marcelogudines/sales/pkg/metrics"
)

// SaleService handles sale use cases
type SaleService struct {
	repo      domain.SaleRepository
	publisher domain.EventPublisher
	providers domain.Providers
	metrics   *metrics.Metrics
	logger    *logging.Logger
	locks     saleLocks
}

// StoreCounter is implemented by repositories that can report their size
type StoreCounter interface {
	Count() int
}

// NewSaleService creates a new SaleService. metrics may be nil.
func NewSaleService(
	repo domain.SaleRepository,
	publisher domain.EventPublisher,
	providers domain.Providers,
	m *metrics.Metrics,
	logger *logging.Logger,
) *SaleService {
	if providers.IDs == nil {
		providers.IDs = domain.UUIDGenerator{}
	}
	if providers.Clock == nil {
		providers.Clock = domain.SystemClock{}
	}
	return &SaleService{
		repo:      repo,
		publisher: publisher,
		providers: providers,
		metrics:   m,
		logger:    logger.WithComponent("sale-service"),
		locks:     saleLocks{locks: make(map[string]*saleLock)},
	}
}

// CreateSale validates the command, builds the aggregate and stores it once per
// (number, branch id). On conflict the existing sale is returned with the error.
func (s *SaleService) CreateSale(ctx context.Context, cmd CreateSaleCommand) (Outcome[*SaleDTO], error) {
	const op = "create"

	var bag domain.NotificationsBag
	customer := domain.NewCustomerRef(cmd.CustomerID, cmd.CustomerName, "customer")
	branch := domain.NewBranchRef(cmd.BranchID, cmd.BranchName, "branch")
	bag.Merge(customer.Notifications(), "")
	bag.Merge(branch.Notifications(), "")

	inputs := make([]domain.SaleItemInput, 0, len(cmd.Items))
	for idx, item := range cmd.Items {
		input, notes := buildItemInput(item, fmt.Sprintf("items[%d]", idx))
		bag.Merge(notes, "")
		if !notes.HasErrors() {
			inputs = append(inputs, input)
		}
	}
	if bag.HasErrors() {
		return Outcome[*SaleDTO]{}, s.reject(op, &bag)
	}

	saleDate := s.providers.Clock.Now()
	if cmd.SaleDate != nil {
		saleDate = cmd.SaleDate.UTC()
	}
	customerRef, branchRef := customer.Value(), branch.Value()

	res := domain.CreateSale(s.providers, domain.NewSaleParams{
		Number:   cmd.Number,
		SaleDate: saleDate,
		Customer: &customerRef,
		Branch:   &branchRef,
		Items:    inputs,
	})
	if !res.IsValid() {
		return Outcome[*SaleDTO]{}, s.reject(op, res.Notifications())
	}

	sale := res.Value()
	unlock := s.locks.lock(sale.ID())
	defer unlock()

	created, persisted, err := s.repo.AddIfNotExists(ctx, sale)
	if err != nil {
		s.metrics.RecordSaleOperation(op, metrics.OutcomeError)
		s.logger.WithError(err).Error("Failed to store sale", "saleNumber", sale.Number())
		return Outcome[*SaleDTO]{}, fmt.Errorf("failed to store sale: %w", err)
	}
	if !created {
		conflict := domain.NewNotificationsBag(domain.Notification{
			Code:    domain.CodeSaleAlreadyExists,
			Message: "a sale with this number already exists for the branch",
			Path:    "number",
		})
		existing := s.snapshot(persisted)
		return Outcome[*SaleDTO]{Data: existing}, s.reject(op, conflict)
	}

	s.publishPending(ctx, sale)
	s.metrics.RecordSaleOperation(op, metrics.OutcomeSuccess)
	s.metrics.RecordItemsAdded(len(sale.Items()))
	s.reportStoreSize()
	s.logger.SaleEvent(ctx, "sale.created", sale.ID(), sale.Number(), map[string]any{
		"branchId":  sale.Branch().ID,
		"items":     len(sale.Items()),
		"saleTotal": sale.SaleTotal().String(),
	})

	return Outcome[*SaleDTO]{Data: ToSaleDTO(sale), Notifications: ToNotifications(res.Items())}, nil
}

// AddItem appends a line to an existing sale
func (s *SaleService) AddItem(ctx context.Context, cmd AddItemCommand) (Outcome[ItemRefDTO], error) {
	const op = "add_item"

	input, notes := buildItemInput(cmd.SaleItemCommand, "item")
	return mutate(ctx, s, op, cmd.SaleID, func(sale *domain.Sale) (Outcome[ItemRefDTO], *domain.NotificationsBag) {
		if notes.HasErrors() {
			return Outcome[ItemRefDTO]{}, notes
		}
		res := sale.AddItem(input)
		if !res.IsValid() {
			return Outcome[ItemRefDTO]{}, res.Notifications()
		}
		item := res.Value()
		s.metrics.RecordItemsAdded(1)
		s.logger.SaleEvent(ctx, "sale.item_added", sale.ID(), sale.Number(), map[string]any{
			"itemId":   item.ID(),
			"quantity": item.Quantity(),
		})
		return Outcome[ItemRefDTO]{Data: ItemRefDTO{ItemID: item.ID()}}, nil
	})
}

// ReplaceItemQuantity changes the quantity of a line
func (s *SaleService) ReplaceItemQuantity(ctx context.Context, cmd ReplaceItemQuantityCommand) (Outcome[ItemRefDTO], error) {
	return mutate(ctx, s, "replace_item_quantity", cmd.SaleID, func(sale *domain.Sale) (Outcome[ItemRefDTO], *domain.NotificationsBag) {
		res := sale.ReplaceItemQuantity(cmd.ItemID, cmd.NewQuantity)
		if !res.IsValid() {
			return Outcome[ItemRefDTO]{}, res.Notifications()
		}
		item := res.Value()
		s.logger.SaleEvent(ctx, "sale.item_quantity_replaced", sale.ID(), sale.Number(), map[string]any{
			"itemId":          item.ID(),
			"quantity":        item.Quantity(),
			"discountPercent": item.DiscountPercent(),
		})
		return Outcome[ItemRefDTO]{Data: ItemRefDTO{ItemID: item.ID()}}, nil
	})
}

// CancelItem cancels a single line
func (s *SaleService) CancelItem(ctx context.Context, cmd CancelItemCommand) (Outcome[ItemRefDTO], error) {
	return mutate(ctx, s, "cancel_item", cmd.SaleID, func(sale *domain.Sale) (Outcome[ItemRefDTO], *domain.NotificationsBag) {
		res := sale.CancelItem(cmd.ItemID)
		if !res.IsValid() {
			return Outcome[ItemRefDTO]{}, res.Notifications()
		}
		s.logger.SaleEvent(ctx, "sale.item_canceled", sale.ID(), sale.Number(), map[string]any{
			"itemId": cmd.ItemID,
		})
		return Outcome[ItemRefDTO]{Data: ItemRefDTO{ItemID: res.Value().ID()}}, nil
	})
}

// CancelSale cancels the whole sale
func (s *SaleService) CancelSale(ctx context.Context, cmd CancelSaleCommand) (Outcome[SaleRefDTO], error) {
	return mutate(ctx, s, "cancel", cmd.SaleID, func(sale *domain.Sale) (Outcome[SaleRefDTO], *domain.NotificationsBag) {
		res := sale.Cancel(cmd.Reason)
		if !res.IsValid() {
			return Outcome[SaleRefDTO]{}, res.Notifications()
		}
		s.logger.SaleEvent(ctx, "sale.canceled", sale.ID(), sale.Number(), map[string]any{
			"reason": cmd.Reason,
		})
		return Outcome[SaleRefDTO]{Data: SaleRefDTO{SaleID: sale.ID()}}, nil
	})
}

// DeleteSale removes a sale. It reports false when the sale did not exist.
func (s *SaleService) DeleteSale(ctx context.Context, saleID string) (bool, error) {
	unlock := s.locks.lock(saleID)
	defer unlock()

	deleted, err := s.repo.Delete(ctx, saleID)
	if err != nil {
		s.metrics.RecordSaleOperation("delete", metrics.OutcomeError)
		return false, fmt.Errorf("failed to delete sale: %w", err)
	}
	if !deleted {
		s.metrics.RecordSaleOperation("delete", metrics.OutcomeNotFound)
		return false, nil
	}

	s.metrics.RecordSaleOperation("delete", metrics.OutcomeSuccess)
	s.reportStoreSize()
	s.logger.SaleEvent(ctx, "sale.deleted", saleID, "", nil)
	return true, nil
}

// GetSale retrieves a sale by ID
func (s *SaleService) GetSale(ctx context.Context, saleID string) (*SaleDTO, error) {
	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, SaleNotFound("saleId")
	}
	return s.snapshot(sale), nil
}

// GetSaleByNumber retrieves a sale by its (number, branch id) key
func (s *SaleService) GetSaleByNumber(ctx context.Context, number, branchID string) (*SaleDTO, error) {
	sale, err := s.repo.GetByNumberAndBranch(ctx, number, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	if sale == nil {
		return nil, SaleNotFound("number")
	}
	return s.snapshot(sale), nil
}

// ListSales returns one page of sales
func (s *SaleService) ListSales(ctx context.Context, query ListSalesQuery) (*SaleListDTO, error) {
	page := domain.NewPagination(query.Page, query.PageSize)

	sales, total, err := s.repo.List(ctx, page)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	dtos := make([]SaleDTO, 0, len(sales))
	for _, sale := range sales {
		dtos = append(dtos, *s.snapshot(sale))
	}

	totalPages := int((total + int64(page.PageSize) - 1) / int64(page.PageSize))
	return &SaleListDTO{
		Items:      dtos,
		Total:      total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: totalPages,
	}, nil
}

// mutate loads a sale under its lock and applies fn to a working copy.
// The copy replaces the stored sale only when fn succeeds and Update commits it;
// its events are published afterwards.
func mutate[T any](ctx context.Context, s *SaleService, op, saleID string, fn func(*domain.Sale) (Outcome[T], *domain.NotificationsBag)) (Outcome[T], error) {
	unlock := s.locks.lock(saleID)
	defer unlock()

	sale, err := s.repo.GetByID(ctx, saleID)
	if err != nil {
		s.metrics.RecordSaleOperation(op, metrics.OutcomeError)
		return Outcome[T]{}, fmt.Errorf("failed to load sale: %w", err)
	}
	if sale == nil {
		s.metrics.RecordSaleOperation(op, metrics.OutcomeNotFound)
		return Outcome[T]{}, SaleNotFound("saleId")
	}

	working := sale.Clone()
	out, failed := fn(working)
	if failed.HasErrors() {
		return Outcome[T]{}, s.reject(op, failed)
	}

	if err := s.repo.Update(ctx, working); err != nil {
		s.metrics.RecordSaleOperation(op, metrics.OutcomeError)
		s.logger.WithError(err).Error("Failed to update sale", "saleId", working.ID())
		return Outcome[T]{}, fmt.Errorf("failed to update sale: %w", err)
	}
	s.publishPending(ctx, working)
	s.metrics.RecordSaleOperation(op, metrics.OutcomeSuccess)
	return out, nil
}

func buildItemInput(cmd SaleItemCommand, path string) (domain.SaleItemInput, *domain.NotificationsBag) {
	bag := &domain.NotificationsBag{}
	product := domain.NewProductRef(cmd.ProductID, cmd.ProductName, cmd.SKU, path+".product")
	price := domain.NewMoney(cmd.UnitPrice, path+".unitPrice")
	bag.Merge(product.Notifications(), "")
	bag.Merge(price.Notifications(), "")
	if bag.HasErrors() {
		return domain.SaleItemInput{}, bag
	}

	productRef, unitPrice := product.Value(), price.Value()
	return domain.SaleItemInput{Product: &productRef, Quantity: cmd.Quantity, UnitPrice: &unitPrice}, bag
}

func (s *SaleService) reject(op string, bag *domain.NotificationsBag) *errors.AppError {
	appErr := FromNotifications(bag)
	outcome := metrics.OutcomeValidationFailed
	switch appErr.Code {
	case errors.CodeNotFound:
		outcome = metrics.OutcomeNotFound
	case errors.CodeConflict:
		outcome = metrics.OutcomeConflict
	}
	s.metrics.RecordSaleOperation(op, outcome)
	s.logger.Debug("Sale command rejected", "operation", op, "codes", appErr.Notifications)
	return appErr
}

// publishPending drains the sale's events. Publish failures are logged only;
// the mutation is already committed.
func (s *SaleService) publishPending(ctx context.Context, sale *domain.Sale) {
	events := sale.DequeueEvents()
	if len(events) == 0 {
		return
	}
	if err := s.publisher.PublishAll(ctx, events); err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to publish sale events",
			"saleId", sale.ID(),
			"events", len(events),
		)
	}
}

// snapshot maps a stored sale while holding its lock
func (s *SaleService) snapshot(sale *domain.Sale) *SaleDTO {
	unlock := s.locks.lock(sale.ID())
	defer unlock()
	return ToSaleDTO(sale)
}

func (s *SaleService) reportStoreSize() {
	if counter, ok := s.repo.(StoreCounter); ok {
		s.metrics.SetSalesStored(counter.Count())
	}
}

// saleLocks serializes access to individual sale aggregates.
// An entry lives only while some caller holds or waits for it.
type saleLocks struct {
	mu    sync.Mutex
	locks map[string]*saleLock
}

type saleLock struct {
	mu   sync.Mutex
	refs int
}

func (l *saleLocks) lock(id string) func() {
	l.mu.Lock()
	entry, ok := l.locks[id]
	if !ok {
		entry = &saleLock{}
		l.locks[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

func (l *saleLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
