package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcelogudines/sales/internal/domain"
	"github.com/marcelogudines/sales/internal/infrastructure/memory"
	apperrors "github.com/marcelogudines/sales/pkg/errors"
	"github.com/marcelogudines/sales/pkg/testutil"
)

type fakePublisher struct {
	mu        sync.Mutex
	published []domain.DomainEvent
	publishFn func(context.Context, []domain.DomainEvent) error
}

func (f *fakePublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	return f.PublishAll(ctx, []domain.DomainEvent{event})
}

func (f *fakePublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	f.mu.Lock()
	f.published = append(f.published, events...)
	f.mu.Unlock()
	if f.publishFn != nil {
		return f.publishFn(ctx, events)
	}
	return nil
}

func (f *fakePublisher) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	types := make([]string, 0, len(f.published))
	for _, e := range f.published {
		types = append(types, e.EventType())
	}
	return types
}

type fakeRepo struct {
	domain.SaleRepository
	getByIDFn func(context.Context, string) (*domain.Sale, error)
	updateFn  func(context.Context, *domain.Sale) error
}

func (f *fakeRepo) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	if f.getByIDFn == nil {
		return f.SaleRepository.GetByID(ctx, id)
	}
	return f.getByIDFn(ctx, id)
}

func (f *fakeRepo) Update(ctx context.Context, sale *domain.Sale) error {
	if f.updateFn == nil {
		return f.SaleRepository.Update(ctx, sale)
	}
	return f.updateFn(ctx, sale)
}

var fixedNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestService(publisher *fakePublisher) (*SaleService, *memory.SaleRepository) {
	repo := memory.NewSaleRepository()
	providers := domain.Providers{IDs: &testutil.SequenceIDs{}, Clock: testutil.NewFixedClock(fixedNow)}
	return NewSaleService(repo, publisher, providers, nil, testutil.TestLogger()), repo
}

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func validCreateCommand() CreateSaleCommand {
	return CreateSaleCommand{
		Number:       "S-100",
		CustomerID:   "c-1",
		CustomerName: "Ana",
		BranchID:     "b-1",
		BranchName:   "Downtown",
		Items: []SaleItemCommand{
			{ProductID: "p-1", ProductName: "Beer", Quantity: 4, UnitPrice: price("10.00")},
			{ProductID: "p-2", ProductName: "Wine", SKU: " W-2 ", Quantity: 10, UnitPrice: price("5.00")},
		},
	}
}

func requireAppError(t *testing.T, err error, status int) *apperrors.AppError {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	assert.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

func codesOf(notifications []apperrors.Notification) []string {
	codes := make([]string, 0, len(notifications))
	for _, n := range notifications {
		codes = append(codes, n.Code)
	}
	return codes
}

func TestCreateSale(t *testing.T) {
	publisher := &fakePublisher{}
	service, repo := newTestService(publisher)

	out, err := service.CreateSale(context.Background(), validCreateCommand())
	require.NoError(t, err)

	sale := out.Data
	assert.Equal(t, "S-100", sale.Number)
	assert.Equal(t, fixedNow, sale.SaleDate)
	assert.Equal(t, "NotCanceled", sale.Status)
	assert.Equal(t, "80.00", sale.SaleTotal.String())
	require.Len(t, sale.Items, 2)
	assert.Equal(t, "W-2", sale.Items[1].SKU)
	assert.Equal(t, 20, sale.Items[1].DiscountPercent)
	assert.Empty(t, out.Notifications)
	assert.Equal(t, []string{domain.EventTypeSaleCreated}, publisher.types())
	assert.Equal(t, 1, repo.Count())
}

func TestCreateSalePreValidation(t *testing.T) {
	service, repo := newTestService(&fakePublisher{})
	cmd := validCreateCommand()
	cmd.CustomerName = ""
	cmd.Items[1].ProductID = ""
	cmd.Items[1].UnitPrice = nil

	_, err := service.CreateSale(context.Background(), cmd)

	appErr := requireAppError(t, err, http.StatusUnprocessableEntity)
	assert.Equal(t, []string{"customer.name_required", "product.id_required", "money.required"}, codesOf(appErr.Notifications))
	assert.Equal(t, "customer.name", appErr.Notifications[0].Path)
	assert.Equal(t, "items[1].product.id", appErr.Notifications[1].Path)
	assert.Equal(t, "items[1].unitPrice", appErr.Notifications[2].Path)
	assert.Zero(t, repo.Count())
}

func TestCreateSaleKeepsWarningsForDroppedItems(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	cmd := validCreateCommand()
	cmd.Items[1].Quantity = 25

	out, err := service.CreateSale(context.Background(), cmd)
	require.NoError(t, err)

	assert.Len(t, out.Data.Items, 1)
	require.Len(t, out.Notifications, 1)
	assert.Equal(t, "item.quantity_range", out.Notifications[0].Code)
	assert.Equal(t, "warning", out.Notifications[0].Severity)
}

func TestCreateSaleWithoutItems(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	cmd := validCreateCommand()
	cmd.Items = nil

	_, err := service.CreateSale(context.Background(), cmd)

	appErr := requireAppError(t, err, http.StatusUnprocessableEntity)
	assert.Equal(t, []string{"sale.items_min_1"}, codesOf(appErr.Notifications))
}

func TestCreateSaleConflict(t *testing.T) {
	publisher := &fakePublisher{}
	service, repo := newTestService(publisher)

	first, err := service.CreateSale(context.Background(), validCreateCommand())
	require.NoError(t, err)

	out, err := service.CreateSale(context.Background(), validCreateCommand())

	appErr := requireAppError(t, err, http.StatusConflict)
	assert.Equal(t, []string{"sale.already_exists"}, codesOf(appErr.Notifications))
	assert.Equal(t, "number", appErr.Notifications[0].Path)
	require.NotNil(t, out.Data)
	assert.Equal(t, first.Data.ID, out.Data.ID)
	assert.Equal(t, 1, repo.Count())
	assert.Len(t, publisher.types(), 1)
}

func TestMutationsPublishEvents(t *testing.T) {
	publisher := &fakePublisher{}
	service, _ := newTestService(publisher)
	ctx := context.Background()

	created, err := service.CreateSale(ctx, validCreateCommand())
	require.NoError(t, err)
	saleID := created.Data.ID
	firstItem := created.Data.Items[0].ID

	added, err := service.AddItem(ctx, AddItemCommand{
		SaleID:          saleID,
		SaleItemCommand: SaleItemCommand{ProductID: "p-3", ProductName: "Water", Quantity: 5, UnitPrice: price("2.00")},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, added.Data.ItemID)

	_, err = service.ReplaceItemQuantity(ctx, ReplaceItemQuantityCommand{SaleID: saleID, ItemID: firstItem, NewQuantity: 5})
	require.NoError(t, err)

	_, err = service.CancelItem(ctx, CancelItemCommand{SaleID: saleID, ItemID: firstItem})
	require.NoError(t, err)

	canceled, err := service.CancelSale(ctx, CancelSaleCommand{SaleID: saleID, Reason: "customer request"})
	require.NoError(t, err)
	assert.Equal(t, saleID, canceled.Data.SaleID)

	assert.Equal(t, []string{
		domain.EventTypeSaleCreated,
		domain.EventTypeSaleUpdated,
		domain.EventTypeSaleUpdated,
		domain.EventTypeSaleItemCanceled,
		domain.EventTypeSaleUpdated,
		domain.EventTypeSaleCanceled,
	}, publisher.types())

	sale, err := service.GetSale(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, "Canceled", sale.Status)
	assert.Equal(t, "49.00", sale.SaleTotal.String())

	_, err = service.AddItem(ctx, AddItemCommand{
		SaleID:          saleID,
		SaleItemCommand: SaleItemCommand{ProductID: "p-4", ProductName: "Juice", Quantity: 1, UnitPrice: price("1.00")},
	})
	appErr := requireAppError(t, err, http.StatusUnprocessableEntity)
	assert.Equal(t, []string{"sale.canceled_mutation"}, codesOf(appErr.Notifications))
}

func TestAddItemValidatesInput(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	created, err := service.CreateSale(context.Background(), validCreateCommand())
	require.NoError(t, err)

	_, err = service.AddItem(context.Background(), AddItemCommand{
		SaleID:          created.Data.ID,
		SaleItemCommand: SaleItemCommand{ProductName: "Water", Quantity: 1, UnitPrice: price("-1")},
	})

	appErr := requireAppError(t, err, http.StatusUnprocessableEntity)
	assert.Equal(t, []string{"product.id_required", "money.non_negative"}, codesOf(appErr.Notifications))
	assert.Equal(t, "item.product.id", appErr.Notifications[0].Path)
	assert.Equal(t, "item.unitPrice", appErr.Notifications[1].Path)
}

func TestMutationsOnMissingSale(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	ctx := context.Background()

	_, err := service.CancelSale(ctx, CancelSaleCommand{SaleID: "nope"})
	appErr := requireAppError(t, err, http.StatusNotFound)
	assert.Equal(t, "saleId", appErr.Notifications[0].Path)

	_, err = service.ReplaceItemQuantity(ctx, ReplaceItemQuantityCommand{SaleID: "nope", ItemID: "i", NewQuantity: 2})
	requireAppError(t, err, http.StatusNotFound)
}

func TestCancelUnknownItem(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	created, err := service.CreateSale(context.Background(), validCreateCommand())
	require.NoError(t, err)

	_, err = service.CancelItem(context.Background(), CancelItemCommand{SaleID: created.Data.ID, ItemID: "missing"})

	appErr := requireAppError(t, err, http.StatusNotFound)
	assert.Equal(t, []string{"sale.item_not_found"}, codesOf(appErr.Notifications))
}

func TestPublishFailureDoesNotFailCommand(t *testing.T) {
	publisher := &fakePublisher{publishFn: func(context.Context, []domain.DomainEvent) error {
		return errors.New("broker down")
	}}
	service, repo := newTestService(publisher)

	_, err := service.CreateSale(context.Background(), validCreateCommand())

	require.NoError(t, err)
	assert.Equal(t, 1, repo.Count())
}

func TestRepositoryFailureIsWrapped(t *testing.T) {
	boom := errors.New("store unavailable")
	repo := &fakeRepo{getByIDFn: func(context.Context, string) (*domain.Sale, error) { return nil, boom }}
	service := NewSaleService(repo, &fakePublisher{}, domain.Providers{}, nil, testutil.TestLogger())

	_, err := service.CancelSale(context.Background(), CancelSaleCommand{SaleID: "s-1"})

	assert.ErrorIs(t, err, boom)
	assert.False(t, apperrors.IsAppError(err))
}

func TestFailedUpdateLeavesStoredSaleUntouched(t *testing.T) {
	publisher := &fakePublisher{}
	repo := &fakeRepo{
		SaleRepository: memory.NewSaleRepository(),
		updateFn:       func(context.Context, *domain.Sale) error { return context.Canceled },
	}
	providers := domain.Providers{IDs: &testutil.SequenceIDs{}, Clock: testutil.NewFixedClock(fixedNow)}
	service := NewSaleService(repo, publisher, providers, nil, testutil.TestLogger())
	ctx := context.Background()

	created, err := service.CreateSale(ctx, validCreateCommand())
	require.NoError(t, err)
	saleID := created.Data.ID

	_, err = service.CancelSale(ctx, CancelSaleCommand{SaleID: saleID, Reason: "late delivery"})
	assert.ErrorIs(t, err, context.Canceled)

	stored, err := service.GetSale(ctx, saleID)
	require.NoError(t, err)
	assert.Equal(t, "NotCanceled", stored.Status)
	assert.Equal(t, []string{domain.EventTypeSaleCreated}, publisher.types())

	repo.updateFn = nil
	_, err = service.CancelItem(ctx, CancelItemCommand{SaleID: saleID, ItemID: created.Data.Items[0].ID})
	require.NoError(t, err)
	_, err = service.CancelSale(ctx, CancelSaleCommand{SaleID: saleID, Reason: "late delivery"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		domain.EventTypeSaleCreated,
		domain.EventTypeSaleItemCanceled,
		domain.EventTypeSaleUpdated,
		domain.EventTypeSaleCanceled,
	}, publisher.types())
}

func TestSaleLocksAreReleased(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		_, err := service.CancelSale(ctx, CancelSaleCommand{SaleID: fmt.Sprintf("missing-%d", i)})
		requireAppError(t, err, http.StatusNotFound)
	}
	assert.Zero(t, service.locks.size())

	created, err := service.CreateSale(ctx, validCreateCommand())
	require.NoError(t, err)
	_, err = service.CancelSale(ctx, CancelSaleCommand{SaleID: created.Data.ID})
	require.NoError(t, err)
	_, err = service.GetSale(ctx, created.Data.ID)
	require.NoError(t, err)
	assert.Zero(t, service.locks.size())
}

func TestLookupListAndDelete(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	ctx := context.Background()

	for _, number := range []string{"S-1", "S-2", "S-3"} {
		cmd := validCreateCommand()
		cmd.Number = number
		_, err := service.CreateSale(ctx, cmd)
		require.NoError(t, err)
	}

	found, err := service.GetSaleByNumber(ctx, "S-2", "b-1")
	require.NoError(t, err)
	assert.Equal(t, "S-2", found.Number)

	_, err = service.GetSaleByNumber(ctx, "S-2", "b-9")
	requireAppError(t, err, http.StatusNotFound)

	page, err := service.ListSales(ctx, ListSalesQuery{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 2)

	deleted, err := service.DeleteSale(ctx, found.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = service.DeleteSale(ctx, found.ID)
	require.NoError(t, err)
	assert.False(t, deleted)

	_, err = service.GetSale(ctx, found.ID)
	requireAppError(t, err, http.StatusNotFound)
}

func TestConcurrentMutationsOnOneSale(t *testing.T) {
	service, _ := newTestService(&fakePublisher{})
	ctx := context.Background()
	created, err := service.CreateSale(ctx, validCreateCommand())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.AddItem(ctx, AddItemCommand{
				SaleID:          created.Data.ID,
				SaleItemCommand: SaleItemCommand{ProductID: "p-x", ProductName: "Snack", Quantity: 1, UnitPrice: price("1.00")},
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	sale, err := service.GetSale(ctx, created.Data.ID)
	require.NoError(t, err)
	assert.Len(t, sale.Items, 12)
	assert.Equal(t, "90.00", sale.SaleTotal.String())
}
