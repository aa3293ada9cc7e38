package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/marcelogudines/sales/internal/domain"
)

// ErrKeyConflict is returned by Update when another sale already holds the
// (number, branch id) the updated sale would move to
var ErrKeyConflict = errors.New("sale number already used by another sale in the branch")

type saleKey struct {
	number   string
	branchID string
}

func keyOf(sale *domain.Sale) saleKey {
	return saleKey{number: sale.Number(), branchID: sale.Branch().ID}
}

// SaleRepository is an in-process SaleRepository.
// A single mutex guards both indexes so check-and-insert is atomic.
type SaleRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Sale
	byKey   map[saleKey]string
	lastKey map[string]saleKey
	order   []string
}

// NewSaleRepository creates an empty repository
func NewSaleRepository() *SaleRepository {
	return &SaleRepository{
		byID:    make(map[string]*domain.Sale),
		byKey:   make(map[saleKey]string),
		lastKey: make(map[string]saleKey),
	}
}

// AddIfNotExists inserts sale unless its (number, branch id) is taken
func (r *SaleRepository) AddIfNotExists(ctx context.Context, sale *domain.Sale) (bool, *domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return false, nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(sale)
	if existingID, ok := r.byKey[key]; ok {
		return false, r.byID[existingID], nil
	}

	r.byID[sale.ID()] = sale
	r.byKey[key] = sale.ID()
	r.lastKey[sale.ID()] = key
	r.order = append(r.order, sale.ID())
	return true, sale, nil
}

// Update stores sale and moves its key index if the number or branch changed.
// Moving onto a key held by another sale fails with ErrKeyConflict.
func (r *SaleRepository) Update(ctx context.Context, sale *domain.Sale) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := keyOf(sale)
	if holder, ok := r.byKey[key]; ok && holder != sale.ID() {
		return ErrKeyConflict
	}

	if _, ok := r.byID[sale.ID()]; !ok {
		r.order = append(r.order, sale.ID())
	}
	if previous, ok := r.lastKey[sale.ID()]; ok {
		if r.byKey[previous] == sale.ID() {
			delete(r.byKey, previous)
		}
	}

	r.byID[sale.ID()] = sale
	r.byKey[key] = sale.ID()
	r.lastKey[sale.ID()] = key
	return nil
}

// Delete removes the sale and its key index
func (r *SaleRepository) Delete(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[id]; !ok {
		return false, nil
	}
	if key, ok := r.lastKey[id]; ok && r.byKey[key] == id {
		delete(r.byKey, key)
	}
	delete(r.lastKey, id)
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// GetByID returns the sale or nil when absent
func (r *SaleRepository) GetByID(ctx context.Context, id string) (*domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id], nil
}

// GetByNumberAndBranch returns the sale holding the key or nil when absent
func (r *SaleRepository) GetByNumberAndBranch(ctx context.Context, number, branchID string) (*domain.Sale, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byKey[saleKey{number: number, branchID: branchID}]
	if !ok {
		return nil, nil
	}
	return r.byID[id], nil
}

// List returns one page of sales in insertion order plus the total count
func (r *SaleRepository) List(ctx context.Context, page domain.Pagination) ([]*domain.Sale, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	total := len(r.order)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	sales := make([]*domain.Sale, 0, end-start)
	for _, id := range r.order[start:end] {
		sales = append(sales, r.byID[id])
	}
	return sales, int64(total), nil
}

// Count returns the number of stored sales
func (r *SaleRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}

var _ domain.SaleRepository = (*SaleRepository)(nil)
