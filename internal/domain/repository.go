package domain

import "context"

// SaleRepository defines the interface for sale persistence.
// Lookups return a nil sale and nil error when nothing matches.
type SaleRepository interface {
	// AddIfNotExists stores sale unless another sale already uses its
	// (number, branch id) pair. It returns the stored sale and whether it
	// was newly inserted.
	AddIfNotExists(ctx context.Context, sale *Sale) (created bool, persisted *Sale, err error)
	Update(ctx context.Context, sale *Sale) error
	Delete(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*Sale, error)
	GetByNumberAndBranch(ctx context.Context, number, branchID string) (*Sale, error)
	List(ctx context.Context, page Pagination) ([]*Sale, int64, error)
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event DomainEvent) error
	PublishAll(ctx context.Context, events []DomainEvent) error
}

// Pagination holds 1-based paging parameters
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPage     = 1
	DefaultPageSize = 50
	MaxPageSize     = 100
)

// NewPagination normalizes page values, falling back to the defaults
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = DefaultPage
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// Offset returns the number of records to skip
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
