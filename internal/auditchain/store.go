package auditchain

import "context"

// Store persists chained receipts. Implementations must be append-only: no
// update or delete methods exist, and none should be added.
type Store interface {
	// Append persists a fully-built receipt. The service serializes calls,
	// so implementations see appends in chain order.
	Append(ctx context.Context, receipt Receipt) error

	// LatestHash returns the ReceiptHash of the most recently appended
	// receipt, or sentinel.ErrNotFound when the chain is empty.
	LatestHash(ctx context.Context) (string, error)

	// Get returns a receipt by ID, or sentinel.ErrNotFound.
	Get(ctx context.Context, receiptID string) (Receipt, error)

	// List returns receipts matching the filter in append order.
	List(ctx context.Context, filter Filter) ([]Receipt, error)

	// ListAll returns the entire chain in append order, for verification.
	ListAll(ctx context.Context) ([]Receipt, error)
}
