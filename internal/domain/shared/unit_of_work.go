package shared

import "context"

// UnitOfWork runs fn inside a single transaction. Repositories called with
// the context passed to fn take part in that transaction. Returning an error
// from fn rolls everything back.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
