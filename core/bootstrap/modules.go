package bootstrap

import "context"

// Storage represents shared infrastructure passed to optional modules.
type Storage interface{}

// Initializer prepares storage before the bot starts serving,
// e.g. creating schema objects the migration runner does not manage.
type Initializer interface {
	Init(ctx context.Context, storage Storage) error
}

// InitializerFunc adapts a bare function to the Initializer interface.
type InitializerFunc func(ctx context.Context, storage Storage) error

// Init executes the underlying function.
func (f InitializerFunc) Init(ctx context.Context, storage Storage) error {
	return f(ctx, storage)
}
