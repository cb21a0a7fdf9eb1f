package helpers

import "context"

// CurrentFarmer resolves a chat identity to a domain entity via a service that
// implements GetByChatID. The generic type T allows different projects to
// supply their own profile model.
func CurrentFarmer[T any](
	ctx context.Context,
	service interface {
		GetByChatID(context.Context, string) (T, error)
	},
	chatID string,
) (T, error) {
	var zero T
	if service == nil {
		return zero, nil
	}
	return service.GetByChatID(ctx, chatID)
}
