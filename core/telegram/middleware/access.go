package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID != 0 && int64(c.Sender().ID) != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// AllowedOptions restricts the bot to an explicit set of user IDs.
// An empty Allowed set disables the check.
type AllowedOptions struct {
	Allowed  map[int64]struct{}
	OnReject tele.HandlerFunc
}

// AllowedUsersMiddleware drops updates from senders outside the allowed set.
func AllowedUsersMiddleware(opts AllowedOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if len(opts.Allowed) == 0 {
				return next(c)
			}
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			if _, ok := opts.Allowed[sender.ID]; !ok {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
