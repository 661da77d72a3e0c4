package observability

import (
	"context"

	"github.com/openlms/sequent/pkg/domain"
)

// MergeHooks combines several hook sets into one. Each callback invokes the
// corresponding callbacks of every set in order.
func MergeHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnActivityEnter: func(ctx context.Context, e *domain.ActivityEvent) {
			for _, s := range sets {
				if s.OnActivityEnter != nil {
					s.OnActivityEnter(ctx, e)
				}
			}
		},
		OnActivityLeave: func(ctx context.Context, e *domain.ActivityEvent) {
			for _, s := range sets {
				if s.OnActivityLeave != nil {
					s.OnActivityLeave(ctx, e)
				}
			}
		},
		OnNavigation: func(ctx context.Context, e *domain.NavigationEvent) {
			for _, s := range sets {
				if s.OnNavigation != nil {
					s.OnNavigation(ctx, e)
				}
			}
		},
		OnRollup: func(ctx context.Context, e *domain.RollupEvent) {
			for _, s := range sets {
				if s.OnRollup != nil {
					s.OnRollup(ctx, e)
				}
			}
		},
		OnSessionEnd: func(ctx context.Context, e *domain.SessionEvent) {
			for _, s := range sets {
				if s.OnSessionEnd != nil {
					s.OnSessionEnd(ctx, e)
				}
			}
		},
	}
}
