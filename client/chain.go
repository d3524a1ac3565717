package client

import (
	"context"

	"github.com/ceskypane/abwars/lobby"
)

// chainDispatcher hands every lobby notification to each dispatcher in order.
type chainDispatcher struct {
	items []lobby.Dispatcher
}

func (d *chainDispatcher) DispatchNotification(ctx context.Context, n lobby.Notification) {
	for _, item := range d.items {
		if item == nil {
			continue
		}

		item.DispatchNotification(ctx, n)
	}
}
