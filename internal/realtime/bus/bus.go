package bus

import (
	"context"

	"github.com/yungbote/mockly-backend/internal/realtime"
)

// Bus carries SSE messages between replicas so every hub sees every event.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
