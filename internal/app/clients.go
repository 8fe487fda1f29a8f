package app

import (
	"fmt"
	"strings"

	"github.com/yungbote/mockly-backend/internal/clients/livekit"
	"github.com/yungbote/mockly-backend/internal/clients/ml"
	"github.com/yungbote/mockly-backend/internal/platform/authtoken"
	"github.com/yungbote/mockly-backend/internal/platform/gcp"
	"github.com/yungbote/mockly-backend/internal/platform/logger"
	"github.com/yungbote/mockly-backend/internal/realtime/bus"
)

type Clients struct {
	Bucket   gcp.BucketService
	ML       *ml.Client
	Tokens   *livekit.TokenIssuer
	Verifier *authtoken.Verifier
	// Bus is nil when REDIS_ADDR is unset; events then stay in-process.
	Bus bus.Bus
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var eventBus bus.Bus
	if strings.TrimSpace(cfg.Redis.Addr) != "" {
		b, err := bus.NewRedisBus(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis event bus: %w", err)
		}
		eventBus = b
	}

	bucket, err := gcp.NewBucketService(log, cfg.Storage)
	if err != nil {
		closeBus(eventBus)
		return Clients{}, fmt.Errorf("init bucket client: %w", err)
	}

	mlClient, err := ml.New(log, cfg.ML)
	if err != nil {
		closeBus(eventBus)
		return Clients{}, fmt.Errorf("init ml client: %w", err)
	}

	verifier, err := authtoken.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		closeBus(eventBus)
		return Clients{}, fmt.Errorf("init token verifier: %w", err)
	}

	// Room tokens are optional; RoomToken answers 503 without them.
	var tokens *livekit.TokenIssuer
	if cfg.LiveKit.APIKey != "" && cfg.LiveKit.APISecret != "" {
		tokens, err = livekit.NewTokenIssuer(cfg.LiveKit)
		if err != nil {
			closeBus(eventBus)
			return Clients{}, fmt.Errorf("init livekit tokens: %w", err)
		}
	}

	return Clients{
		Bucket:   bucket,
		ML:       mlClient,
		Tokens:   tokens,
		Verifier: verifier,
		Bus:      eventBus,
	}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	closeBus(c.Bus)
}

func closeBus(b bus.Bus) {
	if b != nil {
		_ = b.Close()
	}
}
