package reward

import (
	"context"
	"fmt"
	"sync"

	"questline/pkg/errutil"
	"questline/pkg/repository"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Strategy grants one kind of configured reward to a user. ref identifies
// the delivery the grant belongs to; strategies whose effects are not
// naturally idempotent use it to make replays a no-op.
type Strategy interface {
	Grant(ctx context.Context, userID string, r Rewardable, ref string) error
}

// Registry maps reward types to granting strategies and fans configured
// rewards out to them. Strategies are registered once at startup; an
// unregistered type surfacing at grant time is an operator configuration
// mistake and fails loudly.
type Registry struct {
	mu         sync.RWMutex
	strategies map[RewardType]Strategy

	rewardables repository.Repository[Rewardable]
}

type RegistryParams struct {
	fx.In
	DB *gorm.DB
}

func NewRegistry(p RegistryParams) *Registry {
	return &Registry{
		strategies:  make(map[RewardType]Strategy),
		rewardables: repository.ProvideStore[Rewardable](p.DB),
	}
}

func (g *Registry) Register(t RewardType, s Strategy) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.strategies[t]; ok {
		return errutil.Conflict(fmt.Sprintf("reward strategy %q already registered", t), nil)
	}
	g.strategies[t] = s
	return nil
}

func (g *Registry) Resolve(t RewardType) (Strategy, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	s, ok := g.strategies[t]
	if !ok {
		return nil, errutil.Internal(fmt.Sprintf("no reward strategy registered for type %q", t), nil)
	}
	return s, nil
}

// Distribute grants every reward configured on the source to the user. ref
// identifies the completion event being processed; each rewardable gets a
// derived reference so redeliveries of the same event replay every grant
// idempotently, including after a partial failure.
func (g *Registry) Distribute(ctx context.Context, userID string, src Source, ref string) error {
	span := trace.SpanFromContext(ctx)

	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
		zap.String("source_type", string(src.Type)),
		zap.String("source_id", src.ID),
	)

	rewardables, err := g.rewardables.Find(ctx, &Rewardable{
		SourceType: src.Type,
		SourceID:   src.ID,
	})
	if err != nil {
		zapLog.Error("failed to load reward configuration", zap.Error(err))
		return err
	}

	for _, r := range rewardables {
		strategy, err := g.Resolve(r.RewardType)
		if err != nil {
			zapLog.Error("unresolvable reward type", zap.String("reward_type", string(r.RewardType)), zap.Error(err))
			return err
		}

		if err := strategy.Grant(ctx, userID, *r, fmt.Sprintf("%s:%s", ref, r.ID)); err != nil {
			zapLog.Error("failed to grant reward",
				zap.String("reward_type", string(r.RewardType)),
				zap.String("reward_id", r.RewardID),
				zap.Error(err),
			)
			return err
		}
	}

	return nil
}
