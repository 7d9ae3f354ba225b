package reward

import (
	"context"
	"fmt"

	"questline/pkg/errutil"
)

// ExperienceAwarder is implemented by the level progression engine. The
// interface lives here so the engine can both consume the registry and be
// plugged into it without an import cycle. The reference makes the award
// replay-safe: the same reference is applied at most once.
type ExperienceAwarder interface {
	AwardExperienceOnce(ctx context.Context, userID string, amount int64, reference string) error
}

// ExperienceStrategy routes experience rewards into the progression engine,
// which handles level rollover and its own notifications.
type ExperienceStrategy struct {
	awarder ExperienceAwarder
}

func NewExperienceStrategy(awarder ExperienceAwarder) *ExperienceStrategy {
	return &ExperienceStrategy{awarder: awarder}
}

func (s *ExperienceStrategy) Grant(ctx context.Context, userID string, r Rewardable, ref string) error {
	if r.Amount <= 0 {
		return errutil.Internal(fmt.Sprintf("rewardable %s has non-positive experience amount %d", r.ID, r.Amount), nil)
	}

	return s.awarder.AwardExperienceOnce(ctx, userID, r.Amount, ref)
}
