package reward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"questline/pkg/errutil"
	"questline/pkg/repository"
	"questline/services/notification"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TitleStrategy grants a title to a user. Granting an already-owned title is
// a no-op, so retried reward jobs stay idempotent.
type TitleStrategy struct {
	node       *snowflake.Node
	titles     repository.Repository[Title]
	userTitles repository.Repository[UserTitle]
	notifier   notification.Dispatcher
}

type TitleStrategyParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Notifier notification.Dispatcher
}

func NewTitleStrategy(p TitleStrategyParams) *TitleStrategy {
	return &TitleStrategy{
		node:       p.Node,
		titles:     repository.ProvideStore[Title](p.DB),
		userTitles: repository.ProvideStore[UserTitle](p.DB),
		notifier:   p.Notifier,
	}
}

// Grant is naturally idempotent through the unique (user, title) index, so
// the delivery reference is not needed.
func (s *TitleStrategy) Grant(ctx context.Context, userID string, r Rewardable, _ string) error {
	title, err := s.titles.FindOne(ctx, &Title{ID: r.RewardID})
	if err != nil {
		return err
	}
	if title == nil {
		return errutil.Internal(fmt.Sprintf("rewardable %s references missing title %s", r.ID, r.RewardID), nil)
	}

	owned, err := s.userTitles.FindOne(ctx, &UserTitle{UserID: userID, TitleID: title.ID})
	if err != nil {
		return err
	}
	if owned != nil {
		return nil
	}

	if err := s.userTitles.Create(ctx, &UserTitle{
		ID:        s.node.Generate().String(),
		UserID:    userID,
		TitleID:   title.ID,
		CreatedAt: time.Now(),
	}); err != nil {
		// concurrent grant of the same title
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}

	if err := s.notifier.Dispatch(ctx, userID, notification.Payload{
		Icon:      "title",
		Title:     fmt.Sprintf("You earned a new title: %s!", title.Name),
		ActionURL: "/profile/titles",
	}); err != nil {
		zap.L().Warn("title granted but notification dispatch failed",
			zap.String("user_id", userID),
			zap.String("title_id", title.ID),
			zap.Error(err),
		)
	}

	return nil
}
