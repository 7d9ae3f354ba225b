package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	queue "questline/pkg/asynq"
	"questline/pkg/db/option"
	"questline/pkg/errutil"
	"questline/pkg/repository"
	"questline/services/notification"
	"questline/services/wallet"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errGrantReplayed aborts the award transaction when the reference has
// already been applied.
var errGrantReplayed = errors.New("progression: grant already applied")

// Enqueuer is the slice of the asynq client this service uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq Enqueuer

	users  repository.Repository[User]
	levels repository.Repository[Level]
	grants repository.Repository[ExperienceGrant]

	wallet   *wallet.Service
	notifier notification.Dispatcher
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Asynq    *asynq.Client
	Wallet   *wallet.Service
	Notifier notification.Dispatcher
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,

		users:  repository.ProvideStore[User](p.DB),
		levels: repository.ProvideStore[Level](p.DB),
		grants: repository.ProvideStore[ExperienceGrant](p.DB),

		wallet:   p.Wallet,
		notifier: p.Notifier,
	}
}

// AwardExperience adds experience to a user and rolls them up through as
// many levels as the amount allows. Per level gained the wallet is credited
// with that level's coins inside the same transaction; after commit a
// level-up notification goes out per level and reward distribution for the
// level is enqueued under a dedup key. The experience/level/wallet mutation
// runs with the user row locked, so concurrent awards for the same user
// serialize.
func (s *Service) AwardExperience(ctx context.Context, userID string, amount int64) error {
	return s.award(ctx, userID, amount, "")
}

// AwardExperienceOnce awards at most once per reference; replays are a
// silent no-op. Queue-driven grants go through here.
func (s *Service) AwardExperienceOnce(ctx context.Context, userID string, amount int64, reference string) error {
	if reference == "" {
		return errutil.BadRequest("award reference must not be empty", nil)
	}
	return s.award(ctx, userID, amount, reference)
}

func (s *Service) award(ctx context.Context, userID string, amount int64, reference string) error {
	if amount <= 0 {
		return errutil.BadRequest("experience amount must be positive", nil)
	}

	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
		zap.Int64("amount", amount),
	)

	var gained []*Level

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		if reference != "" {
			if err := s.grants.WithTrx(tx).Create(ctx, &ExperienceGrant{
				ID:        s.node.Generate().String(),
				UserID:    userID,
				Reference: reference,
				Amount:    amount,
				CreatedAt: time.Now(),
			}); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					return errGrantReplayed
				}
				return err
			}
		}

		locked := tx.Scopes(option.LockingUpdate)

		user, err := s.users.WithTrx(locked).FindOne(ctx, &User{ID: userID})
		if err != nil {
			return err
		}
		if user == nil {
			return errutil.NotFound("user not found", nil)
		}

		levels, err := s.levels.WithTrx(tx).Find(ctx, nil, option.WithSortBy(
			option.QuerySortBy{
				SortBy:  "level",
				OrderBy: "asc",
				Allow: map[string]bool{
					"level": true,
				},
			},
		))
		if err != nil {
			return err
		}
		if len(levels) == 0 {
			return errutil.Internal("level table is empty", nil)
		}

		idx := -1
		for i, lvl := range levels {
			if lvl.ID == user.LevelID {
				idx = i
				break
			}
		}
		if idx == -1 {
			return errutil.Internal(fmt.Sprintf("user level %q not found in level table", user.LevelID), nil)
		}

		user.Experience += amount

		// Roll through thresholds; residual experience is retained uncapped
		// at the highest defined level.
		for idx+1 < len(levels) && user.Experience >= levels[idx+1].Experience {
			next := levels[idx+1]

			user.Experience -= next.Experience
			user.LevelID = next.ID
			idx++

			if next.Coins > 0 {
				if err := s.wallet.CreditTx(ctx, tx, userID, next.Coins,
					fmt.Sprintf("Reached level %d", next.Level)); err != nil {
					return err
				}
			}

			gained = append(gained, next)
		}

		return s.users.WithTrx(tx).Update(ctx, user.ID, map[string]any{
			"experience": user.Experience,
			"level_id":   user.LevelID,
			"updated_at": time.Now(),
		})
	}); err != nil {
		if errors.Is(err, errGrantReplayed) {
			return nil
		}
		zapLog.Error("failed to award experience", zap.Error(err))
		return err
	}

	for _, lvl := range gained {
		if err := s.notifier.Dispatch(ctx, userID, notification.Payload{
			Icon:      "level",
			Title:     fmt.Sprintf("You reached level %d!", lvl.Level),
			ActionURL: "/profile",
		}); err != nil {
			zapLog.Warn("level-up notification dispatch failed", zap.Int("level", lvl.Level), zap.Error(err))
		}

		if err := s.enqueueLevelRewards(ctx, userID, lvl); err != nil {
			zapLog.Error("failed to enqueue level rewards", zap.Int("level", lvl.Level), zap.Error(err))
			return err
		}
	}

	if err := s.notifier.Dispatch(ctx, userID, notification.Payload{
		Icon:      "experience",
		Title:     fmt.Sprintf("You received %d experience!", amount),
		ActionURL: "/profile",
	}); err != nil {
		zapLog.Warn("experience notification dispatch failed", zap.Error(err))
	}

	return nil
}

// enqueueLevelRewards defers level reward distribution to the worker queue.
// A user gains each level at most once, so the task ID is keyed on
// (user, level); replays and lost races collapse onto the same task.
func (s *Service) enqueueLevelRewards(ctx context.Context, userID string, lvl *Level) error {
	span := trace.SpanFromContext(ctx)

	p := DistributeLevelRewardsPayload{
		UserID:  userID,
		LevelID: lvl.ID,
		Level:   lvl.Level,
		TraceID: span.SpanContext().TraceID().String(),
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}

	if _, err := s.asynq.EnqueueContext(ctx,
		asynq.NewTask(TaskDistributeLevelRewards, payload),
		asynq.Queue(queue.QueueRewards),
		asynq.MaxRetry(5),
		asynq.TaskID(p.TaskID()),
	); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return err
	}

	return nil
}

// CurrentLevel resolves the user's level row.
func (s *Service) CurrentLevel(ctx context.Context, userID string) (*Level, error) {
	user, err := s.users.FindOne(ctx, &User{ID: userID})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errutil.NotFound("user not found", nil)
	}

	lvl, err := s.levels.FindOne(ctx, &Level{ID: user.LevelID})
	if err != nil {
		return nil, err
	}
	if lvl == nil {
		return nil, errutil.Internal(fmt.Sprintf("user level %q not found in level table", user.LevelID), nil)
	}
	return lvl, nil
}
