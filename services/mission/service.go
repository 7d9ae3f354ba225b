package mission

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	queue "questline/pkg/asynq"
	"questline/pkg/config"
	"questline/pkg/db/option"
	"questline/pkg/errutil"
	"questline/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// createRetries bounds how often a lost find-or-create race is retried
// before the conflict is surfaced.
const createRetries = 3

// Enqueuer is the slice of the asynq client this service uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type Service struct {
	db    *gorm.DB
	node  *snowflake.Node
	asynq Enqueuer
	cache *RequirementCache

	progress     repository.Repository[UserProgress]
	userMissions repository.Repository[UserMission]
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Asynq  *asynq.Client
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:    p.DB,
		node:  p.Node,
		asynq: p.Asynq,
		cache: NewRequirementCache(p.Config.Mission.RequirementCacheTTL),

		progress:     repository.ProvideStore[UserProgress](p.DB),
		userMissions: repository.ProvideStore[UserMission](p.DB),
	}
}

// TrackAction records one qualifying action for the user against every
// mission requirement bound to actionKey. A key with no requirements is a
// no-op. When a requirement completes and with it the whole mission, the
// completion path runs and reward distribution is enqueued.
func (s *Service) TrackAction(ctx context.Context, userID, actionKey string) error {
	if userID == "" {
		return errutil.BadRequest("user id must not be empty", nil)
	}
	if actionKey == "" {
		return errutil.BadRequest("action key must not be empty", nil)
	}

	span := trace.SpanFromContext(ctx)
	zapLog := zap.L().With(
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("user_id", userID),
		zap.String("action_key", actionKey),
	)

	reqs, err := s.requirementsForKey(ctx, actionKey)
	if err != nil {
		zapLog.Error("failed to load requirements for action key", zap.Error(err))
		return err
	}
	if len(reqs) == 0 {
		return nil
	}

	for _, req := range reqs {
		justCompleted, err := s.applyProgress(ctx, userID, req)
		if err != nil {
			zapLog.Error("failed to update mission progress",
				zap.String("requirement_id", req.ID),
				zap.Error(err),
			)
			return err
		}
		if !justCompleted {
			continue
		}

		m, err := s.missionWithRequirements(ctx, req.MissionID)
		if err != nil {
			zapLog.Error("failed to load mission", zap.String("mission_id", req.MissionID), zap.Error(err))
			return err
		}

		satisfied, err := s.missionSatisfied(ctx, userID, m)
		if err != nil {
			return err
		}
		if !satisfied {
			continue
		}

		if err := s.EvaluateAndComplete(ctx, userID, m); err != nil {
			return err
		}
	}

	return nil
}

// EvaluateAndComplete marks the mission complete for the user when eligible
// and enqueues reward distribution. The check-and-set runs with the
// user-mission row locked, so concurrent triggers for the same pair resolve
// to exactly one completion per cycle; the unique (user, mission) index
// guards the first-completion race.
func (s *Service) EvaluateAndComplete(ctx context.Context, userID string, m *Mission) error {
	if len(m.Requirements) == 0 {
		return errutil.Internal("mission marked for completion has no requirements", nil,
			errutil.WithDetails(errutil.Detail{Field: "mission_id", Message: m.ID}))
	}

	now := time.Now().UTC()
	var eligible bool

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		locked := tx.Scopes(option.LockingUpdate)

		um, err := s.userMissions.WithTrx(locked).FindOne(ctx, &UserMission{UserID: userID, MissionID: m.ID})
		if err != nil {
			return err
		}

		if um == nil {
			um = &UserMission{
				ID:              s.node.Generate().String(),
				UserID:          userID,
				MissionID:       m.ID,
				Completed:       true,
				LastCompletedAt: &now,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := s.userMissions.WithTrx(tx).Create(ctx, um); err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					// another trigger won the first completion
					return nil
				}
				return err
			}
			eligible = true
			return nil
		}

		if um.Completed {
			if !m.Frequency.Recurring() {
				return nil
			}
			if um.LastCompletedAt != nil && now.Before(m.Frequency.NextEligibleAt(*um.LastCompletedAt)) {
				return nil
			}
		}

		if err := s.userMissions.WithTrx(tx).Update(ctx, um.ID, map[string]any{
			"completed":         true,
			"last_completed_at": now,
			"updated_at":        now,
		}); err != nil {
			return err
		}

		eligible = true
		return nil
	}); err != nil {
		return err
	}

	if !eligible {
		return nil
	}

	return s.enqueueDistribution(ctx, userID, m.ID, now)
}

// MissionProgress summarizes a user's progress across a mission's
// requirements.
func (s *Service) MissionProgress(ctx context.Context, userID, missionID string) ([]*UserProgress, error) {
	m, err := s.missionWithRequirements(ctx, missionID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(m.Requirements))
	for _, req := range m.Requirements {
		ids = append(ids, req.ID)
	}

	var rows []*UserProgress
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND requirement_id IN ?", userID, ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Service) requirementsForKey(ctx context.Context, actionKey string) ([]*Requirement, error) {
	// The load is shared across concurrent callers through singleflight, so
	// it must not die with whichever caller happened to trigger it.
	loadCtx := context.WithoutCancel(ctx)

	return s.cache.GetOrLoad(actionKey, func() ([]*Requirement, error) {
		var reqs []*Requirement
		if err := s.db.WithContext(loadCtx).
			Joins("JOIN missions ON missions.id = mission_requirements.mission_id AND missions.deleted_at IS NULL AND missions.status = ?", StatusAvailable).
			Where("mission_requirements.key = ?", actionKey).
			Find(&reqs).Error; err != nil {
			return nil, err
		}
		return reqs, nil
	})
}

// applyProgress increments the per-(user, requirement) counter by one inside
// a locked transaction, clamping at the goal. Returns whether this call
// completed the requirement. Already-completed rows are a no-op.
func (s *Service) applyProgress(ctx context.Context, userID string, req *Requirement) (bool, error) {
	var completedNow bool

	var err error
	for attempt := 0; attempt < createRetries; attempt++ {
		completedNow = false

		err = s.db.Transaction(func(tx *gorm.DB) error {
			locked := tx.Scopes(option.LockingUpdate)

			row, err := s.progress.WithTrx(locked).FindOne(ctx, &UserProgress{UserID: userID, RequirementID: req.ID})
			if err != nil {
				return err
			}

			if row == nil {
				row = &UserProgress{
					ID:            s.node.Generate().String(),
					UserID:        userID,
					RequirementID: req.ID,
					CreatedAt:     time.Now(),
					UpdatedAt:     time.Now(),
				}
				if err := s.progress.WithTrx(tx).Create(ctx, row); err != nil {
					return err
				}
			}

			if row.Completed {
				return nil
			}

			row.Progress++
			if row.Progress >= req.Goal {
				row.Progress = req.Goal
				row.Completed = true
				completedNow = true
			}

			return s.progress.WithTrx(tx).Update(ctx, row.ID, map[string]any{
				"progress":   row.Progress,
				"completed":  row.Completed,
				"updated_at": time.Now(),
			})
		})

		// lost a find-or-create race; the row exists now, retry
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		break
	}
	if err != nil {
		return false, err
	}

	return completedNow, nil
}

func (s *Service) missionWithRequirements(ctx context.Context, missionID string) (*Mission, error) {
	var m Mission
	if err := s.db.WithContext(ctx).
		Preload("Requirements").
		First(&m, "id = ?", missionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errutil.NotFound("mission not found", nil)
		}
		return nil, err
	}
	return &m, nil
}

func (s *Service) missionSatisfied(ctx context.Context, userID string, m *Mission) (bool, error) {
	if len(m.Requirements) == 0 {
		return false, errutil.Internal("mission has no requirements", nil,
			errutil.WithDetails(errutil.Detail{Field: "mission_id", Message: m.ID}))
	}

	ids := make([]string, 0, len(m.Requirements))
	for _, req := range m.Requirements {
		ids = append(ids, req.ID)
	}

	var done int64
	if err := s.db.WithContext(ctx).
		Model(&UserProgress{}).
		Where("user_id = ? AND requirement_id IN ? AND completed = ?", userID, ids, true).
		Count(&done).Error; err != nil {
		return false, err
	}

	return done == int64(len(ids)), nil
}

func (s *Service) enqueueDistribution(ctx context.Context, userID, missionID string, completedAt time.Time) error {
	span := trace.SpanFromContext(ctx)

	p := DistributeRewardsPayload{
		UserID:      userID,
		MissionID:   missionID,
		CompletedAt: completedAt.Unix(),
		TraceID:     span.SpanContext().TraceID().String(),
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return err
	}

	if _, err := s.asynq.EnqueueContext(ctx,
		asynq.NewTask(TaskDistributeRewards, payload),
		asynq.Queue(queue.QueueRewards),
		asynq.MaxRetry(5),
		asynq.TaskID(p.TaskID()),
	); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		zap.L().Error("failed to enqueue reward distribution",
			zap.String("user_id", userID),
			zap.String("mission_id", missionID),
			zap.Error(err),
		)
		return err
	}

	return nil
}
