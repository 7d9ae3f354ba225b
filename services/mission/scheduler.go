package mission

import (
	"context"
	"time"

	"questline/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler runs the daily reset pass for recurring missions: once a
// completed recurring mission's cooldown has elapsed, its progress rows are
// zeroed and the user-mission row reopened so the next attempt starts fresh.
// One-time mission rows are never touched.
type Scheduler struct {
	service   *Service
	resetHour int
}

func NewScheduler(cfg *config.Config, svc *Service) *Scheduler {
	return &Scheduler{
		service:   svc,
		resetHour: cfg.Mission.ResetHour,
	}
}

func StartScheduler(lc fx.Lifecycle, s *Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.run(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}

func (s *Scheduler) run(ctx context.Context) {
	zap.L().Info("[Scheduler] started recurring mission reset scheduler")

	for {
		now := time.Now()
		next := nextRunTime(now, s.resetHour, 0)

		zap.L().Info("[Scheduler] next run scheduled",
			zap.Time("next_run", next),
			zap.Duration("sleep_for", next.Sub(now)),
		)

		select {
		case <-time.After(next.Sub(now)):
			s.runDaily(ctx)
		case <-ctx.Done():
			zap.L().Warn("[Scheduler] stopped")
			return
		}
	}
}

func (s *Scheduler) runDaily(ctx context.Context) {
	start := time.Now()

	count, err := s.service.ResetRecurringProgress(ctx)
	if err != nil {
		zap.L().Error("[Scheduler] recurring mission reset failed", zap.Error(err))
		return
	}

	zap.L().Info("[Scheduler] recurring mission reset finished",
		zap.Int("reset_count", count),
		zap.Duration("duration", time.Since(start)),
	)
}

func nextRunTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if now.After(next) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// ResetRecurringProgress reopens every completed recurring user-mission
// whose cooldown has elapsed, zeroing the attached progress rows. Returns
// the number of user-missions reset.
func (s *Service) ResetRecurringProgress(ctx context.Context) (int, error) {
	var rows []*UserMission
	if err := s.db.WithContext(ctx).
		Joins("JOIN missions ON missions.id = user_missions.mission_id AND missions.deleted_at IS NULL").
		Where("user_missions.completed = ? AND missions.frequency <> ?", true, FrequencyOneTime).
		Preload("Mission").
		Find(&rows).Error; err != nil {
		return 0, err
	}

	now := time.Now().UTC()
	reset := 0

	for _, um := range rows {
		if um.LastCompletedAt == nil {
			continue
		}
		if now.Before(um.Mission.Frequency.NextEligibleAt(*um.LastCompletedAt)) {
			continue
		}

		if err := s.db.Transaction(func(tx *gorm.DB) error {
			reqIDs := tx.Model(&Requirement{}).Select("id").Where("mission_id = ?", um.MissionID)

			if err := tx.Model(&UserProgress{}).
				Where("user_id = ? AND requirement_id IN (?)", um.UserID, reqIDs).
				Updates(map[string]any{
					"progress":   0,
					"completed":  false,
					"updated_at": now,
				}).Error; err != nil {
				return err
			}

			return tx.Model(&UserMission{}).
				Where("id = ?", um.ID).
				Updates(map[string]any{
					"completed":  false,
					"updated_at": now,
				}).Error
		}); err != nil {
			zap.L().Error("failed to reset recurring mission",
				zap.String("user_id", um.UserID),
				zap.String("mission_id", um.MissionID),
				zap.Error(err),
			)
			return reset, err
		}

		reset++
	}

	return reset, nil
}
