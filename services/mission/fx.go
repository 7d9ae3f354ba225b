package mission

import (
	"go.uber.org/fx"
)

var Module = fx.Module("mission.service",
	fx.Provide(NewService),
)

var TaskModule = fx.Module("task.mission",
	fx.Provide(NewTask),
)

var SchedulerModule = fx.Module("mission.scheduler",
	fx.Provide(NewScheduler),
	fx.Invoke(StartScheduler),
)
