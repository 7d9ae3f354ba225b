package progression

import (
	"go.uber.org/fx"
)

var Module = fx.Module("progression.service",
	fx.Provide(NewService),
)

var TaskModule = fx.Module("task.progression",
	fx.Provide(NewTask),
)
