package notification

import (
	"go.uber.org/fx"
)

var Module = fx.Module("notification.dispatcher",
	fx.Provide(NewQueueDispatcher),
)

var TaskModule = fx.Module("task.notification",
	fx.Provide(NewTask),
)
