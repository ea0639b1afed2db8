package settlement

import "go.uber.org/fx"

var Module = fx.Module("settlement",
	fx.Provide(
		NewDispatcher,
		NewPublisher,
		NewNotifyWorker,
		NewService,
	),
	fx.Invoke(
		RegisterTaskHandlers,
		RegisterScheduler,
	),
)
