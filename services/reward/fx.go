package reward

import (
	"go.uber.org/fx"
)

// Module wires the registry and the strategies that have no dependency on
// the progression engine. The experience strategy is registered by the
// binary once the engine exists (see cmd/questline).
var Module = fx.Module("reward.registry",
	fx.Provide(
		NewRegistry,
		NewTitleStrategy,
		NewCoinStrategy,
	),
)
