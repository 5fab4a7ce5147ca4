package metrics

import "go.uber.org/fx"

// Module wires prometheus instrumentation for dependency injection.
var Module = fx.Provide(New)
