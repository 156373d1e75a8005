package observability

import (
	"github.com/rs/zerolog"

	logs "github.com/danmuck/thriftsniff/internal/logging"
)

// ComponentLogger derives a logger tagged with component from the process
// logger configured by package logging.
func ComponentLogger(component string) zerolog.Logger {
	return logs.Logger().With().Str("component", component).Logger()
}
