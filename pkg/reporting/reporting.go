// Package reporting finalizes run reporting once quiet mode and goal info
// are known, and owns the invalidation report flushed at the end of a run.
package reporting

import (
	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/options"
	"github.com/anvilbuild/anvil/pkg/runtracker"
)

// Reporting owns the run's reporting configuration.
type Reporting struct {
	logger zerolog.Logger
}

// New creates the reporting subsystem.
func New(logger zerolog.Logger) *Reporting {
	return &Reporting{
		logger: logger.With().Str("component", "reporting").Logger(),
	}
}

// UpdateReporting finalizes reporting settings now that quiet mode and goal
// information are known. It returns the run's invalidation report when one
// is configured, nil otherwise.
func (r *Reporting) UpdateReporting(global options.GlobalOptions, isQuiet bool, rt *runtracker.RunTracker) *InvalidationReport {
	if isQuiet {
		r.logger = r.logger.Level(zerolog.WarnLevel)
	}
	rt.RunInfo().Add("quiet", boolString(isQuiet))

	if global.InvalidationReportPath == "" {
		return nil
	}
	report := NewInvalidationReport(rt.RunID(), global.InvalidationReportPath)
	r.logger.Debug().
		Str("path", global.InvalidationReportPath).
		Msg("invalidation report enabled")
	return report
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
