package cmdlog

import (
	"skeetstats/internal/logging"
	"skeetstats/internal/metrics"
)

// Run wraps one command handler invocation with metrics and logging.
// The returned error is the handler's own; observation here is advisory
// and never changes the outcome.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error()})
		logging.ToFile("cmd_error.log", "error handling "+cmd+" command: "+err.Error())
	} else {
		logging.Info(cmd+"_ok", nil)
	}
	return err
}
