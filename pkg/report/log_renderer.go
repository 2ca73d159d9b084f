package report

import (
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/lazytrace/deadlockd/pkg/utils"
)

// LogRenderer renders a Report as structured log lines through the
// ambient logger, the way the teacher renders state through pkg/log
// rather than directly to stdout. DEFINITE cycles are colored red,
// POTENTIAL cycles yellow, grounded on the teacher's pkg/utils color
// helpers (originally used for container/service status coloring).
type LogRenderer struct {
	Log *logrus.Entry
}

// NewLogRenderer returns a renderer that writes through log.
func NewLogRenderer(log *logrus.Entry) *LogRenderer {
	return &LogRenderer{Log: log}
}

func (r *LogRenderer) Render(rpt Report) error {
	if !rpt.Detected {
		r.Log.WithFields(logrus.Fields{
			"processes_scanned": rpt.ProcessesScanned,
			"resources_found":   rpt.ResourcesFound,
		}).Info(utils.ColoredString("no deadlock detected", color.FgGreen))
		return nil
	}

	for i, c := range rpt.Cycles {
		label := "POTENTIAL deadlock"
		attribute := color.FgYellow
		if c.Definite {
			label = "DEFINITE deadlock"
			attribute = color.FgRed
		}

		entry := r.Log.WithFields(logrus.Fields{
			"cycle_index":  i,
			"process_ids":  c.ProcessIDs,
			"resource_ids": c.ResourceIDs,
			"length":       c.Length(),
		})
		entry.Warn(utils.ColoredString(label, attribute))
	}

	for _, rec := range rpt.Recommendations {
		r.Log.Info(rec)
	}

	return nil
}
