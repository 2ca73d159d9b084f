// Package app is the thin pass driver that wires the core pipeline
// (internal/kview -> internal/snapshot -> internal/depgraph -> internal/rag
// -> internal/cycle -> internal/classify) into a single RunOnce call, and
// a RunContinuous loop for the out-of-scope continuous-monitoring
// collaborator. It owns no business logic of its own beyond sequencing
// and resource release, following the teacher's App-struct-as-root-object
// shape (originally wiring DockerCommand/Gui; here wiring the detector
// stages instead).
package app

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lazytrace/deadlockd/internal/classify"
	"github.com/lazytrace/deadlockd/internal/cycle"
	"github.com/lazytrace/deadlockd/internal/depgraph"
	"github.com/lazytrace/deadlockd/internal/kview"
	"github.com/lazytrace/deadlockd/internal/rag"
	"github.com/lazytrace/deadlockd/internal/snapshot"
	"github.com/lazytrace/deadlockd/pkg/config"
	"github.com/lazytrace/deadlockd/pkg/i18n"
	"github.com/lazytrace/deadlockd/pkg/log"
	"github.com/lazytrace/deadlockd/pkg/report"
)

// App is the root object a CLI entrypoint builds once per process.
type App struct {
	Config  *config.AppConfig
	Log     *logrus.Entry
	Reader  kview.Reader
	Catalog *i18n.Catalog

	// shutdownFlag is the single piece of cross-pass mutable state
	// spec.md §5/§9 names: an integer-sized flag written by the signal
	// handler and read by the continuous loop between passes.
	shutdownFlag int32
}

// NewApp bootstraps a new App from configuration. The kernel-view reader
// is selected by build tag (internal/kview.NewProcReader resolves to the
// Linux /proc reader or the non-Linux gopsutil fallback).
func NewApp(cfg *config.AppConfig) (*App, error) {
	app := &App{
		Config:  cfg,
		Log:     log.NewLogger(cfg),
		Catalog: i18n.NewCatalog(),
	}
	app.Reader = kview.NewProcReader(cfg.UserConfig.Scan.ProcRoot)
	return app, nil
}

// RequestShutdown sets the shutdown flag; safe to call from a signal
// handler. Observed between passes and during the inter-pass sleep.
func (app *App) RequestShutdown() {
	atomic.StoreInt32(&app.shutdownFlag, 1)
}

// ShutdownRequested reports whether RequestShutdown has been called.
func (app *App) ShutdownRequested() bool {
	return atomic.LoadInt32(&app.shutdownFlag) == 1
}

// RunOnce executes exactly one detection pass: read kernel views, build
// snapshots, analyze dependencies, build the RAG, detect cycles, classify
// them, and produce a Report. Every allocation for the pass (snapshots,
// graph, cycles) is released before RunOnce returns, per spec.md §5's
// scoped-acquisition requirement — in Go this falls out naturally since
// nothing here escapes to a package-level variable.
func (app *App) RunOnce(now int64) (report.Report, error) {
	cfg := app.Config.UserConfig
	passID := uuid.NewString()

	snaps, err := snapshot.Assemble(app.Reader)
	if err != nil {
		return report.Report{}, err
	}

	systemLocks, err := app.Reader.ReadSystemLocks()
	if err != nil {
		return report.Report{}, err
	}

	caps := depgraph.Capacities{
		MaxWaitingPIDsPerProcess:      cfg.Capacity.MaxWaitingPIDsPerProcess,
		MaxWaitingResourcesPerProcess: cfg.Capacity.MaxWaitingResourcesPerProcess,
	}
	edges, _ := depgraph.Analyze(snaps, systemLocks, caps)

	g := rag.NewGraph(cfg.Capacity.MaxProcessVertices, cfg.Capacity.MaxResourceVertices)
	resourceInstances := computeResourceInstances(snaps, edges)
	resourceLabels := computeResourceLabels(edges)
	for rid, n := range resourceInstances {
		idx, err := g.AddResource(rid, n)
		if err != nil {
			return report.Report{}, err
		}
		g.SetResourceLabel(idx, resourceLabels[rid])
	}
	for _, e := range edges {
		var err error
		switch e.Kind {
		case depgraph.Request:
			err = g.AddRequestEdge(e.PID, e.RID)
		case depgraph.Allocation:
			err = g.AddAllocationEdge(e.RID, e.PID)
		}
		if err != nil {
			return report.Report{}, err
		}
	}

	cycles := cycle.Detect(g)

	result, err := classify.Classify(cycles, g, len(snaps), app.Catalog)
	if err != nil {
		return report.Report{}, err
	}

	_, resourceCount, _ := g.Statistics()

	rpt := report.Report{
		Detected:         result.Detected,
		PIDs:             result.PIDs,
		Cycles:           toReportCycles(result.Cycles),
		Explanations:     result.Explanations,
		Recommendations:  result.Recommendations,
		Timestamp:        now,
		ProcessesScanned: len(snaps),
		ResourcesFound:   resourceCount,
	}

	app.Log.WithFields(logrus.Fields{
		"pass_id":           passID,
		"processes_scanned": rpt.ProcessesScanned,
		"resources_found":   rpt.ResourcesFound,
		"cycles_found":      len(rpt.Cycles),
		"detected":          rpt.Detected,
	}).Debug("pass complete")

	return rpt, nil
}

func computeResourceInstances(snaps []snapshot.Snapshot, edges []depgraph.Edge) map[int]int {
	instances := make(map[int]int)
	for _, e := range edges {
		if _, ok := instances[e.RID]; !ok {
			instances[e.RID] = 1
		}
	}
	return instances
}

// computeResourceLabels maps each resource id to the dependency-analyzer
// pass that produced it ("pipe" or "lock"), first-seen wins.
func computeResourceLabels(edges []depgraph.Edge) map[int]string {
	labels := make(map[int]string)
	for _, e := range edges {
		if _, ok := labels[e.RID]; !ok {
			labels[e.RID] = e.Resource
		}
	}
	return labels
}

func toReportCycles(classified []classify.Classified) []report.Cycle {
	out := make([]report.Cycle, 0, len(classified))
	for _, c := range classified {
		out = append(out, report.Cycle{
			Path:        c.Cycle.Path,
			ProcessIDs:  c.Cycle.ProcessIDs,
			ResourceIDs: c.Cycle.ResourceIDs,
			Definite:    c.State == classify.Definite,
		})
	}
	return out
}

// RunContinuous loops RunOnce at the configured interval until
// ShutdownRequested, delivering each pass's report to renderer. The sleep
// wakes at one-second granularity to recheck the shutdown flag, per
// spec.md §5's cancellation model.
func (app *App) RunContinuous(renderer report.Renderer, nowFunc func() int64) error {
	watcher, err := config.NewWatcher(app.Config)
	if err != nil {
		app.Log.WithError(err).Warn("config hot-reload disabled")
	} else {
		defer watcher.Close()
	}

	for !app.ShutdownRequested() {
		rpt, err := app.RunOnce(nowFunc())
		if err != nil {
			app.Log.WithError(err).Error("pass failed")
		} else if err := renderer.Render(rpt); err != nil {
			app.Log.WithError(err).Error("render failed")
		}

		interval := time.Duration(app.Config.UserConfig.Scan.IntervalSeconds) * time.Second
		if interval <= 0 {
			interval = time.Second
		}
		if !app.sleepOrReload(interval, watcher) {
			return nil
		}
		runtime.Gosched()
	}
	return nil
}

// sleepOrReload sleeps for d in one-second ticks, waking early to swap in
// a freshly-edited UserConfig if watcher reports one, and returning false
// if a shutdown is requested mid-sleep.
func (app *App) sleepOrReload(d time.Duration, watcher *config.Watcher) bool {
	const tick = time.Second
	elapsed := time.Duration(0)
	for elapsed < d {
		if app.ShutdownRequested() {
			return false
		}
		if watcher != nil {
			select {
			case cfg, ok := <-watcher.Reloaded:
				if ok {
					app.Config.UserConfig = cfg
					app.Log.Info("config reloaded")
				}
			default:
			}
		}
		step := tick
		if remaining := d - elapsed; remaining < step {
			step = remaining
		}
		time.Sleep(step)
		elapsed += step
	}
	return !app.ShutdownRequested()
}
