// Command deadlockd is the minimal CLI collaborator spec.md §6 describes:
// it recognizes one-shot vs. continuous mode, an interval bound to a
// finite range, and a format selector handed to the renderer. The CLI
// parser itself, the real text/JSON/verbose renderers, and the SMTP
// alert dispatcher are out of scope per spec.md §1 — this binary exists
// to exercise the core pipeline end to end, not to be a complete product.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/go-errors/errors"
	"github.com/integrii/flaggy"
	"github.com/samber/lo"

	"github.com/lazytrace/deadlockd/pkg/app"
	"github.com/lazytrace/deadlockd/pkg/config"
	"github.com/lazytrace/deadlockd/pkg/report"
	"github.com/lazytrace/deadlockd/pkg/tasks"
	"github.com/lazytrace/deadlockd/pkg/utils"
)

const defaultVersion = "unversioned"

var (
	commit      string
	version     = defaultVersion
	date        string
	buildSource = "unknown"

	configFlag    = false
	debuggingFlag = false
	onceFlag      = false
	intervalFlag  = 30
	formatFlag    = "text"
)

// minIntervalSeconds and maxIntervalSeconds bound the continuous-mode
// interval, per spec.md §6's "finite range" requirement.
const (
	minIntervalSeconds = 1
	maxIntervalSeconds = 3600
)

func main() {
	updateBuildInfo()

	info := fmt.Sprintf(
		"%s\nDate: %s\nBuildSource: %s\nCommit: %s\nOS: %s\nArch: %s",
		version, date, buildSource, commit, runtime.GOOS, runtime.GOARCH,
	)

	flaggy.SetName("deadlockd")
	flaggy.SetDescription("out-of-process deadlock detector")
	flaggy.Bool(&configFlag, "c", "config", "Print the current default config")
	flaggy.Bool(&debuggingFlag, "d", "debug", "a boolean")
	flaggy.Bool(&onceFlag, "o", "once", "Run a single detection pass and exit")
	flaggy.Int(&intervalFlag, "i", "interval", "Seconds between passes in continuous mode")
	flaggy.String(&formatFlag, "f", "format", "Report format: text, json, or verbose")
	flaggy.SetVersion(info)
	flaggy.Parse()

	if configFlag {
		printDefaultConfig()
		return
	}

	appConfig, err := config.NewAppConfig("deadlockd", version, commit, date, buildSource, debuggingFlag)
	if err != nil {
		log.Fatal(err.Error())
	}

	if intervalFlag < minIntervalSeconds || intervalFlag > maxIntervalSeconds {
		log.Fatalf("interval must be between %d and %d seconds", minIntervalSeconds, maxIntervalSeconds)
	}
	appConfig.UserConfig.Scan.IntervalSeconds = intervalFlag
	appConfig.UserConfig.Scan.Format = formatFlag

	a, err := app.NewApp(appConfig)
	if err != nil {
		log.Fatal(err.Error())
	}

	renderer := report.NewLogRenderer(a.Log)

	if onceFlag {
		runOnceAndExit(a, renderer)
		return
	}

	manager := tasks.NewTaskManager()
	runErrs := make(chan error, 1)
	if err := manager.NewTask(func(stop chan struct{}) {
		go func() {
			<-stop
			a.RequestShutdown()
		}()
		runErrs <- a.RunContinuous(renderer, func() int64 { return time.Now().Unix() })
	}); err != nil {
		reportFatal(a, err)
	}

	installShutdownHandler(manager)
	if err := <-runErrs; err != nil {
		reportFatal(a, err)
	}
}

func runOnceAndExit(a *app.App, renderer report.Renderer) {
	rpt, err := a.RunOnce(time.Now().Unix())
	if err != nil {
		reportFatal(a, err)
	}
	if err := renderer.Render(rpt); err != nil {
		reportFatal(a, err)
	}
	os.Exit(0)
}

// installShutdownHandler wires SIGINT/SIGTERM to stopping the running scan
// task, observed between passes per spec.md §5.
func installShutdownHandler(manager *tasks.TaskManager) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		manager.Stop()
	}()
}

func printDefaultConfig() {
	cfg := config.GetDefaultConfig()
	fmt.Printf("%+v\n", cfg)
}

// reportFatal logs a stack-traced error the way the teacher wraps
// errors with go-errors at its main.go boundary, then exits non-zero per
// spec.md §6's process exit code contract.
func reportFatal(a *app.App, err error) {
	wrapped := errors.Wrap(err, 0)
	stackTrace := wrapped.ErrorStack()
	a.Log.Error(stackTrace)
	log.Fatalf("pass failed: %s", stackTrace)
}

func updateBuildInfo() {
	if version == defaultVersion {
		if buildInfo, ok := debug.ReadBuildInfo(); ok {
			revision, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.revision"
			})
			if ok {
				commit = revision.Value
				version = utils.SafeTruncate(revision.Value, 7)
			}

			t, ok := lo.Find(buildInfo.Settings, func(setting debug.BuildSetting) bool {
				return setting.Key == "vcs.time"
			})
			if ok {
				date = t.Value
			}
		}
	}
}
