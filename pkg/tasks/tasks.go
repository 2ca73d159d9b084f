// Package tasks runs the single background task that the continuous-mode
// CLI collaborator needs: the scan loop itself. The core detection pass
// (internal/kview, internal/snapshot, internal/depgraph, internal/rag,
// internal/cycle, internal/classify) stays single-threaded and synchronous
// per spec.md's concurrency model; this package lives strictly outside that
// boundary, in the out-of-scope continuous-monitoring loop driver.
package tasks

import "sync"

// TaskManager runs at most one background task at a time, stopping the
// previous one (and waiting for it to actually return) before starting the
// next.
type TaskManager struct {
	currentTask  *Task
	waitingMutex sync.Mutex
}

// Task is a single running background function with a cooperative stop
// signal.
type Task struct {
	stop          chan struct{}
	notifyStopped chan struct{}
}

// NewTaskManager returns an empty task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{}
}

// NewTask stops any currently running task and starts f in the background,
// passing it a stop channel it should select on between units of work.
func (t *TaskManager) NewTask(f func(stop chan struct{})) error {
	t.waitingMutex.Lock()
	defer t.waitingMutex.Unlock()

	if t.currentTask != nil {
		t.currentTask.Stop()
	}

	stop := make(chan struct{}, 1) // don't block on this in case the task already returned
	notifyStopped := make(chan struct{})

	t.currentTask = &Task{
		stop:          stop,
		notifyStopped: notifyStopped,
	}

	go func() {
		f(stop)
		notifyStopped <- struct{}{}
	}()

	return nil
}

// Stop signals the task to stop and blocks until it has.
func (t *Task) Stop() {
	t.stop <- struct{}{}
	<-t.notifyStopped
}

// Stop stops the currently running task, if any, and blocks until it has
// returned. Safe to call from a signal handler goroutine.
func (t *TaskManager) Stop() {
	t.waitingMutex.Lock()
	defer t.waitingMutex.Unlock()

	if t.currentTask != nil {
		t.currentTask.Stop()
		t.currentTask = nil
	}
}
