// Package background_tasks runs periodic node maintenance: republishing
// claimed names and grants, and reconnecting to bootstrap peers.
package background_tasks

import (
	"sort"
	"sync"
	"time"
)

// Scheduler orchestrates the execution of tasks based on their triggers and priority.
type Scheduler struct {
	tasks           map[int]*Task // Map of tasks by their ID.
	runningTasks    map[int]bool  // Map to keep track of running tasks.
	tick            time.Duration // Interval between trigger checks.
	stopChan        chan struct{} // Channel to signal stopping the scheduler.
	stopOnce        sync.Once
	maxRunningTasks int // Maximum number of tasks that can run concurrently.
	lastTaskID      int // Counter for assigning unique IDs to tasks.
	mu              sync.Mutex
}

// NewScheduler creates a new Scheduler with a specified limit on running tasks.
func NewScheduler(maxRunningTasks int) *Scheduler {
	return &Scheduler{
		tasks:           make(map[int]*Task),
		runningTasks:    make(map[int]bool),
		tick:            time.Second,
		stopChan:        make(chan struct{}),
		maxRunningTasks: maxRunningTasks,
	}
}

// AddTask adds a new task to the scheduler and initializes its state.
func (s *Scheduler) AddTask(task *Task) *Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task.ID = s.lastTaskID
	task.Enabled = true

	for _, trigger := range task.Triggers {
		trigger.Reset()
	}

	s.tasks[task.ID] = task
	s.lastTaskID++

	zlog.Sugar().Debugf("scheduled task %d %q", task.ID, task.Name)
	return task
}

// RemoveTask removes a task from the scheduler. A run in progress finishes.
func (s *Scheduler) RemoveTask(taskID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, taskID)
}

// Task returns a copy of the task with its execution history.
func (s *Scheduler) Task(taskID int) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	cp := *task
	cp.ExecutionHist = append([]Execution(nil), task.ExecutionHist...)
	return cp, true
}

// Start begins the scheduler's task execution loop.
func (s *Scheduler) Start() {
	ticker := time.NewTicker(s.tick)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.runTasks()
			}
		}
	}()
}

// runTasks starts every task with a ready trigger, highest priority first,
// as long as fewer than maxRunningTasks are running.
func (s *Scheduler) runTasks() {
	s.mu.Lock()
	defer s.mu.Unlock()

	sortedTasks := make([]*Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		sortedTasks = append(sortedTasks, task)
	}
	sort.Slice(sortedTasks, func(i, j int) bool {
		if sortedTasks[i].Priority != sortedTasks[j].Priority {
			return sortedTasks[i].Priority > sortedTasks[j].Priority
		}
		return sortedTasks[i].ID < sortedTasks[j].ID
	})

	running := 0
	for _, isRunning := range s.runningTasks {
		if isRunning {
			running++
		}
	}

	for _, task := range sortedTasks {
		if !task.Enabled || s.runningTasks[task.ID] {
			continue
		}

		if len(task.Triggers) == 0 {
			delete(s.tasks, task.ID)
			continue
		}

		for _, trigger := range task.Triggers {
			if running >= s.maxRunningTasks {
				return
			}
			if trigger.IsReady() {
				s.runningTasks[task.ID] = true
				running++
				go s.runTask(task)
				trigger.Reset()
				break
			}
		}
	}
}

// Stop signals the scheduler to stop running tasks. It is safe to call twice.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

// runTask executes a task and manages its lifecycle and retry policy.
func (s *Scheduler) runTask(task *Task) {
	execution := Execution{StartedAt: time.Now()}

	defer func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		task.ExecutionHist = append(task.ExecutionHist, execution)
		s.runningTasks[task.ID] = false
		if task.oneShot() {
			delete(s.tasks, task.ID)
		}
	}()

	for i := 0; i < task.RetryPolicy.MaxRetries+1; i++ {
		err := runTaskWithRetry(task.Function, task.Args, task.RetryPolicy.Delay)
		if err == nil {
			execution.Status = StatusSuccess
			execution.Error = ""
			execution.EndedAt = time.Now()
			return
		}
		zlog.Sugar().Warnf("task %q attempt %d failed: %v", task.Name, i+1, err)
		execution.Error = err.Error()
	}

	execution.Status = StatusFailed
	execution.EndedAt = time.Now()
	zlog.Sugar().Errorf("task %q failed: %s", task.Name, execution.Error)
}

// runTaskWithRetry attempts to execute a task, sleeping for delay after a failure.
func runTaskWithRetry(
	fn func(args interface{}) error,
	args []interface{},
	delay time.Duration,
) error {
	err := fn(args)
	if err != nil {
		time.Sleep(delay)
		return err
	}
	return nil
}
