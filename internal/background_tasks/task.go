package background_tasks

import (
	"time"
)

const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// RetryPolicy defines the policy for retrying tasks on failure.
type RetryPolicy struct {
	MaxRetries int           // Maximum number of retries.
	Delay      time.Duration // Delay between retries.
}

// Execution records the execution details of a task.
type Execution struct {
	StartedAt time.Time
	EndedAt   time.Time
	Status    string // StatusSuccess or StatusFailed.
	Error     string // Error of the last failed attempt.
}

// Task represents a schedulable task.
type Task struct {
	ID            int                          // Unique identifier for the task.
	Name          string                       // Name of the task.
	Description   string                       // Description of the task.
	Triggers      []Trigger                    // List of triggers for the task.
	Function      func(args interface{}) error // Function to execute as the task.
	Args          []interface{}                // Arguments for the task function.
	RetryPolicy   RetryPolicy                  // Retry policy for the task.
	Enabled       bool                         // Flag indicating if the task is enabled.
	Priority      int                          // Priority of the task for scheduling.
	ExecutionHist []Execution                  // History of task executions.
}

// LastExecution returns the most recent execution, if any.
func (t *Task) LastExecution() (Execution, bool) {
	if len(t.ExecutionHist) == 0 {
		return Execution{}, false
	}
	return t.ExecutionHist[len(t.ExecutionHist)-1], true
}

// oneShot reports whether every trigger fires only once.
func (t *Task) oneShot() bool {
	for _, trigger := range t.Triggers {
		if _, ok := trigger.(*OneTimeTrigger); !ok {
			return false
		}
	}
	return len(t.Triggers) > 0
}
