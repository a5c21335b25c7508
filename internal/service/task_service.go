package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"arakoon-deploy-backend/internal/pkg/logger"
)

const defaultSubscriberBuffer = 64

type TaskStatus string

const (
	TaskRunning TaskStatus = "running"
	TaskSuccess TaskStatus = "success"
	TaskError   TaskStatus = "error"
)

// Step is one named unit of work of a task. logf appends to the task log.
type Step struct {
	Name   string
	Action func(ctx context.Context, logf func(format string, args ...interface{})) error
}

// Task is a snapshot of a background operation.
type Task struct {
	ID         string     `json:"taskId"`
	Operation  string     `json:"operation"`
	ClusterID  string     `json:"clusterId"`
	Status     TaskStatus `json:"status"`
	Progress   float64    `json:"progress"`
	Logs       []string   `json:"logs"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt,omitempty"`
}

type taskState struct {
	task        Task
	done        chan struct{}
	subscribers []chan string
}

// TaskService runs operations in the background and keeps their progress
// and logs for polling or streaming.
type TaskService struct {
	mu     sync.Mutex
	tasks  map[string]*taskState
	ctx    context.Context
	logger *logger.Logger

	subscriberBuffer int
}

// NewTaskService creates a service whose tasks are cancelled when ctx is.
func NewTaskService(ctx context.Context, logger *logger.Logger) *TaskService {
	return &TaskService{
		tasks:  make(map[string]*taskState),
		ctx:    ctx,
		logger: logger,

		subscriberBuffer: defaultSubscriberBuffer,
	}
}

// Start runs steps in order on a new goroutine and returns the task id.
// The first failing step ends the task.
func (s *TaskService) Start(operation, clusterID string, steps []Step) string {
	id := uuid.New().String()
	state := &taskState{
		task: Task{
			ID:        id,
			Operation: operation,
			ClusterID: clusterID,
			Status:    TaskRunning,
			Logs:      []string{fmt.Sprintf("%s %s started", operation, clusterID)},
			StartedAt: time.Now(),
		},
		done: make(chan struct{}),
	}

	s.mu.Lock()
	s.tasks[id] = state
	s.mu.Unlock()

	go s.run(id, steps)
	return id
}

func (s *TaskService) run(id string, steps []Step) {
	for i, step := range steps {
		logf := func(format string, args ...interface{}) {
			s.appendLog(id, fmt.Sprintf(format, args...))
		}

		logf("Starting %s", step.Name)
		if err := step.Action(s.ctx, logf); err != nil {
			s.logger.DeploymentError(step.Name, err)
			s.finish(id, func(t *Task) {
				t.Status = TaskError
				t.Error = err.Error()
				t.Progress = float64(i*100) / float64(len(steps))
			}, fmt.Sprintf("Failed %s: %v", step.Name, err))
			return
		}

		s.update(id, func(t *Task) {
			t.Progress = float64((i+1)*100) / float64(len(steps))
		}, fmt.Sprintf("Completed %s", step.Name))
	}

	s.finish(id, func(t *Task) {
		t.Status = TaskSuccess
		t.Progress = 100
	}, "Task completed successfully")
}

func (s *TaskService) appendLog(id, line string) {
	s.update(id, func(*Task) {}, line)
}

func (s *TaskService) update(id string, fn func(*Task), line string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tasks[id]
	if !ok {
		return
	}
	fn(&state.task)
	state.task.Logs = append(state.task.Logs, line)
	kept := state.subscribers[:0]
	for _, sub := range state.subscribers {
		select {
		case sub <- line:
			kept = append(kept, sub)
		default:
			// 订阅者跟不上，关闭它，由客户端改为轮询
			s.logger.Warnf("task %s: dropping slow log subscriber", id)
			close(sub)
		}
	}
	state.subscribers = kept
}

func (s *TaskService) finish(id string, fn func(*Task), line string) {
	s.update(id, func(t *Task) {
		fn(t)
		t.FinishedAt = time.Now()
	}, line)

	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.tasks[id]
	for _, sub := range state.subscribers {
		close(sub)
	}
	state.subscribers = nil
	close(state.done)
}

// Get returns a copy of the task.
func (s *TaskService) Get(id string) (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tasks[id]
	if !ok {
		return Task{}, false
	}
	t := state.task
	t.Logs = append([]string(nil), state.task.Logs...)
	return t, true
}

// Done is closed when the task has finished.
func (s *TaskService) Done(id string) (<-chan struct{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return state.done, true
}

// Subscribe returns the log so far and a channel of the lines that follow.
// The channel is closed when the task finishes, or early when the reader
// falls a full buffer behind; it is nil for a task that already finished.
// cancel releases the subscription.
func (s *TaskService) Subscribe(id string) (backlog []string, lines <-chan string, cancel func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.tasks[id]
	if !ok {
		return nil, nil, nil, false
	}
	backlog = append([]string(nil), state.task.Logs...)

	select {
	case <-state.done:
		return backlog, nil, func() {}, true
	default:
	}

	ch := make(chan string, s.subscriberBuffer)
	state.subscribers = append(state.subscribers, ch)
	cancel = func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range state.subscribers {
			if sub == ch {
				state.subscribers = append(state.subscribers[:i], state.subscribers[i+1:]...)
				close(ch)
				return
			}
		}
	}
	return backlog, ch, cancel, true
}
