package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arakoon-deploy-backend/internal/pkg/logger"
)

func newTestTaskService(t *testing.T) *TaskService {
	return NewTaskService(context.Background(), logger.New(zaptest.NewLogger(t)))
}

func waitTask(t *testing.T, tasks *TaskService, id string) Task {
	t.Helper()
	done, ok := tasks.Done(id)
	require.True(t, ok)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("task %s did not finish", id)
	}
	task, ok := tasks.Get(id)
	require.True(t, ok)
	return task
}

func step(name string, err error) Step {
	return Step{Name: name, Action: func(_ context.Context, logf func(string, ...interface{})) error {
		logf("inside %s", name)
		return err
	}}
}

func TestTaskRunsStepsInOrder(t *testing.T) {
	tasks := newTestTaskService(t)
	id := tasks.Start("extend", "abm", []Step{step("first", nil), step("second", nil)})

	task := waitTask(t, tasks, id)
	assert.Equal(t, TaskSuccess, task.Status)
	assert.Equal(t, 100.0, task.Progress)
	assert.Equal(t, "abm", task.ClusterID)
	assert.False(t, task.FinishedAt.IsZero())
	assert.Equal(t, []string{
		"extend abm started",
		"Starting first", "inside first", "Completed first",
		"Starting second", "inside second", "Completed second",
		"Task completed successfully",
	}, task.Logs)
}

func TestTaskStopsAtFailingStep(t *testing.T) {
	tasks := newTestTaskService(t)
	id := tasks.Start("shrink", "abm", []Step{
		step("first", nil),
		step("second", errors.New("host unreachable")),
		step("third", nil),
	})

	task := waitTask(t, tasks, id)
	assert.Equal(t, TaskError, task.Status)
	assert.Equal(t, "host unreachable", task.Error)
	assert.InDelta(t, 33.3, task.Progress, 0.1)
	for _, line := range task.Logs {
		assert.NotContains(t, line, "third")
	}
}

func TestTaskSubscribe(t *testing.T) {
	tasks := newTestTaskService(t)
	release := make(chan struct{})
	id := tasks.Start("delete", "abm", []Step{{
		Name: "blocked",
		Action: func(_ context.Context, logf func(string, ...interface{})) error {
			<-release
			logf("released")
			return nil
		},
	}})

	backlog, lines, cancel, ok := tasks.Subscribe(id)
	require.True(t, ok)
	defer cancel()
	require.NotNil(t, lines)
	assert.Equal(t, "delete abm started", backlog[0])

	close(release)

	var streamed []string
	for line := range lines {
		streamed = append(streamed, line)
	}
	assert.Contains(t, streamed, "released")
	assert.Equal(t, "Task completed successfully", streamed[len(streamed)-1])

	backlog, lines, _, ok = tasks.Subscribe(id)
	require.True(t, ok)
	assert.Nil(t, lines)
	assert.True(t, strings.HasPrefix(backlog[len(backlog)-1], "Task completed"))
}

func TestTaskUnknown(t *testing.T) {
	tasks := newTestTaskService(t)

	_, ok := tasks.Get("nope")
	assert.False(t, ok)
	_, _, _, ok = tasks.Subscribe("nope")
	assert.False(t, ok)
	_, ok = tasks.Done("nope")
	assert.False(t, ok)
}

func TestTaskClosesSlowSubscriber(t *testing.T) {
	tasks := newTestTaskService(t)
	tasks.subscriberBuffer = 1

	subscribed := make(chan struct{})
	logged := make(chan struct{})
	release := make(chan struct{})
	id := tasks.Start("extend", "abm", []Step{{
		Name: "chatty",
		Action: func(_ context.Context, logf func(string, ...interface{})) error {
			<-subscribed
			for i := 1; i <= 3; i++ {
				logf("line %d", i)
			}
			close(logged)
			<-release
			return nil
		},
	}})

	_, lines, cancel, ok := tasks.Subscribe(id)
	require.True(t, ok)
	require.NotNil(t, lines)
	close(subscribed)
	<-logged

	received := 0
	for range lines {
		received++
	}
	assert.LessOrEqual(t, received, 1)

	task, ok := tasks.Get(id)
	require.True(t, ok)
	assert.Equal(t, TaskRunning, task.Status)
	assert.Contains(t, task.Logs, "line 3")

	cancel()
	close(release)
	done, _ := tasks.Done(id)
	<-done
}
