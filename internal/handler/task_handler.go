package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/service"
)

type TaskHandler struct {
	tasks    *service.TaskService
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewTaskHandler accepts websocket upgrades from allowOrigins; an empty list
// accepts any origin.
func NewTaskHandler(tasks *service.TaskService, allowOrigins []string, logger *logger.Logger) *TaskHandler {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		allowed[o] = struct{}{}
	}
	return &TaskHandler{
		tasks: tasks,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				if len(allowed) == 0 {
					return true
				}
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
		logger: logger,
	}
}

func (h *TaskHandler) Progress(c *gin.Context) {
	task, ok := h.tasks.Get(c.Param("taskId"))
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Success: false, Message: "Task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": task.Status != service.TaskError, "task": task})
}

// Stream sends the task log over a websocket, one text message per line,
// and closes the socket when the task ends.
func (h *TaskHandler) Stream(c *gin.Context) {
	taskID := c.Param("taskId")
	backlog, lines, cancel, ok := h.tasks.Subscribe(taskID)
	if !ok {
		c.JSON(http.StatusNotFound, model.ErrorResponse{Success: false, Message: "Task not found"})
		return
	}
	defer cancel()

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnf("websocket upgrade failed for task %s: %v", taskID, err)
		return
	}
	defer ws.Close()

	// 读取客户端消息以便感知关闭
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for _, line := range backlog {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			return
		}
	}

	for lines != nil {
		select {
		case line, open := <-lines:
			if !open {
				lines = nil
				break
			}
			if err := ws.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}

	task, ok := h.tasks.Get(taskID)
	if !ok {
		return
	}

	// The stream ends early when this reader fell behind. The snapshot still
	// carries the full log; the client polls for the rest.
	code, reason := websocket.CloseNormalClosure, "task finished"
	if task.Status == service.TaskRunning {
		code, reason = websocket.CloseTryAgainLater, "log stream fell behind, poll the task"
		_ = ws.WriteMessage(websocket.TextMessage, []byte("log lines dropped: stream fell behind"))
	}
	_ = ws.WriteJSON(task)
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason),
		time.Now().Add(time.Second))
}
