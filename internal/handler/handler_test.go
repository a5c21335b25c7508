package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/handler"
	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/metrics"
	"arakoon-deploy-backend/internal/pkg/remote/remotetest"
	"arakoon-deploy-backend/internal/router"
	"arakoon-deploy-backend/internal/service"
	"arakoon-deploy-backend/pkg/utils"
)

type testServer struct {
	engine *gin.Engine
	tasks  *service.TaskService
}

func newTestServer(t *testing.T) *testServer {
	gin.SetMode(gin.TestMode)

	remotes := remotetest.NewFactory()
	remotes.HandlePrefix("10.0.0.1", "ip a", "aa01")
	remotes.HandlePrefix("10.0.0.2", "ip a", "bb02")

	log := logger.New(zaptest.NewLogger(t))
	cfg := config.ArakoonConfig{
		BaseDir:       "/mnt/db",
		PortRange:     "26400-26499",
		OvsUser:       "ovs",
		RootUser:      "root",
		EngineBinary:  "/usr/bin/arakoon",
		ManagementIP:  "10.0.0.1",
		DialTimeout:   time.Second,
		ProbeAttempts: 3,
		ProbeDelay:    time.Millisecond,
	}
	clusters := service.NewClusterService(cfg, remotes, metrics.New(), log)
	tasks := service.NewTaskService(context.Background(), log)

	r := gin.New()
	router.RegisterRoutes(r,
		handler.NewSSHHandler(service.NewSSHService(cfg, log)),
		handler.NewClusterHandler(clusters, tasks),
		handler.NewTaskHandler(tasks, nil, log),
	)
	return &testServer{engine: r, tasks: tasks}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func (s *testServer) waitTask(t *testing.T, w *httptest.ResponseRecorder) service.Task {
	t.Helper()
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	var resp model.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	done, ok := s.tasks.Done(resp.TaskID)
	require.True(t, ok)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
	}
	task, _ := s.tasks.Get(resp.TaskID)
	return task
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorResponse {
	t.Helper()
	var resp model.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateAndShowCluster(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/arakoon/clusters", model.CreateClusterRequest{
		ClusterID: "abm", IP: "10.0.0.1", ExcludePorts: []int{26400},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created model.CreateClusterResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, 26401, created.ClientPort)
	assert.Equal(t, 26402, created.MessagingPort)

	w = s.do(t, http.MethodGet, "/api/arakoon/clusters/abm?ip=10.0.0.1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var info model.ClusterInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	require.Len(t, info.Members, 1)
	assert.Equal(t, "aa01", info.Members[0].Name)
	assert.Equal(t, "global", info.Document.Sections[0].Name)

	w = s.do(t, http.MethodGet, "/api/arakoon/clusters/abm/status?ip=10.0.0.1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "stopped", info.Members[0].State)
}

func TestCreateValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/arakoon/clusters", map[string]string{"clusterId": "abm"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/arakoon/clusters", model.CreateClusterRequest{ClusterID: "abm", IP: "node1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeValidation, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/arakoon/clusters", model.CreateClusterRequest{ClusterID: "a b", IP: "10.0.0.1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSSHTestValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/ssh/test", model.SSHTestRequest{
		IP: "not-an-ip", Port: 22, Username: "root", AuthType: "password",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, utils.CodeValidation, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/ssh/test", model.SSHTestRequest{
		IP: "10.0.0.1", Port: 22, Username: "root", AuthType: "token",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShowUnknownCluster(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/arakoon/clusters/abm?ip=10.0.0.1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, utils.CodeConfigNotFound, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/api/arakoon/clusters/abm/wait", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExtendShrinkDeleteTasks(t *testing.T) {
	s := newTestServer(t)
	w := s.do(t, http.MethodPost, "/api/arakoon/clusters", model.CreateClusterRequest{ClusterID: "abm", IP: "10.0.0.1"})
	require.Equal(t, http.StatusCreated, w.Code)

	task := s.waitTask(t, s.do(t, http.MethodPost, "/api/arakoon/clusters/abm/extend",
		model.ExtendClusterRequest{MasterIP: "10.0.0.1", NewIP: "10.0.0.2"}))
	assert.Equal(t, service.TaskSuccess, task.Status, task.Error)

	w = s.do(t, http.MethodGet, "/api/tasks/"+task.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"success"`)

	task = s.waitTask(t, s.do(t, http.MethodPost, "/api/arakoon/clusters/abm/shrink",
		model.ShrinkClusterRequest{RemainingIP: "10.0.0.1", DeletedIP: "10.0.0.2"}))
	assert.Equal(t, service.TaskSuccess, task.Status, task.Error)

	task = s.waitTask(t, s.do(t, http.MethodDelete, "/api/arakoon/clusters/abm?ip=10.0.0.1", nil))
	assert.Equal(t, service.TaskSuccess, task.Status, task.Error)

	task = s.waitTask(t, s.do(t, http.MethodDelete, "/api/arakoon/clusters/abm?ip=10.0.0.1", nil))
	assert.Equal(t, service.TaskError, task.Status)
}

func TestRestartValidation(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/arakoon/clusters/abm/restart",
		model.RestartClusterRequest{Mode: "sideways", IPs: []string{"10.0.0.1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/arakoon/clusters/abm/restart",
		model.RestartClusterRequest{Mode: "add", IPs: []string{"10.0.0.1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTaskNotFound(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tasks/unknown", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/tasks/unknown/ws", nil).Code)
}

func TestTaskStream(t *testing.T) {
	s := newTestServer(t)
	srv := httptest.NewServer(s.engine)
	defer srv.Close()

	w := s.do(t, http.MethodDelete, "/api/arakoon/clusters/abm?ip=10.0.0.1", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp model.TaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/tasks/" + resp.TaskID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var messages []string
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		messages = append(messages, string(msg))
	}

	require.NotEmpty(t, messages)
	assert.Equal(t, "delete abm started", messages[0])
	assert.Contains(t, messages[len(messages)-1], `"status":"error"`)
}
