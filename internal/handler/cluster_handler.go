package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/service"
	"arakoon-deploy-backend/pkg/utils"
)

type ClusterHandler struct {
	clusters *service.ClusterService
	tasks    *service.TaskService
}

func NewClusterHandler(clusters *service.ClusterService, tasks *service.TaskService) *ClusterHandler {
	return &ClusterHandler{
		clusters: clusters,
		tasks:    tasks,
	}
}

func (h *ClusterHandler) clusterID(c *gin.Context) (string, bool) {
	id := c.Param("clusterId")
	if err := utils.ValidateClusterID(id); err != nil {
		badRequest(c, utils.NewValidationError("clusterId", id))
		return "", false
	}
	return id, true
}

func (h *ClusterHandler) Create(c *gin.Context) {
	var req model.CreateClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if err := utils.ValidateClusterID(req.ClusterID); err != nil {
		badRequest(c, utils.NewValidationError("clusterId", req.ClusterID))
		return
	}
	if apiErr := validateIPs("ip", req.IP); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	ports, err := h.clusters.Create(req.ClusterID, req.IP, req.ExcludePorts, req.Plugins)
	if err != nil {
		abortWithError(c, "create", err)
		return
	}

	c.JSON(http.StatusCreated, model.CreateClusterResponse{
		Success:       true,
		ClusterID:     req.ClusterID,
		ClientPort:    ports.ClientPort,
		MessagingPort: ports.MessagingPort,
	})
}

func (h *ClusterHandler) Show(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	ip := c.Query("ip")
	if apiErr := validateIPs("ip", ip); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	config, err := h.clusters.Show(id, ip)
	if err != nil {
		abortWithError(c, "show", err)
		return
	}
	c.JSON(http.StatusOK, model.NewClusterInfo(config, nil))
}

// Status is Show plus the service state of every member.
func (h *ClusterHandler) Status(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	ip := c.Query("ip")
	if apiErr := validateIPs("ip", ip); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	config, err := h.clusters.Show(id, ip)
	if err != nil {
		abortWithError(c, "status", err)
		return
	}
	states, err := h.clusters.Status(id, ip)
	if err != nil {
		abortWithError(c, "status", err)
		return
	}
	c.JSON(http.StatusOK, model.NewClusterInfo(config, states))
}

func (h *ClusterHandler) Extend(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	var req model.ExtendClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if apiErr := validateIPs("ip", req.MasterIP, req.NewIP); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	taskID := h.tasks.Start("extend", id, h.clusters.ExtendSteps(id, req.MasterIP, req.NewIP, req.ExcludePorts, req.Restart))
	c.JSON(http.StatusAccepted, model.TaskResponse{Success: true, TaskID: taskID, Message: "Extend started"})
}

func (h *ClusterHandler) Shrink(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	var req model.ShrinkClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if apiErr := validateIPs("ip", req.RemainingIP, req.DeletedIP); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	taskID := h.tasks.Start("shrink", id, h.clusters.ShrinkSteps(id, req.RemainingIP, req.DeletedIP, req.Restart))
	c.JSON(http.StatusAccepted, model.TaskResponse{Success: true, TaskID: taskID, Message: "Shrink started"})
}

func (h *ClusterHandler) Delete(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	ip := c.Query("ip")
	if apiErr := validateIPs("ip", ip); apiErr != nil {
		badRequest(c, apiErr)
		return
	}

	taskID := h.tasks.Start("delete", id, h.clusters.DeleteSteps(id, ip))
	c.JSON(http.StatusAccepted, model.TaskResponse{Success: true, TaskID: taskID, Message: "Delete started"})
}

func (h *ClusterHandler) Restart(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	var req model.RestartClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidPayload(c, err)
		return
	}
	if apiErr := validateIPs("ips", req.IPs...); apiErr != nil {
		badRequest(c, apiErr)
		return
	}
	if req.Mode == "add" {
		if apiErr := validateIPs("newIp", req.NewIP); apiErr != nil {
			badRequest(c, apiErr)
			return
		}
	}

	taskID := h.tasks.Start("restart-"+req.Mode, id, h.clusters.RestartSteps(id, req.Mode, req.IPs, req.NewIP))
	c.JSON(http.StatusAccepted, model.TaskResponse{Success: true, TaskID: taskID, Message: "Restart started"})
}

// Wait blocks until the cluster answers or the probe gives up.
func (h *ClusterHandler) Wait(c *gin.Context) {
	id, ok := h.clusterID(c)
	if !ok {
		return
	}
	if err := h.clusters.Wait(c.Request.Context(), id); err != nil {
		abortWithError(c, "wait", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "clusterId": id, "message": "Cluster available"})
}
