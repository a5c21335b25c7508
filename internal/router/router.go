package router

import (
	"github.com/gin-gonic/gin"

	"arakoon-deploy-backend/internal/handler"
)

func RegisterRoutes(r *gin.Engine, sshHandler *handler.SSHHandler, clusterHandler *handler.ClusterHandler, taskHandler *handler.TaskHandler) {
	api := r.Group("/api")
	{
		ssh := api.Group("/ssh")
		{
			ssh.POST("/test", sshHandler.TestConnection)
			ssh.POST("/test-batch", sshHandler.BatchTestConnection)
		}

		clusters := api.Group("/arakoon/clusters")
		{
			clusters.POST("", clusterHandler.Create)
			clusters.GET("/:clusterId", clusterHandler.Show)
			clusters.GET("/:clusterId/status", clusterHandler.Status)
			clusters.POST("/:clusterId/extend", clusterHandler.Extend)
			clusters.POST("/:clusterId/shrink", clusterHandler.Shrink)
			clusters.DELETE("/:clusterId", clusterHandler.Delete)
			clusters.POST("/:clusterId/restart", clusterHandler.Restart)
			clusters.POST("/:clusterId/wait", clusterHandler.Wait)
		}

		tasks := api.Group("/tasks")
		{
			tasks.GET("/:taskId", taskHandler.Progress)
			tasks.GET("/:taskId/ws", taskHandler.Stream)
		}
	}
}
