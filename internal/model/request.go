package model

type SSHTestRequest struct {
	IP         string `json:"ip" binding:"required"`
	Port       int    `json:"port" binding:"required"`
	Username   string `json:"username" binding:"required"`
	AuthType   string `json:"authType" binding:"required,oneof=password key"`
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
	Passphrase string `json:"passphrase"`
}

type BatchSSHTestRequest struct {
	Nodes []BatchNodeRequest `json:"nodes" binding:"required"`
}

type BatchNodeRequest struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	IP         string `json:"ip"`
	Port       int    `json:"port"`
	Username   string `json:"username"`
	AuthType   string `json:"authType"`
	Password   string `json:"password"`
	PrivateKey string `json:"privateKey"`
	Passphrase string `json:"passphrase"`
}

type CreateClusterRequest struct {
	ClusterID    string   `json:"clusterId" binding:"required"`
	IP           string   `json:"ip" binding:"required"`
	ExcludePorts []int    `json:"excludePorts"`
	Plugins      []string `json:"plugins"`
}

type ExtendClusterRequest struct {
	MasterIP     string `json:"masterIp" binding:"required"`
	NewIP        string `json:"newIp" binding:"required"`
	ExcludePorts []int  `json:"excludePorts"`
	Restart      bool   `json:"restart"`
}

type ShrinkClusterRequest struct {
	RemainingIP string `json:"remainingIp" binding:"required"`
	DeletedIP   string `json:"deletedIp" binding:"required"`
	Restart     bool   `json:"restart"`
}

type RestartClusterRequest struct {
	Mode  string   `json:"mode" binding:"required,oneof=add remove"`
	IPs   []string `json:"ips" binding:"required"`
	NewIP string   `json:"newIp"`
}
