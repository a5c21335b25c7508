package model

type SSHTestResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Details []string `json:"details,omitempty"`
	ID      int      `json:"id,omitempty"`
}

// TaskResponse acknowledges an operation started in the background.
type TaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"taskId"`
	Message string `json:"message,omitempty"`
}

type CreateClusterResponse struct {
	Success       bool   `json:"success"`
	ClusterID     string `json:"clusterId"`
	ClientPort    int    `json:"clientPort"`
	MessagingPort int    `json:"messagingPort"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
