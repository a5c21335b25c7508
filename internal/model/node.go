package model

import "arakoon-deploy-backend/internal/pkg/arakoon"

type Member struct {
	Name          string `json:"name"`
	IP            string `json:"ip"`
	ClientPort    int    `json:"clientPort"`
	MessagingPort int    `json:"messagingPort"`
	State         string `json:"state,omitempty"`
}

// ClusterInfo is the API view of a cluster configuration.
type ClusterInfo struct {
	Success   bool             `json:"success"`
	ClusterID string           `json:"clusterId"`
	Members   []Member         `json:"members"`
	Plugins   []string         `json:"plugins"`
	Document  arakoon.Document `json:"document"`
}

func NewClusterInfo(config *arakoon.ClusterConfig, states map[string]arakoon.ServiceState) ClusterInfo {
	info := ClusterInfo{
		Success:   true,
		ClusterID: config.ClusterID(),
		Members:   []Member{},
		Plugins:   append([]string{}, config.Plugins...),
		Document:  config.Export(),
	}
	for _, n := range config.SortedNodes() {
		info.Members = append(info.Members, Member{
			Name:          n.Name,
			IP:            n.IP,
			ClientPort:    n.ClientPort,
			MessagingPort: n.MessagingPort,
			State:         string(states[n.Name]),
		})
	}
	return info
}
