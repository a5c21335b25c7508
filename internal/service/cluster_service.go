package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/pkg/arakoon"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/metrics"
	"arakoon-deploy-backend/internal/pkg/remote"
)

// NewRemoteFactory builds the remote execution surface from the SSH
// settings. The local interface addresses are looked up once, here.
func NewRemoteFactory(cfg config.SSHConfig, log *logger.Logger) (*remote.HostFactory, error) {
	creds := remote.Credentials{
		Port:       cfg.Port,
		AuthType:   cfg.AuthType,
		Password:   cfg.Password,
		Passphrase: cfg.Passphrase,
		Timeout:    cfg.ConnectTimeout,
	}
	if cfg.AuthType == "key" && cfg.PrivateKeyPath != "" {
		key, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		creds.PrivateKey = string(key)
	}

	localIPs, err := remote.LocalIPs()
	if err != nil {
		return nil, fmt.Errorf("list local addresses: %w", err)
	}
	return remote.NewHostFactory(creds, localIPs, log.Zap()), nil
}

func layoutFromConfig(cfg config.ArakoonConfig) arakoon.Layout {
	layout := arakoon.DefaultLayout()
	if cfg.ConfigRoot != "" {
		layout.ConfigRoot = cfg.ConfigRoot
	}
	if cfg.LogRoot != "" {
		layout.LogRoot = cfg.LogRoot
	}
	if cfg.UnitDir != "" {
		layout.UnitDir = cfg.UnitDir
	}
	return layout
}

// ClusterService wires the cluster lifecycle components together and
// records metrics for every operation.
type ClusterService struct {
	installer *arakoon.Installer
	services  arakoon.Services
	prober    *arakoon.Prober
	sequencer *arakoon.Sequencer
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewClusterService(cfg config.ArakoonConfig, remotes remote.Factory, m *metrics.Metrics, log *logger.Logger) *ClusterService {
	layout := layoutFromConfig(cfg)

	services := arakoon.NewServiceControl(remotes, layout, cfg.RootUser, log)
	installer := arakoon.NewInstaller(remotes, services, arakoon.InstallerConfig{
		Layout:       layout,
		BaseDir:      cfg.BaseDir,
		PortRange:    cfg.PortRange,
		OvsUser:      cfg.OvsUser,
		RootUser:     cfg.RootUser,
		EngineBinary: cfg.EngineBinary,
	}, log)

	clients := arakoon.NewTCPClientFactory(remotes, layout, cfg.ManagementIP, cfg.OvsUser, cfg.DialTimeout)
	opts := []arakoon.ProberOption{
		arakoon.WithProbeAttempts(cfg.ProbeAttempts),
		arakoon.WithProbeDelay(cfg.ProbeDelay),
	}
	if m != nil {
		opts = append(opts, arakoon.WithProbeObserver(m))
	}
	prober := arakoon.NewProber(clients, log, opts...)

	return &ClusterService{
		installer: installer,
		services:  services,
		prober:    prober,
		sequencer: arakoon.NewSequencer(services, prober, installer, log),
		metrics:   m,
		logger:    log,
	}
}

func (s *ClusterService) observe(operation string, started time.Time, err error) {
	if s.metrics != nil {
		s.metrics.Observe(operation, started, err)
	}
}

func (s *ClusterService) Create(clusterID, ip string, excludePorts []int, plugins []string) (ports arakoon.Ports, err error) {
	defer func(started time.Time) { s.observe("create", started, err) }(time.Now())

	return s.installer.CreateCluster(clusterID, ip, excludePorts, plugins)
}

func (s *ClusterService) Extend(clusterID, masterIP, newIP string, excludePorts []int) (ports arakoon.Ports, err error) {
	defer func(started time.Time) { s.observe("extend", started, err) }(time.Now())
	return s.installer.ExtendCluster(masterIP, newIP, clusterID, excludePorts)
}

func (s *ClusterService) Shrink(clusterID, remainingIP, deletedIP string) (err error) {
	defer func(started time.Time) { s.observe("shrink", started, err) }(time.Now())
	return s.installer.ShrinkCluster(remainingIP, deletedIP, clusterID)
}

func (s *ClusterService) Delete(clusterID, ip string) (err error) {
	defer func(started time.Time) { s.observe("delete", started, err) }(time.Now())
	return s.installer.DeleteCluster(clusterID, ip)
}

// Show returns the configuration of a cluster as known by ip.
func (s *ClusterService) Show(clusterID, ip string) (*arakoon.ClusterConfig, error) {
	return s.installer.Load(clusterID, ip)
}

// MemberIPs lists the member addresses of a cluster in name order.
func (s *ClusterService) MemberIPs(clusterID, ip string) ([]string, error) {
	config, err := s.installer.Load(clusterID, ip)
	if err != nil {
		return nil, err
	}
	return config.IPs(), nil
}

func (s *ClusterService) RestartAfterAdd(ctx context.Context, clusterID string, currentIPs []string, newIP string) (err error) {
	defer func(started time.Time) { s.observe("restart-add", started, err) }(time.Now())
	return s.sequencer.RestartAfterAdd(ctx, clusterID, currentIPs, newIP)
}

func (s *ClusterService) RestartAfterRemove(ctx context.Context, clusterID string, remainingIPs []string) (err error) {
	defer func(started time.Time) { s.observe("restart-remove", started, err) }(time.Now())
	return s.sequencer.RestartAfterRemove(ctx, clusterID, remainingIPs)
}

func (s *ClusterService) Wait(ctx context.Context, clusterID string) (err error) {
	defer func(started time.Time) { s.observe("wait", started, err) }(time.Now())
	return s.prober.WaitForCluster(ctx, clusterID)
}

// Status reports the service state of every member.
func (s *ClusterService) Status(clusterID, ip string) (map[string]arakoon.ServiceState, error) {
	config, err := s.installer.Load(clusterID, ip)
	if err != nil {
		return nil, err
	}
	states := make(map[string]arakoon.ServiceState, len(config.Nodes))
	for _, node := range config.SortedNodes() {
		state, err := s.services.Status(clusterID, node.IP)
		if err != nil {
			return nil, err
		}
		states[node.Name] = state
	}
	return states, nil
}

// ExtendSteps are the task steps of adding newIP: extend the configuration,
// then restart the members one at a time if restart is set.
func (s *ClusterService) ExtendSteps(clusterID, masterIP, newIP string, excludePorts []int, restart bool) []Step {
	var previous []string
	steps := []Step{
		{
			Name: "extend cluster",
			Action: func(ctx context.Context, logf func(string, ...interface{})) error {
				ips, err := s.MemberIPs(clusterID, masterIP)
				if err != nil {
					return err
				}
				previous = ips

				ports, err := s.Extend(clusterID, masterIP, newIP, excludePorts)
				if err != nil {
					return err
				}
				logf("%s joined %s on ports %d/%d", newIP, clusterID, ports.ClientPort, ports.MessagingPort)
				return nil
			},
		},
	}
	if restart {
		steps = append(steps, Step{
			Name: "restart cluster",
			Action: func(ctx context.Context, logf func(string, ...interface{})) error {
				logf("restarting %v, then starting %s", previous, newIP)
				return s.RestartAfterAdd(ctx, clusterID, previous, newIP)
			},
		})
	}
	return steps
}

// ShrinkSteps are the task steps of removing deletedIP.
func (s *ClusterService) ShrinkSteps(clusterID, remainingIP, deletedIP string, restart bool) []Step {
	steps := []Step{
		{
			Name: "shrink cluster",
			Action: func(ctx context.Context, logf func(string, ...interface{})) error {
				if err := s.Shrink(clusterID, remainingIP, deletedIP); err != nil {
					return err
				}
				logf("%s left %s", deletedIP, clusterID)
				return nil
			},
		},
	}
	if restart {
		steps = append(steps, Step{
			Name: "restart cluster",
			Action: func(ctx context.Context, logf func(string, ...interface{})) error {
				ips, err := s.MemberIPs(clusterID, remainingIP)
				if err != nil {
					return err
				}
				logf("restarting %v", ips)
				return s.RestartAfterRemove(ctx, clusterID, ips)
			},
		})
	}
	return steps
}

func (s *ClusterService) DeleteSteps(clusterID, ip string) []Step {
	return []Step{{
		Name: "delete cluster",
		Action: func(ctx context.Context, logf func(string, ...interface{})) error {
			return s.Delete(clusterID, ip)
		},
	}}
}

func (s *ClusterService) RestartSteps(clusterID, mode string, ips []string, newIP string) []Step {
	return []Step{{
		Name: "restart cluster",
		Action: func(ctx context.Context, logf func(string, ...interface{})) error {
			if mode == "add" {
				return s.RestartAfterAdd(ctx, clusterID, ips, newIP)
			}
			return s.RestartAfterRemove(ctx, clusterID, ips)
		},
	}}
}
