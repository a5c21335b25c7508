package arakoon

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/alessio/shellescape"

	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/remote"
)

type ServiceState string

const (
	ServiceRunning ServiceState = "running"
	ServiceStopped ServiceState = "stopped"
)

// Services starts and stops a cluster's service on one host.
type Services interface {
	Status(clusterID, ip string) (ServiceState, error)
	Start(clusterID, ip string) error
	Stop(clusterID, ip string) error
	Remove(clusterID, ip string) error
	Install(clusterID, ip string) error
}

const unitTemplate = `[Unit]
Description=Arakoon cluster %[1]s
After=local-fs.target network-online.target
Wants=network-online.target

[Service]
Type=simple
User=ovs
Group=ovs
Environment=PYTHONPATH=/opt/OpenvStorage
WorkingDirectory=/opt/OpenvStorage
ExecStart=/usr/bin/python2 /opt/OpenvStorage/ovs/extensions/db/arakoon/ArakoonManagement.py --start --cluster %[1]s
Restart=on-failure
RestartSec=5
StartLimitInterval=10
StartLimitBurst=10
TimeoutStopSec=60

[Install]
WantedBy=multi-user.target
`

// RenderUnit returns the service unit of a cluster. The cluster id is the
// only parameter.
func RenderUnit(clusterID string) string {
	return fmt.Sprintf(unitTemplate, clusterID)
}

// ServiceControl drives the systemd unit of a cluster through the remote
// execution surface, as the privileged identity.
type ServiceControl struct {
	remotes  remote.Factory
	layout   Layout
	rootUser string
	logger   *logger.Logger
}

func NewServiceControl(remotes remote.Factory, layout Layout, rootUser string, logger *logger.Logger) *ServiceControl {
	return &ServiceControl{
		remotes:  remotes,
		layout:   layout,
		rootUser: rootUser,
		logger:   logger,
	}
}

func (s *ServiceControl) client(clusterID, ip, action string) (remote.Client, error) {
	if err := CheckClusterID(clusterID); err != nil {
		return nil, newServiceControlError(clusterID, ip, action, err)
	}
	client, err := s.remotes.Open(ip, s.rootUser)
	if err != nil {
		return nil, newServiceControlError(clusterID, ip, action, err)
	}
	return client, nil
}

func (s *ServiceControl) Status(clusterID, ip string) (ServiceState, error) {
	client, err := s.client(clusterID, ip, "status")
	if err != nil {
		return "", err
	}

	// is-active exits non-zero for every state but active.
	out, err := client.Run(fmt.Sprintf("systemctl is-active %s || true", unitArg(clusterID)))
	if err != nil {
		return "", newServiceControlError(clusterID, ip, "status", err)
	}
	if strings.TrimSpace(out) == "active" {
		return ServiceRunning, nil
	}
	return ServiceStopped, nil
}

func (s *ServiceControl) Start(clusterID, ip string) error {
	return s.transition(clusterID, ip, "start", ServiceRunning)
}

func (s *ServiceControl) Stop(clusterID, ip string) error {
	return s.transition(clusterID, ip, "stop", ServiceStopped)
}

func (s *ServiceControl) transition(clusterID, ip, action string, target ServiceState) error {
	state, err := s.Status(clusterID, ip)
	if err != nil {
		return err
	}
	if state == target {
		s.logger.Debugf("service %s on %s already %s", ServiceName(clusterID), ip, target)
		return nil
	}

	client, err := s.client(clusterID, ip, action)
	if err != nil {
		return err
	}
	if _, err := client.Run(fmt.Sprintf("systemctl %s %s", action, unitArg(clusterID))); err != nil {
		return newServiceControlError(clusterID, ip, action, err)
	}
	s.logger.Infof("service %s on %s: %s", ServiceName(clusterID), ip, action)
	return nil
}

// Remove disables the unit and deletes its file. An absent unit is fine.
func (s *ServiceControl) Remove(clusterID, ip string) error {
	client, err := s.client(clusterID, ip, "remove")
	if err != nil {
		return err
	}

	unit := s.layout.UnitFile(clusterID)
	cmd := fmt.Sprintf("systemctl disable %s >/dev/null 2>&1 || true; rm -f %s && systemctl daemon-reload",
		unitArg(clusterID), shellescape.Quote(unit))
	if _, err := client.Run(cmd); err != nil {
		return newServiceControlError(clusterID, ip, "remove", err)
	}
	return nil
}

// Install writes the unit file and makes systemd pick it up.
func (s *ServiceControl) Install(clusterID, ip string) error {
	client, err := s.client(clusterID, ip, "install")
	if err != nil {
		return err
	}

	unit := s.layout.UnitFile(clusterID)
	if err := client.DirCreate(path.Dir(unit)); err != nil {
		return newServiceControlError(clusterID, ip, "install", err)
	}
	if err := client.FileWrite(unit, RenderUnit(clusterID), os.FileMode(0o644)); err != nil {
		return newServiceControlError(clusterID, ip, "install", err)
	}
	if _, err := client.Run(fmt.Sprintf("systemctl daemon-reload && systemctl enable %s", unitArg(clusterID))); err != nil {
		return newServiceControlError(clusterID, ip, "install", err)
	}
	return nil
}

func unitArg(clusterID string) string {
	return shellescape.Quote(ServiceName(clusterID))
}
