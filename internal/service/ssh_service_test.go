package service

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/ssh"
)

type cannedRunner map[string]string

func (r cannedRunner) ExecuteCommand(cmd string) (*ssh.CommandResult, error) {
	for prefix, out := range r {
		if strings.HasPrefix(cmd, prefix) {
			return &ssh.CommandResult{Stdout: out}, nil
		}
	}
	return &ssh.CommandResult{ExitCode: 1}, errors.New("exit status 1")
}

func newTestSSHService(t *testing.T) *SSHService {
	return NewSSHService(config.ArakoonConfig{
		EngineBinary: "/usr/bin/arakoon",
		BaseDir:      "/mnt/db",
		OvsUser:      "ovs",
	}, logger.New(zaptest.NewLogger(t)))
}

func TestPreflightReady(t *testing.T) {
	s := newTestSSHService(t)

	details, ready := s.preflight(cannedRunner{
		"whoami":    "root",
		"uname":     "Linux node1",
		"systemctl": "systemd 249",
		"test -x":   "present",
		"test -d":   "present",
		"id -u":     "1001",
	})
	require.True(t, ready)
	assert.Equal(t, []string{
		"✓ SSH connection established",
		"✓ user: root",
		"✓ system: Linux node1",
		"✓ systemd: systemd 249",
		"✓ engine binary: present",
		"✓ base directory: present",
		"✓ service user: 1001",
	}, details)
}

func TestPreflightMissingEngine(t *testing.T) {
	s := newTestSSHService(t)

	details, ready := s.preflight(cannedRunner{
		"systemctl": "systemd 249",
		"test -d":   "present",
		"id -u":     "1001",
	})
	assert.False(t, ready)
	assert.Contains(t, details, "✗ engine binary: not available")
	// informational checks are silently skipped
	for _, d := range details {
		assert.NotContains(t, d, "✓ user:")
	}
}

func TestTestConnectionUnreachable(t *testing.T) {
	s := newTestSSHService(t)

	resp := s.TestConnection(&model.SSHTestRequest{
		IP:       "127.0.0.1",
		Port:     1,
		Username: "root",
		AuthType: "password",
	})
	assert.False(t, resp.Success)
	assert.Equal(t, "SSH connection failed", resp.Message)
}
