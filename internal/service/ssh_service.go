package service

import (
	"fmt"
	"sync"

	"github.com/alessio/shellescape"

	"arakoon-deploy-backend/internal/config"
	"arakoon-deploy-backend/internal/model"
	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/ssh"
)

type commandRunner interface {
	ExecuteCommand(cmd string) (*ssh.CommandResult, error)
}

// hostCheck is one preflight probe. Informational checks never fail the host.
type hostCheck struct {
	name     string
	command  string
	required bool
	accept   func(out string) bool
}

// SSHService checks that a host is reachable and fit to run a cluster member.
type SSHService struct {
	checks []hostCheck
	logger *logger.Logger
}

func NewSSHService(cfg config.ArakoonConfig, logger *logger.Logger) *SSHService {
	nonEmpty := func(out string) bool { return out != "" }
	present := func(out string) bool { return out == "present" }

	return &SSHService{
		checks: []hostCheck{
			{name: "user", command: "whoami", accept: nonEmpty},
			{name: "system", command: "uname -a", accept: nonEmpty},
			// 集群成员需要 systemd 和引擎二进制
			{name: "systemd", command: "systemctl --version | head -n 1", required: true, accept: nonEmpty},
			{name: "engine binary", command: "test -x " + shellescape.Quote(cfg.EngineBinary) + " && echo present", required: true, accept: present},
			{name: "base directory", command: "test -d " + shellescape.Quote(cfg.BaseDir) + " && echo present", required: true, accept: present},
			{name: "service user", command: "id -u " + shellescape.Quote(cfg.OvsUser), required: true, accept: nonEmpty},
		},
		logger: logger,
	}
}

// preflight runs every check and reports whether all required ones passed.
func (s *SSHService) preflight(runner commandRunner) ([]string, bool) {
	details := []string{"✓ SSH connection established"}
	ready := true

	for _, check := range s.checks {
		result, err := runner.ExecuteCommand(check.command)
		if err == nil && result != nil && check.accept(result.Stdout) {
			details = append(details, fmt.Sprintf("✓ %s: %s", check.name, result.Stdout))
			continue
		}
		if check.required {
			ready = false
			details = append(details, fmt.Sprintf("✗ %s: not available", check.name))
		}
	}
	return details, ready
}

func (s *SSHService) TestConnection(req *model.SSHTestRequest) *model.SSHTestResponse {
	s.logger.SSHConnectionAttempt("single", req.IP)

	client := ssh.NewClient(ssh.Config{
		Host:       req.IP,
		Port:       req.Port,
		Username:   req.Username,
		AuthType:   req.AuthType,
		Password:   req.Password,
		PrivateKey: req.PrivateKey,
		Passphrase: req.Passphrase,
	})
	if err := client.Connect(); err != nil {
		s.logger.Errorf("SSH connection failed for %s: %v", req.IP, err)
		return &model.SSHTestResponse{
			Success: false,
			Message: "SSH connection failed",
			Details: []string{"✗ SSH connection test failed", fmt.Sprintf("error: %s", err)},
		}
	}
	defer client.Close()

	details, ready := s.preflight(client)
	if !ready {
		s.logger.Warnf("host %s is reachable but not ready for a cluster member", req.IP)
		return &model.SSHTestResponse{
			Success: false,
			Message: "host is not ready to run a cluster member",
			Details: details,
		}
	}

	s.logger.Infof("SSH connection successful for %s", req.IP)
	return &model.SSHTestResponse{
		Success: true,
		Message: "SSH connection successful",
		Details: details,
	}
}

func (s *SSHService) BatchTestConnection(req *model.BatchSSHTestRequest) []*model.SSHTestResponse {
	s.logger.SSHConnectionAttempt("batch", fmt.Sprintf("%d nodes", len(req.Nodes)))

	results := make([]*model.SSHTestResponse, len(req.Nodes))
	var wg sync.WaitGroup

	for i, node := range req.Nodes {
		wg.Add(1)
		go func(index int, n model.BatchNodeRequest) {
			defer wg.Done()

			result := s.TestConnection(&model.SSHTestRequest{
				IP:         n.IP,
				Port:       n.Port,
				Username:   n.Username,
				AuthType:   n.AuthType,
				Password:   n.Password,
				PrivateKey: n.PrivateKey,
				Passphrase: n.Passphrase,
			})
			result.ID = n.ID
			results[index] = result
		}(i, node)
	}

	wg.Wait()
	return results
}
