package arakoon

import (
	"errors"
	"fmt"
	"strings"

	"arakoon-deploy-backend/internal/pkg/remote"
	"arakoon-deploy-backend/pkg/utils"
)

// ErrNoBytesRead is the transport failure of a member that is not listening
// yet. It is the only failure the readiness probe retries.
var ErrNoBytesRead = errors.New("no bytes read from socket")

// ErrInvalidClusterID rejects ids that are not safe as file, unit and
// command arguments on the members.
var ErrInvalidClusterID = errors.New("invalid cluster id")

// CheckClusterID validates a cluster id before it reaches any host.
func CheckClusterID(clusterID string) error {
	if err := utils.ValidateClusterID(clusterID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidClusterID, err)
	}
	return nil
}

type ConfigNotFoundError struct {
	ClusterID string
	Host      string
	Path      string
}

func (e *ConfigNotFoundError) Error() string {
	return fmt.Sprintf("configuration of cluster %s not found on %s (%s)", e.ClusterID, e.Host, e.Path)
}

type ConfigParseError struct {
	ClusterID string
	Section   string
	Option    string
	Err       error
}

func (e *ConfigParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "parse configuration of cluster %s", e.ClusterID)
	if e.Section != "" {
		fmt.Fprintf(&b, ": section %q", e.Section)
	}
	if e.Option != "" {
		fmt.Fprintf(&b, " option %q", e.Option)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigParseError) Unwrap() error { return e.Err }

type PortAllocationError struct {
	Host      string
	PortRange string
	Requested int
	Available int
}

func (e *PortAllocationError) Error() string {
	return fmt.Sprintf("unable to allocate %d free ports on %s in range %s (%d available)",
		e.Requested, e.Host, e.PortRange, e.Available)
}

type ServiceControlError struct {
	Cluster  string
	Host     string
	Action   string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ServiceControlError) Error() string {
	return fmt.Sprintf("%s %s on %s failed (exit %d): %v", e.Action, ServiceName(e.Cluster), e.Host, e.ExitCode, e.Err)
}

func (e *ServiceControlError) Unwrap() error { return e.Err }

func newServiceControlError(cluster, host, action string, err error) *ServiceControlError {
	sce := &ServiceControlError{
		Cluster:  cluster,
		Host:     host,
		Action:   action,
		ExitCode: -1,
		Err:      err,
	}
	var cmdErr *remote.CommandError
	if errors.As(err, &cmdErr) {
		sce.ExitCode = cmdErr.ExitCode
		sce.Stderr = cmdErr.Stderr
	}
	return sce
}

// ClusterUnavailableError is returned once the readiness probe has used up
// its attempts.
type ClusterUnavailableError struct {
	ClusterID string
	Attempts  int
	Err       error
}

func (e *ClusterUnavailableError) Error() string {
	return fmt.Sprintf("cluster %s unavailable after %d attempts: %v", e.ClusterID, e.Attempts, e.Err)
}

func (e *ClusterUnavailableError) Unwrap() error { return e.Err }

// ClusterError is a non-zero return code reported by a cluster member.
type ClusterError struct {
	Code    uint32
	Message string
}

func (e *ClusterError) Error() string {
	return fmt.Sprintf("cluster returned code 0x%02x: %s", e.Code, e.Message)
}
