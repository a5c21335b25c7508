package arakoon

import (
	"fmt"
	"path"
	"strings"
)

const (
	DefaultConfigRoot = "/opt/OpenvStorage/config/arakoon"
	DefaultLogRoot    = "/var/log/arakoon"
	DefaultUnitDir    = "/etc/systemd/system"
)

// Layout decides where a cluster's files live on every member.
type Layout struct {
	ConfigRoot string
	LogRoot    string
	UnitDir    string
}

func DefaultLayout() Layout {
	return Layout{
		ConfigRoot: DefaultConfigRoot,
		LogRoot:    DefaultLogRoot,
		UnitDir:    DefaultUnitDir,
	}
}

func (l Layout) ConfigDir(clusterID string) string {
	return path.Join(l.ConfigRoot, clusterID)
}

func (l Layout) ConfigFile(clusterID string) string {
	return path.Join(l.ConfigRoot, clusterID, clusterID+".cfg")
}

func (l Layout) LogDir(clusterID string) string {
	return path.Join(l.LogRoot, clusterID)
}

// HomeDir and TLogDir live below the database location of the host.
func (l Layout) HomeDir(baseDir, clusterID string) string {
	return path.Join(strings.TrimRight(baseDir, "/"), "arakoon", clusterID)
}

func (l Layout) TLogDir(baseDir, clusterID string) string {
	return path.Join(strings.TrimRight(baseDir, "/"), "tlogs", clusterID)
}

func (l Layout) UnitFile(clusterID string) string {
	return path.Join(l.UnitDir, ServiceName(clusterID)+".service")
}

// ServiceName is the systemd unit name of a cluster's service.
func ServiceName(clusterID string) string {
	return fmt.Sprintf("arakoon-%s", clusterID)
}
