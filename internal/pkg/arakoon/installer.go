package arakoon

import (
	"context"
	"fmt"
	"os"

	"github.com/alessio/shellescape"
	"go.uber.org/multierr"

	"arakoon-deploy-backend/internal/pkg/logger"
	"arakoon-deploy-backend/internal/pkg/remote"
)

const (
	StepWriteConfig    = "write-config"
	StepCreateDirs     = "create-dirs"
	StepInstallService = "install-service"
)

type InstallerConfig struct {
	Layout Layout
	// BaseDir is the database location holding the home and tlog dirs.
	BaseDir      string
	PortRange    string
	OvsUser      string
	RootUser     string
	EngineBinary string
}

type Ports struct {
	ClientPort    int `json:"clientPort"`
	MessagingPort int `json:"messagingPort"`
}

// StepResult is the outcome of one deploy sub-step on one member.
type StepResult struct {
	Node string `json:"node"`
	IP   string `json:"ip"`
	Step string `json:"step"`
	Err  error  `json:"-"`
}

func (r StepResult) Succeeded() bool { return r.Err == nil }

// DeployReport lists the sub-steps a deploy attempted, in order. Deploy is
// not transactional; a failed report tells which members were updated.
type DeployReport struct {
	ClusterID string       `json:"clusterId"`
	Steps     []StepResult `json:"steps"`
}

func (r *DeployReport) Failed() (StepResult, bool) {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s, true
		}
	}
	return StepResult{}, false
}

func (r *DeployReport) record(node NodeConfig, step string, err error) error {
	r.Steps = append(r.Steps, StepResult{Node: node.Name, IP: node.IP, Step: step, Err: err})
	if err != nil {
		return fmt.Errorf("deploy %s to %s (%s): %s: %w", r.ClusterID, node.Name, node.IP, step, err)
	}
	return nil
}

// Installer creates, extends, shrinks and deletes clusters.
type Installer struct {
	remotes  remote.Factory
	services Services
	cfg      InstallerConfig
	logger   *logger.Logger
}

func NewInstaller(remotes remote.Factory, services Services, cfg InstallerConfig, logger *logger.Logger) *Installer {
	return &Installer{
		remotes:  remotes,
		services: services,
		cfg:      cfg,
		logger:   logger,
	}
}

func (i *Installer) Layout() Layout { return i.cfg.Layout }

func (i *Installer) open(ip string) (remote.Client, error) {
	return i.remotes.Open(ip, i.cfg.OvsUser)
}

// Load reads the configuration of clusterID from ip.
func (i *Installer) Load(clusterID, ip string) (*ClusterConfig, error) {
	if err := CheckClusterID(clusterID); err != nil {
		return nil, err
	}
	client, err := i.open(ip)
	if err != nil {
		return nil, err
	}
	return LoadConfig(client, i.cfg.Layout, clusterID)
}

// newNode allocates ports on the host behind client and describes it as a
// member of clusterID.
func (i *Installer) newNode(client remote.Client, clusterID, name string, excludePorts []int) (NodeConfig, error) {
	ports, err := FreePorts(client, i.cfg.PortRange, excludePorts, 2)
	if err != nil {
		return NodeConfig{}, err
	}
	return NewNodeConfig(name, client.IP(), ports[0], ports[1],
		i.cfg.Layout.LogDir(clusterID),
		i.cfg.Layout.HomeDir(i.cfg.BaseDir, clusterID),
		i.cfg.Layout.TLogDir(i.cfg.BaseDir, clusterID),
	), nil
}

// CreateCluster sets up a single member cluster on ip.
func (i *Installer) CreateCluster(clusterID, ip string, excludePorts []int, plugins []string) (Ports, error) {
	if err := CheckClusterID(clusterID); err != nil {
		return Ports{}, err
	}
	i.logger.DeploymentStep("create-cluster", ip)

	client, err := i.open(ip)
	if err != nil {
		return Ports{}, err
	}
	name, err := MachineID(client)
	if err != nil {
		return Ports{}, err
	}
	node, err := i.newNode(client, clusterID, name, excludePorts)
	if err != nil {
		return Ports{}, err
	}

	config := NewClusterConfig(i.cfg.Layout, clusterID, plugins)
	config.AddNode(node)

	if _, err := i.Deploy(config); err != nil {
		return Ports{}, err
	}

	i.logger.Infof("cluster %s created on %s as %s (ports %d/%d)", clusterID, ip, name, node.ClientPort, node.MessagingPort)
	return Ports{ClientPort: node.ClientPort, MessagingPort: node.MessagingPort}, nil
}

// ExtendCluster adds newIP to the cluster known by masterIP and redeploys
// every member, since the member list changed for all of them.
func (i *Installer) ExtendCluster(masterIP, newIP, clusterID string, excludePorts []int) (Ports, error) {
	i.logger.DeploymentStep("extend-cluster", newIP)

	config, err := i.Load(clusterID, masterIP)
	if err != nil {
		return Ports{}, err
	}

	client, err := i.open(newIP)
	if err != nil {
		return Ports{}, err
	}
	name, err := MachineID(client)
	if err != nil {
		return Ports{}, err
	}

	node, known := config.Node(name)
	if known {
		if node.IP != newIP {
			i.logger.Infof("member %s of %s moved from %s to %s", name, clusterID, node.IP, newIP)
			node.IP = newIP
			config.AddNode(node)
		}
	} else {
		if node, err = i.newNode(client, clusterID, name, excludePorts); err != nil {
			return Ports{}, err
		}
		config.AddNode(node)
	}

	if _, err := i.Deploy(config); err != nil {
		return Ports{}, err
	}
	return Ports{ClientPort: node.ClientPort, MessagingPort: node.MessagingPort}, nil
}

// ShrinkCluster removes deletedIP from the cluster. The departed host keeps
// a copy of the new configuration as a slave.
func (i *Installer) ShrinkCluster(remainingIP, deletedIP, clusterID string) error {
	i.logger.DeploymentStep("shrink-cluster", deletedIP)

	config, err := i.Load(clusterID, remainingIP)
	if err != nil {
		return err
	}

	removed := config.RemoveNodesByIP(deletedIP)
	if len(removed) == 0 {
		i.logger.Warnf("%s is not a member of cluster %s", deletedIP, clusterID)
	}
	for _, node := range removed {
		if err := i.destroyNode(config, node); err != nil {
			return err
		}
	}

	if _, err := i.Deploy(config); err != nil {
		return err
	}
	return i.DeployToSlave(remainingIP, deletedIP, clusterID)
}

// DeleteCluster tears down every member. A member that fails does not stop
// the others; all failures are returned together.
func (i *Installer) DeleteCluster(clusterID, ip string) error {
	i.logger.DeploymentStep("delete-cluster", ip)

	config, err := i.Load(clusterID, ip)
	if err != nil {
		return err
	}

	var errs error
	for _, node := range config.SortedNodes() {
		if err := i.destroyNode(config, node); err != nil {
			i.logger.DeploymentError("destroy-node", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

// destroyNode removes the service, the directories and the configuration of
// one member.
func (i *Installer) destroyNode(config *ClusterConfig, node NodeConfig) error {
	clusterID := config.ClusterID()
	i.logger.DeploymentStep("destroy-node", node.IP)

	if err := i.services.Stop(clusterID, node.IP); err != nil {
		return err
	}
	if err := i.services.Remove(clusterID, node.IP); err != nil {
		return err
	}

	client, err := i.open(node.IP)
	if err != nil {
		return err
	}
	if err := client.DirDelete(node.Dirs()...); err != nil {
		return fmt.Errorf("delete directories of %s on %s: %w", node.Name, node.IP, err)
	}
	return config.DeleteConfig(client)
}

// Deploy distributes the configuration, directories and service unit to
// every member in name order. It stops at the first failing sub-step.
// Every sub-step is idempotent, so a failed deploy is retried by running it
// again.
func (i *Installer) Deploy(config *ClusterConfig) (*DeployReport, error) {
	report := &DeployReport{ClusterID: config.ClusterID()}

	for _, node := range config.SortedNodes() {
		i.logger.DeploymentStep("deploy", node.IP)

		if err := report.record(node, StepWriteConfig, i.writeConfig(config, node)); err != nil {
			return report, err
		}
		if err := report.record(node, StepCreateDirs, i.createDirs(node)); err != nil {
			return report, err
		}
		if err := report.record(node, StepInstallService, i.services.Install(config.ClusterID(), node.IP)); err != nil {
			return report, err
		}
	}

	i.logger.DeploymentSuccess("deploy " + config.ClusterID())
	return report, nil
}

func (i *Installer) writeConfig(config *ClusterConfig, node NodeConfig) error {
	client, err := i.open(node.IP)
	if err != nil {
		return err
	}
	return config.WriteConfig(client)
}

// createDirs runs as root since the database mountpoint is typically owned
// by root, then hands the directories to the service user.
func (i *Installer) createDirs(node NodeConfig) error {
	root, err := i.remotes.Open(node.IP, i.cfg.RootUser)
	if err != nil {
		return err
	}
	dirs := node.Dirs()
	if err := root.DirCreate(dirs...); err != nil {
		return err
	}
	if err := root.DirChmod(dirs, os.FileMode(0o755), true); err != nil {
		return err
	}
	return root.DirChown(dirs, i.cfg.OvsUser, i.cfg.OvsUser, true)
}

// DeployToSlave copies the configuration known by masterIP to slaveIP.
func (i *Installer) DeployToSlave(masterIP, slaveIP, clusterID string) error {
	config, err := i.Load(clusterID, masterIP)
	if err != nil {
		return err
	}
	client, err := i.open(slaveIP)
	if err != nil {
		return err
	}
	return config.WriteConfig(client)
}

// RemoveFromSlave deletes the configuration copy held by slaveIP.
func (i *Installer) RemoveFromSlave(masterIP, slaveIP, clusterID string) error {
	config, err := i.Load(clusterID, masterIP)
	if err != nil {
		return err
	}
	client, err := i.open(slaveIP)
	if err != nil {
		return err
	}
	return config.DeleteConfig(client)
}

// CatchupNode replays the cluster's history onto the member at ip before it
// is allowed to vote.
func (i *Installer) CatchupNode(ctx context.Context, clusterID, ip string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := CheckClusterID(clusterID); err != nil {
		return err
	}

	client, err := i.open(ip)
	if err != nil {
		return err
	}
	config, err := LoadConfig(client, i.cfg.Layout, clusterID)
	if err != nil {
		return err
	}

	var name string
	for _, n := range config.Nodes {
		if n.IP == ip {
			name = n.Name
			break
		}
	}
	if name == "" {
		return fmt.Errorf("%s is not a member of cluster %s", ip, clusterID)
	}

	i.logger.DeploymentStep("catchup", ip)
	cmd := fmt.Sprintf("%s --node %s -config %s -catchup-only",
		shellescape.Quote(i.cfg.EngineBinary), shellescape.Quote(name), shellescape.Quote(config.Filename()))
	if _, err := client.Run(cmd); err != nil {
		return fmt.Errorf("catch up %s on %s: %w", name, ip, err)
	}
	return nil
}
