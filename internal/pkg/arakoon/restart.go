package arakoon

import (
	"context"
	"fmt"

	"arakoon-deploy-backend/internal/pkg/logger"
)

type NodeState string

const (
	NodeRunning  NodeState = "running"
	NodeStopping NodeState = "stopping"
	NodeStopped  NodeState = "stopped"
	NodeStarting NodeState = "starting"
)

// Catcher brings a joining node's transaction log up to date.
type Catcher interface {
	CatchupNode(ctx context.Context, clusterID, ip string) error
}

// Sequencer restarts the members of a cluster one at a time so that at most
// one voting member is down at any moment. Any failure stops the sequence;
// the remaining members are left untouched.
type Sequencer struct {
	services Services
	waiter   Waiter
	catcher  Catcher
	logger   *logger.Logger
}

func NewSequencer(services Services, waiter Waiter, catcher Catcher, logger *logger.Logger) *Sequencer {
	return &Sequencer{
		services: services,
		waiter:   waiter,
		catcher:  catcher,
		logger:   logger,
	}
}

// RestartAfterAdd restarts currentIPs after newIP joined the cluster, then
// starts newIP itself.
func (s *Sequencer) RestartAfterAdd(ctx context.Context, clusterID string, currentIPs []string, newIP string) error {
	if err := CheckClusterID(clusterID); err != nil {
		return err
	}
	s.logger.Infof("restarting cluster %s after adding %s (members %v)", clusterID, newIP, currentIPs)

	if err := s.catcher.CatchupNode(ctx, clusterID, newIP); err != nil {
		return fmt.Errorf("catch up %s: %w", newIP, err)
	}

	// A joining address that is already listed replaces a member, which
	// needs the stricter check.
	threshold := 1
	for _, ip := range currentIPs {
		if ip == newIP {
			threshold = 2
			break
		}
	}

	for _, ip := range currentIPs {
		if ip == newIP {
			continue
		}
		if err := s.restartNode(clusterID, ip); err != nil {
			return err
		}
		if len(currentIPs) > threshold {
			if err := s.wait(ctx, clusterID, ip); err != nil {
				return err
			}
		}
	}

	s.logger.NodeState(clusterID, newIP, string(NodeStarting))
	if err := s.services.Start(clusterID, newIP); err != nil {
		return err
	}
	s.logger.NodeState(clusterID, newIP, string(NodeRunning))

	return s.wait(ctx, clusterID, newIP)
}

// RestartAfterRemove restarts every remaining member. Clusters of more than
// two members are probed before the next member goes down; a two member
// cluster has no spare member to lose anyway.
func (s *Sequencer) RestartAfterRemove(ctx context.Context, clusterID string, remainingIPs []string) error {
	if err := CheckClusterID(clusterID); err != nil {
		return err
	}
	s.logger.Infof("restarting cluster %s after removal (members %v)", clusterID, remainingIPs)

	for i, ip := range remainingIPs {
		if err := s.restartNode(clusterID, ip); err != nil {
			return err
		}
		if len(remainingIPs) > 2 && i < len(remainingIPs)-1 {
			if err := s.wait(ctx, clusterID, ip); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sequencer) restartNode(clusterID, ip string) error {
	s.logger.NodeState(clusterID, ip, string(NodeStopping))
	if err := s.services.Stop(clusterID, ip); err != nil {
		return err
	}
	s.logger.NodeState(clusterID, ip, string(NodeStopped))

	s.logger.NodeState(clusterID, ip, string(NodeStarting))
	if err := s.services.Start(clusterID, ip); err != nil {
		return err
	}
	s.logger.NodeState(clusterID, ip, string(NodeRunning))
	return nil
}

func (s *Sequencer) wait(ctx context.Context, clusterID, after string) error {
	if err := s.waiter.WaitForCluster(ctx, clusterID); err != nil {
		return fmt.Errorf("wait for cluster %s after restarting %s: %w", clusterID, after, err)
	}
	return nil
}
