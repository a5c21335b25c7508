package arakoon

import (
	"fmt"
	"strconv"
	"strings"

	"arakoon-deploy-backend/internal/pkg/remote"
	"arakoon-deploy-backend/pkg/utils"
)

const (
	machineIDCommand = `ip a | grep link/ether | sed 's/\s\s*/ /g' | cut -d ' ' -f 3 | sed 's/://g' | sort | head -n 1`
	listeningCommand = `ss -ltnH 2>/dev/null || netstat -ltn | tail -n +3`
)

// MachineID derives a host's stable identifier from its hardware address.
func MachineID(client remote.Client) (string, error) {
	out, err := client.Run(machineIDCommand)
	if err != nil {
		return "", fmt.Errorf("read machine id of %s: %w", client.IP(), err)
	}
	id := strings.ToLower(strings.TrimSpace(out))
	if id == "" {
		return "", fmt.Errorf("no hardware address found on %s", client.IP())
	}
	return id, nil
}

// ListeningPorts returns the TCP ports a host is listening on.
func ListeningPorts(client remote.Client) (map[int]struct{}, error) {
	out, err := client.Run(listeningCommand)
	if err != nil {
		return nil, fmt.Errorf("list listening ports on %s: %w", client.IP(), err)
	}

	ports := make(map[int]struct{})
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		local := fields[3]
		idx := strings.LastIndex(local, ":")
		if idx < 0 {
			continue
		}
		if p, err := strconv.Atoi(local[idx+1:]); err == nil {
			ports[p] = struct{}{}
		}
	}
	return ports, nil
}

// FreePorts picks the first count ports of portRange that are neither
// excluded nor in use on the host.
func FreePorts(client remote.Client, portRange string, exclude []int, count int) ([]int, error) {
	candidates, err := utils.ParsePortRange(portRange)
	if err != nil {
		return nil, err
	}

	used, err := ListeningPorts(client)
	if err != nil {
		return nil, err
	}
	for _, p := range exclude {
		used[p] = struct{}{}
	}

	var free []int
	for _, p := range candidates {
		if _, taken := used[p]; taken {
			continue
		}
		free = append(free, p)
		if len(free) == count {
			return free, nil
		}
	}

	return nil, &PortAllocationError{
		Host:      client.IP(),
		PortRange: portRange,
		Requested: count,
		Available: len(free),
	}
}
