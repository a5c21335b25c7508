package utils

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

func ValidateIP(ip string) error {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return fmt.Errorf("invalid IPv4 address: %q", ip)
	}
	return nil
}

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be within 1-65535: %d", port)
	}
	return nil
}

// ValidateClusterID accepts names that are safe to use as a directory and a
// systemd unit suffix.
func ValidateClusterID(id string) error {
	if id == "" {
		return fmt.Errorf("cluster id must not be empty")
	}

	if len(id) > 63 {
		return fmt.Errorf("cluster id must not exceed 63 characters")
	}

	for _, char := range id {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_') {
			return fmt.Errorf("cluster id may only contain letters, digits, '-' and '_': %s", id)
		}
	}

	if strings.HasPrefix(id, "-") {
		return fmt.Errorf("cluster id must not start with '-': %s", id)
	}

	return nil
}

// ParsePortRange parses "26400-26499" or "26400-26410,26500" into the
// ordered list of ports it covers.
func ParsePortRange(ranges string) ([]int, error) {
	var ports []int
	seen := make(map[int]struct{})

	for _, part := range strings.Split(ranges, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		low, high := part, part
		if idx := strings.Index(part, "-"); idx >= 0 {
			low, high = strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+1:])
		}

		start, err := ParseNodePort(low)
		if err != nil {
			return nil, err
		}
		end, err := ParseNodePort(high)
		if err != nil {
			return nil, err
		}
		if end < start {
			return nil, fmt.Errorf("invalid port range %q", part)
		}

		for p := start; p <= end; p++ {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			ports = append(ports, p)
		}
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("empty port range %q", ranges)
	}
	return ports, nil
}

func ParseNodePort(nodePort string) (int, error) {
	port, err := strconv.Atoi(nodePort)
	if err != nil {
		return 0, fmt.Errorf("parse port: %v", err)
	}

	if err := ValidatePort(port); err != nil {
		return 0, err
	}

	return port, nil
}
