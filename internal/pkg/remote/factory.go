package remote

import (
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"arakoon-deploy-backend/pkg/utils"
)

// Credentials are shared by every SSH connection the factory opens.
type Credentials struct {
	Port       int
	AuthType   string
	Password   string
	PrivateKey string
	Passphrase string
	Timeout    time.Duration
}

type HostFactory struct {
	credentials Credentials
	localIPs    map[string]struct{}
	logger      *zap.Logger
}

// NewHostFactory builds a factory. localIPs is the lookup table deciding
// which hosts take the in-process path; see LocalIPs.
func NewHostFactory(credentials Credentials, localIPs []string, logger *zap.Logger) *HostFactory {
	table := make(map[string]struct{}, len(localIPs))
	for _, ip := range localIPs {
		table[ip] = struct{}{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HostFactory{
		credentials: credentials,
		localIPs:    table,
		logger:      logger,
	}
}

func (f *HostFactory) Open(ip, user string) (Client, error) {
	if err := utils.ValidateIP(ip); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIP, err)
	}

	if _, ok := f.localIPs[ip]; ok {
		return &localClient{ip: ip, user: user}, nil
	}

	return &sshClient{
		ip:          ip,
		user:        user,
		credentials: f.credentials,
		logger:      f.logger,
	}, nil
}

// LocalIPs lists the IPv4 addresses of the local network interfaces.
func LocalIPs() ([]string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}

	var ips []string
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip == nil || ip.To4() == nil {
			continue
		}
		ips = append(ips, ip.String())
	}
	return ips, nil
}
