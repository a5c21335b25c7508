package arakoon

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"syscall"
	"time"

	"arakoon-deploy-backend/internal/pkg/remote"
)

const (
	protocolMagic   uint32 = 0xb1ff0000
	protocolVersion uint32 = 0x00000001

	opNop uint32 = 0x00000041

	codeNotMaster uint32 = 0x04
)

// ClusterClient talks to a live cluster.
type ClusterClient interface {
	Nop(ctx context.Context) error
}

// ClientFactory resolves a cluster id to a client.
type ClientFactory interface {
	GetCluster(clusterID string) (ClusterClient, error)
}

// TCPClientFactory reads the member list from the management host and speaks
// the Arakoon client protocol to the members.
type TCPClientFactory struct {
	remotes      remote.Factory
	layout       Layout
	managementIP string
	user         string
	dialTimeout  time.Duration
}

func NewTCPClientFactory(remotes remote.Factory, layout Layout, managementIP, user string, dialTimeout time.Duration) *TCPClientFactory {
	return &TCPClientFactory{
		remotes:      remotes,
		layout:       layout,
		managementIP: managementIP,
		user:         user,
		dialTimeout:  dialTimeout,
	}
}

func (f *TCPClientFactory) GetCluster(clusterID string) (ClusterClient, error) {
	client, err := f.remotes.Open(f.managementIP, f.user)
	if err != nil {
		return nil, err
	}
	config, err := LoadConfig(client, f.layout, clusterID)
	if err != nil {
		return nil, err
	}
	return NewTCPClusterClient(clusterID, config.SortedNodes(), f.dialTimeout), nil
}

type TCPClusterClient struct {
	clusterID   string
	nodes       []NodeConfig
	dialTimeout time.Duration
}

func NewTCPClusterClient(clusterID string, nodes []NodeConfig, dialTimeout time.Duration) *TCPClusterClient {
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}
	return &TCPClusterClient{clusterID: clusterID, nodes: nodes, dialTimeout: dialTimeout}
}

// Nop sends a no-op to the first member that accepts it. Members that are
// not listening, or are not the master, are skipped.
func (c *TCPClusterClient) Nop(ctx context.Context) error {
	if len(c.nodes) == 0 {
		return fmt.Errorf("cluster %s has no members", c.clusterID)
	}

	var transportErr, lastErr error
	for _, node := range c.nodes {
		err := c.nop(ctx, node)
		if err == nil {
			return nil
		}
		lastErr = err

		var clusterErr *ClusterError
		switch {
		case errors.Is(err, ErrNoBytesRead):
			transportErr = err
		case errors.As(err, &clusterErr) && clusterErr.Code == codeNotMaster:
		default:
			return err
		}
	}

	if transportErr != nil {
		return transportErr
	}
	return lastErr
}

func (c *TCPClusterClient) nop(ctx context.Context, node NodeConfig) error {
	addr := net.JoinHostPort(node.IP, strconv.Itoa(node.ClientPort))

	dialer := net.Dialer{Timeout: c.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return classify(addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.dialTimeout))
	}

	request := prologue(c.clusterID)
	request = binary.LittleEndian.AppendUint32(request, protocolMagic|opNop)
	if _, err := conn.Write(request); err != nil {
		return classify(addr, err)
	}

	code, err := readUint32(conn)
	if err != nil {
		return classify(addr, err)
	}
	if code == 0 {
		return nil
	}

	msg, err := readString(conn)
	if err != nil {
		msg = ""
	}
	return &ClusterError{Code: code, Message: msg}
}

func prologue(clusterID string) []byte {
	buf := make([]byte, 0, 12+len(clusterID))
	buf = binary.LittleEndian.AppendUint32(buf, protocolMagic)
	buf = binary.LittleEndian.AppendUint32(buf, protocolVersion)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(clusterID)))
	return append(buf, clusterID...)
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readString(r io.Reader) (string, error) {
	n, err := readUint32(r)
	if err != nil {
		return "", err
	}
	if n > 1<<20 {
		return "", fmt.Errorf("string of %d bytes too large", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// classify maps "member not listening yet" failures onto ErrNoBytesRead.
func classify(addr string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("%s: %w (%v)", addr, ErrNoBytesRead, err)
	}
	return fmt.Errorf("%s: %w", addr, err)
}
