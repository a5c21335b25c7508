package ssh

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

const (
	defaultPort    = 22
	defaultTimeout = 30 * time.Second
)

var errNotConnected = errors.New("ssh connection not established")

// Config describes how to reach one host.
type Config struct {
	Host       string
	Port       int
	Username   string
	AuthType   string // "password" or "key"
	Password   string
	PrivateKey string
	Passphrase string
	Timeout    time.Duration
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

func (c Config) authMethods() ([]ssh.AuthMethod, error) {
	switch c.AuthType {
	case "password":
		return []ssh.AuthMethod{ssh.Password(c.Password)}, nil
	case "key":
		var (
			signer ssh.Signer
			err    error
		)
		if c.Passphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase([]byte(c.PrivateKey), []byte(c.Passphrase))
		} else {
			signer, err = ssh.ParsePrivateKey([]byte(c.PrivateKey))
		}
		if err != nil {
			return nil, errors.Wrap(err, "parse private key")
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", c.AuthType)
	}
}

// Client is a single connection. Callers open one per operation and close it
// when the operation ends.
type Client struct {
	config Config
	conn   *ssh.Client
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func NewClient(config Config) *Client {
	if config.Port == 0 {
		config.Port = defaultPort
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &Client{config: config}
}

func (c *Client) Connect() error {
	auth, err := c.config.authMethods()
	if err != nil {
		return err
	}

	conn, err := ssh.Dial("tcp", c.config.addr(), &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            auth,
		Timeout:         c.config.Timeout,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // 注意：生产环境应该验证主机密钥
	})
	if err != nil {
		return errors.Wrapf(err, "ssh dial %s@%s", c.config.Username, c.config.addr())
	}
	c.conn = conn
	return nil
}

func (c *Client) session() (*ssh.Session, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}
	s, err := c.conn.NewSession()
	if err != nil {
		return nil, errors.Wrap(err, "create ssh session")
	}
	return s, nil
}

// ExecuteCommand runs cmd in a fresh session. A non-zero exit status is
// reported both through the returned result and as an error.
func (c *Client) ExecuteCommand(cmd string) (*CommandResult, error) {
	session, err := c.session()
	if err != nil {
		return nil, err
	}
	defer session.Close()

	var stdout, stderr strings.Builder
	session.Stdout = &stdout
	session.Stderr = &stderr

	runErr := session.Run(cmd)
	result := &CommandResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if runErr == nil {
		return result, nil
	}

	result.ExitCode = 1
	var exitErr *ssh.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
	}
	return result, errors.Wrapf(runErr, "run %q", cmd)
}

// UploadFile streams content into remotePath through `cat`.
func (c *Client) UploadFile(content, remotePath string) error {
	session, err := c.session()
	if err != nil {
		return err
	}
	defer session.Close()

	stdin, err := session.StdinPipe()
	if err != nil {
		return err
	}
	var stderr strings.Builder
	session.Stderr = &stderr

	if err := session.Start("cat > " + shellescape.Quote(remotePath)); err != nil {
		return err
	}
	if _, err := io.WriteString(stdin, content); err != nil {
		return err
	}
	stdin.Close()

	if err := session.Wait(); err != nil {
		return errors.Wrapf(err, "upload %s: %s", remotePath, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
