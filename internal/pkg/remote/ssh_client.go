package remote

import (
	"fmt"
	"os"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"arakoon-deploy-backend/internal/pkg/ssh"
)

type sshClient struct {
	ip          string
	user        string
	credentials Credentials
	logger      *zap.Logger
}

func (c *sshClient) IP() string    { return c.ip }
func (c *sshClient) User() string  { return c.user }
func (c *sshClient) IsLocal() bool { return false }

// connect opens a connection that lives for exactly one operation.
func (c *sshClient) connect(fn func(*ssh.Client) error) error {
	client := ssh.NewClient(ssh.Config{
		Host:       c.ip,
		Port:       c.credentials.Port,
		Username:   c.user,
		AuthType:   c.credentials.AuthType,
		Password:   c.credentials.Password,
		PrivateKey: c.credentials.PrivateKey,
		Passphrase: c.credentials.Passphrase,
		Timeout:    c.credentials.Timeout,
	})

	if err := client.Connect(); err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

func (c *sshClient) Run(command string) (string, error) {
	var stdout string
	err := c.connect(func(client *ssh.Client) error {
		c.logger.Debug("remote run", zap.String("host", c.ip), zap.String("user", c.user), zap.String("command", command))

		result, err := client.ExecuteCommand(command)
		if err != nil {
			if result == nil {
				return err
			}
			return &CommandError{
				Host:     c.ip,
				Command:  command,
				ExitCode: result.ExitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			}
		}
		stdout = result.Stdout
		return nil
	})
	return stdout, err
}

func (c *sshClient) FileRead(path string) (string, error) {
	return c.Run(fmt.Sprintf("cat %s", shellescape.Quote(path)))
}

func (c *sshClient) FileWrite(path, content string, mode os.FileMode) error {
	return c.connect(func(client *ssh.Client) error {
		if err := client.UploadFile(content, path); err != nil {
			return err
		}
		cmd := fmt.Sprintf("chmod %04o %s", mode.Perm(), shellescape.Quote(path))
		if _, err := client.ExecuteCommand(cmd); err != nil {
			return errors.Wrapf(err, "chmod %s", path)
		}
		return nil
	})
}

func (c *sshClient) FileExists(path string) (bool, error) {
	out, err := c.Run(fmt.Sprintf("[ -f %s ] && echo TRUE || echo FALSE", shellescape.Quote(path)))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) == "TRUE", nil
}

func (c *sshClient) FileUpload(localPath, remotePath string) error {
	content, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrapf(err, "read %s", localPath)
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return errors.Wrapf(err, "stat %s", localPath)
	}
	return c.FileWrite(remotePath, string(content), info.Mode())
}

func (c *sshClient) FileRename(src, dst string) error {
	_, err := c.Run(fmt.Sprintf("mv -f %s %s", shellescape.Quote(src), shellescape.Quote(dst)))
	return err
}

func (c *sshClient) DirCreate(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.Run("mkdir -p " + quoteAll(paths))
	return err
}

func (c *sshClient) DirChmod(paths []string, mode os.FileMode, recursive bool) error {
	if len(paths) == 0 {
		return nil
	}
	flag := ""
	if recursive {
		flag = "-R "
	}
	_, err := c.Run(fmt.Sprintf("chmod %s%04o %s", flag, mode.Perm(), quoteAll(paths)))
	return err
}

func (c *sshClient) DirChown(paths []string, owner, group string, recursive bool) error {
	if len(paths) == 0 {
		return nil
	}
	flag := ""
	if recursive {
		flag = "-R "
	}
	_, err := c.Run(fmt.Sprintf("chown %s%s %s", flag, shellescape.Quote(owner+":"+group), quoteAll(paths)))
	return err
}

func (c *sshClient) DirDelete(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.Run("rm -rf " + quoteAll(paths))
	return err
}

func quoteAll(paths []string) string {
	return shellescape.QuoteCommand(paths)
}
