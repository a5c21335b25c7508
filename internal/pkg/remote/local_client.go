package remote

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
)

// localClient serves hosts that resolve to this machine. It never connects;
// the user is recorded but commands run as the current process identity.
type localClient struct {
	ip   string
	user string
}

func (c *localClient) IP() string    { return c.ip }
func (c *localClient) User() string  { return c.user }
func (c *localClient) IsLocal() bool { return true }

func (c *localClient) Run(command string) (string, error) {
	cmd := exec.Command("/bin/bash", "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &CommandError{
				Host:     c.ip,
				Command:  command,
				ExitCode: exitErr.ExitCode(),
				Stdout:   strings.TrimSpace(stdout.String()),
				Stderr:   strings.TrimSpace(stderr.String()),
			}
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (c *localClient) FileRead(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (c *localClient) FileWrite(path, content string, mode os.FileMode) error {
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return err
	}
	return os.Chmod(path, mode)
}

func (c *localClient) FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

func (c *localClient) FileUpload(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return err
	}
	return c.FileWrite(remotePath, string(data), info.Mode().Perm())
}

func (c *localClient) FileRename(src, dst string) error {
	return os.Rename(src, dst)
}

func (c *localClient) DirCreate(paths ...string) error {
	for _, p := range paths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (c *localClient) DirChmod(paths []string, mode os.FileMode, recursive bool) error {
	return walk(paths, recursive, func(p string) error {
		return os.Chmod(p, mode)
	})
}

func (c *localClient) DirChown(paths []string, owner, group string, recursive bool) error {
	uid, gid, err := lookupIDs(owner, group)
	if err != nil {
		return err
	}
	return walk(paths, recursive, func(p string) error {
		return os.Lchown(p, uid, gid)
	})
}

func (c *localClient) DirDelete(paths ...string) error {
	for _, p := range paths {
		if err := os.RemoveAll(p); err != nil {
			return err
		}
	}
	return nil
}

func walk(paths []string, recursive bool, fn func(string) error) error {
	for _, root := range paths {
		if !recursive {
			if err := fn(root); err != nil {
				return err
			}
			continue
		}
		err := filepath.WalkDir(root, func(p string, _ fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			return fn(p)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func lookupIDs(owner, group string) (int, int, error) {
	u, err := user.Lookup(owner)
	if err != nil {
		return 0, 0, err
	}
	g, err := user.LookupGroup(group)
	if err != nil {
		return 0, 0, err
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, err
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, err
	}
	return uid, gid, nil
}
