// Package remote executes commands and file operations on a cluster host.
//
// A Client is bound to one (ip, user) pair. Hosts that resolve to the
// machine running the toolkit are served in-process; every other host gets
// a fresh SSH connection per operation which is closed as soon as the
// operation returns. Callers must not depend on which path is taken.
package remote

import (
	"errors"
	"fmt"
	"os"
)

// ErrInvalidIP is returned by Factory.Open for addresses that are not IPv4.
var ErrInvalidIP = errors.New("invalid ip")

// Client is the remote execution surface used by every cluster operation.
type Client interface {
	IP() string
	User() string
	IsLocal() bool

	// Run executes a shell command and returns its trimmed stdout. A non-zero
	// exit status is returned as a *CommandError.
	Run(command string) (string, error)

	FileRead(path string) (string, error)
	FileWrite(path, content string, mode os.FileMode) error
	FileExists(path string) (bool, error)
	FileUpload(localPath, remotePath string) error
	FileRename(src, dst string) error

	DirCreate(paths ...string) error
	DirChmod(paths []string, mode os.FileMode, recursive bool) error
	DirChown(paths []string, owner, group string, recursive bool) error
	DirDelete(paths ...string) error
}

// Factory hands out short-lived clients. Handles are never pooled.
type Factory interface {
	Open(ip, user string) (Client, error)
}

// CommandError carries the outcome of a command that exited non-zero.
type CommandError struct {
	Host     string
	Command  string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %q on %s exited with %d: %s", e.Command, e.Host, e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command %q on %s exited with %d", e.Command, e.Host, e.ExitCode)
}
