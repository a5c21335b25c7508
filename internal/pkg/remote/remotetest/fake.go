// Package remotetest provides an in-memory remote.Factory for tests.
package remotetest

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"sync"

	"arakoon-deploy-backend/internal/pkg/remote"
)

// Handler answers Run calls. Returning handled=false passes the command on to
// the next handler; unhandled commands succeed with empty output.
type Handler func(ip, user, command string) (out string, handled bool, err error)

type File struct {
	Content string
	Mode    os.FileMode
}

type Dir struct {
	Mode  os.FileMode
	Owner string
	Group string
}

type Call struct {
	IP   string
	User string
	Op   string
	Arg  string
}

// Host is the state of one fake machine.
type Host struct {
	Files map[string]File
	Dirs  map[string]Dir
}

type Factory struct {
	mu          sync.Mutex
	hosts       map[string]*Host
	handlers    []Handler
	unreachable map[string]error
	calls       []Call
}

func NewFactory() *Factory {
	return &Factory{
		hosts:       make(map[string]*Host),
		unreachable: make(map[string]error),
	}
}

// Handle registers a command handler.
func (f *Factory) Handle(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

// HandlePrefix answers every command starting with prefix on ip ("" matches
// any host) with out.
func (f *Factory) HandlePrefix(ip, prefix, out string) {
	f.Handle(func(host, _, command string) (string, bool, error) {
		if (ip == "" || ip == host) && strings.HasPrefix(command, prefix) {
			return out, true, nil
		}
		return "", false, nil
	})
}

// SetUnreachable makes every operation against ip fail with err.
func (f *Factory) SetUnreachable(ip string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.unreachable, ip)
		return
	}
	f.unreachable[ip] = err
}

func (f *Factory) Open(ip, user string) (remote.Client, error) {
	if strings.Count(ip, ".") != 3 {
		return nil, fmt.Errorf("%w: %q", remote.ErrInvalidIP, ip)
	}
	return &client{factory: f, ip: ip, user: user}, nil
}

func (f *Factory) host(ip string) *Host {
	h, ok := f.hosts[ip]
	if !ok {
		h = &Host{Files: make(map[string]File), Dirs: make(map[string]Dir)}
		f.hosts[ip] = h
	}
	return h
}

// PutFile seeds a file on ip.
func (f *Factory) PutFile(ip, p, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host(ip).Files[p] = File{Content: content, Mode: 0o644}
}

// ReadFile returns the content of p on ip.
func (f *Factory) ReadFile(ip, p string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.host(ip).Files[p]
	return file.Content, ok
}

// DirInfo returns the recorded state of a directory.
func (f *Factory) DirInfo(ip, p string) (Dir, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.host(ip).Dirs[p]
	return d, ok
}

// Snapshot deep-copies the state of every host.
func (f *Factory) Snapshot() map[string]Host {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]Host, len(f.hosts))
	for ip, h := range f.hosts {
		c := Host{Files: make(map[string]File, len(h.Files)), Dirs: make(map[string]Dir, len(h.Dirs))}
		for k, v := range h.Files {
			c.Files[k] = v
		}
		for k, v := range h.Dirs {
			c.Dirs[k] = v
		}
		out[ip] = c
	}
	return out
}

// Calls returns every recorded operation in order.
func (f *Factory) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsMatching filters Calls by op and by an argument prefix.
func (f *Factory) CallsMatching(op, argPrefix string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op && strings.HasPrefix(c.Arg, argPrefix) {
			out = append(out, c)
		}
	}
	return out
}

// Commands returns the commands run on ip, in order.
func (f *Factory) Commands(ip string) []string {
	var out []string
	for _, c := range f.Calls() {
		if c.Op == "run" && c.IP == ip {
			out = append(out, c.Arg)
		}
	}
	return out
}

func (f *Factory) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

type client struct {
	factory *Factory
	ip      string
	user    string
}

func (c *client) IP() string    { return c.ip }
func (c *client) User() string  { return c.user }
func (c *client) IsLocal() bool { return false }

// begin records the call and returns the locked host state.
func (c *client) begin(op, arg string) (*Host, func(), error) {
	f := c.factory
	f.mu.Lock()
	f.calls = append(f.calls, Call{IP: c.ip, User: c.user, Op: op, Arg: arg})
	if err, ok := f.unreachable[c.ip]; ok {
		f.mu.Unlock()
		return nil, nil, err
	}
	return f.host(c.ip), f.mu.Unlock, nil
}

func (c *client) Run(command string) (string, error) {
	_, unlock, err := c.begin("run", command)
	if err != nil {
		return "", err
	}
	handlers := append([]Handler(nil), c.factory.handlers...)
	unlock()

	for _, h := range handlers {
		if out, handled, err := h(c.ip, c.user, command); handled {
			return out, err
		}
	}
	return "", nil
}

func (c *client) FileRead(p string) (string, error) {
	h, unlock, err := c.begin("read", p)
	if err != nil {
		return "", err
	}
	defer unlock()
	file, ok := h.Files[p]
	if !ok {
		return "", &fs.PathError{Op: "read", Path: p, Err: fs.ErrNotExist}
	}
	return file.Content, nil
}

func (c *client) FileWrite(p, content string, mode os.FileMode) error {
	h, unlock, err := c.begin("write", p)
	if err != nil {
		return err
	}
	defer unlock()
	h.Files[p] = File{Content: content, Mode: mode}
	return nil
}

func (c *client) FileExists(p string) (bool, error) {
	h, unlock, err := c.begin("exists", p)
	if err != nil {
		return false, err
	}
	defer unlock()
	_, ok := h.Files[p]
	return ok, nil
}

func (c *client) FileUpload(localPath, remotePath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	h, unlock, err := c.begin("upload", remotePath)
	if err != nil {
		return err
	}
	defer unlock()
	h.Files[remotePath] = File{Content: string(data), Mode: 0o644}
	return nil
}

func (c *client) FileRename(src, dst string) error {
	h, unlock, err := c.begin("rename", dst)
	if err != nil {
		return err
	}
	defer unlock()
	file, ok := h.Files[src]
	if !ok {
		return &fs.PathError{Op: "rename", Path: src, Err: fs.ErrNotExist}
	}
	delete(h.Files, src)
	h.Files[dst] = file
	return nil
}

func (c *client) DirCreate(paths ...string) error {
	h, unlock, err := c.begin("mkdir", strings.Join(paths, " "))
	if err != nil {
		return err
	}
	defer unlock()
	for _, p := range paths {
		if _, ok := h.Dirs[p]; !ok {
			h.Dirs[p] = Dir{Mode: 0o755, Owner: c.user, Group: c.user}
		}
	}
	return nil
}

func (c *client) DirChmod(paths []string, mode os.FileMode, recursive bool) error {
	h, unlock, err := c.begin("chmod", strings.Join(paths, " "))
	if err != nil {
		return err
	}
	defer unlock()
	for _, p := range matching(h, paths, recursive) {
		d := h.Dirs[p]
		d.Mode = mode
		h.Dirs[p] = d
	}
	return nil
}

func (c *client) DirChown(paths []string, owner, group string, recursive bool) error {
	h, unlock, err := c.begin("chown", strings.Join(paths, " "))
	if err != nil {
		return err
	}
	defer unlock()
	for _, p := range matching(h, paths, recursive) {
		d := h.Dirs[p]
		d.Owner, d.Group = owner, group
		h.Dirs[p] = d
	}
	return nil
}

func (c *client) DirDelete(paths ...string) error {
	h, unlock, err := c.begin("rmdir", strings.Join(paths, " "))
	if err != nil {
		return err
	}
	defer unlock()
	for _, root := range paths {
		for p := range h.Dirs {
			if within(root, p) {
				delete(h.Dirs, p)
			}
		}
		for p := range h.Files {
			if within(root, p) {
				delete(h.Files, p)
			}
		}
	}
	return nil
}

func matching(h *Host, roots []string, recursive bool) []string {
	var out []string
	for p := range h.Dirs {
		for _, root := range roots {
			if p == root || (recursive && within(root, p)) {
				out = append(out, p)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func within(root, p string) bool {
	root = path.Clean(root)
	p = path.Clean(p)
	return p == root || strings.HasPrefix(p, root+"/")
}
