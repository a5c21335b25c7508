package arakoon

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/ini.v1"

	"arakoon-deploy-backend/internal/pkg/remote"
)

const (
	globalSection = "global"

	defaultLogLevel        = "info"
	defaultTLogCompression = "snappy"
)

// NodeConfig is one cluster member. Name is its identity: two entries with
// the same name are the same member even if the address differs.
type NodeConfig struct {
	Name            string `json:"name"`
	IP              string `json:"ip"`
	ClientPort      int    `json:"clientPort"`
	MessagingPort   int    `json:"messagingPort"`
	LogDir          string `json:"logDir"`
	HomeDir         string `json:"home"`
	TLogDir         string `json:"tlogDir"`
	Fsync           bool   `json:"fsync"`
	LogLevel        string `json:"logLevel"`
	TLogCompression string `json:"tlogCompression"`
}

func NewNodeConfig(name, ip string, clientPort, messagingPort int, logDir, homeDir, tlogDir string) NodeConfig {
	return NodeConfig{
		Name:            name,
		IP:              ip,
		ClientPort:      clientPort,
		MessagingPort:   messagingPort,
		LogDir:          logDir,
		HomeDir:         homeDir,
		TLogDir:         tlogDir,
		Fsync:           true,
		LogLevel:        defaultLogLevel,
		TLogCompression: defaultTLogCompression,
	}
}

// Dirs returns the directories a member needs on its host.
func (n NodeConfig) Dirs() []string {
	return []string{n.LogDir, n.TLogDir, n.HomeDir}
}

// ClusterConfig is the in-memory form of a cluster's configuration file.
type ClusterConfig struct {
	clusterID string
	layout    Layout

	Nodes   []NodeConfig
	Plugins []string
}

func NewClusterConfig(layout Layout, clusterID string, plugins []string) *ClusterConfig {
	return &ClusterConfig{
		clusterID: clusterID,
		layout:    layout,
		Plugins:   append([]string(nil), plugins...),
	}
}

func (c *ClusterConfig) ClusterID() string { return c.clusterID }
func (c *ClusterConfig) Dir() string       { return c.layout.ConfigDir(c.clusterID) }
func (c *ClusterConfig) Filename() string  { return c.layout.ConfigFile(c.clusterID) }

// AddNode stores n, replacing an existing member with the same name.
// It reports whether n is a new member.
func (c *ClusterConfig) AddNode(n NodeConfig) bool {
	for i := range c.Nodes {
		if c.Nodes[i].Name == n.Name {
			c.Nodes[i] = n
			return false
		}
	}
	c.Nodes = append(c.Nodes, n)
	return true
}

func (c *ClusterConfig) Node(name string) (NodeConfig, bool) {
	for _, n := range c.Nodes {
		if n.Name == name {
			return n, true
		}
	}
	return NodeConfig{}, false
}

// RemoveNodesByIP drops every member listening on ip and returns them.
func (c *ClusterConfig) RemoveNodesByIP(ip string) []NodeConfig {
	var removed []NodeConfig
	kept := c.Nodes[:0]
	for _, n := range c.Nodes {
		if n.IP == ip {
			removed = append(removed, n)
			continue
		}
		kept = append(kept, n)
	}
	c.Nodes = kept
	return removed
}

// SortedNodes returns the members ordered by name.
func (c *ClusterConfig) SortedNodes() []NodeConfig {
	nodes := append([]NodeConfig(nil), c.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes
}

// IPs returns member addresses in name order.
func (c *ClusterConfig) IPs() []string {
	var ips []string
	for _, n := range c.SortedNodes() {
		ips = append(ips, n.IP)
	}
	return ips
}

// Option is one key of a Document section.
type Option struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type Section struct {
	Name    string   `json:"name"`
	Options []Option `json:"options"`
}

// Document is the ordered, structured form of a configuration file.
type Document struct {
	Sections []Section `json:"sections"`
}

func (d Document) Get(section, key string) (string, bool) {
	for _, s := range d.Sections {
		if s.Name != section {
			continue
		}
		for _, o := range s.Options {
			if o.Key == key {
				return o.Value, true
			}
		}
	}
	return "", false
}

// Export renders the configuration deterministically: global first, then
// members sorted by name, plugins sorted lexically.
func (c *ClusterConfig) Export() Document {
	nodes := c.SortedNodes()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	plugins := append([]string(nil), c.Plugins...)
	sort.Strings(plugins)

	doc := Document{Sections: []Section{{
		Name: globalSection,
		Options: []Option{
			{Key: "cluster_id", Value: c.clusterID},
			{Key: "cluster", Value: strings.Join(names, ",")},
			{Key: "plugins", Value: strings.Join(plugins, ",")},
		},
	}}}

	for _, n := range nodes {
		doc.Sections = append(doc.Sections, Section{
			Name: n.Name,
			Options: []Option{
				{Key: "name", Value: n.Name},
				{Key: "ip", Value: n.IP},
				{Key: "client_port", Value: strconv.Itoa(n.ClientPort)},
				{Key: "messaging_port", Value: strconv.Itoa(n.MessagingPort)},
				{Key: "tlog_compression", Value: n.TLogCompression},
				{Key: "log_level", Value: n.LogLevel},
				{Key: "log_dir", Value: n.LogDir},
				{Key: "home", Value: n.HomeDir},
				{Key: "tlog_dir", Value: n.TLogDir},
				{Key: "fsync", Value: strconv.FormatBool(n.Fsync)},
			},
		})
	}
	return doc
}

// Render serialises Export as ini text.
func (c *ClusterConfig) Render() (string, error) {
	f := ini.Empty()
	for _, s := range c.Export().Sections {
		sec, err := f.NewSection(s.Name)
		if err != nil {
			return "", err
		}
		for _, o := range s.Options {
			if _, err := sec.NewKey(o.Key, o.Value); err != nil {
				return "", err
			}
		}
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// ParseConfig builds a ClusterConfig from configuration file content.
func ParseConfig(layout Layout, clusterID, content string) (*ClusterConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, []byte(content))
	if err != nil {
		return nil, &ConfigParseError{ClusterID: clusterID, Err: err}
	}

	global, err := f.GetSection(globalSection)
	if err != nil {
		return nil, &ConfigParseError{ClusterID: clusterID, Section: globalSection, Err: err}
	}
	if !global.HasKey("cluster") {
		return nil, &ConfigParseError{ClusterID: clusterID, Section: globalSection, Option: "cluster", Err: fmt.Errorf("missing option")}
	}

	config := NewClusterConfig(layout, clusterID, splitList(global.Key("plugins").String()))

	for _, name := range splitList(global.Key("cluster").String()) {
		sec, err := f.GetSection(name)
		if err != nil {
			return nil, &ConfigParseError{ClusterID: clusterID, Section: name, Err: err}
		}
		node, err := parseNode(clusterID, name, sec)
		if err != nil {
			return nil, err
		}
		config.AddNode(node)
	}
	return config, nil
}

func parseNode(clusterID, name string, sec *ini.Section) (NodeConfig, error) {
	required := func(key string) (string, error) {
		if !sec.HasKey(key) {
			return "", &ConfigParseError{ClusterID: clusterID, Section: name, Option: key, Err: fmt.Errorf("missing option")}
		}
		return sec.Key(key).String(), nil
	}
	port := func(key string) (int, error) {
		raw, err := required(key)
		if err != nil {
			return 0, err
		}
		p, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, &ConfigParseError{ClusterID: clusterID, Section: name, Option: key, Err: err}
		}
		return p, nil
	}

	node := NodeConfig{
		Name:            name,
		Fsync:           true,
		LogLevel:        sec.Key("log_level").MustString(defaultLogLevel),
		TLogCompression: sec.Key("tlog_compression").MustString(defaultTLogCompression),
	}

	var err error
	if node.IP, err = required("ip"); err != nil {
		return node, err
	}
	if node.ClientPort, err = port("client_port"); err != nil {
		return node, err
	}
	if node.MessagingPort, err = port("messaging_port"); err != nil {
		return node, err
	}
	if node.LogDir, err = required("log_dir"); err != nil {
		return node, err
	}
	if node.HomeDir, err = required("home"); err != nil {
		return node, err
	}
	if node.TLogDir, err = required("tlog_dir"); err != nil {
		return node, err
	}
	if sec.HasKey("fsync") {
		if node.Fsync, err = strconv.ParseBool(sec.Key("fsync").String()); err != nil {
			return node, &ConfigParseError{ClusterID: clusterID, Section: name, Option: "fsync", Err: err}
		}
	}
	return node, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// LoadConfig reads the configuration of clusterID from the host behind client.
func LoadConfig(client remote.Client, layout Layout, clusterID string) (*ClusterConfig, error) {
	filename := layout.ConfigFile(clusterID)

	exists, err := client.FileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("check %s on %s: %w", filename, client.IP(), err)
	}
	if !exists {
		return nil, &ConfigNotFoundError{ClusterID: clusterID, Host: client.IP(), Path: filename}
	}

	content, err := client.FileRead(filename)
	if err != nil {
		return nil, fmt.Errorf("read %s on %s: %w", filename, client.IP(), err)
	}
	return ParseConfig(layout, clusterID, content)
}

// WriteConfig uploads the configuration next to its final location and moves
// it into place so a restarting member never reads a partial file.
func (c *ClusterConfig) WriteConfig(client remote.Client) error {
	content, err := c.Render()
	if err != nil {
		return fmt.Errorf("render configuration of %s: %w", c.clusterID, err)
	}

	if err := client.DirCreate(c.Dir()); err != nil {
		return fmt.Errorf("create %s on %s: %w", c.Dir(), client.IP(), err)
	}

	temp := path.Join(c.Dir(), fmt.Sprintf(".%s.cfg.%s", c.clusterID, uuid.NewString()))
	if err := client.FileWrite(temp, content, os.FileMode(0o644)); err != nil {
		return fmt.Errorf("upload configuration to %s: %w", client.IP(), err)
	}
	if err := client.FileRename(temp, c.Filename()); err != nil {
		return fmt.Errorf("install configuration on %s: %w", client.IP(), err)
	}
	return nil
}

// DeleteConfig removes the cluster's configuration directory. Removing a
// cluster that does not exist is not an error.
func (c *ClusterConfig) DeleteConfig(client remote.Client) error {
	if err := client.DirDelete(c.Dir()); err != nil {
		return fmt.Errorf("delete %s on %s: %w", c.Dir(), client.IP(), err)
	}
	return nil
}
