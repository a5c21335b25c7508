package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"arakoon-deploy-backend/pkg/utils"
)

const EnvPrefix = "arakoon"

type Config struct {
	Server  ServerConfig
	Arakoon ArakoonConfig
	SSH     SSHConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Address      string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	AllowOrigins []string
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Address, s.Port)
}

type ArakoonConfig struct {
	ConfigRoot string
	LogRoot    string
	UnitDir    string
	// BaseDir is the database location; home and tlog dirs live below it.
	BaseDir      string
	PortRange    string
	OvsUser      string
	RootUser     string
	EngineBinary string
	// ManagementIP is the host whose config copy the readiness probe reads.
	ManagementIP  string
	DialTimeout   time.Duration
	ProbeAttempts int
	ProbeDelay    time.Duration
}

type SSHConfig struct {
	Port           int
	AuthType       string
	Password       string
	PrivateKeyPath string
	Passphrase     string
	ConnectTimeout time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Flags returns the flag set of every configuration key with its default.
// Bind it into a viper instance with Bind.
func Flags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)

	fs.String("server-address", "127.0.0.1", "the local address the HTTP API binds to")
	fs.Int("server-port", 8080, "the HTTP API port")
	fs.Int("server-read-timeout", 30, "HTTP read timeout in seconds")
	fs.Int("server-write-timeout", 30, "HTTP write timeout in seconds")
	fs.StringSlice("server-allow-origins", []string{"http://localhost:3000"}, "CORS origins allowed to call the API")

	fs.String("arakoon-config-root", "/opt/OpenvStorage/config/arakoon", "directory holding one config dir per cluster")
	fs.String("arakoon-log-root", "/var/log/arakoon", "directory holding one log dir per cluster")
	fs.String("arakoon-unit-dir", "/etc/systemd/system", "directory the service units are written to")
	fs.String("arakoon-base-dir", "/mnt/db", "database location holding the home and tlog dirs")
	fs.String("arakoon-port-range", "26400-26499", "ports cluster members may listen on, e.g. 26400-26499,27000")
	fs.String("arakoon-ovs-user", "ovs", "unprivileged identity owning cluster files")
	fs.String("arakoon-root-user", "root", "privileged identity managing services and directories")
	fs.String("arakoon-engine-binary", "/usr/bin/arakoon", "path of the consensus engine binary on the members")
	fs.String("arakoon-management-ip", "127.0.0.1", "host whose configuration copy is used to reach a cluster")
	fs.Duration("arakoon-dial-timeout", 5*time.Second, "timeout connecting to a cluster member")
	fs.Int("arakoon-probe-attempts", 3, "attempts before a cluster is declared unavailable")
	fs.Duration("arakoon-probe-delay", time.Second, "delay between probe attempts")

	fs.Int("ssh-port", 22, "SSH port of the cluster hosts")
	fs.String("ssh-auth-type", "key", "SSH authentication: key or password")
	fs.String("ssh-password", "", "SSH password")
	fs.String("ssh-private-key", "", "path of the SSH private key")
	fs.String("ssh-passphrase", "", "passphrase of the SSH private key")
	fs.Duration("ssh-connect-timeout", 30*time.Second, "SSH connect timeout")

	fs.String("log-level", "info", "the log level to run at")
	fs.String("log-format", "console", "log encoding: console or json")

	return fs
}

// Bind makes v resolve keys from fs, then from ARAKOON_* environment
// variables (dashes become underscores).
func Bind(v *viper.Viper, fs *pflag.FlagSet) error {
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	return v.BindPFlags(fs)
}

// ReadFile merges a config file into v. An empty path is a no-op.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	return nil
}

func LoadConfig(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:      v.GetString("server-address"),
			Port:         v.GetInt("server-port"),
			ReadTimeout:  v.GetInt("server-read-timeout"),
			WriteTimeout: v.GetInt("server-write-timeout"),
			AllowOrigins: v.GetStringSlice("server-allow-origins"),
		},
		Arakoon: ArakoonConfig{
			ConfigRoot:    v.GetString("arakoon-config-root"),
			LogRoot:       v.GetString("arakoon-log-root"),
			UnitDir:       v.GetString("arakoon-unit-dir"),
			BaseDir:       v.GetString("arakoon-base-dir"),
			PortRange:     v.GetString("arakoon-port-range"),
			OvsUser:       v.GetString("arakoon-ovs-user"),
			RootUser:      v.GetString("arakoon-root-user"),
			EngineBinary:  v.GetString("arakoon-engine-binary"),
			ManagementIP:  v.GetString("arakoon-management-ip"),
			DialTimeout:   v.GetDuration("arakoon-dial-timeout"),
			ProbeAttempts: v.GetInt("arakoon-probe-attempts"),
			ProbeDelay:    v.GetDuration("arakoon-probe-delay"),
		},
		SSH: SSHConfig{
			Port:           v.GetInt("ssh-port"),
			AuthType:       v.GetString("ssh-auth-type"),
			Password:       v.GetString("ssh-password"),
			PrivateKeyPath: v.GetString("ssh-private-key"),
			Passphrase:     v.GetString("ssh-passphrase"),
			ConnectTimeout: v.GetDuration("ssh-connect-timeout"),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("log-level"),
			Format: v.GetString("log-format"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := utils.ValidatePort(c.Server.Port); err != nil {
		return fmt.Errorf("server-port: %w", err)
	}
	if err := utils.ValidatePort(c.SSH.Port); err != nil {
		return fmt.Errorf("ssh-port: %w", err)
	}
	if _, err := utils.ParsePortRange(c.Arakoon.PortRange); err != nil {
		return fmt.Errorf("arakoon-port-range: %w", err)
	}
	if err := utils.ValidateIP(c.Arakoon.ManagementIP); err != nil {
		return fmt.Errorf("arakoon-management-ip: %w", err)
	}
	if c.SSH.AuthType != "key" && c.SSH.AuthType != "password" {
		return fmt.Errorf("ssh-auth-type: unsupported value %q", c.SSH.AuthType)
	}
	if c.Arakoon.ProbeAttempts < 1 {
		return fmt.Errorf("arakoon-probe-attempts must be at least 1")
	}
	return nil
}
