package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/cormoran/zmk-module-settings-rpc/src/common"
)

// Node roles.
const (
	// RoleCentral is the node that aggregates settings and, usually, hosts
	// the control surface.
	RoleCentral = "central"
	// RolePeripheral is a wirelessly attached node.
	RolePeripheral = "peripheral"
)

// Default configuration values.
const (
	DefaultLogLevel      = "debug"
	DefaultRole          = RoleCentral
	DefaultBindAddr      = "127.0.0.1:1337"
	DefaultServiceAddr   = "127.0.0.1:8000"
	DefaultCollectWindow = 100 * time.Millisecond
	DefaultTCPTimeout    = 1000 * time.Millisecond
	DefaultMaxPool       = 2
	DefaultEventBuffer   = 64

	// DefaultIdleMs and DefaultSleepMs are the boot-time activity timeouts:
	// 30 seconds to idle, 15 minutes to sleep.
	DefaultIdleMs  uint32 = 30000
	DefaultSleepMs uint32 = 900000
)

// Config contains all the configuration properties of a split settings node.
type Config struct {
	// DataDir is the top-level directory containing configuration and data,
	// including the peers.json roster.
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// Role is the node's role in the split system: central or peripheral.
	Role string `mapstructure:"role"`

	// PeripheralIndex is this node's 1-based index when Role is peripheral.
	// It is the source tag stamped on the node's relayed events, so it must
	// match the roster.
	PeripheralIndex uint8 `mapstructure:"index"`

	// BindAddr is the local address:port this node listens on for messages
	// from other nodes.
	BindAddr string `mapstructure:"listen"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// CollectWindow is how long a settings collection round stays open for
	// peripheral reports.
	CollectWindow time.Duration `mapstructure:"collect-window"`

	// TCPTimeout is the timeout of inter-node connections.
	TCPTimeout time.Duration `mapstructure:"timeout"`

	// MaxPool controls how many connections are pooled per target.
	MaxPool int `mapstructure:"max-pool"`

	// EventBuffer is the size of the local event queue.
	EventBuffer int `mapstructure:"event-buffer"`

	// Moniker defines the friendly name of this node.
	Moniker string `mapstructure:"moniker"`

	// IdleMs and SleepMs are the boot-time activity timeouts, used until a
	// set or a relayed change overrides them. 0 disables a timeout.
	IdleMs  uint32 `mapstructure:"idle-ms"`
	SleepMs uint32 `mapstructure:"sleep-ms"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:       DefaultDataDir(),
		LogLevel:      DefaultLogLevel,
		Role:          DefaultRole,
		BindAddr:      DefaultBindAddr,
		ServiceAddr:   DefaultServiceAddr,
		CollectWindow: DefaultCollectWindow,
		TCPTimeout:    DefaultTCPTimeout,
		MaxPool:       DefaultMaxPool,
		EventBuffer:   DefaultEventBuffer,
		IdleMs:        DefaultIdleMs,
		SleepMs:       DefaultSleepMs,
	}
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t)
	return config
}

// IsCentral reports whether the node holds the central role.
func (c *Config) IsCentral() bool {
	return c.Role == RoleCentral
}

// Logger returns a formatted logrus Entry, with prefix set to the node's
// moniker when one is configured.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	prefix := c.Moniker
	if prefix == "" {
		prefix = "splitsettings"
	}
	return c.logger.WithField("prefix", prefix)
}

// LogLevel parses a logrus level name, defaulting to debug.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}

// DefaultDataDir return the default directory name for top-level config based
// on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".SplitSettings")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "SplitSettings")
		} else {
			return filepath.Join(home, ".splitsettings")
		}
	}
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}
