// Package config loads driftnode's YAML configuration: listen address,
// DNS seed address, data directory, logging and P2P tuning. Each section
// validates itself; Load applies defaults and refuses to return a config
// that doesn't validate.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultListenAddress is used when P2P.ListenAddress is empty.
	DefaultListenAddress = "0.0.0.0:9734"
)

// Config is the top-level struct unmarshaled from the YAML config file.
type Config struct {
	P2P           P2P           `yaml:"P2P"`
	Storage       Storage       `yaml:"Storage"`
	Introspection Introspection `yaml:"Introspection"`
	Logger        Logger        `yaml:"Logger"`
}

// Introspection configures the observability HTTP server.
type Introspection struct {
	// Address is the listen address for /state, /actions and /metrics;
	// empty disables the server.
	Address string `yaml:"Address"`
}

// P2P holds the node's peer-discovery and connection tuning.
type P2P struct {
	// ListenAddress is the TCP address this node's listener binds; inbound
	// connections are accepted and closed at once. Defaults to
	// DefaultListenAddress.
	ListenAddress string `yaml:"ListenAddress"`
	// DNSSeedAddress is the host:port of the DNS seed queried at startup.
	DNSSeedAddress string `yaml:"DNSSeedAddress"`
	// MaxPeers bounds how many peers may be connecting, handshaking or
	// Handshaked at once; no new dial starts while that count is reached.
	MaxPeers int `yaml:"MaxPeers"`
	// MinPeers is the floor below which the engine re-runs DNS discovery.
	MinPeers int `yaml:"MinPeers"`
	// AttemptConnPeers bounds how many Potential peers are dialed per
	// PeersDnsLookupFinish round.
	AttemptConnPeers int `yaml:"AttemptConnPeers"`
	// DialTimeout bounds how long a Connecting{Pending} peer may sit
	// before the engine gives up and disconnects it.
	DialTimeout time.Duration `yaml:"DialTimeout"`
	// PingInterval and PingTimeout are copied into the runtime state's
	// config; no component acts on them, and there is no ping wire message.
	PingInterval time.Duration `yaml:"PingInterval"`
	PingTimeout  time.Duration `yaml:"PingTimeout"`
	// PrivateNode and DisableMempool are advertised to peers in the
	// handshake's metadata message.
	PrivateNode    bool `yaml:"PrivateNode"`
	DisableMempool bool `yaml:"DisableMempool"`
}

// Validate reports whether p is well-formed.
func (p P2P) Validate() error {
	if p.DNSSeedAddress == "" {
		return fmt.Errorf("P2P.DNSSeedAddress is required")
	}
	if p.MaxPeers > 0 && p.MinPeers > p.MaxPeers {
		return fmt.Errorf("P2P.MinPeers (%d) exceeds P2P.MaxPeers (%d)", p.MinPeers, p.MaxPeers)
	}
	return nil
}

// Storage holds on-disk paths for the header store, the action journal
// and their shared data directory.
type Storage struct {
	// DataDirectory is the root directory everything below is relative to.
	DataDirectory string `yaml:"DataDirectory"`
	// HeadersPath is the goleveldb path for accepted block headers
	// (pkg/storageengine).
	HeadersPath string `yaml:"HeadersPath"`
	// JournalPath is the bbolt path for the append-only action journal and
	// the state snapshots (pkg/journal).
	JournalPath string `yaml:"JournalPath"`
	// SnapshotInterval is the number of dispatched actions between
	// StorageStateSnapshotCreate actions; 0 means "use the default".
	SnapshotInterval uint64 `yaml:"SnapshotInterval"`
}

// Validate reports whether s is well-formed.
func (s Storage) Validate() error {
	if s.DataDirectory == "" {
		return fmt.Errorf("Storage.DataDirectory is required")
	}
	return nil
}

// Logger contains node logger configuration.
type Logger struct {
	LogEncoding  string `yaml:"LogEncoding"`
	LogLevel     string `yaml:"LogLevel"`
	LogPath      string `yaml:"LogPath"`
	LogTimestamp *bool  `yaml:"LogTimestamp,omitempty"`
}

// Validate returns an error if Logger configuration is not valid.
func (l Logger) Validate() error {
	if len(l.LogEncoding) > 0 && l.LogEncoding != "console" && l.LogEncoding != "json" {
		return fmt.Errorf("invalid LogEncoding: %s", l.LogEncoding)
	}
	if len(l.LogLevel) > 0 {
		switch l.LogLevel {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("invalid LogLevel: %s", l.LogLevel)
		}
	}
	return nil
}

// Validate checks every section of c, matching the per-section Validate
// convention used throughout.
func (c Config) Validate() error {
	if err := c.P2P.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Logger.Validate(); err != nil {
		return err
	}
	return nil
}

// Load reads and unmarshals the YAML config file at path, applying
// defaults and validating the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config %s: %w", path, err)
	}

	c.ApplyDefaults()

	if err := c.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

// ApplyDefaults fills in every unset field that has a default, leaving
// explicitly configured values alone. Load calls it before validating;
// cmd/node calls it again after applying flag overrides.
func (c *Config) ApplyDefaults() {
	if c.P2P.ListenAddress == "" {
		c.P2P.ListenAddress = DefaultListenAddress
	}
	if c.P2P.MaxPeers == 0 {
		c.P2P.MaxPeers = 40
	}
	if c.P2P.AttemptConnPeers == 0 {
		c.P2P.AttemptConnPeers = 20
	}
	if c.P2P.DialTimeout == 0 {
		c.P2P.DialTimeout = 5 * time.Second
	}
	if c.Storage.HeadersPath == "" && c.Storage.DataDirectory != "" {
		c.Storage.HeadersPath = c.Storage.DataDirectory + "/headers"
	}
	if c.Storage.JournalPath == "" && c.Storage.DataDirectory != "" {
		c.Storage.JournalPath = c.Storage.DataDirectory + "/journal.db"
	}
	if c.Storage.SnapshotInterval == 0 {
		c.Storage.SnapshotInterval = 10000
	}
}
