package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// TLSConfig holds paths to the PEM files needed for mTLS.
// When nil or all paths empty, the node falls back to plain TCP.
type TLSConfig struct {
	CACert   string `json:"ca_cert"`   // CA certificate PEM path
	NodeCert string `json:"node_cert"` // node certificate PEM path
	NodeKey  string `json:"node_key"`  // node private key PEM path
}

// SeedPeer identifies a remote node's bootstrap listener to connect to
// on startup.
type SeedPeer struct {
	ID   string `json:"id"`   // remote node ID, informational only
	Addr string `json:"addr"` // host:port of its bootstrap listener
}

// Config holds every node option named by spec.md §6.3.
type Config struct {
	NodeID  string `json:"node_id"`
	DataDir string `json:"data_dir"`

	PeeringPort int `json:"peering_port"` // bootstrap listener port

	BootstrapConnections    int `json:"bootstrap_connections"`     // base pool size, default 4
	BootstrapConnectionsMax int `json:"bootstrap_connections_max"` // pool ceiling, default 64

	IOThreads   int `json:"io_threads"`    // executor/workerpool size; 0 → max(4, GOMAXPROCS)
	LMDBMaxDBs  int `json:"lmdb_max_dbs"`  // see storage.NewLevelDB's doc comment
	MaxBlockTxs int `json:"max_block_txs"` // max requests per RB; default 500

	ReceiveMinimum uint64 `json:"receive_minimum"` // smallest fee a Request may carry

	CallbackAddress string `json:"callback_address,omitempty"` // empty → notify disabled
	CallbackPort    int    `json:"callback_port,omitempty"`
	CallbackTarget  string `json:"callback_target,omitempty"`

	Genesis   GenesisConfig `json:"genesis"`
	SeedPeers []SeedPeer    `json:"seed_peers,omitempty"`
	TLS       *TLSConfig    `json:"tls,omitempty"` // nil → plain TCP
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:                  "node0",
		DataDir:                 "./data",
		PeeringPort:             7075,
		BootstrapConnections:    4,
		BootstrapConnectionsMax: 64,
		IOThreads:               0,
		LMDBMaxDBs:              128,
		MaxBlockTxs:             500,
		ReceiveMinimum:          1,
	}
}

// Load reads a JSON config file from path and validates required fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks that all required fields are present and well-formed.
func (c *Config) Validate() error {
	if c.NodeID == "" {
		return fmt.Errorf("node_id must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.PeeringPort <= 0 || c.PeeringPort > 65535 {
		return fmt.Errorf("peering_port must be 1-65535, got %d", c.PeeringPort)
	}
	if c.BootstrapConnections <= 0 {
		return fmt.Errorf("bootstrap_connections must be positive, got %d", c.BootstrapConnections)
	}
	if c.BootstrapConnectionsMax < c.BootstrapConnections {
		return fmt.Errorf("bootstrap_connections_max (%d) must be >= bootstrap_connections (%d)",
			c.BootstrapConnectionsMax, c.BootstrapConnections)
	}
	if (c.CallbackAddress == "") != (c.CallbackPort == 0) {
		return fmt.Errorf("callback_address and callback_port must both be set or both be empty")
	}
	if c.TLS != nil {
		t := c.TLS
		allSet := t.CACert != "" && t.NodeCert != "" && t.NodeKey != ""
		allEmpty := t.CACert == "" && t.NodeCert == "" && t.NodeKey == ""
		if !allSet && !allEmpty {
			return fmt.Errorf("tls: all three paths (ca_cert, node_cert, node_key) must be set or all empty")
		}
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
