package cmn

import (
	"os"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the configuration recognized by the coordinator, per §6 of
// the design: capability issuance, lease-wait and OSD RPC timeouts, and the
// advertised address used as a capability client-identity default.
type Config struct {
	CapabilityTimeout time.Duration `yaml:"capability_timeout"`
	CapabilitySecret  string        `yaml:"capability_secret"`
	LeaseTimeoutMs    int64         `yaml:"lease_timeout_ms"`
	OSDRpcTimeoutMs   int64         `yaml:"osd_rpc_timeout_ms"`
	AdvertisedAddress string        `yaml:"advertised_address"`
}

func (c *Config) LeaseTimeout() time.Duration {
	return time.Duration(c.LeaseTimeoutMs) * time.Millisecond
}

func (c *Config) OSDRpcTimeout() time.Duration {
	return time.Duration(c.OSDRpcTimeoutMs) * time.Millisecond
}

// DefaultConfig returns the implementation-defined defaults named in §6:
// a 15s lease timeout and a 30s per-RPC deadline.
func DefaultConfig() *Config {
	return &Config{
		CapabilityTimeout: 60 * time.Second,
		CapabilitySecret:  "",
		LeaseTimeoutMs:    15000,
		OSDRpcTimeoutMs:   30000,
		AdvertisedAddress: "",
	}
}

// globalConfigOwner mirrors the teacher's cmn.GCO: a process-wide,
// atomically-swappable configuration singleton. Every package reads config
// via GCO.Get() rather than threading a *Config through every call.
type globalConfigOwner struct {
	value atomic.Value
}

func (o *globalConfigOwner) Get() *Config {
	v := o.value.Load()
	if v == nil {
		return DefaultConfig()
	}
	return v.(*Config)
}

func (o *globalConfigOwner) Put(c *Config) {
	o.value.Store(c)
}

// GCO is the process-wide configuration owner, named after the teacher's
// own global: cmn.GCO.Get().
var GCO = &globalConfigOwner{}

func init() {
	GCO.Put(DefaultConfig())
}

// LoadConfig reads a YAML config file, layering it on top of DefaultConfig,
// and installs it into GCO.
func LoadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, err
	}
	GCO.Put(c)
	return c, nil
}
