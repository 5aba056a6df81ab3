// Package env sets up a coex process from defaults, environment variables,
// command line flags and an optional TOML file.
package env

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"

	"github.com/robotalks/coex.go/pkg/framework"
	"github.com/robotalks/coex.go/pkg/ipc/mqtt"
	"github.com/robotalks/coex.go/pkg/mws"
)

// Config provides common options of coex commands.
type Config struct {
	// NodeID names this pair of cores, used in MQTT topics.
	NodeID string `toml:"node_id"`
	// ChannelURL locates the message channel to the peer core, e.g.
	// tcp://host:port, serial:///dev/ttyUSB0?baud=115200, ws://host:port/mws,
	// mqtt://host:port/coex/
	ChannelURL string `toml:"channel_url"`
	// Listen accepts one connection on ChannelURL instead of dialing.
	Listen bool `toml:"listen"`
	// Role is host or nbu.
	Role string `toml:"role"`

	RequestTimeout      time.Duration   `toml:"request_timeout"`
	GrantPolicy         mws.GrantPolicy `toml:"grant_policy"`
	RequireRegistration bool            `toml:"require_registration"`
	Exclusive           bool            `toml:"exclusive"`
	// Priorities overrides the priority of protocols by name.
	Priorities map[string]int `toml:"priorities"`

	// MonitorURL is the MQTT broker traffic records are published to.
	MonitorURL string `toml:"monitor_url"`

	// ConfigFile is loaded by Load.
	ConfigFile string `toml:"-"`
}

var defaultConfig = Config{
	ChannelURL:     "tcp://localhost:7480",
	Role:           string(mqtt.HostRole),
	RequestTimeout: mws.DefaultRequestTimeout,
}

func init() {
	if err := applyEnv(&defaultConfig, os.Getenv); err != nil {
		for _, e := range err.(*framework.AggregatedError).Errors {
			glog.Warningf("env: %v", e)
		}
	}
}

// applyEnv overrides c with COEX_* variables. Invalid values leave the
// field unchanged and are reported.
func applyEnv(c *Config, getenv func(string) string) error {
	var errs framework.AggregatedError
	if val := getenv("COEX_NODE_ID"); val != "" {
		c.NodeID = val
	}
	if val := getenv("COEX_CHANNEL_URL"); val != "" {
		c.ChannelURL = val
	}
	if val := getenv("COEX_ROLE"); val != "" {
		c.Role = val
	}
	if val := getenv("COEX_REQUEST_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err != nil {
			errs.Add(fmt.Errorf("COEX_REQUEST_TIMEOUT: %v", err))
		} else {
			c.RequestTimeout = d
		}
	}
	if val := getenv("COEX_GRANT_POLICY"); val != "" {
		var policy mws.GrantPolicy
		if err := policy.UnmarshalText([]byte(val)); err != nil {
			errs.Add(fmt.Errorf("COEX_GRANT_POLICY: %v", err))
		} else {
			c.GrantPolicy = policy
		}
	}
	if val := getenv("COEX_REQUIRE_REGISTRATION"); val != "" {
		if b, err := strconv.ParseBool(val); err != nil {
			errs.Add(fmt.Errorf("COEX_REQUIRE_REGISTRATION: %v", err))
		} else {
			c.RequireRegistration = b
		}
	}
	if val := getenv("COEX_MONITOR_URL"); val != "" {
		c.MonitorURL = val
	}
	if val := getenv("COEX_CONFIG"); val != "" {
		c.ConfigFile = val
	}
	return errs.Aggregate()
}

// SetupFlags sets up command line flags.
func SetupFlags() {
	flag.StringVar(&defaultConfig.ConfigFile, "config", defaultConfig.ConfigFile, "TOML config file")
	flag.StringVar(&defaultConfig.NodeID, "node", defaultConfig.NodeID, "Node ID, defaults to machine ID")
	flag.StringVar(&defaultConfig.ChannelURL, "channel", defaultConfig.ChannelURL, "Channel URL to the peer core")
	flag.BoolVar(&defaultConfig.Listen, "listen", defaultConfig.Listen, "Accept the peer on channel URL")
	flag.StringVar(&defaultConfig.Role, "role", defaultConfig.Role, "Role of this core: host or nbu")
	flag.DurationVar(&defaultConfig.RequestTimeout, "timeout", defaultConfig.RequestTimeout, "Arbitration request timeout")
	flag.TextVar(&defaultConfig.GrantPolicy, "grant", defaultConfig.GrantPolicy, "Grant policy for peer Acquire: always or radio")
	flag.BoolVar(&defaultConfig.RequireRegistration, "require-reg", defaultConfig.RequireRegistration, "Deny Acquire from unregistered protocols")
	flag.BoolVar(&defaultConfig.Exclusive, "exclusive", defaultConfig.Exclusive, "Grant the radio exclusively to the peer")
	flag.StringVar(&defaultConfig.MonitorURL, "monitor", defaultConfig.MonitorURL, "MQTT URL to publish traffic records")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// Load creates a Config from defaults and merges ConfigFile if specified.
func Load() (*Config, error) {
	conf := NewConfig()
	if conf.ConfigFile != "" {
		if err := conf.LoadFile(conf.ConfigFile); err != nil {
			return nil, err
		}
	}
	if conf.NodeID == "" {
		conf.NodeID = MachineID()
	}
	return conf, nil
}

// MustLoad loads Config and fails on error.
func MustLoad() *Config {
	conf, err := Load()
	if err != nil {
		log.Fatalln(err)
	}
	return conf
}

// LoadFile merges keys present in a TOML file.
func (c *Config) LoadFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	return nil
}

// MQTTRole parses Role.
func (c *Config) MQTTRole() (mqtt.Role, error) {
	switch role := mqtt.Role(c.Role); role {
	case mqtt.HostRole, mqtt.NBURole:
		return role, nil
	}
	return "", fmt.Errorf("invalid role %q: expect %s or %s", c.Role, mqtt.HostRole, mqtt.NBURole)
}

// MWSConfig builds the arbitration endpoint config.
func (c *Config) MWSConfig() (mws.Config, error) {
	conf := mws.DefaultConfig()
	conf.RequestTimeout = c.RequestTimeout
	conf.GrantPolicy = c.GrantPolicy
	conf.RequireRegistration = c.RequireRegistration
	conf.Exclusive = c.Exclusive
	for name, prio := range c.Priorities {
		p, err := mws.ParseProtocol(name)
		if err != nil {
			return conf, err
		}
		if prio < 0 || prio > 255 {
			return conf, fmt.Errorf("%w: priority %d of %s", mws.ErrInvalidParameter, prio, p)
		}
		conf.Priorities[p] = mws.Priority(prio)
	}
	return conf, nil
}

// MachineID retrieves an ID identifying the machine, or the host name if
// unavailable.
func MachineID() string {
	id, err := machineid.ProtectedID("coex")
	if err == nil {
		return id[:12]
	}
	host, _ := os.Hostname()
	return host
}
