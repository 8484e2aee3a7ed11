// Package config holds the runtime settings of a lanGreeter peer and loads
// them from YAML files.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"

	"github.com/rescp17/lanGreeter/internal/util"
)

const (
	DefaultPort          = 5431
	DefaultServiceType   = "_myprotocol._tcp"
	DefaultDomain        = "local"
	DefaultDescription   = "lanGreeter peer"
	DefaultLogFile       = "debug.log"
	DefaultAnnounceDelay = 1 * time.Second
	DefaultReadTimeout   = 10 * time.Second
	DefaultDialTimeout   = 5 * time.Second
)

// Config holds all settings of a peer. Zero values are never valid; start
// from DefaultConfig and override.
type Config struct {
	// Listener
	Port        int           `yaml:"port"`
	BindHost    string        `yaml:"bind_host"` // empty binds every interface
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// Announcement
	ServiceType   string            `yaml:"service_type"`
	Domain        string            `yaml:"domain"`
	InstanceName  string            `yaml:"instance_name"`
	Description   string            `yaml:"description"`
	Text          map[string]string `yaml:"text"`
	AnnounceDelay time.Duration     `yaml:"announce_delay"`

	// Greeting
	Greeting    string        `yaml:"greeting"`
	DialTimeout time.Duration `yaml:"dial_timeout"`

	LogFile string `yaml:"log_file"`
}

// DefaultConfig returns a configuration with a fresh instance name.
func DefaultConfig() *Config {
	hostname := Hostname()
	return &Config{
		Port:          DefaultPort,
		ReadTimeout:   DefaultReadTimeout,
		ServiceType:   DefaultServiceType,
		Domain:        DefaultDomain,
		InstanceName:  defaultInstanceName(hostname),
		Description:   DefaultDescription,
		AnnounceDelay: DefaultAnnounceDelay,
		Greeting:      DefaultGreeting(hostname),
		DialTimeout:   DefaultDialTimeout,
		LogFile:       DefaultLogFile,
	}
}

// Hostname returns the short host name, or "lanGreeter" when it cannot be
// determined.
func Hostname() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "lanGreeter"
	}
	if i := strings.IndexByte(hostname, '.'); i > 0 {
		hostname = hostname[:i]
	}
	return hostname
}

// defaultInstanceName keeps the name within a single 63 byte DNS label.
func defaultInstanceName(hostname string) string {
	if len(hostname) > 54 {
		hostname = hostname[:54]
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.New().String()[:8])
}

func DefaultGreeting(hostname string) string {
	return fmt.Sprintf("Hello from %s!!!", hostname)
}

// Load reads a YAML file on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	exists, isDir, err := util.CheckDirectory(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("config file %q does not exist", path)
	}
	if isDir {
		return nil, fmt.Errorf("config path %q is a directory", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot decode config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be announced and served.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}
	if c.BindHost != "" && net.ParseIP(c.BindHost) == nil {
		return fmt.Errorf("bind host %q is not an IP address", c.BindHost)
	}
	if err := validateServiceType(c.ServiceType); err != nil {
		return err
	}
	if c.Domain == "" || !isDomainName(c.Domain) {
		return fmt.Errorf("invalid domain %q", c.Domain)
	}
	if c.InstanceName == "" {
		return errors.New("instance name must not be empty")
	}
	if len(c.InstanceName) > 63 {
		return fmt.Errorf("instance name %q exceeds 63 bytes", c.InstanceName)
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	if c.DialTimeout <= 0 {
		return errors.New("dial timeout must be positive")
	}
	if c.AnnounceDelay < 0 {
		return errors.New("announce delay must not be negative")
	}
	return nil
}

func validateServiceType(serviceType string) error {
	if !isDomainName(serviceType) {
		return fmt.Errorf("invalid service type %q", serviceType)
	}
	labels := dns.SplitDomainName(serviceType)
	if len(labels) != 2 || len(labels[0]) < 2 || labels[0][0] != '_' {
		return fmt.Errorf("service type %q must look like _name._tcp", serviceType)
	}
	if labels[1] != "_tcp" {
		return fmt.Errorf("service type %q must use the _tcp protocol label", serviceType)
	}
	return nil
}

func isDomainName(s string) bool {
	_, ok := dns.IsDomainName(s)
	return ok
}

// ServiceQuery is the fully qualified browse name, e.g. "_myprotocol._tcp.local.".
func (c *Config) ServiceQuery() string {
	return dns.Fqdn(c.ServiceType + "." + c.Domain)
}

// ListenAddr is the host:port the listener binds.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.BindHost, strconv.Itoa(c.Port))
}
