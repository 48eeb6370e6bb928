package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v3"
)

// Source types
const (
	SourceProc   = "proc"
	SourceIW     = "iw"
	SourceStatic = "static"
)

// Config represents the application configuration
type Config struct {
	LinkMon struct {
		DeviceName             string `yaml:"device_name"`
		SourceHost             string `yaml:"source_host"`
		Interval               string `yaml:"interval"`
		WindowSize             int    `yaml:"window_size"`
		ChangeThreshold        int    `yaml:"change_threshold"`
		MaxConsecutiveFailures *int   `yaml:"max_consecutive_failures"`
		StartupTimeout         string `yaml:"startup_timeout"`
		AbortDelay             string `yaml:"abort_delay"`
	} `yaml:"linkmon"`

	Source struct {
		Type        string `yaml:"type"`
		Interface   string `yaml:"interface"`
		Path        string `yaml:"path"`
		Command     string `yaml:"command"`
		StaticValue int    `yaml:"static_value"`
	} `yaml:"source"`

	Memory struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"memory"`

	Logging struct {
		Enabled bool   `yaml:"enabled"`
		Logfile string `yaml:"logfile"`
		Level   string `yaml:"level"`
	} `yaml:"logging"`

	InfluxDB struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		Host        string `yaml:"host"`
		Port        int    `yaml:"port"`
		Org         string `yaml:"org"`
		Bucket      string `yaml:"bucket"`
		Measurement string `yaml:"measurement"`
		Token       string `yaml:"token"`
		BatchSize   uint   `yaml:"batch_size"`
	} `yaml:"influxdb"`

	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		ClientID    string `yaml:"client_id"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		QoS         byte   `yaml:"qos"`
		KeepAlive   uint16 `yaml:"keepalive"`
	} `yaml:"mqtt"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Listen  string `yaml:"listen"`
	} `yaml:"metrics"`
}

// Timing holds the parsed durations of the linkmon section
type Timing struct {
	Interval       time.Duration
	StartupTimeout time.Duration
	AbortDelay     time.Duration
}

// secretOverrides are read from the environment so tokens can stay out of the file
type secretOverrides struct {
	InfluxToken  string `env:"LINKMON_INFLUXDB_TOKEN"`
	MQTTUsername string `env:"LINKMON_MQTT_USERNAME"`
	MQTTPassword string `env:"LINKMON_MQTT_PASSWORD"`
}

// ParseDuration parses a human-readable duration string
func ParseDuration(s string) (time.Duration, error) {
	// Handle hour notation specially
	if strings.HasSuffix(s, "hr") {
		h, err := strconv.Atoi(strings.TrimSuffix(s, "hr"))
		if err != nil {
			return 0, err
		}
		return time.Duration(h) * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// LoadConfig loads the application configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	var data, err = os.ReadFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML document, applies defaults and environment
// overrides, and validates the result
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Wrap(err, "parsing configuration")
	}

	config.applyDefaults()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.LinkMon.SourceHost == "" {
		hostname, err := os.Hostname()
		if err == nil {
			c.LinkMon.SourceHost = hostname
		} else {
			c.LinkMon.SourceHost = "unknown"
		}
	}
	if c.LinkMon.DeviceName == "" {
		c.LinkMon.DeviceName = c.LinkMon.SourceHost
	}
	if c.LinkMon.Interval == "" {
		c.LinkMon.Interval = "500ms"
	}
	if c.LinkMon.WindowSize == 0 {
		c.LinkMon.WindowSize = 20
	}
	if c.LinkMon.ChangeThreshold == 0 {
		c.LinkMon.ChangeThreshold = 1
	}
	// an explicit 0 keeps retrying forever
	if c.LinkMon.MaxConsecutiveFailures == nil {
		limit := 10
		c.LinkMon.MaxConsecutiveFailures = &limit
	}
	if c.LinkMon.StartupTimeout == "" {
		c.LinkMon.StartupTimeout = "30s"
	}
	if c.LinkMon.AbortDelay == "" {
		c.LinkMon.AbortDelay = "5s"
	}

	if c.Source.Type == "" {
		c.Source.Type = SourceProc
	}
	if c.Source.Interface == "" {
		c.Source.Interface = "wlan0"
	}
	if c.Source.Path == "" {
		c.Source.Path = "/proc/net/wireless"
	}
	if c.Source.Command == "" {
		c.Source.Command = "iw"
	}

	if c.Memory.Path == "" {
		c.Memory.Path = "/proc/meminfo"
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	if c.InfluxDB.Measurement == "" {
		c.InfluxDB.Measurement = "linkmon"
	}
	if c.InfluxDB.BatchSize == 0 {
		c.InfluxDB.BatchSize = 20
	}

	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "linkmon"
	}
	if c.MQTT.KeepAlive == 0 {
		c.MQTT.KeepAlive = 30
	}

	if c.Metrics.Listen == "" {
		c.Metrics.Listen = ":9105"
	}
}

func (c *Config) applyEnv() error {
	var env secretOverrides
	if err := envdecode.Decode(&env); err != nil && err != envdecode.ErrNoTargetFieldsAreSet {
		return errors.Wrap(err, "decoding environment")
	}
	if env.InfluxToken != "" {
		c.InfluxDB.Token = env.InfluxToken
	}
	if env.MQTTUsername != "" {
		c.MQTT.Username = env.MQTTUsername
	}
	if env.MQTTPassword != "" {
		c.MQTT.Password = env.MQTTPassword
	}
	return nil
}

// Validate checks the values that cannot be defaulted
func (c *Config) Validate() error {
	if c.LinkMon.WindowSize < 1 || c.LinkMon.WindowSize > 65535 {
		return errors.Wrapf(ErrInvalidWindowSize, "linkmon.window_size %d", c.LinkMon.WindowSize)
	}
	if c.FailureLimit() < 0 {
		return errors.New("linkmon.max_consecutive_failures cannot be negative")
	}

	timing, err := c.Timing()
	if err != nil {
		return err
	}
	if timing.Interval <= 0 {
		return errors.New("linkmon.interval must be positive")
	}

	switch c.Source.Type {
	case SourceProc, SourceIW:
	case SourceStatic:
		if c.Source.StaticValue < -128 || c.Source.StaticValue > 127 {
			return errors.Errorf("source.static_value %d does not fit a signed byte", c.Source.StaticValue)
		}
	default:
		return errors.Errorf("unknown source.type %q", c.Source.Type)
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" && c.InfluxDB.Host == "" {
		return errors.New("influxdb.url or influxdb.host must be set when influxdb is enabled")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return errors.New("mqtt.broker must be set when mqtt is enabled")
	}
	if c.MQTT.QoS > 2 {
		return errors.Errorf("mqtt.qos %d is not a valid QoS", c.MQTT.QoS)
	}

	return nil
}

// FailureLimit returns how many failed reads in a row end monitoring, 0 for never
func (c *Config) FailureLimit() int {
	if c.LinkMon.MaxConsecutiveFailures == nil {
		return 0
	}
	return *c.LinkMon.MaxConsecutiveFailures
}

// Timing parses the durations of the linkmon section
func (c *Config) Timing() (Timing, error) {
	var t Timing
	var err error
	if t.Interval, err = ParseDuration(c.LinkMon.Interval); err != nil {
		return t, errors.Wrapf(err, "invalid linkmon.interval %q", c.LinkMon.Interval)
	}
	if t.StartupTimeout, err = ParseDuration(c.LinkMon.StartupTimeout); err != nil {
		return t, errors.Wrapf(err, "invalid linkmon.startup_timeout %q", c.LinkMon.StartupTimeout)
	}
	if t.AbortDelay, err = ParseDuration(c.LinkMon.AbortDelay); err != nil {
		return t, errors.Wrapf(err, "invalid linkmon.abort_delay %q", c.LinkMon.AbortDelay)
	}
	return t, nil
}

// InfluxURL returns the server URL, building it from host and port like older configs did
func (c *Config) InfluxURL() string {
	if c.InfluxDB.URL != "" {
		return c.InfluxDB.URL
	}
	return "https://" + c.InfluxDB.Host + ":" + strconv.Itoa(c.InfluxDB.Port)
}
