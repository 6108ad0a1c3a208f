// Package config loads controller configuration with viper.
//
// Sources, lowest precedence first: built-in defaults, config.yml (searched
// in . and /etc/ac-controller), AC_* environment variables, bound flags.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/sweeney/ac-controller/internal/gpio"
	"github.com/sweeney/ac-controller/internal/logic"
	"github.com/sweeney/ac-controller/internal/signal"
)

// Store drivers.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// EnvPrefix prefixes every environment override, e.g. AC_POLICY_TEMP_HIGH.
const EnvPrefix = "AC"

// Config is the complete controller configuration.
type Config struct {
	DeviceID   string            `mapstructure:"device_id" yaml:"device_id"`
	Broker     string            `mapstructure:"broker" yaml:"broker"`
	LogLevel   string            `mapstructure:"log_level" yaml:"log_level"`
	Cycle      time.Duration     `mapstructure:"cycle" yaml:"cycle"`
	Debounce   time.Duration     `mapstructure:"debounce" yaml:"debounce"`
	ActiveEdge string            `mapstructure:"active_edge" yaml:"active_edge"`
	GPIO       GPIOConfig        `mapstructure:"gpio" yaml:"gpio"`
	Slots      []string          `mapstructure:"slots" yaml:"slots"`
	Policy     PolicyConfig      `mapstructure:"policy" yaml:"policy"`
	Signal     SignalConfig      `mapstructure:"signal" yaml:"signal"`
	Store      StoreConfig       `mapstructure:"store" yaml:"store"`
	Journal    JournalConfig     `mapstructure:"journal" yaml:"journal"`
	Commands   map[string]string `mapstructure:"commands" yaml:"commands,omitempty"`
	MQTT       MQTTConfig        `mapstructure:"mqtt" yaml:"mqtt"`
	HTTP       HTTPConfig        `mapstructure:"http" yaml:"http"`
	IR         IRConfig          `mapstructure:"ir" yaml:"ir"`
	Sensor     SensorConfig      `mapstructure:"sensor" yaml:"sensor"`
}

// GPIOConfig selects the toggle button line.
type GPIOConfig struct {
	Chip      string `mapstructure:"chip" yaml:"chip"`
	ButtonPin int    `mapstructure:"button_pin" yaml:"button_pin"`
	Bias      string `mapstructure:"bias" yaml:"bias"`
}

// PolicyConfig configures the threshold climate policy.
type PolicyConfig struct {
	TempHigh       float64       `mapstructure:"temp_high" yaml:"temp_high"`
	TempLow        float64       `mapstructure:"temp_low" yaml:"temp_low"`
	Interval       time.Duration `mapstructure:"interval" yaml:"interval"`
	ActivateSlot   string        `mapstructure:"activate_slot" yaml:"activate_slot"`
	DeactivateSlot string        `mapstructure:"deactivate_slot" yaml:"deactivate_slot"`
}

// SignalConfig fixes the stored signal variant for the deployment.
type SignalConfig struct {
	Layout    string `mapstructure:"layout" yaml:"layout"`
	Protocol  string `mapstructure:"protocol" yaml:"protocol"`
	CarrierHz int    `mapstructure:"carrier_hz" yaml:"carrier_hz"`
	SlotSize  int    `mapstructure:"slot_size" yaml:"slot_size"`
}

// StoreConfig selects the persistent store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// JournalConfig enables the SQLite event journal when Path is set.
type JournalConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MQTTConfig tunes the broker link.
type MQTTConfig struct {
	Retry  time.Duration `mapstructure:"retry" yaml:"retry"`
	Buffer int           `mapstructure:"buffer" yaml:"buffer"`
}

// HTTPConfig configures the status server. An empty Addr disables it.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// IRConfig names the LIRC devices.
type IRConfig struct {
	RXDevice string `mapstructure:"rx_device" yaml:"rx_device"`
	TXDevice string `mapstructure:"tx_device" yaml:"tx_device"`
}

// SensorConfig names the IIO device of the humidity/temperature sensor.
type SensorConfig struct {
	IIODevice string `mapstructure:"iio_device" yaml:"iio_device"`
}

// SetDefaults registers every key with its default.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("device_id", "ac1")
	v.SetDefault("broker", "tcp://localhost:1883")
	v.SetDefault("log_level", "info")
	v.SetDefault("cycle", 10*time.Millisecond)
	v.SetDefault("debounce", 50*time.Millisecond)
	v.SetDefault("active_edge", string(logic.EdgeFalling))
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.button_pin", gpio.DefaultButtonPin)
	v.SetDefault("gpio.bias", string(gpio.BiasPullUp))
	v.SetDefault("slots", []string{"cool", "fan", "off"})
	v.SetDefault("policy.temp_high", 27.0)
	v.SetDefault("policy.temp_low", 23.0)
	v.SetDefault("policy.interval", 5*time.Second)
	v.SetDefault("policy.activate_slot", "cool")
	v.SetDefault("policy.deactivate_slot", "off")
	v.SetDefault("signal.layout", string(signal.LayoutRaw))
	v.SetDefault("signal.protocol", "NEC")
	v.SetDefault("signal.carrier_hz", 38000)
	v.SetDefault("signal.slot_size", 400)
	v.SetDefault("store.driver", DriverFile)
	v.SetDefault("store.path", "/var/lib/ac-controller/slots.bin")
	v.SetDefault("journal.path", "")
	v.SetDefault("commands", map[string]string{})
	v.SetDefault("mqtt.retry", time.Second)
	v.SetDefault("mqtt.buffer", 64)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("ir.rx_device", "/dev/lirc1")
	v.SetDefault("ir.tx_device", "/dev/lirc0")
	v.SetDefault("sensor.iio_device", "/sys/bus/iio/devices/iio:device0")
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (path, or config.yml on the search path) into v
// and returns the validated configuration. A missing config.yml on the search
// path is not an error; a missing explicit path is.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ac-controller")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return Decode(v)
}

// Decode unmarshals and validates the configuration held by v.
func Decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the startup contract.
func (c Config) Validate() error {
	var errs []error
	if c.DeviceID == "" {
		errs = append(errs, errors.New("device_id is required"))
	}
	if c.Cycle <= 0 {
		errs = append(errs, fmt.Errorf("cycle must be positive, got %v", c.Cycle))
	}
	if c.Debounce < 0 {
		errs = append(errs, fmt.Errorf("debounce must not be negative, got %v", c.Debounce))
	}
	if _, err := logic.ParseEdge(c.ActiveEdge); err != nil {
		errs = append(errs, err)
	}
	switch gpio.Bias(c.GPIO.Bias) {
	case gpio.BiasPullUp, gpio.BiasPullDown, gpio.BiasDisabled:
	default:
		errs = append(errs, fmt.Errorf("unknown gpio.bias %q", c.GPIO.Bias))
	}

	if len(c.Slots) == 0 {
		errs = append(errs, errors.New("at least one slot is required"))
	}
	seen := make(map[string]bool, len(c.Slots))
	for _, s := range c.Slots {
		switch {
		case strings.TrimSpace(s) == "":
			errs = append(errs, errors.New("slot names must not be empty"))
		case seen[s]:
			errs = append(errs, fmt.Errorf("duplicate slot %q", s))
		}
		seen[s] = true
	}

	if err := c.Thresholds().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Policy.Interval <= 0 {
		errs = append(errs, fmt.Errorf("policy.interval must be positive, got %v", c.Policy.Interval))
	}
	if !seen[c.Policy.ActivateSlot] {
		errs = append(errs, fmt.Errorf("policy.activate_slot %q is not in slots", c.Policy.ActivateSlot))
	}
	if !seen[c.Policy.DeactivateSlot] {
		errs = append(errs, fmt.Errorf("policy.deactivate_slot %q is not in slots", c.Policy.DeactivateSlot))
	}

	layout, err := signal.ParseLayout(c.Signal.Layout)
	if err != nil {
		errs = append(errs, err)
	} else if _, err := signal.NewCodec(layout, c.Signal.Protocol, c.Signal.SlotSize); err != nil {
		errs = append(errs, fmt.Errorf("signal: %w", err))
	}
	if c.Signal.CarrierHz <= 0 {
		errs = append(errs, fmt.Errorf("signal.carrier_hz must be positive, got %d", c.Signal.CarrierHz))
	}

	switch c.Store.Driver {
	case DriverFile, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q (want %s or %s)", c.Store.Driver, DriverFile, DriverSQLite))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Journal.Path != "" && c.Journal.Path == c.Store.Path && c.Store.Driver != DriverSQLite {
		errs = append(errs, fmt.Errorf("journal.path may equal store.path only with store.driver %s", DriverSQLite))
	}

	if _, err := c.Vocabulary(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Thresholds returns the policy bounds.
func (c Config) Thresholds() logic.Thresholds {
	return logic.Thresholds{High: c.Policy.TempHigh, Low: c.Policy.TempLow}
}

// Layout returns the parsed signal layout. Call only on a validated Config.
func (c Config) Layout() signal.Layout {
	l, _ := signal.ParseLayout(c.Signal.Layout)
	return l
}

// Codec returns the store codec.
func (c Config) Codec() (signal.Codec, error) {
	layout, err := signal.ParseLayout(c.Signal.Layout)
	if err != nil {
		return signal.Codec{}, err
	}
	return signal.NewCodec(layout, c.Signal.Protocol, c.Signal.SlotSize)
}

// Edge returns the parsed active edge. Call only on a validated Config.
func (c Config) Edge() logic.Edge {
	e, _ := logic.ParseEdge(c.ActiveEdge)
	return e
}

// Vocabulary builds the command vocabulary: auto, learn, each slot name and
// the configured aliases. Aliases are applied in sorted order so an alias may
// name another alias deterministically.
func (c Config) Vocabulary() (logic.Vocabulary, error) {
	v, err := logic.NewVocabulary(c.Slots)
	if err != nil {
		return nil, fmt.Errorf("slots: %w", err)
	}
	words := make([]string, 0, len(c.Commands))
	for w := range c.Commands {
		words = append(words, w)
	}
	sort.Strings(words)
	for _, word := range words {
		if err := v.Alias(word, c.Commands[word]); err != nil {
			return nil, fmt.Errorf("commands: %w", err)
		}
	}
	return v, nil
}
