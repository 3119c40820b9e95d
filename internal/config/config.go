// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Device transport types.
const (
	TypeRTUOverTCP = "rtu-over-tcp"
	TypeTCP        = "tcp" // behind a Modbus TCP gateway
	TypeRTU        = "rtu"
	TypeLocal      = "local"
)

// Config defines the global configuration structure
type Config struct {
	Device    DeviceConfig    `mapstructure:"device"`
	Log       LogConfig       `mapstructure:"log"`
	Output    string          `mapstructure:"output"` // text, json, yaml
	Watch     WatchConfig     `mapstructure:"watch"`
	Simulator SimulatorConfig `mapstructure:"simulator"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DeviceConfig defines how the controller is reached
type DeviceConfig struct {
	Type    string        `mapstructure:"type"` // "rtu-over-tcp", "tcp", "rtu", "local"
	Host    string        `mapstructure:"host"`
	Port    int           `mapstructure:"port"`
	UnitID  int           `mapstructure:"unit_id"`
	Timeout time.Duration `mapstructure:"timeout"`
	Serial  SerialConfig  `mapstructure:"serial"` // Used if Type is "rtu"
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device   string        `mapstructure:"device"`
	BaudRate int           `mapstructure:"baud_rate"`
	DataBits int           `mapstructure:"data_bits"`
	Parity   string        `mapstructure:"parity"`
	StopBits int           `mapstructure:"stop_bits"`
	Timeout  time.Duration `mapstructure:"timeout"`

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// WatchConfig defines the polling exporter
type WatchConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Listen   string        `mapstructure:"listen"` // metrics address, empty disables
}

// SimulatorConfig defines the built-in controller simulator
type SimulatorConfig struct {
	Listen string `mapstructure:"listen"`
	UnitID int    `mapstructure:"unit_id"`
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"type":        "device.type",
	"host":        "device.host",
	"port":        "device.port",
	"unit-id":     "device.unit_id",
	"timeout":     "device.timeout",
	"serial":      "device.serial.device",
	"baud-rate":   "device.serial.baud_rate",
	"output":      "output",
	"log-level":   "log.level",
	"log-file":    "log.file",
	"interval":    "watch.interval",
	"metrics":     "watch.listen",
	"sim-listen":  "simulator.listen",
	"sim-unit-id": "simulator.unit_id",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.type", TypeRTUOverTCP)
	v.SetDefault("device.host", "127.0.0.1")
	v.SetDefault("device.port", 8000)
	v.SetDefault("device.unit_id", 1)
	v.SetDefault("device.timeout", 5*time.Second)
	v.SetDefault("device.serial.device", "/dev/ttyUSB0")
	v.SetDefault("device.serial.baud_rate", 9600)
	v.SetDefault("device.serial.data_bits", 8)
	v.SetDefault("device.serial.parity", "N")
	v.SetDefault("device.serial.stop_bits", 1)
	v.SetDefault("device.serial.timeout", 500*time.Millisecond)
	v.SetDefault("device.serial.rs485", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("output", "text")
	v.SetDefault("watch.interval", 10*time.Second)
	v.SetDefault("watch.listen", ":9108")
	v.SetDefault("simulator.listen", ":8000")
	v.SetDefault("simulator.unit_id", 1)
}

// LoadConfig loads configuration from defaults, the config file, LANGJI_*
// environment variables and flags, later sources winning. A missing config
// file is not an error unless configFile names it explicitly.
func LoadConfig(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/langji-ac/")
		v.AddConfigPath("$HOME/.langji-ac")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("LANGJI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	fixupSerial(&config.Device.Serial)
	config.Output = strings.ToLower(config.Output)
	config.Log.Level = strings.ToLower(config.Log.Level)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks ranges that would otherwise surface as confusing I/O
// errors.
func (c *Config) Validate() error {
	switch c.Device.Type {
	case TypeRTUOverTCP, TypeTCP, TypeRTU, TypeLocal:
	default:
		return fmt.Errorf("unknown device type %q", c.Device.Type)
	}
	if c.Device.Type == TypeRTUOverTCP || c.Device.Type == TypeTCP {
		if c.Device.Host == "" {
			return errors.New("device.host is required")
		}
		if c.Device.Port < 1 || c.Device.Port > 65535 {
			return fmt.Errorf("device.port %d out of range", c.Device.Port)
		}
	}
	if c.Device.UnitID < 0 || c.Device.UnitID > 255 {
		return fmt.Errorf("device.unit_id %d out of range", c.Device.UnitID)
	}
	if c.Simulator.UnitID < 0 || c.Simulator.UnitID > 255 {
		return fmt.Errorf("simulator.unit_id %d out of range", c.Simulator.UnitID)
	}
	if c.Device.Timeout <= 0 {
		return fmt.Errorf("device.timeout must be positive")
	}
	switch c.Output {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("unknown output format %q", c.Output)
	}
	if c.Watch.Interval <= 0 {
		return fmt.Errorf("watch.interval must be positive")
	}
	return nil
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
}
