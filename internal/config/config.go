package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Web          WebConfig          `mapstructure:"web"`
	Pins         PinsConfig         `mapstructure:"pins"`
	Watchdog     WatchdogConfig     `mapstructure:"watchdog"`
	Connectivity ConnectivityConfig `mapstructure:"connectivity"`
	Notify       NotifyConfig       `mapstructure:"notify"`
}

type ServerConfig struct {
	TCPPort    int `mapstructure:"tcp_port"`
	UDPPort    int `mapstructure:"udp_port"`
	MaxClients int `mapstructure:"max_clients"`
}

type WebConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type PinsConfig struct {
	// Whitelist of controllable pin numbers, in presentation order.
	Safe []int `mapstructure:"safe"`

	PWMChannels  int `mapstructure:"pwm_channels"`
	PWMFrequency int `mapstructure:"pwm_frequency"`
}

type WatchdogConfig struct {
	Timeout              time.Duration `mapstructure:"timeout"`
	FeedInterval         time.Duration `mapstructure:"feed_interval"`
	MaxConsecutiveErrors int           `mapstructure:"max_consecutive_errors"`
	ErrorCooldown        time.Duration `mapstructure:"error_cooldown"`
	RestartDelay         time.Duration `mapstructure:"restart_delay"`
}

type ConnectivityConfig struct {
	Interface      string        `mapstructure:"interface"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	CheckInterval  time.Duration `mapstructure:"check_interval"`
}

type NotifyConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Broker   string `mapstructure:"broker"`
	Topic    string `mapstructure:"topic"`
	ClientID string `mapstructure:"client_id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	// Defaults setzen
	viper.SetDefault("server.tcp_port", 8888)
	viper.SetDefault("server.udp_port", 8889)
	viper.SetDefault("server.max_clients", 4)

	viper.SetDefault("web.enabled", true)
	viper.SetDefault("web.port", 8080)

	// Pins that are safe to drive on the reference board. Flash, boot-strap
	// and console pins are deliberately absent.
	viper.SetDefault("pins.safe", []int{
		4, 5, 12, 13, 14, 15, 16, 17, 18, 19,
		21, 22, 23, 25, 26, 27, 32, 33,
	})
	viper.SetDefault("pins.pwm_channels", 16)
	viper.SetDefault("pins.pwm_frequency", 5000)

	viper.SetDefault("watchdog.timeout", "8s")
	viper.SetDefault("watchdog.feed_interval", "1s")
	viper.SetDefault("watchdog.max_consecutive_errors", 10)
	viper.SetDefault("watchdog.error_cooldown", "5s")
	viper.SetDefault("watchdog.restart_delay", "2s")

	viper.SetDefault("connectivity.connect_timeout", "10s")
	viper.SetDefault("connectivity.check_interval", "5s")

	viper.SetDefault("notify.enabled", false)
	viper.SetDefault("notify.topic", "pincore/notice")
	viper.SetDefault("notify.client_id", "pincore")

	// Environment Variables automatisch binden (Viper Feature)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("PINCORE")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	if len(c.Pins.Safe) == 0 {
		return fmt.Errorf("pins.safe must list at least one controllable pin")
	}
	if c.Server.MaxClients < 1 {
		return fmt.Errorf("server.max_clients must be >= 1 (got %d)", c.Server.MaxClients)
	}
	if c.Pins.PWMChannels < 1 {
		return fmt.Errorf("pins.pwm_channels must be >= 1 (got %d)", c.Pins.PWMChannels)
	}
	if c.Watchdog.FeedInterval >= c.Watchdog.Timeout {
		return fmt.Errorf("watchdog.feed_interval (%s) must be shorter than watchdog.timeout (%s)",
			c.Watchdog.FeedInterval, c.Watchdog.Timeout)
	}
	return nil
}
