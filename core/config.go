package core

import (
	"fmt"
	"strings"
)

type RemoteConfig struct {
	Endpoint string `koanf:"endpoint" mapstructure:"endpoint"`
	Space    string `koanf:"space" mapstructure:"space"`
}

type QueueConfig struct {
	PageSize    int `koanf:"page_size" mapstructure:"page_size"`
	MaxAttempts int `koanf:"max_attempts" mapstructure:"max_attempts"`
}

type Config struct {
	ServiceName string       `koanf:"service_name" mapstructure:"service_name"`
	SalesUnits  []string     `koanf:"sales_units" mapstructure:"sales_units"`
	Remote      RemoteConfig `koanf:"remote" mapstructure:"remote"`
	Queue       QueueConfig  `koanf:"queue" mapstructure:"queue"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "crm-sync",
		Queue: QueueConfig{
			PageSize:    100,
			MaxAttempts: 8,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Queue.PageSize < 0 {
		return fmt.Errorf("core: queue.page_size must not be negative")
	}
	if c.Queue.MaxAttempts < 0 {
		return fmt.Errorf("core: queue.max_attempts must not be negative")
	}
	return nil
}
