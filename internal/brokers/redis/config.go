package redis

import (
	"fmt"
	"time"
)

type Config struct {
	Address      string
	Password     string
	DB           int
	PoolSize     int
	Timeout      time.Duration
	StreamMaxLen int64 // Maximum length of streams (0 = no limit)
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("Redis address is required")
	}
	if c.DB < 0 || c.DB > 15 {
		return fmt.Errorf("Redis DB must be between 0 and 15")
	}

	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}

	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}

	if c.StreamMaxLen < 0 {
		c.StreamMaxLen = 0
	}

	return nil
}

func (c *Config) GetType() string {
	return "redis"
}

// GetConnectionString never includes the password.
func (c *Config) GetConnectionString() string {
	return fmt.Sprintf("redis://%s/%d", c.Address, c.DB)
}

func DefaultConfig() *Config {
	return &Config{
		Address:      "localhost:6379",
		DB:           0,
		PoolSize:     10,
		Timeout:      5 * time.Second,
		StreamMaxLen: 10000,
	}
}
