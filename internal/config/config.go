package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/screa/rbnb-miner/internal/crypto"
	"github.com/screa/rbnb-miner/internal/fault"
	"github.com/screa/rbnb-miner/pkg/types"
)

const (
	DefaultValidateURL     = "https://ec2-18-218-197-117.us-east-2.compute.amazonaws.com/validate"
	DefaultBalanceURL      = "https://ec2-18-218-197-117.us-east-2.compute.amazonaws.com/balance"
	DefaultChallenge       = "0x72424e4200000000000000000000000000000000000000000000000000000000"
	DefaultDifficulty      = "0x999999"
	DefaultTick            = "rBNB"
	DefaultFallbackAddress = "0x15fcea85beda82e9e186d968c1cdc2c96865f917"
	DefaultAddressFile     = "address_list.txt"
	DefaultQueueKey        = "solution"
)

// Config holds the application configuration
type Config struct {
	Workers     int
	Verbose     bool
	LogFile     string
	LogInterval int // progress logging interval in seconds

	// Challenge
	Challenge  string
	Difficulty string
	Tick       string

	// Addresses
	AddressFile     string
	FallbackAddress string

	// Mining loop
	Count    int           // solutions to find before exiting, 0 means forever
	Interval time.Duration // pause between iterations

	// Validator
	ValidateURL     string
	BalanceURL      string
	SubmitTimeout   time.Duration
	InsecureTLS     bool
	Headers         map[string]string
	BalanceInterval time.Duration

	// Durable queue; empty RedisAddr selects direct submission
	RedisAddr       string
	QueueKey        string
	PollInterval    time.Duration
	RetryDelay      time.Duration
	RestartCooldown time.Duration
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Workers:         runtime.NumCPU(),
		LogInterval:     5,
		Challenge:       DefaultChallenge,
		Difficulty:      DefaultDifficulty,
		Tick:            DefaultTick,
		AddressFile:     DefaultAddressFile,
		FallbackAddress: DefaultFallbackAddress,
		ValidateURL:     DefaultValidateURL,
		BalanceURL:      DefaultBalanceURL,
		SubmitTimeout:   30 * time.Second,
		InsecureTLS:     true,
		Headers:         defaultHeaders(),
		BalanceInterval: 5 * time.Second,
		QueueKey:        DefaultQueueKey,
		PollInterval:    time.Second,
		RetryDelay:      3 * time.Second,
		RestartCooldown: 2 * time.Second,
	}
}

// the validator only answers requests that look like they come from its web page
func defaultHeaders() map[string]string {
	return map[string]string{
		"accept-language": "en-US,en;q=0.9",
		"cache-control":   "no-cache",
		"origin":          "https://bnb.reth.cc",
		"pragma":          "no-cache",
		"referer":         "https://bnb.reth.cc/",
		"sec-fetch-dest":  "empty",
		"sec-fetch-mode":  "cors",
		"sec-fetch-site":  "cross-site",
		"user-agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	}
}

// Validate validates the configuration and normalizes hex values in place
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fault.ErrInvalidWorkers
	}
	if c.ValidateURL == "" {
		return fault.ErrNoValidateURL
	}

	d, err := crypto.NormalizeDifficulty(c.Difficulty)
	if err != nil {
		return err
	}
	c.Difficulty = d

	if _, err := crypto.ParseChallenge(c.Challenge); err != nil {
		return err
	}

	if c.FallbackAddress != "" {
		a, err := crypto.NormalizeAddress(c.FallbackAddress)
		if err != nil {
			return fmt.Errorf("fallback address: %w", err)
		}
		c.FallbackAddress = a
	}

	if c.LogInterval <= 0 {
		c.LogInterval = 5
	}
	if c.QueueKey == "" {
		c.QueueKey = DefaultQueueKey
	}
	return nil
}

// UseQueue reports whether solutions go through the durable queue
func (c *Config) UseQueue() bool {
	return strings.TrimSpace(c.RedisAddr) != ""
}

// GetChallenge returns the parsed challenge. Call after Validate.
func (c *Config) GetChallenge() (types.Challenge, error) {
	b, err := crypto.ParseChallenge(c.Challenge)
	if err != nil {
		return types.Challenge{}, err
	}
	return types.Challenge{
		Bytes:      b,
		Difficulty: c.Difficulty,
		Tick:       c.Tick,
	}, nil
}

// GetTargetDescription returns a human-readable description of the target
func (c *Config) GetTargetDescription() string {
	digits := len(strings.TrimPrefix(c.Difficulty, "0x"))
	return fmt.Sprintf("hash prefix %s (%d hex digits)", c.Difficulty, digits)
}

// fileConfig mirrors the TOML file layout. Durations are strings such as "3s".
type fileConfig struct {
	Workers     int    `toml:"workers"`
	Verbose     bool   `toml:"verbose"`
	LogFile     string `toml:"log_file"`
	LogInterval int    `toml:"log_interval"`

	Challenge struct {
		Value      string `toml:"value"`
		Difficulty string `toml:"difficulty"`
		Tick       string `toml:"tick"`
	} `toml:"challenge"`

	Addresses struct {
		File     string `toml:"file"`
		Fallback string `toml:"fallback"`
	} `toml:"addresses"`

	Mining struct {
		Count    int    `toml:"count"`
		Interval string `toml:"interval"`
	} `toml:"mining"`

	Validator struct {
		ValidateURL     string            `toml:"validate_url"`
		BalanceURL      string            `toml:"balance_url"`
		Timeout         string            `toml:"timeout"`
		InsecureTLS     *bool             `toml:"insecure_tls"`
		Headers         map[string]string `toml:"headers"`
		BalanceInterval string            `toml:"balance_interval"`
	} `toml:"validator"`

	Queue struct {
		RedisAddr       string `toml:"redis_addr"`
		Key             string `toml:"key"`
		PollInterval    string `toml:"poll_interval"`
		RetryDelay      string `toml:"retry_delay"`
		RestartCooldown string `toml:"restart_cooldown"`
	} `toml:"queue"`
}

// LoadFile overlays the values set in a TOML file onto c. A missing file is not an error.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var fc fileConfig
	if err := toml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return c.apply(fc)
}

func (c *Config) apply(fc fileConfig) error {
	setInt(&c.Workers, fc.Workers)
	setInt(&c.LogInterval, fc.LogInterval)
	setInt(&c.Count, fc.Mining.Count)
	if fc.Verbose {
		c.Verbose = true
	}
	setString(&c.LogFile, fc.LogFile)
	setString(&c.Challenge, fc.Challenge.Value)
	setString(&c.Difficulty, fc.Challenge.Difficulty)
	setString(&c.Tick, fc.Challenge.Tick)
	setString(&c.AddressFile, fc.Addresses.File)
	setString(&c.FallbackAddress, fc.Addresses.Fallback)
	setString(&c.ValidateURL, fc.Validator.ValidateURL)
	setString(&c.BalanceURL, fc.Validator.BalanceURL)
	setString(&c.RedisAddr, fc.Queue.RedisAddr)
	setString(&c.QueueKey, fc.Queue.Key)

	if fc.Validator.InsecureTLS != nil {
		c.InsecureTLS = *fc.Validator.InsecureTLS
	}
	for k, v := range fc.Validator.Headers {
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[strings.ToLower(k)] = v
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"mining.interval", fc.Mining.Interval, &c.Interval},
		{"validator.timeout", fc.Validator.Timeout, &c.SubmitTimeout},
		{"validator.balance_interval", fc.Validator.BalanceInterval, &c.BalanceInterval},
		{"queue.poll_interval", fc.Queue.PollInterval, &c.PollInterval},
		{"queue.retry_delay", fc.Queue.RetryDelay, &c.RetryDelay},
		{"queue.restart_cooldown", fc.Queue.RestartCooldown, &c.RestartCooldown},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

func setString(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
