package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDriverPath   = "/usr/local/bin/chromedriver"
	DefaultMetadataFile = "meta.json"
)

type Config struct {
	Event         EventConfig         `yaml:"event" mapstructure:"event"`
	Output        OutputConfig        `yaml:"output" mapstructure:"output"`
	Browser       BrowserConfig       `yaml:"browser" mapstructure:"browser"`
	HTTP          HttpConfig          `yaml:"http" mapstructure:"http"`
	SelectorsFile string              `yaml:"selectors_file" mapstructure:"selectors_file"`
	Storage       StorageConfig       `yaml:"storage" mapstructure:"storage"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Verbose       bool                `yaml:"verbose" mapstructure:"verbose"`
}

type EventConfig struct {
	Name        string `yaml:"name" mapstructure:"name"`
	Year        string `yaml:"year" mapstructure:"year"`
	URLTemplate string `yaml:"url_template" mapstructure:"url_template"`
}

type OutputConfig struct {
	Dir          string `yaml:"dir" mapstructure:"dir"`
	MetadataFile string `yaml:"metadata_file" mapstructure:"metadata_file"`
	SlugTitles   bool   `yaml:"slug_titles" mapstructure:"slug_titles"`
}

type BrowserConfig struct {
	Backend      string `yaml:"backend" mapstructure:"backend"`
	DriverPath   string `yaml:"driver_path" mapstructure:"driver_path"`
	ChromePath   string `yaml:"chrome_path" mapstructure:"chrome_path"`
	XVFB         bool   `yaml:"xvfb" mapstructure:"xvfb"`
	WindowWidth  int    `yaml:"window_width" mapstructure:"window_width"`
	WindowHeight int    `yaml:"window_height" mapstructure:"window_height"`
	PageTimeoutS int    `yaml:"page_timeout_s" mapstructure:"page_timeout_s"`
	DelayMS      int    `yaml:"delay_ms" mapstructure:"delay_ms"`
}

type HttpConfig struct {
	UserAgent                 string `yaml:"user_agent" mapstructure:"user_agent"`
	TotalTimeoutMS            int    `yaml:"total_timeout_ms" mapstructure:"total_timeout_ms"`
	MaxIdleConnections        int    `yaml:"max_idle_connections" mapstructure:"max_idle_connections"`
	MaxIdleConnectionsPerHost int    `yaml:"max_idle_connections_per_host" mapstructure:"max_idle_connections_per_host"`
	IdleConnectionTimeoutS    int    `yaml:"idle_connection_timeout_s" mapstructure:"idle_connection_timeout_s"`
	ValidatePDF               bool   `yaml:"validate_pdf" mapstructure:"validate_pdf"`
}

type StorageConfig struct {
	Driver           string `yaml:"driver" mapstructure:"driver"`
	DSN              string `yaml:"dsn" mapstructure:"dsn"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms" mapstructure:"command_timeout_ms"`
}

type ObservabilityConfig struct {
	LogPath   string `yaml:"log_path" mapstructure:"log_path"`
	LogLevel  string `yaml:"log_level" mapstructure:"log_level"`
	LogFormat string `yaml:"log_format" mapstructure:"log_format"`
}

// Validation
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Event.Name) == "" {
		return fmt.Errorf("event.name is required")
	}
	if strings.TrimSpace(c.Event.Year) == "" {
		return fmt.Errorf("event.year is required")
	}
	if strings.Count(c.Event.URLTemplate, "%s") != 2 {
		return fmt.Errorf("event.url_template must contain exactly two %%s verbs")
	}
	if strings.TrimSpace(c.Output.Dir) == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.MetadataFile == "" {
		return fmt.Errorf("output.metadata_file is required")
	}
	switch c.Browser.Backend {
	case "chromedriver":
		if c.Browser.DriverPath == "" {
			return fmt.Errorf("browser.driver_path is required for the chromedriver backend")
		}
	case "rod", "static":
	default:
		return fmt.Errorf("browser.backend must be 'chromedriver', 'rod' or 'static'")
	}
	if c.Browser.XVFB && c.Browser.Backend == "static" {
		return fmt.Errorf("browser.xvfb is not supported by the static backend")
	}
	if c.Browser.WindowWidth <= 0 || c.Browser.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be > 0")
	}
	if c.Browser.PageTimeoutS <= 0 {
		return fmt.Errorf("browser.page_timeout_s must be > 0")
	}
	if c.Browser.DelayMS < 0 {
		return fmt.Errorf("browser.delay_ms must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		return fmt.Errorf("http.user_agent is required")
	}
	if c.HTTP.TotalTimeoutMS <= 0 {
		return fmt.Errorf("http.total_timeout_ms must be > 0")
	}
	switch c.Storage.Driver {
	case "":
	case "sqlite", "mssql":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required when storage.driver is set")
		}
		if c.Storage.CommandTimeoutMS <= 0 {
			return fmt.Errorf("storage.command_timeout_ms must be > 0")
		}
	default:
		return fmt.Errorf("storage.driver must be empty, 'sqlite' or 'mssql'")
	}
	return nil
}

// Getters
func (c *Config) GetTotalTimeout() time.Duration {
	return time.Duration(c.HTTP.TotalTimeoutMS) * time.Millisecond
}

func (c *Config) GetIdleConnectionTimeout() time.Duration {
	return time.Duration(c.HTTP.IdleConnectionTimeoutS) * time.Second
}

func (c *Config) GetPageTimeout() time.Duration {
	return time.Duration(c.Browser.PageTimeoutS) * time.Second
}

func (c *Config) GetDelay() time.Duration {
	return time.Duration(c.Browser.DelayMS) * time.Millisecond
}

func (c *Config) GetCommandTimeout() time.Duration {
	return time.Duration(c.Storage.CommandTimeoutMS) * time.Millisecond
}

// LogLevel returns the effective log level; verbose runs always log at debug.
func (c *Config) LogLevel() string {
	if c.Verbose {
		return "debug"
	}
	return c.Observability.LogLevel
}
