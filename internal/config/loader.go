package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"anthology-downloader/internal/scraper"
)

const EnvPrefix = "ANTHOLOGY"

// SetDefaults registers every default so that environment variables can
// override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("event.name", "")
	v.SetDefault("event.year", "")
	v.SetDefault("event.url_template", scraper.DefaultURLTemplate)

	v.SetDefault("output.dir", "")

	v.SetDefault("output.metadata_file", DefaultMetadataFile)
	v.SetDefault("output.slug_titles", true)

	v.SetDefault("browser.backend", "chromedriver")
	v.SetDefault("browser.driver_path", DefaultDriverPath)
	v.SetDefault("browser.chrome_path", "")
	v.SetDefault("browser.xvfb", false)
	v.SetDefault("browser.window_width", 1280)
	v.SetDefault("browser.window_height", 1024)
	v.SetDefault("browser.page_timeout_s", 60)
	v.SetDefault("browser.delay_ms", 100)

	v.SetDefault("http.user_agent", "anthology-downloader/1.0")
	v.SetDefault("http.total_timeout_ms", 120000)
	v.SetDefault("http.max_idle_connections", 10)
	v.SetDefault("http.max_idle_connections_per_host", 2)
	v.SetDefault("http.idle_connection_timeout_s", 90)
	v.SetDefault("http.validate_pdf", false)

	v.SetDefault("selectors_file", "")

	v.SetDefault("storage.driver", "")
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.command_timeout_ms", 5000)

	v.SetDefault("observability.log_path", "")
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "console")

	v.SetDefault("verbose", false)
}

// LoadConfig reads the optional config file, layers ANTHOLOGY_* environment
// variables and any flags already bound to v, then validates the result.
func LoadConfig(v *viper.Viper, filePath string) (*Config, error) {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filePath != "" {
		v.SetConfigFile(filePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &cfg, nil
}
