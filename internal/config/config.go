package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	LLM      LLM      `mapstructure:"llm"`
	Pipeline Pipeline `mapstructure:"pipeline"`
}

// App holds general application configuration
type App struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
	DataDir  string `mapstructure:"data_dir"`
}

// LLM holds the enrichment model configuration
type LLM struct {
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Timeout     string  `mapstructure:"timeout"`
	Temperature float32 `mapstructure:"temperature"`
	MaxRetries  int     `mapstructure:"max_retries"`
}

// Pipeline holds the curation pipeline tunables
type Pipeline struct {
	DedupBatchSize        int     `mapstructure:"dedup_batch_size"`
	GroupBatchSize        int     `mapstructure:"group_batch_size"`
	TopKeywords           int     `mapstructure:"top_keywords"`
	MinSharedKeywords     int     `mapstructure:"min_shared_keywords"`
	PersonalizationDampen float64 `mapstructure:"personalization_dampen"`
}

var globalConfig *Config

// Load reads configuration from the given file (or the default search
// path), layered with environment variables and a local .env file.
func Load(configFile string) (*Config, error) {
	if globalConfig != nil {
		return globalConfig, nil
	}

	// Load .env file if it exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("Warning: Error loading .env file: %v\n", err)
		}
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
		viper.SetConfigName(".dailybrief")
		viper.SetConfigType("yaml")
	}

	setDefaults()

	viper.SetEnvPrefix("DAILYBRIEF")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	globalConfig = config
	return config, nil
}

// Get returns the global configuration, loading it if necessary
func Get() *Config {
	if globalConfig == nil {
		config, err := Load("")
		if err != nil {
			panic(fmt.Sprintf("Failed to load configuration: %v", err))
		}
		return config
	}
	return globalConfig
}

// Reset clears the global configuration. Intended for tests.
func Reset() {
	globalConfig = nil
	viper.Reset()
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.debug", false)
	viper.SetDefault("app.log_level", "info")
	viper.SetDefault("app.data_dir", ".dailybrief")

	// LLM defaults
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.timeout", "30s")
	viper.SetDefault("llm.temperature", 0.2)
	viper.SetDefault("llm.max_retries", 2)

	// Pipeline defaults, matching the documented curation behavior
	viper.SetDefault("pipeline.dedup_batch_size", 50)
	viper.SetDefault("pipeline.group_batch_size", 20)
	viper.SetDefault("pipeline.top_keywords", 10)
	viper.SetDefault("pipeline.min_shared_keywords", 2)
	viper.SetDefault("pipeline.personalization_dampen", 0.5)
}

func validateConfig(config *Config) error {
	if config.Pipeline.DedupBatchSize <= 0 {
		return fmt.Errorf("pipeline.dedup_batch_size must be positive, got %d", config.Pipeline.DedupBatchSize)
	}
	if config.Pipeline.GroupBatchSize <= 0 {
		return fmt.Errorf("pipeline.group_batch_size must be positive, got %d", config.Pipeline.GroupBatchSize)
	}
	if config.Pipeline.TopKeywords <= 0 {
		return fmt.Errorf("pipeline.top_keywords must be positive, got %d", config.Pipeline.TopKeywords)
	}
	if config.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must not be negative, got %d", config.LLM.MaxRetries)
	}
	return nil
}

// GetDataDir returns the configured data directory.
func GetDataDir() string { return Get().App.DataDir }

// GetLLMAPIKey returns the configured LLM API key, falling back to the
// conventional environment variable.
func GetLLMAPIKey() string {
	if key := Get().LLM.APIKey; key != "" {
		return key
	}
	return os.Getenv("GEMINI_API_KEY")
}
