package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultAPIBaseURL   = "https://story-api.dicoding.dev/v1"
	defaultEnv          = "local"
	defaultLogLevel     = "info"
	defaultConfigDir    = ".storykeeper"
	defaultPollInterval = 60
	defaultHTTPTimeout  = 30
)

type Config struct {
	Env             string `mapstructure:"app_env"`
	APIBaseURL      string `mapstructure:"api_base_url"`
	LogLevel        string `mapstructure:"log_level"`
	ConfigDir       string `mapstructure:"config_dir"`
	DataPath        string `mapstructure:"data_path"`
	PollInterval    int    `mapstructure:"poll_interval_seconds"`
	HTTPTimeout     int    `mapstructure:"http_timeout_seconds"`
	ProxyEventsURL  string `mapstructure:"proxy_events_url"`
	VAPIDPublicKey  string `mapstructure:"vapid_public_key"`
	DisableAutoSync bool   `mapstructure:"disable_auto_sync"`
	ConnectivityURL string `mapstructure:"connectivity_url"`
}

// MustLoad reads the client configuration from the environment (plus an
// optional .env file) and panics on invalid values.
func MustLoad() *Config {
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("failed to load .env file: %v\n", err)
		}
	}

	viper.AutomaticEnv()

	viper.SetDefault("APP_ENV", defaultEnv)
	viper.SetDefault("API_BASE_URL", defaultAPIBaseURL)
	viper.SetDefault("LOG_LEVEL", defaultLogLevel)
	viper.SetDefault("CONFIG_DIR", defaultConfigDir)
	viper.SetDefault("POLL_INTERVAL_SECONDS", defaultPollInterval)
	viper.SetDefault("HTTP_TIMEOUT_SECONDS", defaultHTTPTimeout)
	viper.SetDefault("VAPID_PUBLIC_KEY",
		"BCCs2eonMI-6H2ctvFaWg-UYdDv387Vno_bzUzALpB442r2lCnsHmtrx8biyPi_E-1fSGABK_Qs_GlvPoJJqxbk")

	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("failed to create config directory: %v\n", err)
	}

	dataPath := viper.GetString("DATA_PATH")
	if dataPath == "" {
		dataPath = filepath.Join(configDir, "data.db")
	}

	config := &Config{
		Env:             viper.GetString("APP_ENV"),
		APIBaseURL:      viper.GetString("API_BASE_URL"),
		LogLevel:        viper.GetString("LOG_LEVEL"),
		ConfigDir:       configDir,
		DataPath:        dataPath,
		PollInterval:    viper.GetInt("POLL_INTERVAL_SECONDS"),
		HTTPTimeout:     viper.GetInt("HTTP_TIMEOUT_SECONDS"),
		ProxyEventsURL:  viper.GetString("PROXY_EVENTS_URL"),
		VAPIDPublicKey:  viper.GetString("VAPID_PUBLIC_KEY"),
		DisableAutoSync: viper.GetBool("DISABLE_AUTO_SYNC"),
		ConnectivityURL: viper.GetString("CONNECTIVITY_URL"),
	}

	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid configuration: %v", err))
	}

	return config
}

func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("api_base_url must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}
