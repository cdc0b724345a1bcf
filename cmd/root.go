package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siddu28/Erflog/internal/filtering"
	"github.com/siddu28/Erflog/internal/matching"
	"github.com/siddu28/Erflog/internal/roadmap"
	"github.com/siddu28/Erflog/internal/snapshot"
)

const (
	app = "erflog"
)

type Config struct {
	Matching MatchingConfig  `mapstructure:"matching"`
	Run      snapshot.Config `mapstructure:"run"`
	Roadmap  roadmap.Config  `mapstructure:"roadmap"`
	Filters  FiltersConfig   `mapstructure:"filters"`
	AI       *AIConfig       `mapstructure:"ai"`
	Pinecone *PineconeConfig `mapstructure:"pinecone"`
	Database DatabaseConfig  `mapstructure:"database"`
	Redis    *RedisConfig    `mapstructure:"redis"`
	Server   ServerConfig    `mapstructure:"server"`
}

type MatchingConfig struct {
	ReadyThreshold   float64 `mapstructure:"ready-threshold" validate:"gt=0,lte=1"`
	DiscardThreshold float64 `mapstructure:"discard-threshold" validate:"gte=0,ltfield=ReadyThreshold"`
}

type FiltersConfig struct {
	ExcludedOrgs []string `mapstructure:"excluded-orgs"`
	ExcludeFile  string   `mapstructure:"exclude-file"`
	ExcludeSaved bool     `mapstructure:"exclude-saved"`
	Disabled     []string `mapstructure:"disabled" validate:"dive,oneof=duplicates excluded_orgs exclude_file saved_history"`
}

// chain returns a fresh filter chain with the configured steps switched off.
func (f FiltersConfig) chain() []filtering.Filter {
	steps := filtering.Default()
	for _, name := range f.Disabled {
		filtering.DisableByName(steps, name, "disabled in config")
	}
	return steps
}

func (f FiltersConfig) filtering() *filtering.Config {
	return &filtering.Config{
		ExcludedOrgs: f.ExcludedOrgs,
		ExcludeFile:  f.ExcludeFile,
		ExcludeSaved: f.ExcludeSaved,
	}
}

type AIConfig struct {
	Provider     string        `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	MaxLogLength int           `mapstructure:"max-log-length" validate:"gte=0"`
	Gemini       *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey         string  `mapstructure:"api-key"`
	APIKeyFile     string  `mapstructure:"api-key-file"`
	Model          string  `mapstructure:"model"`
	EmbeddingModel string  `mapstructure:"embedding-model"`
	MaxRetries     int     `mapstructure:"max-retries" validate:"gte=0"`
	Temperature    float32 `mapstructure:"temperature" validate:"gte=0,lte=2"`
}

type PineconeConfig struct {
	APIKey        string            `mapstructure:"api-key"`
	APIKeyFile    string            `mapstructure:"api-key-file"`
	Index         string            `mapstructure:"index"`
	Host          string            `mapstructure:"host"`
	UserIndex     string            `mapstructure:"user-index"`
	UserHost      string            `mapstructure:"user-host"`
	UserNamespace string            `mapstructure:"user-namespace"`
	Namespaces    map[string]string `mapstructure:"namespaces"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db" validate:"gte=0"`
	LockTTL  time.Duration `mapstructure:"lock-ttl" validate:"omitempty,gte=1s"`
}

type ServerConfig struct {
	Addr           string   `mapstructure:"addr"`
	CronSecret     string   `mapstructure:"cron-secret"`
	CronSecretFile string   `mapstructure:"cron-secret-file"`
	CORSOrigins    []string `mapstructure:"cors-origins" validate:"dive,url"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "erflog builds a daily strategy of matched opportunities, learning roadmaps and application drafts",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

var envBindings = map[string]string{
	"ai.gemini.api-key":          "GEMINI_API_KEY",
	"ai.gemini.api-key-file":     "GEMINI_API_KEY_FILE",
	"pinecone.api-key":           "PINECONE_API_KEY",
	"pinecone.api-key-file":      "PINECONE_API_KEY_FILE",
	"database.url":               "DATABASE_URL",
	"redis.addr":                 "REDIS_ADDR",
	"redis.password":             "REDIS_PASSWORD",
	"server.cron-secret":         "CRON_SECRET",
	"server.cron-secret-file":    "CRON_SECRET_FILE",
	"run.timezone":               "ERFLOG_TIMEZONE",
	"matching.ready-threshold":   "ERFLOG_READY_THRESHOLD",
	"matching.discard-threshold": "ERFLOG_DISCARD_THRESHOLD",
}

func init() {
	for key, env := range envBindings {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("matching.ready-threshold", matching.DefaultReadyThreshold)
	viper.SetDefault("matching.discard-threshold", matching.DefaultDiscardThreshold)
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.max-log-length", 2000)
	viper.SetDefault("ai.gemini.model", "gemini-2.5-flash")
	viper.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	viper.SetDefault("ai.gemini.max-retries", 3)
	viper.SetDefault("ai.gemini.temperature", 0.4)
	viper.SetDefault("pinecone.index", "ai-verse")
	viper.SetDefault("pinecone.user-namespace", "users")
	viper.SetDefault("server.addr", ":8080")

	cobra.OnInitialize(loadDotEnv, initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is erflog.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// loadDotEnv reads a .env file from the working directory when present.
func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// A missing default config is fine, everything can come from the environment.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}
	if config == nil {
		return nil, errors.New("empty configuration")
	}

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}
