package cfg

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	DatasetPath     string
	DatasetURL      string
	Delimiter       rune
	LabelColumn     string
	FeatureColumns  []string
	TestFraction    float64
	Folds           int
	Seed            int64
	TreeCounts      []int
	FeatureCounts   []int
	WordcountInput  string
	WordcountOutput string
	Shards          int
	TopN            int
	DataPath        string
	ReportPath      string
	MetricsPort     int
	DashboardPort   int
	FetchTimeout    time.Duration
	FetchRetries    int
}

type ConfigFile struct {
	Dataset struct {
		Path         string `yaml:"path"`
		URL          string `yaml:"url"`
		Delimiter    string `yaml:"delimiter"`
		LabelColumn  string `yaml:"labelColumn"`
		FetchTimeout string `yaml:"fetchTimeout"`
		FetchRetries int    `yaml:"fetchRetries"`
	} `yaml:"dataset"`

	Experiment struct {
		TestFraction   float64  `yaml:"testFraction"`
		Folds          int      `yaml:"folds"`
		Seed           int64    `yaml:"seed"`
		TreeCounts     []int    `yaml:"treeCounts"`
		FeatureCounts  []int    `yaml:"featureCounts"`
		FeatureColumns []string `yaml:"featureColumns"`
	} `yaml:"experiment"`

	Wordcount struct {
		Input  string `yaml:"input"`
		Output string `yaml:"output"`
		Shards int    `yaml:"shards"`
		TopN   int    `yaml:"topN"`
	} `yaml:"wordcount"`

	System struct {
		DataPath      string `yaml:"dataPath"`
		ReportPath    string `yaml:"reportPath"`
		MetricsPort   int    `yaml:"metricsPort"`
		DashboardPort int    `yaml:"dashboardPort"`
	} `yaml:"system"`
}

func Load() (Settings, error) {
	// Try to load from YAML file first
	if configPath := os.Getenv("CONFIG_FILE"); configPath != "" {
		return loadFromYAML(configPath)
	}

	// Fallback to environment variables
	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	settings := Settings{
		DatasetPath:     getEnvOrDefault("DATASET_PATH", config.Dataset.Path),
		DatasetURL:      getEnvOrDefault("DATASET_URL", config.Dataset.URL),
		Delimiter:       parseDelimiter(getEnvOrDefault("DATASET_DELIMITER", config.Dataset.Delimiter)),
		LabelColumn:     getEnvOrDefault("LABEL_COLUMN", config.Dataset.LabelColumn),
		FeatureColumns:  config.Experiment.FeatureColumns,
		TestFraction:    getFloatFromEnvOrConfig("TEST_FRACTION", config.Experiment.TestFraction),
		Folds:           getIntFromEnvOrConfig("CV_FOLDS", config.Experiment.Folds),
		Seed:            getInt64FromEnvOrConfig("EXPERIMENT_SEED", config.Experiment.Seed),
		TreeCounts:      config.Experiment.TreeCounts,
		FeatureCounts:   config.Experiment.FeatureCounts,
		WordcountInput:  getEnvOrDefault("WORDCOUNT_INPUT", config.Wordcount.Input),
		WordcountOutput: getEnvOrDefault("WORDCOUNT_OUTPUT", config.Wordcount.Output),
		Shards:          getIntFromEnvOrConfig("WORDCOUNT_SHARDS", config.Wordcount.Shards),
		TopN:            getIntFromEnvOrConfig("WORDCOUNT_TOPN", config.Wordcount.TopN),
		DataPath:        getEnvOrDefault("DATA_PATH", config.System.DataPath),
		ReportPath:      getEnvOrDefault("REPORT_PATH", config.System.ReportPath),
		MetricsPort:     getIntFromEnvOrConfig("METRICS_PORT", config.System.MetricsPort),
		DashboardPort:   getIntFromEnvOrConfig("DASHBOARD_PORT", config.System.DashboardPort),
		FetchTimeout:    getDurationFromEnvOrConfig("FETCH_TIMEOUT", config.Dataset.FetchTimeout),
		FetchRetries:    getIntFromEnvOrConfig("FETCH_RETRIES", config.Dataset.FetchRetries),
	}
	applyDefaults(&settings)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	settings := Settings{
		DatasetPath:     getEnvOrDefault("DATASET_PATH", "data/wine.data"),
		DatasetURL:      os.Getenv("DATASET_URL"), // optional
		Delimiter:       parseDelimiter(os.Getenv("DATASET_DELIMITER")),
		LabelColumn:     getEnvOrDefault("LABEL_COLUMN", "cultivar"),
		TestFraction:    getFloatOrDefault("TEST_FRACTION", 0.30),
		Folds:           getIntOrDefault("CV_FOLDS", 5),
		Seed:            getInt64OrDefault("EXPERIMENT_SEED", 42),
		WordcountInput:  getEnvOrDefault("WORDCOUNT_INPUT", "data/lyrics.txt"),
		WordcountOutput: getEnvOrDefault("WORDCOUNT_OUTPUT", "out/wordcount"),
		Shards:          getIntOrDefault("WORDCOUNT_SHARDS", 4),
		TopN:            getIntOrDefault("WORDCOUNT_TOPN", 20),
		DataPath:        os.Getenv("DATA_PATH"), // optional
		ReportPath:      getEnvOrDefault("REPORT_PATH", "out/reports"),
		MetricsPort:     getIntOrDefault("METRICS_PORT", 8080),
		DashboardPort:   getIntOrDefault("DASHBOARD_PORT", 0),
		FetchTimeout:    getDurationOrDefault("FETCH_TIMEOUT", 30*time.Second),
		FetchRetries:    getIntOrDefault("FETCH_RETRIES", 3),
	}
	applyDefaults(&settings)

	// Validate configuration
	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// applyDefaults fills the settings that have no env representation.
func applyDefaults(s *Settings) {
	if s.Delimiter == 0 {
		s.Delimiter = ','
	}
	if s.LabelColumn == "" {
		s.LabelColumn = "cultivar"
	}
	if len(s.TreeCounts) == 0 {
		s.TreeCounts = []int{10, 50, 100}
	}
	if len(s.FeatureCounts) == 0 {
		s.FeatureCounts = []int{2, 4, 6}
	}
	if s.Shards == 0 {
		s.Shards = 4
	}
	if s.TopN == 0 {
		s.TopN = 20
	}
	if s.FetchTimeout == 0 {
		s.FetchTimeout = 30 * time.Second
	}
}

func parseDelimiter(v string) rune {
	switch v {
	case "", ",", "comma":
		return ','
	case "\t", "tab":
		return '\t'
	case ";", "semicolon":
		return ';'
	default:
		return []rune(v)[0]
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getInt64OrDefault(key string, defaultValue int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationFromEnvOrConfig(key, configValue string) time.Duration {
	if env := os.Getenv(key); env != "" {
		if d, err := time.ParseDuration(env); err == nil {
			return d
		}
	}
	if configValue != "" {
		if d, err := time.ParseDuration(configValue); err == nil {
			return d
		}
	}
	return 0
}

func getIntFromEnvOrConfig(key string, configValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return getIntOrDefault(key, 0)
}

func getInt64FromEnvOrConfig(key string, configValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	return configValue
}

func getFloatFromEnvOrConfig(key string, configValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != 0 {
		return configValue
	}
	return getFloatOrDefault(key, 0)
}

// validateSettings performs comprehensive validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.DatasetPath == "" {
		return fmt.Errorf("dataset path cannot be empty")
	}

	if settings.TestFraction <= 0 || settings.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be between 0 and 1 exclusive, got %f", settings.TestFraction)
	}
	if settings.Folds < 2 || settings.Folds > 20 {
		return fmt.Errorf("cross-validation folds must be between 2 and 20, got %d", settings.Folds)
	}

	for _, n := range settings.TreeCounts {
		if n <= 0 || n > 1000 {
			return fmt.Errorf("tree count must be between 1 and 1000, got %d", n)
		}
	}
	for _, n := range settings.FeatureCounts {
		if n <= 0 || n > 64 {
			return fmt.Errorf("features per split must be between 1 and 64, got %d", n)
		}
	}

	if settings.Shards <= 0 || settings.Shards > 1024 {
		return fmt.Errorf("shard count must be between 1 and 1024, got %d", settings.Shards)
	}
	if settings.TopN < 0 {
		return fmt.Errorf("top-N must be non-negative, got %d", settings.TopN)
	}

	if settings.MetricsPort != 0 && (settings.MetricsPort < 1024 || settings.MetricsPort > 65535) {
		return fmt.Errorf("metrics port must be between 1024 and 65535, got %d", settings.MetricsPort)
	}
	if settings.DashboardPort != 0 && (settings.DashboardPort < 1024 || settings.DashboardPort > 65535) {
		return fmt.Errorf("dashboard port must be between 1024 and 65535, got %d", settings.DashboardPort)
	}
	if settings.MetricsPort != 0 && settings.MetricsPort == settings.DashboardPort {
		return fmt.Errorf("metrics and dashboard ports must differ, got %d for both", settings.MetricsPort)
	}

	if settings.FetchTimeout < time.Second || settings.FetchTimeout > 5*time.Minute {
		return fmt.Errorf("fetch timeout must be between 1s and 5m, got %v", settings.FetchTimeout)
	}
	if settings.FetchRetries < 0 || settings.FetchRetries > 10 {
		return fmt.Errorf("fetch retries must be between 0 and 10, got %d", settings.FetchRetries)
	}

	if strings.TrimSpace(settings.LabelColumn) == "" {
		return fmt.Errorf("label column cannot be blank")
	}

	return nil
}
