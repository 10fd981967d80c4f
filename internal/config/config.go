package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jo-hoe/mbtisong/internal/common"
)

// Config is the root configuration loaded from YAML.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Lyrics   LyricsConfig   `yaml:"lyrics"`
	Music    MusicConfig    `yaml:"music"`
	Recorder RecorderConfig `yaml:"recorder"`
	Share    ShareConfig    `yaml:"share"`
}

// ServerConfig holds HTTP server and runtime settings.
type ServerConfig struct {
	Addr            string        `yaml:"address"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	IdleTimeout     time.Duration `yaml:"idleTimeout"`
	MaxBodySize     ByteSize      `yaml:"maxBodySize"`
	WorkerCount     int           `yaml:"workerCount"`
	QueueCapacity   int           `yaml:"queueCapacity"`
	StorageDir      string        `yaml:"storageDir"`
	APIKey          string        `yaml:"apiKey"`          // optional X-API-Key
	DatabasePath    string        `yaml:"databasePath"`    // default storageDir/mbtisong.db
	ShutdownGrace   time.Duration `yaml:"shutdownGrace"`
	CallbackRetries int           `yaml:"callbackRetries"`
	CallbackBackoff time.Duration `yaml:"callbackBackoff"`
	LogLevel        string        `yaml:"logLevel"` // debug|info|warn|error
	SecretsDir      string        `yaml:"secretsDir"`
}

// LyricsConfig selects the lyrics model provider.
type LyricsConfig struct {
	Provider string         `yaml:"provider"` // openai|ollama|template
	OpenAI   OpenAISettings `yaml:"openai"`
	Ollama   OllamaSettings `yaml:"ollama"`
}

type OpenAISettings struct {
	BaseURL     string        `yaml:"baseUrl"`
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"topP"`
	Timeout     time.Duration `yaml:"timeout"`
}

type OllamaSettings struct {
	BaseURL     string        `yaml:"baseUrl"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	TopP        float32       `yaml:"topP"`
	Timeout     time.Duration `yaml:"timeout"`
}

// MusicConfig configures the Suno-compatible generation API.
type MusicConfig struct {
	BaseURL      string        `yaml:"baseUrl"`
	APIKey       string        `yaml:"apiKey"`
	Model        string        `yaml:"model"`
	PollInterval time.Duration `yaml:"pollInterval"`
	MaxAttempts  int           `yaml:"maxAttempts"`
	CallbackURL  string        `yaml:"callbackUrl"`
}

// RecorderConfig selects where engagement rows are appended.
type RecorderConfig struct {
	Backend string         `yaml:"backend"` // sqlite|sheets
	Sheets  SheetsSettings `yaml:"sheets"`
}

type SheetsSettings struct {
	SpreadsheetID   string `yaml:"spreadsheetId"`
	SheetName       string `yaml:"sheetName"`
	CredentialsFile string `yaml:"credentialsFile"`
	Endpoint        string `yaml:"endpoint"` // optional API endpoint override
}

type ShareConfig struct {
	BaseURL string `yaml:"baseUrl"`
}

const (
	ProviderOpenAI   = "openai"
	ProviderOllama   = "ollama"
	ProviderTemplate = "template"

	BackendSQLite = "sqlite"
	BackendSheets = "sheets"

	minAttempts = 1
	maxAttempts = 1000
)

// Load reads YAML config from path, expands environment variables, and validates it.
// If path is empty, MBTISONG_CONFIG is consulted, then "config.yaml". A missing
// file at the default location yields the defaults.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		if env := os.Getenv(common.ConfigPathEnv); env != "" {
			path = env
			explicit = true
		} else {
			path = common.DefaultConfigPath
		}
	}
	data, err := os.ReadFile(filepath.Clean(path)) // #nosec G304 - config path is operator supplied
	if err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = nil
	}
	return Parse(data)
}

// Parse expands environment variables in data, applies defaults, resolves
// secrets and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&cfg)
	resolveSecrets(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Server.StorageDir, 0o750); err != nil {
		return nil, fmt.Errorf("ensure storage_dir: %w", err)
	}
	if cfg.Server.DatabasePath == "" {
		cfg.Server.DatabasePath = filepath.Join(cfg.Server.StorageDir, common.DatabaseFileName)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	s := &cfg.Server
	if s.Addr == "" {
		s.Addr = ":8080"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 15 * time.Second
	}
	if s.WriteTimeout == 0 {
		// a synchronous song request may poll for several minutes
		s.WriteTimeout = 5 * time.Minute
	}
	if s.IdleTimeout == 0 {
		s.IdleTimeout = 60 * time.Second
	}
	if s.MaxBodySize == 0 {
		s.MaxBodySize = ByteSize(1024 * 1024)
	}
	if s.WorkerCount <= 0 {
		s.WorkerCount = common.DefaultWorkerCount
	}
	if s.QueueCapacity <= 0 {
		s.QueueCapacity = common.DefaultQueueCapacity
	}
	if s.StorageDir == "" {
		s.StorageDir = "data"
	}
	if s.ShutdownGrace == 0 {
		s.ShutdownGrace = 15 * time.Second
	}
	if s.CallbackRetries == 0 {
		s.CallbackRetries = 3
	}
	if s.CallbackBackoff == 0 {
		s.CallbackBackoff = 2 * time.Second
	}
	if strings.TrimSpace(s.LogLevel) == "" {
		s.LogLevel = "info"
	}
	if s.SecretsDir == "" {
		s.SecretsDir = common.DefaultSecretsDir
	}

	l := &cfg.Lyrics
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = ProviderOpenAI
	}
	if l.OpenAI.BaseURL == "" {
		l.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if l.OpenAI.Model == "" {
		l.OpenAI.Model = "gpt-4o-mini"
	}
	if l.OpenAI.Temperature == 0 {
		l.OpenAI.Temperature = 0.8
	}
	if l.OpenAI.TopP == 0 {
		l.OpenAI.TopP = 0.9
	}
	if l.Ollama.BaseURL == "" {
		l.Ollama.BaseURL = "http://localhost:11434"
	}
	if l.Ollama.Model == "" {
		l.Ollama.Model = "llama3.2"
	}

	m := &cfg.Music
	if m.BaseURL == "" {
		m.BaseURL = "https://api.sunoapi.org"
	}
	if m.Model == "" {
		m.Model = "V4_5"
	}
	if m.PollInterval == 0 {
		m.PollInterval = 2 * time.Second
	}
	if m.MaxAttempts == 0 {
		m.MaxAttempts = 70
	}
	if m.CallbackURL == "" {
		m.CallbackURL = common.DefaultCallbackURL
	}

	r := &cfg.Recorder
	r.Backend = strings.ToLower(strings.TrimSpace(r.Backend))
	if r.Backend == "" {
		r.Backend = BackendSQLite
	}
	if r.Sheets.SheetName == "" {
		r.Sheets.SheetName = "Sheet1"
	}

	if cfg.Share.BaseURL == "" {
		cfg.Share.BaseURL = common.DefaultShareBase
	}
}

func resolveSecrets(cfg *Config) {
	dir := cfg.Server.SecretsDir
	cfg.Music.APIKey = ResolveSecret(cfg.Music.APIKey, dir, common.MusicSecretName, common.MusicSecretEnv)
	cfg.Lyrics.OpenAI.APIKey = ResolveSecret(cfg.Lyrics.OpenAI.APIKey, dir, common.LLMSecretName, common.LLMSecretEnv)
}

func validate(cfg *Config) error {
	switch cfg.Lyrics.Provider {
	case ProviderOpenAI, ProviderOllama, ProviderTemplate:
	default:
		return fmt.Errorf("lyrics.provider %q is not one of openai, ollama, template", cfg.Lyrics.Provider)
	}
	if cfg.Music.MaxAttempts < minAttempts || cfg.Music.MaxAttempts > maxAttempts {
		return fmt.Errorf("music.maxAttempts must be within %d..%d, got %d", minAttempts, maxAttempts, cfg.Music.MaxAttempts)
	}
	if cfg.Music.PollInterval < 0 {
		return errors.New("music.pollInterval must be positive")
	}
	switch cfg.Recorder.Backend {
	case BackendSQLite:
	case BackendSheets:
		if strings.TrimSpace(cfg.Recorder.Sheets.SpreadsheetID) == "" {
			return errors.New("recorder.sheets.spreadsheetId is required")
		}
	default:
		return fmt.Errorf("recorder.backend %q is not one of sqlite, sheets", cfg.Recorder.Backend)
	}
	if cfg.Server.CallbackRetries < 0 {
		return errors.New("server.callbackRetries must not be negative")
	}
	return nil
}
