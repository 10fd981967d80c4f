package common

// Shared constants to enforce DRY and avoid magic strings/numbers.

// HTTP headers and content types
const (
	HeaderAPIKey       = "X-API-Key" // #nosec G101 - header name constant, not a credential
	HeaderPrefer       = "Prefer"
	PreferRespondAsync = "respond-async"
	ContentTypeJSON    = "application/json"
	ContentTypeMPEG    = "audio/mpeg"
)

// API paths
const (
	PathHealthz    = "/healthz"
	PathMetrics    = "/metrics"
	PathStyles     = "/v1/styles"
	PathLyrics     = "/v1/lyrics"
	PathSongs      = "/v1/songs"
	PathEngagement = "/v1/engagement"
	PathShare      = "/v1/share"
	PathSession    = "/v1/session"
)

// Defaults and limits
const (
	DefaultQueueCapacity = 128
	DefaultWorkerCount   = 4
	SQLiteBusyTimeoutMS  = 5000
)

// Subdirectory and file names
const (
	AudioDirName       = "audio"
	DatabaseFileName   = "mbtisong.db"
	DefaultSecretsDir  = "/run/secrets"
	MusicSecretName    = "suno_api_key"
	MusicSecretEnv     = "SUNO_API_KEY"
	LLMSecretName      = "openai_api_key"
	LLMSecretEnv       = "OPENAI_API_KEY"
	ConfigPathEnv      = "MBTISONG_CONFIG"
	DefaultConfigPath  = "config.yaml"
	DefaultShareBase   = "https://hackathonmbtimusicgenerator.streamlit.app"
	DefaultCallbackURL = "https://example.com/callback"
)

// Callback status strings
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
