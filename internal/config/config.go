package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	TempDir  string `toml:"temp_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Retriever contains configuration for downloading source videos with yt-dlp.
type Retriever struct {
	YtdlpBinary    string `toml:"ytdlp_binary"`
	Format         string `toml:"format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxAttempts    int    `toml:"max_attempts"`
	MinFreeMiB     int    `toml:"min_free_mib"`
	AllowGeneric   bool   `toml:"allow_generic"`
	CookiesFile    string `toml:"cookies_file"`
}

// Audio contains configuration for audio extraction.
type Audio struct {
	FFmpegBinary  string `toml:"ffmpeg_binary"`
	FFprobeBinary string `toml:"ffprobe_binary"`
	Codec         string `toml:"codec"`
	SampleRate    int    `toml:"sample_rate"`
	Bitrate       string `toml:"bitrate"`
}

// Transcription contains configuration for the speech-to-text provider.
type Transcription struct {
	Provider           string `toml:"provider"`
	APIKey             string `toml:"api_key"`
	BaseURL            string `toml:"base_url"`
	Model              string `toml:"model"`
	Language           string `toml:"language"`
	TimeoutSeconds     int    `toml:"timeout_seconds"`
	MaxAttempts        int    `toml:"max_attempts"`
	MaxDurationSeconds int    `toml:"max_duration_seconds"`
	RequestsPerMinute  int    `toml:"requests_per_minute"`
	WhisperXModel      string `toml:"whisperx_model"`
	WhisperXCUDA       bool   `toml:"whisperx_cuda"`
}

// LLM contains configuration for the summarization model.
type LLM struct {
	Provider          string `toml:"provider"`
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	Referer           string `toml:"referer"`
	Title             string `toml:"title"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	MaxAttempts       int    `toml:"max_attempts"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	VertexProject     string `toml:"vertex_project"`
	VertexRegion      string `toml:"vertex_region"`
	MaxNotes          int    `toml:"max_notes"`
}

// Store contains configuration for note persistence.
type Store struct {
	Backend             string `toml:"backend"`
	SQLitePath          string `toml:"sqlite_path"`
	DatabaseURL         string `toml:"database_url"`
	FirestoreProject    string `toml:"firestore_project"`
	FirestoreCollection string `toml:"firestore_collection"`
	WriteAttempts       int    `toml:"write_attempts"`
}

// Pipeline contains configuration for job scheduling and temp housekeeping.
type Pipeline struct {
	MaxConcurrentJobs    int  `toml:"max_concurrent_jobs"`
	StaleTempMinutes     int  `toml:"stale_temp_minutes"`
	SweepIntervalMinutes int  `toml:"sweep_interval_minutes"`
	RefetchOnCorrupt     bool `toml:"refetch_on_corrupt"`
}

// Notifications contains ntfy settings for job completion alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
	NotifySuccess         bool   `toml:"notify_success"`
	NotifyFailure         bool   `toml:"notify_failure"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for reelnotes.
//
// Configuration sections by subsystem:
//   - Paths: temp and log directories, API bind address and token
//   - Retriever: yt-dlp download settings
//   - Audio: ffmpeg/ffprobe extraction settings
//   - Transcription: speech-to-text provider
//   - LLM: summarization provider
//   - Store: note persistence backend
//   - Pipeline: concurrency and temp sweeping
//   - Notifications: ntfy job alerts
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Retriever     Retriever     `toml:"retriever"`
	Audio         Audio         `toml:"audio"`
	Transcription Transcription `toml:"transcription"`
	LLM           LLM           `toml:"llm"`
	Store         Store         `toml:"store"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reelnotes.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the temp and log directories used by the daemon.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.TempDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Store.Backend == StoreSQLite {
		if err := os.MkdirAll(filepath.Dir(c.Store.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("create database directory: %w", err)
		}
	}
	return nil
}

// RetrieverTimeout returns the per-attempt download timeout.
func (c *Config) RetrieverTimeout() time.Duration {
	return time.Duration(c.Retriever.TimeoutSeconds) * time.Second
}

// TranscriptionTimeout returns the per-request transcription timeout.
func (c *Config) TranscriptionTimeout() time.Duration {
	return time.Duration(c.Transcription.TimeoutSeconds) * time.Second
}

// StaleTempAge is the age after which orphaned temp scopes are swept.
func (c *Config) StaleTempAge() time.Duration {
	return time.Duration(c.Pipeline.StaleTempMinutes) * time.Minute
}

// SweepInterval is how often the daemon sweeps the temp root.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Pipeline.SweepIntervalMinutes) * time.Minute
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// LLMConfig contains the resolved connection settings for the summarization model.
type LLMConfig struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	Timeout        time.Duration
	MaxAttempts    int
	VertexProject  string
	VertexRegion   string
	RequestsPerMin int
}

// GetLLM returns the summarization model connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:       c.LLM.Provider,
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		Timeout:        time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		MaxAttempts:    c.LLM.MaxAttempts,
		VertexProject:  c.LLM.VertexProject,
		VertexRegion:   c.LLM.VertexRegion,
		RequestsPerMin: c.LLM.RequestsPerMinute,
	}
}
