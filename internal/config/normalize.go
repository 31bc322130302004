package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRetriever(); err != nil {
		return err
	}
	c.normalizeAudio()
	c.normalizeTranscription()
	c.normalizeLLM()
	if err := c.normalizeStore(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.TempDir) == "" {
		c.Paths.TempDir = defaultTempDir
	}
	if c.Paths.TempDir, err = expandPath(c.Paths.TempDir); err != nil {
		return fmt.Errorf("paths.temp_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = envValue("REELNOTES_API_TOKEN")
	}
	return nil
}

func (c *Config) normalizeRetriever() error {
	c.Retriever.YtdlpBinary = strings.TrimSpace(c.Retriever.YtdlpBinary)
	if c.Retriever.YtdlpBinary == "" {
		c.Retriever.YtdlpBinary = defaultYtdlpBinary
	}
	c.Retriever.Format = strings.TrimSpace(c.Retriever.Format)
	if c.Retriever.Format == "" {
		c.Retriever.Format = defaultYtdlpFormat
	}
	if c.Retriever.MinFreeMiB < 0 {
		c.Retriever.MinFreeMiB = 0
	}
	c.Retriever.CookiesFile = strings.TrimSpace(c.Retriever.CookiesFile)
	if c.Retriever.CookiesFile != "" {
		var err error
		if c.Retriever.CookiesFile, err = expandPath(c.Retriever.CookiesFile); err != nil {
			return fmt.Errorf("retriever.cookies_file: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeAudio() {
	c.Audio.FFmpegBinary = strings.TrimSpace(c.Audio.FFmpegBinary)
	if c.Audio.FFmpegBinary == "" {
		c.Audio.FFmpegBinary = defaultFFmpegBinary
	}
	c.Audio.FFprobeBinary = strings.TrimSpace(c.Audio.FFprobeBinary)
	if c.Audio.FFprobeBinary == "" {
		c.Audio.FFprobeBinary = defaultFFprobeBinary
	}
	c.Audio.Codec = strings.ToLower(strings.TrimSpace(c.Audio.Codec))
	if c.Audio.Codec == "" {
		c.Audio.Codec = CodecMP3
	}
	if c.Audio.SampleRate <= 0 {
		c.Audio.SampleRate = defaultSampleRate
	}
	c.Audio.Bitrate = strings.TrimSpace(c.Audio.Bitrate)
	if c.Audio.Bitrate == "" {
		c.Audio.Bitrate = defaultBitrate
	}
}

func (c *Config) normalizeTranscription() {
	t := &c.Transcription
	t.Provider = strings.ToLower(strings.TrimSpace(t.Provider))
	if t.Provider == "" {
		t.Provider = TranscriptionOpenAI
	}
	t.APIKey = strings.TrimSpace(t.APIKey)
	if t.APIKey == "" {
		t.APIKey = envValue("OPENAI_API_KEY")
	}
	t.BaseURL = strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if t.BaseURL == "" {
		t.BaseURL = defaultTranscriptionBaseURL
	}
	t.Model = strings.TrimSpace(t.Model)
	if t.Model == "" {
		t.Model = defaultTranscriptionModel
	}
	t.Language = strings.ToLower(strings.TrimSpace(t.Language))
	t.WhisperXModel = strings.TrimSpace(t.WhisperXModel)
	if t.WhisperXModel == "" {
		t.WhisperXModel = defaultWhisperXModel
	}
	if t.RequestsPerMinute < 0 {
		t.RequestsPerMinute = 0
	}
}

func (c *Config) normalizeLLM() {
	l := &c.LLM
	l.Provider = strings.ToLower(strings.TrimSpace(l.Provider))
	if l.Provider == "" {
		l.Provider = LLMOpenRouter
	}
	l.APIKey = strings.TrimSpace(l.APIKey)
	if l.APIKey == "" {
		l.APIKey = envValue("OPENROUTER_API_KEY")
	}
	l.BaseURL = strings.TrimSpace(l.BaseURL)
	if l.BaseURL == "" {
		l.BaseURL = defaultLLMBaseURL
	}
	l.Model = strings.TrimSpace(l.Model)
	if l.Model == "" || (l.Provider == LLMVertex && l.Model == defaultLLMModel) {
		if l.Provider == LLMVertex {
			l.Model = defaultVertexModel
		} else {
			l.Model = defaultLLMModel
		}
	}
	l.Referer = strings.TrimSpace(l.Referer)
	if l.Referer == "" {
		l.Referer = defaultLLMReferer
	}
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		l.Title = defaultLLMTitle
	}
	l.VertexProject = strings.TrimSpace(l.VertexProject)
	if l.VertexProject == "" {
		l.VertexProject = envValue("GOOGLE_CLOUD_PROJECT")
	}
	l.VertexRegion = strings.TrimSpace(l.VertexRegion)
	if l.VertexRegion == "" {
		l.VertexRegion = defaultVertexRegion
	}
	if l.MaxNotes == 0 {
		l.MaxNotes = defaultMaxNotes
	}
	if l.RequestsPerMinute < 0 {
		l.RequestsPerMinute = 0
	}
}

func (c *Config) normalizeStore() error {
	s := &c.Store
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	if s.Backend == "" {
		s.Backend = StoreSQLite
	}
	if strings.TrimSpace(s.SQLitePath) == "" {
		s.SQLitePath = defaultSQLitePath
	}
	var err error
	if s.SQLitePath, err = expandPath(s.SQLitePath); err != nil {
		return fmt.Errorf("store.sqlite_path: %w", err)
	}
	s.DatabaseURL = strings.TrimSpace(s.DatabaseURL)
	if s.DatabaseURL == "" {
		s.DatabaseURL = envValue("DATABASE_URL")
	}
	if s.DatabaseURL == "" {
		s.DatabaseURL = envValue("SUPABASE_DB_URL")
	}
	s.FirestoreProject = strings.TrimSpace(s.FirestoreProject)
	if s.FirestoreProject == "" {
		s.FirestoreProject = envValue("GOOGLE_CLOUD_PROJECT")
	}
	s.FirestoreCollection = strings.TrimSpace(s.FirestoreCollection)
	if s.FirestoreCollection == "" {
		s.FirestoreCollection = defaultFirestoreColl
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	n := &c.Notifications
	n.NtfyTopic = strings.TrimSpace(n.NtfyTopic)
	if n.NtfyTopic == "" {
		n.NtfyTopic = envValue("REELNOTES_NTFY_TOPIC")
	}
	if n.RequestTimeoutSeconds <= 0 {
		n.RequestTimeoutSeconds = defaultNtfyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func envValue(key string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return ""
}
