package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"reelnotes/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"OPENAI_API_KEY", "OPENROUTER_API_KEY", "DATABASE_URL", "SUPABASE_DB_URL",
		"GOOGLE_CLOUD_PROJECT", "REELNOTES_API_TOKEN",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultConfigUsesEnvKeysAndExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENROUTER_API_KEY", "sk-router")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved != filepath.Join(tempHome, ".config", "reelnotes", "config.toml") {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantTemp := filepath.Join(tempHome, ".local", "share", "reelnotes", "tmp")
	if cfg.Paths.TempDir != wantTemp {
		t.Fatalf("unexpected temp dir: got %q want %q", cfg.Paths.TempDir, wantTemp)
	}
	if cfg.Paths.APIBind != "127.0.0.1:8000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Transcription.APIKey != "sk-openai" {
		t.Fatalf("expected transcription key from env, got %q", cfg.Transcription.APIKey)
	}
	if cfg.LLM.APIKey != "sk-router" {
		t.Fatalf("expected llm key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.Store.Backend != config.StoreSQLite {
		t.Fatalf("expected sqlite backend by default, got %q", cfg.Store.Backend)
	}
	if cfg.LLM.MaxNotes != 6 {
		t.Fatalf("expected default max notes 6, got %d", cfg.LLM.MaxNotes)
	}
	if !cfg.Retriever.AllowGeneric {
		t.Fatal("expected generic platform fallback enabled by default")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.TempDir, cfg.Paths.LogDir, filepath.Dir(cfg.Store.SQLitePath)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "reelnotes.toml")

	type payload struct {
		Transcription struct {
			Provider string `toml:"provider"`
		} `toml:"transcription"`
		LLM struct {
			Provider      string `toml:"provider"`
			VertexProject string `toml:"vertex_project"`
			MaxNotes      int    `toml:"max_notes"`
		} `toml:"llm"`
		Store struct {
			Backend     string `toml:"backend"`
			DatabaseURL string `toml:"database_url"`
		} `toml:"store"`
	}
	custom := payload{}
	custom.Transcription.Provider = "WhisperX"
	custom.LLM.Provider = "vertex"
	custom.LLM.VertexProject = "demo-project"
	custom.LLM.MaxNotes = 4
	custom.Store.Backend = "postgres"
	custom.Store.DatabaseURL = "postgres://localhost/notes"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("unexpected resolution: %q exists=%v", resolved, exists)
	}
	if cfg.Transcription.Provider != config.TranscriptionWhisperX {
		t.Fatalf("expected provider to be lowercased, got %q", cfg.Transcription.Provider)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Fatalf("expected vertex default model, got %q", cfg.LLM.Model)
	}
	if cfg.LLM.MaxNotes != 4 {
		t.Fatalf("expected max notes 4, got %d", cfg.LLM.MaxNotes)
	}
	if cfg.Store.DatabaseURL != "postgres://localhost/notes" {
		t.Fatalf("unexpected database url %q", cfg.Store.DatabaseURL)
	}
}

func TestConfigFileWinsOverEnvFallback(t *testing.T) {
	clearCredentialEnv(t)
	configPath := filepath.Join(t.TempDir(), "reelnotes.toml")
	contents := "[transcription]\napi_key = \"file-openai\"\n[llm]\napi_key = \"file-router\"\n"
	if err := os.WriteFile(configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("OPENROUTER_API_KEY", "env-router")
	t.Setenv("SUPABASE_DB_URL", "postgres://supabase/db")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Transcription.APIKey != "file-openai" {
		t.Errorf("expected file key to win, got %q", cfg.Transcription.APIKey)
	}
	if cfg.LLM.APIKey != "file-router" {
		t.Errorf("expected file key to win, got %q", cfg.LLM.APIKey)
	}
	if cfg.Store.DatabaseURL != "postgres://supabase/db" {
		t.Errorf("expected SUPABASE_DB_URL fallback, got %q", cfg.Store.DatabaseURL)
	}
}

func TestLoadReportsMissingCredentialWithEnvName(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	_, _, _, err := config.Load("")
	if err == nil {
		t.Fatal("expected missing credential error")
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("expected error to name env var, got %v", err)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
	want := config.Default()
	if cfg.Store.Backend != want.Store.Backend || cfg.LLM.MaxNotes != want.LLM.MaxNotes {
		t.Fatalf("sample drifted from defaults: %+v", cfg.Store)
	}
	if !strings.Contains(cfg.Paths.TempDir, "reelnotes") {
		t.Fatalf("expected temp dir to contain reelnotes, got %q", cfg.Paths.TempDir)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	valid := func() config.Config {
		cfg := config.Default()
		cfg.Transcription.APIKey = "key"
		cfg.LLM.APIKey = "key"
		return cfg
	}
	base := valid()
	if err := base.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"timeout", func(c *config.Config) { c.Retriever.TimeoutSeconds = 0 }, "retriever.timeout_seconds"},
		{"codec", func(c *config.Config) { c.Audio.Codec = "flac" }, "audio.codec"},
		{"transcription provider", func(c *config.Config) { c.Transcription.Provider = "azure" }, "transcription.provider"},
		{"llm provider", func(c *config.Config) { c.LLM.Provider = "local" }, "llm.provider"},
		{"notes low", func(c *config.Config) { c.LLM.MaxNotes = 2 }, "llm.max_notes"},
		{"notes high", func(c *config.Config) { c.LLM.MaxNotes = 9 }, "llm.max_notes"},
		{"vertex project", func(c *config.Config) { c.LLM.Provider = config.LLMVertex }, "GOOGLE_CLOUD_PROJECT"},
		{"postgres url", func(c *config.Config) { c.Store.Backend = config.StorePostgres }, "DATABASE_URL"},
		{"backend", func(c *config.Config) { c.Store.Backend = "mysql" }, "store.backend"},
		{"write attempts", func(c *config.Config) { c.Store.WriteAttempts = 0 }, "store.write_attempts"},
		{"ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "my-topic" }, "notifications.ntfy_topic"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestWhisperXNeedsNoAPIKey(t *testing.T) {
	cfg := config.Default()
	cfg.Transcription.Provider = config.TranscriptionWhisperX
	cfg.LLM.APIKey = "key"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected whisperx config to validate without key: %v", err)
	}
}
