package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if err := c.validateAudio(); err != nil {
		return err
	}
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateStore(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"retriever.timeout_seconds":          c.Retriever.TimeoutSeconds,
		"retriever.max_attempts":             c.Retriever.MaxAttempts,
		"transcription.timeout_seconds":      c.Transcription.TimeoutSeconds,
		"transcription.max_attempts":         c.Transcription.MaxAttempts,
		"transcription.max_duration_seconds": c.Transcription.MaxDurationSeconds,
		"llm.timeout_seconds":                c.LLM.TimeoutSeconds,
		"llm.max_attempts":                   c.LLM.MaxAttempts,
		"store.write_attempts":               c.Store.WriteAttempts,
		"pipeline.max_concurrent_jobs":       c.Pipeline.MaxConcurrentJobs,
		"pipeline.stale_temp_minutes":        c.Pipeline.StaleTempMinutes,
		"pipeline.sweep_interval_minutes":    c.Pipeline.SweepIntervalMinutes,
	})
}

func (c *Config) validateAudio() error {
	switch c.Audio.Codec {
	case CodecMP3, CodecWAV:
		return nil
	default:
		return fmt.Errorf("audio.codec must be %q or %q, got %q", CodecMP3, CodecWAV, c.Audio.Codec)
	}
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case TranscriptionOpenAI:
		if c.Transcription.APIKey == "" {
			return missingCredential("transcription.api_key", "OPENAI_API_KEY")
		}
	case TranscriptionWhisperX:
	default:
		return fmt.Errorf("transcription.provider must be %q or %q, got %q", TranscriptionOpenAI, TranscriptionWhisperX, c.Transcription.Provider)
	}
	return nil
}

func (c *Config) validateLLM() error {
	switch c.LLM.Provider {
	case LLMOpenRouter:
		if c.LLM.APIKey == "" {
			return missingCredential("llm.api_key", "OPENROUTER_API_KEY")
		}
	case LLMVertex:
		if c.LLM.VertexProject == "" {
			return missingCredential("llm.vertex_project", "GOOGLE_CLOUD_PROJECT")
		}
	default:
		return fmt.Errorf("llm.provider must be %q or %q, got %q", LLMOpenRouter, LLMVertex, c.LLM.Provider)
	}
	if c.LLM.MaxNotes < MinNotes || c.LLM.MaxNotes > MaxNotes {
		return fmt.Errorf("llm.max_notes must be between %d and %d", MinNotes, MaxNotes)
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path must be set when store.backend is sqlite")
		}
	case StorePostgres:
		if c.Store.DatabaseURL == "" {
			return missingCredential("store.database_url", "DATABASE_URL")
		}
	case StoreFirestore:
		if c.Store.FirestoreProject == "" {
			return missingCredential("store.firestore_project", "GOOGLE_CLOUD_PROJECT")
		}
	default:
		return fmt.Errorf("store.backend must be one of sqlite, postgres, firestore, got %q", c.Store.Backend)
	}
	return nil
}

func missingCredential(key, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'reelnotes config init')", key, env, defaultPath)
}

func ensurePositiveMap(values map[string]int) error {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if values[key] <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}
