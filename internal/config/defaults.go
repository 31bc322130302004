package config

// Provider and backend identifiers.
const (
	TranscriptionOpenAI   = "openai"
	TranscriptionWhisperX = "whisperx"

	LLMOpenRouter = "openrouter"
	LLMVertex     = "vertex"

	StoreSQLite    = "sqlite"
	StorePostgres  = "postgres"
	StoreFirestore = "firestore"

	CodecMP3 = "mp3"
	CodecWAV = "wav"
)

// Note count bounds for summaries.
const (
	MinNotes = 3
	MaxNotes = 8
)

const (
	defaultConfigPath = "~/.config/reelnotes/config.toml"
	defaultTempDir    = "~/.local/share/reelnotes/tmp"
	defaultLogDir     = "~/.local/share/reelnotes/logs"
	defaultSQLitePath = "~/.local/share/reelnotes/notes.db"
	defaultAPIBind    = "127.0.0.1:8000"

	defaultYtdlpBinary      = "yt-dlp"
	defaultYtdlpFormat      = "best[height<=720]/best"
	defaultRetrieverTimeout = 300
	defaultRetrieverTries   = 3
	defaultMinFreeMiB       = 512

	defaultFFmpegBinary  = "ffmpeg"
	defaultFFprobeBinary = "ffprobe"
	defaultSampleRate    = 16000
	defaultBitrate       = "64k"

	defaultTranscriptionBaseURL  = "https://api.openai.com/v1"
	defaultTranscriptionModel    = "whisper-1"
	defaultTranscriptionTimeout  = 300
	defaultTranscriptionAttempts = 3
	defaultMaxDurationSeconds    = 1800
	defaultTranscriptionRPM      = 50
	defaultWhisperXModel         = "large-v3-turbo"

	defaultLLMBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel       = "openai/gpt-4o-mini"
	defaultVertexModel    = "gemini-2.0-flash"
	defaultLLMReferer     = "https://github.com/reelnotes/reelnotes"
	defaultLLMTitle       = "reelnotes"
	defaultLLMTimeout     = 60
	defaultLLMAttempts    = 5
	defaultLLMRPM         = 60
	defaultVertexRegion   = "us-central1"
	defaultMaxNotes       = 6
	defaultFirestoreColl  = "video_notes"
	defaultWriteAttempts  = 3
	defaultConcurrentJobs = 2
	defaultStaleMinutes   = 60
	defaultSweepMinutes   = 15

	defaultNtfyTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			TempDir: defaultTempDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Retriever: Retriever{
			YtdlpBinary:    defaultYtdlpBinary,
			Format:         defaultYtdlpFormat,
			TimeoutSeconds: defaultRetrieverTimeout,
			MaxAttempts:    defaultRetrieverTries,
			MinFreeMiB:     defaultMinFreeMiB,
			AllowGeneric:   true,
		},
		Audio: Audio{
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			Codec:         CodecMP3,
			SampleRate:    defaultSampleRate,
			Bitrate:       defaultBitrate,
		},
		Transcription: Transcription{
			Provider:           TranscriptionOpenAI,
			BaseURL:            defaultTranscriptionBaseURL,
			Model:              defaultTranscriptionModel,
			TimeoutSeconds:     defaultTranscriptionTimeout,
			MaxAttempts:        defaultTranscriptionAttempts,
			MaxDurationSeconds: defaultMaxDurationSeconds,
			RequestsPerMinute:  defaultTranscriptionRPM,
			WhisperXModel:      defaultWhisperXModel,
		},
		LLM: LLM{
			Provider:          LLMOpenRouter,
			BaseURL:           defaultLLMBaseURL,
			Model:             defaultLLMModel,
			Referer:           defaultLLMReferer,
			Title:             defaultLLMTitle,
			TimeoutSeconds:    defaultLLMTimeout,
			MaxAttempts:       defaultLLMAttempts,
			RequestsPerMinute: defaultLLMRPM,
			VertexRegion:      defaultVertexRegion,
			MaxNotes:          defaultMaxNotes,
		},
		Store: Store{
			Backend:             StoreSQLite,
			SQLitePath:          defaultSQLitePath,
			FirestoreCollection: defaultFirestoreColl,
			WriteAttempts:       defaultWriteAttempts,
		},
		Pipeline: Pipeline{
			MaxConcurrentJobs:    defaultConcurrentJobs,
			StaleTempMinutes:     defaultStaleMinutes,
			SweepIntervalMinutes: defaultSweepMinutes,
			RefetchOnCorrupt:     true,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeout,
			NotifySuccess:         true,
			NotifyFailure:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
