package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"reelnotes/internal/audio"
	"reelnotes/internal/logging"
	"reelnotes/internal/notes"
	"reelnotes/internal/notifications"
	"reelnotes/internal/retriever"
	"reelnotes/internal/retry"
	"reelnotes/internal/services"
	"reelnotes/internal/summarize"
	"reelnotes/internal/tempfiles"
	"reelnotes/internal/transcription"
)

const (
	defaultWriteAttempts = 3
	writeRetryBase       = 500 * time.Millisecond
	writeRetryMax        = 4 * time.Second
)

// Retriever downloads a submission's video into the job scope.
type Retriever interface {
	Retrieve(ctx context.Context, rawURL string, scope *tempfiles.Scope) (retriever.Media, error)
}

// Extractor derives the audio track from downloaded media.
type Extractor interface {
	Extract(ctx context.Context, media *tempfiles.Handle, scope *tempfiles.Scope) (audio.Audio, error)
}

// Transcriber converts an audio file into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string, durationSeconds float64) (transcription.Transcript, error)
}

// Summarizer turns a transcript into structured fields.
type Summarizer interface {
	Summarize(ctx context.Context, transcript, titleHint string) (summarize.Result, error)
}

// Writer persists finished notes.
type Writer interface {
	Insert(ctx context.Context, note notes.VideoNote) (string, error)
}

// Notifier receives terminal job events.
type Notifier interface {
	NotifyNoteReady(ctx context.Context, event notifications.NoteEvent) error
	NotifyJobFailed(ctx context.Context, event notifications.FailureEvent) error
}

// Stages bundles the stage implementations an Orchestrator drives.
type Stages struct {
	Retriever   Retriever
	Extractor   Extractor
	Transcriber Transcriber
	Summarizer  Summarizer
	Store       Writer
}

// Options tunes orchestration behaviour.
type Options struct {
	MaxConcurrentJobs int
	RefetchOnCorrupt  bool
	WriteAttempts     int
	// Notifier, when set, is told about every terminal outcome.
	Notifier Notifier
	// Sleeper replaces the write-retry wait (tests).
	Sleeper func(time.Duration)
}

// Submission is one request to process a video.
type Submission struct {
	URL    string `json:"url"`
	UserID string `json:"user_id"`
}

// Outcome reports how a run ended.
type Outcome struct {
	JobID    string           `json:"job_id"`
	State    State            `json:"state"`
	Note     *notes.VideoNote `json:"note,omitempty"`
	Degraded bool             `json:"degraded"`
	Failure  *Failure         `json:"failure,omitempty"`
	Elapsed  time.Duration    `json:"elapsed"`
}

// Succeeded reports whether the run reached StateDone.
func (o Outcome) Succeeded() bool {
	return o.State == StateDone && o.Note != nil
}

// Orchestrator sequences the pipeline stages for each submission.
type Orchestrator struct {
	temp   *tempfiles.Manager
	stages Stages
	opts   Options
	logger *slog.Logger
	sem    *semaphore.Weighted
	active atomic.Int64
	now    func() time.Time
}

// New constructs an Orchestrator. Every stage must be non-nil.
func New(temp *tempfiles.Manager, stages Stages, opts Options, logger *slog.Logger) *Orchestrator {
	if opts.MaxConcurrentJobs <= 0 {
		opts.MaxConcurrentJobs = 1
	}
	if opts.WriteAttempts <= 0 {
		opts.WriteAttempts = defaultWriteAttempts
	}
	return &Orchestrator{
		temp:   temp,
		stages: stages,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "pipeline"),
		sem:    semaphore.NewWeighted(int64(opts.MaxConcurrentJobs)),
		now:    time.Now,
	}
}

// ActiveJobs returns the number of runs currently executing.
func (o *Orchestrator) ActiveJobs() int {
	return int(o.active.Load())
}

// Submit waits for a free job slot and then runs sub. A context cancelled
// while waiting yields a Cancelled failure without starting the run.
func (o *Orchestrator) Submit(ctx context.Context, sub Submission) Outcome {
	if err := o.sem.Acquire(ctx, 1); err != nil {
		return Outcome{
			JobID: uuid.NewString(),
			State: StateFailed,
			Failure: &Failure{
				Stage:  StateRetrieving,
				Kind:   services.KindCancelled,
				Reason: "cancelled",
				Hint:   services.Hint(services.KindCancelled),
			},
		}
	}
	defer o.sem.Release(1)
	return o.Run(ctx, sub)
}

// Run drives one submission to a terminal state. Temp artifacts acquired
// during the run are released before Run returns.
func (o *Orchestrator) Run(ctx context.Context, sub Submission) Outcome {
	o.active.Add(1)
	defer o.active.Add(-1)

	start := o.now()
	j := &job{
		id:  uuid.NewString(),
		sub: Submission{URL: strings.TrimSpace(sub.URL), UserID: strings.TrimSpace(sub.UserID)},
	}
	ctx = services.WithJobID(ctx, j.id)
	ctx = services.WithUserID(ctx, j.sub.UserID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("job started",
		logging.String("url", j.sub.URL),
		logging.String(logging.FieldEventType, "job_start"),
	)

	outcome := o.execute(ctx, j)
	outcome.Elapsed = o.now().Sub(start)

	if outcome.State == StateDone {
		logger.Info("job completed",
			logging.String("note_id", outcome.Note.ID),
			logging.String("category", outcome.Note.Category),
			logging.Bool("degraded", outcome.Degraded),
			logging.Duration("elapsed", outcome.Elapsed),
			logging.String(logging.FieldEventType, "job_complete"),
		)
	} else {
		logging.ErrorWithContext(logger, "job failed", "job_failed",
			logging.String(logging.FieldStage, string(outcome.Failure.Stage)),
			logging.String(logging.FieldErrorKind, string(outcome.Failure.Kind)),
			logging.String("reason", outcome.Failure.Reason),
			logging.Duration("elapsed", outcome.Elapsed),
			logging.String(logging.FieldErrorHint, outcome.Failure.Hint),
			logging.String(logging.FieldImpact, "no note stored for this submission"),
		)
	}
	o.notify(ctx, logger, j, outcome)
	return outcome
}

// notify runs detached from ctx so cancelled jobs still report.
func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, j *job, outcome Outcome) {
	if o.opts.Notifier == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	var err error
	if outcome.Succeeded() {
		err = o.opts.Notifier.NotifyNoteReady(ctx, notifications.NoteEvent{
			JobID:    outcome.JobID,
			UserID:   outcome.Note.UserID,
			Title:    outcome.Note.Title,
			Category: outcome.Note.Category,
			Platform: outcome.Note.Platform,
			Degraded: outcome.Degraded,
			Elapsed:  outcome.Elapsed,
		})
	} else if outcome.Failure != nil {
		err = o.opts.Notifier.NotifyJobFailed(ctx, notifications.FailureEvent{
			JobID:  outcome.JobID,
			UserID: j.sub.UserID,
			URL:    j.sub.URL,
			Stage:  string(outcome.Failure.Stage),
			Kind:   string(outcome.Failure.Kind),
			Reason: outcome.Failure.Reason,
		})
	}
	if err != nil {
		logging.WarnWithContext(logger, "job notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
			logging.String(logging.FieldImpact, "job outcome was not announced"),
		)
	}
}

type job struct {
	id         string
	sub        Submission
	scope      *tempfiles.Scope
	media      retriever.Media
	audio      audio.Audio
	transcript transcription.Transcript
	summary    summarize.Result
	note       notes.VideoNote
	refetched  bool
}

func (o *Orchestrator) execute(ctx context.Context, j *job) Outcome {
	outcome := Outcome{JobID: j.id, State: StateRetrieving}
	if err := j.sub.validate(); err != nil {
		return o.fail(ctx, outcome, StateRetrieving, err)
	}
	scope, err := o.temp.NewScope(j.id)
	if err != nil {
		return o.fail(ctx, outcome, StateRetrieving,
			services.Wrap(services.ErrConfiguration, "retrieving", "temp scope", "create job temp directory", err))
	}
	j.scope = scope
	defer o.cleanup(ctx, scope)

	state := StateRetrieving
	for !state.Terminal() {
		if err := o.runStage(ctx, j, state); err != nil {
			return o.fail(ctx, outcome, state, err)
		}
		state = next(state)
	}

	note := j.note
	outcome.State = StateDone
	outcome.Note = &note
	outcome.Degraded = note.Degraded
	return outcome
}

func (o *Orchestrator) runStage(ctx context.Context, j *job, state State) error {
	ctx = services.WithStage(ctx, string(state))
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	start := time.Now()

	var err error
	switch state {
	case StateRetrieving:
		j.media, err = o.stages.Retriever.Retrieve(ctx, j.sub.URL, j.scope)
	case StateExtracting:
		err = o.extract(ctx, logger, j)
	case StateTranscribing:
		j.transcript, err = o.stages.Transcriber.Transcribe(ctx, j.audio.Handle.Path(), j.duration())
	case StateSummarizing:
		j.summary, err = o.stages.Summarizer.Summarize(ctx, j.transcript.Text, j.media.Title)
	case StatePersisting:
		err = o.persist(ctx, logger, j)
	default:
		err = fmt.Errorf("pipeline: no stage for state %s", state)
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		details := services.Details(err)
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String(logging.FieldErrorKind, string(details.Kind)),
			logging.String("reason", details.Message),
			logging.Duration("stage_duration", time.Since(start)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, details.Hint),
		)
		return err
	}
	logger.Info("stage completed",
		logging.Duration("stage_duration", time.Since(start)),
		logging.String(logging.FieldEventType, "stage_complete"),
	)
	return nil
}

// extract runs the audio extractor. Corrupt media is downloaded once more when
// refetching is enabled; a second corruption is final. The source media is
// released as soon as the audio track exists.
func (o *Orchestrator) extract(ctx context.Context, logger *slog.Logger, j *job) error {
	extracted, err := o.stages.Extractor.Extract(ctx, j.media.Handle, j.scope)
	if err != nil && services.KindOf(err) == services.KindMediaCorrupt && o.opts.RefetchOnCorrupt && !j.refetched {
		j.refetched = true
		logging.WarnWithContext(logger, "media corrupt; downloading again", "media_refetch",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "the first download was unreadable"),
			logging.String(logging.FieldImpact, "job delayed by one extra download"),
		)
		releaseHandle(logger, j.media.Handle)
		j.media, err = o.stages.Retriever.Retrieve(ctx, j.sub.URL, j.scope)
		if err != nil {
			return err
		}
		extracted, err = o.stages.Extractor.Extract(ctx, j.media.Handle, j.scope)
	}
	if err != nil {
		return err
	}
	j.audio = extracted
	releaseHandle(logger, j.media.Handle)
	return nil
}

// persist writes the note, retrying datastore faults a bounded number of
// times. The id is fixed before the first attempt; a duplicate id on a later
// attempt means an earlier write landed and is treated as success.
func (o *Orchestrator) persist(ctx context.Context, logger *slog.Logger, j *job) error {
	note := notes.Prepared(j.buildNote(), o.now())
	policy := retry.Policy{
		MaxAttempts: o.opts.WriteAttempts,
		BaseDelay:   writeRetryBase,
		MaxDelay:    writeRetryMax,
		Sleeper:     o.opts.Sleeper,
		Retryable: func(err error) bool {
			return services.KindOf(err) == services.KindPersistenceFailure && !errors.Is(err, notes.ErrDuplicateID)
		},
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logging.WarnWithContext(logger, "note write failed; retrying", "persist_retry",
				logging.Int("attempt", attempt),
				logging.Duration("delay", delay),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, services.Hint(services.KindPersistenceFailure)),
			)
		},
	}
	var lastErr error
	err := policy.Do(ctx, "insert", func(ctx context.Context, attempt int) error {
		id, insertErr := o.stages.Store.Insert(ctx, note)
		if attempt > 1 && errors.Is(insertErr, notes.ErrDuplicateID) {
			logger.Info("note already stored by an earlier attempt",
				logging.String(logging.FieldEventType, "persist_confirmed"),
				logging.String("note_id", note.ID),
				logging.Int("attempt", attempt),
			)
			return nil
		}
		if insertErr != nil {
			lastErr = insertErr
			return insertErr
		}
		if id != "" {
			note.ID = id
		}
		return nil
	})
	if err != nil {
		if services.KindOf(err) == services.KindRetryExhausted && lastErr != nil {
			return services.Wrap(services.ErrPersistence, "persisting", "insert",
				fmt.Sprintf("write failed after %d attempts", policy.MaxAttempts), lastErr)
		}
		return err
	}
	j.note = note
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, outcome Outcome, state State, err error) Outcome {
	failure := &Failure{Stage: state}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		failure.Kind = services.KindCancelled
		failure.Reason = "cancelled"
	} else {
		details := services.Details(err)
		failure.Kind = details.Kind
		failure.Reason = details.Message
	}
	failure.Hint = services.Hint(failure.Kind)
	outcome.State = StateFailed
	outcome.Failure = failure
	return outcome
}

func (o *Orchestrator) cleanup(ctx context.Context, scope *tempfiles.Scope) {
	_ = scope.ReleaseAll()
	logging.WithContext(ctx, o.logger).Debug("job temp released",
		logging.Int("acquired", scope.Acquired()),
		logging.Int("released", scope.Released()),
		logging.String(logging.FieldEventType, "temp_released"),
	)
}

func releaseHandle(logger *slog.Logger, h *tempfiles.Handle) {
	if h == nil {
		return
	}
	if err := h.Release(); err != nil {
		logging.WarnWithContext(logger, "temp artifact release failed", "temp_release_failed",
			logging.String("artifact", h.Name()),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check temp_dir permissions"),
		)
	}
}

func (s Submission) validate() error {
	if s.URL == "" {
		return services.Wrap(services.ErrUnsupportedSource, "retrieving", "validate", "url is required", nil)
	}
	if s.UserID == "" {
		return services.Wrap(services.ErrConfiguration, "retrieving", "validate", "user_id is required", nil)
	}
	return nil
}

// duration prefers the probed audio length over platform metadata.
func (j *job) duration() float64 {
	if j.audio.DurationSeconds > 0 {
		return j.audio.DurationSeconds
	}
	return j.media.Duration
}

func (j *job) buildNote() notes.VideoNote {
	fields := j.summary.Fields()
	title := strings.TrimSpace(fields.Title)
	if title == "" {
		title = j.media.Title
	}
	note := notes.VideoNote{
		UserID:        j.sub.UserID,
		SourceURL:     j.sub.URL,
		Title:         title,
		Category:      fields.Category,
		Summary:       fields.Summary,
		Notes:         fields.Notes,
		Transcription: j.transcript.Text,
		Thumbnail:     j.media.Thumbnail,
		Platform:      string(j.media.Platform),
		Degraded:      j.summary.Degraded(),
	}
	if d := j.duration(); d > 0 {
		note.Duration = &d
	}
	return note
}
