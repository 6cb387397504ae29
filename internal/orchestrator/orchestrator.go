// Package orchestrator drives one image through upload, analysis polling and
// the success hand-off. All timers come from an injected clock so the state
// machine can be stepped deterministically.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/facebookgo/clock"
	"go.uber.org/zap"

	"github.com/yourorg/vision-showcase/internal/types"
)

type State string

const (
	StateIdle       State = "idle"
	StateUploading  State = "uploading"
	StateProcessing State = "processing"
	StateSuccess    State = "success"
	StateError      State = "error"
)

const (
	DefaultPollInterval   = 2500 * time.Millisecond
	DefaultMaxAttempts    = 20
	DefaultSuccessDelay   = 2 * time.Second
	DefaultRequestTimeout = 15 * time.Second
)

var (
	ErrBusy      = errors.New("an upload is already in progress")
	ErrTimeout   = errors.New("processing took too long")
	ErrNoFile    = errors.New("no file selected")
	ErrCancelled = errors.New("upload cancelled")
	ErrClosed    = errors.New("orchestrator closed")
)

// User-facing status lines.
const (
	msgPreparing  = "Preparing secure upload..."
	msgUploading  = "Uploading image..."
	msgAnalyzing  = "Upload complete! The AI is now analyzing your image..."
	msgComplete   = "Analysis complete!"
	msgNoURL      = "Failed to get signed URL."
	msgPutFailed  = "Upload to cloud storage failed."
	msgTooLong    = "Processing took too long."
	msgStatusFail = "Could not check processing status."
)

// API is the server surface the orchestrator needs. *client.Client
// satisfies it.
type API interface {
	RequestUploadURL(ctx context.Context, filename, contentType string) (types.UploadResponse, error)
	Upload(ctx context.Context, target types.UploadResponse, contentType string, body io.Reader, size int64) error
	Status(ctx context.Context, filename string) (types.Status, error)
}

type Options struct {
	PollInterval   time.Duration
	MaxAttempts    int
	SuccessDelay   time.Duration
	RequestTimeout time.Duration
	Clock          clock.Clock
	Logger         *zap.Logger

	// OnChange receives a snapshot after every transition. Called without
	// internal locks held, from whichever goroutine made the transition.
	OnChange func(Snapshot)
	// OnSuccess is told the filename once its analysis is visible.
	OnSuccess func(filename string)
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.SuccessDelay <= 0 {
		o.SuccessDelay = DefaultSuccessDelay
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

type Snapshot struct {
	State    State
	Message  string
	File     string
	Attempts int
	Err      error
}

// Orchestrator is safe for concurrent use. At most one timer (poll or
// success reset) is outstanding at any time.
type Orchestrator struct {
	api  API
	opts Options
	log  *zap.Logger

	mu       sync.Mutex
	state    State
	message  string
	file     *File
	attempts int
	err      error
	run      uint64
	timer    *clock.Timer
	closed   bool
}

func New(api API, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		api:   api,
		opts:  opts,
		log:   opts.Logger.Named("orchestrator"),
		state: StateIdle,
	}
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Start uploads f and begins polling for its analysis. It is allowed from
// idle and error only. The upload phase runs on the calling goroutine; once
// Start returns nil the orchestrator is processing and polls on its clock.
// Requests inherit ctx's values but not its cancellation: once issued they run
// to completion or failure, and Cancel only discards their results.
func (o *Orchestrator) Start(ctx context.Context, f File) error {
	if f.Name == "" || f.Open == nil {
		return ErrNoFile
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if o.state != StateIdle && o.state != StateError {
		o.mu.Unlock()
		return ErrBusy
	}
	o.stopLocked()
	o.run++
	run := o.run
	runCtx := context.WithoutCancel(ctx)
	o.file = &f
	o.attempts = 0
	o.err = nil
	o.setLocked(StateUploading, msgPreparing)
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.emit(snap)

	o.log.Info("upload started",
		zap.String("file", f.Name),
		zap.String("content_type", f.ContentType),
		zap.Int64("size", f.Size))

	target, err := o.requestURL(runCtx, f)
	if err != nil {
		return o.failUpload(run, msgNoURL, err)
	}
	if !o.transition(run, StateUploading, msgUploading) {
		return ErrCancelled
	}
	if err := o.put(runCtx, target, f); err != nil {
		return o.failUpload(run, msgPutFailed, err)
	}

	o.mu.Lock()
	if run != o.run {
		o.mu.Unlock()
		return ErrCancelled
	}
	o.setLocked(StateProcessing, msgAnalyzing)
	o.timer = o.opts.Clock.AfterFunc(o.opts.PollInterval, func() { o.poll(runCtx, run) })
	snap = o.snapshotLocked()
	o.mu.Unlock()
	o.emit(snap)

	o.log.Info("upload complete, polling for analysis", zap.String("file", f.Name))
	return nil
}

func (o *Orchestrator) requestURL(ctx context.Context, f File) (types.UploadResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	defer cancel()
	return o.api.RequestUploadURL(ctx, f.Name, f.ContentType)
}

func (o *Orchestrator) put(ctx context.Context, target types.UploadResponse, f File) error {
	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()
	return o.api.Upload(ctx, target, f.ContentType, body, f.Size)
}

// poll performs one status check and schedules the next one only after it
// returns, so checks never overlap.
func (o *Orchestrator) poll(ctx context.Context, run uint64) {
	o.mu.Lock()
	if run != o.run || o.state != StateProcessing {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.attempts++
	attempt := o.attempts
	name := o.file.Name
	o.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, o.opts.RequestTimeout)
	status, err := o.api.Status(reqCtx, name)
	cancel()

	o.mu.Lock()
	if run != o.run {
		o.mu.Unlock()
		return
	}
	succeeded := false
	switch {
	case err != nil:
		o.failLocked(msgStatusFail, fmt.Errorf("status check %d: %w", attempt, err))
	case status == types.StatusProcessed:
		succeeded = true
		o.setLocked(StateSuccess, msgComplete)
		o.timer = o.opts.Clock.AfterFunc(o.opts.SuccessDelay, func() { o.reset(run) })
	case attempt >= o.opts.MaxAttempts:
		o.failLocked(msgTooLong, ErrTimeout)
	default:
		o.timer = o.opts.Clock.AfterFunc(o.opts.PollInterval, func() { o.poll(ctx, run) })
	}
	snap := o.snapshotLocked()
	o.mu.Unlock()

	o.log.Debug("status checked",
		zap.String("file", name),
		zap.Int("attempt", attempt),
		zap.String("status", string(status)),
		zap.Error(err))
	o.emit(snap)
	if succeeded {
		o.log.Info("analysis complete", zap.String("file", name), zap.Int("attempts", attempt))
		if o.opts.OnSuccess != nil {
			o.opts.OnSuccess(name)
		}
	}
}

func (o *Orchestrator) reset(run uint64) {
	o.mu.Lock()
	if run != o.run || o.state != StateSuccess {
		o.mu.Unlock()
		return
	}
	o.timer = nil
	o.clearLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.emit(snap)
}

// Cancel abandons the current run from any state and returns to idle with no
// file. Outstanding timers are stopped. A request already in flight finishes
// but its result is discarded.
func (o *Orchestrator) Cancel() {
	o.mu.Lock()
	if o.state == StateIdle && o.file == nil {
		o.mu.Unlock()
		return
	}
	o.run++
	o.stopLocked()
	o.clearLocked()
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.log.Info("upload cancelled")
	o.emit(snap)
}

// Close cancels any run and rejects further Starts.
func (o *Orchestrator) Close() {
	o.Cancel()
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *Orchestrator) transition(run uint64, s State, msg string) bool {
	o.mu.Lock()
	if run != o.run {
		o.mu.Unlock()
		return false
	}
	o.setLocked(s, msg)
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.emit(snap)
	return true
}

func (o *Orchestrator) failUpload(run uint64, msg string, err error) error {
	o.mu.Lock()
	if run != o.run {
		o.mu.Unlock()
		return ErrCancelled
	}
	o.failLocked(msg, err)
	snap := o.snapshotLocked()
	o.mu.Unlock()
	o.emit(snap)
	return snap.Err
}

func (o *Orchestrator) failLocked(msg string, err error) {
	o.stopLocked()
	o.setLocked(StateError, msg)
	o.err = err
	name := ""
	if o.file != nil {
		name = o.file.Name
	}
	o.log.Warn(msg, zap.String("file", name), zap.Int("attempts", o.attempts), zap.Error(err))
}

func (o *Orchestrator) stopLocked() {
	if o.timer != nil {
		o.timer.Stop()
		o.timer = nil
	}
}

func (o *Orchestrator) clearLocked() {
	o.file = nil
	o.attempts = 0
	o.err = nil
	o.setLocked(StateIdle, "")
}

func (o *Orchestrator) setLocked(s State, msg string) {
	o.state = s
	o.message = msg
}

func (o *Orchestrator) snapshotLocked() Snapshot {
	s := Snapshot{State: o.state, Message: o.message, Attempts: o.attempts, Err: o.err}
	if o.file != nil {
		s.File = o.file.Name
	}
	return s
}

func (o *Orchestrator) emit(s Snapshot) {
	if o.opts.OnChange != nil {
		o.opts.OnChange(s)
	}
}
