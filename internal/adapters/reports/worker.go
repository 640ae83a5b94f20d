package reports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"seem/internal/blob"
	"seem/internal/core"
)

// Status describes the lifecycle stage of a report request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// ErrQueueFull is returned by EnqueueReport when the worker is saturated.
var ErrQueueFull = errors.New("reports: queue full")

const defaultQueueSize = 32

// Artifact is one stored rendering of a report.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks a report request and its artifacts.
type Record struct {
	ID          string     `json:"id"`
	Stand       string     `json:"stand"`
	Formats     []Format   `json:"formats"`
	Status      Status     `json:"status"`
	Error       string     `json:"error,omitempty"`
	Artifacts   []Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Done reports whether the record reached a terminal status.
func (r Record) Done() bool { return r.Status == StatusSucceeded || r.Status == StatusFailed }

// ReportInput is an enqueue request. Formats default to JSON and CSV.
type ReportInput struct {
	Report  StandReport
	Formats []Format
}

// Scheduler queues report exports and exposes their status.
type Scheduler interface {
	EnqueueReport(ctx context.Context, input ReportInput) (Record, error)
	GetReport(id string) (Record, bool)
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the worker's logger.
func WithLogger(logger core.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock sets the worker's clock.
func WithClock(clock core.Clock) Option {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithQueueSize bounds the number of pending requests.
func WithQueueSize(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.queueSize = n
		}
	}
}

// Worker renders and stores reports asynchronously.
type Worker struct {
	store     blob.Store
	logger    core.Logger
	clock     core.Clock
	queueSize int

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id    string
	input ReportInput
}

type job struct {
	record Record
	done   chan struct{}
}

var _ Scheduler = (*Worker)(nil)

// NewWorker constructs a worker storing artifacts in store. Call Start to
// begin processing.
func NewWorker(store blob.Store, opts ...Option) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		store:     store,
		logger:    discard{},
		clock:     core.ClockFunc(nil),
		queueSize: defaultQueueSize,
		jobs:      make(map[string]*job),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	w.queue = make(chan task, w.queueSize)
	return w
}

// Start begins processing report requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the current report.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// EnqueueReport validates the request and queues it.
func (w *Worker) EnqueueReport(ctx context.Context, input ReportInput) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	if w.store == nil {
		return Record{}, errors.New("reports: blob store not configured")
	}
	formats := input.Formats
	if len(formats) == 0 {
		formats = []Format{FormatJSON, FormatCSV}
	}
	unique := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{}, len(formats))
	for _, f := range formats {
		if _, err := ParseFormat(string(f)); err != nil {
			return Record{}, err
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		unique = append(unique, f)
	}

	now := w.clock.Now()
	record := Record{
		ID:        uuid.NewString(),
		Stand:     input.Report.Stand,
		Formats:   unique,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if input.Report.GeneratedAt.IsZero() {
		input.Report.GeneratedAt = now
	}

	w.mu.Lock()
	w.jobs[record.ID] = &job{record: record, done: make(chan struct{})}
	w.mu.Unlock()

	select {
	case w.queue <- task{id: record.ID, input: input}:
	default:
		w.mu.Lock()
		delete(w.jobs, record.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.logger.Debug("report queued", "id", record.ID, "stand", record.Stand)
	return record.copy(), nil
}

// GetReport returns a snapshot of a report record.
func (w *Worker) GetReport(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	j, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return j.record.copy(), true
}

// Await blocks until the report reaches a terminal status or ctx ends.
func (w *Worker) Await(ctx context.Context, id string) (Record, error) {
	w.mu.RLock()
	j, ok := w.jobs[id]
	w.mu.RUnlock()
	if !ok {
		return Record{}, fmt.Errorf("reports: unknown report %s", id)
	}
	select {
	case <-j.done:
		record, _ := w.GetReport(id)
		return record, nil
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

func (w *Worker) process(t task) {
	w.update(t.id, func(r *Record) { r.Status = StatusRunning })
	record, _ := w.GetReport(t.id)

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.storeArtifact(t.id, t.input.Report, format)
		if err != nil {
			w.finish(t.id, StatusFailed, err.Error(), artifacts)
			w.logger.Error("report failed", "id", t.id, "format", string(format), "error", err)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.finish(t.id, StatusSucceeded, "", artifacts)
	w.logger.Info("report stored", "id", t.id, "stand", record.Stand, "artifacts", len(artifacts))
}

func (w *Worker) storeArtifact(id string, report StandReport, format Format) (Artifact, error) {
	payload, err := Render(report, format)
	if err != nil {
		return Artifact{}, err
	}
	key := Key(id, format)
	info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: format.contentType(),
		Metadata:    map[string]string{"stand": report.Stand, "rows": strconv.Itoa(len(report.Rows()))},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store %s: %w", key, err)
	}
	artifact := Artifact{
		Key:         key,
		Format:      format,
		ContentType: info.ContentType,
		SizeBytes:   info.Size,
		CreatedAt:   info.LastModified,
	}
	if artifact.ContentType == "" {
		artifact.ContentType = format.contentType()
	}
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = w.clock.Now()
	}
	url, err := w.store.PresignURL(w.ctx, key, blob.SignedURLOptions{})
	switch {
	case err == nil:
		artifact.URL = url
	case !errors.Is(err, blob.ErrUnsupported):
		return Artifact{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return artifact, nil
}

// Key is the blob key a report rendering is stored under.
func Key(id string, format Format) string {
	return "reports/" + id + "/" + string(format)
}

func (w *Worker) update(id string, fn func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if j, ok := w.jobs[id]; ok {
		fn(&j.record)
		j.record.UpdatedAt = w.clock.Now()
	}
}

func (w *Worker) finish(id string, status Status, message string, artifacts []Artifact) {
	now := w.clock.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	j, ok := w.jobs[id]
	if !ok {
		return
	}
	j.record.Status = status
	j.record.Error = message
	j.record.Artifacts = artifacts
	j.record.UpdatedAt = now
	j.record.CompletedAt = &now
	close(j.done)
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

type discard struct{}

func (discard) Debug(string, ...any) {}
func (discard) Info(string, ...any)  {}
func (discard) Warn(string, ...any)  {}
func (discard) Error(string, ...any) {}
