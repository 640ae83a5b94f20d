package reports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"seem/internal/blob"
	"seem/internal/core"
	"seem/internal/scaling"
	"seem/internal/stand"
)

func sampleReport() StandReport {
	var standing, early, late stand.StandVolume
	standing.Cubic[scaling.Grade2Saw] = 120.5
	standing.Scribner[scaling.Grade2Saw] = 30.25
	standing.Logs[scaling.Grade2Saw] = 80
	standing.Cubic[scaling.Grade4Saw] = 10
	early.Cubic[scaling.Grade3Saw] = 12
	late.Cubic[scaling.Grade3Saw] = 40
	return StandReport{
		Stand:       "unit <7>",
		Policy:      scaling.ForwarderLogs.String(),
		GeneratedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Standing:    standing,
		Harvest:     map[int]stand.StandVolume{2: late, 1: early},
	}
}

func TestRowsOrderSectionsAndPeriods(t *testing.T) {
	rows := sampleReport().Rows()
	if len(rows) != 3*(scaling.GradeCount+1) {
		t.Fatalf("expected 12 rows, got %d", len(rows))
	}
	if rows[3].Grade != "total" || rows[3].Cubic != 130.5 {
		t.Fatalf("unexpected standing total %+v", rows[3])
	}
	if rows[4].Section != "harvest" || rows[4].Period != 1 || rows[8].Period != 2 {
		t.Fatalf("harvest periods out of order: %+v %+v", rows[4], rows[8])
	}
	if rows[9].Grade != "3S" || rows[9].Cubic != 40 {
		t.Fatalf("unexpected period 2 row %+v", rows[9])
	}
}

func TestRenderFormats(t *testing.T) {
	report := sampleReport()

	payload, err := Render(report, FormatJSON)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	var decoded struct {
		Stand string `json:"stand"`
		Rows  []Row  `json:"rows"`
	}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Stand != report.Stand || len(decoded.Rows) != 12 {
		t.Fatalf("unexpected json %+v", decoded)
	}

	payload, err = Render(report, FormatCSV)
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	records, err := csv.NewReader(strings.NewReader(string(payload))).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 13 || records[0][0] != "section" || records[1][2] != "2S" || records[1][4] != "30.250" {
		t.Fatalf("unexpected csv %v", records[:2])
	}

	payload, err = Render(report, FormatHTML)
	if err != nil {
		t.Fatalf("html: %v", err)
	}
	html := string(payload)
	if !strings.Contains(html, "unit &lt;7&gt;") || strings.Contains(html, "unit <7>") {
		t.Fatalf("stand name not escaped: %s", html)
	}
	if !strings.Contains(html, "<td>2S</td>") || !strings.Contains(html, "2026-03-01T00:00:00Z") {
		t.Fatalf("missing rows in html: %s", html)
	}

	if _, err := Render(report, Format("pdf")); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(" HTML "); err != nil || f != FormatHTML {
		t.Fatalf("ParseFormat = %q %v", f, err)
	}
	if _, err := ParseFormat("xlsx"); err == nil {
		t.Fatalf("expected error")
	}
}

func runWorker(t *testing.T, store blob.Store, opts ...Option) *Worker {
	t.Helper()
	w := NewWorker(store, opts...)
	w.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = w.Stop(ctx)
	})
	return w
}

func await(t *testing.T, w *Worker, id string) Record {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	record, err := w.Await(ctx, id)
	if err != nil {
		t.Fatalf("await %s: %v", id, err)
	}
	return record
}

func TestWorkerStoresArtifacts(t *testing.T) {
	store := blob.NewMemory()
	fixed := time.Date(2026, 4, 2, 8, 0, 0, 0, time.UTC)
	w := runWorker(t, store, WithClock(core.ClockFunc(func() time.Time { return fixed })))

	queued, err := w.EnqueueReport(context.Background(), ReportInput{Report: sampleReport(), Formats: []Format{FormatCSV, FormatCSV, FormatHTML}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if queued.Status != StatusQueued || len(queued.Formats) != 2 || !queued.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected queued record %+v", queued)
	}

	record := await(t, w, queued.ID)
	if record.Status != StatusSucceeded || record.CompletedAt == nil || len(record.Artifacts) != 2 {
		t.Fatalf("unexpected record %+v", record)
	}
	csvArtifact := record.Artifacts[0]
	if csvArtifact.Key != Key(queued.ID, FormatCSV) || csvArtifact.URL != "" {
		t.Fatalf("unexpected artifact %+v", csvArtifact)
	}
	info, rc, err := store.Get(context.Background(), csvArtifact.Key)
	if err != nil {
		t.Fatalf("get artifact: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if info.ContentType != "text/csv" || info.Metadata["rows"] != "12" || !strings.HasPrefix(string(body), "section,") {
		t.Fatalf("unexpected stored artifact %+v %q", info, body)
	}
	if _, ok := w.GetReport("missing"); ok {
		t.Fatalf("unknown id should not resolve")
	}
}

func TestWorkerPresignsWhenSupported(t *testing.T) {
	w := runWorker(t, blob.NewMockS3ForTests())
	queued, err := w.EnqueueReport(context.Background(), ReportInput{Report: sampleReport(), Formats: []Format{FormatJSON}})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record := await(t, w, queued.ID)
	if record.Status != StatusSucceeded || !strings.Contains(record.Artifacts[0].URL, Key(queued.ID, FormatJSON)) {
		t.Fatalf("expected presigned artifact, got %+v", record)
	}
}

type failingStore struct {
	blob.Store
}

func (failingStore) Put(context.Context, string, io.Reader, blob.PutOptions) (blob.Info, error) {
	return blob.Info{}, errors.New("disk full")
}

func TestWorkerRecordsFailure(t *testing.T) {
	w := runWorker(t, failingStore{blob.NewMemory()})
	queued, err := w.EnqueueReport(context.Background(), ReportInput{Report: sampleReport()})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	record := await(t, w, queued.ID)
	if record.Status != StatusFailed || !strings.Contains(record.Error, "disk full") || len(record.Artifacts) != 0 {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestEnqueueReportRejects(t *testing.T) {
	ctx := context.Background()
	if _, err := NewWorker(nil).EnqueueReport(ctx, ReportInput{}); err == nil {
		t.Fatalf("expected missing store error")
	}
	w := NewWorker(blob.NewMemory(), WithQueueSize(1))
	if _, err := w.EnqueueReport(ctx, ReportInput{Formats: []Format{"pdf"}}); err == nil {
		t.Fatalf("expected format error")
	}
	if _, err := w.EnqueueReport(ctx, ReportInput{}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	if _, err := w.EnqueueReport(ctx, ReportInput{}); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("expected ErrQueueFull, got %v", err)
	}
	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := w.EnqueueReport(cancelled, ReportInput{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := w.Await(ctx, "missing"); err == nil {
		t.Fatalf("expected unknown report error")
	}
}
