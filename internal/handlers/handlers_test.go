package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/codebuildervaibhav/segment-transcriber/internal/queue"
	"github.com/codebuildervaibhav/segment-transcriber/internal/storage"
	"github.com/codebuildervaibhav/segment-transcriber/internal/types"
)

type fakeJobs struct {
	mu          sync.Mutex
	submissions []queue.Submission
	statuses    map[string]queue.Status
	bus         *queue.EventBus
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{statuses: make(map[string]queue.Status), bus: queue.NewEventBus(0)}
}

func (f *fakeJobs) SubmitRequest(sub queue.Submission) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, sub)
	id := "job-1"
	f.statuses[id] = queue.Status{ID: id, Status: types.StatusProcessing}
	return id
}

func (f *fakeJobs) Poll(id string) (queue.Status, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, ok := f.statuses[id]
	return st, ok
}

func (f *fakeJobs) Events() *queue.EventBus { return f.bus }

type fakeHistory struct {
	records []storage.TranscriptRecord
}

func (f *fakeHistory) ListTranscripts(ctx context.Context, limit int) ([]storage.TranscriptRecord, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

func (f *fakeHistory) GetTranscript(ctx context.Context, jobID string) (storage.TranscriptRecord, error) {
	for _, r := range f.records {
		if r.JobID == jobID {
			return r, nil
		}
	}
	return storage.TranscriptRecord{}, storage.ErrRecordNotFound
}

type fakeReader map[string]string

func (f fakeReader) ReadTranscript(path string) (string, error) {
	text, ok := f[path]
	if !ok {
		return "", os.ErrNotExist
	}
	return text, nil
}

func newTestApp(t *testing.T, jobs *fakeJobs, maxSize int64, history *fakeHistory) (*fiber.App, string) {
	t.Helper()
	dir := t.TempDir()
	log := zerolog.Nop()
	validator := NewValidator([]string{"mp3", "wav", "m4a"}, maxSize)

	routes := Routes{
		Upload: NewUploadHandler(jobs, validator, dir, 12, log),
		Status: NewStatusHandler(jobs),
		Events: NewEventsHandler(jobs, log),
		Stream: NewStreamHandler(jobs, validator, dir, 12, log),
	}
	if history != nil {
		routes.History = NewHistoryHandler(history, fakeReader{"/out/a.txt": "hello transcript"}, log)
	}
	app := fiber.New()
	routes.Mount(app)
	return app, dir
}

func multipartRequest(t *testing.T, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("audio", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(content)
	}
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/transcribe", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestUploadAcceptsJob(t *testing.T) {
	jobs := newFakeJobs()
	app, _ := newTestApp(t, jobs, 1<<20, nil)

	req := multipartRequest(t, map[string]string{"segment_length": "45", "name": "Board meeting"}, "meeting.MP3", []byte("fake audio"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["job_id"] != "job-1" || body["status"] != "processing" || body["status_url"] != "/transcribe/status/job-1" {
		t.Fatalf("body = %v", body)
	}

	if len(jobs.submissions) != 1 {
		t.Fatalf("submissions = %d", len(jobs.submissions))
	}
	sub := jobs.submissions[0]
	if sub.SegmentMinutes != 12 {
		t.Errorf("segment minutes = %d, want out-of-range 45 reset to 12", sub.SegmentMinutes)
	}
	if sub.Name != "Board meeting" {
		t.Errorf("name = %q", sub.Name)
	}
	if !strings.HasSuffix(sub.InputPath, ".mp3") {
		t.Errorf("input path = %q", sub.InputPath)
	}
	saved, err := os.ReadFile(sub.InputPath)
	if err != nil || string(saved) != "fake audio" {
		t.Fatalf("saved upload = %q, %v", saved, err)
	}
}

func TestUploadChunkLengthAlias(t *testing.T) {
	jobs := newFakeJobs()
	app, _ := newTestApp(t, jobs, 1<<20, nil)

	resp, err := app.Test(multipartRequest(t, map[string]string{"chunk_length": "5"}, "a.wav", []byte("x")))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := jobs.submissions[0]; got.SegmentMinutes != 5 || got.Name != "a.wav" {
		t.Fatalf("submission = %+v", got)
	}
}

func TestUploadRejections(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		content  []byte
		wantErr  string
	}{
		{"no file", "", nil, "No audio file provided"},
		{"bad extension", "notes.txt", []byte("x"), "File type not allowed"},
		{"no extension", "recording", []byte("x"), "File must have an extension"},
		{"too large", "big.mp3", bytes.Repeat([]byte("x"), 64), "File too large"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := newFakeJobs()
			app, _ := newTestApp(t, jobs, 32, nil)

			resp, err := app.Test(multipartRequest(t, nil, tt.filename, tt.content))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != fiber.StatusBadRequest {
				t.Fatalf("status = %d", resp.StatusCode)
			}
			body := decodeBody(t, resp)
			if msg, _ := body["error"].(string); !strings.Contains(msg, tt.wantErr) {
				t.Fatalf("error = %q, want %q", msg, tt.wantErr)
			}
			if len(jobs.submissions) != 0 {
				t.Fatal("rejected upload was submitted")
			}
		})
	}
}

func TestStatus(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["abc"] = queue.Status{ID: "abc", Status: types.StatusProcessing, Progress: 40, Message: "Transcribing segment 2 of 3..."}
	app, _ := newTestApp(t, jobs, 1<<20, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/transcribe/status/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	body := decodeBody(t, resp)
	if body["progress"] != float64(40) || body["status"] != "processing" {
		t.Fatalf("body = %v", body)
	}
	if v, ok := body["transcript"]; !ok || v != nil {
		t.Fatalf("transcript = %v, want null", v)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/transcribe/status/missing", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEventsStreamsUntilResult(t *testing.T) {
	jobs := newFakeJobs()
	jobs.statuses["abc"] = queue.Status{ID: "abc", Status: types.StatusCompleted}
	jobs.bus.Publish(queue.Event{JobID: "abc", Type: queue.EventTypeProgress, Progress: 10, Message: "Starting audio segmentation..."})
	jobs.bus.Publish(queue.Event{JobID: "other", Type: queue.EventTypeProgress, Progress: 50, Message: "not mine"})
	jobs.bus.Publish(queue.Event{JobID: "abc", Type: queue.EventTypeResult, Progress: 100, Transcript: "hello"})
	app, _ := newTestApp(t, jobs, 1<<20, nil)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/transcribe/events/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	body := string(raw)
	want := []string{
		`data: {"message":"Starting audio segmentation...","progress":10}`,
		`data: {"progress":100,"transcript":"hello"}`,
	}
	last := -1
	for _, w := range want {
		i := strings.Index(body, w)
		if i < 0 || i < last {
			t.Fatalf("body %q missing ordered frame %q", body, w)
		}
		last = i
	}
	if strings.Contains(body, "not mine") {
		t.Fatal("stream leaked another job's events")
	}
}

func TestEventsUnknownJob(t *testing.T) {
	app, _ := newTestApp(t, newFakeJobs(), 1<<20, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/transcribe/events/nope", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	app, _ := newTestApp(t, newFakeJobs(), 1<<20, nil)
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/ws/jobs/abc", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUpgradeRequired {
		t.Fatalf("status = %d, want 426", resp.StatusCode)
	}
}

func TestHistory(t *testing.T) {
	history := &fakeHistory{records: []storage.TranscriptRecord{
		{JobID: "a", RequestName: "first", LocalPath: "/out/a.txt", TotalSegments: 3},
		{JobID: "b", RequestName: "second", LocalPath: "/out/missing.txt"},
	}}
	app, _ := newTestApp(t, newFakeJobs(), 1<<20, history)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/transcripts?limit=1", nil))
	if err != nil {
		t.Fatal(err)
	}
	var records []storage.TranscriptRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].JobID != "a" {
		t.Fatalf("records = %+v", records)
	}

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/transcripts/a/text", nil))
	if err != nil {
		t.Fatal(err)
	}
	text, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK || string(text) != "hello transcript" {
		t.Fatalf("text = %d %q", resp.StatusCode, text)
	}

	for path, want := range map[string]int{
		"/transcripts/zzz/text": fiber.StatusNotFound,
		"/transcripts/b/text":   fiber.StatusInternalServerError,
	} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != want {
			t.Errorf("%s status = %d, want %d", path, resp.StatusCode, want)
		}
	}
}

func TestRootAndHealth(t *testing.T) {
	app, _ := newTestApp(t, newFakeJobs(), 1<<20, nil)
	for _, path := range []string{"/", "/health"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if body := decodeBody(t, resp); body["status"] != "ok" {
			t.Errorf("%s body = %v", path, body)
		}
	}
}

func TestParseSegmentLength(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 12},
		{"abc", 12},
		{"0", 12},
		{"31", 12},
		{"1", 1},
		{" 30 ", 30},
	}
	for _, tt := range tests {
		if got := parseSegmentLength(tt.raw, 12); got != tt.want {
			t.Errorf("parseSegmentLength(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}
