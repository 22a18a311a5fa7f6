package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/scrublog-systems/scrublog/internal/models"
	"github.com/scrublog-systems/scrublog/internal/redactor"
	"github.com/scrublog-systems/scrublog/internal/store"
)

func testEnvelope(tenantID, logID, text string) *models.IngestEnvelope {
	return &models.IngestEnvelope{
		LogRecord: models.LogRecord{
			TenantID:     tenantID,
			LogID:        logID,
			OriginalText: text,
			SourceFormat: models.SourceJSON,
		},
		EnqueuedAt: time.Now().UTC(),
	}
}

func TestProcess_PersistsRedactedEntry(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)
	p.now = func() time.Time { return time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC) }

	env := testEnvelope("tenant-1", "uuid-1234", "Customer 555-123-4567 logged in")
	res := p.Process(context.Background(), env)

	if res.Outcome != OutcomeAck {
		t.Fatalf("Outcome = %v, want OutcomeAck", res.Outcome)
	}

	entry, err := mem.Get(context.Background(), "tenant-1", "uuid-1234")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if entry.OriginalText != "Customer 555-123-4567 logged in" {
		t.Errorf("OriginalText = %q", entry.OriginalText)
	}
	if strings.Contains(entry.ModifiedText, "555-123-4567") {
		t.Errorf("ModifiedText still contains phone number: %q", entry.ModifiedText)
	}
	if entry.Source != "json" {
		t.Errorf("Source = %q, want json", entry.Source)
	}

	if _, err := time.Parse(models.ProcessedAtFormat, entry.ProcessedAt); err != nil {
		t.Errorf("ProcessedAt %q is not valid ISO-8601: %v", entry.ProcessedAt, err)
	}
	if entry.ProcessedAt != "2026-05-02T12:00:00Z" {
		t.Errorf("ProcessedAt = %q", entry.ProcessedAt)
	}
}

func TestProcess_IdempotentOnRedelivery(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	env := testEnvelope("tenant-1", "uuid-1234", "Customer 555-123-4567 logged in")

	first := p.Process(context.Background(), env)
	if first.Outcome != OutcomeAck {
		t.Fatalf("first attempt: %v", first.Outcome)
	}
	entry1, err := mem.Get(context.Background(), "tenant-1", "uuid-1234")
	if err != nil {
		t.Fatalf("Get after first attempt: %v", err)
	}

	// Same envelope delivered again, e.g. to another worker after a
	// lease expiry.
	redelivered := testEnvelope("tenant-1", "uuid-1234", "Customer 555-123-4567 logged in")
	redelivered.AttemptCount = 2
	second := p.Process(context.Background(), redelivered)
	if second.Outcome != OutcomeAck {
		t.Fatalf("second attempt: %v", second.Outcome)
	}

	if mem.Len() != 1 {
		t.Errorf("entries = %d, want exactly 1", mem.Len())
	}

	entry2, err := mem.Get(context.Background(), "tenant-1", "uuid-1234")
	if err != nil {
		t.Fatalf("Get after second attempt: %v", err)
	}
	if entry1.ModifiedText != entry2.ModifiedText {
		t.Errorf("ModifiedText differs across redelivery: %q vs %q", entry1.ModifiedText, entry2.ModifiedText)
	}
}

func TestProcess_MalformedEnvelopeDeadLettered(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	tests := []*models.IngestEnvelope{
		testEnvelope("", "uuid-1234", "text"),
		testEnvelope("tenant-1", "", "text"),
		testEnvelope("", "", "text"),
	}

	for _, env := range tests {
		res := p.Process(context.Background(), env)
		if res.Outcome != OutcomeDead {
			t.Errorf("Outcome = %v, want OutcomeDead for tenant=%q log=%q", res.Outcome, env.TenantID, env.LogID)
		}
		if res.Reason != ReasonMalformedEnvelope {
			t.Errorf("Reason = %q", res.Reason)
		}
	}

	if mem.Len() != 0 {
		t.Errorf("malformed envelopes must not be persisted, got %d entries", mem.Len())
	}
}

// flakyStore fails the first n Put calls, then delegates.
type flakyStore struct {
	*store.MemoryStore
	failures int
	calls    int
}

func (s *flakyStore) Put(ctx context.Context, entry *models.ProcessedLogEntry) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("throttled")
	}
	return s.MemoryStore.Put(ctx, entry)
}

func TestProcess_TransientStoreFailureRetried(t *testing.T) {
	flaky := &flakyStore{MemoryStore: store.NewMemoryStore(), failures: 1}
	p := New(redactor.New(), flaky, nil)

	env := testEnvelope("tenant-1", "uuid-1234", "some text")

	first := p.Process(context.Background(), env)
	if first.Outcome != OutcomeRetry {
		t.Fatalf("first attempt Outcome = %v, want OutcomeRetry", first.Outcome)
	}
	if first.Reason != ReasonStoreUnavailable {
		t.Errorf("Reason = %q", first.Reason)
	}
	if flaky.Len() != 0 {
		t.Fatal("failed write must not leave a partial entry")
	}

	// Redelivery succeeds and leaves exactly one entry.
	env.AttemptCount = 2
	second := p.Process(context.Background(), env)
	if second.Outcome != OutcomeAck {
		t.Fatalf("second attempt Outcome = %v, want OutcomeAck", second.Outcome)
	}
	if flaky.Len() != 1 {
		t.Errorf("entries = %d, want exactly 1", flaky.Len())
	}
}

func TestProcess_CancelledContextIsTransient(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := p.Process(ctx, testEnvelope("tenant-1", "uuid-1234", "text"))
	if res.Outcome != OutcomeRetry {
		t.Errorf("Outcome = %v, want OutcomeRetry on cancelled context", res.Outcome)
	}
	if mem.Len() != 0 {
		t.Error("cancelled attempt must not persist")
	}
}

func TestProcess_TenantIsolation(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	// Same log id under two tenants, and two log ids under one tenant:
	// none of these may collide.
	envelopes := []*models.IngestEnvelope{
		testEnvelope("tenant-1", "log-a", "text one"),
		testEnvelope("tenant-2", "log-a", "text two"),
		testEnvelope("tenant-1", "log-b", "text three"),
	}

	for _, env := range envelopes {
		if res := p.Process(context.Background(), env); res.Outcome != OutcomeAck {
			t.Fatalf("Process(%s/%s): %v", env.TenantID, env.LogID, res.Outcome)
		}
	}

	if mem.Len() != 3 {
		t.Fatalf("entries = %d, want 3", mem.Len())
	}

	for _, env := range envelopes {
		entry, err := mem.Get(context.Background(), env.TenantID, env.LogID)
		if err != nil {
			t.Fatalf("Get(%s/%s): %v", env.TenantID, env.LogID, err)
		}
		if entry.OriginalText != env.OriginalText {
			t.Errorf("entry %s/%s has text %q, want %q", env.TenantID, env.LogID, entry.OriginalText, env.OriginalText)
		}
	}
}

func TestProcess_ConcurrentRedelivery(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	done := make(chan Result, 8)
	for i := 0; i < 8; i++ {
		go func(attempt int) {
			env := testEnvelope("tenant-1", "uuid-1234", "Customer 555-123-4567 logged in")
			env.AttemptCount = attempt
			done <- p.Process(context.Background(), env)
		}(i + 1)
	}

	for i := 0; i < 8; i++ {
		if res := <-done; res.Outcome != OutcomeAck {
			t.Errorf("concurrent attempt: %v", res.Outcome)
		}
	}

	if mem.Len() != 1 {
		t.Errorf("entries = %d, want exactly 1", mem.Len())
	}
}

func TestProcess_SourceCarriedThrough(t *testing.T) {
	mem := store.NewMemoryStore()
	p := New(redactor.New(), mem, nil)

	for i, format := range []models.SourceFormat{models.SourceJSON, models.SourcePlaintext} {
		env := testEnvelope("tenant-1", fmt.Sprintf("log-%d", i), "text")
		env.SourceFormat = format
		if res := p.Process(context.Background(), env); res.Outcome != OutcomeAck {
			t.Fatalf("Process: %v", res.Outcome)
		}

		entry, err := mem.Get(context.Background(), "tenant-1", fmt.Sprintf("log-%d", i))
		if err != nil {
			t.Fatal(err)
		}
		if entry.Source != string(format) {
			t.Errorf("Source = %q, want %q", entry.Source, format)
		}
	}
}
