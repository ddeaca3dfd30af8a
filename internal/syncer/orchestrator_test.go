package syncer

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"doorsync/internal/connectivity"
	"doorsync/internal/gateway"
	"doorsync/internal/record"
	"doorsync/internal/store"
	"doorsync/internal/store/memory"
)

// fakeGateway records uploads and fails selected record ids.
type fakeGateway struct {
	mu         sync.Mutex
	diagErr    error
	accessErr  func(id string) error
	diagsSent  []record.Diagnostic
	accessSent []record.Access
}

func (g *fakeGateway) CreateDiagnostic(_ context.Context, rec record.Diagnostic) (gateway.CreateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.diagErr != nil {
		return gateway.CreateResult{}, g.diagErr
	}
	g.diagsSent = append(g.diagsSent, rec)
	return gateway.CreateResult{ID: rec.ID}, nil
}

func (g *fakeGateway) CreateAccessRecord(_ context.Context, rec record.Access) (gateway.CreateResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.accessErr != nil {
		if err := g.accessErr(rec.ID); err != nil {
			return gateway.CreateResult{}, err
		}
	}
	g.accessSent = append(g.accessSent, rec)
	return gateway.CreateResult{ID: rec.ID}, nil
}

type fixture struct {
	orch    *Orchestrator
	diags   *memory.DiagnosticStore
	access  *memory.AccessStore
	gw      *fakeGateway
	monitor *connectivity.Monitor
}

func newFixture() *fixture {
	logger := log.New(io.Discard, "", 0)
	f := &fixture{
		diags:   memory.NewDiagnosticStore(),
		access:  memory.NewAccessStore(),
		gw:      &fakeGateway{},
		monitor: connectivity.NewMonitor(logger),
	}
	f.orch = NewOrchestrator(Config{
		Diagnostics: f.diags,
		Access:      f.access,
		Gateway:     f.gw,
		Monitor:     f.monitor,
		Logger:      logger,
	})
	return f
}

func mustInsertAccess(t *testing.T, f *fixture, rec record.Access) {
	t.Helper()
	if _, err := f.access.Insert(context.Background(), rec); err != nil {
		t.Fatalf("insert access record %s: %v", rec.ID, err)
	}
}

// ── Happy path ───────────────────────────────────────────────────────────────

func TestRunTick_UploadsAndDeletesRecords(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering, DoorID: "door-001"})
	mustInsertAccess(t, f, record.Access{ID: "rec-2", Status: record.StatusExiting, DoorID: "door-001"})
	if _, err := f.diags.Insert(ctx, record.Diagnostic{ID: "diag-1", Message: "earlier failure", ServiceName: "App"}); err != nil {
		t.Fatalf("insert diagnostic: %v", err)
	}

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if n := len(f.gw.accessSent); n != 2 {
		t.Errorf("expected 2 access uploads, got %d", n)
	}
	if n := len(f.gw.diagsSent); n != 1 {
		t.Errorf("expected 1 diagnostic upload, got %d", n)
	}
	if n := len(f.access.All()); n != 0 {
		t.Errorf("expected access store drained, %d records remain", n)
	}
	if n := len(f.diags.All()); n != 0 {
		t.Errorf("expected diagnostic store drained, %d records remain", n)
	}
}

func TestRunTick_NormalizesMissingEntryTime(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusPending})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if len(f.gw.accessSent) != 1 {
		t.Fatalf("expected 1 upload, got %d", len(f.gw.accessSent))
	}
	if f.gw.accessSent[0].EntryTime.IsZero() {
		t.Error("expected entry time to be filled in before upload")
	}
}

// ── Offline behavior ─────────────────────────────────────────────────────────

func TestRunTick_OfflineIsNoOp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.monitor.SetOnline(false)
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if len(f.gw.accessSent) != 0 {
		t.Error("expected no uploads while offline")
	}
	if n := len(f.access.All()); n != 1 {
		t.Errorf("expected record kept locally, got %d", n)
	}
	if n := len(f.diags.All()); n != 0 {
		t.Errorf("offline skip should not produce diagnostics, got %d", n)
	}
}

// ── Failure handling ─────────────────────────────────────────────────────────

func TestRunTick_FailureKeepsRecordAndRecordsDiagnostic(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.accessErr = func(string) error {
		return &gateway.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}
	}
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering, DoorID: "door-007"})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if n := len(f.access.All()); n != 1 {
		t.Fatalf("failed record must stay in the store, got %d", n)
	}

	diags := f.diags.All()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	d := diags[0]
	if d.ErrorKind != string(KindServer) || d.Code != "SYNC_SRV_500" {
		t.Errorf("unexpected classification: %s/%s", d.ErrorKind, d.Code)
	}
	if d.ServiceName != "Orchestrator" {
		t.Errorf("expected service Orchestrator, got %q", d.ServiceName)
	}
	if d.DoorID != "door-007" {
		t.Errorf("expected door id carried over, got %q", d.DoorID)
	}
	if d.Timestamp.IsZero() {
		t.Error("expected diagnostic timestamp set")
	}
	if !strings.HasPrefix(d.ID, string(KindServer)+"-") {
		t.Errorf("expected id to encode the kind, got %q", d.ID)
	}
}

func TestRunTick_MissingDoorIDBecomesPlaceholder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.accessErr = func(string) error { return errors.New("kaput") }
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	diags := f.diags.All()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if diags[0].DoorID != "N/A" {
		t.Errorf("expected placeholder door id, got %q", diags[0].DoorID)
	}
}

func TestRunTick_DedupesEqualFailuresWithinTick(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.accessErr = func(string) error {
		return &gateway.StatusError{StatusCode: 503, Status: "503 Service Unavailable"}
	}
	for _, id := range []string{"rec-1", "rec-2", "rec-3"} {
		mustInsertAccess(t, f, record.Access{ID: id, Status: record.StatusEntering})
	}

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	if n := len(f.diags.All()); n != 1 {
		t.Errorf("equal failures should collapse to 1 diagnostic, got %d", n)
	}
}

func TestRunTick_DedupesAcrossTicks(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.diagErr = &gateway.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}
	f.gw.accessErr = func(string) error {
		return &gateway.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}
	}
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("first RunTick: %v", err)
	}
	if n := len(f.diags.All()); n != 1 {
		t.Fatalf("expected 1 diagnostic after first tick, got %d", n)
	}

	// The buffered diagnostic is still unsynced; a second identical failure
	// must not produce another entry.
	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("second RunTick: %v", err)
	}
	if n := len(f.diags.All()); n != 1 {
		t.Errorf("expected still 1 diagnostic after second tick, got %d", n)
	}
}

func TestRunTick_DistinctFailuresEachGetDiagnostics(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.accessErr = func(id string) error {
		if id == "rec-1" {
			return &gateway.StatusError{StatusCode: 401, Status: "401 Unauthorized"}
		}
		return &gateway.StatusError{StatusCode: 500, Status: "500 Internal Server Error"}
	}
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})
	mustInsertAccess(t, f, record.Access{ID: "rec-2", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	kinds := map[string]bool{}
	for _, d := range f.diags.All() {
		kinds[d.ErrorKind] = true
	}
	if len(kinds) != 2 || !kinds[string(KindUnauthorized)] || !kinds[string(KindServer)] {
		t.Errorf("expected one diagnostic each for 401 and 500, got %v", kinds)
	}
}

func TestRunTick_PartialFailureContinues(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.gw.accessErr = func(id string) error {
		if id == "rec-1" {
			return errors.New("kaput")
		}
		return nil
	}
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})
	mustInsertAccess(t, f, record.Access{ID: "rec-2", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	remaining := f.access.All()
	if len(remaining) != 1 || remaining[0].ID != "rec-1" {
		t.Errorf("expected only rec-1 to remain, got %v", remaining)
	}
}

// ── Store failures ───────────────────────────────────────────────────────────

// brokenDiagnosticStore fails every read.
type brokenDiagnosticStore struct {
	store.DiagnosticStore
}

func (brokenDiagnosticStore) ListUnsynced(context.Context) ([]record.Diagnostic, error) {
	return nil, errors.New("disk unhappy")
}

func TestRunTick_StoreReadFailurePropagates(t *testing.T) {
	f := newFixture()
	f.orch.diags = brokenDiagnosticStore{}

	err := f.orch.RunTick(context.Background())
	if err == nil {
		t.Fatal("expected store read failure to surface")
	}
	if !strings.Contains(err.Error(), "disk unhappy") {
		t.Errorf("expected original cause in error, got %v", err)
	}
	if n := len(f.diags.All()); n != 0 {
		t.Errorf("store read failure must not be classified into a diagnostic, got %d", n)
	}
}

// ── Timestamp source ─────────────────────────────────────────────────────────

func TestRunTick_DiagnosticIDEncodesClock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f.orch.now = func() time.Time { return fixed }

	f.gw.accessErr = func(string) error { return errors.New("kaput") }
	mustInsertAccess(t, f, record.Access{ID: "rec-1", Status: record.StatusEntering})

	if err := f.orch.RunTick(ctx); err != nil {
		t.Fatalf("RunTick: %v", err)
	}

	diags := f.diags.All()
	if len(diags) != 1 {
		t.Fatalf("expected 1 diagnostic, got %d", len(diags))
	}
	if !diags[0].Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, diags[0].Timestamp)
	}
}
