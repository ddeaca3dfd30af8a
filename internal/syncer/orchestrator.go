// Package syncer pushes locally buffered records to the remote system.
//
// Records are written locally first and uploaded in background ticks.
// Delivery is at-least-once: a record stays in the local store until the
// remote accepts it, at which point it is deleted.  Upload failures are
// recorded as diagnostic entries, deduplicated within and across ticks so
// a flapping remote does not flood the error log.
package syncer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"doorsync/internal/connectivity"
	"doorsync/internal/gateway"
	"doorsync/internal/record"
	"doorsync/internal/store"
)

const serviceName = "Orchestrator"

const defaultMaxInFlight = 4

// RemoteGateway is the slice of the remote API the orchestrator uploads
// through.
type RemoteGateway interface {
	CreateDiagnostic(ctx context.Context, rec record.Diagnostic) (gateway.CreateResult, error)
	CreateAccessRecord(ctx context.Context, rec record.Access) (gateway.CreateResult, error)
}

// Config holds the dependencies for NewOrchestrator.
type Config struct {
	Diagnostics store.DiagnosticStore
	Access      store.AccessStore
	Gateway     RemoteGateway
	Monitor     *connectivity.Monitor
	Logger      *log.Logger

	// MaxInFlight bounds concurrent uploads per tick.  Defaults to 4.
	MaxInFlight int
}

// Orchestrator drains the local stores toward the remote system.
type Orchestrator struct {
	diags       store.DiagnosticStore
	access      store.AccessStore
	gw          RemoteGateway
	monitor     *connectivity.Monitor
	logger      *log.Logger
	maxInFlight int
	now         func() time.Time
}

func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = defaultMaxInFlight
	}
	return &Orchestrator{
		diags:       cfg.Diagnostics,
		access:      cfg.Access,
		gw:          cfg.Gateway,
		monitor:     cfg.Monitor,
		logger:      logger,
		maxInFlight: maxInFlight,
		now:         time.Now,
	}
}

// signature identifies a failure for deduplication.  One diagnostic entry
// per distinct signature; duplicates within a tick or already present in
// the store are skipped.
type signature struct {
	kind    Kind
	code    string
	service string
}

// seen tracks failure signatures for one tick, seeded from the store.
type seen struct {
	mu   sync.Mutex
	sigs map[signature]bool
}

// add records the signature and reports whether it was new.
func (s *seen) add(sig signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sigs[sig] {
		return false
	}
	s.sigs[sig] = true
	return true
}

// RunTick performs one synchronization pass: buffered diagnostics first,
// then access records.  When the monitor reports offline the tick is a
// no-op.  A store read failure aborts the tick; individual upload failures
// do not.
func (o *Orchestrator) RunTick(ctx context.Context) error {
	if !o.monitor.Online() {
		o.logger.Println("sync: offline, skipping tick")
		return nil
	}

	pending, err := o.diags.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list unsynced diagnostics: %w", err)
	}

	tick := &seen{sigs: make(map[signature]bool)}
	for _, d := range pending {
		tick.sigs[signature{kind: Kind(d.ErrorKind), code: d.Code, service: d.ServiceName}] = true
	}

	o.syncDiagnostics(ctx, pending, tick)

	records, err := o.access.ListUnsynced(ctx)
	if err != nil {
		return fmt.Errorf("list unsynced access records: %w", err)
	}
	o.syncAccessRecords(ctx, records, tick)

	return nil
}

func (o *Orchestrator) syncDiagnostics(ctx context.Context, pending []record.Diagnostic, tick *seen) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxInFlight)

	for _, d := range pending {
		g.Go(func() error {
			if d.Timestamp.IsZero() {
				d.Timestamp = o.now()
			}
			if _, err := o.gw.CreateDiagnostic(ctx, d); err != nil {
				o.reportFailure(ctx, tick, fmt.Sprintf("upload diagnostic %s: %v", d.ID, err), err, d.DoorID)
				return nil
			}
			if _, err := o.diags.Delete(ctx, d.ID); err != nil {
				o.logger.Printf("sync: delete uploaded diagnostic %s: %v", d.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (o *Orchestrator) syncAccessRecords(ctx context.Context, records []record.Access, tick *seen) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxInFlight)

	for _, rec := range records {
		g.Go(func() error {
			if rec.EntryTime.IsZero() {
				rec.EntryTime = o.now()
			}
			if _, err := o.gw.CreateAccessRecord(ctx, rec); err != nil {
				o.reportFailure(ctx, tick, fmt.Sprintf("upload access record %s: %v", rec.ID, err), err, rec.DoorID)
				return nil
			}
			if _, err := o.access.Delete(ctx, rec.ID); err != nil {
				o.logger.Printf("sync: delete uploaded access record %s: %v", rec.ID, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// reportFailure classifies the error and buffers a diagnostic entry for it,
// unless an entry with the same signature already exists.
func (o *Orchestrator) reportFailure(ctx context.Context, tick *seen, message string, cause error, doorID string) {
	kind := Classify(cause, o.monitor.Online())
	sig := signature{kind: kind, code: kind.Code(), service: serviceName}

	o.logger.Printf("sync: %s [%s/%s]", message, kind, sig.code)

	if !tick.add(sig) {
		return
	}

	if doorID == "" {
		doorID = "N/A"
	}
	entry := record.Diagnostic{
		ID:          diagnosticID(kind, o.now()),
		Message:     message,
		ServiceName: serviceName,
		ErrorKind:   string(kind),
		Code:        sig.code,
		Timestamp:   o.now(),
		DoorID:      doorID,
	}
	if _, err := o.diags.Insert(ctx, entry); err != nil {
		o.logger.Printf("sync: record diagnostic %s: %v", entry.ID, err)
	}
}

func diagnosticID(kind Kind, at time.Time) string {
	return fmt.Sprintf("%s-%d-%.8s", kind, at.UnixMilli(), uuid.NewString())
}
