package partition

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alfredjeanlab/tally/internal/model"
	"github.com/alfredjeanlab/tally/internal/store/memory"
)

func testConfig() Config {
	return Config{
		Width:     model.WidthMonth,
		Ahead:     2,
		Retention: 30 * 24 * time.Hour,
	}
}

func TestEnsureAhead_CreatesCurrentAndFuture(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	created, err := m.EnsureAhead(ctx, now)
	if err != nil {
		t.Fatalf("EnsureAhead: %v", err)
	}
	if len(created) != 3 {
		t.Fatalf("created = %d, want 3 (current + 2 ahead)", len(created))
	}
	if created[0].State != model.PartitionActive {
		t.Errorf("current state = %s, want active", created[0].State)
	}
	for _, p := range created[1:] {
		if p.State != model.PartitionPending {
			t.Errorf("future %s state = %s, want pending", p.Start.Format("2006-01"), p.State)
		}
	}
	if !created[0].Start.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("current start = %v", created[0].Start)
	}
	if !created[2].End.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("last end = %v", created[2].End)
	}
}

func TestEnsureAhead_Idempotent(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	if _, err := m.EnsureAhead(ctx, now); err != nil {
		t.Fatalf("first EnsureAhead: %v", err)
	}
	again, err := m.EnsureAhead(ctx, now)
	if err != nil {
		t.Fatalf("second EnsureAhead: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second run created %d partitions, want 0", len(again))
	}

	parts, _ := s.ListPartitions(ctx)
	if len(parts) != 3 {
		t.Errorf("partitions = %d, want 3", len(parts))
	}
}

func TestEnsureAhead_ExtendsAsTimeMoves(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	ctx := context.Background()

	if _, err := m.EnsureAhead(ctx, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("EnsureAhead: %v", err)
	}
	created, err := m.EnsureAhead(ctx, time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("EnsureAhead next month: %v", err)
	}
	// April and May exist already; only June is new.
	if len(created) != 1 || !created[0].Start.Equal(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("created = %+v, want only June", created)
	}
}

func TestAdvance_Transitions(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	ctx := context.Background()

	if _, err := m.EnsureAhead(ctx, time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("EnsureAhead: %v", err)
	}

	// Move to April: March (active) ages out, April (pending) activates.
	changes, err := m.Advance(ctx, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}

	byStart := map[string]model.PartitionState{}
	parts, _ := s.ListPartitions(ctx)
	for _, p := range parts {
		byStart[p.Start.Format("2006-01")] = p.State
	}
	if byStart["2026-03"] != model.PartitionAging {
		t.Errorf("March = %s, want aging", byStart["2026-03"])
	}
	if byStart["2026-04"] != model.PartitionActive {
		t.Errorf("April = %s, want active", byStart["2026-04"])
	}
	if byStart["2026-05"] != model.PartitionPending {
		t.Errorf("May = %s, want pending", byStart["2026-05"])
	}

	// A second pass at the same instant is a no-op.
	again, err := m.Advance(ctx, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("second Advance: %v", err)
	}
	if len(again) != 0 {
		t.Errorf("second Advance changed %d, want 0", len(again))
	}
}

// memDestination captures archive writes in memory.
type memDestination struct {
	keys    []string
	payload map[string][]byte
}

func (d *memDestination) Write(ctx context.Context, key string, data []byte) error {
	if d.payload == nil {
		d.payload = map[string][]byte{}
	}
	d.keys = append(d.keys, key)
	d.payload[key] = append([]byte(nil), data...)
	return nil
}

func seedMarchFacts(t *testing.T, s *memory.MemoryStore, n int) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		err := s.AppendFact(ctx, &model.FactEvent{
			ID:          fmt.Sprintf("ft-%d", i),
			OccurredAt:  base.AddDate(0, 0, i),
			CustomerID:  "cus-1",
			ItemID:      "itm-1",
			Quantity:    1,
			AmountCents: 100,
		})
		if err != nil {
			t.Fatalf("AppendFact: %v", err)
		}
	}
}

func TestRetire_ArchivesThenPurges(t *testing.T) {
	s := memory.New()
	dest := &memDestination{}
	cfg := testConfig()
	cfg.ArchivePrefix = "tally"
	m := NewManager(s, cfg, dest, nil)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreatePartition(ctx, &model.Partition{
		Start: start, End: start.AddDate(0, 1, 0), State: model.PartitionAging,
	}); err != nil {
		t.Fatalf("CreatePartition: %v", err)
	}
	seedMarchFacts(t, s, 5)

	// Not yet past retention: nothing happens.
	early, err := m.Retire(ctx, time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("early Retire: %v", err)
	}
	if len(early) != 0 {
		t.Errorf("early retire = %d, want 0", len(early))
	}

	results, err := m.Retire(ctx, time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	res := results[0]
	if res.ObjectKey != "tally/facts-20260301-20260401.jsonl" {
		t.Errorf("object key = %s", res.ObjectKey)
	}
	if res.FactsDropped != 5 {
		t.Errorf("facts dropped = %d, want 5", res.FactsDropped)
	}

	// Export happened before the purge, so the payload holds all 5 facts.
	payload := dest.payload[res.ObjectKey]
	lines := 0
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	for scanner.Scan() {
		lines++
	}
	if lines != 6 { // header + 5 facts
		t.Errorf("archive lines = %d, want 6", lines)
	}

	parts, _ := s.ListPartitions(ctx)
	if len(parts) != 1 || parts[0].State != model.PartitionArchived {
		t.Errorf("partition = %+v, want archived", parts[0])
	}
	if facts, _ := s.ListFacts(ctx, model.FactFilter{}); len(facts) != 0 {
		t.Errorf("facts remain: %d", len(facts))
	}
}

func TestRetire_NoDestinationDrops(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreatePartition(ctx, &model.Partition{
		Start: start, End: start.AddDate(0, 1, 0), State: model.PartitionAging,
	}); err != nil {
		t.Fatalf("CreatePartition: %v", err)
	}
	seedMarchFacts(t, s, 3)

	results, err := m.Retire(ctx, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Retire: %v", err)
	}
	if len(results) != 1 || results[0].FactsDropped != 3 {
		t.Fatalf("results = %+v", results)
	}

	parts, _ := s.ListPartitions(ctx)
	if parts[0].State != model.PartitionDropped {
		t.Errorf("state = %s, want dropped", parts[0].State)
	}
}

func TestScheduler_MaintainOnce(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	sched := NewScheduler(m, nil, time.Hour, nil)

	sched.MaintainOnce(context.Background())

	parts, _ := s.ListPartitions(context.Background())
	if len(parts) != 3 {
		t.Errorf("partitions after cycle = %d, want 3", len(parts))
	}
}

func TestScheduler_StartStop(t *testing.T) {
	s := memory.New()
	m := NewManager(s, testConfig(), nil, nil)
	sched := NewScheduler(m, nil, 10*time.Millisecond, nil)

	sched.Start()
	time.Sleep(30 * time.Millisecond)
	sched.Stop()

	parts, _ := s.ListPartitions(context.Background())
	if len(parts) == 0 {
		t.Error("expected partitions after scheduler ran")
	}
}
