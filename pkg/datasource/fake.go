package datasource

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/ddl"
	"github.com/opscart/table-compression-advisor/pkg/models"
)

const fakeBlockSize = 8192

var (
	moveStatement    = regexp.MustCompile(`^ALTER TABLE "([^"]+)"\."([^"]+)" MOVE(?: PARTITION "([^"]+)")?(?: ONLINE)? (NOCOMPRESS|ROW STORE COMPRESS \w+|COLUMN STORE COMPRESS FOR \w+ \w+)`)
	rebuildStatement = regexp.MustCompile(`^ALTER INDEX "([^"]+)"\."([^"]+)" REBUILD`)
)

// fakeTable tracks the physical state the fake mutates on MOVE
type fakeTable struct {
	snapshot   models.TableSnapshot
	baseBytes  int64                    // uncompressed size
	partitions map[string]models.Scheme // current scheme per partition
}

// Fake is an in-memory Database for tests and dry demos. MOVE statements
// change the stored size by the configured ratio so before/after
// measurements behave like a real table.
type Fake struct {
	mu       sync.Mutex
	tables   map[string]*fakeTable
	order    []string
	activity map[string]models.ActivityStats
	ratios   map[string]float64
	failOn   map[string]error
	failCall map[string]error
	slowOn   map[string]time.Duration
	calls    map[string]int
	applied  []string
	pingErr  error

	// Gate, when set, blocks every Apply until a value is received or
	// the context ends. No lock is held while waiting.
	Gate chan struct{}
	// Entered receives each statement as Apply starts, if there is room
	Entered chan string

	Now func() time.Time
}

func NewFake() *Fake {
	return &Fake{
		tables:   make(map[string]*fakeTable),
		activity: make(map[string]models.ActivityStats),
		ratios:   make(map[string]float64),
		failOn:   make(map[string]error),
		failCall: make(map[string]error),
		slowOn:   make(map[string]time.Duration),
		calls:    make(map[string]int),
		Now:      time.Now,
	}
}

// AddTable registers a table; activity counters on the snapshot are
// served by GetActivityStats.
func (f *Fake) AddTable(s models.TableSnapshot) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()

	if s.Compression == "" {
		s.Compression = models.SchemeNone
	}
	if s.Blocks == 0 {
		s.Blocks = s.SizeBytes / fakeBlockSize
	}
	key := s.Ref().Key()
	if _, exists := f.tables[key]; !exists {
		f.order = append(f.order, key)
	}
	t := &fakeTable{
		snapshot:  s,
		baseBytes: int64(math.Round(float64(s.SizeBytes) * s.Compression.Info().RatioAvg)),
	}
	if len(s.Partitions) > 0 {
		t.partitions = make(map[string]models.Scheme, len(s.Partitions))
		for _, p := range s.Partitions {
			t.partitions[strings.ToUpper(p)] = s.Compression
		}
	}
	f.tables[key] = t
	f.activity[key] = models.ActivityStats{
		Inserts:      s.Inserts,
		Updates:      s.Updates,
		Deletes:      s.Deletes,
		ReadCount:    s.ReadCount,
		WriteCount:   s.WriteCount,
		LastAnalyzed: s.LastAnalyzed,
	}
	return f
}

// SetRatio fixes the ratio a scheme achieves on a table. Unset pairs use
// the scheme's catalogue average.
func (f *Fake) SetRatio(ref models.TableRef, scheme models.Scheme, ratio float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ratios[cacheKey(ref, scheme)] = ratio
}

// FailOn makes every statement containing substr fail with err
func (f *Fake) FailOn(substr string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn[substr] = err
}

// SlowOn delays every statement containing substr by d, or until the
// context ends
func (f *Fake) SlowOn(substr string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slowOn[substr] = d
}

// ClearFailures removes every FailOn and FailCall rule
func (f *Fake) ClearFailures() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = make(map[string]error)
	f.failCall = make(map[string]error)
}

// FailCall makes the named read method fail with err
func (f *Fake) FailCall(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failCall[method] = err
}

func (f *Fake) SetPingError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pingErr = err
}

// Calls returns how many times a method was invoked
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Applied returns every statement that reached Apply, in order
func (f *Fake) Applied() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.applied...)
}

// Table returns the current state of a table
func (f *Fake) Table(ref models.TableRef) (models.TableSnapshot, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tables[ref.Key()]
	if !ok {
		return models.TableSnapshot{}, false
	}
	return copySnapshot(t.snapshot), true
}

func (f *Fake) enter(method string) error {
	f.calls[method]++
	return f.failCall[method]
}

func (f *Fake) ListTables(ctx context.Context, filter TableFilter) ([]models.TableSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListTables"); err != nil {
		return nil, classifyRead("listTables", "", err)
	}

	schemas := make(map[string]bool, len(filter.Schemas))
	for _, s := range filter.Schemas {
		schemas[strings.ToUpper(s)] = true
	}

	now := f.Now()
	out := make([]models.TableSnapshot, 0, len(f.order))
	for _, key := range f.order {
		t := f.tables[key]
		if len(schemas) > 0 && !schemas[strings.ToUpper(t.snapshot.Schema)] {
			continue
		}
		if t.snapshot.SizeBytes < filter.MinSizeBytes {
			continue
		}
		s := copySnapshot(t.snapshot)
		// Catalogue listings do not carry activity counters
		s.Inserts, s.Updates, s.Deletes, s.ReadCount, s.WriteCount = 0, 0, 0, 0, 0
		s.CapturedAt = now
		out = append(out, s)
	}
	return out, nil
}

func (f *Fake) DescribeTable(ctx context.Context, ref models.TableRef) (*models.TableSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DescribeTable"); err != nil {
		return nil, classifyRead("describeTable", ref.String(), err)
	}
	t, ok := f.tables[ref.Key()]
	if !ok {
		return nil, apperr.NotFound("describeTable", "table %s not found", ref)
	}
	s := copySnapshot(t.snapshot)
	s.Inserts, s.Updates, s.Deletes, s.ReadCount, s.WriteCount = 0, 0, 0, 0, 0
	s.CapturedAt = f.Now()
	return &s, nil
}

func (f *Fake) GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetActivityStats"); err != nil {
		return nil, classifyRead("getActivityStats", ref.String(), err)
	}
	a := f.activity[ref.Key()]
	return &a, nil
}

func (f *Fake) EstimateCompressionRatio(ctx context.Context, ref models.TableRef, scheme models.Scheme, sampleSize int64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("EstimateCompressionRatio"); err != nil {
		return 0, classifyRead("estimateCompressionRatio", ref.String(), err)
	}
	if _, ok := f.tables[ref.Key()]; !ok {
		return 0, apperr.NotFound("estimateCompressionRatio", "table %s not found", ref)
	}
	return f.ratioLocked(ref, scheme), nil
}

func (f *Fake) ratioLocked(ref models.TableRef, scheme models.Scheme) float64 {
	if r, ok := f.ratios[cacheKey(ref, scheme)]; ok {
		return r
	}
	return scheme.Info().RatioAvg
}

func (f *Fake) Measure(ctx context.Context, ref models.TableRef) (*models.Measurement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Measure"); err != nil {
		return nil, classifyRead("measure", ref.String(), err)
	}
	t, ok := f.tables[ref.Key()]
	if !ok {
		return nil, apperr.NotFound("measure", "table %s not found", ref)
	}
	return &models.Measurement{
		SizeBytes:   t.snapshot.SizeBytes,
		Blocks:      t.snapshot.Blocks,
		Compression: t.snapshot.Compression,
		CapturedAt:  f.Now(),
	}, nil
}

// Apply interprets MOVE and REBUILD statements; anything else succeeds
// without effect.
func (f *Fake) Apply(ctx context.Context, statement string) (ApplyResult, error) {
	if f.Entered != nil {
		select {
		case f.Entered <- statement:
		default:
		}
	}
	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return ApplyResult{}, ctx.Err()
		}
	}
	if d := f.delayFor(statement); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ApplyResult{}, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return ApplyResult{}, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Apply"]++
	f.applied = append(f.applied, statement)

	for substr, err := range f.failOn {
		if strings.Contains(statement, substr) {
			return ApplyResult{}, classifyApply("apply", err)
		}
	}

	if m := moveStatement.FindStringSubmatch(statement); m != nil {
		return f.move(m[1], m[2], m[3], m[4])
	}
	if m := rebuildStatement.FindStringSubmatch(statement); m != nil {
		return f.rebuild(m[1], m[2])
	}
	return ApplyResult{}, nil
}

func (f *Fake) delayFor(statement string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	for substr, d := range f.slowOn {
		if strings.Contains(statement, substr) {
			return d
		}
	}
	return 0
}

func (f *Fake) move(schema, table, partition, clause string) (ApplyResult, error) {
	ref := models.TableRef{Schema: schema, Name: table}
	t, ok := f.tables[ref.Key()]
	if !ok {
		return ApplyResult{}, classifyApply("apply", fmt.Errorf("ORA-00942: table or view does not exist"))
	}
	scheme, ok := schemeForClause(clause)
	if !ok {
		return ApplyResult{}, classifyApply("apply", fmt.Errorf("ORA-00905: missing keyword"))
	}

	if partition == "" {
		for p := range t.partitions {
			t.partitions[p] = scheme
		}
		t.snapshot.SizeBytes = f.compressedSize(ref, t.baseBytes, scheme)
		t.snapshot.Compression = scheme
	} else {
		p := strings.ToUpper(partition)
		if _, ok := t.partitions[p]; !ok {
			return ApplyResult{}, classifyApply("apply", fmt.Errorf("ORA-02149: specified partition does not exist"))
		}
		t.partitions[p] = scheme
		share := t.baseBytes / int64(len(t.partitions))
		var size int64
		uniform := true
		for _, s := range t.partitions {
			size += f.compressedSize(ref, share, s)
			uniform = uniform && s == scheme
		}
		if uniform {
			size = f.compressedSize(ref, t.baseBytes, scheme)
			t.snapshot.Compression = scheme
		}
		t.snapshot.SizeBytes = size
	}
	t.snapshot.Blocks = t.snapshot.SizeBytes / fakeBlockSize
	return ApplyResult{RowsAffected: t.snapshot.RowCount}, nil
}

func (f *Fake) compressedSize(ref models.TableRef, base int64, scheme models.Scheme) int64 {
	ratio := f.ratioLocked(ref, scheme)
	if ratio <= 0 {
		ratio = 1
	}
	return int64(math.Round(float64(base) / ratio))
}

func (f *Fake) rebuild(schema, index string) (ApplyResult, error) {
	for _, key := range f.order {
		t := f.tables[key]
		if !strings.EqualFold(t.snapshot.Schema, schema) {
			continue
		}
		for _, idx := range t.snapshot.Indexes {
			if strings.EqualFold(idx, index) {
				return ApplyResult{}, nil
			}
		}
	}
	return ApplyResult{}, classifyApply("apply", fmt.Errorf("ORA-01418: specified index does not exist"))
}

func (f *Fake) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["Ping"]++
	return f.pingErr
}

func schemeForClause(clause string) (models.Scheme, bool) {
	for _, info := range models.Schemes() {
		if c, err := ddl.CompressClause(info.Scheme); err == nil && c == clause {
			return info.Scheme, true
		}
	}
	return "", false
}

func copySnapshot(s models.TableSnapshot) models.TableSnapshot {
	s.Partitions = append([]string(nil), s.Partitions...)
	s.Indexes = append([]string(nil), s.Indexes...)
	return s
}
