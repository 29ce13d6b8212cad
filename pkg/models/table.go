package models

import (
	"fmt"
	"strings"
	"time"
)

// TableRef identifies a table inside a schema
type TableRef struct {
	Schema string
	Name   string
}

// Key returns the canonical identity used for registry and history lookups
func (r TableRef) Key() string {
	return strings.ToUpper(r.Schema) + "." + strings.ToUpper(r.Name)
}

func (r TableRef) String() string {
	return r.Schema + "." + r.Name
}

// TableSnapshot holds the facts about one table at analysis time.
// A snapshot is never mutated after the metadata provider returns it;
// every analysis pass takes a new one.
type TableSnapshot struct {
	Schema string
	Name   string

	RowCount  int64
	Blocks    int64
	AvgRowLen int64 // bytes
	SizeBytes int64

	// Current compression state
	Compression Scheme

	Partitioned bool
	Partitions  []string
	Indexes     []string

	// Average distinct values per row across columns (0-1). Zero means unknown.
	Cardinality float64

	// Activity over the provider's observation window
	Inserts    int64
	Updates    int64
	Deletes    int64
	ReadCount  int64
	WriteCount int64

	LastAnalyzed time.Time
	CapturedAt   time.Time
}

// Ref returns the table identity of the snapshot
func (s *TableSnapshot) Ref() TableRef {
	return TableRef{Schema: s.Schema, Name: s.Name}
}

// Writes returns the total DML volume, falling back to the individual
// counters when the provider did not fill WriteCount.
func (s *TableSnapshot) Writes() int64 {
	if s.WriteCount > 0 {
		return s.WriteCount
	}
	return s.Inserts + s.Updates + s.Deletes
}

// WithActivity returns a copy of the snapshot carrying the given activity
func (s TableSnapshot) WithActivity(a *ActivityStats) TableSnapshot {
	if a == nil {
		return s
	}
	s.Inserts = a.Inserts
	s.Updates = a.Updates
	s.Deletes = a.Deletes
	s.ReadCount = a.ReadCount
	s.WriteCount = a.WriteCount
	if !a.LastAnalyzed.IsZero() {
		s.LastAnalyzed = a.LastAnalyzed
	}
	return s
}

// Validate reports the first missing or malformed field
func (s *TableSnapshot) Validate() error {
	switch {
	case s.Schema == "":
		return fmt.Errorf("snapshot field %q is required", "schema")
	case s.Name == "":
		return fmt.Errorf("snapshot field %q is required", "name")
	case s.SizeBytes <= 0:
		return fmt.Errorf("snapshot field %q must be positive", "sizeBytes")
	case s.RowCount < 0:
		return fmt.Errorf("snapshot field %q must not be negative", "rowCount")
	case s.AvgRowLen < 0:
		return fmt.Errorf("snapshot field %q must not be negative", "avgRowLen")
	case s.ReadCount < 0 || s.WriteCount < 0 || s.Inserts < 0 || s.Updates < 0 || s.Deletes < 0:
		return fmt.Errorf("snapshot field %q must not be negative", "activity")
	}
	if _, err := ParseScheme(string(s.Compression)); err != nil && s.Compression != "" {
		return fmt.Errorf("snapshot field %q: %w", "compression", err)
	}
	return nil
}

// ActivityStats represents DML and read counters for a table
type ActivityStats struct {
	Inserts      int64
	Updates      int64
	Deletes      int64
	ReadCount    int64
	WriteCount   int64
	LastAnalyzed time.Time
}

// Measurement is a point-in-time physical reading of a table
type Measurement struct {
	SizeBytes   int64
	Blocks      int64
	Compression Scheme
	CapturedAt  time.Time
}
