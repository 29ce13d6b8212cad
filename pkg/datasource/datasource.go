package datasource

import (
	"context"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/models"
)

// TableFilter narrows a catalogue listing
type TableFilter struct {
	Schemas      []string // empty means every schema
	MinSizeBytes int64
}

// MetadataProvider supplies table statistics and ratio estimates.
// Every call may take seconds; callers invoke each at most once per
// table per analysis pass.
type MetadataProvider interface {
	ListTables(ctx context.Context, filter TableFilter) ([]models.TableSnapshot, error)
	// DescribeTable returns catalogue facts only; activity counters are
	// zero and come from GetActivityStats
	DescribeTable(ctx context.Context, ref models.TableRef) (*models.TableSnapshot, error)
	GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error)
	EstimateCompressionRatio(ctx context.Context, ref models.TableRef, scheme models.Scheme, sampleSize int64) (float64, error)
	Measure(ctx context.Context, ref models.TableRef) (*models.Measurement, error)
}

// ActivitySource supplies read/write counters for a table
type ActivitySource interface {
	GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error)
}

// ApplyResult is returned by the apply interface
type ApplyResult struct {
	RowsAffected int64
}

// Applier sends one DDL statement to the target database
type Applier interface {
	Apply(ctx context.Context, statement string) (ApplyResult, error)
}

// Database is the full target-database surface used by the advisor
type Database interface {
	MetadataProvider
	Applier
	Ping(ctx context.Context) error
}

type Config struct {
	Driver            string
	DSN               string
	MaxOpenConns      int
	MaxIdleConns      int
	ConnMaxLifetime   time.Duration
	ScratchTablespace string
	ActivityWindow    time.Duration
}
