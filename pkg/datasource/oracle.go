package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/opscart/table-compression-advisor/pkg/apperr"
	"github.com/opscart/table-compression-advisor/pkg/logging"
	"github.com/opscart/table-compression-advisor/pkg/models"
	_ "github.com/sijms/go-ora/v2"
)

// DBMS_COMPRESSION comptype constants
var compTypes = map[models.Scheme]int{
	models.SchemeNone:        1,
	models.SchemeOLTP:        2,
	models.SchemeQueryHigh:   4,
	models.SchemeQueryLow:    8,
	models.SchemeArchiveHigh: 16,
	models.SchemeArchiveLow:  32,
	models.SchemeBasic:       4096,
}

// OracleSource reads the data dictionary and applies DDL through a
// database/sql pool. Each call acquires its own connection.
type OracleSource struct {
	db       *sql.DB
	cfg      Config
	activity ActivitySource
	logger   *slog.Logger
	now      func() time.Time
}

// NewOracleSource opens the target database pool
func NewOracleSource(cfg Config, logger *slog.Logger) (*OracleSource, error) {
	if cfg.Driver == "" {
		cfg.Driver = "oracle"
	}
	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 5 * time.Minute
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if cfg.ScratchTablespace == "" {
		cfg.ScratchTablespace = "USERS"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &OracleSource{db: db, cfg: cfg, logger: logging.OrDefault(logger), now: time.Now}, nil
}

// WithActivitySource delegates activity counters to another source
func (o *OracleSource) WithActivitySource(a ActivitySource) *OracleSource {
	o.activity = a
	return o
}

const listTablesQuery = `
	SELECT t.owner, t.table_name, NVL(t.num_rows, 0), NVL(t.blocks, 0), NVL(t.avg_row_len, 0),
		s.bytes, NVL(t.compression, 'DISABLED'), NVL(t.compress_for, 'NONE'),
		t.partitioned, t.last_analyzed
	FROM all_tables t
	JOIN (
		SELECT owner, segment_name, SUM(bytes) AS bytes
		FROM dba_segments
		WHERE segment_type LIKE 'TABLE%'
		GROUP BY owner, segment_name
	) s ON s.owner = t.owner AND s.segment_name = t.table_name
	WHERE t.temporary = 'N' AND t.nested = 'NO' AND s.bytes >= :1`

// ListTables returns one snapshot per table meeting the size threshold.
// Partitions, indexes and column cardinality are fetched with one query
// each for the whole result, never per table.
func (o *OracleSource) ListTables(ctx context.Context, filter TableFilter) ([]models.TableSnapshot, error) {
	query := listTablesQuery
	args := []any{filter.MinSizeBytes}
	ownerClause, ownerArgs := inClause("t.owner", filter.Schemas, len(args)+1)
	if ownerClause != "" {
		query += " AND " + ownerClause
		args = append(args, ownerArgs...)
	}
	query += " ORDER BY s.bytes DESC"

	snapshots, err := o.scanTables(ctx, query, args...)
	if err != nil {
		return nil, classifyRead("listTables", "", err)
	}
	if len(snapshots) == 0 {
		return snapshots, nil
	}
	if err := o.attachDetails(ctx, snapshots, filter.Schemas); err != nil {
		return nil, classifyRead("listTables", "", err)
	}
	return snapshots, nil
}

// DescribeTable returns the snapshot for one table
func (o *OracleSource) DescribeTable(ctx context.Context, ref models.TableRef) (*models.TableSnapshot, error) {
	ref = catalogRef(ref)
	query := listTablesQuery + " AND t.owner = :2 AND t.table_name = :3"
	snapshots, err := o.scanTables(ctx, query, 0, ref.Schema, ref.Name)
	if err != nil {
		return nil, classifyRead("describeTable", ref.String(), err)
	}
	if len(snapshots) == 0 {
		return nil, apperr.NotFound("describeTable", "table %s not found", ref)
	}
	if err := o.attachDetails(ctx, snapshots, []string{ref.Schema}); err != nil {
		return nil, classifyRead("describeTable", ref.String(), err)
	}
	return &snapshots[0], nil
}

func (o *OracleSource) scanTables(ctx context.Context, query string, args ...any) ([]models.TableSnapshot, error) {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	captured := o.now()
	var snapshots []models.TableSnapshot
	for rows.Next() {
		var s models.TableSnapshot
		var compression, compressFor, partitioned string
		var lastAnalyzed sql.NullTime

		if err := rows.Scan(
			&s.Schema, &s.Name, &s.RowCount, &s.Blocks, &s.AvgRowLen,
			&s.SizeBytes, &compression, &compressFor, &partitioned, &lastAnalyzed,
		); err != nil {
			return nil, err
		}

		s.Compression = models.SchemeNone
		if compression == "ENABLED" {
			if scheme, err := models.ParseScheme(compressFor); err == nil {
				s.Compression = scheme
			}
		}
		s.Partitioned = strings.TrimSpace(partitioned) == "YES"
		if lastAnalyzed.Valid {
			s.LastAnalyzed = lastAnalyzed.Time
		}
		s.CapturedAt = captured
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

func (o *OracleSource) attachDetails(ctx context.Context, snapshots []models.TableSnapshot, schemas []string) error {
	index := make(map[string]*models.TableSnapshot, len(snapshots))
	for i := range snapshots {
		index[snapshots[i].Ref().Key()] = &snapshots[i]
	}

	partClause, partArgs := inClause("table_owner", schemas, 1)
	partQuery := "SELECT table_owner, table_name, partition_name FROM all_tab_partitions"
	if partClause != "" {
		partQuery += " WHERE " + partClause
	}
	partQuery += " ORDER BY table_owner, table_name, partition_position"
	if err := o.eachTriple(ctx, partQuery, partArgs, func(owner, table, name string) {
		if s, ok := index[models.TableRef{Schema: owner, Name: table}.Key()]; ok {
			s.Partitions = append(s.Partitions, name)
		}
	}); err != nil {
		return err
	}

	idxClause, idxArgs := inClause("table_owner", schemas, 1)
	idxQuery := "SELECT table_owner, table_name, index_name FROM all_indexes WHERE index_type <> 'LOB'"
	if idxClause != "" {
		idxQuery += " AND " + idxClause
	}
	idxQuery += " ORDER BY table_owner, table_name, index_name"
	if err := o.eachTriple(ctx, idxQuery, idxArgs, func(owner, table, name string) {
		if s, ok := index[models.TableRef{Schema: owner, Name: table}.Key()]; ok {
			s.Indexes = append(s.Indexes, name)
		}
	}); err != nil {
		return err
	}

	colClause, colArgs := inClause("owner", schemas, 1)
	colQuery := "SELECT owner, table_name, AVG(NVL(num_distinct, 0)) FROM all_tab_col_statistics"
	if colClause != "" {
		colQuery += " WHERE " + colClause
	}
	colQuery += " GROUP BY owner, table_name"
	rows, err := o.db.QueryContext(ctx, colQuery, colArgs...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var owner, table string
		var avgDistinct float64
		if err := rows.Scan(&owner, &table, &avgDistinct); err != nil {
			return err
		}
		if s, ok := index[models.TableRef{Schema: owner, Name: table}.Key()]; ok && s.RowCount > 0 {
			c := avgDistinct / float64(s.RowCount)
			if c > 1 {
				c = 1
			}
			s.Cardinality = c
		}
	}
	return rows.Err()
}

func (o *OracleSource) eachTriple(ctx context.Context, query string, args []any, fn func(a, b, c string)) error {
	rows, err := o.db.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var a, b, c string
		if err := rows.Scan(&a, &b, &c); err != nil {
			return err
		}
		fn(a, b, c)
	}
	return rows.Err()
}

// GetActivityStats reads DML counters and logical reads for one table
func (o *OracleSource) GetActivityStats(ctx context.Context, ref models.TableRef) (*models.ActivityStats, error) {
	ref = catalogRef(ref)
	if o.activity != nil {
		return o.activity.GetActivityStats(ctx, ref)
	}

	var stats models.ActivityStats
	err := o.db.QueryRowContext(ctx, `
		SELECT NVL(SUM(inserts), 0), NVL(SUM(updates), 0), NVL(SUM(deletes), 0)
		FROM all_tab_modifications
		WHERE table_owner = :1 AND table_name = :2`,
		ref.Schema, ref.Name,
	).Scan(&stats.Inserts, &stats.Updates, &stats.Deletes)
	if err != nil {
		return nil, classifyRead("getActivityStats", ref.String(), err)
	}

	var lastAnalyzed sql.NullTime
	err = o.db.QueryRowContext(ctx, `
		SELECT
			(SELECT NVL(SUM(value), 0) FROM v$segment_statistics
			 WHERE owner = :1 AND object_name = :2 AND statistic_name = 'logical reads'),
			(SELECT last_analyzed FROM all_tables WHERE owner = :3 AND table_name = :4)
		FROM dual`,
		ref.Schema, ref.Name, ref.Schema, ref.Name,
	).Scan(&stats.ReadCount, &lastAnalyzed)
	if err != nil {
		return nil, classifyRead("getActivityStats", ref.String(), err)
	}

	stats.WriteCount = stats.Inserts + stats.Updates + stats.Deletes
	if lastAnalyzed.Valid {
		stats.LastAnalyzed = lastAnalyzed.Time
	}
	return &stats, nil
}

const compressionRatioBlock = `
DECLARE
	l_blkcnt_cmp    PLS_INTEGER;
	l_blkcnt_uncmp  PLS_INTEGER;
	l_row_cmp       PLS_INTEGER;
	l_row_uncmp     PLS_INTEGER;
	l_cmp_ratio     NUMBER;
	l_comptype_str  VARCHAR2(100);
BEGIN
	DBMS_COMPRESSION.GET_COMPRESSION_RATIO(
		scratchtbsname => :1, ownname => :2, objname => :3, subobjname => NULL,
		comptype => :4, blkcnt_cmp => l_blkcnt_cmp, blkcnt_uncmp => l_blkcnt_uncmp,
		row_cmp => l_row_cmp, row_uncmp => l_row_uncmp, cmp_ratio => l_cmp_ratio,
		comptype_str => l_comptype_str, subset_numrows => :5);
	:6 := l_cmp_ratio;
END;`

// EstimateCompressionRatio asks the database to sample the table under a scheme
func (o *OracleSource) EstimateCompressionRatio(ctx context.Context, ref models.TableRef, scheme models.Scheme, sampleSize int64) (float64, error) {
	compType, ok := compTypes[scheme]
	if !ok {
		return 0, apperr.Validation("estimateCompressionRatio", "unknown compression scheme %q", scheme)
	}
	if scheme == models.SchemeNone {
		return 1, nil
	}
	ref = catalogRef(ref)

	var ratio float64
	_, err := o.db.ExecContext(ctx, compressionRatioBlock,
		o.cfg.ScratchTablespace, ref.Schema, ref.Name, compType, sampleSize,
		sql.Out{Dest: &ratio},
	)
	if err != nil {
		return 0, classifyRead("estimateCompressionRatio", ref.String(), err)
	}
	return ratio, nil
}

// Measure reads the physical size and compression state of a table
func (o *OracleSource) Measure(ctx context.Context, ref models.TableRef) (*models.Measurement, error) {
	ref = catalogRef(ref)
	m := &models.Measurement{CapturedAt: o.now()}
	var compressFor sql.NullString

	err := o.db.QueryRowContext(ctx, `
		SELECT
			(SELECT NVL(SUM(bytes), 0) FROM dba_segments WHERE owner = :1 AND segment_name = :2),
			(SELECT NVL(SUM(blocks), 0) FROM dba_segments WHERE owner = :3 AND segment_name = :4),
			NVL(t.compress_for, (
				SELECT MIN(p.compress_for) FROM all_tab_partitions p
				WHERE p.table_owner = t.owner AND p.table_name = t.table_name))
		FROM all_tables t
		WHERE t.owner = :5 AND t.table_name = :6`,
		ref.Schema, ref.Name, ref.Schema, ref.Name, ref.Schema, ref.Name,
	).Scan(&m.SizeBytes, &m.Blocks, &compressFor)
	if err == sql.ErrNoRows {
		return nil, apperr.NotFound("measure", "table %s not found", ref)
	}
	if err != nil {
		return nil, classifyRead("measure", ref.String(), err)
	}

	m.Compression = models.SchemeNone
	if compressFor.Valid {
		if scheme, err := models.ParseScheme(compressFor.String); err == nil {
			m.Compression = scheme
		}
	}
	return m, nil
}

// Apply executes one DDL statement
func (o *OracleSource) Apply(ctx context.Context, statement string) (ApplyResult, error) {
	res, err := o.db.ExecContext(ctx, statement)
	if err != nil {
		return ApplyResult{}, classifyApply("apply", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		n = 0
	}
	return ApplyResult{RowsAffected: n}, nil
}

// Ping checks database connectivity
func (o *OracleSource) Ping(ctx context.Context) error {
	return o.db.PingContext(ctx)
}

// Close closes the pool
func (o *OracleSource) Close() error {
	return o.db.Close()
}

// catalogRef upper-cases an unquoted reference the way the data
// dictionary stores it, matching the binds built by inClause
func catalogRef(ref models.TableRef) models.TableRef {
	return models.TableRef{Schema: strings.ToUpper(ref.Schema), Name: strings.ToUpper(ref.Name)}
}

// inClause builds "col IN (:n, :n+1, ...)" with upper-cased bind values
func inClause(column string, values []string, start int) (string, []any) {
	if len(values) == 0 {
		return "", nil
	}
	placeholders := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		placeholders[i] = fmt.Sprintf(":%d", start+i)
		args[i] = strings.ToUpper(v)
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ", ")), args
}
