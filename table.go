package hbase

import (
	"context"
	"fmt"
	"math"

	"github.com/streamingfast/hbase/hrpc"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Table is a handle on one remote table, bound to the connection that
// created it. Handles are cheap, hold no remote state and can be recreated
// freely.
type Table struct {
	name string
	conn *Connection
}

// Name returns the full table name, including the connection's prefix if any.
func (t *Table) Name() string {
	return t.name
}

type readOptions struct {
	columns   []string
	timestamp int64
	versions  int32
}

type ReadOption func(*readOptions)

// Columns restricts a read to the given columns. Each entry can be a bare
// family (`cf`, `cf:`) or a fully qualified column (`cf:col`).
func Columns(columns ...string) ReadOption {
	return func(o *readOptions) {
		o.columns = columns
	}
}

// MaxTimestamp restricts a read to cell versions older than ts (exclusive).
func MaxTimestamp(ts int64) ReadOption {
	return func(o *readOptions) {
		o.timestamp = ts
	}
}

// Versions caps how many cell versions Cells returns.
func Versions(n int32) ReadOption {
	return func(o *readOptions) {
		o.versions = n
	}
}

// Families retrieves the column families of this table, keyed by family
// name.
func (t *Table) Families(ctx context.Context) (map[string]hrpc.ColumnDescriptor, error) {
	descriptors, err := t.conn.client.GetColumnDescriptors(ctx, t.name)
	if err != nil {
		return nil, fmt.Errorf("get column descriptors for %q: %w", t.name, err)
	}
	return descriptors, nil
}

// FamilyNames retrieves just the column family names of this table.
func (t *Table) FamilyNames(ctx context.Context) ([]string, error) {
	descriptors, err := t.Families(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(descriptors))
	for name := range descriptors {
		names = append(names, name)
	}
	return names, nil
}

// Row retrieves a single row, mapping column identifiers to their latest
// visible cell. A missing row yields an empty map, not an error.
func (t *Table) Row(ctx context.Context, row []byte, opts ...ReadOption) (map[string]Cell, error) {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	var results []hrpc.RowResult
	var err error
	if o.timestamp == 0 {
		results, err = t.conn.client.GetRowWithColumns(ctx, t.name, row, o.columns)
	} else {
		results, err = t.conn.client.GetRowWithColumnsTs(ctx, t.name, row, o.columns, o.timestamp)
	}
	if err != nil {
		return nil, fmt.Errorf("get row %s from %q: %w", hrpc.Key(row), t.name, err)
	}

	if len(results) == 0 {
		return map[string]Cell{}, nil
	}
	return t.makeCells(results[0].Columns)
}

// Rows retrieves multiple rows at once, in the order requested; missing rows
// are absent from the result. Timestamped reads without an explicit column
// list first resolve the table's column families, working around a remote
// protocol limitation where the timestamp is only honored when columns are
// given.
func (t *Table) Rows(ctx context.Context, rows [][]byte, opts ...ReadOption) ([]Row, error) {
	o := readOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	if len(rows) == 0 {
		// Avoid the round trip, the result is empty anyway.
		return nil, nil
	}

	var results []hrpc.RowResult
	var err error
	if o.timestamp == 0 {
		results, err = t.conn.client.GetRowsWithColumns(ctx, t.name, rows, o.columns)
	} else {
		columns := o.columns
		if columns == nil {
			if columns, err = t.FamilyNames(ctx); err != nil {
				return nil, err
			}
		}
		results, err = t.conn.client.GetRowsWithColumnsTs(ctx, t.name, rows, columns, o.timestamp)
	}
	if err != nil {
		return nil, fmt.Errorf("get %d rows from %q: %w", len(rows), t.name, err)
	}

	out := make([]Row, 0, len(results))
	for _, result := range results {
		cells, err := t.makeCells(result.Columns)
		if err != nil {
			return nil, err
		}
		out = append(out, Row{Key: result.Row, Cells: cells})
	}
	return out, nil
}

// Cells retrieves versions of a single cell, newest first.
func (t *Table) Cells(ctx context.Context, row []byte, column string, opts ...ReadOption) ([]Cell, error) {
	o := readOptions{versions: math.MaxInt32}
	for _, opt := range opts {
		opt(&o)
	}
	if o.versions < 1 {
		return nil, fmt.Errorf("versions must be at least 1, got %d", o.versions)
	}

	var cells []hrpc.TCell
	var err error
	if o.timestamp == 0 {
		cells, err = t.conn.client.GetVer(ctx, t.name, row, column, o.versions)
	} else {
		cells, err = t.conn.client.GetVerTs(ctx, t.name, row, column, o.timestamp, o.versions)
	}
	if err != nil {
		return nil, fmt.Errorf("get cell versions of %s:%s from %q: %w", hrpc.Key(row), column, t.name, err)
	}

	out := make([]Cell, 0, len(cells))
	for _, cell := range cells {
		value, err := t.conn.compressor.Decompress(cell.Value)
		if err != nil {
			return nil, fmt.Errorf("decompressing cell value: %w", err)
		}
		out = append(out, Cell{Value: value, Timestamp: cell.Timestamp})
	}
	return out, nil
}

func (t *Table) makeCells(columns map[string]hrpc.TCell) (map[string]Cell, error) {
	out := make(map[string]Cell, len(columns))
	for column, cell := range columns {
		value, err := t.conn.compressor.Decompress(cell.Value)
		if err != nil {
			return nil, fmt.Errorf("decompressing cell value: %w", err)
		}
		out[column] = Cell{Value: value, Timestamp: cell.Timestamp}
	}
	return out, nil
}

//
// Data manipulation
//

// Put stores data in a single row, one shot. For anything more than a couple
// of rows use a Batch.
func (t *Table) Put(ctx context.Context, row []byte, data map[string][]byte, opts ...BatchOption) error {
	return t.WithBatch(ctx, func(ctx context.Context, b *Batch) error {
		return b.Put(ctx, row, data)
	}, opts...)
}

// Delete removes columns of a single row, or the whole row when columns is
// nil.
func (t *Table) Delete(ctx context.Context, row []byte, columns []string, opts ...BatchOption) error {
	return t.WithBatch(ctx, func(ctx context.Context, b *Batch) error {
		return b.Delete(ctx, row, columns)
	}, opts...)
}

// NewBatch creates a mutation batch for this table. Callers owning the flush
// cycle use this directly; prefer WithBatch for scoped use.
func (t *Table) NewBatch(opts ...BatchOption) (*Batch, error) {
	return newBatch(t, opts...)
}

// WithBatch runs fn with a fresh batch and flushes it when fn returns
// without error, so nothing buffered is silently dropped.
//
// When fn returns an error, behavior splits: a transactional batch discards
// everything buffered during the block (all-or-nothing), a plain batch still
// flushes what was buffered before the failure. The asymmetry is the point.
func (t *Table) WithBatch(ctx context.Context, fn func(ctx context.Context, b *Batch) error, opts ...BatchOption) error {
	b, err := t.NewBatch(opts...)
	if err != nil {
		return err
	}

	if err := fn(ctx, b); err != nil {
		if b.transaction {
			return err
		}
		return multierr.Append(err, b.Send(ctx))
	}
	return b.Send(ctx)
}

//
// Atomic counters
//

// CounterGet retrieves the current value of a counter column, initializing
// it to zero when absent.
func (t *Table) CounterGet(ctx context.Context, row []byte, column string) (int64, error) {
	// Incrementing by zero initializes missing counters correctly instead of
	// reading raw bytes.
	return t.CounterInc(ctx, row, column, 0)
}

// CounterSet forces a counter column to a specific value.
func (t *Table) CounterSet(ctx context.Context, row []byte, column string, value int64) error {
	return t.Put(ctx, row, map[string][]byte{column: Int64ToBytes(value)})
}

// CounterInc atomically adds `by` to a counter column and returns the new
// value.
func (t *Table) CounterInc(ctx context.Context, row []byte, column string, by int64) (int64, error) {
	value, err := t.conn.client.AtomicIncrement(ctx, t.name, row, column, by)
	if err != nil {
		return 0, fmt.Errorf("atomic increment of %s:%s on %q: %w", hrpc.Key(row), column, t.name, err)
	}
	return value, nil
}

// CounterDec atomically subtracts `by` from a counter column and returns the
// new value.
func (t *Table) CounterDec(ctx context.Context, row []byte, column string, by int64) (int64, error) {
	return t.CounterInc(ctx, row, column, -by)
}

//
// Scanning
//

// ScanOptions describes a scan to open. The zero value scans the whole table
// with the defaults.
type ScanOptions struct {
	// StartRow is the inclusive first row; nil means the beginning of the
	// table. StopRow is exclusive; nil means the end of the table. For
	// reverse scans StartRow must sort after StopRow.
	StartRow []byte
	StopRow  []byte

	// Prefix restricts the scan to rows whose key starts with it. Mutually
	// exclusive with StartRow/StopRow.
	Prefix []byte

	// Columns restricts which columns are returned, same forms as for reads.
	Columns []string

	// Filter is a server-side filter expression, passed through verbatim.
	Filter string

	// Timestamp, when non-zero, is an exclusive upper bound on cell versions.
	Timestamp int64

	// BatchSize is how many rows each remote fetch asks for, defaulting to
	// 1000. Lower it only for very large rows, every fetch is a round trip.
	BatchSize int

	// ScanBatching, when non-zero, lets the server split rows into partial
	// rows. Advanced use only.
	ScanBatching int

	// Limit caps how many rows the scan yields; 0 means unbounded. The cap
	// is enforced client-side, independent of BatchSize.
	Limit int

	// SortedColumns asks for columns within each row in ascending column
	// order, delivered through Row.Ordered.
	SortedColumns bool

	// Reverse walks the table in descending key order.
	Reverse bool
}

// Scan opens a scanner over the table. Argument errors are reported here,
// before any remote call; the scanner handle itself is opened by the
// iteration goroutine.
func (t *Table) Scan(ctx context.Context, opts ScanOptions) (*Scanner, error) {
	if opts.BatchSize < 0 {
		return nil, fmt.Errorf("batch size must be at least 1, got %d", opts.BatchSize)
	}
	if opts.Limit < 0 {
		return nil, fmt.Errorf("limit must be at least 1, got %d", opts.Limit)
	}
	if opts.ScanBatching < 0 {
		return nil, fmt.Errorf("scan batching must be at least 1, got %d", opts.ScanBatching)
	}

	start, stop := opts.StartRow, opts.StopRow
	if opts.Prefix != nil {
		if start != nil || stop != nil {
			return nil, fmt.Errorf("prefix cannot be combined with explicit start or stop rows")
		}
		if opts.Reverse {
			start = BytesIncrement(opts.Prefix)
			stop = opts.Prefix
		} else {
			start = opts.Prefix
			stop = BytesIncrement(opts.Prefix)
		}
	}

	batchSize := opts.BatchSize
	if batchSize == 0 {
		batchSize = defaultScanBatchSize
	}

	scan := hrpc.Scan{
		StartRow:     start,
		StopRow:      stop,
		Timestamp:    opts.Timestamp,
		Columns:      opts.Columns,
		Caching:      int32(batchSize),
		FilterString: opts.Filter,
		BatchSize:    int32(opts.ScanBatching),
		SortColumns:  opts.SortedColumns,
		Reversed:     opts.Reverse,
	}

	if tracer.Enabled() {
		zlog.Debug("opening scan",
			zap.String("table", t.name),
			zap.Stringer("start", hrpc.Key(start)),
			zap.Stringer("stop", hrpc.Key(stop)),
			zap.Int("batch_size", batchSize),
			zap.Int("limit", opts.Limit),
			zap.Bool("reverse", opts.Reverse),
		)
	}

	return newScanner(ctx, t, scan, opts.Limit), nil
}
