// Package memrpc provides an in-memory implementation of the hrpc.Client
// capability set, registered under the `mem://` scheme.
//
// Databases are shared per DSN, so multiple clients dialed with the same DSN
// (a connection pool, typically) observe the same store. It backs the CLI's
// demo mode and the integration tests; it is not meant to hold real data.
package memrpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/streamingfast/hbase/hrpc"
	"go.uber.org/zap"
)

func init() {
	hrpc.Register(&hrpc.Registration{
		Name:        "mem",
		Title:       "In-memory",
		FactoryFunc: NewClient,
	})
}

const defaultMaxVersions = 3

var shared = struct {
	sync.Mutex
	dbs map[string]*database
}{dbs: make(map[string]*database)}

// NewClient builds an unopened client against the shared database named by
// the DSN, e.g. `mem://local/sandbox`.
func NewClient(dsnString string) (hrpc.Client, error) {
	dsn, err := url.Parse(dsnString)
	if err != nil {
		return nil, fmt.Errorf("memrpc new: dsn: %w", err)
	}

	key := dsn.Host + "/" + strings.Trim(dsn.Path, "/")

	shared.Lock()
	db, found := shared.dbs[key]
	if !found {
		db = newDatabase()
		shared.dbs[key] = db
		zlog.Debug("created shared in-memory database", zap.String("key", key))
	}
	shared.Unlock()

	return &Client{dsn: dsnString, db: db, scanners: make(map[hrpc.ScannerID]*scanState)}, nil
}

// Client implements hrpc.Client against a shared in-memory database. Like
// every hrpc.Client it is not safe for concurrent use; the database it
// points to is.
type Client struct {
	dsn string
	db  *database

	open        bool
	scanners    map[hrpc.ScannerID]*scanState
	nextScanner hrpc.ScannerID
}

var _ hrpc.Client = (*Client)(nil)

func (c *Client) String() string {
	return fmt.Sprintf("in-memory client with dsn: %q", c.dsn)
}

func (c *Client) Open(ctx context.Context) error {
	c.open = true
	return nil
}

func (c *Client) Close() error {
	c.open = false
	c.scanners = make(map[hrpc.ScannerID]*scanState)
	return nil
}

func (c *Client) IsOpen() bool {
	return c.open
}

func (c *Client) check(op string) error {
	if !c.open {
		return &hrpc.TransportError{Op: op, Err: errors.New("transport is not open")}
	}
	return nil
}

func (c *Client) GetTableNames(ctx context.Context) ([]string, error) {
	if err := c.check("getTableNames"); err != nil {
		return nil, err
	}
	return c.db.tableNames(), nil
}

func (c *Client) GetColumnDescriptors(ctx context.Context, table string) (map[string]hrpc.ColumnDescriptor, error) {
	if err := c.check("getColumnDescriptors"); err != nil {
		return nil, err
	}
	return c.db.columnDescriptors(table)
}

func (c *Client) GetRowWithColumns(ctx context.Context, table string, row []byte, columns []string) ([]hrpc.RowResult, error) {
	return c.GetRowWithColumnsTs(ctx, table, row, columns, 0)
}

func (c *Client) GetRowWithColumnsTs(ctx context.Context, table string, row []byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	if err := c.check("getRowWithColumns"); err != nil {
		return nil, err
	}
	return c.db.getRows(table, [][]byte{row}, columns, timestamp, false), nil
}

func (c *Client) GetRowsWithColumns(ctx context.Context, table string, rows [][]byte, columns []string) ([]hrpc.RowResult, error) {
	return c.GetRowsWithColumnsTs(ctx, table, rows, columns, 0)
}

func (c *Client) GetRowsWithColumnsTs(ctx context.Context, table string, rows [][]byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	if err := c.check("getRowsWithColumns"); err != nil {
		return nil, err
	}
	return c.db.getRows(table, rows, columns, timestamp, false), nil
}

func (c *Client) GetVer(ctx context.Context, table string, row []byte, column string, numVersions int32) ([]hrpc.TCell, error) {
	return c.GetVerTs(ctx, table, row, column, 0, numVersions)
}

func (c *Client) GetVerTs(ctx context.Context, table string, row []byte, column string, timestamp int64, numVersions int32) ([]hrpc.TCell, error) {
	if err := c.check("getVer"); err != nil {
		return nil, err
	}
	return c.db.getVersions(table, row, column, timestamp, int(numVersions)), nil
}

func (c *Client) MutateRows(ctx context.Context, table string, batches []hrpc.BatchMutation) error {
	return c.MutateRowsTs(ctx, table, batches, 0)
}

func (c *Client) MutateRowsTs(ctx context.Context, table string, batches []hrpc.BatchMutation, timestamp int64) error {
	if err := c.check("mutateRows"); err != nil {
		return err
	}
	c.db.mutateRows(table, batches, timestamp)
	return nil
}

func (c *Client) AtomicIncrement(ctx context.Context, table string, row []byte, column string, amount int64) (int64, error) {
	if err := c.check("atomicIncrement"); err != nil {
		return 0, err
	}
	return c.db.atomicIncrement(table, row, column, amount), nil
}

func (c *Client) ScannerOpenWithScan(ctx context.Context, table string, scan hrpc.Scan) (hrpc.ScannerID, error) {
	if err := c.check("scannerOpenWithScan"); err != nil {
		return 0, err
	}

	keys := c.db.scanKeys(table, scan)
	c.nextScanner++
	id := c.nextScanner
	c.scanners[id] = &scanState{table: table, scan: scan, keys: keys}

	zlog.Debug("opened scanner",
		zap.Int64("id", int64(id)),
		zap.String("table", table),
		zap.Int("matching_rows", len(keys)),
		zap.Bool("reversed", scan.Reversed),
	)
	return id, nil
}

func (c *Client) ScannerGetList(ctx context.Context, id hrpc.ScannerID, nbRows int32) ([]hrpc.RowResult, error) {
	if err := c.check("scannerGetList"); err != nil {
		return nil, err
	}
	state, found := c.scanners[id]
	if !found {
		return nil, fmt.Errorf("unknown scanner id %d", id)
	}

	var out []hrpc.RowResult
	for state.pos < len(state.keys) && len(out) < int(nbRows) {
		key := state.keys[state.pos]
		state.pos++

		results := c.db.getRows(state.table, [][]byte{[]byte(key)}, state.scan.Columns, state.scan.Timestamp, state.scan.SortColumns)
		// Rows deleted since the scanner opened simply vanish.
		out = append(out, results...)
	}
	return out, nil
}

func (c *Client) ScannerClose(ctx context.Context, id hrpc.ScannerID) error {
	if err := c.check("scannerClose"); err != nil {
		return err
	}
	if _, found := c.scanners[id]; !found {
		return fmt.Errorf("unknown scanner id %d", id)
	}
	delete(c.scanners, id)
	zlog.Debug("closed scanner", zap.Int64("id", int64(id)))
	return nil
}

type scanState struct {
	table string
	scan  hrpc.Scan
	keys  []string
	pos   int
}

//
// Shared database
//

type database struct {
	mu     sync.RWMutex
	tables map[string]*table
	lastTS int64
}

type table struct {
	families map[string]hrpc.ColumnDescriptor
	rows     map[string]map[string][]hrpc.TCell // row -> column -> cells newest first
}

func newDatabase() *database {
	return &database{tables: make(map[string]*table)}
}

// nextTimestamp hands out strictly increasing millisecond timestamps so two
// writes in the same millisecond stay distinct versions.
func (db *database) nextTimestamp() int64 {
	now := time.Now().UnixMilli()
	if now <= db.lastTS {
		now = db.lastTS + 1
	}
	db.lastTS = now
	return now
}

func (db *database) tableNames() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	names := make([]string, 0, len(db.tables))
	for name := range db.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (db *database) columnDescriptors(name string) (map[string]hrpc.ColumnDescriptor, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, found := db.tables[name]
	if !found {
		return nil, fmt.Errorf("table %q does not exist", name)
	}

	out := make(map[string]hrpc.ColumnDescriptor, len(tbl.families))
	for family, descriptor := range tbl.families {
		out[family] = descriptor
	}
	return out, nil
}

// ensureTable auto-creates tables and families on first write, there is no
// administration surface to declare them through.
func (db *database) ensureTable(name string) *table {
	tbl, found := db.tables[name]
	if !found {
		tbl = &table{
			families: make(map[string]hrpc.ColumnDescriptor),
			rows:     make(map[string]map[string][]hrpc.TCell),
		}
		db.tables[name] = tbl
	}
	return tbl
}

func family(column string) string {
	if idx := strings.IndexByte(column, ':'); idx >= 0 {
		return column[:idx]
	}
	return column
}

func (t *table) ensureFamily(column string) {
	name := family(column)
	if _, found := t.families[name]; !found {
		t.families[name] = hrpc.ColumnDescriptor{Name: name, MaxVersions: defaultMaxVersions}
	}
}

func (db *database) mutateRows(name string, batches []hrpc.BatchMutation, timestamp int64) {
	db.mu.Lock()
	defer db.mu.Unlock()

	tbl := db.ensureTable(name)
	for _, batch := range batches {
		for _, mutation := range batch.Mutations {
			if mutation.IsDelete {
				tbl.delete(batch.Row, mutation.Column, timestamp)
				continue
			}
			ts := timestamp
			if ts == 0 {
				ts = db.nextTimestamp()
			}
			tbl.put(batch.Row, mutation.Column, mutation.Value, ts)
		}
	}
}

func (t *table) put(row []byte, column string, value []byte, ts int64) {
	t.ensureFamily(column)

	cells, found := t.rows[string(row)]
	if !found {
		cells = make(map[string][]hrpc.TCell)
		t.rows[string(row)] = cells
	}

	versions := cells[column]
	idx := sort.Search(len(versions), func(i int) bool { return versions[i].Timestamp <= ts })
	if idx < len(versions) && versions[idx].Timestamp == ts {
		versions[idx].Value = value
	} else {
		versions = append(versions, hrpc.TCell{})
		copy(versions[idx+1:], versions[idx:])
		versions[idx] = hrpc.TCell{Value: value, Timestamp: ts}
	}

	maxVersions := defaultMaxVersions
	if descriptor, found := t.families[family(column)]; found && descriptor.MaxVersions > 0 {
		maxVersions = int(descriptor.MaxVersions)
	}
	if len(versions) > maxVersions {
		versions = versions[:maxVersions]
	}
	cells[column] = versions
}

// delete removes versions at or below ts (all of them when ts is zero) of
// one column, or of every column of a family when the identifier carries no
// qualifier.
func (t *table) delete(row []byte, column string, ts int64) {
	cells, found := t.rows[string(row)]
	if !found {
		return
	}

	wholeFamily := !strings.Contains(column, ":") || strings.HasSuffix(column, ":")
	target := strings.TrimSuffix(column, ":")

	for name, versions := range cells {
		if wholeFamily {
			if family(name) != target {
				continue
			}
		} else if name != column {
			continue
		}

		if ts == 0 {
			delete(cells, name)
			continue
		}
		kept := versions[:0]
		for _, cell := range versions {
			if cell.Timestamp > ts {
				kept = append(kept, cell)
			}
		}
		if len(kept) == 0 {
			delete(cells, name)
		} else {
			cells[name] = kept
		}
	}

	if len(cells) == 0 {
		delete(t.rows, string(row))
	}
}

// matchColumns reports whether a stored column matches one of the requested
// specs, each either a family (`cf`, `cf:`) or a full column (`cf:col`).
func matchColumns(column string, specs []string) bool {
	if len(specs) == 0 {
		return true
	}
	for _, spec := range specs {
		if strings.Contains(spec, ":") && !strings.HasSuffix(spec, ":") {
			if column == spec {
				return true
			}
			continue
		}
		if family(column) == strings.TrimSuffix(spec, ":") {
			return true
		}
	}
	return false
}

// visible returns the latest cell of a column under the exclusive max
// timestamp, or false when every version is filtered out.
func visible(versions []hrpc.TCell, maxTimestamp int64) (hrpc.TCell, bool) {
	for _, cell := range versions {
		if maxTimestamp == 0 || cell.Timestamp < maxTimestamp {
			return cell, true
		}
	}
	return hrpc.TCell{}, false
}

func (db *database) getRows(name string, rows [][]byte, columns []string, maxTimestamp int64, sortColumns bool) []hrpc.RowResult {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, found := db.tables[name]
	if !found {
		return nil
	}

	var out []hrpc.RowResult
	for _, row := range rows {
		cells, found := tbl.rows[string(row)]
		if !found {
			continue
		}

		result := hrpc.RowResult{Row: row, Columns: make(map[string]hrpc.TCell)}
		for column, versions := range cells {
			if !matchColumns(column, columns) {
				continue
			}
			cell, ok := visible(versions, maxTimestamp)
			if !ok {
				continue
			}
			result.Columns[column] = cell
		}
		if len(result.Columns) == 0 {
			continue
		}

		if sortColumns {
			ordered := make([]hrpc.ColumnValue, 0, len(result.Columns))
			for column, cell := range result.Columns {
				ordered = append(ordered, hrpc.ColumnValue{Column: column, Cell: cell})
			}
			sort.Slice(ordered, func(i, j int) bool { return ordered[i].Column < ordered[j].Column })
			result.SortedColumns = ordered
		}
		out = append(out, result)
	}
	return out
}

func (db *database) getVersions(name string, row []byte, column string, maxTimestamp int64, numVersions int) []hrpc.TCell {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, found := db.tables[name]
	if !found {
		return nil
	}
	cells, found := tbl.rows[string(row)]
	if !found {
		return nil
	}

	var out []hrpc.TCell
	for _, cell := range cells[column] {
		if maxTimestamp != 0 && cell.Timestamp >= maxTimestamp {
			continue
		}
		out = append(out, cell)
		if len(out) == numVersions {
			break
		}
	}
	return out
}

func (db *database) atomicIncrement(name string, row []byte, column string, amount int64) int64 {
	db.mu.Lock()
	defer db.mu.Unlock()

	tbl := db.ensureTable(name)

	var current int64
	if cells, found := tbl.rows[string(row)]; found {
		if versions := cells[column]; len(versions) > 0 && len(versions[0].Value) == 8 {
			current = int64(binary.BigEndian.Uint64(versions[0].Value))
		}
	}
	current += amount

	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, uint64(current))
	tbl.put(row, column, value, db.nextTimestamp())
	return current
}

// scanKeys snapshots the row keys a scan matches, in scan order. Start is
// inclusive and stop exclusive; reversed scans walk downwards with the same
// convention.
func (db *database) scanKeys(name string, scan hrpc.Scan) []string {
	db.mu.RLock()
	defer db.mu.RUnlock()

	tbl, found := db.tables[name]
	if !found {
		return nil
	}

	start, stop := string(scan.StartRow), string(scan.StopRow)

	var keys []string
	for key := range tbl.rows {
		if scan.Reversed {
			if start != "" && key > start {
				continue
			}
			if stop != "" && key <= stop {
				continue
			}
		} else {
			if key < start {
				continue
			}
			if stop != "" && key >= stop {
				continue
			}
		}
		keys = append(keys, key)
	}

	sort.Strings(keys)
	if scan.Reversed {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}
	return keys
}
