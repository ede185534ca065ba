package hbase

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/streamingfast/hbase/hrpc"
)

// taintingClient decorates an hrpc.Client and raises a taint flag whenever a
// call fails at the transport layer. The pool inspects the flag when a lease
// ends and rebuilds the connection before anyone else can draw it.
//
// Only transport-class errors taint: an application error coming back over a
// healthy transport says nothing about the socket.
//
// It also serializes calls into the wrapped client, which is not safe for
// concurrent use on its own: a scanner's producer goroutine and the caller
// that opened it share the same connection, and two scanners on one
// connection must not interleave calls on the wire.
type taintingClient struct {
	mu      sync.Mutex
	next    hrpc.Client
	tainted int32
}

var _ hrpc.Client = (*taintingClient)(nil)

func newTaintingClient(next hrpc.Client) *taintingClient {
	return &taintingClient{next: next}
}

func (c *taintingClient) Tainted() bool {
	return atomic.LoadInt32(&c.tainted) != 0
}

func (c *taintingClient) observe(err error) {
	if err != nil && hrpc.IsTransport(err) {
		atomic.StoreInt32(&c.tainted, 1)
	}
}

func (c *taintingClient) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.next.Open(ctx)
	c.observe(err)
	return err
}

func (c *taintingClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next.Close()
}

func (c *taintingClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.next.IsOpen()
}

func (c *taintingClient) GetTableNames(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetTableNames(ctx)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetColumnDescriptors(ctx context.Context, table string) (map[string]hrpc.ColumnDescriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetColumnDescriptors(ctx, table)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetRowWithColumns(ctx context.Context, table string, row []byte, columns []string) ([]hrpc.RowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetRowWithColumns(ctx, table, row, columns)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetRowWithColumnsTs(ctx context.Context, table string, row []byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetRowWithColumnsTs(ctx, table, row, columns, timestamp)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetRowsWithColumns(ctx context.Context, table string, rows [][]byte, columns []string) ([]hrpc.RowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetRowsWithColumns(ctx, table, rows, columns)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetRowsWithColumnsTs(ctx context.Context, table string, rows [][]byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetRowsWithColumnsTs(ctx, table, rows, columns, timestamp)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetVer(ctx context.Context, table string, row []byte, column string, numVersions int32) ([]hrpc.TCell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetVer(ctx, table, row, column, numVersions)
	c.observe(err)
	return out, err
}

func (c *taintingClient) GetVerTs(ctx context.Context, table string, row []byte, column string, timestamp int64, numVersions int32) ([]hrpc.TCell, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.GetVerTs(ctx, table, row, column, timestamp, numVersions)
	c.observe(err)
	return out, err
}

func (c *taintingClient) MutateRows(ctx context.Context, table string, batches []hrpc.BatchMutation) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.next.MutateRows(ctx, table, batches)
	c.observe(err)
	return err
}

func (c *taintingClient) MutateRowsTs(ctx context.Context, table string, batches []hrpc.BatchMutation, timestamp int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.next.MutateRowsTs(ctx, table, batches, timestamp)
	c.observe(err)
	return err
}

func (c *taintingClient) AtomicIncrement(ctx context.Context, table string, row []byte, column string, amount int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.AtomicIncrement(ctx, table, row, column, amount)
	c.observe(err)
	return out, err
}

func (c *taintingClient) ScannerOpenWithScan(ctx context.Context, table string, scan hrpc.Scan) (hrpc.ScannerID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.ScannerOpenWithScan(ctx, table, scan)
	c.observe(err)
	return out, err
}

func (c *taintingClient) ScannerGetList(ctx context.Context, id hrpc.ScannerID, nbRows int32) ([]hrpc.RowResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, err := c.next.ScannerGetList(ctx, id, nbRows)
	c.observe(err)
	return out, err
}

func (c *taintingClient) ScannerClose(ctx context.Context, id hrpc.ScannerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.next.ScannerClose(ctx, id)
	c.observe(err)
	return err
}
