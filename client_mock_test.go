package hbase

import (
	"context"
	"sync"

	"github.com/streamingfast/hbase/hrpc"
)

// fakeClient is a scripted hrpc.Client recording every call, used to pin
// down the exact RPC traffic the pool, batch and scanner generate.
type fakeClient struct {
	mu sync.Mutex

	open    bool
	openErr error

	// when set, every data call fails with this error
	callErr error
	// when > 0, the nth data call (1-based) fails with callErr, others pass
	failCallNumber int
	callCount      int

	calls []string

	families map[string]hrpc.ColumnDescriptor

	mutateBatches    [][]hrpc.BatchMutation
	mutateTimestamps []int64

	scanRows      []hrpc.RowResult
	scanPos       int
	fetchSizes    []int32
	scannerOpens  int
	scannerCloses int
	lastScan      hrpc.Scan
}

var _ hrpc.Client = (*fakeClient)(nil)

func (c *fakeClient) record(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, op)
	c.callCount++
	if c.callErr != nil {
		if c.failCallNumber == 0 || c.failCallNumber == c.callCount {
			return c.callErr
		}
	}
	return nil
}

func (c *fakeClient) Open(ctx context.Context) error {
	if c.openErr != nil {
		return c.openErr
	}
	c.mu.Lock()
	c.open = true
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) Close() error {
	c.mu.Lock()
	c.open = false
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

func (c *fakeClient) GetTableNames(ctx context.Context) ([]string, error) {
	if err := c.record("getTableNames"); err != nil {
		return nil, err
	}
	return []string{"widgets"}, nil
}

func (c *fakeClient) GetColumnDescriptors(ctx context.Context, table string) (map[string]hrpc.ColumnDescriptor, error) {
	if err := c.record("getColumnDescriptors"); err != nil {
		return nil, err
	}
	return c.families, nil
}

func (c *fakeClient) GetRowWithColumns(ctx context.Context, table string, row []byte, columns []string) ([]hrpc.RowResult, error) {
	if err := c.record("getRowWithColumns"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetRowWithColumnsTs(ctx context.Context, table string, row []byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	if err := c.record("getRowWithColumnsTs"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetRowsWithColumns(ctx context.Context, table string, rows [][]byte, columns []string) ([]hrpc.RowResult, error) {
	if err := c.record("getRowsWithColumns"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetRowsWithColumnsTs(ctx context.Context, table string, rows [][]byte, columns []string, timestamp int64) ([]hrpc.RowResult, error) {
	if err := c.record("getRowsWithColumnsTs"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetVer(ctx context.Context, table string, row []byte, column string, numVersions int32) ([]hrpc.TCell, error) {
	if err := c.record("getVer"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) GetVerTs(ctx context.Context, table string, row []byte, column string, timestamp int64, numVersions int32) ([]hrpc.TCell, error) {
	if err := c.record("getVerTs"); err != nil {
		return nil, err
	}
	return nil, nil
}

func (c *fakeClient) MutateRows(ctx context.Context, table string, batches []hrpc.BatchMutation) error {
	if err := c.record("mutateRows"); err != nil {
		return err
	}
	c.mu.Lock()
	c.mutateBatches = append(c.mutateBatches, batches)
	c.mutateTimestamps = append(c.mutateTimestamps, 0)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) MutateRowsTs(ctx context.Context, table string, batches []hrpc.BatchMutation, timestamp int64) error {
	if err := c.record("mutateRowsTs"); err != nil {
		return err
	}
	c.mu.Lock()
	c.mutateBatches = append(c.mutateBatches, batches)
	c.mutateTimestamps = append(c.mutateTimestamps, timestamp)
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) AtomicIncrement(ctx context.Context, table string, row []byte, column string, amount int64) (int64, error) {
	if err := c.record("atomicIncrement"); err != nil {
		return 0, err
	}
	return amount, nil
}

func (c *fakeClient) ScannerOpenWithScan(ctx context.Context, table string, scan hrpc.Scan) (hrpc.ScannerID, error) {
	if err := c.record("scannerOpenWithScan"); err != nil {
		return 0, err
	}
	c.mu.Lock()
	c.scannerOpens++
	c.lastScan = scan
	c.scanPos = 0
	c.mu.Unlock()
	return 1, nil
}

func (c *fakeClient) ScannerGetList(ctx context.Context, id hrpc.ScannerID, nbRows int32) ([]hrpc.RowResult, error) {
	if err := c.record("scannerGetList"); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.fetchSizes = append(c.fetchSizes, nbRows)

	remaining := len(c.scanRows) - c.scanPos
	n := int(nbRows)
	if n > remaining {
		n = remaining
	}
	out := c.scanRows[c.scanPos : c.scanPos+n]
	c.scanPos += n
	return out, nil
}

func (c *fakeClient) ScannerClose(ctx context.Context, id hrpc.ScannerID) error {
	if err := c.record("scannerClose"); err != nil {
		return err
	}
	c.mu.Lock()
	c.scannerCloses++
	c.mu.Unlock()
	return nil
}

func (c *fakeClient) callsOf(op string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, call := range c.calls {
		if call == op {
			count++
		}
	}
	return count
}

// newFakeConnection builds a Connection whose client factory hands out the
// given fakes in sequence, one per (re)build.
func newFakeConnection(fakes ...*fakeClient) (*Connection, *int, error) {
	builds := 0
	conn, err := NewConnection("fake://", WithClientFactory(func() (hrpc.Client, error) {
		client := fakes[builds%len(fakes)]
		builds++
		return client, nil
	}))
	return conn, &builds, err
}

func fakeRows(keys ...string) []hrpc.RowResult {
	out := make([]hrpc.RowResult, 0, len(keys))
	for _, key := range keys {
		out = append(out, hrpc.RowResult{
			Row:     []byte(key),
			Columns: map[string]hrpc.TCell{"cf:v": {Value: []byte("value-" + key), Timestamp: 1}},
		})
	}
	return out
}
