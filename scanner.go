package hbase

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/streamingfast/hbase/hrpc"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

const defaultScanBatchSize = 1000

// scannerCloseTimeout bounds the remote handle release when the consumer's
// context is already gone.
const scannerCloseTimeout = 5 * time.Second

// Scanner is a lazy, finite, non-restartable cursor over scan results.
//
// A single producer goroutine owns the remote scanner handle: it opens it,
// issues strictly sequential fetches (prefetching at most one batch ahead,
// bounded by the items channel), and releases the handle exactly once on
// every termination path, whether the scan exhausts, fails, or the consumer
// walks away early.
//
// Usage mirrors the other iterators in this codebase:
//
//	scanner, err := table.Scan(ctx, opts)
//	...
//	defer scanner.Close()
//	for scanner.Next() {
//	    row := scanner.Row()
//	    ...
//	}
//	if err := scanner.Err(); err != nil { ... }
//
// A Scanner is owned by the single caller that created it; Next, Row, Err
// and Close must not be called concurrently.
type Scanner struct {
	table  *Table
	limit  int
	cancel context.CancelFunc

	items chan hrpc.RowResult
	errCh chan error
	done  chan struct{}

	row    *Row
	err    error
	closed bool

	// producer-side counters, safe to read once done is closed
	fetched  int
	returned int
}

func newScanner(ctx context.Context, t *Table, scan hrpc.Scan, limit int) *Scanner {
	ctx, cancel := context.WithCancel(ctx)
	s := &Scanner{
		table:  t,
		limit:  limit,
		cancel: cancel,
		items:  make(chan hrpc.RowResult, scan.Caching),
		errCh:  make(chan error, 1),
		done:   make(chan struct{}),
	}
	go s.run(ctx, scan)
	return s
}

// run is the single owner of the remote scanner handle. The handle is closed
// on this path and nowhere else.
func (s *Scanner) run(ctx context.Context, scan hrpc.Scan) {
	defer close(s.done)

	ctx, span := trace.StartSpan(ctx, "hbase/scan")
	defer span.End()

	client := s.table.conn.client
	id, err := client.ScannerOpenWithScan(ctx, s.table.name, scan)
	if err != nil {
		s.pushError(fmt.Errorf("open scanner on %q: %w", s.table.name, err))
		return
	}
	zlog.Debug("opened scanner", zap.Int64("id", int64(id)), zap.String("table", s.table.name))

	scanErr := s.fetchLoop(ctx, id, int(scan.Caching))

	// Release the remote handle before signaling termination, detached from
	// the consumer's context so an early cancellation cannot leak it.
	closeCtx, cancelClose := context.WithTimeout(context.Background(), scannerCloseTimeout)
	defer cancelClose()
	if err := client.ScannerClose(closeCtx, id); err != nil {
		zlog.Warn("closing remote scanner", zap.Int64("id", int64(id)), zap.Error(err))
	}
	zlog.Debug("closed scanner",
		zap.Int64("id", int64(id)),
		zap.String("table", s.table.name),
		zap.Int("returned", s.returned),
		zap.Int("fetched", s.fetched),
	)

	if scanErr != nil {
		s.pushError(scanErr)
		return
	}
	s.pushFinished()
}

// fetchLoop returns nil on exhaustion or limit cutoff, the fetch error
// otherwise. Fetches are strictly sequential against the one handle.
func (s *Scanner) fetchLoop(ctx context.Context, id hrpc.ScannerID, batchSize int) error {
	client := s.table.conn.client
	for {
		howMany := batchSize
		if s.limit > 0 {
			if remaining := s.limit - s.returned; remaining < howMany {
				howMany = remaining
			}
		}

		results, err := client.ScannerGetList(ctx, id, int32(howMany))
		if err != nil {
			return fmt.Errorf("scanner fetch on %q: %w", s.table.name, err)
		}
		if len(results) == 0 {
			// Remote exhaustion.
			return nil
		}
		s.fetched += len(results)

		for _, result := range results {
			if err := s.pushItem(ctx, result); err != nil {
				return err
			}
			s.returned++
			if s.limit > 0 && s.returned == s.limit {
				// Client-side cutoff: extra rows already fetched are
				// dropped, even mid-batch.
				return nil
			}
		}
	}
}

func (s *Scanner) pushItem(ctx context.Context, result hrpc.RowResult) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case s.items <- result:
		return nil
	}
}

func (s *Scanner) pushFinished() {
	close(s.items)
}

func (s *Scanner) pushError(err error) {
	s.errCh <- err
}

// Next advances the scanner. It returns false when the scan is exhausted,
// failed (see Err) or was closed. Next must never be called again after it
// returned false.
//
// Rows fetched before a failure are all delivered; the error only surfaces
// once the buffer is drained.
func (s *Scanner) Next() bool {
	if s.err != nil || s.closed {
		return false
	}

	select {
	case result, ok := <-s.items:
		return s.consume(result, ok)
	default:
	}

	select {
	case result, ok := <-s.items:
		return s.consume(result, ok)

	case err := <-s.errCh:
		// The producer buffers every row before it pushes the error; any row
		// still in flight wins, the error goes back for a later Next.
		select {
		case result, ok := <-s.items:
			s.errCh <- err
			return s.consume(result, ok)
		default:
		}
		s.err = err
		return false
	}
}

func (s *Scanner) consume(result hrpc.RowResult, ok bool) bool {
	if !ok {
		return false
	}
	row, err := s.makeRow(result)
	if err != nil {
		s.err = err
		s.cancel()
		return false
	}
	s.row = row
	return true
}

// Row returns the row Next advanced to.
func (s *Scanner) Row() *Row {
	return s.row
}

// Err returns the error that terminated the scan, nil on clean exhaustion or
// explicit close.
func (s *Scanner) Err() error {
	return s.err
}

// Close terminates the scan early and blocks until the remote handle has
// been released. Safe to call multiple times and after exhaustion.
func (s *Scanner) Close() {
	s.closed = true
	s.cancel()
	<-s.done
}

func (s *Scanner) makeRow(result hrpc.RowResult) (*Row, error) {
	cells, err := s.table.makeCells(result.Columns)
	if err != nil {
		return nil, err
	}
	row := &Row{Key: result.Row, Cells: cells}

	if result.SortedColumns != nil {
		ordered := make([]ColumnCell, 0, len(result.SortedColumns))
		for _, cv := range result.SortedColumns {
			value, err := s.table.conn.compressor.Decompress(cv.Cell.Value)
			if err != nil {
				return nil, fmt.Errorf("decompressing cell value: %w", err)
			}
			ordered = append(ordered, ColumnCell{
				Column: cv.Column,
				Cell:   Cell{Value: value, Timestamp: cv.Cell.Timestamp},
			})
		}
		// Column ordering is part of the contract regardless of how the
		// remote ordered them.
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Column < ordered[j].Column })
		row.Ordered = ordered
	}
	return row, nil
}
