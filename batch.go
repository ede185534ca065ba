package hbase

import (
	"context"
	"fmt"

	"github.com/streamingfast/hbase/hrpc"
	"go.opencensus.io/trace"
	"go.uber.org/zap"
)

type batchOptions struct {
	timestamp   int64
	batchSize   int
	transaction bool
	wal         bool
}

type BatchOption func(*batchOptions)

// BatchTimestamp applies one shared timestamp to every mutation sent by the
// batch.
func BatchTimestamp(ts int64) BatchOption {
	return func(o *batchOptions) {
		o.timestamp = ts
	}
}

// BatchSize makes the batch flush itself whenever the buffered mutation count
// reaches n. Incompatible with Transaction.
func BatchSize(n int) BatchOption {
	return func(o *batchOptions) {
		o.batchSize = n
	}
}

// Transaction makes Table.WithBatch all-or-nothing: when the scoped callback
// returns an error, nothing buffered during the block is sent.
func Transaction() BatchOption {
	return func(o *batchOptions) {
		o.transaction = true
	}
}

// DisableWAL makes mutations skip the remote write-ahead log, trading
// durability for throughput. Per-mutation overrides remain possible through
// WriteToWAL.
func DisableWAL() BatchOption {
	return func(o *batchOptions) {
		o.wal = false
	}
}

type mutateOptions struct {
	wal *bool
}

type MutateOption func(*mutateOptions)

// WriteToWAL overrides the batch-wide write-ahead log setting for a single
// Put or Delete call.
func WriteToWAL(v bool) MutateOption {
	return func(o *mutateOptions) {
		o.wal = &v
	}
}

// Batch buffers row mutations for one table and ships them in a single
// mutate call per flush. Put and Delete never touch the network; only Send
// does (and the one extra round trip a whole-row delete needs to discover
// column families).
//
// A Batch is owned by the single caller that created it.
type Batch struct {
	table *Table

	timestamp   int64
	batchSize   int
	transaction bool
	wal         bool

	families  []string // cached for whole-row deletes
	mutations map[string][]hrpc.Mutation
	count     int
}

func newBatch(t *Table, opts ...BatchOption) (*Batch, error) {
	o := batchOptions{wal: true}
	for _, opt := range opts {
		opt(&o)
	}

	if o.batchSize != 0 {
		if o.transaction {
			return nil, fmt.Errorf("transaction cannot be used when batch size is set: size-triggered flushes and rollback-on-error are incompatible")
		}
		if o.batchSize < 0 {
			return nil, fmt.Errorf("batch size must be greater than zero, got %d", o.batchSize)
		}
	}
	if o.timestamp < 0 {
		return nil, fmt.Errorf("timestamp must not be negative, got %d", o.timestamp)
	}

	b := &Batch{
		table:       t,
		timestamp:   o.timestamp,
		batchSize:   o.batchSize,
		transaction: o.transaction,
		wal:         o.wal,
	}
	b.reset()
	return b, nil
}

func (b *Batch) reset() {
	b.mutations = make(map[string][]hrpc.Mutation)
	b.count = 0
}

// Len returns the number of buffered mutations.
func (b *Batch) Len() int {
	return b.count
}

func (b *Batch) walFor(opts []MutateOption) bool {
	o := mutateOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.wal != nil {
		return *o.wal
	}
	return b.wal
}

// Put buffers one put mutation per column in data. When the batch has a size
// threshold and the buffered count reaches it, the batch flushes itself.
func (b *Batch) Put(ctx context.Context, row []byte, data map[string][]byte, opts ...MutateOption) error {
	wal := b.walFor(opts)

	muts := b.mutations[string(row)]
	for column, value := range data {
		muts = append(muts, hrpc.Mutation{
			Column:     column,
			Value:      b.table.conn.compressor.Compress(value),
			WriteToWAL: wal,
		})
	}
	b.mutations[string(row)] = muts
	b.count += len(data)

	return b.maybeFlush(ctx)
}

// Delete buffers one delete mutation per column. With a nil column list the
// remote protocol cannot express a whole-row delete, so the table's column
// family names are fetched (once per batch, then cached) and all of them are
// deleted.
func (b *Batch) Delete(ctx context.Context, row []byte, columns []string, opts ...MutateOption) error {
	if columns == nil {
		if b.families == nil {
			families, err := b.table.FamilyNames(ctx)
			if err != nil {
				return fmt.Errorf("resolving column families for row delete: %w", err)
			}
			b.families = families
		}
		columns = b.families
	}

	wal := b.walFor(opts)

	muts := b.mutations[string(row)]
	for _, column := range columns {
		muts = append(muts, hrpc.Mutation{
			IsDelete:   true,
			Column:     column,
			WriteToWAL: wal,
		})
	}
	b.mutations[string(row)] = muts
	b.count += len(columns)

	return b.maybeFlush(ctx)
}

func (b *Batch) maybeFlush(ctx context.Context) error {
	if b.batchSize > 0 && b.count >= b.batchSize {
		return b.Send(ctx)
	}
	return nil
}

// Send flushes the buffered mutations in one mutate call, grouped by row,
// then resets the buffer. An empty buffer is a no-op, no RPC happens.
func (b *Batch) Send(ctx context.Context) error {
	if b.count == 0 {
		return nil
	}

	batches := make([]hrpc.BatchMutation, 0, len(b.mutations))
	for row, muts := range b.mutations {
		batches = append(batches, hrpc.BatchMutation{Row: []byte(row), Mutations: muts})
	}

	zlog.Debug("sending batch",
		zap.String("table", b.table.name),
		zap.Int("mutations", b.count),
		zap.Int("rows", len(batches)),
	)

	ctx, span := trace.StartSpan(ctx, "hbase/batch/send")
	defer span.End()

	var err error
	if b.timestamp == 0 {
		err = b.table.conn.client.MutateRows(ctx, b.table.name, batches)
	} else {
		err = b.table.conn.client.MutateRowsTs(ctx, b.table.name, batches, b.timestamp)
	}
	if err != nil {
		return fmt.Errorf("mutate rows on %q: %w", b.table.name, err)
	}

	b.reset()
	return nil
}
