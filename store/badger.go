package store

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Er "github.com/sages-health/episcope/report"
	Et "github.com/sages-health/episcope/types"
)

// PointStore persists accumulated report points in BadgerDB. Writes
// are buffered and flushed in batches; keys sort chronologically so
// range reads walk the data in series order.
type PointStore struct {
	MU        sync.Mutex
	DB        *badger.DB
	BatchSize int
	Buffer    []*Et.AccumPoint
}

func NewPointStore(path string, batchSize int) (*PointStore, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("PointStore failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("PointStore opened",
		slog.String("path", path),
		slog.Int("batchSize", batchSize))

	return &PointStore{
		DB:        db,
		BatchSize: batchSize,
		Buffer:    make([]*Et.AccumPoint, 0, batchSize),
	}, nil
}

// WritePoint queues one accumulated point,
// when batchsize is reached, it calls flushLocked()
// which hands the full buffer to WriteBatch()
func (ps *PointStore) WritePoint(point *Et.AccumPoint) error {
	ps.MU.Lock()
	defer ps.MU.Unlock()

	ps.Buffer = append(ps.Buffer, point)
	if len(ps.Buffer) >= ps.BatchSize {
		return ps.flushLocked() // private Flush that does not lock
	}
	return nil
}

// WriteBatch performs the key/value creation to be stored
// and actually calls BadgerDB to write the data
func (ps *PointStore) WriteBatch(points []*Et.AccumPoint) error {
	wb := ps.DB.NewWriteBatch()
	defer wb.Cancel()

	for _, p := range points {
		k := PointKey(p)
		v := PointEncode(p)
		if err := wb.Set(k, v); err != nil {
			slog.Error("PointStore failed to set key in batch",
				slog.Any("error", err),
				slog.Time("pointDate", p.Date))
			return fmt.Errorf("write batch error: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		slog.Error("PointStore failed to flush batch", slog.Any("error", err))
		return fmt.Errorf("batch flush error: %w", err)
	}

	return nil
}

// Flush is the public method that blocks,
// it sends data to WriteBatch and then clears the buffer
func (ps *PointStore) Flush() error {
	ps.MU.Lock()
	defer ps.MU.Unlock()

	if len(ps.Buffer) == 0 {
		return nil
	}

	err := ps.WriteBatch(ps.Buffer) // Delegate to WriteBatch
	ps.Buffer = ps.Buffer[:0]       // Clear but keep capacity
	return err
}

// flushLocked mimics Flush without locking, called by WritePoint
func (ps *PointStore) flushLocked() error {
	err := ps.WriteBatch(ps.Buffer) // Delegate to WriteBatch
	ps.Buffer = ps.Buffer[:0]       // Clear but keep capacity
	return err
}

// Close returns a Flush error but still attempts to close
func (ps *PointStore) Close() error {
	slog.Info("PointStore closing, flushing buffer",
		slog.Int("bufferSize", len(ps.Buffer)))
	flushErr := ps.Flush()
	closeErr := ps.DB.Close()

	if flushErr != nil {
		slog.Error("PointStore failed to flush on close", slog.Any("error", flushErr))
		return fmt.Errorf("flush failed, close may have failed: %v", flushErr)
	}

	if closeErr != nil {
		slog.Error("PointStore failed to close database", slog.Any("error", closeErr))
		return fmt.Errorf("close failed: %v", closeErr)
	}

	slog.Info("PointStore closed successfully")
	return nil
}

func (ps *PointStore) Type() string { return "BadgerDB" }

// PointKey builds the storage key from the point's date.
// Using positive BigEndian integer to convert the timestamp
// so keys can be sorted chronologically by BadgerDB.
func PointKey(point *Et.AccumPoint) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key[0:8], uint64(point.Date.UnixNano()))
	return key
}

// PointEncode serializes the accumulated point for data storage
func PointEncode(p *Et.AccumPoint) []byte {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	enc.Encode(p)
	return buf.Bytes()
}

// PointDecode deserializes the accumulated point data
func PointDecode(data []byte) (*Et.AccumPoint, error) {
	var p Et.AccumPoint
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	err := dec.Decode(&p)
	return &p, err
}

// QueryRange retrieves points within a time range, inclusive on
// both ends so period boundaries always belong to their period.
func (ps *PointStore) QueryRange(start, end time.Time) ([]*Et.AccumPoint, error) {
	var points []*Et.AccumPoint

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := ps.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()

			// item.Value() callback
			// BadgerDB passes bytes to the anon func
			err := item.Value(func(val []byte) error {
				point, err := PointDecode(val)
				if err != nil {
					slog.Error("PointStore failed to decode point", slog.Any("error", err))
					return fmt.Errorf("point decode error: %w", err)
				}

				if !point.Date.Before(start) && !point.Date.After(end) {
					points = append(points, point)
				}

				return nil
			})
			if err != nil {
				slog.Error("PointStore callback failure", slog.Any("error", err))
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})

	slog.Info("PointStore QueryRange successful", slog.Int("count", len(points)))

	return points, err
}

// Query implements the report series source. The range boundaries
// travel as millisecond-epoch strings on the grouping dimension's
// _start/_end filters, matching the drill-through URL format.
func (ps *PointStore) Query(req *Er.QueryRequest) ([]*Et.AccumPoint, time.Time, time.Time, error) {
	start, err := filterDate(req.Filters, req.DimensionID+"_start")
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	end, err := filterDate(req.Filters, req.DimensionID+"_end")
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}

	points, err := ps.QueryRange(start, end)
	if err != nil {
		return nil, time.Time{}, time.Time{}, err
	}
	return points, start, end, nil
}

func filterDate(filters map[string][]string, key string) (time.Time, error) {
	vals, ok := filters[key]
	if !ok || len(vals) == 0 {
		return time.Time{}, fmt.Errorf("missing date filter %q", key)
	}
	ms, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("date filter %q is not epoch millis: %w", key, err)
	}
	return time.UnixMilli(ms), nil
}
