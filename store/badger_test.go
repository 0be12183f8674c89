package store_test

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"

	Er "github.com/sages-health/episcope/report"
	Es "github.com/sages-health/episcope/store"
	Et "github.com/sages-health/episcope/types"
)

func TestPointStore_WritePoint(t *testing.T) {
	adapter, closedb := makeTestPointStore(t)
	defer closedb()

	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)

	t.Run("Writes a point without error", func(t *testing.T) {
		err := adapter.WritePoint(&Et.AccumPoint{
			Date:   start,
			Values: map[string]float64{"ili": 7},
		})
		assertError(t, err, nil)
	})

	t.Run("Flushes points for reading once the batch fills", func(t *testing.T) {
		// the test adapter buffer size is 5
		points := make([]*Et.AccumPoint, 5)
		for i := range points {
			points[i] = &Et.AccumPoint{
				Date:   start.AddDate(0, 0, 7*(i+1)),
				Values: map[string]float64{"ili": float64(i)},
			}
		}

		for _, p := range points {
			err := adapter.WritePoint(p)
			assertError(t, err, nil)
		}

		// the first subtest left one point buffered; force the rest out
		err := adapter.Flush()
		assertError(t, err, nil)

		read, err := adapter.QueryRange(start.AddDate(0, 0, 7), start.AddDate(0, 0, 35))
		assertError(t, err, nil)

		if len(read) != len(points) {
			t.Errorf("Expected %d results, got %d", len(points), len(read))
		}
	})
}

func TestPointStore_QueryRange(t *testing.T) {
	adapter, closedb := makeTestPointStore(t)
	defer closedb()

	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	points := []*Et.AccumPoint{
		{Date: start, Values: map[string]float64{"ili": 1}},
		{Date: start.AddDate(0, 0, 7), Values: map[string]float64{"ili": 2}},
		{Date: start.AddDate(0, 0, 14), Values: map[string]float64{"ili": 3}},
	}
	err := adapter.WriteBatch(points)
	assertError(t, err, nil)

	t.Run("Both range boundaries are inclusive", func(t *testing.T) {
		read, err := adapter.QueryRange(start, start.AddDate(0, 0, 14))
		assertError(t, err, nil)
		if len(read) != 3 {
			t.Errorf("Expected 3 results, got %d", len(read))
		}
	})

	t.Run("Points outside the range stay out", func(t *testing.T) {
		read, err := adapter.QueryRange(start.AddDate(0, 0, 1), start.AddDate(0, 0, 13))
		assertError(t, err, nil)
		if len(read) != 1 {
			t.Errorf("Expected 1 result, got %d", len(read))
		}
	})

	t.Run("Values survive the round trip", func(t *testing.T) {
		read, err := adapter.QueryRange(start, start)
		assertError(t, err, nil)
		if len(read) != 1 {
			t.Fatalf("Expected 1 result, got %d", len(read))
		}
		if read[0].Values["ili"] != 1 {
			t.Errorf("got %v, want 1", read[0].Values["ili"])
		}
	})
}

func TestPointStore_Query(t *testing.T) {
	adapter, closedb := makeTestPointStore(t)
	defer closedb()

	start := time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)
	err := adapter.WriteBatch([]*Et.AccumPoint{
		{Date: start, Values: map[string]float64{"ili": 1}},
		{Date: end, Values: map[string]float64{"ili": 2}},
	})
	assertError(t, err, nil)

	t.Run("Parses range filters in epoch millis", func(t *testing.T) {
		points, gotStart, gotEnd, err := adapter.Query(&Er.QueryRequest{
			DimensionID: "visit_date",
			Resolution:  "weekly",
			Filters: map[string][]string{
				"visit_date_start": {strconv.FormatInt(start.UnixMilli(), 10)},
				"visit_date_end":   {strconv.FormatInt(end.UnixMilli(), 10)},
			},
		})
		assertError(t, err, nil)

		if len(points) != 2 {
			t.Errorf("Expected 2 results, got %d", len(points))
		}
		if !gotStart.Equal(start) || !gotEnd.Equal(end) {
			t.Errorf("range echoed wrong: %v .. %v", gotStart, gotEnd)
		}
	})

	t.Run("Missing range filter is an error", func(t *testing.T) {
		_, _, _, err := adapter.Query(&Er.QueryRequest{
			DimensionID: "visit_date",
			Filters:     map[string][]string{},
		})
		assertGotError(t, err)
	})

	t.Run("Non-numeric range filter is an error", func(t *testing.T) {
		_, _, _, err := adapter.Query(&Er.QueryRequest{
			DimensionID: "visit_date",
			Filters: map[string][]string{
				"visit_date_start": {"yesterday"},
				"visit_date_end":   {"today"},
			},
		})
		assertGotError(t, err)
	})
}

func TestPointKey(t *testing.T) {
	early := &Et.AccumPoint{Date: time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC)}
	late := &Et.AccumPoint{Date: time.Date(2021, time.January, 10, 0, 0, 0, 0, time.UTC)}

	a := Es.PointKey(early)
	b := Es.PointKey(late)

	// keys must sort chronologically
	for i := range a {
		if a[i] < b[i] {
			return
		}
		if a[i] > b[i] {
			t.Fatal("earlier point produced a later key")
		}
	}
	t.Fatal("distinct dates produced identical keys")
}

func TestPointEncodeDecode(t *testing.T) {
	in := &Et.AccumPoint{
		Date:   time.Date(2021, time.January, 3, 0, 0, 0, 0, time.UTC),
		Values: map[string]float64{"ili": 7, "total": 100},
	}

	out, err := Es.PointDecode(Es.PointEncode(in))
	assertError(t, err, nil)

	if !out.Date.Equal(in.Date) {
		t.Errorf("got date %v, want %v", out.Date, in.Date)
	}
	if out.Values["total"] != 100 {
		t.Errorf("got %v, want 100", out.Values["total"])
	}
}

// Helpers //

func makeTestPointStore(t *testing.T) (*Es.PointStore, func()) {
	t.Helper()

	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	assertError(t, err, nil)

	adapter := &Es.PointStore{
		DB:        db,
		BatchSize: 5,
		Buffer:    make([]*Et.AccumPoint, 0, 5),
	}

	return adapter, func() {
		if err := db.Close(); err != nil {
			t.Errorf("could not close test database: %v", err)
		}
	}
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}
