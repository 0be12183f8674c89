package detector_test

import (
	"testing"

	Ed "github.com/sages-health/episcope/detector"
)

func TestLookup(t *testing.T) {
	t.Run("Returns known detector", func(t *testing.T) {
		known := "ewma"
		got, err := Ed.Lookup(known)
		want := known
		assertError(t, err, nil)
		assertStringContains(t, got.Type(), want)
	})

	t.Run("Returns fresh instances per lookup", func(t *testing.T) {
		first, err := Ed.Lookup("cusum")
		assertError(t, err, nil)
		second, err := Ed.Lookup("cusum")
		assertError(t, err, nil)

		if first == second {
			t.Error("expected distinct detector instances")
		}
	})

	t.Run("Returns error if detector doesn't exist", func(t *testing.T) {
		unknown := "prophet"
		_, err := Ed.Lookup(unknown)
		assertGotError(t, err)
	})
}
