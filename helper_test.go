package formula_test

import (
	"flag"
	"fmt"
	"math"
	"testing"

	"github.com/ezachrisen/formula"
	"github.com/rs/zerolog"
)

var debug = flag.Bool("debug", false, "log compile events")

// testLogger returns a logger that writes to the test log when -debug is set.
func testLogger(t testing.TB) zerolog.Logger {
	if !*debug {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// fixture is the table most tests compile against:
//
//	x = 2, y = 3 (table-owned)
//	s = 'hello'
//	v = [1, 2, 3]
//	pi, epsilon, inf
type fixture struct {
	table *formula.SymbolTable
	v     []float64
	s     *formula.StringVar
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{
		table: formula.NewSymbolTable(),
		v:     []float64{1, 2, 3},
		s:     formula.NewStringVar("hello"),
	}
	for _, err := range []error{
		f.table.CreateVariable("x", 2),
		f.table.CreateVariable("y", 3),
		f.table.AddStringVar("s", f.s, false),
		f.table.AddVector("v", f.v),
		f.table.AddConstants(),
	} {
		if err != nil {
			t.Fatalf("building fixture: %v", err)
		}
	}
	return f
}

// approx compares with a relative tolerance. NaNs compare equal.
func approx(got, want float64) error {
	if math.IsNaN(want) && math.IsNaN(got) {
		return nil
	}
	if got == want {
		return nil
	}
	if math.Abs(got-want) <= 1e-9*math.Max(1, math.Abs(want)) {
		return nil
	}
	return fmt.Errorf("wanted %v, got %v", want, got)
}
