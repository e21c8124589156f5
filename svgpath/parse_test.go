package svgpath

import (
	"errors"
	"math"
	"testing"
)

func TestParsePath(t *testing.T) {
	for _, test := range []struct {
		d        string
		expected string
	}{
		{"M10,10 L20,20", "M10.000,10.000 L20.000,20.000"},
		{"m10 10 l10 10 h5 v-5 z", "M10.000,10.000 L20.000,20.000 L25.000,20.000 L25.000,15.000 Z"},
		// implicit lineto after moveto
		{"M0 0 10 0 10 10", "M0.000,0.000 L10.000,0.000 L10.000,10.000"},
		// compact numbers
		{"M.5.5L-1-1", "M0.500,0.500 L-1.000,-1.000"},
		{"M0 0 Q10 10 20 0 T40 0", "M0.000,0.000 Q10.000,10.000,20.000,0.000 Q30.000,-10.000,40.000,0.000"},
		{"M0 0 C0 10 10 10 10 0 S20 -10 20 0", "M0.000,0.000 C0.000,10.000,10.000,10.000,10.000,0.000 C10.000,-10.000,20.000,-10.000,20.000,0.000"},
	} {
		path, err := ParsePath(test.d)
		if err != nil {
			t.Fatalf("%s: %s", test.d, err)
		}
		if got := path.ToSVGPath(); got != test.expected {
			t.Errorf("%s: expected %s, got %s", test.d, test.expected, got)
		}
	}
}

func TestParseArc(t *testing.T) {
	// half circle of radius 50
	path, err := ParsePath("M0 50 A50 50 0 0 1 100 50")
	if err != nil {
		t.Fatal(err)
	}
	b := path.Bounds(Identity)
	if math.Abs(b.MaxX-b.MinX-100) > 0.5 || math.Abs(b.MaxY-b.MinY-50) > 0.5 {
		t.Errorf("unexpected arc bounds %v", b)
	}

	// packed flags
	path, err = ParsePath("M0 50 a50 50 0 0150 0")
	if err != nil {
		t.Fatal(err)
	}
	if len(path) < 2 {
		t.Errorf("expected arc segments, got %s", path)
	}
	if _, err = ParsePath("M0 50 A50 50 0 2 1 100 50"); !errors.Is(err, errParamMismatch) {
		t.Errorf("expected invalid flag error, got %v", err)
	}
}

func TestParseErrors(t *testing.T) {
	for _, d := range []string{"M10 10 X20", "M10", "L10 10 20"} {
		if _, err := ParsePath(d); err == nil {
			t.Errorf("%s: expected error", d)
		}
	}
	path, err := ParsePath("M10 10 L20 20 L30")
	if !errors.Is(err, errParamMismatch) {
		t.Errorf("expected param mismatch, got %v", err)
	}
	// the valid prefix is kept
	if len(path) != 2 {
		t.Errorf("expected 2 operations, got %s", path)
	}
}

func TestParseNumbers(t *testing.T) {
	nums, err := ParseNumbers(" 0,0 100\t50.5 -1e2")
	if err != nil {
		t.Fatal(err)
	}
	expected := []float64{0, 0, 100, 50.5, -100}
	if len(nums) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, nums)
	}
	for i := range nums {
		if nums[i] != expected[i] {
			t.Fatalf("expected %v, got %v", expected, nums)
		}
	}
	if _, err := ParseNumbers("1 2 x"); err == nil {
		t.Fatal("expected error")
	}
}

func TestMatrix(t *testing.T) {
	m := Identity.Translate(10, 20).Rotate(0.3).Scale(2, 3).SkewX(0.1)
	inv := m.Invert()
	p := Point{7, -4}
	q := inv.Transform(m.Transform(p))
	if math.Abs(q.X-p.X) > 1e-9 || math.Abs(q.Y-p.Y) > 1e-9 {
		t.Errorf("expected %v, got %v", p, q)
	}
	if f := Identity.Scale(2, 8).ScaleFactor(); f != 4 {
		t.Errorf("expected scale factor 4, got %f", f)
	}
	if got := Identity.Translate(1, 2).Transform(Point{}); got != (Point{1, 2}) {
		t.Errorf("unexpected translation %v", got)
	}
	if got := Identity.Scale(2, 2).TransformVector(Point{1, 1}); got != (Point{2, 2}) {
		t.Errorf("unexpected vector %v", got)
	}
}
