package rpmver

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func strp(s string) *string { return &s }

func TestParse(t *testing.T) {
	tt := []struct {
		in   string
		want Version
	}{
		{
			in:   "a-5.0-1.i386",
			want: Version{Name: strp("a"), Architecture: strp("i386"), Epoch: "0", Version: "5.0", Release: "1"},
		},
		{
			in:   "anaconda-user-help-7.3.2-1.el7.noarch",
			want: Version{Name: strp("anaconda-user-help"), Architecture: strp("noarch"), Epoch: "0", Version: "7.3.2", Release: "1.el7"},
		},
		{
			in:   "1:5.0-1",
			want: Version{Epoch: "1", Version: "5.0", Release: "1"},
		},
		{
			in:   "5.0-1",
			want: Version{Epoch: "0", Version: "5.0", Release: "1"},
		},
	}
	for _, c := range tt {
		got, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.in, err)
		}
		if diff := cmp.Diff(c.want, got); diff != "" {
			t.Errorf("Parse(%q) mismatch (-want +got):\n%s", c.in, diff)
		}
	}
}

func TestParseMissingSeparators(t *testing.T) {
	if _, err := Parse("noseparators"); err == nil {
		t.Fatal("expected error for string with no '-'")
	}
}

func TestString(t *testing.T) {
	v := Version{Name: strp("a"), Architecture: strp("i386"), Epoch: "0", Version: "5.0", Release: "1"}
	if got, want := v.String(), "a-5.0-1.i386"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}

	v.Epoch = "2"
	if got, want := v.String(), "a-2:5.0-1.i386"; got != want {
		t.Errorf("String() with epoch = %q, want %q", got, want)
	}
}

func TestCompareEpoch(t *testing.T) {
	a, err := Parse("anaconda-user-help-19.31.123-1.el7.noarch")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("anaconda-user-help-7.3.2-1.el7.noarch")
	if err != nil {
		t.Fatal(err)
	}
	b.Epoch = "1"

	if c := Compare(&b, &a); c <= 0 {
		t.Errorf("expected epoch 1 version to be newer than epoch 0 version, got Compare=%d", c)
	}
}

func TestRpmvercmp(t *testing.T) {
	// Cases ported from the upstream rpmvercmp.at test-suite.
	tt := []struct {
		a, b string
		want int
	}{
		{"1.0", "1.0", 0},
		{"1.0", "2.0", -1},
		{"2.0", "1.0", 1},
		{"2.0.1", "2.0.1", 0},
		{"2.0", "2.0.1", -1},
		{"2.0.1", "2.0", 1},
		{"2.0.1a", "2.0.1a", 0},
		{"2.0.1a", "2.0.1", 1},
		{"2.0.1", "2.0.1a", -1},
		{"5.5p1", "5.5p1", 0},
		{"5.5p1", "5.5p2", -1},
		{"5.5p2", "5.5p1", 1},
		{"5.5p10", "5.5p10", 0},
		{"5.5p1", "5.5p10", -1},
		{"5.5p10", "5.5p1", 1},
		{"10xyz", "10.1xyz", -1},
		{"10.1xyz", "10xyz", 1},
		{"xyz10", "xyz10", 0},
		{"xyz10", "xyz10.1", -1},
		{"xyz10.1", "xyz10", 1},
		{"xyz.4", "xyz.4", 0},
		{"xyz.4", "8", -1},
		{"8", "xyz.4", 1},
		{"2", "2.0", -1},
		{"2.0", "2", 1},
		{"fc4", "fc.4", 0},
		{"1.0010", "1.9", 1},
		{"1.05", "1.5", 0},
		{"1.0", "1.0.0", -1},
		{"1.0", "1.0.0.0", -1},
		{"~", "0", -1},
		{"0", "~", 1},
		{"1^", "1", 1},
		{"1", "1^", -1},
		{"1^a", "1^", 1},
		{"1^", "1^a", -1},
	}
	for _, c := range tt {
		if got := rpmvercmp(c.a, c.b); sign(got) != sign(c.want) {
			t.Errorf("rpmvercmp(%q, %q) = %d, want sign %d", c.a, c.b, got, c.want)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestSatisfies(t *testing.T) {
	have, _ := Parse("5.0-1")
	want, _ := Parse("4.0-1")
	if !Satisfies(FlagGE, &want, &have) {
		t.Error("expected 5.0-1 >= 4.0-1 to satisfy")
	}
	if Satisfies(FlagLT, &want, &have) {
		t.Error("expected 5.0-1 < 4.0-1 to not satisfy")
	}
	if !Satisfies(FlagAny, nil, &have) {
		t.Error("FlagAny should always satisfy")
	}
}
