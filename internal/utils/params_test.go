package utils

import (
	"reflect"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		in   string
		def  int
		want int
	}{
		{"42", 0, 42},
		{" 7 ", 0, 7},
		{"", 10, 10},
		{"x", 5, 5},
		{"-3", 1, -3},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.in, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.in, tc.def, got, tc.want)
		}
	}
}

func TestParseUint(t *testing.T) {
	if id, ok := ParseUint("12"); !ok || id != 12 {
		t.Fatalf("ParseUint(12) = %d, %v", id, ok)
	}
	for _, in := range []string{"", "0", "-1", "abc", "1.5"} {
		if _, ok := ParseUint(in); ok {
			t.Fatalf("ParseUint(%q) should fail", in)
		}
	}
}

func TestParseUintList(t *testing.T) {
	cases := map[string][]uint{
		"":             nil,
		"1,2,3":        {1, 2, 3},
		" 4 , x,4,0,5": {4, 5},
		",,":           {},
	}
	for in, want := range cases {
		got := ParseUintList(in)
		if len(got) == 0 && len(want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("ParseUintList(%q) = %v; want %v", in, got, want)
		}
	}
}

func TestClamp(t *testing.T) {
	if Clamp(0, 1, 10) != 1 || Clamp(11, 1, 10) != 10 || Clamp(5, 1, 10) != 5 {
		t.Fatalf("Clamp bounds not applied")
	}
}
