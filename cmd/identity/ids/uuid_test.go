package ids

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f", want: "b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f", ok: true},
		{in: "b9a1f3a08c1f4a7e9d9e0f2b3c4d5e6f", want: "b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f", ok: true},
		{in: "  b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f ", want: "b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f", ok: true},
		{in: "B9A1F3A0-8C1F-4A7E-9D9E-0F2B3C4D5E6F", want: "b9a1f3a0-8c1f-4a7e-9d9e-0f2b3c4d5e6f", ok: true},
		{in: "", ok: false},
		{in: "not-a-uuid", ok: false},
		{in: "b9a1f3a0-8c1f-4a7e-9d9e", ok: false},
	}

	for _, tc := range cases {
		got, ok := Normalize(tc.in)
		if ok != tc.ok {
			t.Fatalf("Normalize(%q): ok=%v want=%v", tc.in, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("Normalize(%q)=%q want=%q", tc.in, got, tc.want)
		}
	}
}

func TestNewUUID_Canonical(t *testing.T) {
	t.Parallel()

	id := NewUUID()
	if len(id) != 36 || strings.Count(id, "-") != 4 {
		t.Fatalf("NewUUID not canonical: %q", id)
	}
	if !Valid(id) {
		t.Fatalf("NewUUID did not validate: %q", id)
	}
}
