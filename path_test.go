package scriptcore

import "testing"

func TestPathNormalizer_BasicCases(t *testing.T) {
	n := NewPathNormalizer()

	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"foo", "foo.js", false},
		{"foo.js", "foo.js", false},
		{"./foo", "foo.js", false},
		{"a/./b", "a/b.js", false},
		{"a/../b", "b.js", false},
		{"a\\b", "a/b.js", false},
		{"  foo  ", "foo.js", false},
		{"/foo", "foo.js", false},
		{"", "", true},
		{".", "", true},
		{"../escape", "", true},
		{"a/../../escape", "", true},
	}

	for _, c := range cases {
		got, err := n.Normalize(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("Normalize(%q) = %q, want error", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Normalize(%q) returned error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPathNormalizer_Idempotent(t *testing.T) {
	n := NewPathNormalizer()

	inputs := []string{"foo", "a/./b", "./nested/mod.js", "a\\b\\c"}
	for _, in := range inputs {
		once, err := n.Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", in, err)
		}
		twice, err := n.Normalize(once)
		if err != nil {
			t.Fatalf("Normalize(Normalize(%q)) failed: %v", in, err)
		}
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}
