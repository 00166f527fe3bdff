package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Waypoint", KeyWaypoint, "markdown", Waypoint("markdown")},
		{"Task", KeyTask, "clean", Task("clean")},
		{"Path", KeyPath, "docs/a.md", Path("docs/a.md")},
		{"Kind", KeyKind, "modify", Kind("modify")},
		{"Source", KeySource, "/tmp/src", Source("/tmp/src")},
		{"Dest", KeyDest, "/tmp/out", Dest("/tmp/out")},
		{"Error", KeyError, "boom", Error(errors.New("boom"))},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if got := tc.attr.Value.String(); got != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %v", tc.name, tc.attrVal, got)
		}
	}
}

func TestNilErrorYieldsEmptyValue(t *testing.T) {
	a := Error(nil)
	if a.Value.String() != "" {
		t.Fatalf("expected empty value for nil error, got %q", a.Value.String())
	}
}
