package record_test

import (
	"testing"

	"doorsync/internal/record"
)

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    record.Status
		wantErr bool
	}{
		{"entering", record.StatusEntering, false},
		{"exiting", record.StatusExiting, false},
		{"pending", record.StatusPending, false},
		{" Entering ", record.StatusEntering, false},
		{"EXITING", record.StatusExiting, false},
		{"parked", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		got, err := record.ParseStatus(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStatus(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStatus(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewID_Unique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := record.NewID()
		if id == "" {
			t.Fatal("empty id")
		}
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
	}
}
