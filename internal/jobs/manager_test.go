package jobs

import (
	"reflect"
	"testing"
)

func TestOrphans(t *testing.T) {
	known := map[string]struct{}{
		"a.bin": {},
		"b.bin": {},
	}
	onDisk := []string{"a.bin", "b.bin", "c.bin", "d.bin"}

	got := Orphans(known, onDisk)
	want := []string{"c.bin", "d.bin"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Orphans = %#v, want %#v", got, want)
	}
}

func TestOrphansEmpty(t *testing.T) {
	if got := Orphans(map[string]struct{}{"a.bin": {}}, []string{"a.bin"}); got != nil {
		t.Fatalf("expected no orphans, got %#v", got)
	}
	if got := Orphans(map[string]struct{}{}, nil); got != nil {
		t.Fatalf("expected no orphans for empty dir, got %#v", got)
	}
}
