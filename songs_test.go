package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSongs(t *testing.T, names ...string) string {
	t.Helper()

	dir := t.TempDir()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("mp3 bytes"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestListSongs(t *testing.T) {
	dir := writeSongs(t, "one.mp3", "two.mp3", "three.mp3")

	names, err := listSongs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 3 {
		t.Errorf("listSongs returned %d names, want 3", len(names))
	}
}

func TestListSongsSkipsDirectories(t *testing.T) {
	dir := writeSongs(t, "one.mp3")
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := listSongs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 1 || names[0] != "one.mp3" {
		t.Errorf("listSongs = %v, want [one.mp3]", names)
	}
}

func TestListSongsUnreadableDirectory(t *testing.T) {
	// An unreadable directory is a typed failure, distinct from an empty one.
	names, err := listSongs(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("listSongs on a missing directory returned nil error")
	}
	if names != nil {
		t.Errorf("listSongs on a missing directory = %v, want nil", names)
	}

	empty, err := listSongs(t.TempDir())
	if err != nil {
		t.Fatalf("listSongs on an empty directory: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("listSongs on an empty directory = %v", empty)
	}
}

func TestSongPoolDrawsWithoutRepeats(t *testing.T) {
	names := []string{"a.mp3", "b.mp3", "c.mp3", "d.mp3", "e.mp3"}
	pool := newSongPool(names)

	seen := make(map[string]bool)
	for i := range names {
		song, ok := pool.Draw()
		if !ok {
			t.Fatalf("draw %d failed with %d songs seeded", i+1, len(names))
		}
		if seen[song] {
			t.Fatalf("song %q drawn twice", song)
		}
		seen[song] = true
	}

	// Pool-size+1 draws: the final one reports exhaustion.
	if song, ok := pool.Draw(); ok {
		t.Errorf("draw after exhaustion returned %q", song)
	}
	if pool.Len() != 0 {
		t.Errorf("pool.Len() = %d after exhaustion", pool.Len())
	}
}

func TestSongPoolEmpty(t *testing.T) {
	pool := newSongPool(nil)
	if _, ok := pool.Draw(); ok {
		t.Error("draw from an empty pool succeeded")
	}
}

func TestSongPoolCopiesSeed(t *testing.T) {
	names := []string{"a.mp3", "b.mp3"}
	pool := newSongPool(names)
	names[0] = "mutated"

	drawn := make(map[string]bool)
	for {
		song, ok := pool.Draw()
		if !ok {
			break
		}
		drawn[song] = true
	}

	if drawn["mutated"] {
		t.Error("pool shares backing storage with its seed slice")
	}
}

func TestRandIndexBounds(t *testing.T) {
	for n := 1; n <= 10; n++ {
		for j := 0; j < 100; j++ {
			if i := randIndex(n); i < 0 || i >= n {
				t.Fatalf("randIndex(%d) = %d", n, i)
			}
		}
	}
}

func TestSongTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Bohemian Rhapsody.mp3", "Bohemian Rhapsody"},
		{"track.ogg", "track"},
		{"noext", "noext"},
		{"dots.in.name.mp3", "dots.in.name"},
	}

	for _, tc := range tests {
		if got := songTitle(tc.in); got != tc.want {
			t.Errorf("songTitle(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
