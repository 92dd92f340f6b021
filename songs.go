/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"encoding/binary"
	"os"
)

// listSongs returns the file names in the songs directory. The error is
// returned rather than swallowed so callers can tell an unreadable directory
// apart from an empty one; the game treats both as "no rounds to play".
func listSongs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}

	return names, nil
}

// SongPool is the set of songs not yet played this session. One entry is
// drawn, uniformly at random and without replacement, per round.
type SongPool struct {
	remaining []string
}

func newSongPool(names []string) *SongPool {
	remaining := make([]string, len(names))
	copy(remaining, names)
	return &SongPool{remaining: remaining}
}

// Len reports how many rounds are still playable.
func (p *SongPool) Len() int {
	return len(p.remaining)
}

// Draw removes and returns one song chosen uniformly at random. The second
// return is false once the pool is exhausted.
func (p *SongPool) Draw() (string, bool) {
	if len(p.remaining) == 0 {
		return "", false
	}

	i := randIndex(len(p.remaining))
	name := p.remaining[i]

	p.remaining[i] = p.remaining[len(p.remaining)-1]
	p.remaining = p.remaining[:len(p.remaining)-1]

	return name, true
}

// Return puts a drawn song back, for rounds that failed before starting.
func (p *SongPool) Return(name string) {
	p.remaining = append(p.remaining, name)
}

// randIndex picks an unbiased index in [0, n) using crypto/rand.
func randIndex(n int) int {
	if n <= 1 {
		return 0
	}

	max := ^uint64(0) - (^uint64(0) % uint64(n))
	for {
		var buf [8]byte
		if _, err := rand.Read(buf[:]); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		v := binary.BigEndian.Uint64(buf[:])
		if v < max {
			return int(v % uint64(n))
		}
	}
}
