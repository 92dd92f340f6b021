package main

import (
	"strings"
	"testing"
	"time"
)

func testSession(pool *SongPool) *Session {
	return &Session{
		id:     "123456",
		pool:   pool,
		buzzer: newBuzzer(time.Minute, nil),
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		round    int
		join     string
		want     error
	}{
		{name: "first player", join: "Alice"},
		{name: "second player", existing: []string{"Alice"}, join: "Bob"},
		{name: "empty name", join: "", want: ErrInvalidName},
		{name: "duplicate name", existing: []string{"Alice"}, join: "Alice", want: ErrDuplicateName},
		{name: "after start", round: 1, join: "Late", want: ErrAlreadyStarted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := testSession(newSongPool(nil))
			for _, name := range tc.existing {
				if _, err := s.register(name); err != nil {
					t.Fatalf("register(%q): %v", name, err)
				}
			}
			s.round = tc.round

			player, err := s.register(tc.join)
			if err != tc.want {
				t.Fatalf("register(%q) = %v, want %v", tc.join, err, tc.want)
			}
			if tc.want != nil {
				return
			}

			if player.ID == "" {
				t.Error("registered player has no ID")
			}
			if player.Score != 0 {
				t.Errorf("registered player score = %d, want 0", player.Score)
			}
			if got := s.playerByID(player.ID); got == nil || got.Name != tc.join {
				t.Errorf("playerByID(%q) = %v", player.ID, got)
			}
		})
	}
}

func TestRemovePlayer(t *testing.T) {
	s := testSession(newSongPool(nil))
	alice, _ := s.register("Alice")
	bob, _ := s.register("Bob")

	if !s.removePlayer(alice.ID) {
		t.Fatal("removePlayer(alice) = false")
	}
	if s.removePlayer(alice.ID) {
		t.Error("second removePlayer(alice) = true")
	}
	if len(s.players) != 1 || s.players[0].ID != bob.ID {
		t.Errorf("roster after removal = %v", s.players)
	}
}

func TestComputeLeader(t *testing.T) {
	players := []Player{
		{Name: "a", Score: 5},
		{Name: "b", Score: 9},
		{Name: "c", Score: 9},
		{Name: "d", Score: 3},
	}

	leader := computeLeader(players)
	if leader.Name != "b" || leader.Score != 9 {
		t.Errorf("computeLeader = %+v, want first player with score 9", leader)
	}
}

func TestComputeLeaderEmpty(t *testing.T) {
	leader := computeLeader(nil)
	if leader != nobodyLeader {
		t.Errorf("computeLeader(nil) = %+v, want %+v", leader, nobodyLeader)
	}
	if leader.Name != "nobody" || leader.Score != 0 {
		t.Errorf("placeholder leader = %+v", leader)
	}
}

func TestScoreDeltasCommute(t *testing.T) {
	s := testSession(newSongPool(nil))
	alice, _ := s.register("Alice")
	bob, _ := s.register("Bob")

	// +10 then -2 for Alice, -2 then +10 for Bob
	s.playerByID(alice.ID).Score += correctAnswerPoints
	s.playerByID(bob.ID).Score -= wrongAnswerPenalty
	s.playerByID(alice.ID).Score -= wrongAnswerPenalty
	s.playerByID(bob.ID).Score += correctAnswerPoints

	for _, id := range []string{alice.ID, bob.ID} {
		if got := s.playerByID(id).Score; got != 8 {
			t.Errorf("score after +10/-2 = %d, want 8", got)
		}
	}
}

func TestScoreCanGoNegative(t *testing.T) {
	s := testSession(newSongPool(nil))
	alice, _ := s.register("Alice")

	s.playerByID(alice.ID).Score -= wrongAnswerPenalty

	if got := s.playerByID(alice.ID).Score; got != -2 {
		t.Errorf("score = %d, want -2", got)
	}
}

func TestStoreCreateReplacesSession(t *testing.T) {
	st := newStore()

	first := st.create("111111", newSongPool(nil), time.Minute, nil)
	if _, err := first.register("Alice"); err != nil {
		t.Fatal(err)
	}

	second := st.create("222222", newSongPool(nil), time.Minute, nil)
	if second == first {
		t.Fatal("create returned the previous session")
	}
	if len(second.players) != 0 {
		t.Errorf("new session roster = %v, want empty", second.players)
	}

	if _, err := st.get("111111"); err != ErrInvalidSession {
		t.Errorf("get(old id) = %v, want ErrInvalidSession", err)
	}
	if _, err := st.get("222222"); err != nil {
		t.Errorf("get(new id) = %v", err)
	}
}

func TestStoreEnd(t *testing.T) {
	st := newStore()

	if leader := st.end(); leader != nobodyLeader {
		t.Errorf("end with no session = %+v, want %+v", leader, nobodyLeader)
	}

	s := st.create("123456", newSongPool(nil), time.Minute, nil)
	alice, _ := s.register("Alice")
	if _, err := s.register("Bob"); err != nil {
		t.Fatal(err)
	}
	s.playerByID(alice.ID).Score = 12

	leader := st.end()
	if leader.Name != "Alice" || leader.Score != 12 {
		t.Errorf("end = %+v, want Alice with 12", leader)
	}
	if st.active() != nil {
		t.Error("session still active after end")
	}
}

func TestNewSessionID(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := newSessionID()
		if len(id) != 6 {
			t.Fatalf("session ID %q is not 6 characters", id)
		}
		if strings.Trim(id, "0123456789") != "" {
			t.Fatalf("session ID %q is not numeric", id)
		}
	}
}
