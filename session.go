package main

import (
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Validation errors surfaced to joining players. Everything else about a
// running game is communicated over the realtime channel.
var (
	ErrInvalidSession = errors.New("no such game")
	ErrInvalidName    = errors.New("a name is required")
	ErrDuplicateName  = errors.New("that name is already taken")
	ErrAlreadyStarted = errors.New("the game has already started")
)

// Player is one contestant in the current session.
type Player struct {
	ID    string
	Name  string
	Score int
}

// Leader is the current front-runner, as reported on game end and when all
// rounds are exhausted.
type Leader struct {
	Name  string
	Score int
}

// nobodyLeader is returned whenever there is no roster to scan: an empty
// session, or /end-game with no session at all.
var nobodyLeader = Leader{Name: "nobody", Score: 0}

// computeLeader scans for the highest score. Ties go to the player who
// joined first.
func computeLeader(players []Player) Leader {
	if len(players) == 0 {
		return nobodyLeader
	}

	best := players[0]
	for _, p := range players[1:] {
		if p.Score > best.Score {
			best = p
		}
	}

	return Leader{Name: best.Name, Score: best.Score}
}

// Session is one game: a round counter, a roster, the song pool still to be
// played, the answer for the round in progress, and the buzzer.
type Session struct {
	id      string
	round   int
	players []Player
	pool    *SongPool
	answer  string
	buzzer  *Buzzer

	createdAt  time.Time
	lastActive time.Time
}

// register appends a new player to the roster. It is the only writer of the
// roster, shared by the HTTP join endpoint and the websocket join event.
// Callers must hold the store lock.
func (s *Session) register(name string) (Player, error) {
	if name == "" {
		return Player{}, ErrInvalidName
	}
	if s.round > 0 {
		return Player{}, ErrAlreadyStarted
	}
	for _, p := range s.players {
		if p.Name == name {
			return Player{}, ErrDuplicateName
		}
	}

	player := Player{
		ID:   uuid.NewString(),
		Name: name,
	}
	s.players = append(s.players, player)
	s.lastActive = time.Now()

	return player, nil
}

// playerByID returns a pointer into the roster, or nil.
func (s *Session) playerByID(id string) *Player {
	for i := range s.players {
		if s.players[i].ID == id {
			return &s.players[i]
		}
	}
	return nil
}

// removePlayer drops a player from the roster. Reports whether anything
// changed.
func (s *Session) removePlayer(id string) bool {
	dst := s.players[:0]
	changed := false

	for _, p := range s.players {
		if p.ID == id {
			changed = true
			continue
		}
		dst = append(dst, p)
	}
	s.players = dst

	if changed {
		s.lastActive = time.Now()
	}

	return changed
}

// Store holds at most one active session. It is passed explicitly to every
// handler so tests can build isolated stores; a keyed registry would slot in
// here if concurrent games are ever wanted.
type Store struct {
	mu      sync.Mutex
	current *Session
}

func newStore() *Store {
	return &Store{}
}

// create replaces any existing session with a fresh one. The pool is seeded
// from the songs directory; a listing failure is the caller's to log, the
// game simply starts with no rounds to play.
func (st *Store) create(id string, pool *SongPool, buzzTimeout time.Duration, onExpire func(holder string)) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current != nil {
		st.current.buzzer.Stop()
	}

	now := time.Now()
	st.current = &Session{
		id:         id,
		pool:       pool,
		buzzer:     newBuzzer(buzzTimeout, onExpire),
		createdAt:  now,
		lastActive: now,
	}

	return st.current
}

// get returns the active session if its id matches, ErrInvalidSession
// otherwise.
func (st *Store) get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil || st.current.id != id {
		return nil, ErrInvalidSession
	}
	return st.current, nil
}

// active returns the current session, or nil.
func (st *Store) active() *Session {
	st.mu.Lock()
	defer st.mu.Unlock()

	return st.current
}

// end discards the current session and returns its final leader. Safe to
// call with no session; the placeholder leader is reported.
func (st *Store) end() Leader {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.current == nil {
		return nobodyLeader
	}

	leader := computeLeader(st.current.players)
	st.current.buzzer.Stop()
	st.current = nil

	return leader
}

// newSessionID generates a short numeric game ID.
func newSessionID() string {
	const digits = "0123456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}
	out := make([]byte, len(buf))
	for i := range out {
		out[i] = digits[int(buf[i])%len(digits)]
	}
	return string(out)
}
