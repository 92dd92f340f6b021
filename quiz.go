// Tunequiz
//
// A host creates a game and shares the ID (or the QR code); players join and
// wait in the lobby. Each round the server picks a song it hasn't played yet
// and streams it to the host's speakers. The first player to buzz in gets
// the exclusive right to answer; a correct title is worth 10 points, a miss
// costs 2. When the song pool runs dry the highest score wins.
//
// Features:
// - Game lifecycle over plain HTTP: /create-game, /join-game, /next-round,
//   /end-round, /end-game
// - Realtime events over a WebSocket at /quiz/ws (join, buzz, answer)
// - One registration path shared by HTTP join and the WebSocket join event
// - Buzz lock with expiry: an unanswered buzz is released after a
//   configurable timeout, or when the holder disconnects
// - Songs drawn uniformly at random, never repeated within a session
// - Sessions auto-ended after a configurable idle timeout
// - In-browser QR button to share the quiz page, backed by go-qrcode

package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "embed"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const (
	correctAnswerPoints = 10
	wrongAnswerPenalty  = 2
)

// Messages coming from clients
type ClientMessage struct {
	Type     string `json:"type"`                // "join", "buzz", "answer"
	PlayerID string `json:"player_id,omitempty"` // join (re-attach after HTTP join)
	Username string `json:"username,omitempty"`  // join
	Text     string `json:"text,omitempty"`      // answer
}

// PlayerScore is one scoreboard row.
type PlayerScore struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// ScoreboardMessage carries the full scoreboard after any score change.
type ScoreboardMessage struct {
	Type   string        `json:"type"` // "score_update"
	Scores []PlayerScore `json:"scores"`
}

// SessionInfoMessage is sent immediately on connect so the client knows
// whether a game is running and what the scores are.
type SessionInfoMessage struct {
	Type    string        `json:"type"`              // "session_info"
	GameID  string        `json:"game_id,omitempty"` // empty if no game is running
	Round   int           `json:"round"`
	Scores  []PlayerScore `json:"scores,omitempty"`
	Buzzed  string        `json:"buzzed,omitempty"` // username holding the buzzer
	Started bool          `json:"started"`
}

// JoinedMessage is sent to a single client after a successful join.
type JoinedMessage struct {
	Type     string `json:"type"` // "joined"
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
	GameID   string `json:"game_id"`
}

// PlayerJoinedMessage announces a new player to everyone.
type PlayerJoinedMessage struct {
	Type     string `json:"type"` // "player_joined"
	Username string `json:"username"`
}

// RoundStartedMessage announces a new round. Seconds is the play window, not
// the length of the song file.
type RoundStartedMessage struct {
	Type    string `json:"type"` // "round_started"
	Round   int    `json:"round"`
	Song    string `json:"song"`    // file name, served under /songs/
	Seconds int    `json:"seconds"` // play window
}

// BuzzerMessage announces buzzer state changes.
type BuzzerMessage struct {
	Type     string `json:"type"` // "buzzer_granted" or "buzzer_expired"
	Username string `json:"username"`
}

// AnswerResultMessage announces the outcome of an answer attempt.
type AnswerResultMessage struct {
	Type     string `json:"type"` // "correct_answer" or "wrong_answer"
	Username string `json:"username"`
	Answer   string `json:"answer,omitempty"` // revealed title on a correct answer
	Message  string `json:"message,omitempty"`
}

// GameEndedMessage announces the final result.
type GameEndedMessage struct {
	Type   string `json:"type"` // "game_ended"
	Winner string `json:"winner"`
	Score  int    `json:"score"`
}

// ErrorMessage is sent only to the offending client.
type ErrorMessage struct {
	Type    string `json:"type"` // "quiz_error"
	Message string `json:"message"`
}

type Client struct {
	conn     *websocket.Conn
	send     chan any
	playerID string
	username string
}

type inboundEvent struct {
	client *Client
	msg    ClientMessage
}

// Hub fans session state changes out to every connected client and feeds
// inbound player actions into the session store.
type Hub struct {
	cfg   *Config
	store *Store

	register chan *Client
	unreg    chan *Client
	inbound  chan inboundEvent

	mu      sync.Mutex
	clients map[*Client]bool
}

func newHub(cfg *Config, store *Store) *Hub {
	return &Hub{
		cfg:      cfg,
		store:    store,
		register: make(chan *Client),
		unreg:    make(chan *Client),
		inbound:  make(chan inboundEvent),
		clients:  make(map[*Client]bool),
	}
}

func (h *Hub) run() {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

			c.send <- h.sessionInfo()

		case c := <-h.unreg:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

			h.handleDisconnect(c)

		case ev := <-h.inbound:
			switch ev.msg.Type {
			case "join":
				h.handleJoin(ev.client, ev.msg)
			case "buzz":
				h.handleBuzz(ev.client)
			case "answer":
				h.handleAnswer(ev.client, ev.msg)
			default:
				// ignore unknown types
			}
		}
	}
}

// broadcast sends msg to every connected client, dropping clients whose send
// buffers are full.
func (h *Hub) broadcast(msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// sendTo delivers msg to a single client.
func (h *Hub) sendTo(c *Client, msg any) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.clients[c] {
		return
	}

	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// closeAll disconnects every client (used on /end-game and by the reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		_ = c.conn.Close()
		delete(h.clients, c)
	}
}

func (h *Hub) sessionInfo() SessionInfoMessage {
	st := h.store
	st.mu.Lock()
	defer st.mu.Unlock()

	info := SessionInfoMessage{Type: "session_info"}

	s := st.current
	if s == nil {
		return info
	}

	info.GameID = s.id
	info.Round = s.round
	info.Started = s.round > 0
	info.Scores = scoreboard(s.players)

	if holder := s.buzzer.Holder(); holder != "" {
		if p := s.playerByID(holder); p != nil {
			info.Buzzed = p.Name
		}
	}

	return info
}

func scoreboard(players []Player) []PlayerScore {
	scores := make([]PlayerScore, 0, len(players))
	for _, p := range players {
		scores = append(scores, PlayerScore{Username: p.Name, Score: p.Score})
	}
	return scores
}

// handleJoin processes websocket "join" messages. A message carrying the
// player_id returned by /join-game re-attaches that player's connection;
// otherwise the player is registered here, through the same path the HTTP
// endpoint uses.
func (h *Hub) handleJoin(c *Client, msg ClientMessage) {
	st := h.store
	st.mu.Lock()

	s := st.current
	if s == nil {
		st.mu.Unlock()
		h.sendTo(c, ErrorMessage{Type: "quiz_error", Message: ErrInvalidSession.Error()})
		return
	}

	if msg.PlayerID != "" {
		if p := s.playerByID(msg.PlayerID); p != nil {
			c.playerID = p.ID
			c.username = p.Name
			gameID := s.id
			st.mu.Unlock()

			h.sendTo(c, JoinedMessage{Type: "joined", PlayerID: c.playerID, Username: c.username, GameID: gameID})
			return
		}
	}

	player, err := s.register(msg.Username)
	if err != nil {
		st.mu.Unlock()
		h.sendTo(c, ErrorMessage{Type: "quiz_error", Message: err.Error()})
		return
	}

	c.playerID = player.ID
	c.username = player.Name
	gameID := s.id
	scores := scoreboard(s.players)
	st.mu.Unlock()

	logf(h.cfg, "GAMES: Player %q joined %s", player.Name, gameID)

	h.sendTo(c, JoinedMessage{Type: "joined", PlayerID: player.ID, Username: player.Name, GameID: gameID})
	h.broadcast(PlayerJoinedMessage{Type: "player_joined", Username: player.Name})
	h.broadcast(ScoreboardMessage{Type: "score_update", Scores: scores})
}

// handleBuzz grants the buzzer to the first connection to ask for it while
// it is idle. Later presses are ignored until it is released.
func (h *Hub) handleBuzz(c *Client) {
	if c.playerID == "" {
		return
	}

	st := h.store
	st.mu.Lock()

	s := st.current
	if s == nil || s.answer == "" {
		st.mu.Unlock()
		return
	}

	granted := s.buzzer.Press(c.playerID)
	if granted {
		s.lastActive = time.Now()
	}
	st.mu.Unlock()

	if !granted {
		return
	}

	logf(h.cfg, "GAMES: %q buzzed in", c.username)
	h.broadcast(BuzzerMessage{Type: "buzzer_granted", Username: c.username})
}

// handleAnswer scores an answer attempt from the buzzer holder. The lock is
// released no matter the outcome.
func (h *Hub) handleAnswer(c *Client, msg ClientMessage) {
	if c.playerID == "" {
		return
	}

	st := h.store
	st.mu.Lock()

	s := st.current
	if s == nil || s.buzzer.Holder() != c.playerID {
		st.mu.Unlock()
		return
	}

	if s.answer == "" {
		s.buzzer.Release(c.playerID)
		st.mu.Unlock()
		return
	}

	p := s.playerByID(c.playerID)
	if p == nil {
		s.buzzer.Release(c.playerID)
		st.mu.Unlock()
		return
	}

	correct := strings.EqualFold(strings.TrimSpace(msg.Text), s.answer)
	answer := s.answer
	if correct {
		p.Score += correctAnswerPoints
	} else {
		p.Score -= wrongAnswerPenalty
	}

	s.buzzer.Release(c.playerID)
	s.lastActive = time.Now()
	scores := scoreboard(s.players)
	username := p.Name
	st.mu.Unlock()

	if correct {
		logf(h.cfg, "GAMES: %q answered %q correctly", username, answer)
		h.broadcast(AnswerResultMessage{
			Type:     "correct_answer",
			Username: username,
			Answer:   answer,
			Message:  username + " got it: " + answer,
		})
	} else {
		logf(h.cfg, "GAMES: %q answered %q incorrectly", username, msg.Text)
		h.broadcast(AnswerResultMessage{
			Type:     "wrong_answer",
			Username: username,
			Message:  username + " guessed wrong.",
		})
	}

	h.broadcast(ScoreboardMessage{Type: "score_update", Scores: scores})
}

// handleDisconnect removes the departing connection's player from the
// roster, releasing the buzzer first if they held it.
func (h *Hub) handleDisconnect(c *Client) {
	if c.playerID == "" {
		return
	}

	st := h.store
	st.mu.Lock()

	s := st.current
	if s == nil {
		st.mu.Unlock()
		return
	}

	s.buzzer.Release(c.playerID)
	removed := s.removePlayer(c.playerID)
	scores := scoreboard(s.players)
	st.mu.Unlock()

	if !removed {
		return
	}

	logf(h.cfg, "GAMES: Player %q left", c.username)
	h.broadcast(ScoreboardMessage{Type: "score_update", Scores: scores})
}

// buzzExpired is wired into each session's buzzer so an unanswered buzz
// frees the lock for everyone else.
func (h *Hub) buzzExpired(holder string) {
	st := h.store
	st.mu.Lock()

	username := ""
	if s := st.current; s != nil {
		if p := s.playerByID(holder); p != nil {
			username = p.Name
		}
	}
	st.mu.Unlock()

	logf(h.cfg, "GAMES: buzz from %q expired unanswered", username)
	h.broadcast(BuzzerMessage{Type: "buzzer_expired", Username: username})
}

// reaperLoop ends the session once it has been idle longer than the
// configured timeout.
func (h *Hub) reaperLoop(idleTimeout time.Duration) {
	ticker := time.NewTicker(idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-idleTimeout)

		st := h.store
		st.mu.Lock()
		idle := st.current != nil && st.current.lastActive.Before(cutoff)
		st.mu.Unlock()

		if !idle {
			continue
		}

		logf(h.cfg, "GAMES: Reaping idle session")
		leader := h.store.end()
		h.broadcast(GameEndedMessage{Type: "game_ended", Winner: leader.Name, Score: leader.Score})
		h.closeAll()
	}
}

// ---- Lifecycle endpoints ----

func createGame(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		names, err := listSongs(cfg.songs)
		if err != nil {
			logf(cfg, "GAMES: Unable to read songs directory %q: %v", cfg.songs, err)
			names = nil
		}

		id := newSessionID()
		hub.store.create(id, newSongPool(names), cfg.buzzTimeout, hub.buzzExpired)

		logf(cfg, "GAMES: Created game %s with %d songs", id, len(names))

		hub.broadcast(ScoreboardMessage{Type: "score_update", Scores: []PlayerScore{}})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		_, _ = w.Write([]byte(id + "\n"))
	}
}

func joinGame(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := r.URL.Query().Get("gameId")
		userName := r.URL.Query().Get("userName")

		st := hub.store
		st.mu.Lock()

		s := st.current
		if s == nil || s.id != gameID {
			st.mu.Unlock()
			http.Error(w, ErrInvalidSession.Error(), http.StatusBadRequest)
			return
		}

		player, err := s.register(userName)
		if err != nil {
			st.mu.Unlock()
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		scores := scoreboard(s.players)
		st.mu.Unlock()

		logf(cfg, "GAMES: Player %q joined %s", player.Name, gameID)

		hub.broadcast(PlayerJoinedMessage{Type: "player_joined", Username: player.Name})
		hub.broadcast(ScoreboardMessage{Type: "score_update", Scores: scores})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		_, _ = w.Write([]byte(player.ID + "\n"))
	}
}

func nextRound(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		st := hub.store
		st.mu.Lock()

		s := st.current
		if s == nil {
			st.mu.Unlock()
			http.Error(w, ErrInvalidSession.Error(), http.StatusBadRequest)
			return
		}

		song, ok := s.pool.Draw()
		if !ok {
			leader := computeLeader(s.players)
			st.mu.Unlock()

			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			securityHeaders(cfg, w)
			_, _ = w.Write([]byte("all rounds played, winner: " + leader.Name + "\n"))
			return
		}

		// Read before mutating anything else: a failed read must leave the
		// session exactly as it was, song included.
		data, err := os.ReadFile(filepath.Join(cfg.songs, song))
		if err != nil {
			s.pool.Return(song)
			st.mu.Unlock()

			logf(cfg, "GAMES: Unable to read song %q: %v", song, err)
			http.Error(w, "unable to read song file", http.StatusInternalServerError)
			return
		}

		s.round++
		s.answer = songTitle(song)
		s.buzzer.Stop()
		s.lastActive = time.Now()
		round := s.round
		st.mu.Unlock()

		logf(cfg, "GAMES: Round %d started with %q", round, song)

		hub.broadcast(RoundStartedMessage{
			Type:    "round_started",
			Round:   round,
			Song:    song,
			Seconds: int(cfg.roundLength.Seconds()),
		})

		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)
		_, _ = w.Write(data)
	}
}

// endRound reveals the current answer and docks every player the
// wrong-answer penalty, for rounds nobody managed to guess.
func endRound(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		st := hub.store
		st.mu.Lock()

		s := st.current
		if s == nil {
			st.mu.Unlock()
			http.Error(w, ErrInvalidSession.Error(), http.StatusBadRequest)
			return
		}

		answer := s.answer
		for i := range s.players {
			s.players[i].Score -= wrongAnswerPenalty
		}
		s.answer = ""
		s.buzzer.Stop()
		s.lastActive = time.Now()
		scores := scoreboard(s.players)
		st.mu.Unlock()

		logf(cfg, "GAMES: Round ended unanswered, revealing %q", answer)

		hub.broadcast(ScoreboardMessage{Type: "score_update", Scores: scores})

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		_, _ = w.Write([]byte(answer + "\n"))
	}
}

func endGame(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		leader := hub.store.end()

		logf(cfg, "GAMES: Game ended, winner %q with %d points", leader.Name, leader.Score)

		hub.broadcast(GameEndedMessage{Type: "game_ended", Winner: leader.Name, Score: leader.Score})
		hub.closeAll()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)
		_, _ = w.Write([]byte("game ended, winner: " + leader.Name + "\n"))
	}
}

// ---- WebSocket plumbing ----

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, hub *Hub) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: upgrade error: %v", err)
			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, 8),
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join", "buzz", "answer":
			h.inbound <- inboundEvent{
				client: c,
				msg:    msg,
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the quiz page using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	// We are at /quiz/qr; strip trailing "/qr" to get the quiz URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// ---- Static file paths ----

//go:embed quiz/index.html
var indexHTML []byte

//go:embed quiz/app.css
var quizCSS []byte

//go:embed quiz/app.js
var quizJS []byte

func getIndexHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(indexHTML)
	}
}

func getCssHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizCSS)
	}
}

func getJsHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write(quizJS)
	}
}

// registerQuizGame sets up the lifecycle endpoints, the browser client, the
// websocket, and the read-only song mount:
//   - /create-game, /join-game, /next-round, /end-round, /end-game
//   - /quiz        → HTML client
//   - /quiz/ws     → WebSocket
//   - /quiz/qr     → PNG QR code for the quiz URL
//   - /songs/*     → static song files
func registerQuizGame(cfg *Config, mux *httprouter.Router) {
	hub := newHub(cfg, newStore())
	go hub.run()

	if cfg.sessionTimeout > 0 {
		go hub.reaperLoop(cfg.sessionTimeout)
	}

	mux.GET(cfg.prefix+"/create-game", createGame(cfg, hub))
	mux.GET(cfg.prefix+"/join-game", joinGame(cfg, hub))
	mux.GET(cfg.prefix+"/next-round", nextRound(cfg, hub))
	mux.POST(cfg.prefix+"/end-round", endRound(cfg, hub))
	mux.GET(cfg.prefix+"/end-game", endGame(cfg, hub))

	// Browser client and shared assets
	mux.GET(cfg.prefix+"/quiz", getIndexHandler(cfg))
	mux.GET(cfg.prefix+"/assets/quiz/app.css", getCssHandler(cfg))
	mux.GET(cfg.prefix+"/assets/quiz/app.js", getJsHandler(cfg))

	mux.GET(cfg.prefix+"/quiz/ws", serveWS(cfg, hub))
	mux.GET(cfg.prefix+"/quiz/qr", qrHandler)

	// Read-only song mount
	mux.ServeFiles(cfg.prefix+"/songs/*filepath", http.Dir(cfg.songs))
}
