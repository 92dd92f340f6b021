// Terminal client for tunequiz. Connects to a running server's websocket,
// joins with a name, and plays from the keyboard: space to buzz, type to
// answer.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gorilla/websocket"
)

// event is the union of all server messages; only the fields for the
// matching type are set.
type event struct {
	Type     string `json:"type"`
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Username string `json:"username,omitempty"`
	Round    int    `json:"round,omitempty"`
	Song     string `json:"song,omitempty"`
	Seconds  int    `json:"seconds,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Message  string `json:"message,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Score    int    `json:"score,omitempty"`
	Scores   []struct {
		Username string `json:"username"`
		Score    int    `json:"score"`
	} `json:"scores,omitempty"`
}

type clientMessage struct {
	Type     string `json:"type"`
	PlayerID string `json:"player_id,omitempty"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
}

// wsConn wraps the websocket connection and feeds decoded server events to
// the bubbletea program.
type wsConn struct {
	conn   *websocket.Conn
	events chan event
}

func dial(serverURL string) (*wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.Dial(serverURL, nil)
	if err != nil {
		return nil, err
	}

	c := &wsConn{
		conn:   conn,
		events: make(chan event, 16),
	}

	go c.readPump()

	return c, nil
}

func (c *wsConn) readPump() {
	defer close(c.events)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var ev event
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		c.events <- ev
	}
}

func (c *wsConn) send(msg clientMessage) {
	_ = c.conn.WriteJSON(msg)
}

type viewState int

const (
	viewName viewState = iota
	viewGame
	viewOver
)

type scoreRow struct {
	name  string
	score int
}

type model struct {
	conn *wsConn

	state    viewState
	input    string
	typing   bool // answer prompt open
	name     string
	gameID   string
	round    int
	buzzed   string // username currently holding the buzzer
	scores   []scoreRow
	history  []string
	finished string
}

type serverEvent event

type disconnected struct{}

// listen waits for the next server event.
func listen(c *wsConn) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-c.events
		if !ok {
			return disconnected{}
		}
		return serverEvent(ev)
	}
}

func newModel(conn *wsConn, name string) model {
	m := model{
		conn:  conn,
		state: viewName,
		input: name,
	}
	return m
}

func (m model) Init() tea.Cmd {
	return listen(m.conn)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.updateKey(msg)

	case serverEvent:
		return m.updateEvent(event(msg))

	case disconnected:
		m.log("Disconnected from server.")
		m.state = viewOver
		m.finished = "connection lost"
		return m, nil
	}

	return m, nil
}

func (m *model) log(line string) {
	m.history = append(m.history, line)
	if len(m.history) > 8 {
		m.history = m.history[len(m.history)-8:]
	}
}

func (m model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.state {
	case viewName:
		switch msg.Type {
		case tea.KeyEnter:
			name := strings.TrimSpace(m.input)
			if name == "" {
				return m, nil
			}
			m.name = name
			m.input = ""
			m.conn.send(clientMessage{Type: "join", Username: name})
			return m, nil
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}

	case viewGame:
		if m.typing {
			switch msg.Type {
			case tea.KeyEnter:
				m.conn.send(clientMessage{Type: "answer", Text: m.input})
				m.input = ""
				m.typing = false
			case tea.KeyEsc:
				m.input = ""
				m.typing = false
			case tea.KeyBackspace:
				if len(m.input) > 0 {
					m.input = m.input[:len(m.input)-1]
				}
			case tea.KeySpace:
				m.input += " "
			case tea.KeyRunes:
				m.input += string(msg.Runes)
			}
			return m, nil
		}

		switch msg.String() {
		case " ":
			m.conn.send(clientMessage{Type: "buzz"})
		case "q":
			return m, tea.Quit
		}

	case viewOver:
		if msg.String() == "q" || msg.Type == tea.KeyEnter {
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m model) updateEvent(ev event) (tea.Model, tea.Cmd) {
	switch ev.Type {
	case "session_info":
		m.gameID = ev.GameID
		m.round = ev.Round
		m.setScores(ev)

	case "joined":
		m.gameID = ev.GameID
		m.state = viewGame
		m.log(fmt.Sprintf("Joined game %s as %s.", ev.GameID, ev.Username))

	case "player_joined":
		m.log(fmt.Sprintf("%s joined the game.", ev.Username))

	case "round_started":
		m.round = ev.Round
		m.buzzed = ""
		m.typing = false
		m.log(fmt.Sprintf("Round %d started (%ds) — listen and buzz!", ev.Round, ev.Seconds))

	case "buzzer_granted":
		m.buzzed = ev.Username
		if ev.Username == m.name {
			m.typing = true
			m.input = ""
		}
		m.log(fmt.Sprintf("%s buzzed in.", ev.Username))

	case "buzzer_expired":
		m.buzzed = ""
		m.typing = false
		m.log(fmt.Sprintf("Buzz from %s expired.", ev.Username))

	case "correct_answer":
		m.buzzed = ""
		m.log(ev.Message)

	case "wrong_answer":
		m.buzzed = ""
		m.log(ev.Message)

	case "score_update":
		m.setScores(ev)

	case "game_ended":
		m.state = viewOver
		m.finished = fmt.Sprintf("%s wins with %d points", ev.Winner, ev.Score)

	case "quiz_error":
		m.log("Error: " + ev.Message)
	}

	return m, listen(m.conn)
}

func (m *model) setScores(ev event) {
	m.scores = m.scores[:0]
	for _, s := range ev.Scores {
		m.scores = append(m.scores, scoreRow{name: s.Username, score: s.Score})
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString("tunequiz")
	if m.gameID != "" {
		b.WriteString(" — game " + m.gameID)
	}
	b.WriteString("\n\n")

	switch m.state {
	case viewName:
		b.WriteString("Your name: " + m.input + "█\n")
		b.WriteString("\n(enter to join, ctrl+c to quit)\n")

	case viewGame:
		if m.round > 0 {
			fmt.Fprintf(&b, "Round %d\n", m.round)
		} else {
			b.WriteString("Waiting for the first round…\n")
		}

		if m.buzzed != "" {
			fmt.Fprintf(&b, "Buzzer held by %s\n", m.buzzed)
		}

		b.WriteString("\nScores:\n")
		for _, s := range m.scores {
			fmt.Fprintf(&b, "  %-20s %4d\n", s.name, s.score)
		}

		b.WriteString("\n")
		for _, line := range m.history {
			b.WriteString("  " + line + "\n")
		}

		b.WriteString("\n")
		if m.typing {
			b.WriteString("Answer: " + m.input + "█  (enter to submit, esc to cancel)\n")
		} else {
			b.WriteString("(space to buzz, q to quit)\n")
		}

	case viewOver:
		b.WriteString("Game over: " + m.finished + "\n")
		b.WriteString("\n(q to quit)\n")
	}

	return b.String()
}

func main() {
	serverURL := flag.String("server", "ws://localhost:3000/quiz/ws", "WebSocket server URL")
	name := flag.String("name", "", "player name (prompted if empty)")
	flag.Parse()

	conn, err := dial(*serverURL)
	if err != nil {
		log.Fatalf("Failed to connect to %s: %v", *serverURL, err)
	}
	defer conn.conn.Close()

	m := newModel(conn, *name)

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatal(err)
	}
}
