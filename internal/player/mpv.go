package player

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"vigil/internal/sched"
)

// commandTimeout bounds how long an IPC request waits for mpv's reply.
const commandTimeout = 2 * time.Second

// MPV implements Media on top of an idle mpv process.
// Uses exec.Command with explicit args (no shell interpretation)
// and JSON IPC via a Unix socket at a randomized temp path.
type MPV struct {
	cmd       *exec.Cmd
	conn      net.Conn
	socketDir string
	sched     sched.Scheduler
	emit      EmitFunc

	writeMu sync.Mutex
	mu      sync.Mutex
	nextID  int
	pending map[int]chan ipcMessage

	src      string
	pos      float64
	dur      float64
	paused   bool
	pauseSet bool
	done     chan struct{}

	// ended is set when mpv unloads the file at EOF; Play has to load it again.
	ended bool
}

type ipcMessage struct {
	Event     string          `json:"event"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	RequestID int             `json:"request_id"`
	Error     string          `json:"error"`
	Reason    string          `json:"reason"`
	FileError string          `json:"file_error"`
}

// StartMPV launches mpv in idle audio-only mode and connects to its IPC socket.
func StartMPV(s sched.Scheduler, emit EmitFunc) (*MPV, error) {
	// Create randomized IPC socket path (prevents symlink attacks)
	socketDir, err := os.MkdirTemp("", "vigil-mpv-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir for mpv socket: %w", err)
	}
	socketPath := filepath.Join(socketDir, "socket")

	cmd := exec.Command("mpv",
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--input-ipc-server="+socketPath,
	)
	if err := cmd.Start(); err != nil {
		os.RemoveAll(socketDir)
		return nil, fmt.Errorf("starting mpv: %w", err)
	}

	conn, err := dialSocket(socketPath)
	if err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		os.RemoveAll(socketDir)
		return nil, err
	}

	m := newMPV(conn, s, emit)
	m.cmd = cmd
	m.socketDir = socketDir

	for i, prop := range []string{"time-pos", "duration", "pause"} {
		if err := m.command("observe_property", i+1, prop); err != nil {
			m.Close()
			return nil, fmt.Errorf("observing %s: %w", prop, err)
		}
	}
	return m, nil
}

// newMPV starts reading from an established IPC connection.
func newMPV(conn net.Conn, s sched.Scheduler, emit EmitFunc) *MPV {
	m := &MPV{
		conn:    conn,
		sched:   s,
		emit:    emit,
		pending: make(map[int]chan ipcMessage),
		paused:  true,
		dur:     math.NaN(),
		done:    make(chan struct{}),
	}
	go m.readLoop()
	return m
}

// dialSocket waits for mpv to create its IPC socket.
func dialSocket(socketPath string) (net.Conn, error) {
	var lastErr error
	for i := 0; i < 50; i++ {
		if _, err := os.Stat(socketPath); err == nil {
			conn, err := net.Dial("unix", socketPath)
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		time.Sleep(100 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("socket %s never appeared", socketPath)
	}
	return nil, fmt.Errorf("connecting to mpv: %w", lastErr)
}

func (m *MPV) command(args ...interface{}) error {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	reply := make(chan ipcMessage, 1)
	m.pending[id] = reply
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pending, id)
		m.mu.Unlock()
	}()

	data, err := json.Marshal(map[string]interface{}{
		"command":    args,
		"request_id": id,
	})
	if err != nil {
		return fmt.Errorf("encoding mpv command: %w", err)
	}
	data = append(data, '\n')

	m.writeMu.Lock()
	_, err = m.conn.Write(data)
	m.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("writing mpv command: %w", err)
	}

	select {
	case msg := <-reply:
		if msg.Error != "" && msg.Error != "success" {
			return fmt.Errorf("mpv %v: %s", args[0], msg.Error)
		}
		return nil
	case <-m.done:
		return fmt.Errorf("mpv exited")
	case <-time.After(commandTimeout):
		return fmt.Errorf("mpv %v: timed out", args[0])
	}
}

// readLoop consumes replies and property events until the socket closes.
func (m *MPV) readLoop() {
	defer close(m.done)

	scanner := bufio.NewScanner(m.conn)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}

		if msg.Event == "" {
			m.mu.Lock()
			reply, ok := m.pending[msg.RequestID]
			m.mu.Unlock()
			if ok {
				reply <- msg
			}
			continue
		}

		switch msg.Event {
		case "property-change":
			m.propertyChanged(msg)
		case "end-file":
			switch msg.Reason {
			case "eof":
				m.mu.Lock()
				m.ended = true
				m.mu.Unlock()
				m.post(EventEnded, nil)
			case "error":
				m.post(EventError, fmt.Errorf("mpv: %s", msg.FileError))
			}
		}
	}
}

func (m *MPV) propertyChanged(msg ipcMessage) {
	switch msg.Name {
	case "time-pos":
		var v float64
		if json.Unmarshal(msg.Data, &v) == nil {
			m.mu.Lock()
			m.pos = v
			m.mu.Unlock()
		}
	case "duration":
		v := math.NaN()
		if len(msg.Data) > 0 {
			json.Unmarshal(msg.Data, &v)
		}
		m.mu.Lock()
		m.dur = v
		m.mu.Unlock()
	case "pause":
		var v bool
		if json.Unmarshal(msg.Data, &v) != nil {
			return
		}
		m.mu.Lock()
		changed := m.pauseSet && v != m.paused
		m.paused = v
		m.pauseSet = true
		m.mu.Unlock()
		if !changed {
			return
		}
		if v {
			m.post(EventPause, nil)
		} else {
			m.post(EventPlay, nil)
		}
	}
}

func (m *MPV) post(ev Event, err error) {
	if m.emit == nil {
		return
	}
	m.sched.Post(func() { m.emit(ev, err) })
}

func (m *MPV) Load(src string) error {
	m.mu.Lock()
	m.src = src
	m.pos = 0
	m.dur = math.NaN()
	m.ended = false
	m.mu.Unlock()

	if src == "" {
		return m.command("stop")
	}
	if err := m.command("set_property", "pause", true); err != nil {
		return err
	}
	return m.command("loadfile", src, "replace")
}

func (m *MPV) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src
}

// Play resumes the loaded file. After EOF mpv has dropped it, so it is
// loaded again and starts from the beginning.
func (m *MPV) Play() error {
	m.mu.Lock()
	src, ended, paused := m.src, m.ended, m.paused
	m.mu.Unlock()
	if src == "" {
		return ErrNoSource
	}
	if !ended {
		return m.command("set_property", "pause", false)
	}

	if err := m.command("loadfile", src, "replace"); err != nil {
		return err
	}
	m.mu.Lock()
	m.ended = false
	m.pos = 0
	m.mu.Unlock()
	if paused {
		return m.command("set_property", "pause", false)
	}
	// pause stayed false through EOF, so no property change will report the restart.
	m.post(EventPlay, nil)
	return nil
}

func (m *MPV) Pause() {
	if err := m.command("set_property", "pause", true); err != nil {
		log.Printf("player: mpv pause: %v", err)
	}
}

func (m *MPV) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused || m.ended
}

func (m *MPV) Seek(seconds float64) {
	m.mu.Lock()
	idle := m.src == "" || m.ended
	m.mu.Unlock()
	if idle {
		return
	}
	if err := m.command("seek", seconds, "absolute"); err != nil {
		log.Printf("player: mpv seek: %v", err)
	}
}

func (m *MPV) CurrentTime() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

func (m *MPV) Duration() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dur
}

// Close asks mpv to quit, then kills it if it does not exit promptly.
func (m *MPV) Close() error {
	_ = m.command("quit")
	m.conn.Close()

	exited := make(chan struct{})
	go func() {
		m.cmd.Wait()
		close(exited)
	}()
	select {
	case <-exited:
	case <-time.After(commandTimeout):
		m.cmd.Process.Kill()
		<-exited
	}
	return os.RemoveAll(m.socketDir)
}
