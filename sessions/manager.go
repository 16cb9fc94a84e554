// Package sessions implements the file-based peer mailbox that lets
// independently running client instances discover each other and exchange
// short messages. Each instance registers a record under the shared
// sessions directory and owns one append-only JSONL inbox under messages/.
// Delivery is at-least-once: senders append, the owner drains and deletes.
package sessions

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
)

const appName = "claude-terminal"

// pollInterval is the fallback inbox scan cadence when file events are
// missed or unavailable.
const pollInterval = 2 * time.Second

// Info is one registered session record.
type Info struct {
	ID      string    `json:"id"`
	PID     int       `json:"pid"`
	CWD     string    `json:"cwd"`
	Task    string    `json:"task"`
	Started time.Time `json:"started"`
	App     string    `json:"app,omitempty"`
}

// Message is one line of a session's inbox.
type Message struct {
	From string `json:"from"`
	Text string `json:"message"`
	Time string `json:"time"`
}

// Manager owns this instance's registration and inbox.
type Manager struct {
	root string
	id   string
}

// NewManager creates the sessions directory tree if needed. An empty root
// selects ~/.claude-sessions.
func NewManager(root string) (*Manager, error) {
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, ".claude-sessions")
	}
	if err := os.MkdirAll(filepath.Join(root, "messages"), 0o755); err != nil {
		return nil, fmt.Errorf("creating sessions directory: %w", err)
	}
	return &Manager{root: root}, nil
}

// ID returns this instance's session id, empty before Register.
func (m *Manager) ID() string { return m.id }

// Register writes this instance's session record and assigns its id.
func (m *Manager) Register(task string) (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	id := fmt.Sprintf("%s-%d-%s", appName, os.Getpid(), uuid.NewString()[:8])

	info := Info{
		ID:      id,
		PID:     os.Getpid(),
		CWD:     cwd,
		Task:    task,
		Started: time.Now().UTC(),
		App:     appName,
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(m.recordPath(id), data, 0o644); err != nil {
		return "", fmt.Errorf("writing session record: %w", err)
	}
	m.id = id
	return id, nil
}

// Deregister removes this instance's record and any unread inbox.
func (m *Manager) Deregister() error {
	if m.id == "" {
		return nil
	}
	if err := os.Remove(m.recordPath(m.id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(m.inboxPath(m.id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the other live sessions. Records whose process is gone are
// stale leftovers from a crash and are removed on sight.
func (m *Manager) List() ([]Info, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, err
	}

	var sessions []Info
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.root, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var info Info
		if err := json.Unmarshal(data, &info); err != nil {
			slog.Debug("skipping unreadable session record", "path", path, "error", err)
			continue
		}
		if info.ID == m.id {
			continue
		}
		if !processAlive(info.PID) {
			slog.Debug("removing stale session record", "id", info.ID, "pid", info.PID)
			_ = os.Remove(path)
			_ = os.Remove(m.inboxPath(info.ID))
			continue
		}
		sessions = append(sessions, info)
	}
	return sessions, nil
}

// Send appends one message line to the target session's inbox.
func (m *Manager) Send(target, text string) error {
	from := m.id
	if from == "" {
		from = "unknown"
	}
	line, err := json.Marshal(Message{
		From: from,
		Text: text,
		Time: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}

	f, err := os.OpenFile(m.inboxPath(target), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening inbox for %s: %w", target, err)
	}
	defer f.Close()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending to inbox for %s: %w", target, err)
	}
	return nil
}

// Broadcast sends text to every other live session and returns how many
// received it.
func (m *Manager) Broadcast(text string) (int, error) {
	sessions, err := m.List()
	if err != nil {
		return 0, err
	}
	for _, s := range sessions {
		if err := m.Send(s.ID, text); err != nil {
			return 0, err
		}
	}
	return len(sessions), nil
}

// DrainInbox reads and deletes this session's inbox. Unparseable lines are
// skipped.
func (m *Manager) DrainInbox() ([]Message, error) {
	if m.id == "" {
		return nil, nil
	}
	path := m.inboxPath(m.id)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var messages []Message
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			slog.Debug("skipping unparseable inbox line", "error", err)
			continue
		}
		messages = append(messages, msg)
	}
	f.Close()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return messages, err
	}
	return messages, nil
}

// Watch delivers incoming messages until ctx is cancelled. It drains the
// inbox whenever the messages directory changes, with a periodic poll as a
// safety net, so a lost file event delays delivery rather than losing it.
func (m *Manager) Watch(ctx context.Context) (<-chan Message, error) {
	if m.id == "" {
		return nil, fmt.Errorf("watch before register")
	}

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(filepath.Join(m.root, "messages")); werr != nil {
			watcher.Close()
			watcher = nil
			slog.Debug("inbox watch unavailable, polling only", "error", werr)
		}
	} else {
		watcher = nil
		slog.Debug("fsnotify unavailable, polling only", "error", err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		if watcher != nil {
			defer watcher.Close()
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		inbox := m.inboxPath(m.id)
		for {
			var triggered bool
			if watcher != nil {
				select {
				case <-ctx.Done():
					return
				case ev := <-watcher.Events:
					triggered = ev.Name == inbox && ev.Op.Has(fsnotify.Write|fsnotify.Create)
				case err := <-watcher.Errors:
					slog.Debug("inbox watch error", "error", err)
				case <-ticker.C:
					triggered = true
				}
			} else {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					triggered = true
				}
			}
			if !triggered {
				continue
			}

			messages, err := m.DrainInbox()
			if err != nil {
				slog.Debug("draining inbox failed", "error", err)
				continue
			}
			for _, msg := range messages {
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *Manager) recordPath(id string) string {
	return filepath.Join(m.root, id+".json")
}

func (m *Manager) inboxPath(id string) string {
	return filepath.Join(m.root, "messages", id)
}

// processAlive probes a pid with signal 0. EPERM still means the process
// exists, just owned by someone else.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || err == syscall.EPERM
}
