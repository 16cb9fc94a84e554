package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/bazelment/claude-terminal/protocol"
)

// Role identifies who produced a conversation entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleShell     Role = "shell"
)

// Content is the sealed union of entry payloads.
type Content interface {
	content() // sealed marker
}

// TextContent is plain prose.
type TextContent struct {
	Text string
}

func (TextContent) content() {}

// ThinkingContent is assistant reasoning output.
type ThinkingContent struct {
	Text string
}

func (ThinkingContent) content() {}

// ToolUseContent records a tool invocation.
type ToolUseContent struct {
	Name  string
	Input string
}

func (ToolUseContent) content() {}

// ToolResultContent records a tool's output.
type ToolResultContent struct {
	Name    string
	Result  string
	IsError bool
}

func (ToolResultContent) content() {}

// ShellContent records a shell command. It is created provisionally when
// the command is launched and filled in as output and exit events arrive;
// shell entries are the only entries mutated after creation.
type ShellContent struct {
	Command  string
	Output   string
	ExitCode int
	Done     bool
}

func (ShellContent) content() {}

// Entry is one transcript item.
type Entry struct {
	Role    Role
	Content Content
	Time    time.Time
}

func newEntry(role Role, content Content) Entry {
	return Entry{Role: role, Content: content, Time: time.Now()}
}

// TokenUsage accumulates the four token counters across the whole client
// lifetime. Counters only grow; there is no reset.
type TokenUsage struct {
	Input      int
	Output     int
	CacheRead  int
	CacheWrite int
}

// Add applies one usage event.
func (u *TokenUsage) Add(ev protocol.UsageEvent) {
	u.Input += ev.InputTokens
	u.Output += ev.OutputTokens
	u.CacheRead += ev.CacheReadTokens
	u.CacheWrite += ev.CacheWriteTokens
}

// shellContextLookback bounds how far back shell activity is gathered
// when prefixing a new assistant turn.
const shellContextLookback = 5

// shellContext renders completed shell commands from the most recent
// entries as context for the next assistant message, oldest first.
func shellContext(entries []Entry) string {
	var recent []string
	start := len(entries) - shellContextLookback
	if start < 0 {
		start = 0
	}
	for _, e := range entries[start:] {
		sc, ok := e.Content.(ShellContent)
		if !ok {
			continue
		}
		recent = append(recent, fmt.Sprintf("$ %s\n%s(exit code: %d)", sc.Command, sc.Output, sc.ExitCode))
	}
	if len(recent) == 0 {
		return ""
	}
	return "[Recent terminal activity]\n" + strings.Join(recent, "\n\n") + "\n"
}
