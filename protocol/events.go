package protocol

// Event is a semantic event decoded from the stream. It is a sealed union:
// the concrete types below are the only implementations.
type Event interface {
	event() // sealed marker
}

// TextEvent is a chunk of assistant prose, streamable.
type TextEvent struct {
	Text string
}

func (TextEvent) event() {}

// ThinkingEvent is a chunk of extended reasoning.
type ThinkingEvent struct {
	Thinking string
}

func (ThinkingEvent) event() {}

// ToolUseEvent is one complete tool invocation with its full input.
type ToolUseEvent struct {
	Name  string
	Input string
}

func (ToolUseEvent) event() {}

// ToolResultEvent is the output of an earlier tool invocation. Name is the
// originating tool's name when the correlation id is known, "tool" otherwise.
type ToolResultEvent struct {
	Name    string
	Result  string
	IsError bool
}

func (ToolResultEvent) event() {}

// UsageEvent reports token counts. Consumers accumulate these additively.
type UsageEvent struct {
	InputTokens      int
	OutputTokens     int
	CacheReadTokens  int
	CacheWriteTokens int
}

func (UsageEvent) event() {}

func usageEvent(u Usage) UsageEvent {
	return UsageEvent{
		InputTokens:      u.InputTokens,
		OutputTokens:     u.OutputTokens,
		CacheReadTokens:  u.CacheReadInputTokens,
		CacheWriteTokens: u.CacheCreationInputTokens,
	}
}
