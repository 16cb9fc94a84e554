package protocol

import (
	"bytes"
	"log/slog"
	"strings"
)

// Decoder converts raw stream-json lines into semantic events. It carries
// the cross-line state needed to assemble tool inputs that arrive as
// input_json_delta fragments: at most one tool invocation is in flight at a
// time, and the pending input buffer is flushed as a single ToolUseEvent
// when the block-close record for it arrives.
//
// Decode never fails. Malformed or unrecognized lines decode to zero events
// and are logged at debug level.
type Decoder struct {
	pendingTool  string
	pendingSet   bool
	pendingInput strings.Builder

	// tool_use id -> name, so tool results can be labeled with the tool
	// that produced them.
	toolNames map[string]string
}

// NewDecoder returns a Decoder with empty accumulation state.
func NewDecoder() *Decoder {
	return &Decoder{toolNames: make(map[string]string)}
}

// Decode parses one line of subprocess output and returns the semantic
// events it yields, possibly none.
func (d *Decoder) Decode(line []byte) []Event {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil
	}

	rec, err := ParseRecord(line)
	if err != nil {
		slog.Debug("skipping unparseable stream line", "error", err, "line", string(line))
		return nil
	}
	if rec == nil {
		return nil
	}

	var events []Event
	switch r := rec.(type) {
	case AssistantRecord:
		events = d.decodeMessageBody(r.Message)
	case MessageStartRecord:
		events = d.decodeMessageBody(r.Message)
	case UserRecord:
		// Tool results travel back inside user envelopes.
		events = d.decodeMessageBody(r.Message)
	case ContentBlockStartRecord:
		block, err := r.ParsedBlock()
		if err != nil {
			slog.Debug("skipping malformed content block", "error", err)
			return nil
		}
		events = d.decodeBlock(block)
	case ContentBlockDeltaRecord:
		delta, err := r.ParsedDelta()
		if err != nil {
			slog.Debug("skipping malformed content block delta", "error", err)
			return nil
		}
		events = d.decodeDelta(delta)
	case ContentBlockStopRecord:
		events = d.flushPendingTool()
	case MessageDeltaRecord:
		if r.Usage != nil {
			events = append(events, usageEvent(*r.Usage))
		}
	case ResultRecord:
		events = decodeResult(r)
	case SystemRecord, MessageStopRecord:
		// Nothing to surface.
	}
	return events
}

// decodeMessageBody walks the content blocks of a message envelope and
// emits its usage, if any, last.
func (d *Decoder) decodeMessageBody(body MessageBody) []Event {
	var events []Event
	for _, raw := range body.Content {
		block, err := UnmarshalContentBlock(raw)
		if err != nil {
			slog.Debug("skipping malformed content block", "error", err)
			continue
		}
		if block == nil {
			continue
		}
		events = append(events, d.decodeBlock(block)...)
	}
	if body.Usage != nil {
		events = append(events, usageEvent(*body.Usage))
	}
	return events
}

func (d *Decoder) decodeBlock(block ContentBlock) []Event {
	switch b := block.(type) {
	case TextBlock:
		return []Event{TextEvent{Text: b.Text}}
	case ThinkingBlock:
		return []Event{ThinkingEvent{Thinking: b.Thinking}}
	case ToolUseBlock:
		if b.ID != "" {
			d.toolNames[b.ID] = b.Name
		}
		if hasInput(b.Input) {
			// Input arrived whole; emit now. The matching block stop
			// sees no pending tool and is a no-op.
			return []Event{ToolUseEvent{Name: b.Name, Input: b.InputString()}}
		}
		d.pendingTool = b.Name
		d.pendingSet = true
		d.pendingInput.Reset()
		return nil
	case ToolResultBlock:
		name := d.toolNames[b.ToolUseID]
		if name == "" {
			name = "tool"
		}
		return []Event{ToolResultEvent{Name: name, Result: b.ContentString(), IsError: b.IsError}}
	}
	return nil
}

func (d *Decoder) decodeDelta(delta DeltaData) []Event {
	switch dd := delta.(type) {
	case TextDelta:
		return []Event{TextEvent{Text: dd.Text}}
	case ThinkingDelta:
		return []Event{ThinkingEvent{Thinking: dd.Thinking}}
	case InputJSONDelta:
		d.pendingInput.WriteString(dd.PartialJSON)
	}
	return nil
}

// flushPendingTool emits the accumulated tool invocation, if one is in
// flight, and resets the accumulator. A block stop with nothing pending is
// a no-op.
func (d *Decoder) flushPendingTool() []Event {
	if !d.pendingSet {
		return nil
	}
	ev := ToolUseEvent{Name: d.pendingTool, Input: d.pendingInput.String()}
	d.pendingTool = ""
	d.pendingSet = false
	d.pendingInput.Reset()
	return []Event{ev}
}

// decodeResult surfaces tool_result payloads. The usage attached to result
// records is a turn total, not an increment, so it is deliberately not
// emitted; counting it would double what the per-message usage already
// reported.
func decodeResult(r ResultRecord) []Event {
	if r.Subtype == "tool_result" && len(r.Result) > 0 {
		return []Event{ToolResultEvent{Name: "tool", Result: rawToString(r.Result), IsError: r.IsError}}
	}
	return nil
}
