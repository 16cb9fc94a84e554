// Package protocol implements the stream-json wire format emitted by the
// Claude CLI in --print --output-format stream-json mode. Top-level records,
// content blocks, and content-block deltas are each closed tag-dispatched
// unions; unknown tags are logged and skipped so that protocol evolution
// never breaks the reader. The stateful Decoder turns raw lines into
// semantic events.
package protocol

import (
	"encoding/json"
	"log/slog"
)

// RecordType discriminates top-level stream-json records.
type RecordType string

const (
	RecordTypeSystem            RecordType = "system"
	RecordTypeAssistant         RecordType = "assistant"
	RecordTypeUser              RecordType = "user"
	RecordTypeResult            RecordType = "result"
	RecordTypeMessageStart      RecordType = "message_start"
	RecordTypeContentBlockStart RecordType = "content_block_start"
	RecordTypeContentBlockDelta RecordType = "content_block_delta"
	RecordTypeContentBlockStop  RecordType = "content_block_stop"
	RecordTypeMessageDelta      RecordType = "message_delta"
	RecordTypeMessageStop       RecordType = "message_stop"
)

// Record is the interface implemented by every top-level record kind.
type Record interface {
	RecType() RecordType
}

// Usage carries token accounting attached to messages and message deltas.
type Usage struct {
	InputTokens              int `json:"input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	OutputTokens             int `json:"output_tokens"`
}

// MessageBody is the inner message object of assistant/user envelopes and
// message_start records.
type MessageBody struct {
	ID           string            `json:"id,omitempty"`
	Model        string            `json:"model,omitempty"`
	Role         string            `json:"role,omitempty"`
	Content      []json.RawMessage `json:"content,omitempty"`
	StopReason   *string           `json:"stop_reason"`
	StopSequence *string           `json:"stop_sequence"`
	Usage        *Usage            `json:"usage,omitempty"`
}

// SystemRecord is CLI housekeeping output (init banners, notices).
type SystemRecord struct {
	Type      RecordType `json:"type"`
	Subtype   string     `json:"subtype,omitempty"`
	SessionID string     `json:"session_id,omitempty"`
}

// RecType returns the record type.
func (r SystemRecord) RecType() RecordType { return RecordTypeSystem }

// AssistantRecord is a complete or partial assistant message envelope.
type AssistantRecord struct {
	Type      RecordType  `json:"type"`
	Message   MessageBody `json:"message"`
	SessionID string      `json:"session_id,omitempty"`
}

// RecType returns the record type.
func (r AssistantRecord) RecType() RecordType { return RecordTypeAssistant }

// UserRecord is a user-side envelope; tool results travel back in these.
type UserRecord struct {
	Type      RecordType  `json:"type"`
	Message   MessageBody `json:"message"`
	SessionID string      `json:"session_id,omitempty"`
}

// RecType returns the record type.
func (r UserRecord) RecType() RecordType { return RecordTypeUser }

// ResultRecord terminates a turn with summary data.
type ResultRecord struct {
	Type       RecordType      `json:"type"`
	Subtype    string          `json:"subtype,omitempty"`
	IsError    bool            `json:"is_error,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	DurationMS int64           `json:"duration_ms,omitempty"`
	Usage      *Usage          `json:"usage,omitempty"`
}

// RecType returns the record type.
func (r ResultRecord) RecType() RecordType { return RecordTypeResult }

// MessageStartRecord starts a new streamed message.
type MessageStartRecord struct {
	Type    RecordType  `json:"type"`
	Message MessageBody `json:"message"`
}

// RecType returns the record type.
func (r MessageStartRecord) RecType() RecordType { return RecordTypeMessageStart }

// ContentBlockStartRecord opens a content block at an index.
type ContentBlockStartRecord struct {
	Type         RecordType      `json:"type"`
	Index        int             `json:"index"`
	ContentBlock json.RawMessage `json:"content_block"`
}

// RecType returns the record type.
func (r ContentBlockStartRecord) RecType() RecordType { return RecordTypeContentBlockStart }

// ParsedBlock parses the content_block field.
func (r ContentBlockStartRecord) ParsedBlock() (ContentBlock, error) {
	return UnmarshalContentBlock(r.ContentBlock)
}

// ContentBlockDeltaRecord carries incremental content for an open block.
type ContentBlockDeltaRecord struct {
	Type  RecordType      `json:"type"`
	Index int             `json:"index"`
	Delta json.RawMessage `json:"delta"`
}

// RecType returns the record type.
func (r ContentBlockDeltaRecord) RecType() RecordType { return RecordTypeContentBlockDelta }

// ParsedDelta parses the delta field.
func (r ContentBlockDeltaRecord) ParsedDelta() (DeltaData, error) {
	return ParseContentBlockDelta(r.Delta)
}

// ContentBlockStopRecord closes a content block.
type ContentBlockStopRecord struct {
	Type  RecordType `json:"type"`
	Index int        `json:"index"`
}

// RecType returns the record type.
func (r ContentBlockStopRecord) RecType() RecordType { return RecordTypeContentBlockStop }

// MessageDeltaBody holds message-level metadata updates.
type MessageDeltaBody struct {
	StopReason   *string `json:"stop_reason"`
	StopSequence *string `json:"stop_sequence"`
}

// MessageDeltaRecord updates message metadata and usage mid-stream.
type MessageDeltaRecord struct {
	Type  RecordType       `json:"type"`
	Delta MessageDeltaBody `json:"delta"`
	Usage *Usage           `json:"usage,omitempty"`
}

// RecType returns the record type.
func (r MessageDeltaRecord) RecType() RecordType { return RecordTypeMessageDelta }

// MessageStopRecord marks message completion.
type MessageStopRecord struct {
	Type RecordType `json:"type"`
}

// RecType returns the record type.
func (r MessageStopRecord) RecType() RecordType { return RecordTypeMessageStop }

// ParseRecord parses one top-level stream-json record. Unknown record types
// are logged and return (nil, nil); an error means the bytes were not valid
// JSON or did not match the declared shape.
func ParseRecord(data []byte) (Record, error) {
	var base struct {
		Type RecordType `json:"type"`
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, err
	}

	switch base.Type {
	case RecordTypeSystem:
		var r SystemRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeAssistant:
		var r AssistantRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeUser:
		var r UserRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeResult:
		var r ResultRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeMessageStart:
		var r MessageStartRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeContentBlockStart:
		var r ContentBlockStartRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeContentBlockDelta:
		var r ContentBlockDeltaRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeContentBlockStop:
		var r ContentBlockStopRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeMessageDelta:
		var r MessageDeltaRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	case RecordTypeMessageStop:
		var r MessageStopRecord
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return r, nil
	default:
		slog.Debug("skipping unknown record type", "type", base.Type)
		return nil, nil
	}
}
