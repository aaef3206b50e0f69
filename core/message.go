package core

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
)

// Role identifies the author of a message within a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message holds a role plus ordered parts. Once appended to a history a
// message must not be mutated; use Clone to derive a modified copy.
type Message struct {
	Role  Role   `json:"role"`
	Parts []Part `json:"parts"`
}

// NewMessage constructs a message from a role and one or more parts. No
// semantic validation is performed; the backend decides what it accepts.
func NewMessage(role Role, parts ...Part) Message {
	return Message{Role: role, Parts: parts}
}

// UserText is a shorthand for a single-part user message.
func UserText(text string) Message {
	return NewMessage(RoleUser, TextPart{Text: text})
}

// SystemText is a shorthand for a single-part system message.
func SystemText(text string) Message {
	return NewMessage(RoleSystem, TextPart{Text: text})
}

// AssistantText is a shorthand for a single-part assistant message.
func AssistantText(text string) Message {
	return NewMessage(RoleAssistant, TextPart{Text: text})
}

// ToolResponse builds the role=tool message answering a single function call.
func ToolResponse(callID, name, response string) Message {
	return NewMessage(RoleTool, FunctionResponsePart{FunctionResponse: FunctionResponse{
		ID:       callID,
		Name:     name,
		Response: response,
	}})
}

// Text concatenates all text parts in order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// FunctionCalls returns the function call directives contained in the message.
func (m Message) FunctionCalls() []FunctionCall {
	var calls []FunctionCall
	for _, p := range m.Parts {
		if fc, ok := p.(FunctionCallPart); ok {
			calls = append(calls, fc.FunctionCall)
		}
	}
	return calls
}

// FunctionResponses returns the function responses contained in the message.
func (m Message) FunctionResponses() []FunctionResponse {
	var resps []FunctionResponse
	for _, p := range m.Parts {
		if fr, ok := p.(FunctionResponsePart); ok {
			resps = append(resps, fr.FunctionResponse)
		}
	}
	return resps
}

// Clone returns a copy whose part slice can be modified independently.
func (m Message) Clone() Message {
	parts := make([]Part, len(m.Parts))
	copy(parts, m.Parts)
	return Message{Role: m.Role, Parts: parts}
}

// Equal reports structural equality.
func (m Message) Equal(o Message) bool {
	if m.Role != o.Role || len(m.Parts) != len(o.Parts) {
		return false
	}
	for i := range m.Parts {
		if !reflect.DeepEqual(m.Parts[i], o.Parts[i]) {
			return false
		}
	}
	return true
}

// CloneMessages copies a history slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}

// NewID returns a random identifier for runs and tool calls.
func NewID() string { return uuid.NewString() }

type wirePart struct {
	Type             string            `json:"type"`
	Text             string            `json:"text,omitempty"`
	URI              string            `json:"uri,omitempty"`
	MediaType        string            `json:"media_type,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	FunctionResponse *FunctionResponse `json:"function_response,omitempty"`
}

type wireMessage struct {
	Role  Role       `json:"role"`
	Parts []wirePart `json:"parts"`
}

// MarshalJSON encodes parts with a "type" discriminator.
func (m Message) MarshalJSON() ([]byte, error) {
	wm := wireMessage{Role: m.Role, Parts: make([]wirePart, 0, len(m.Parts))}
	for _, p := range m.Parts {
		wp := wirePart{Type: p.Kind()}
		switch v := p.(type) {
		case TextPart:
			wp.Text = v.Text
		case URIPart:
			wp.URI, wp.MediaType = v.URI, v.MediaType
		case FunctionCallPart:
			fc := v.FunctionCall
			wp.FunctionCall = &fc
		case FunctionResponsePart:
			fr := v.FunctionResponse
			wp.FunctionResponse = &fr
		default:
			return nil, fmt.Errorf("unsupported part type %T", p)
		}
		wm.Parts = append(wm.Parts, wp)
	}
	return json.Marshal(wm)
}

// UnmarshalJSON decodes the representation produced by MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var wm wireMessage
	if err := json.Unmarshal(data, &wm); err != nil {
		return err
	}
	parts := make([]Part, 0, len(wm.Parts))
	for i, wp := range wm.Parts {
		switch wp.Type {
		case KindText:
			parts = append(parts, TextPart{Text: wp.Text})
		case KindURI:
			parts = append(parts, URIPart{URI: wp.URI, MediaType: wp.MediaType})
		case KindFunctionCall:
			if wp.FunctionCall == nil {
				return fmt.Errorf("part %d: missing function_call", i)
			}
			parts = append(parts, FunctionCallPart{FunctionCall: *wp.FunctionCall})
		case KindFunctionResponse:
			if wp.FunctionResponse == nil {
				return fmt.Errorf("part %d: missing function_response", i)
			}
			parts = append(parts, FunctionResponsePart{FunctionResponse: *wp.FunctionResponse})
		default:
			return fmt.Errorf("part %d: unknown type %q", i, wp.Type)
		}
	}
	m.Role = wm.Role
	m.Parts = parts
	return nil
}
