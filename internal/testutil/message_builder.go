package testutil

import (
	"github.com/hupe1980/chatflow/core"
)

// MessageBuilder provides a fluent helper for constructing messages in tests.
// Example:
//
//	msg := NewMessageBuilder(core.RoleAssistant).Text("checking").Call("c1", "get_weather", `{"location":"Tokyo"}`).Build()
type MessageBuilder struct {
	role  core.Role
	parts []core.Part
}

// NewMessageBuilder creates a builder for a message with the given role.
func NewMessageBuilder(role core.Role) *MessageBuilder { return &MessageBuilder{role: role} }

// Text appends a text part (chainable).
func (b *MessageBuilder) Text(text string) *MessageBuilder {
	b.parts = append(b.parts, core.TextPart{Text: text})
	return b
}

// Image appends an image URI part; it panics on an invalid URI (chainable).
func (b *MessageBuilder) Image(uri, mediaType string) *MessageBuilder {
	b.parts = append(b.parts, core.MustURIPart(uri, mediaType))
	return b
}

// Call appends a function call directive (chainable).
func (b *MessageBuilder) Call(id, name, args string) *MessageBuilder {
	b.parts = append(b.parts, core.FunctionCallPart{FunctionCall: core.FunctionCall{ID: id, Name: name, Arguments: args}})
	return b
}

// Response appends a function response (chainable).
func (b *MessageBuilder) Response(id, name, response string) *MessageBuilder {
	b.parts = append(b.parts, core.FunctionResponsePart{FunctionResponse: core.FunctionResponse{ID: id, Name: name, Response: response}})
	return b
}

// Build returns the message.
func (b *MessageBuilder) Build() core.Message {
	return core.NewMessage(b.role, b.parts...)
}

// Roles returns the role sequence of msgs, handy for asserting history order.
func Roles(msgs []core.Message) []core.Role {
	out := make([]core.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}
