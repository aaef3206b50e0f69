package core

import (
	"fmt"
	"mime"
	"net/url"
)

// Part represents a polymorphic segment of role-based content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface {
	isPart()
	// Kind returns the serialization discriminator of the part.
	Kind() string
}

// Part kinds used as the "type" discriminator when serializing messages.
const (
	KindText             = "text"
	KindURI              = "uri"
	KindFunctionCall     = "function_call"
	KindFunctionResponse = "function_response"
)

// TextPart is a plain text content segment.
type TextPart struct {
	Text string `json:"text"`
}

func (TextPart) isPart() {}

// Kind implements Part.
func (TextPart) Kind() string { return KindText }

// URIPart references external media (e.g. an image) by URI together with
// its MIME type. The media itself is never fetched or decoded here.
type URIPart struct {
	URI       string `json:"uri"`
	MediaType string `json:"media_type"`
}

func (URIPart) isPart() {}

// Kind implements Part.
func (URIPart) Kind() string { return KindURI }

// NewURIPart builds a URIPart after checking that uri is an absolute URI and
// mediaType is a well-formed MIME type.
func NewURIPart(uri, mediaType string) (URIPart, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return URIPart{}, fmt.Errorf("invalid uri %q: %w", uri, err)
	}
	if !u.IsAbs() {
		return URIPart{}, fmt.Errorf("invalid uri %q: not absolute", uri)
	}
	if _, _, err := mime.ParseMediaType(mediaType); err != nil {
		return URIPart{}, fmt.Errorf("invalid media type %q: %w", mediaType, err)
	}
	return URIPart{URI: uri, MediaType: mediaType}, nil
}

// MustURIPart is like NewURIPart but panics on invalid input. Intended for
// literals in examples and tests.
func MustURIPart(uri, mediaType string) URIPart {
	p, err := NewURIPart(uri, mediaType)
	if err != nil {
		panic(err)
	}
	return p
}

// FunctionCall describes a tool/function invocation request issued by a backend.
type FunctionCall struct {
	ID        string `json:"id,omitempty"`        // Correlates the call with its response
	Name      string `json:"name"`                // Tool name
	Arguments string `json:"arguments,omitempty"` // JSON encoded arguments
}

// FunctionCallPart wraps a FunctionCall as a content part.
type FunctionCallPart struct {
	FunctionCall FunctionCall `json:"function_call"`
}

func (FunctionCallPart) isPart() {}

// Kind implements Part.
func (FunctionCallPart) Kind() string { return KindFunctionCall }

// FunctionResponse carries the string result of a tool invocation.
type FunctionResponse struct {
	ID       string `json:"id,omitempty"` // Matches originating FunctionCall ID
	Name     string `json:"name"`
	Response string `json:"response"`
}

// FunctionResponsePart wraps a FunctionResponse as a content part.
type FunctionResponsePart struct {
	FunctionResponse FunctionResponse `json:"function_response"`
}

func (FunctionResponsePart) isPart() {}

// Kind implements Part.
func (FunctionResponsePart) Kind() string { return KindFunctionResponse }
