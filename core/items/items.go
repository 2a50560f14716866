package items

import (
	"slices"
	"strings"
	"time"
)

type Kind string

const (
	KindMessage            Kind = "message"
	KindFunctionCall       Kind = "function_call"
	KindFunctionCallOutput Kind = "function_call_output"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Status string

const (
	// StatusRunning marks an item that may still receive fragments.
	StatusRunning Status = "running"
	// StatusCompleted marks an item whose content is final.
	StatusCompleted Status = "completed"
)

// Annotation is an advisory marker shown next to an item. Annotations never
// block display.
type Annotation string

const (
	AnnotationNonDefaultLanguage  Annotation = "non_default_language"
	AnnotationTargetLocale        Annotation = "target_locale"
	AnnotationFallbackTranscribed Annotation = "fallback_transcribed"
	AnnotationFallbackFailed      Annotation = "fallback_failed"
	AnnotationMalformedArguments  Annotation = "malformed_arguments"
)

const contentTypeText = "text"

// ContentPart is a single fragment of an item's content.
type ContentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextPart creates a text fragment.
func NewTextPart(text string) ContentPart {
	return ContentPart{Type: contentTypeText, Text: text}
}

// Item is a discrete transcript entry: a message, a function call or a
// function call output.
type Item struct {
	ID      string        `json:"id"`
	Kind    Kind          `json:"type"`
	Role    Role          `json:"role,omitempty"`
	Content []ContentPart `json:"content"`
	Status  Status        `json:"status"`

	// CallID correlates a function call with its eventual output.
	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`

	// Timestamp is the capture time of the first event referencing the item.
	Timestamp time.Time `json:"timestamp"`

	Annotations []Annotation `json:"annotations,omitempty"`
}

// Text is the concatenation of all content fragments in arrival order.
func (i Item) Text() string {
	var b strings.Builder
	for _, part := range i.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}

func (i Item) IsCompleted() bool { return i.Status == StatusCompleted }

func (i Item) HasAnnotation(annotation Annotation) bool {
	return slices.Contains(i.Annotations, annotation)
}

// Annotate adds annotations that are not yet present.
func (i *Item) Annotate(annotations ...Annotation) {
	for _, annotation := range annotations {
		if !i.HasAnnotation(annotation) {
			i.Annotations = append(i.Annotations, annotation)
		}
	}
}

func (i *Item) RemoveAnnotation(annotation Annotation) {
	i.Annotations = slices.DeleteFunc(i.Annotations, func(a Annotation) bool { return a == annotation })
}

// IsTranscriptEntry reports whether the item is shown in transcripts and
// exports.
func (i Item) IsTranscriptEntry() bool {
	switch i.Kind {
	case KindMessage, KindFunctionCall, KindFunctionCallOutput:
		return true
	}
	return false
}
