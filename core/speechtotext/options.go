package speechtotext

import (
	"context"
	"errors"
)

// ErrEmptyTranscript is returned when a provider produced no text.
var ErrEmptyTranscript = errors.New("empty transcript")

// Transcriber turns a recorded audio payload into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, opts ...TranscriptionOption) (string, error)
}

type TranscriptionOptions struct {
	// Filename is the name the audio is uploaded under, providers use its
	// extension to detect the container.
	Filename    string
	ContentType string
	// Language is a BCP-47 hint, empty means the provider detects it.
	Language string
	Model    string
}

type TranscriptionOption func(*TranscriptionOptions)

func NewTranscriptionOptions(opts ...TranscriptionOption) TranscriptionOptions {
	options := TranscriptionOptions{Filename: DefaultFilename}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// DefaultFilename is used when the audio reference carries no usable name.
const DefaultFilename = "speech.webm"

func WithFilename(filename string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		if filename != "" {
			o.Filename = filename
		}
	}
}

func WithContentType(contentType string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.ContentType = contentType
	}
}

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithModel(model string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Model = model
	}
}
