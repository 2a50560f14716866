package transcript

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/koscakluka/ema-transcript/core/items"
	"github.com/koscakluka/ema-transcript/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var ErrNoTranscriber = errors.New("no fallback transcriber configured")

// Audio is a recorded audio payload referenced by a transcription event.
type Audio struct {
	Data        []byte
	ContentType string
	Filename    string
}

// AudioFetcher resolves an audio reference into its payload.
type AudioFetcher interface {
	FetchAudio(ctx context.Context, reference string) (Audio, error)
}

// HTTPAudioFetcher downloads audio references with a plain GET.
type HTTPAudioFetcher struct {
	Client *http.Client
}

func NewHTTPAudioFetcher() *HTTPAudioFetcher {
	return &HTTPAudioFetcher{Client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}}
}

func (f *HTTPAudioFetcher) FetchAudio(ctx context.Context, reference string) (Audio, error) {
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reference, nil)
	if err != nil {
		return Audio{}, fmt.Errorf("error creating HTTP request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return Audio{}, fmt.Errorf("error fetching audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Audio{}, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Audio{}, fmt.Errorf("error reading audio body: %w", err)
	}

	return Audio{
		Data:        data,
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    audioFilename(reference),
	}, nil
}

// audioFilename derives an upload filename from the reference path, the
// transcription providers detect the container from its extension.
func audioFilename(reference string) string {
	parsed, err := url.Parse(reference)
	if err != nil {
		return speechtotext.DefaultFilename
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || path.Ext(name) == "" {
		return speechtotext.DefaultFilename
	}
	return name
}

type fallbackRequest struct {
	generation uint64
	itemID     string
	transcript string
	audioURL   string
}

// fallbackBridge re-transcribes recorded audio and reconciles the result
// into the store. Results are only written back while the item still holds
// the transcript the request was made for.
type fallbackBridge struct {
	transcriber speechtotext.Transcriber
	fetcher     AudioFetcher
	options     []speechtotext.TranscriptionOption
}

func (b *fallbackBridge) enabled() bool {
	return b != nil && b.transcriber != nil
}

func (b *fallbackBridge) transcribe(ctx context.Context, request fallbackRequest) (string, error) {
	if !b.enabled() {
		return "", ErrNoTranscriber
	}

	audio, err := b.fetcher.FetchAudio(ctx, request.audioURL)
	if err != nil {
		return "", fmt.Errorf("failed to fetch audio: %w", err)
	}

	opts := append([]speechtotext.TranscriptionOption{
		speechtotext.WithFilename(audio.Filename),
		speechtotext.WithContentType(audio.ContentType),
	}, b.options...)
	text, err := b.transcriber.Transcribe(ctx, audio.Data, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe audio: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", speechtotext.ErrEmptyTranscript
	}
	return text, nil
}

// runFallback is the worker body launched for a single transcription. It
// never returns an error past the bridge, failures are recorded as an
// annotation on the item instead.
func (s *Session) runFallback(ctx context.Context, request fallbackRequest) error {
	ctx, span := tracer.Start(ctx, "fallback transcription")
	defer span.End()
	span.SetAttributes(
		attribute.String("item.id", request.itemID),
		attribute.Int64("session.generation", int64(request.generation)),
	)

	text, err := s.fallback.transcribe(ctx, request)
	if err != nil {
		outcome := "failed"
		if ctx.Err() != nil {
			outcome = "cancelled"
		}
		fallbackRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.WarnContext(ctx, "Fallback transcription failed, keeping original transcript",
			"item_id", request.itemID, "error", err)

		if outcome == "failed" {
			s.applyFallback(request, func(item *items.Item) {
				item.Annotate(items.AnnotationFallbackFailed)
			})
		}
		return nil
	}

	applied := s.applyFallback(request, func(item *items.Item) {
		item.Content = []items.ContentPart{items.NewTextPart(text)}
		item.Status = items.StatusCompleted
		item.RemoveAnnotation(items.AnnotationFallbackFailed)
		annotateLanguage(item)
		item.Annotate(items.AnnotationFallbackTranscribed)
	})

	outcome := "applied"
	if !applied {
		outcome = "discarded"
		logger.DebugContext(ctx, "Discarding stale fallback transcription", "item_id", request.itemID)
	}
	fallbackRuns.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	span.SetAttributes(attribute.String("fallback.outcome", outcome))
	return nil
}

// applyFallback writes to the item only while it belongs to the request's
// generation and still holds the original transcript.
func (s *Session) applyFallback(request fallbackRequest, update func(*items.Item)) bool {
	item, ok := s.store.mutate(request.generation, request.itemID, func(item *items.Item) bool {
		if item.Text() != request.transcript {
			return false
		}
		update(item)
		return true
	})
	if ok {
		s.emitItemUpdated(item)
	}
	return ok
}
