package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strings"

	"github.com/koscakluka/ema-transcript/core/speechtotext"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultURL   = "https://api.openai.com/v1/audio/transcriptions"
	defaultModel = "whisper-1"
)

var ErrMissingAPIKey = errors.New("openai api key not found")

var _ speechtotext.Transcriber = (*TranscriptionClient)(nil)

// TranscriptionClient uploads recorded audio to the OpenAI transcription
// endpoint and returns the plain text result.
type TranscriptionClient struct {
	apiKey   string
	url      string
	model    string
	language string
	client   *http.Client
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithURL(url string) ClientOption {
	return func(c *TranscriptionClient) {
		c.url = url
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage sets the default ISO-639-1 language hint sent with every
// request.
func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		c.language = language
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *TranscriptionClient) {
		if client != nil {
			c.client = client
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		url:    defaultURL,
		model:  defaultModel,
		client: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		client.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(client)
	}

	if strings.TrimSpace(client.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return client, nil
}

func (c *TranscriptionClient) Transcribe(ctx context.Context, audio []byte, opts ...speechtotext.TranscriptionOption) (string, error) {
	ctx, span := tracer.Start(ctx, "transcribe recorded audio")
	defer span.End()

	options := speechtotext.NewTranscriptionOptions(opts...)
	if options.Model == "" {
		options.Model = c.model
	}
	if options.Language == "" {
		options.Language = c.language
	}
	span.SetAttributes(
		attribute.String("request.model", options.Model),
		attribute.String("request.language", options.Language),
		attribute.String("request.filename", options.Filename),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	body, contentType, err := encodeRequest(audio, options)
	if err != nil {
		err = fmt.Errorf("error encoding request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		err = fmt.Errorf("error creating HTTP request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		err = fmt.Errorf("error sending request: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		err := fmt.Errorf("non-OK HTTP status: %s", resp.Status)
		logger.WarnContext(ctx, "Transcription request rejected", "status", resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		err = fmt.Errorf("error reading response body: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	transcript := strings.TrimSpace(string(respBody))
	if transcript == "" {
		span.SetStatus(codes.Error, speechtotext.ErrEmptyTranscript.Error())
		return "", speechtotext.ErrEmptyTranscript
	}
	span.SetAttributes(attribute.Int("response.transcript_length", len(transcript)))
	return transcript, nil
}

func encodeRequest(audio []byte, options speechtotext.TranscriptionOptions) (io.Reader, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fileHeader := textproto.MIMEHeader{}
	fileHeader.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="file"; filename=%q`, options.Filename))
	contentType := options.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	fileHeader.Set("Content-Type", contentType)

	part, err := writer.CreatePart(fileHeader)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", err
	}

	fields := [][2]string{
		{"model", options.Model},
		{"response_format", "text"},
	}
	if options.Language != "" {
		fields = append(fields, [2]string{"language", options.Language})
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
