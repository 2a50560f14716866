package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	api "github.com/deepgram/deepgram-go-sdk/pkg/api/listen/v1/websocket/interfaces"
	"github.com/gorilla/websocket"
	"github.com/koscakluka/ema-transcript/core/speechtotext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	defaultListenURL = "wss://api.deepgram.com/v1/listen"
	defaultModel     = "nova-3"
	defaultLanguage  = "multi"

	audioChunkSize = 8 * 1024
)

var ErrMissingAPIKey = errors.New("deepgram api key not found")

var _ speechtotext.Transcriber = (*TranscriptionClient)(nil)

// TranscriptionClient transcribes recorded audio through the Deepgram live
// listen API. Audio is streamed in chunks followed by a CloseStream request,
// and the final results are collected until Deepgram closes the socket.
type TranscriptionClient struct {
	apiKey    string
	listenURL string
	model     string
	language  string
	dialer    *websocket.Dialer
}

type ClientOption func(*TranscriptionClient)

func WithAPIKey(apiKey string) ClientOption {
	return func(c *TranscriptionClient) {
		c.apiKey = apiKey
	}
}

func WithListenURL(listenURL string) ClientOption {
	return func(c *TranscriptionClient) {
		c.listenURL = listenURL
	}
}

func WithModel(model string) ClientOption {
	return func(c *TranscriptionClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithLanguage sets the default language hint. Deepgram's "multi" enables
// multilingual code-switching.
func WithLanguage(language string) ClientOption {
	return func(c *TranscriptionClient) {
		if language != "" {
			c.language = language
		}
	}
}

func NewTranscriptionClient(opts ...ClientOption) (*TranscriptionClient, error) {
	client := &TranscriptionClient{
		listenURL: defaultListenURL,
		model:     defaultModel,
		language:  defaultLanguage,
		dialer:    websocket.DefaultDialer,
	}
	if apiKey, ok := os.LookupEnv("DEEPGRAM_API_KEY"); ok {
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
	connOptions := connectionOptions{model: c.model, language: c.language}
	if options.Model != "" {
		connOptions.model = options.Model
	}
	if options.Language != "" {
		connOptions.language = options.Language
	}
	span.SetAttributes(
		attribute.String("request.model", connOptions.model),
		attribute.String("request.language", connOptions.language),
		attribute.Int("request.audio_bytes", len(audio)),
	)

	conn, err := c.connectWebsocket(ctx, connOptions)
	if err != nil {
		err = fmt.Errorf("failed to open websocket: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	defer conn.Close()

	stopCancelHook := make(chan struct{})
	defer close(stopCancelHook)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stopCancelHook:
		}
	}()

	writeDone := make(chan error, 1)
	go func() { writeDone <- streamAudio(conn, audio) }()

	transcript, err := readTranscript(ctx, conn)
	if writeErr := <-writeDone; writeErr != nil && err == nil {
		err = writeErr
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if transcript == "" {
		span.SetStatus(codes.Error, speechtotext.ErrEmptyTranscript.Error())
		return "", speechtotext.ErrEmptyTranscript
	}

	span.SetAttributes(attribute.Int("response.transcript_length", len(transcript)))
	return transcript, nil
}

type connectionOptions struct {
	model    string
	language string
}

func (c *TranscriptionClient) connectWebsocket(ctx context.Context, options connectionOptions) (*websocket.Conn, error) {
	listenURL, err := url.Parse(c.listenURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listen url: %w", err)
	}
	queryParams := listenURL.Query()
	queryParams.Set("model", options.model)
	queryParams.Set("language", options.language)
	queryParams.Set("smart_format", "true")
	queryParams.Set("punctuate", "true")
	listenURL.RawQuery = queryParams.Encode()

	conn, _, err := c.dialer.DialContext(ctx, listenURL.String(),
		http.Header{"Authorization": {"Token " + c.apiKey}})
	if err != nil {
		return nil, fmt.Errorf("failed to open socket connection to deepgram: %w", err)
	}

	return conn, nil
}

func streamAudio(conn *websocket.Conn, audio []byte) error {
	for start := 0; start < len(audio); start += audioChunkSize {
		end := min(start+audioChunkSize, len(audio))
		if err := conn.WriteMessage(websocket.BinaryMessage, audio[start:end]); err != nil {
			return fmt.Errorf("failed to write to deepgram client: %w", err)
		}
	}

	if err := conn.WriteJSON(struct {
		Type string `json:"type"`
	}{Type: string(api.TypeCloseStreamResponse)}); err != nil {
		return fmt.Errorf("failed to close deepgram stream: %w", err)
	}
	return nil
}

func readTranscript(ctx context.Context, conn *websocket.Conn) (string, error) {
	segments := []string{}
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				break
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			return "", fmt.Errorf("failed to read deepgram websocket message: %w", err)
		}
		if msgType == websocket.BinaryMessage {
			continue
		}

		segment, err := finalSegment(msg)
		if err != nil {
			logger.WarnContext(ctx, "Failed to unmarshal deepgram message", "error", err)
			continue
		}
		if segment != "" {
			segments = append(segments, segment)
		}
	}

	return strings.Join(segments, " "), nil
}

// finalSegment extracts the transcript of a final Results message. Any other
// message yields an empty segment.
func finalSegment(msg []byte) (string, error) {
	var parsedMsg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &parsedMsg); err != nil {
		return "", err
	}

	if api.TypeResponse(parsedMsg.Type) != api.TypeMessageResponse {
		return "", nil
	}

	var msgResp api.MessageResponse
	if err := json.Unmarshal(msg, &msgResp); err != nil {
		return "", err
	}
	if !msgResp.IsFinal || len(msgResp.Channel.Alternatives) == 0 {
		return "", nil
	}

	return strings.TrimSpace(msgResp.Channel.Alternatives[0].Transcript), nil
}
