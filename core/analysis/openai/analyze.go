package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-transcript/core/analysis"
	"github.com/koscakluka/ema-transcript/core/items"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultURL   = "https://api.openai.com/v1/chat/completions"
	defaultModel = "gpt-4o"
)

var (
	ErrMissingAPIKey = errors.New("openai api key not found")
	ErrEmptyResponse = errors.New("empty analysis response")
)

var _ analysis.Analyzer = (*Analyzer)(nil)

const defaultInstructions = "You are an expert analyst reviewing a recorded phone call between a caller and an AI assistant. " +
	"Summarise the conversation, list the key points the caller made, note any concerns and give an overall recommendation."

const nonDefaultLanguageInstructions = "IMPORTANT: This transcript contains content in a non-English language. " +
	"Analyse it as well as you can and write the report in English."

// Report is the structured output requested from the model.
type Report struct {
	Summary        string   `json:"summary" jsonschema:"description=Short summary of the conversation"`
	KeyPoints      []string `json:"key_points" jsonschema:"description=Key facts and statements made by the caller"`
	Concerns       []string `json:"concerns" jsonschema:"description=Red flags or open questions or an empty list"`
	Recommendation string   `json:"recommendation" jsonschema:"description=Overall recommendation with a brief justification"`
}

// String renders the report as plain text with headings.
func (r Report) String() string {
	var b strings.Builder
	b.WriteString("Summary\n")
	b.WriteString(r.Summary)
	b.WriteString("\n")

	writeList := func(heading string, entries []string) {
		b.WriteString("\n" + heading + "\n")
		if len(entries) == 0 {
			b.WriteString("- None\n")
			return
		}
		for _, entry := range entries {
			b.WriteString("- " + entry + "\n")
		}
	}
	writeList("Key points", r.KeyPoints)
	writeList("Concerns", r.Concerns)

	b.WriteString("\nRecommendation\n")
	b.WriteString(r.Recommendation)
	b.WriteString("\n")
	return b.String()
}

// Analyzer asks an OpenAI chat model for a structured report of the call.
type Analyzer struct {
	apiKey       string
	url          string
	model        string
	instructions string
	client       *http.Client
}

type AnalyzerOption func(*Analyzer)

func WithAPIKey(apiKey string) AnalyzerOption {
	return func(a *Analyzer) {
		a.apiKey = apiKey
	}
}

func WithURL(url string) AnalyzerOption {
	return func(a *Analyzer) {
		a.url = url
	}
}

func WithModel(model string) AnalyzerOption {
	return func(a *Analyzer) {
		if model != "" {
			a.model = model
		}
	}
}

// WithInstructions replaces the system instructions of the analysis.
func WithInstructions(instructions string) AnalyzerOption {
	return func(a *Analyzer) {
		if instructions != "" {
			a.instructions = instructions
		}
	}
}

func NewAnalyzer(opts ...AnalyzerOption) (*Analyzer, error) {
	analyzer := &Analyzer{
		url:          defaultURL,
		model:        defaultModel,
		instructions: defaultInstructions,
		client:       &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	if apiKey, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		analyzer.apiKey = apiKey
	}
	for _, opt := range opts {
		opt(analyzer)
	}

	if strings.TrimSpace(analyzer.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	return analyzer, nil
}

func (a *Analyzer) Analyze(ctx context.Context, messages []items.Item) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt analysis")
	defer span.End()

	transcript := analysis.FormatTranscript(messages)
	if transcript == "" {
		return "", analysis.ErrNoMessages
	}

	instructions := a.instructions
	if analysis.HasNonDefaultLanguage(messages) {
		instructions += "\n\n" + nonDefaultLanguageInstructions
	}

	report, err := a.prompt(ctx, instructions, "Transcript:\n"+transcript)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return report.String(), nil
}

func (a *Analyzer) prompt(ctx context.Context, instructions, prompt string) (*Report, error) {
	reflector := jsonschema.Reflector{DoNotReference: true}
	schema := reflector.Reflect(&Report{})
	schema.Version = ""

	reqBody := requestBody{
		Model: a.model,
		Messages: []message{
			{Role: "system", Content: instructions},
			{Role: "user", Content: prompt},
		},
		ResponseFormat: &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchemaFormat{
				Name:   reflect.TypeOf(Report{}).Name(),
				Schema: schema,
				Strict: true,
			},
		},
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("request.model", a.model))
	if schemaBytes, err := schema.MarshalJSON(); err == nil {
		span.SetAttributes(attribute.String("request.schema", string(schemaBytes)))
	}

	requestBodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("error marshalling JSON: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewBuffer(requestBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("error creating HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("response.status_code", resp.StatusCode))
	if resp.StatusCode != http.StatusOK {
		if errorBody, err := io.ReadAll(resp.Body); err == nil {
			span.SetAttributes(attribute.String("response.error", string(errorBody)))
		}
		logger.WarnContext(ctx, "Analysis request rejected", "status", resp.Status)
		return nil, fmt.Errorf("non-OK HTTP status: %s", resp.Status)
	}

	respBodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	var parsed chatResponseBody
	if err := json.Unmarshal(respBodyBytes, &parsed); err != nil {
		return nil, fmt.Errorf("error unmarshalling response body: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := parsed.Choices[0].Message
	if choice.Refusal != "" {
		return nil, fmt.Errorf("analysis refused: %s", choice.Refusal)
	}
	content := choice.Content
	if split := strings.Split(content, "```"); len(split) > 1 {
		content = strings.TrimPrefix(split[1], "json")
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyResponse
	}

	var report Report
	if err := json.Unmarshal([]byte(content), &report); err != nil {
		return nil, fmt.Errorf("error unmarshalling report: %w", err)
	}
	return &report, nil
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type requestBody struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string            `json:"type"`
	JSONSchema *jsonSchemaFormat `json:"json_schema,omitempty"`
}

type jsonSchemaFormat struct {
	Name   string             `json:"name"`
	Schema *jsonschema.Schema `json:"schema"`
	Strict bool               `json:"strict"`
}

type chatResponseBody struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}
