package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var ErrMalformedEvent = errors.New("malformed event")

type envelope struct {
	Type string `json:"type"`
}

type sessionCreatedPayload struct {
	Session struct {
		ID string `json:"id"`
	} `json:"session"`
}

type itemPayload struct {
	OutputIndex int              `json:"output_index"`
	Item        ConversationItem `json:"item"`
}

type itemReferencePayload struct {
	ItemID      string `json:"item_id"`
	OutputIndex int    `json:"output_index"`
}

type transcriptionPayload struct {
	ItemID     string `json:"item_id"`
	Transcript string `json:"transcript"`
	AudioURL   string `json:"audio_url"`
}

type contentPartPayload struct {
	itemReferencePayload
	Part ContentPart `json:"part"`
}

type deltaPayload struct {
	itemReferencePayload
	Delta string `json:"delta"`
}

// Decode parses a single wire event. Unknown event types decode into
// Unrecognized; syntax errors and payloads without a type are reported as
// ErrMalformedEvent.
func Decode(msg []byte, opts ...BaseOption) (Event, error) {
	var parsed envelope
	if err := json.Unmarshal(msg, &parsed); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal event type: %w", ErrMalformedEvent, err)
	}
	if strings.TrimSpace(parsed.Type) == "" {
		return nil, fmt.Errorf("%w: missing event type", ErrMalformedEvent)
	}

	base := NewBase(Kind(parsed.Type), opts...)
	switch base.Kind() {
	case KindSessionCreated:
		var payload sessionCreatedPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return SessionCreated{Base: base, SessionID: payload.Session.ID}, nil

	case KindSessionDisconnected, KindWebsocketDisconnected:
		return SessionDisconnected{Base: base}, nil

	case KindCallEnded:
		return CallEnded{Base: base}, nil

	case KindSpeechStarted:
		var payload itemReferencePayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return SpeechStarted{Base: base, ItemID: payload.ItemID}, nil

	case KindItemCreated:
		var payload itemPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return ItemCreated{Base: base, Item: payload.Item}, nil

	case KindTranscriptionCompleted:
		var payload transcriptionPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return TranscriptionCompleted{
			Base:       base,
			ItemID:     payload.ItemID,
			Transcript: payload.Transcript,
			AudioURL:   payload.AudioURL,
		}, nil

	case KindContentPartAdded:
		var payload contentPartPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return ContentPartAdded{
			Base:        base,
			ItemID:      payload.ItemID,
			OutputIndex: payload.OutputIndex,
			Part:        payload.Part,
		}, nil

	case KindAudioTranscriptDelta, KindOutputAudioTranscriptDelta:
		var payload deltaPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return AudioTranscriptDelta{
			Base:        base,
			ItemID:      payload.ItemID,
			OutputIndex: payload.OutputIndex,
			Delta:       payload.Delta,
		}, nil

	case KindOutputItemDone:
		var payload itemPayload
		if err := unmarshalPayload(msg, &payload, base.Kind()); err != nil {
			return nil, err
		}
		return OutputItemDone{Base: base, OutputIndex: payload.OutputIndex, Item: payload.Item}, nil
	}

	return Unrecognized{Base: base, Type: parsed.Type}, nil
}

func unmarshalPayload(msg []byte, payload any, kind Kind) error {
	if err := json.Unmarshal(msg, payload); err != nil {
		return fmt.Errorf("%w: failed to unmarshal %s payload: %w", ErrMalformedEvent, kind, err)
	}
	return nil
}
