package events

const (
	// KindSpeechStarted identifies start of user speech activity.
	KindSpeechStarted Kind = "input_audio_buffer.speech_started"
	// KindItemCreated identifies a conversation item with authoritative content.
	KindItemCreated Kind = "conversation.item.created"
	// KindTranscriptionCompleted identifies the final transcript of a user
	// audio item.
	KindTranscriptionCompleted Kind = "conversation.item.input_audio_transcription.completed"
)

// ConversationItem is the item object carried by item events.
type ConversationItem struct {
	ID      string        `json:"id"`
	Type    string        `json:"type"`
	Role    string        `json:"role,omitempty"`
	Status  string        `json:"status,omitempty"`
	Content []ContentPart `json:"content,omitempty"`

	CallID    string `json:"call_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ContentPart is a content entry of a conversation item. Audio parts carry
// their text in Transcript instead of Text.
type ContentPart struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// Value returns the textual value of the part.
func (p ContentPart) Value() string {
	if p.Text != "" {
		return p.Text
	}
	return p.Transcript
}

// IsText reports whether the part is a text part.
func (p ContentPart) IsText() bool {
	switch p.Type {
	case "text", "input_text", "output_text":
		return true
	}
	return false
}

// SpeechStarted marks when user speech activity starts.
type SpeechStarted struct {
	Base
	ItemID string
}

// NewSpeechStarted creates a speech started event.
func NewSpeechStarted(itemID string, opts ...BaseOption) SpeechStarted {
	return SpeechStarted{Base: NewBase(KindSpeechStarted, opts...), ItemID: itemID}
}

// ItemCreated carries a conversation item with its authoritative content.
type ItemCreated struct {
	Base
	Item ConversationItem
}

// NewItemCreated creates an item created event.
func NewItemCreated(item ConversationItem, opts ...BaseOption) ItemCreated {
	return ItemCreated{Base: NewBase(KindItemCreated, opts...), Item: item}
}

// TranscriptionCompleted carries the final transcript of a user audio item.
type TranscriptionCompleted struct {
	Base
	ItemID     string
	Transcript string
	// AudioURL references the recorded audio of the item, if available.
	AudioURL string
}

// NewTranscriptionCompleted creates a transcription completed event.
func NewTranscriptionCompleted(itemID, transcript, audioURL string, opts ...BaseOption) TranscriptionCompleted {
	return TranscriptionCompleted{
		Base:       NewBase(KindTranscriptionCompleted, opts...),
		ItemID:     itemID,
		Transcript: transcript,
		AudioURL:   audioURL,
	}
}
