package events

const (
	// KindContentPartAdded identifies a streamed assistant content part.
	KindContentPartAdded Kind = "response.content_part.added"
	// KindAudioTranscriptDelta identifies a streamed assistant speech
	// transcript fragment.
	KindAudioTranscriptDelta Kind = "response.audio_transcript.delta"
	// KindOutputAudioTranscriptDelta is the newer protocol name of
	// KindAudioTranscriptDelta.
	KindOutputAudioTranscriptDelta Kind = "response.output_audio_transcript.delta"
	// KindOutputItemDone identifies a finished output item.
	KindOutputItemDone Kind = "response.output_item.done"
)

// ContentPartAdded carries an append-only content fragment.
type ContentPartAdded struct {
	Base
	ItemID      string
	OutputIndex int
	Part        ContentPart
}

// NewContentPartAdded creates a content part added event.
func NewContentPartAdded(itemID string, outputIndex int, part ContentPart, opts ...BaseOption) ContentPartAdded {
	return ContentPartAdded{
		Base:        NewBase(KindContentPartAdded, opts...),
		ItemID:      itemID,
		OutputIndex: outputIndex,
		Part:        part,
	}
}

// AudioTranscriptDelta carries an append-only transcript fragment of
// assistant speech.
type AudioTranscriptDelta struct {
	Base
	ItemID      string
	OutputIndex int
	Delta       string
}

// NewAudioTranscriptDelta creates an audio transcript delta event.
func NewAudioTranscriptDelta(itemID string, outputIndex int, delta string, opts ...BaseOption) AudioTranscriptDelta {
	return AudioTranscriptDelta{
		Base:        NewBase(KindAudioTranscriptDelta, opts...),
		ItemID:      itemID,
		OutputIndex: outputIndex,
		Delta:       delta,
	}
}

// OutputItemDone carries an output item that finished generating.
type OutputItemDone struct {
	Base
	OutputIndex int
	Item        ConversationItem
}

// NewOutputItemDone creates an output item done event.
func NewOutputItemDone(outputIndex int, item ConversationItem, opts ...BaseOption) OutputItemDone {
	return OutputItemDone{Base: NewBase(KindOutputItemDone, opts...), OutputIndex: outputIndex, Item: item}
}
