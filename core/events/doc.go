// Package events defines the typed realtime event contract.
//
// Every recognized wire kind maps to exactly one Go type. Kinds that are not
// recognized decode into Unrecognized so receivers can ignore them without
// failing.
//
// session events
//
//   - SessionCreated (session.created): a new conversation started; all
//     previous transcript state is discarded.
//   - SessionDisconnected (session.disconnected, websocket.disconnected): the
//     connection to the realtime API is gone.
//
// input_audio_buffer events
//
//   - SpeechStarted (input_audio_buffer.speech_started): the user started
//     speaking; the referenced item will hold the user's utterance.
//
// conversation events
//
//   - ItemCreated (conversation.item.created): an item was added to the
//     conversation with its authoritative content.
//   - TranscriptionCompleted
//     (conversation.item.input_audio_transcription.completed): final
//     transcript of a user audio item, optionally with a reference to the
//     recorded audio.
//
// response events
//
//   - ContentPartAdded (response.content_part.added): append-only content
//     fragment of an assistant item.
//   - AudioTranscriptDelta (response.audio_transcript.delta,
//     response.output_audio_transcript.delta): append-only transcript
//     fragment of assistant speech.
//   - OutputItemDone (response.output_item.done): an output item finished
//     generating, e.g. a function call with its arguments.
//
// call events
//
//   - CallEnded (call.ended): the call was ended explicitly.
package events
