package protocol

import (
	"strconv"
	"time"
)

// AudioFrame carries microphone PCM from the kiosk for one capture session.
type AudioFrame struct {
	Session    uint64 `json:"session"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

// Transcript is a recognized utterance for a capture session.
type Transcript struct {
	Session   uint64    `json:"session"`
	Text      string    `json:"text"`
	Locale    string    `json:"locale"`
	Timestamp time.Time `json:"timestamp"`
}

// AudioChunk is synthesized speech sent to the kiosk speaker.
type AudioChunk struct {
	Utterance  uint64 `json:"utterance"`
	Target     string `json:"target"`
	Sequence   int    `json:"sequence"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	PCM        []byte `json:"pcm"`
	Final      bool   `json:"final"`
}

type TTSStatus struct {
	Utterance uint64    `json:"utterance"`
	Target    string    `json:"target"`
	Completed bool      `json:"completed"`
	Timestamp time.Time `json:"timestamp"`
}

// Speaking drives the avatar between its idle and talking renditions.
type Speaking struct {
	Speaking  bool      `json:"speaking"`
	Utterance uint64    `json:"utterance"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderPlaced struct {
	Session   string    `json:"session"`
	Total     string    `json:"total"`
	Phone     string    `json:"phone"`
	Lines     int       `json:"lines"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectAudioFramePrefix = "audio.frame"
	SubjectTranscriptFinal  = "stt.text.final"
	SubjectTTSAudio         = "tts.audio"
	SubjectTTSDone          = "tts.done"
	SubjectUIState          = "ui.state"
	SubjectUISpeaking       = "ui.speaking"
	SubjectOrderPlaced      = "shop.order.placed"
)

// AudioFrameSubject is the subject a kiosk publishes frames of session on.
func AudioFrameSubject(session uint64) string {
	return SubjectAudioFramePrefix + "." + strconv.FormatUint(session, 10)
}
