package model

import "strings"

type RecordingPhase string

const (
	PhaseIdle      RecordingPhase = "idle"
	PhaseRecording RecordingPhase = "recording"
	PhaseStopped   RecordingPhase = "stopped"
)

// RecordingState is an immutable snapshot of a capture session. Transitions
// copy the value; nothing holding a snapshot ever sees it change.
type RecordingState struct {
	Phase            RecordingPhase `json:"phase"`
	IsRecording      bool           `json:"isRecording"`
	Duration         int            `json:"duration"`
	RecordedAudioURL string         `json:"recordedAudioUrl,omitempty"`
	Finalizing       bool           `json:"finalizing"`
	IntentionText    string         `json:"intentionText"`

	// Image attachment
	ImageName       string `json:"imageName,omitempty"`
	ImagePreviewURL string `json:"imagePreviewUrl,omitempty"`
	ImageBase64     string `json:"-"`

	Message string `json:"message,omitempty"`
}

func NewRecordingState() RecordingState {
	return RecordingState{Phase: PhaseIdle}
}

func (s RecordingState) HasAudio() bool {
	return s.RecordedAudioURL != ""
}

func (s RecordingState) HasImage() bool {
	return s.ImageBase64 != ""
}

func (s RecordingState) TrimmedText() string {
	return strings.TrimSpace(s.IntentionText)
}
