package assistant

import (
	"context"
	"errors"
	"sync"

	"fast3r/internal/logging"
	"fast3r/internal/types"
)

// Recorder state errors.
var (
	ErrAlreadyRecording = errors.New("a recording is already in progress")
	ErrNotRecording     = errors.New("no recording in progress")
)

// AudioSource captures audio between Start and Stop.
type AudioSource interface {
	Start(ctx context.Context) error
	Stop() (types.Attachment, error)
}

// RecorderState is idle or recording.
type RecorderState string

const (
	RecorderIdle      RecorderState = "idle"
	RecorderRecording RecorderState = "recording"
)

// Recorder is an explicit idle/recording state machine over an AudioSource.
// Start and Stop are the only transitions; a second Start is rejected.
type Recorder struct {
	mu     sync.Mutex
	state  RecorderState
	source AudioSource
}

// NewRecorder wraps source. A nil source makes every Start fail with
// RecordingUnavailable.
func NewRecorder(source AudioSource) *Recorder {
	return &Recorder{state: RecorderIdle, source: source}
}

// State returns the current state.
func (r *Recorder) State() RecorderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Start begins capturing.
func (r *Recorder) Start(ctx context.Context) error {
	const op = "assistant.Recorder.Start"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == RecorderRecording {
		return ErrAlreadyRecording
	}
	if r.source == nil {
		return types.NewError(types.KindRecordingUnavailable, op, errors.New("no audio source configured"))
	}
	if err := r.source.Start(ctx); err != nil {
		return types.NewError(types.KindRecordingUnavailable, op, err)
	}
	r.state = RecorderRecording
	logging.SessionDebug("recording started")
	return nil
}

// Stop ends capturing and returns the recorded audio. The recorder is idle
// afterwards even when the source fails.
func (r *Recorder) Stop() (types.Attachment, error) {
	const op = "assistant.Recorder.Stop"
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return types.Attachment{}, ErrNotRecording
	}
	r.state = RecorderIdle
	audio, err := r.source.Stop()
	if err != nil {
		return types.Attachment{}, types.NewError(types.KindRecordingUnavailable, op, err)
	}
	logging.SessionDebug("recording stopped: %d bytes", len(audio.Data))
	return audio, nil
}

// Discard ends an active recording and drops its audio. Idle recorders are
// left alone.
func (r *Recorder) Discard() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RecorderRecording {
		return
	}
	r.state = RecorderIdle
	if _, err := r.source.Stop(); err != nil {
		logging.SessionDebug("discarded recording: %v", err)
		return
	}
	logging.SessionDebug("recording discarded")
}
