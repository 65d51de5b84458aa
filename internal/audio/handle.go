package audio

import "context"

// Handle is the one playback resource a session may own at a time: a stream
// bound to a recorded clip or a speech utterance. Starting a new handle must
// retire the old one first; the manager enforces that.
type Handle interface {
	// Play begins or resumes audible output. It blocks only until playback
	// has been handed to the sink, not until the clip ends.
	Play(ctx context.Context) error
	// Stop releases the handle. Idempotent.
	Stop()
	// Resource identifies what the handle is bound to, used for cache
	// eligibility checks.
	Resource() string
}

// Sink is the low-level audio output: the last-resort decode path and the
// fire-and-forget cue path both go through it. Implementations decide what
// "output" means (a device, a client stream, nothing).
type Sink interface {
	// Running reports whether the output is unlocked and processing.
	Running() bool
	// Resume unlocks a suspended output. Called lazily once per manager
	// lifetime, on the first playback triggered by user interaction.
	Resume(ctx context.Context) error
	// PlayBytes plays raw fetched audio bytes, bypassing the handle
	// constructor path entirely.
	PlayBytes(ctx context.Context, data []byte) (Handle, error)
	// Cue emits a short synthesized click. It must not claim the handle
	// slot: cues are allowed to overlap whatever else is playing.
	Cue(ctx context.Context) error
}

// Synthesizer vocalizes text when no recorded resource exists. Speech
// synthesis is an external collaborator; only its boundary lives here.
type Synthesizer interface {
	Speak(ctx context.Context, text string) (Handle, error)
	// Cancel aborts any in-flight synthesis. Idempotent.
	Cancel()
}

// HandleFactory constructs a fresh playback handle bound to a resource
// reference. This is the primary (element-style) playback path.
type HandleFactory func(resource string) (Handle, error)

// NopSink is a sink with no output device. It reports running, swallows
// cues and plays bytes into inert handles, keeping the session flow usable
// without sound.
type NopSink struct{}

func (NopSink) Running() bool                    { return true }
func (NopSink) Resume(ctx context.Context) error { return nil }
func (NopSink) Cue(ctx context.Context) error    { return nil }

func (NopSink) PlayBytes(ctx context.Context, data []byte) (Handle, error) {
	return &nopHandle{}, nil
}

type nopHandle struct{}

func (*nopHandle) Play(ctx context.Context) error { return nil }
func (*nopHandle) Stop()                          {}
func (*nopHandle) Resource() string               { return "" }
