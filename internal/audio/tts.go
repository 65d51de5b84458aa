package audio

import (
	"context"
	"sync"
)

// NopSynthesizer satisfies the speech boundary when no TTS backend is
// configured. Speak yields an inert handle so the fallback chain completes.
type NopSynthesizer struct{}

func (NopSynthesizer) Speak(ctx context.Context, text string) (Handle, error) {
	return &nopHandle{}, nil
}

func (NopSynthesizer) Cancel() {}

// RecordingSynthesizer captures requested utterances and cancellations for
// tests that assert on the speech path.
type RecordingSynthesizer struct {
	mu        sync.Mutex
	spoken    []string
	cancelled int
}

func (s *RecordingSynthesizer) Speak(ctx context.Context, text string) (Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return &nopHandle{}, nil
}

func (s *RecordingSynthesizer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled++
}

func (s *RecordingSynthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.spoken))
	copy(out, s.spoken)
	return out
}

func (s *RecordingSynthesizer) Cancelled() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}
