package audio

import (
	"context"
	"sync"

	"github.com/echolingo/listening-service/internal/utils"
)

// Manager owns at most one live playback handle at a time and enforces the
// stop-before-play ordering: Stop always completes, synchronously releasing
// ownership, before a Play call's strategy chain begins. Playback failures
// never propagate to callers; the answer flow must proceed without sound.
type Manager struct {
	mu        sync.Mutex
	log       utils.Logger
	sink      Sink
	tts       Synthesizer
	fetcher   Fetcher
	newHandle HandleFactory

	current  Handle
	cached   Handle
	unlocked bool
}

// Options configures a Manager. Sink defaults to NopSink; a nil Synthesizer
// disables the text path; a nil Fetcher or HandleFactory disables the
// corresponding strategy.
type Options struct {
	Sink          Sink
	Synthesizer   Synthesizer
	Fetcher       Fetcher
	HandleFactory HandleFactory
}

func NewManager(logger utils.Logger, opts Options) *Manager {
	sink := opts.Sink
	if sink == nil {
		sink = NopSink{}
	}
	return &Manager{
		log:       logger,
		sink:      sink,
		tts:       opts.Synthesizer,
		fetcher:   opts.Fetcher,
		newHandle: opts.HandleFactory,
	}
}

// Stop releases the current handle and cancels any in-flight synthesis.
// Idempotent; safe to call with nothing playing.
func (m *Manager) Stop() {
	m.mu.Lock()
	h := m.current
	m.current = nil
	tts := m.tts
	m.mu.Unlock()

	if h != nil {
		h.Stop()
	}
	if tts != nil {
		tts.Cancel()
	}
}

// Play produces audible output for a recorded resource or, failing that, a
// text string to vocalize. The previous playback is always stopped first.
// With neither a resource nor text it is a no-op. Total failure of every
// strategy is logged and absorbed.
func (m *Manager) Play(ctx context.Context, resource, text string) {
	m.Stop()

	if resource == "" && text == "" {
		return
	}

	m.ensureUnlocked(ctx)

	if resource != "" {
		if m.playResource(ctx, resource) {
			return
		}
		m.log.Warn("all playback strategies failed", "resource", resource)
	}
	if text != "" {
		m.speak(ctx, text)
	}
}

// Cue emits the countdown tick click through the sink's lowest-risk path.
// It does not claim the handle slot and never fails loudly.
func (m *Manager) Cue(ctx context.Context) {
	if err := m.sink.Cue(ctx); err != nil {
		m.log.Debug("tick cue failed", "error", err)
	}
}

// ensureUnlocked resumes a suspended output once per manager lifetime. The
// first Play is always user-initiated, which satisfies platforms that gate
// audio behind a gesture.
func (m *Manager) ensureUnlocked(ctx context.Context) {
	m.mu.Lock()
	if m.unlocked {
		m.mu.Unlock()
		return
	}
	m.unlocked = true
	m.mu.Unlock()

	if m.sink.Running() {
		return
	}
	if err := m.sink.Resume(ctx); err != nil {
		m.log.Warn("failed to resume audio output", "error", err)
	}
}

// playResource walks the ordered strategy chain, stopping at the first
// strategy that yields a playing handle.
func (m *Manager) playResource(ctx context.Context, resource string) bool {
	strategies := []struct {
		name string
		run  func(ctx context.Context, resource string) (Handle, error)
	}{
		{"cached-handle", m.reuseCached},
		{"fresh-handle", m.freshHandle},
		{"fetch-decode", m.fetchAndDecode},
	}

	for _, s := range strategies {
		h, err := s.run(ctx, resource)
		if err != nil {
			m.log.Debug("playback strategy failed",
				"strategy", s.name, "resource", resource, "error", err)
			continue
		}
		if err := h.Play(ctx); err != nil {
			m.log.Debug("playback start failed",
				"strategy", s.name, "resource", resource, "error", err)
			h.Stop()
			continue
		}
		m.adopt(h, s.name == "fresh-handle" || s.name == "cached-handle")
		return true
	}
	return false
}

func (m *Manager) reuseCached(ctx context.Context, resource string) (Handle, error) {
	m.mu.Lock()
	h := m.cached
	m.mu.Unlock()
	if h == nil || h.Resource() != resource {
		return nil, errNoCachedHandle
	}
	return h, nil
}

func (m *Manager) freshHandle(ctx context.Context, resource string) (Handle, error) {
	if m.newHandle == nil {
		return nil, errNoHandleFactory
	}
	return m.newHandle(resource)
}

// fetchAndDecode fetches the raw resource bytes and plays them through the
// sink directly, covering the CORS/format edge cases the handle path cannot.
func (m *Manager) fetchAndDecode(ctx context.Context, resource string) (Handle, error) {
	if m.fetcher == nil {
		return nil, errNoFetcher
	}
	data, err := m.fetcher.Fetch(ctx, resource)
	if err != nil {
		return nil, err
	}
	return m.sink.PlayBytes(ctx, data)
}

func (m *Manager) speak(ctx context.Context, text string) {
	if m.tts == nil {
		m.log.Debug("no synthesizer configured, skipping text playback")
		return
	}
	h, err := m.tts.Speak(ctx, text)
	if err != nil {
		m.log.Warn("speech synthesis failed", "error", err)
		return
	}
	if err := h.Play(ctx); err != nil {
		m.log.Warn("speech playback failed", "error", err)
		h.Stop()
		return
	}
	m.adopt(h, false)
}

// adopt installs h as the single live handle. Reusable handles are also kept
// as the cache candidate for the next Play of the same resource.
func (m *Manager) adopt(h Handle, cacheable bool) {
	m.mu.Lock()
	m.current = h
	if cacheable {
		m.cached = h
	}
	m.mu.Unlock()
}
