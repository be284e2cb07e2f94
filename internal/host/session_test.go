package host_test

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/slidestudio/internal/agent"
	"github.com/livetemplate/slidestudio/internal/host"
	"github.com/livetemplate/slidestudio/internal/protocol"
	"github.com/livetemplate/slidestudio/internal/sandbox"
)

// session wires a controller to real sandboxed rendering contexts.
type session struct {
	mu    sync.Mutex
	ctrl  *host.Controller
	codes map[string]string
	panel protocol.PanelView
	code  protocol.CodeView
}

func (s *session) Patches(string, []protocol.Patch) {}

func (s *session) AgentMessage(frame string, m protocol.AgentMessage) {
	s.ctrl.HandleAgent(frame, m)
}

func (s *session) CurrentCode(slide string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.codes[slide], nil
}

func (s *session) SetCurrentCode(slide, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[slide] = code
	return nil
}

func (s *session) LoadFrame(string, protocol.FrameLoad) {}

func (s *session) ShowPanel(p protocol.PanelView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panel = p
}

func (s *session) ShowCode(c protocol.CodeView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = c
}

func (s *session) snapshot() (protocol.PanelView, protocol.CodeView, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.panel, s.code, s.codes["s1"]
}

func TestDesignSessionRoundTrip(t *testing.T) {
	s := &session{codes: map[string]string{
		"s1": `<!DOCTYPE html><html><head><style>h1 { color: #6366f1; }</style></head><body><h1>Hello</h1><p>World</p></body></html>`,
	}}
	r := sandbox.New(s, agent.Options{}, false)
	defer r.Close()

	s.ctrl = host.New(host.RendererFunc(func(id, markup string) (host.Frame, error) {
		c, err := r.Open(id, markup)
		if err != nil {
			return nil, err
		}
		return c, nil
	}), s, s, host.Options{})

	require.NoError(t, s.ctrl.SwitchSlide("s1"))
	require.NoError(t, s.ctrl.SetDesignMode(true))
	assert.Equal(t, 1, r.Count())

	// The bundle sits inside body, so slide content keeps its indices.
	s.ctrl.Gesture(s.ctrl.FrameID(), protocol.Click{Path: protocol.Path{1, 0}})
	require.Eventually(t, func() bool {
		p, _, _ := s.snapshot()
		return p.Selection != nil
	}, 2*time.Second, 5*time.Millisecond)

	p, _, _ := s.snapshot()
	assert.Equal(t, "h1", p.Selection.Tag)
	assert.Equal(t, "#6366f1", p.Selection.Style.Color)

	v, _ := json.Marshal("#ff0000")
	require.NoError(t, s.ctrl.Control("color", v))

	require.Eventually(t, func() bool {
		_, _, stored := s.snapshot()
		return strings.Contains(stored, `style="color: #ff0000;"`)
	}, 2*time.Second, 5*time.Millisecond)

	_, code, stored := s.snapshot()
	assert.True(t, code.ReadOnly)
	assert.Equal(t, stored, code.Code)
	assert.True(t, strings.HasPrefix(stored, "<!doctype html>"))
	assert.NotContains(t, stored, "data-sfc")
	assert.Contains(t, stored, "<p>World</p>")
	assert.ErrorIs(t, s.ctrl.EditCode("<p>x</p>"), host.ErrDesignModeActive)

	require.NoError(t, s.ctrl.SetDesignMode(false))
	assert.Eventually(t, func() bool { return r.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, s.ctrl.EditCode("<p>x</p>"))
}
