package host

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/slidestudio/internal/inject"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

type fakeFrame struct {
	id       string
	markup   string
	gestures []protocol.Gesture
	cmds     []protocol.Command
	closed   bool
}

func (f *fakeFrame) Gesture(g protocol.Gesture) { f.gestures = append(f.gestures, g) }
func (f *fakeFrame) Send(cmd protocol.Command)  { f.cmds = append(f.cmds, cmd) }
func (f *fakeFrame) Close()                     { f.closed = true }

type fakeRenderer struct {
	frames []*fakeFrame
	err    error
}

func (r *fakeRenderer) Open(id, markup string) (Frame, error) {
	if r.err != nil {
		return nil, r.err
	}
	f := &fakeFrame{id: id, markup: markup}
	r.frames = append(r.frames, f)
	return f, nil
}

func (r *fakeRenderer) last() *fakeFrame {
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

type memCodes struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *memCodes) CurrentCode(slide string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[slide]
	if !ok {
		return "", fmt.Errorf("slide %s not found", slide)
	}
	return code, nil
}

func (m *memCodes) SetCurrentCode(slide, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[slide] = code
	return nil
}

type recordingView struct {
	mu     sync.Mutex
	loads  []protocol.FrameLoad
	ids    []string
	panels []protocol.PanelView
	codes  []protocol.CodeView
}

func (v *recordingView) LoadFrame(id string, f protocol.FrameLoad) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ids = append(v.ids, id)
	v.loads = append(v.loads, f)
}

func (v *recordingView) ShowPanel(p protocol.PanelView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.panels = append(v.panels, p)
}

func (v *recordingView) ShowCode(c protocol.CodeView) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.codes = append(v.codes, c)
}

func (v *recordingView) lastPanel() protocol.PanelView {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.panels) == 0 {
		return protocol.PanelView{}
	}
	return v.panels[len(v.panels)-1]
}

func (v *recordingView) lastCode() protocol.CodeView {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.codes) == 0 {
		return protocol.CodeView{}
	}
	return v.codes[len(v.codes)-1]
}

const slideA = `<!doctype html><html><head></head><body><h1>A</h1></body></html>`
const slideB = `<!doctype html><html><head></head><body><h1>B</h1></body></html>`

type fixture struct {
	ctrl     *Controller
	renderer *fakeRenderer
	codes    *memCodes
	view     *recordingView
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	n := 0
	f := &fixture{
		renderer: &fakeRenderer{},
		codes:    &memCodes{codes: map[string]string{"a": slideA, "b": slideB}},
		view:     &recordingView{},
	}
	f.ctrl = New(f.renderer, f.codes, f.view, Options{
		NewFrameID: func() string { n++; return fmt.Sprintf("frame-%d", n) },
	})
	require.NoError(t, f.ctrl.SwitchSlide("a"))
	return f
}

// selectH1 enters design mode and replays a selection report.
func (f *fixture) selectH1(t *testing.T) *fakeFrame {
	t.Helper()
	require.NoError(t, f.ctrl.SetDesignMode(true))
	fr := f.renderer.last()
	require.NotNil(t, fr)
	f.ctrl.HandleAgent(fr.id, protocol.Selection{
		Tag: "h1", Text: "A", HasText: true,
		Style: protocol.StyleSummary{Color: "#000000", FontSize: 32, FontWeight: "700", Opacity: 1},
	})
	return fr
}

func TestPreviewModeLoadsRawCode(t *testing.T) {
	f := newFixture(t)
	assert.Empty(t, f.renderer.frames, "preview opens no rendering context")
	require.Len(t, f.view.loads, 1)
	assert.Equal(t, protocol.FrameLoad{Slide: "a", SrcDoc: slideA}, f.view.loads[0])
	assert.Equal(t, protocol.CodeView{Slide: "a", Code: slideA}, f.view.lastCode())
}

func TestDesignModeInjectsBundle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetDesignMode(true))

	fr := f.renderer.last()
	require.NotNil(t, fr)
	assert.Equal(t, "frame-2", fr.id)
	assert.True(t, inject.Injected(fr.markup))

	load := f.view.loads[len(f.view.loads)-1]
	assert.True(t, load.Design)
	assert.Equal(t, fr.markup, load.SrcDoc, "browser and rendering context see the same document")
	assert.True(t, f.view.lastCode().ReadOnly)

	require.NoError(t, f.ctrl.SetDesignMode(true))
	assert.Len(t, f.renderer.frames, 1, "repeated toggle is a no-op")
}

func TestSelectionMirrorsIntoPanel(t *testing.T) {
	f := newFixture(t)
	f.selectH1(t)

	p := f.view.lastPanel()
	require.NotNil(t, p.Selection)
	assert.Equal(t, "h1", p.Selection.Tag)
	assert.Equal(t, SourceAgent, f.ctrl.mirror.Source())

	f.ctrl.HandleAgent(f.ctrl.FrameID(), protocol.NoSelection{})
	assert.Nil(t, f.view.lastPanel().Selection)
}

func TestStaleFrameMessagesDropped(t *testing.T) {
	f := newFixture(t)
	old := f.selectH1(t)
	require.NoError(t, f.ctrl.Reload())

	assert.True(t, old.closed)
	assert.Nil(t, f.view.lastPanel().Selection, "mirror cleared on teardown")

	f.ctrl.HandleAgent(old.id, protocol.Selection{Tag: "p"})
	f.ctrl.HandleAgent(old.id, protocol.DocumentChanged{HTML: "<!doctype html><html>stale</html>"})
	f.ctrl.Gesture(old.id, protocol.Click{Path: protocol.Path{1, 0}})

	assert.Nil(t, f.ctrl.Panel().Selection)
	code, _ := f.codes.CurrentCode("a")
	assert.Equal(t, slideA, code)
	assert.Empty(t, old.gestures)
	assert.Empty(t, f.renderer.last().gestures)
}

func TestGestureForwardedToLiveFrame(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetDesignMode(true))
	fr := f.renderer.last()
	f.ctrl.Gesture(fr.id, protocol.PointerOver{Path: protocol.Path{1, 0}})
	assert.Equal(t, []protocol.Gesture{protocol.PointerOver{Path: protocol.Path{1, 0}}}, fr.gestures)
}

func TestDocumentChangedUpdatesStore(t *testing.T) {
	f := newFixture(t)
	fr := f.selectH1(t)

	doc := `<!doctype html><html><head></head><body><h1 style="color: red;">A</h1></body></html>`
	f.ctrl.HandleAgent(fr.id, protocol.DocumentChanged{HTML: doc})

	code, err := f.codes.CurrentCode("a")
	require.NoError(t, err)
	assert.Equal(t, doc, code)
	assert.Equal(t, protocol.CodeView{Slide: "a", Code: doc, ReadOnly: true}, f.view.lastCode())
}

func TestEditCodeRespectsDesignMode(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.EditCode(slideB))
	code, _ := f.codes.CurrentCode("a")
	assert.Equal(t, slideB, code)
	assert.Equal(t, slideB, f.view.loads[len(f.view.loads)-1].SrcDoc)

	require.NoError(t, f.ctrl.SetDesignMode(true))
	err := f.ctrl.EditCode(slideA)
	assert.ErrorIs(t, err, ErrDesignModeActive)
	code, _ = f.codes.CurrentCode("a")
	assert.Equal(t, slideB, code)
}

func TestSwitchSlideTearsDown(t *testing.T) {
	f := newFixture(t)
	fr := f.selectH1(t)

	require.NoError(t, f.ctrl.SwitchSlide("b"))
	assert.True(t, fr.closed)
	assert.Nil(t, f.ctrl.Panel().Selection)
	assert.NotEqual(t, fr.id, f.ctrl.FrameID())
	assert.Equal(t, "b", f.ctrl.Slide())
	assert.Contains(t, f.renderer.last().markup, "<h1>B</h1>")

	err := f.ctrl.SwitchSlide("missing")
	assert.Error(t, err)
}

func TestRendererFailure(t *testing.T) {
	f := newFixture(t)
	f.renderer.err = fmt.Errorf("boom")
	assert.Error(t, f.ctrl.SetDesignMode(true))
	assert.Nil(t, f.ctrl.Panel().Selection)
}

func raw(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

func TestControls(t *testing.T) {
	tests := []struct {
		name    string
		control string
		value   any
		cmd     protocol.Command
		check   func(t *testing.T, s protocol.StyleSummary)
	}{
		{
			name: "color", control: "color", value: "#ff0000",
			cmd:   protocol.SetStyle{Property: "color", Value: "#ff0000"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, "#ff0000", s.Color) },
		},
		{
			name: "fill", control: "backgroundColor", value: "#10B981",
			cmd:   protocol.SetStyle{Property: "backgroundColor", Value: "#10B981"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, "#10b981", s.Background) },
		},
		{
			name: "font size clamps high", control: "fontSize", value: 500,
			cmd:   protocol.SetStyle{Property: "fontSize", Value: "120px"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, 120.0, s.FontSize) },
		},
		{
			name: "font size rounds", control: "fontSize", value: "23.6",
			cmd: protocol.SetStyle{Property: "fontSize", Value: "24px"},
		},
		{
			name: "font size clamps low", control: "fontSize", value: 2,
			cmd: protocol.SetStyle{Property: "fontSize", Value: "8px"},
		},
		{
			name: "weight", control: "fontWeight", value: "900",
			cmd:   protocol.SetStyle{Property: "fontWeight", Value: "900"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, "900", s.FontWeight) },
		},
		{
			name: "numeric weight", control: "fontWeight", value: 600,
			cmd: protocol.SetStyle{Property: "fontWeight", Value: "600"},
		},
		{
			name: "align", control: "textAlign", value: "justify",
			cmd:   protocol.SetStyle{Property: "textAlign", Value: "justify"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, "justify", s.TextAlign) },
		},
		{
			name: "letter spacing snaps", control: "letterSpacing", value: 1.3,
			cmd:   protocol.SetStyle{Property: "letterSpacing", Value: "1.5px"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, 1.5, s.LetterSpacing) },
		},
		{
			name: "letter spacing clamps", control: "letterSpacing", value: -9,
			cmd: protocol.SetStyle{Property: "letterSpacing", Value: "-5px"},
		},
		{
			name: "opacity", control: "opacity", value: 0.456,
			cmd:   protocol.SetStyle{Property: "opacity", Value: "0.46"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, 0.46, s.Opacity) },
		},
		{
			name: "opacity zero", control: "opacity", value: 0,
			cmd:   protocol.SetStyle{Property: "opacity", Value: "0"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, 0.0, s.Opacity) },
		},
		{
			name: "radius", control: "borderRadius", value: 150,
			cmd:   protocol.SetStyle{Property: "borderRadius", Value: "100px"},
			check: func(t *testing.T, s protocol.StyleSummary) { assert.Equal(t, 100.0, s.BorderRadius) },
		},
		{
			name: "reset position", control: "resetPosition",
			cmd: protocol.SetStyle{Property: "transform", Value: ""},
		},
		{
			name: "text", control: "text", value: "Hello\nWorld",
			cmd: protocol.SetText{Value: "Hello\nWorld"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			fr := f.selectH1(t)
			rev := f.ctrl.Panel().Revision

			var v json.RawMessage
			if tt.value != nil {
				v = raw(tt.value)
			}
			require.NoError(t, f.ctrl.Control(tt.control, v))
			require.Len(t, fr.cmds, 1, "exactly one command per control")
			assert.Equal(t, tt.cmd, fr.cmds[0])

			p := f.view.lastPanel()
			require.NotNil(t, p.Selection)
			assert.Greater(t, p.Revision, rev)
			assert.Equal(t, SourceLocal, f.ctrl.mirror.Source())
			if tt.check != nil {
				tt.check(t, p.Selection.Style)
			}
		})
	}
}

func TestControlErrors(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetDesignMode(true))
	assert.ErrorIs(t, f.ctrl.Control("color", raw("#fff")), ErrNoSelection)

	fr := f.selectH1(t)
	for _, tc := range []struct {
		name  string
		value any
	}{
		{"fontWeight", "500"},
		{"textAlign", "middle"},
		{"color", "not-a-color"},
		{"fontSize", "big"},
		{"zIndex", 3},
	} {
		assert.ErrorIs(t, f.ctrl.Control(tc.name, raw(tc.value)), ErrInvalidControl, tc.name)
	}
	assert.Empty(t, fr.cmds)
}

func TestTextControlNeedsSimpleText(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.ctrl.SetDesignMode(true))
	fr := f.renderer.last()
	f.ctrl.HandleAgent(fr.id, protocol.Selection{Tag: "div", HasText: false})

	err := f.ctrl.Control(ControlText, raw("replaced"))
	assert.ErrorIs(t, err, ErrInvalidControl)
	assert.Contains(t, err.Error(), "<div>")
	assert.Empty(t, fr.cmds)
	assert.Equal(t, SourceAgent, f.ctrl.mirror.Source())

	// Style controls still apply to structural elements.
	require.NoError(t, f.ctrl.Control(ControlOpacity, raw(0.5)))
	assert.Len(t, fr.cmds, 1)
}

// sharedLocks is an in-memory DesignLocks table for several controllers.
type sharedLocks struct {
	mu     sync.Mutex
	owners map[string]*lockHandle
}

type lockHandle struct {
	table *sharedLocks
}

func (s *sharedLocks) handle() *lockHandle {
	return &lockHandle{table: s}
}

func (h *lockHandle) Acquire(slide string) error {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	if owner, ok := h.table.owners[slide]; ok && owner != h {
		return ErrDesignModeActive
	}
	h.releaseLocked()
	h.table.owners[slide] = h
	return nil
}

func (h *lockHandle) Release() {
	h.table.mu.Lock()
	defer h.table.mu.Unlock()
	h.releaseLocked()
}

func (h *lockHandle) releaseLocked() {
	for slide, owner := range h.table.owners {
		if owner == h {
			delete(h.table.owners, slide)
		}
	}
}

func (s *sharedLocks) owner(slide string) *lockHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owners[slide]
}

func TestDesignModeLocksSlide(t *testing.T) {
	locks := &sharedLocks{owners: map[string]*lockHandle{}}
	codes := &memCodes{codes: map[string]string{"a": slideA, "b": slideB}}
	open := func(h *lockHandle) (*Controller, *fakeRenderer, *recordingView) {
		r, v := &fakeRenderer{}, &recordingView{}
		c := New(r, codes, v, Options{Locks: h})
		require.NoError(t, c.SwitchSlide("a"))
		return c, r, v
	}
	ha, hb := locks.handle(), locks.handle()
	a, _, _ := open(ha)
	b, rb, vb := open(hb)

	require.NoError(t, a.SetDesignMode(true))
	assert.Same(t, ha, locks.owner("a"))

	// The second controller falls back to preview.
	err := b.SetDesignMode(true)
	assert.ErrorIs(t, err, ErrDesignModeActive)
	assert.False(t, b.DesignMode())
	assert.Empty(t, rb.frames)
	assert.False(t, vb.loads[len(vb.loads)-1].Design)
	assert.False(t, vb.lastCode().ReadOnly)

	// Moving on gives the slide up.
	require.NoError(t, a.SwitchSlide("b"))
	assert.Nil(t, locks.owner("a"))
	assert.Same(t, ha, locks.owner("b"))
	require.NoError(t, b.SetDesignMode(true))
	assert.Same(t, hb, locks.owner("a"))

	require.NoError(t, b.SetDesignMode(false))
	assert.Nil(t, locks.owner("a"))
	a.Close()
	assert.Nil(t, locks.owner("b"))
}

func TestDeselectClearsImmediately(t *testing.T) {
	f := newFixture(t)
	fr := f.selectH1(t)

	require.NoError(t, f.ctrl.Control("deselect", nil))
	assert.Equal(t, []protocol.Command{protocol.Deselect{}}, fr.cmds)
	assert.Nil(t, f.view.lastPanel().Selection)
	assert.ErrorIs(t, f.ctrl.Control("fontSize", raw(20)), ErrNoSelection)
}

func TestAgentEchoWinsAfterLocalEdit(t *testing.T) {
	f := newFixture(t)
	fr := f.selectH1(t)
	require.NoError(t, f.ctrl.Control("fontSize", raw(40)))
	assert.Equal(t, 40.0, f.ctrl.Panel().Selection.Style.FontSize)

	f.ctrl.HandleAgent(fr.id, protocol.Selection{Tag: "h1", Style: protocol.StyleSummary{FontSize: 41}})
	assert.Equal(t, 41.0, f.ctrl.Panel().Selection.Style.FontSize)
	assert.Equal(t, SourceAgent, f.ctrl.mirror.Source())
}

func TestCloseIgnoresFurtherWork(t *testing.T) {
	f := newFixture(t)
	fr := f.selectH1(t)
	f.ctrl.Close()
	assert.True(t, fr.closed)

	f.ctrl.HandleAgent(fr.id, protocol.Selection{Tag: "p"})
	assert.Nil(t, f.ctrl.Panel().Selection)
	assert.NoError(t, f.ctrl.Reload())
	assert.Len(t, f.renderer.frames, 1)
}
