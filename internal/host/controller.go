// Package host is the parent-page side of the slide editor: it injects the
// editor bundle into the slide document, opens a rendering context for it,
// mirrors the agent's selection for the properties panel, turns panel input
// into agent commands and writes the agent's document emissions back to the
// slide store.
package host

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/livetemplate/slidestudio/internal/inject"
	"github.com/livetemplate/slidestudio/internal/protocol"
)

var (
	// ErrNoSelection is returned for panel input while nothing is selected.
	ErrNoSelection = errors.New("host: no selection")
	// ErrInvalidControl is returned for unknown controls or values outside
	// a control's fixed choices.
	ErrInvalidControl = errors.New("host: invalid control value")
	// ErrDesignModeActive is returned for code editor writes to a slide
	// whose design-mode context is live.
	ErrDesignModeActive = errors.New("host: slide is being edited in design mode")
	// ErrNoSlide is returned when no slide is active.
	ErrNoSlide = errors.New("host: no active slide")
)

// Frame is a live rendering context.
type Frame interface {
	Gesture(g protocol.Gesture)
	Send(cmd protocol.Command)
	Close()
}

// Renderer opens rendering contexts.
type Renderer interface {
	Open(frameID, markup string) (Frame, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(frameID, markup string) (Frame, error)

// Open calls f.
func (f RendererFunc) Open(frameID, markup string) (Frame, error) { return f(frameID, markup) }

// CodeStore holds the canonical slide documents.
type CodeStore interface {
	CurrentCode(slide string) (string, error)
	SetCurrentCode(slide, code string) error
}

// DesignLocks hands out design-mode ownership of slides across the
// controllers sharing one store. A slide has at most one owner.
type DesignLocks interface {
	// Acquire makes the caller the owner of slide, giving up any slide it
	// held before. It fails with ErrDesignModeActive while another owner
	// holds slide.
	Acquire(slide string) error
	// Release gives up the caller's slide, if any.
	Release()
}

// View is what the controller shows to the user.
type View interface {
	LoadFrame(frameID string, f protocol.FrameLoad)
	ShowPanel(p protocol.PanelView)
	ShowCode(c protocol.CodeView)
}

// Options configures a controller.
type Options struct {
	// Bundle is the editor markup injected into design-mode documents.
	Bundle string
	Debug  bool
	// Locks, when set, keeps other controllers from opening design mode on
	// a slide this controller is designing.
	Locks DesignLocks
	// NewFrameID overrides frame id generation.
	NewFrameID func() string
}

// Controller drives one editing session.
type Controller struct {
	renderer Renderer
	codes    CodeStore
	view     View
	opts     Options

	mu      sync.Mutex
	slide   string
	design  bool
	frameID string
	frame   Frame
	mirror  Mirror
	closed  bool
}

// New creates a controller with no active slide.
func New(r Renderer, codes CodeStore, view View, opts Options) *Controller {
	if opts.Bundle == "" {
		b, err := inject.Bundle()
		if err != nil {
			panic(fmt.Sprintf("host: editor bundle: %v", err))
		}
		opts.Bundle = b
	}
	if opts.NewFrameID == nil {
		opts.NewFrameID = uuid.NewString
	}
	return &Controller{renderer: r, codes: codes, view: view, opts: opts}
}

// Slide returns the active slide id.
func (c *Controller) Slide() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slide
}

// DesignMode reports whether design mode is on.
func (c *Controller) DesignMode() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.design
}

// FrameID returns the id of the live frame.
func (c *Controller) FrameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameID
}

// Panel returns the mirrored panel state.
func (c *Controller) Panel() protocol.PanelView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mirror.View()
}

// SwitchSlide makes slide active and loads a fresh frame for it.
func (c *Controller) SwitchSlide(slide string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slide = slide
	return c.reload()
}

// SetDesignMode toggles design mode and reloads the frame.
func (c *Controller) SetDesignMode(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.design == on && c.frame != nil {
		return nil
	}
	c.design = on
	return c.reload()
}

// Reload replaces the frame with one built from the stored document. Call it
// whenever the slide's code changed wholesale (undo, redo, external edit).
func (c *Controller) Reload() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reload()
}

// reload takes the design lock before reading the document, so no other
// writer lands between the read and the agent's first emission. When the
// slide is locked elsewhere the frame falls back to preview and the lock
// error is returned after it loads.
func (c *Controller) reload() error {
	if c.closed {
		return nil
	}
	c.teardown()
	if c.slide == "" {
		c.release()
		return ErrNoSlide
	}
	var busy error
	if c.design {
		if busy = c.acquire(c.slide); busy != nil {
			c.design = false
		}
	}
	if !c.design {
		c.release()
	}
	code, err := c.codes.CurrentCode(c.slide)
	if err != nil {
		c.release()
		return fmt.Errorf("host: load slide %s: %w", c.slide, err)
	}

	id := c.opts.NewFrameID()
	load := protocol.FrameLoad{Slide: c.slide, Design: c.design, SrcDoc: code}
	if c.design {
		load.SrcDoc = inject.Into(code, c.opts.Bundle)
		f, err := c.renderer.Open(id, load.SrcDoc)
		if err != nil {
			c.release()
			return fmt.Errorf("host: open frame for %s: %w", c.slide, err)
		}
		c.frame = f
	}
	c.frameID = id

	if c.opts.Debug {
		log.Printf("[Host] Frame %s for slide %s (design=%v)", id, c.slide, c.design)
	}
	c.view.LoadFrame(id, load)
	c.view.ShowCode(protocol.CodeView{Slide: c.slide, Code: code, ReadOnly: c.design})
	return busy
}

func (c *Controller) acquire(slide string) error {
	if c.opts.Locks == nil {
		return nil
	}
	return c.opts.Locks.Acquire(slide)
}

func (c *Controller) release() {
	if c.opts.Locks != nil {
		c.opts.Locks.Release()
	}
}

// teardown closes the live frame and hides the panel.
func (c *Controller) teardown() {
	if c.frame != nil {
		c.frame.Close()
		c.frame = nil
	}
	c.frameID = ""
	if c.mirror.Selection() != nil {
		c.mirror.Clear(SourceNone)
		c.view.ShowPanel(c.mirror.View())
	}
}

// HandleAgent applies a message the agent in frameID posted. Messages from
// frames that are no longer live are dropped.
func (c *Controller) HandleAgent(frameID string, m protocol.AgentMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frameID != c.frameID || c.frame == nil {
		if c.opts.Debug {
			log.Printf("[Host] Dropping %s from stale frame %s", m.Kind(), frameID)
		}
		return
	}

	switch m := m.(type) {
	case protocol.Selection:
		c.mirror.Set(SourceAgent, m)
		c.view.ShowPanel(c.mirror.View())
	case protocol.NoSelection:
		c.mirror.Clear(SourceAgent)
		c.view.ShowPanel(c.mirror.View())
	case protocol.DocumentChanged:
		if err := c.codes.SetCurrentCode(c.slide, m.HTML); err != nil {
			log.Printf("[Host] Failed to store slide %s: %v", c.slide, err)
			return
		}
		c.view.ShowCode(protocol.CodeView{Slide: c.slide, Code: m.HTML, ReadOnly: true})
	}
}

// Gesture forwards a bridge gesture to the live frame.
func (c *Controller) Gesture(frameID string, g protocol.Gesture) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if frameID != c.frameID || c.frame == nil {
		if c.opts.Debug {
			log.Printf("[Host] Dropping %s gesture for stale frame %s", g.GestureKind(), frameID)
		}
		return
	}
	c.frame.Gesture(g)
}

// Control applies one properties panel interaction: it sends exactly one
// command to the agent and updates the mirror optimistically.
func (c *Controller) Control(name string, value json.RawMessage) error {
	if name == ControlDeselect {
		return c.Deselect()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	sel := c.mirror.Selection()
	if c.frame == nil || sel == nil {
		return ErrNoSelection
	}
	if name == ControlText && !sel.HasText {
		return invalid(name, fmt.Errorf("<%s> has no editable text", sel.Tag))
	}
	e, err := resolveControl(name, value)
	if err != nil {
		return err
	}
	c.frame.Send(e.cmd)
	c.mirror.Update(SourceLocal, e.mirror)
	c.view.ShowPanel(c.mirror.View())
	return nil
}

// Deselect tells the agent to clear its selection and hides the panel
// without waiting for the echo.
func (c *Controller) Deselect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame != nil {
		c.frame.Send(protocol.Deselect{})
	}
	c.mirror.Clear(SourceLocal)
	c.view.ShowPanel(c.mirror.View())
	return nil
}

// Ping asks the agent to report its selection again.
func (c *Controller) Ping() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frame != nil {
		c.frame.Send(protocol.Ping{})
	}
}

// EditCode stores text typed into the code editor and refreshes the preview.
// Writes are refused while the slide is live in design mode, where the agent
// is the only writer.
func (c *Controller) EditCode(code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.slide == "" {
		return ErrNoSlide
	}
	if c.design {
		return ErrDesignModeActive
	}
	if err := c.codes.SetCurrentCode(c.slide, code); err != nil {
		return fmt.Errorf("host: store slide %s: %w", c.slide, err)
	}
	id := c.opts.NewFrameID()
	c.frameID = id
	c.view.LoadFrame(id, protocol.FrameLoad{Slide: c.slide, SrcDoc: code})
	return nil
}

// Close tears down the live frame. The controller ignores everything after.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.teardown()
	c.release()
	c.closed = true
}
