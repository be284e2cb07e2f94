package host

import "github.com/livetemplate/slidestudio/internal/protocol"

// Source identifies who last wrote the mirror.
type Source int

const (
	SourceNone Source = iota
	// SourceLocal is an optimistic update from a panel control.
	SourceLocal
	// SourceAgent is a selection report echoed by the agent.
	SourceAgent
)

func (s Source) String() string {
	switch s {
	case SourceLocal:
		return "local"
	case SourceAgent:
		return "agent"
	}
	return "none"
}

// Mirror is the host's copy of the agent's last reported selection. Local
// control input and agent echoes both write it; the last write wins. Every
// write bumps the revision so views can discard out-of-order renders.
type Mirror struct {
	sel    *protocol.Selection
	rev    uint64
	source Source
}

// Set replaces the mirrored selection.
func (m *Mirror) Set(src Source, sel protocol.Selection) {
	m.sel = &sel
	m.source = src
	m.rev++
}

// Update edits the mirrored selection in place. It reports false when
// nothing is mirrored.
func (m *Mirror) Update(src Source, fn func(s *protocol.Selection)) bool {
	if m.sel == nil {
		return false
	}
	next := *m.sel
	fn(&next)
	m.sel = &next
	m.source = src
	m.rev++
	return true
}

// Clear hides the selection. Clearing an empty mirror is a no-op.
func (m *Mirror) Clear(src Source) {
	if m.sel == nil {
		return
	}
	m.sel = nil
	m.source = src
	m.rev++
}

// Selection returns a copy of the mirrored selection, or nil.
func (m *Mirror) Selection() *protocol.Selection {
	if m.sel == nil {
		return nil
	}
	s := *m.sel
	return &s
}

func (m *Mirror) Revision() uint64 { return m.rev }
func (m *Mirror) Source() Source   { return m.source }

// View renders the mirror for the properties panel.
func (m *Mirror) View() protocol.PanelView {
	return protocol.PanelView{Selection: m.Selection(), Revision: m.rev}
}
