package protocol

import "encoding/json"

// Channel multiplexes the studio session websocket.
type Channel string

const (
	ChannelGesture Channel = "gesture" // browser bridge -> rendering context
	ChannelPatch   Channel = "patch"   // rendering context -> browser bridge
	ChannelFrame   Channel = "frame"   // server -> browser: load a new frame
	ChannelPanel   Channel = "panel"   // server -> browser: properties panel mirror
	ChannelControl Channel = "control" // browser -> server: panel interaction
	ChannelCode    Channel = "code"    // both ways: code editor text
	ChannelMode    Channel = "mode"    // browser -> server: toggle design mode
	ChannelSlide   Channel = "slide"   // browser -> server: switch active slide
	ChannelDeck    Channel = "deck"    // server -> browser: deck outline changed
	ChannelReload  Channel = "reload"  // server -> browser: deck reloaded from storage
	ChannelError   Channel = "error"   // server -> browser: rejected request
)

// Envelope is one multiplexed websocket message. Frame identifies the
// rendering context a gesture or patch belongs to; messages for a frame
// that is no longer live are dropped by the receiver.
type Envelope struct {
	Channel Channel         `json:"ch"`
	Frame   string          `json:"frame,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Control is a properties panel interaction sent by the browser.
type Control struct {
	Name  string          `json:"name"`
	Value json.RawMessage `json:"value,omitempty"`
}

// FrameLoad tells the browser to replace the rendering context.
type FrameLoad struct {
	Slide  string `json:"slide"`
	Design bool   `json:"design"`
	SrcDoc string `json:"srcdoc"`
}

// CodeView is the code editor's text and whether it accepts edits.
type CodeView struct {
	Slide    string `json:"slide"`
	Code     string `json:"code"`
	ReadOnly bool   `json:"readonly"`
}

// PanelView is the properties panel state; a nil Selection hides the panel.
type PanelView struct {
	Selection *Selection `json:"selection"`
	Revision  uint64     `json:"rev"`
}

// NewEnvelope marshals v into an envelope on the given channel.
func NewEnvelope(ch Channel, frame string, v any) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Channel: ch, Frame: frame, Data: data}, nil
}
