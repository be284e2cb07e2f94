package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStep(t *testing.T) {
	start := Frame{TX: 10, TY: 20, W: 200, H: 100}
	tests := []struct {
		handle Handle
		dx, dy float64
		want   Frame
	}{
		{HandleMove, 5, -5, Frame{TX: 15, TY: 15, W: 200, H: 100}},
		{HandleMidRight, 30, 99, Frame{TX: 10, TY: 20, W: 230, H: 100}},
		{HandleBottomMid, 99, 30, Frame{TX: 10, TY: 20, W: 200, H: 130}},
		{HandleBottomRight, -500, -500, Frame{TX: 10, TY: 20, W: MinWidth, H: MinHeight}},
		{HandleMidLeft, 50, 0, Frame{TX: 60, TY: 20, W: 150, H: 100}},
		{HandleTopMid, 0, -40, Frame{TX: 10, TY: -20, W: 200, H: 140}},
		{HandleTopLeft, 500, 500, Frame{TX: 190, TY: 110, W: MinWidth, H: MinHeight}},
		{HandleTopRight, 10, 10, Frame{TX: 10, TY: 30, W: 210, H: 90}},
		{HandleBottomLeft, -10, 10, Frame{TX: 0, TY: 20, W: 210, H: 110}},
	}
	for _, tt := range tests {
		t.Run(string(tt.handle), func(t *testing.T) {
			assert.Equal(t, tt.want, Step(tt.handle, start, tt.dx, tt.dy))
		})
	}
}

func TestHandleValid(t *testing.T) {
	for _, h := range ResizeHandles {
		assert.True(t, h.Valid(), h)
	}
	assert.True(t, HandleMove.Valid())
	for _, h := range []Handle{"", "mm", "x", "tlx", "lt", "zz"} {
		assert.False(t, h.Valid(), h)
	}
}

func TestParseTranslate(t *testing.T) {
	tests := []struct {
		in   string
		x, y float64
	}{
		{"translate(10px, 20px)", 10, 20},
		{"translate(-4.5px,0px)", -4.5, 0},
		{"rotate(5deg) translate(1px, 2px)", 1, 2},
		{"translate(10%, 20%)", 0, 0},
		{"translateX(10px)", 0, 0},
		{"", 0, 0},
		{"garbage", 0, 0},
	}
	for _, tt := range tests {
		x, y := ParseTranslate(tt.in)
		assert.Equal(t, tt.x, x, tt.in)
		assert.Equal(t, tt.y, y, tt.in)
	}
	assert.Equal(t, "translate(-3.5px, 12px)", FormatTranslate(-3.5, 12))
}

func TestKebabCase(t *testing.T) {
	tests := map[string]string{
		"color":               "color",
		"backgroundColor":     "background-color",
		"borderTopLeftRadius": "border-top-left-radius",
		"WebkitTransform":     "-webkit-transform",
		"font-size":           "font-size",
		"--accent":            "--accent",
	}
	for in, want := range tests {
		assert.Equal(t, want, KebabCase(in), in)
	}
}
