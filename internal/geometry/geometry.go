// Package geometry derives the visual size of the slide surface. Slides are
// laid out at a fixed natural resolution and scaled as a whole, so the editor
// agent inside the frame never sees the zoom factor.
package geometry

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Natural slide resolution.
const (
	NaturalWidth  = 1280
	NaturalHeight = 720
)

// stagePadding is the margin kept around a fitted slide, in pixels.
const stagePadding = 32

// Steps are the fixed zoom levels, in percent, ascending.
var Steps = []float64{25, 50, 75, 100, 125, 150, 200}

// Geometry scales a slide of a given natural size.
type Geometry struct {
	Width  float64
	Height float64
}

// Default returns the 1280x720 geometry.
func Default() Geometry {
	return Geometry{Width: NaturalWidth, Height: NaturalHeight}
}

// New returns a geometry for the natural size, falling back to the defaults
// for non-positive dimensions.
func New(width, height float64) Geometry {
	g := Default()
	if width > 0 {
		g.Width = width
	}
	if height > 0 {
		g.Height = height
	}
	return g
}

// Frame is the visual placement of the slide on the editing stage.
type Frame struct {
	Percent float64 `json:"percent"`
	Scale   float64 `json:"scale"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
}

// FitPercent is the largest zoom at which the slide fits the stage with
// padding. An unmeasured stage yields 100.
func (g Geometry) FitPercent(stageW, stageH float64) float64 {
	if stageW <= 0 {
		return 100
	}
	return math.Min((stageW-stagePadding)/g.Width, (stageH-stagePadding)/g.Height) * 100
}

// ZoomIn returns the first step above current, or current at the top.
func ZoomIn(current float64) float64 {
	for _, s := range Steps {
		if s > current {
			return s
		}
	}
	return current
}

// ZoomOut returns the first step below current, or current at the bottom.
func ZoomOut(current float64) float64 {
	for i := len(Steps) - 1; i >= 0; i-- {
		if Steps[i] < current {
			return Steps[i]
		}
	}
	return current
}

// At places the slide at percent.
func (g Geometry) At(percent float64) Frame {
	scale := percent / 100
	return Frame{
		Percent: percent,
		Scale:   scale,
		Width:   g.Width * scale,
		Height:  g.Height * scale,
	}
}

// Action is a zoom control.
type Action string

const (
	ActionFit Action = "fit"
	ActionIn  Action = "in"
	ActionOut Action = "out"
)

// ParseAction accepts "fit", "in", "out" or a step percentage such as "125".
func ParseAction(s string) (Action, float64, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionFit, ActionIn, ActionOut:
		return a, 0, nil
	}
	pct, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil || pct <= 0 {
		return "", 0, fmt.Errorf("geometry: invalid zoom %q", s)
	}
	return "", pct, nil
}

// Zoom applies an action to the current effective percent on a stage of the
// given size. A fixed percentage is used as is.
func (g Geometry) Zoom(action Action, current, stageW, stageH float64) Frame {
	switch action {
	case ActionIn:
		return g.At(ZoomIn(current))
	case ActionOut:
		return g.At(ZoomOut(current))
	case ActionFit:
		return g.At(g.FitPercent(stageW, stageH))
	}
	return g.At(current)
}

// Presentation is the full-screen placement used by present mode.
type Presentation struct {
	Scale  float64 `json:"scale"`
	Width  int     `json:"width"`
	Height int     `json:"height"`
}

// Present fits the slide to the screen without padding. The visual size is
// rounded to whole pixels.
func (g Geometry) Present(screenW, screenH float64) Presentation {
	s := math.Min(screenW/g.Width, screenH/g.Height)
	if s <= 0 || math.IsNaN(s) || math.IsInf(s, 0) {
		s = 1
	}
	return Presentation{
		Scale:  s,
		Width:  int(math.Round(g.Width * s)),
		Height: int(math.Round(g.Height * s)),
	}
}
