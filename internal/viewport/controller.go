// Package viewport implements the pan and zoom state machine of the step
// canvas.
//
// The [Controller] consumes keyboard, pointer and wheel events and keeps a
// [State]: zoom percentage, pan offset and interaction [Mode]. Rendering
// layers read the resulting [Transform] for the step content and
// [Controller.GridOffset] for the background grid, which follows the pan
// but not the zoom.
//
// No operation fails. Out-of-range input is clamped and irrelevant input is
// ignored.
package viewport

import (
	"fmt"
	"math"
	"sync"
)

// Zoom limits and steps, in percent.
const (
	MinZoom     = 25.0
	MaxZoom     = 200.0
	DefaultZoom = 100.0
	ZoomStep    = 10.0

	// WheelZoomFactor converts wheel delta to zoom percent.
	WheelZoomFactor = 0.1
)

// KeySpace is the key code that arms hand panning.
const KeySpace = "Space"

// Mode is the interaction mode of the canvas.
type Mode int

const (
	// Idle means no pan gesture is armed or active.
	Idle Mode = iota
	// HandReady means Space is held and a primary drag will pan.
	HandReady
	// Panning means a drag is moving the canvas.
	Panning
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case HandReady:
		return "hand-ready"
	case Panning:
		return "panning"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// Cursor is the pointer cursor the canvas should show.
type Cursor string

const (
	CursorDefault  Cursor = "default"
	CursorGrab     Cursor = "grab"
	CursorGrabbing Cursor = "grabbing"
)

// Button identifies a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonMiddle
	ButtonSecondary
)

// Target is what a pointer-down landed on.
type Target int

const (
	// TargetBackground is the bare canvas.
	TargetBackground Target = iota
	// TargetContent is canvas content that is neither a step nor a control,
	// such as a connector line.
	TargetContent
	// TargetStep is a step card.
	TargetStep
	// TargetControl is an interactive control such as a zoom button.
	TargetControl
)

var buttonNames = map[Button]string{
	ButtonPrimary:   "primary",
	ButtonMiddle:    "middle",
	ButtonSecondary: "secondary",
}

var targetNames = map[Target]string{
	TargetBackground: "background",
	TargetContent:    "content",
	TargetStep:       "step",
	TargetControl:    "control",
}

func (b Button) String() string {
	if name, ok := buttonNames[b]; ok {
		return name
	}
	return fmt.Sprintf("Button(%d)", int(b))
}

// ParseButton converts a button name such as "middle" to a [Button].
func ParseButton(s string) (Button, error) {
	for b, name := range buttonNames {
		if name == s {
			return b, nil
		}
	}
	return 0, fmt.Errorf("unknown pointer button %q", s)
}

// UnmarshalText decodes a button by name.
func (b *Button) UnmarshalText(text []byte) error {
	parsed, err := ParseButton(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

func (t Target) String() string {
	if name, ok := targetNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Target(%d)", int(t))
}

// ParseTarget converts a target name such as "background" to a [Target].
func ParseTarget(s string) (Target, error) {
	for t, name := range targetNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown pointer target %q", s)
}

// UnmarshalText decodes a target by name.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := ParseTarget(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Point is a 2D offset in screen pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point {
	return Point{X: p.X + q.X, Y: p.Y + q.Y}
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return isFinite(p.X) && isFinite(p.Y)
}

// KeyEvent is a key-down or key-up.
type KeyEvent struct {
	Code string
	// Repeat is set for auto-repeated key-downs.
	Repeat bool
	// InTextInput is set when keyboard focus is in an editable field.
	InTextInput bool
}

// PointerEvent is a pointer press, move or release.
type PointerEvent struct {
	Button Button
	Target Target
	X, Y   float64
}

func (e PointerEvent) point() Point {
	return Point{X: e.X, Y: e.Y}
}

// WheelEvent is a scroll or pinch gesture.
type WheelEvent struct {
	DeltaX, DeltaY float64
	Ctrl, Meta     bool
}

// State is a snapshot of the controller.
type State struct {
	Zoom      float64 `json:"zoom"`
	Pan       Point   `json:"pan"`
	Mode      Mode    `json:"mode"`
	SpaceHeld bool    `json:"space_held"`
}

// Cursor returns the cursor for the state's mode.
func (s State) Cursor() Cursor {
	switch s.Mode {
	case Panning:
		return CursorGrabbing
	case HandReady:
		return CursorGrab
	default:
		return CursorDefault
	}
}

// Transform returns the content transform for the state.
func (s State) Transform() Transform {
	return Transform{Translate: s.Pan, Scale: s.Zoom / 100}
}

// Transform maps content coordinates to screen coordinates: scale first,
// then translate.
type Transform struct {
	Translate Point   `json:"translate"`
	Scale     float64 `json:"scale"`
}

// Apply maps a content point to the screen.
func (t Transform) Apply(p Point) Point {
	return Point{X: p.X*t.Scale + t.Translate.X, Y: p.Y*t.Scale + t.Translate.Y}
}

// String renders t in CSS transform syntax.
func (t Transform) String() string {
	return fmt.Sprintf("translate(%gpx, %gpx) scale(%g)", t.Translate.X, t.Translate.Y, t.Scale)
}

// Controller is the canvas interaction state machine. It is safe for
// concurrent use.
type Controller struct {
	mu        sync.Mutex
	zoom      float64
	pan       Point
	mode      Mode
	spaceHeld bool
	last      Point
}

// New returns a controller at default zoom with no pan.
func New() *Controller {
	return &Controller{zoom: DefaultZoom}
}

// KeyDown handles a key press. It returns true when the event was consumed
// and the host should suppress its default action.
func (c *Controller) KeyDown(e KeyEvent) bool {
	if e.Code != KeySpace || e.Repeat || e.InTextInput {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spaceHeld = true
	if c.mode == Idle {
		c.mode = HandReady
	}
	return true
}

// KeyUp handles a key release. Releasing Space ends any pan gesture
// immediately.
func (c *Controller) KeyUp(e KeyEvent) {
	if e.Code != KeySpace {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spaceHeld = false
	c.mode = Idle
}

// PointerDown handles a press and reports whether a pan started. Presses on
// steps and controls are left to them.
func (c *Controller) PointerDown(e PointerEvent) bool {
	if e.Target == TargetStep || e.Target == TargetControl || !e.point().IsFinite() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != HandReady && e.Button != ButtonMiddle && e.Target != TargetBackground {
		return false
	}
	c.mode = Panning
	c.last = e.point()
	return true
}

// PointerMove handles pointer motion. While panning the pan offset moves by
// the distance since the previous event.
func (c *Controller) PointerMove(e PointerEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != Panning {
		return
	}
	p := e.point()
	if !p.IsFinite() {
		return
	}
	pan := c.pan.Add(p.Sub(c.last))
	if !pan.IsFinite() {
		return
	}
	c.pan = pan
	c.last = p
}

// PointerUp ends a pan gesture.
func (c *Controller) PointerUp(PointerEvent) {
	c.endPan()
}

// PointerLeave ends a pan gesture when the pointer leaves the canvas.
func (c *Controller) PointerLeave() {
	c.endPan()
}

func (c *Controller) endPan() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode != Panning {
		return
	}
	if c.spaceHeld {
		c.mode = HandReady
	} else {
		c.mode = Idle
	}
}

// Wheel handles a wheel event. With ctrl or meta held it zooms, otherwise it
// pans. Events with non-finite deltas are ignored and not consumed; a pan
// that would overflow is consumed but leaves the offset unchanged.
func (c *Controller) Wheel(e WheelEvent) bool {
	delta := Point{X: e.DeltaX, Y: e.DeltaY}
	if !delta.IsFinite() {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e.Ctrl || e.Meta {
		c.zoom = clampZoom(c.zoom-e.DeltaY*WheelZoomFactor, c.zoom)
		return true
	}
	if pan := c.pan.Sub(delta); pan.IsFinite() {
		c.pan = pan
	}
	return true
}

// ZoomIn raises the zoom by [ZoomStep].
func (c *Controller) ZoomIn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = clampZoom(c.zoom+ZoomStep, c.zoom)
}

// ZoomOut lowers the zoom by [ZoomStep].
func (c *Controller) ZoomOut() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = clampZoom(c.zoom-ZoomStep, c.zoom)
}

// Reset restores default zoom and removes the pan. The interaction mode is
// kept.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = DefaultZoom
	c.pan = Point{}
}

// Blur handles loss of focus: Space is considered released and any gesture
// ends.
func (c *Controller) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.spaceHeld = false
	c.mode = Idle
}

// State returns a snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Zoom: c.zoom, Pan: c.pan, Mode: c.mode, SpaceHeld: c.spaceHeld}
}

// Transform returns the current content transform.
func (c *Controller) Transform() Transform {
	return c.State().Transform()
}

// GridOffset returns the background grid offset. It equals the pan.
func (c *Controller) GridOffset() Point {
	return c.State().Pan
}

// Cursor returns the current cursor.
func (c *Controller) Cursor() Cursor {
	return c.State().Cursor()
}

// clampZoom bounds z to [MinZoom, MaxZoom]. A NaN keeps the previous zoom.
func clampZoom(z, previous float64) float64 {
	if math.IsNaN(z) {
		return previous
	}
	return math.Min(MaxZoom, math.Max(MinZoom, z))
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
