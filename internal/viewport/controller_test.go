package viewport

import (
	"encoding/json"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var space = KeyEvent{Code: KeySpace}

func TestNew(t *testing.T) {
	c := New()

	st := c.State()

	assert.Equal(t, DefaultZoom, st.Zoom)
	assert.Equal(t, Point{}, st.Pan)
	assert.Equal(t, Idle, st.Mode)
	assert.Equal(t, CursorDefault, c.Cursor())
}

func TestController_KeyDown(t *testing.T) {
	tests := []struct {
		name         string
		event        KeyEvent
		wantConsumed bool
		wantMode     Mode
	}{
		{name: "space arms hand", event: space, wantConsumed: true, wantMode: HandReady},
		{name: "repeat ignored", event: KeyEvent{Code: KeySpace, Repeat: true}, wantMode: Idle},
		{name: "text input ignored", event: KeyEvent{Code: KeySpace, InTextInput: true}, wantMode: Idle},
		{name: "other key ignored", event: KeyEvent{Code: "KeyA"}, wantMode: Idle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()

			consumed := c.KeyDown(tt.event)

			assert.Equal(t, tt.wantConsumed, consumed)
			assert.Equal(t, tt.wantMode, c.State().Mode)
		})
	}
}

func TestController_PointerDown(t *testing.T) {
	tests := []struct {
		name      string
		spaceDown bool
		event     PointerEvent
		wantPan   bool
	}{
		{name: "primary on background", event: PointerEvent{Button: ButtonPrimary, Target: TargetBackground}, wantPan: true},
		{name: "primary on content", event: PointerEvent{Button: ButtonPrimary, Target: TargetContent}},
		{name: "middle on content", event: PointerEvent{Button: ButtonMiddle, Target: TargetContent}, wantPan: true},
		{name: "primary on content with space", spaceDown: true, event: PointerEvent{Button: ButtonPrimary, Target: TargetContent}, wantPan: true},
		{name: "step is never a pan target", spaceDown: true, event: PointerEvent{Button: ButtonPrimary, Target: TargetStep}},
		{name: "middle on step", event: PointerEvent{Button: ButtonMiddle, Target: TargetStep}},
		{name: "control is never a pan target", spaceDown: true, event: PointerEvent{Button: ButtonMiddle, Target: TargetControl}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			if tt.spaceDown {
				c.KeyDown(space)
			}

			started := c.PointerDown(tt.event)

			assert.Equal(t, tt.wantPan, started)
			if tt.wantPan {
				assert.Equal(t, Panning, c.State().Mode)
				assert.Equal(t, CursorGrabbing, c.Cursor())
			} else {
				assert.NotEqual(t, Panning, c.State().Mode)
			}
		})
	}
}

func TestController_DragAccumulatesPan(t *testing.T) {
	c := New()

	require.True(t, c.PointerDown(PointerEvent{Target: TargetBackground, X: 10, Y: 10}))
	c.PointerMove(PointerEvent{X: 15, Y: 12})
	c.PointerMove(PointerEvent{X: 30, Y: 0})
	c.PointerUp(PointerEvent{X: 30, Y: 0})

	assert.Equal(t, Point{X: 20, Y: -10}, c.State().Pan)
	assert.Equal(t, Idle, c.State().Mode)
}

func TestController_PanAccumulationIsAssociative(t *testing.T) {
	moves := []Point{{3, 4}, {-7, 2}, {11, -6}, {0.5, 0.25}}

	single := New()
	single.PointerDown(PointerEvent{Target: TargetBackground})
	var cursor Point
	for _, m := range moves {
		cursor = cursor.Add(m)
		single.PointerMove(PointerEvent{X: cursor.X, Y: cursor.Y})
	}

	split := New()
	split.PointerDown(PointerEvent{Target: TargetBackground})
	split.PointerMove(PointerEvent{X: cursor.X, Y: cursor.Y})

	assert.Equal(t, split.State().Pan, single.State().Pan)
	assert.Equal(t, cursor, single.State().Pan)
}

func TestController_MoveWithoutPanIsIgnored(t *testing.T) {
	c := New()

	c.PointerMove(PointerEvent{X: 100, Y: 100})

	assert.Equal(t, Point{}, c.State().Pan)
}

func TestController_SpaceReleaseHaltsPan(t *testing.T) {
	c := New()
	c.KeyDown(space)
	require.True(t, c.PointerDown(PointerEvent{Target: TargetContent, X: 0, Y: 0}))
	c.PointerMove(PointerEvent{X: 5, Y: 5})

	c.KeyUp(space)
	c.PointerMove(PointerEvent{X: 50, Y: 50})

	st := c.State()
	assert.Equal(t, Point{X: 5, Y: 5}, st.Pan)
	assert.Equal(t, Idle, st.Mode)
	assert.False(t, st.SpaceHeld)
}

func TestController_PointerUpReturnsToHandReadyWhileSpaceHeld(t *testing.T) {
	c := New()
	c.KeyDown(space)
	c.PointerDown(PointerEvent{Target: TargetContent})

	c.PointerUp(PointerEvent{})

	assert.Equal(t, HandReady, c.State().Mode)
	assert.Equal(t, CursorGrab, c.Cursor())
}

func TestController_PointerLeaveEndsPan(t *testing.T) {
	c := New()
	c.PointerDown(PointerEvent{Button: ButtonMiddle, Target: TargetContent})

	c.PointerLeave()
	c.PointerMove(PointerEvent{X: 9, Y: 9})

	assert.Equal(t, Idle, c.State().Mode)
	assert.Equal(t, Point{}, c.State().Pan)
}

func TestController_SpacePressedDuringMiddleDrag(t *testing.T) {
	c := New()
	c.PointerDown(PointerEvent{Button: ButtonMiddle, Target: TargetContent})

	c.KeyDown(space)
	assert.Equal(t, Panning, c.State().Mode)

	c.PointerUp(PointerEvent{})
	assert.Equal(t, HandReady, c.State().Mode)
}

func TestController_Blur(t *testing.T) {
	c := New()
	c.KeyDown(space)
	c.PointerDown(PointerEvent{Target: TargetContent})

	c.Blur()

	st := c.State()
	assert.Equal(t, Idle, st.Mode)
	assert.False(t, st.SpaceHeld)
}

func TestController_Wheel(t *testing.T) {
	tests := []struct {
		name     string
		events   []WheelEvent
		wantZoom float64
		wantPan  Point
	}{
		{
			name:     "plain wheel pans",
			events:   []WheelEvent{{DeltaX: 10, DeltaY: 30}},
			wantZoom: 100,
			wantPan:  Point{X: -10, Y: -30},
		},
		{
			name:     "ctrl wheel up zooms in",
			events:   []WheelEvent{{DeltaY: -100, Ctrl: true}},
			wantZoom: 110,
		},
		{
			name:     "meta wheel down zooms out",
			events:   []WheelEvent{{DeltaY: 250, Meta: true}},
			wantZoom: 75,
		},
		{
			name:     "zoom clamps high",
			events:   []WheelEvent{{DeltaY: -5000, Ctrl: true}},
			wantZoom: MaxZoom,
		},
		{
			name:     "zoom clamps low",
			events:   []WheelEvent{{DeltaY: 5000, Ctrl: true}},
			wantZoom: MinZoom,
		},
		{
			name:     "zoom wheel does not pan",
			events:   []WheelEvent{{DeltaX: 40, DeltaY: -10, Ctrl: true}},
			wantZoom: 101,
		},
		{
			name:     "pan is unbounded",
			events:   []WheelEvent{{DeltaY: 1e6}, {DeltaY: 1e6}},
			wantZoom: 100,
			wantPan:  Point{Y: -2e6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			for _, e := range tt.events {
				assert.True(t, c.Wheel(e))
			}

			st := c.State()
			assert.InDelta(t, tt.wantZoom, st.Zoom, 1e-9)
			assert.Equal(t, tt.wantPan, st.Pan)
		})
	}
}

func TestController_ZoomButtons(t *testing.T) {
	c := New()

	for i := 0; i < 5; i++ {
		c.ZoomIn()
	}
	assert.Equal(t, 150.0, c.State().Zoom)

	c.Wheel(WheelEvent{DeltaX: 3, DeltaY: 4})
	c.Reset()
	st := c.State()
	assert.Equal(t, 100.0, st.Zoom)
	assert.Equal(t, Point{}, st.Pan)
}

func TestController_ZoomAlwaysInBounds(t *testing.T) {
	c := New()
	ops := []func(){c.ZoomIn, c.ZoomOut, c.Reset}
	deltas := []float64{-900, 37, 1200, -3, 0.5}

	for i := 0; i < 200; i++ {
		ops[i%len(ops)]()
		if i%7 == 0 {
			for j := 0; j < 30; j++ {
				c.ZoomIn()
			}
		}
		if i%11 == 0 {
			for j := 0; j < 30; j++ {
				c.ZoomOut()
			}
		}
		c.Wheel(WheelEvent{DeltaY: deltas[i%len(deltas)], Ctrl: true})

		z := c.State().Zoom
		require.GreaterOrEqual(t, z, MinZoom)
		require.LessOrEqual(t, z, MaxZoom)
	}
}

func TestController_IgnoresNonFiniteInput(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	tests := []struct {
		name         string
		apply        func(c *Controller) bool
		wantConsumed bool
		wantZoom     float64
		wantPan      Point
		wantMode     Mode
	}{
		{
			name:     "NaN ctrl wheel keeps zoom",
			apply:    func(c *Controller) bool { return c.Wheel(WheelEvent{DeltaY: nan, Ctrl: true}) },
			wantZoom: 120,
		},
		{
			name:     "infinite ctrl wheel keeps zoom",
			apply:    func(c *Controller) bool { return c.Wheel(WheelEvent{DeltaY: -inf, Meta: true}) },
			wantZoom: 120,
		},
		{
			name:         "huge ctrl wheel clamps",
			apply:        func(c *Controller) bool { return c.Wheel(WheelEvent{DeltaY: 1.7e308, Ctrl: true}) },
			wantConsumed: true,
			wantZoom:     MinZoom,
		},
		{
			name: "NaN wheel pan is dropped",
			apply: func(c *Controller) bool {
				consumed := c.Wheel(WheelEvent{DeltaX: nan})
				c.Wheel(WheelEvent{DeltaX: 10})
				return consumed
			},
			wantZoom: 120,
			wantPan:  Point{X: -10},
		},
		{
			name: "overflowing wheel pan keeps last finite offset",
			apply: func(c *Controller) bool {
				c.Wheel(WheelEvent{DeltaX: 1.7e308})
				return c.Wheel(WheelEvent{DeltaX: 1.7e308})
			},
			wantConsumed: true,
			wantZoom:     120,
			wantPan:      Point{X: -1.7e308},
		},
		{
			name: "pointer down at NaN does not pan",
			apply: func(c *Controller) bool {
				return c.PointerDown(PointerEvent{Button: ButtonMiddle, Target: TargetContent, X: nan})
			},
			wantZoom: 120,
			wantMode: Idle,
		},
		{
			name: "infinite pointer move is dropped",
			apply: func(c *Controller) bool {
				started := c.PointerDown(PointerEvent{Button: ButtonMiddle, X: 10, Y: 10})
				c.PointerMove(PointerEvent{X: inf, Y: 10})
				c.PointerMove(PointerEvent{X: 15, Y: 20})
				return started
			},
			wantConsumed: true,
			wantZoom:     120,
			wantPan:      Point{X: 5, Y: 10},
			wantMode:     Panning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()
			c.ZoomIn()
			c.ZoomIn()

			consumed := tt.apply(c)

			st := c.State()
			assert.Equal(t, tt.wantConsumed, consumed)
			assert.InDelta(t, tt.wantZoom, st.Zoom, 1e-9)
			assert.Equal(t, tt.wantPan, st.Pan)
			assert.Equal(t, tt.wantMode, st.Mode)
			assert.True(t, st.Pan.IsFinite())
		})
	}
}

func TestTransform(t *testing.T) {
	c := New()
	c.ZoomOut()
	c.ZoomOut()
	c.Wheel(WheelEvent{DeltaX: -12, DeltaY: 8})

	tr := c.Transform()

	assert.Equal(t, Point{X: 12, Y: -8}, tr.Translate)
	assert.InDelta(t, 0.8, tr.Scale, 1e-9)
	assert.Equal(t, "translate(12px, -8px) scale(0.8)", tr.String())
	assert.Equal(t, Point{X: 92, Y: 72}, tr.Apply(Point{X: 100, Y: 100}))
	assert.Equal(t, Point{X: 12, Y: -8}, c.GridOffset(), "grid follows pan, not scale")
}

func TestState_JSON(t *testing.T) {
	c := New()
	c.KeyDown(space)

	data, err := json.Marshal(c.State())

	require.NoError(t, err)
	assert.JSONEq(t, `{"zoom":100,"pan":{"x":0,"y":0},"mode":"hand-ready","space_held":true}`, string(data))
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "hand-ready", HandReady.String())
	assert.Equal(t, "panning", Panning.String())
	assert.Equal(t, "Mode(9)", Mode(9).String())
}

func TestController_ConcurrentEvents(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Wheel(WheelEvent{DeltaX: 1})
		}()
		go func() {
			defer wg.Done()
			c.ZoomIn()
		}()
	}
	wg.Wait()

	st := c.State()
	assert.Equal(t, -50.0, st.Pan.X)
	assert.Equal(t, MaxZoom, st.Zoom)
}

func TestParseButtonAndTarget(t *testing.T) {
	for _, b := range []Button{ButtonPrimary, ButtonMiddle, ButtonSecondary} {
		got, err := ParseButton(b.String())
		require.NoError(t, err)
		assert.Equal(t, b, got)
	}
	for _, tg := range []Target{TargetBackground, TargetContent, TargetStep, TargetControl} {
		got, err := ParseTarget(tg.String())
		require.NoError(t, err)
		assert.Equal(t, tg, got)
	}

	_, err := ParseButton("left")
	assert.Error(t, err)
	_, err = ParseTarget("sky")
	assert.Error(t, err)

	var b Button
	require.NoError(t, b.UnmarshalText([]byte("middle")))
	assert.Equal(t, ButtonMiddle, b)
	assert.Equal(t, "Target(9)", Target(9).String())
}
