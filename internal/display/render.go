package display

import (
	"image"

	"github.com/anastasop/snapview/internal/layout"
)

// Text shown in the window.
const (
	Title       = "Image Viewer"
	ButtonLabel = "Take New Picture"
	BusyLabel   = "Taking Picture..."
)

const padding = 4

// Status is controller state that is not part of the display state
// but still shows on screen.
type Status struct {
	Pending  int  // outstanding service calls
	Busy     bool // the control does not accept triggers
	ShowInfo bool // show the locator line
}

// Metrics measures text for the render.
type Metrics struct {
	LineHeight  int
	StringWidth func(string) int
}

// Button is the activation control.
type Button struct {
	Rect    image.Rectangle
	Label   string
	LabelAt image.Point
	Enabled bool
}

// Hit reports whether a click at p activates the button.
func (b Button) Hit(p image.Point) bool {
	return b.Enabled && p.In(b.Rect)
}

// Scene is everything the window paints for one frame.
type Scene struct {
	Title     string
	TitleAt   image.Point
	Image     string          // locator of the image to paint
	ImageArea image.Rectangle // the image is fitted inside
	Info      string          // empty unless the info line is on
	InfoAt    image.Point
	Button    Button
}

// Render lays out a frame for s in window. It only reads its
// arguments, so equal inputs give equal scenes.
func Render(s State, st Status, window image.Rectangle, m Metrics) Scene {
	lh := m.LineHeight
	titleBar, rest := layout.SplitTop(window, lh+2*padding)
	rest, controlBar := layout.SplitBottom(rest, lh+4*padding)

	label := ButtonLabel
	if st.Busy {
		label = BusyLabel
	}
	bw := m.StringWidth(label) + 4*padding
	bh := lh + 2*padding
	br := layout.Center(controlBar, image.Rect(0, 0, bw, bh))

	scene := Scene{
		Title:   Title,
		TitleAt: layout.Center(titleBar, image.Rect(0, 0, m.StringWidth(Title), lh)).Min,
		Image:   s.ImageLocation,
		Button: Button{
			Rect:    br,
			Label:   label,
			LabelAt: layout.Center(br, image.Rect(0, 0, m.StringWidth(label), lh)).Min,
			Enabled: !st.Busy,
		},
	}

	if st.ShowInfo {
		var infoBar image.Rectangle
		infoBar, rest = layout.SplitTop(rest, lh)
		scene.Info = s.ImageLocation
		scene.InfoAt = infoBar.Min.Add(image.Pt(padding, 0))
	}
	scene.ImageArea = layout.Inset(rest, padding)
	return scene
}
