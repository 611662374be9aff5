package display

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

// monospace measures text like a fixed width font.
var monospace = Metrics{
	LineHeight:  10,
	StringWidth: func(s string) int { return 6 * len(s) },
}

var window = image.Rect(0, 0, 800, 600)

func TestRender_Idempotent(t *testing.T) {
	s := State{ImageLocation: "/img1.png"}
	st := Status{ShowInfo: true}

	first := Render(s, st, window, monospace)
	second := Render(s, st, window, monospace)

	assert.Equal(t, first, second)
	assert.Equal(t, State{ImageLocation: "/img1.png"}, s)
}

func TestRender_Layout(t *testing.T) {
	scene := Render(State{ImageLocation: "/img2.png"}, Status{}, window, monospace)

	assert.Equal(t, Title, scene.Title)
	assert.Equal(t, "/img2.png", scene.Image)
	assert.Empty(t, scene.Info)

	b := scene.Button
	assert.Equal(t, ButtonLabel, b.Label)
	assert.True(t, b.Enabled)
	assert.Equal(t, 6*len(ButtonLabel)+16, b.Rect.Dx())
	assert.True(t, b.Rect.In(window))
	assert.False(t, b.Rect.Overlaps(scene.ImageArea))
	assert.True(t, scene.ImageArea.In(window))
	assert.True(t, scene.TitleAt.Y < scene.ImageArea.Min.Y)
}

func TestRender_Info(t *testing.T) {
	plain := Render(State{ImageLocation: "/img1.png"}, Status{}, window, monospace)
	info := Render(State{ImageLocation: "/img1.png"}, Status{ShowInfo: true}, window, monospace)

	assert.Equal(t, "/img1.png", info.Info)
	assert.Less(t, info.ImageArea.Dy(), plain.ImageArea.Dy())
	assert.Equal(t, plain.Button, info.Button)
}

func TestRender_Busy(t *testing.T) {
	scene := Render(State{ImageLocation: "/img1.png"}, Status{Pending: 1, Busy: true}, window, monospace)

	assert.Equal(t, BusyLabel, scene.Button.Label)
	assert.False(t, scene.Button.Hit(scene.Button.Rect.Min))
}

func TestButton_Hit(t *testing.T) {
	b := Render(State{ImageLocation: "/img1.png"}, Status{Pending: 2}, window, monospace).Button

	assert.True(t, b.Enabled)
	assert.True(t, b.Hit(b.Rect.Min))
	assert.True(t, b.Hit(b.Rect.Max.Sub(image.Pt(1, 1))))
	assert.False(t, b.Hit(b.Rect.Max))
	assert.False(t, b.Hit(image.Pt(0, 0)))
}

func TestRender_TinyWindow(t *testing.T) {
	scene := Render(State{ImageLocation: "/img1.png"}, Status{}, image.Rect(0, 0, 20, 20), monospace)
	assert.Equal(t, "/img1.png", scene.Image)
	assert.True(t, scene.ImageArea.Dx() >= 0 && scene.ImageArea.Dy() >= 0)
}
