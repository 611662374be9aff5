// Package layout computes where things go in the viewer window.
package layout

import "image"

// Center assume sr fits in dr and centers it inside dr. If this is not the case, it returns dr.
func Center(dr, sr image.Rectangle) image.Rectangle {
	dx := dr.Dx() - sr.Dx()
	dy := dr.Dy() - sr.Dy()

	if dx < 0 || dy < 0 {
		return dr
	}

	return sr.Sub(sr.Min).Add(dr.Min.Add(image.Pt(dx, dy).Div(2)))
}

// BestFit scales down sr to fit in dr and centers it. If sr already fits, it is not scaled up.
func BestFit(dr, sr image.Rectangle) image.Rectangle {
	var r image.Rectangle
	if sr.Dx() <= dr.Dx() && sr.Dy() <= dr.Dy() {
		r = sr
	} else {
		scale := max(float32(sr.Dy())/float32(dr.Dy()), float32(sr.Dx())/float32(dr.Dx()))
		r.Max.X = int(float32(sr.Dx()) / scale)
		r.Max.Y = int(float32(sr.Dy()) / scale)
	}
	return Center(dr, r)
}

// SplitBottom cuts a bar of height h off the bottom of r.
// It returns the remaining area and the bar. A bar taller
// than r takes all of it.
func SplitBottom(r image.Rectangle, h int) (rest, bar image.Rectangle) {
	h = max(0, min(h, r.Dy()))
	rest = image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Max.Y-h)
	bar = image.Rect(r.Min.X, r.Max.Y-h, r.Max.X, r.Max.Y)
	return
}

// SplitTop cuts a bar of height h off the top of r.
func SplitTop(r image.Rectangle, h int) (bar, rest image.Rectangle) {
	h = max(0, min(h, r.Dy()))
	bar = image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+h)
	rest = image.Rect(r.Min.X, r.Min.Y+h, r.Max.X, r.Max.Y)
	return
}

// Inset shrinks r by n on every side. It never returns a negative size.
func Inset(r image.Rectangle, n int) image.Rectangle {
	if 2*n > r.Dx() || 2*n > r.Dy() {
		c := r.Min.Add(r.Size().Div(2))
		return image.Rectangle{c, c}
	}
	return r.Inset(n)
}
