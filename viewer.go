package main

import (
	"context"
	"image"
	"time"

	draw9 "9fans.net/go/draw"
	xdraw "golang.org/x/image/draw"
	"go.uber.org/zap"

	"github.com/anastasop/snapview/internal/display"
	"github.com/anastasop/snapview/internal/imagefile"
	"github.com/anastasop/snapview/internal/layout"
)

const loadTimeout = 30 * time.Second

// frameKey identifies an image fitted for an area of the window.
// The service may reply with the same locator for a new picture,
// so every applied reply starts a new generation.
type frameKey struct {
	locator string
	area    image.Rectangle
	gen     int
}

// loaded is an image decoded and scaled off the event loop.
type loaded struct {
	frameKey
	img  *image.RGBA
	exif string
	err  error
}

// Viewer shows the controller's image and turns user input into
// picture requests. All its methods run on the event loop.
type Viewer struct {
	ctrl     *display.Controller
	resolver *imagefile.Resolver
	plumber  *Plumber
	scaler   xdraw.Scaler
	log      *zap.Logger

	dctl     *DisplayControl
	scene    display.Scene
	showInfo bool
	waiting  bool
	gen      int
	buttons  int // mouse buttons held at the last event

	shown    frameKey
	shownImg *draw9.Image
	exif     string
	failed   frameKey // last frame that could not be loaded
	loading  frameKey
	loadedC  chan loaded
}

func NewViewer(ctrl *display.Controller, resolver *imagefile.Resolver, plumber *Plumber, scaler xdraw.Scaler, log *zap.Logger) *Viewer {
	v := &Viewer{
		ctrl:     ctrl,
		resolver: resolver,
		plumber:  plumber,
		scaler:   scaler,
		log:      log,
		loadedC:  make(chan loaded),
	}
	ctrl.OnChange(func(display.State) { v.gen++ })
	return v
}

func (v *Viewer) Connect(dctl *DisplayControl) {
	v.dctl = dctl
}

// Free releases the image held by the display server.
func (v *Viewer) Free() {
	if v.shownImg != nil {
		if err := v.shownImg.Free(); err != nil {
			v.log.Warn("failed to free image", zap.String("image", v.shown.locator), zap.Error(err))
		}
		v.shownImg = nil
	}
	v.shown = frameKey{}
}

// Handle is the event loop. It returns when the user exits or ctx ends.
func (v *Viewer) Handle(ctx context.Context) {
	bt2menu := &draw9.Menu{
		Item: []string{"take picture", "info", "plumb", "", "exit"},
	}

	dctl := v.dctl
	v.paint(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-dctl.errch:
			v.log.Warn("display", zap.Error(err))
		case r := <-v.ctrl.Results():
			v.ctrl.Resolve(r)
			v.paint(ctx)
		case l := <-v.loadedC:
			v.show(l)
			v.paint(ctx)
		case k := <-dctl.kctl.C:
			switch k {
			case 'q', escKey: // exit
				return
			case 't', '\n': // take picture
				v.takePicture(ctx)
			case 'i': // info
				v.showInfo = !v.showInfo
				v.paint(ctx)
			case 'p': // plumb
				v.plumb()
			}
		case dctl.mctl.Mouse = <-dctl.mctl.C:
			m := dctl.mctl.Mouse
			prev := v.buttons
			v.buttons = m.Buttons
			switch {
			case pressed(prev, m.Buttons, 1): // press the button
				if v.scene.Button.Hit(m.Point) {
					v.takePicture(ctx)
				}
			case pressed(prev, m.Buttons, 2): // view menu
				switch draw9.MenuHit(2, dctl.mctl, bt2menu, nil) {
				case 0: // take picture
					v.takePicture(ctx)
				case 1: // info
					v.showInfo = !v.showInfo
					v.paint(ctx)
				case 2: // plumb
					v.plumb()
				case 3: // nop
				case 4: // exit
					return
				}
				// MenuHit reads the mouse until the button is released
				v.buttons = dctl.mctl.Mouse.Buttons
			}
		case <-dctl.mctl.Resize:
			if err := dctl.display.Attach(draw9.RefNone); err != nil {
				v.log.Fatal("display: failed to attach", zap.Error(err))
			}
			v.paint(ctx)
		}
	}
}

// pressed reports whether button went down between two mouse events.
// devdraw repeats the held buttons on every motion.
func pressed(prev, cur, button int) bool {
	return prev&button == 0 && cur&button != 0
}

func (v *Viewer) takePicture(ctx context.Context) {
	if v.ctrl.RequestNewPicture(ctx) {
		v.paint(ctx)
	}
}

func (v *Viewer) plumb() {
	src, err := v.resolver.Source(v.ctrl.State().ImageLocation)
	if err != nil {
		v.log.Warn("plumb", zap.Error(err))
		return
	}
	v.plumber.Send(src)
}

// load decodes and scales the image for key in the background.
func (v *Viewer) load(ctx context.Context, key frameKey) {
	v.loading = key
	go func() {
		lctx, cancel := context.WithTimeout(ctx, loadTimeout)
		defer cancel()

		l := loaded{frameKey: key}
		pic, err := v.resolver.Load(lctx, key.locator)
		if err != nil {
			l.err = err
		} else {
			l.img = fitImage(pic.Image, key.area, v.scaler)
			l.exif = pic.ExifInfo
		}
		select {
		case v.loadedC <- l:
		case <-ctx.Done():
		}
	}()
}

// show uploads a loaded image if it is still the one wanted.
func (v *Viewer) show(l loaded) {
	if v.loading == l.frameKey {
		v.loading = frameKey{}
	}
	if l.frameKey != v.want() {
		return
	}
	if l.err != nil {
		v.log.Warn("cannot show image", zap.String("image", l.locator), zap.Error(l.err))
		v.failed = l.frameKey
		return
	}

	img, err := v.dctl.upload(l.img)
	if err != nil {
		v.log.Warn("cannot upload image", zap.String("image", l.locator), zap.Error(err))
		v.failed = l.frameKey
		return
	}
	v.Free()
	v.shown, v.shownImg, v.exif = l.frameKey, img, l.exif
}

// want returns the frame the current scene needs.
func (v *Viewer) want() frameKey {
	return frameKey{v.scene.Image, v.scene.ImageArea, v.gen}
}

func (v *Viewer) metrics() display.Metrics {
	font := v.dctl.display.Font
	return display.Metrics{LineHeight: font.Height, StringWidth: font.StringWidth}
}

func (v *Viewer) paint(ctx context.Context) {
	dctl := v.dctl
	window := dctl.display.Image
	font := dctl.display.Font
	zp := image.Point{}

	status := v.ctrl.Status()
	status.ShowInfo = v.showInfo
	v.scene = display.Render(v.ctrl.State(), status, window.Bounds(), v.metrics())
	scene := v.scene

	if waiting := status.Pending > 0; waiting != v.waiting {
		v.waiting = waiting
		dctl.setWaiting(waiting)
	}

	want := v.want()
	if want != v.shown && want != v.loading && want != v.failed && !want.area.Empty() {
		v.load(ctx, want)
	}

	dctl.cls()
	window.String(scene.TitleAt, dctl.fontColor, zp, font, scene.Title)

	// the previous image stays up until its replacement is ready
	switch {
	case want == v.failed:
		window.String(scene.ImageArea.Min, dctl.fontColor, zp, font, "cannot show "+scene.Image)
	case v.shownImg != nil:
		window.Draw(layout.Center(scene.ImageArea, v.shownImg.Bounds()), v.shownImg, nil, zp)
	default:
		window.String(scene.ImageArea.Min, dctl.fontColor, zp, font, "loading "+scene.Image)
	}

	if scene.Info != "" {
		info := scene.Info
		if want == v.shown && v.exif != "" {
			info += " " + v.exif
		}
		window.String(scene.InfoAt, dctl.fontColor, zp, font, info)
	}

	b := scene.Button
	border := dctl.borderColor
	if !b.Enabled {
		border = dctl.bgColor
	}
	window.Border(b.Rect, 2, border, zp)
	window.String(b.LabelAt, dctl.fontColor, zp, font, b.Label)

	dctl.flush()
}
