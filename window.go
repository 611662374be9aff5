package main

import (
	"bytes"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	draw9 "9fans.net/go/draw"
	"9fans.net/go/plan9"
	"9fans.net/go/plan9/client"
	"9fans.net/go/plumb"
	xdraw "golang.org/x/image/draw"
	"go.uber.org/zap"

	"github.com/anastasop/snapview/internal/layout"
)

// DisplayControl is the connection to devdraw and the colors we paint with.
type DisplayControl struct {
	display     *draw9.Display
	errch       chan error
	mctl        *draw9.Mousectl
	kctl        *draw9.Keyboardctl
	bgColor     *draw9.Image
	borderColor *draw9.Image
	fontColor   *draw9.Image
	log         *zap.Logger
}

// waitCursor is shown while picture requests are outstanding.
var waitCursor = &draw9.Cursor{
	Point: image.Pt(-7, -7),
	White: [32]byte{
		0x00, 0x00, 0x3f, 0xfc, 0x3f, 0xfc, 0x10, 0x08,
		0x08, 0x10, 0x04, 0x20, 0x02, 0x40, 0x01, 0x80,
		0x01, 0x80, 0x02, 0x40, 0x04, 0x20, 0x08, 0x10,
		0x10, 0x08, 0x3f, 0xfc, 0x3f, 0xfc, 0x00, 0x00,
	},
	Black: [32]byte{
		0x7f, 0xfe, 0x40, 0x02, 0x40, 0x02, 0x2f, 0xf4,
		0x17, 0xe8, 0x0b, 0xd0, 0x05, 0xa0, 0x02, 0x40,
		0x02, 0x40, 0x05, 0xa0, 0x0b, 0xd0, 0x17, 0xe8,
		0x2f, 0xf4, 0x40, 0x02, 0x40, 0x02, 0x7f, 0xfe,
	},
}

func connectToDisplay(dims image.Point, log *zap.Logger) (*DisplayControl, error) {
	errch := make(chan error)
	disp, err := draw9.Init(errch, "", progName, fmt.Sprintf("%dx%d", dims.X, dims.Y))
	if err != nil {
		return nil, fmt.Errorf("display: cannot connect: %w", err)
	}
	kctl := disp.InitKeyboard()
	mctl := disp.InitMouse()

	return &DisplayControl{
		display:     disp,
		errch:       errch,
		mctl:        mctl,
		kctl:        kctl,
		bgColor:     disp.AllocImageMix(darkgrey, darkgrey),
		borderColor: disp.AllocImageMix(darkgrey, yellow),
		fontColor:   disp.AllocImageMix(darkgrey, yellow),
		log:         log,
	}, nil
}

// setWaiting switches between the waiting and the normal cursor.
func (dctl *DisplayControl) setWaiting(waiting bool) {
	var c *draw9.Cursor
	if waiting {
		c = waitCursor
	}
	if err := dctl.display.SwitchCursor(c); err != nil {
		dctl.log.Warn("failed to switch cursor", zap.Error(err))
	}
}

func (dctl *DisplayControl) cls() {
	dctl.display.Image.Draw(dctl.display.Image.Bounds(), dctl.bgColor, nil, image.Point{})
}

func (dctl *DisplayControl) flush() {
	if err := dctl.display.Flush(); err != nil {
		dctl.log.Warn("display: flush", zap.Error(err))
	}
}

// upload copies img to the display server.
func (dctl *DisplayControl) upload(img *image.RGBA) (*draw9.Image, error) {
	return dctl.display.ReadImage(toPlan9Bitmap(img))
}

// Plumber sends the shown image to other programs through the plumber.
type Plumber struct {
	fid *client.Fid
	log *zap.Logger
}

func connectToPlumber(log *zap.Logger) *Plumber {
	fid, err := plumb.Open("send", plan9.OWRITE|plan9.OCEXEC)
	if err != nil {
		log.Info("plumber not available", zap.Error(err))
	}
	return &Plumber{fid: fid, log: log}
}

// Send plumbs s, a file path or URL.
func (p *Plumber) Send(s string) {
	if p.fid == nil {
		p.log.Info("plumber not available")
		return
	}

	wd, _ := os.Getwd()
	m := plumb.Message{
		Src:  progName,
		Dir:  plumbDir(s, wd),
		Type: "text",
		Data: []byte(s),
	}
	if err := m.Send(p.fid); err != nil {
		p.log.Warn("plumber", zap.Error(err))
	}
}

// plumbDir is the directory a plumb message for s is relative to.
// URLs have none, so they use the working directory wd.
func plumbDir(s, wd string) string {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		return wd
	}
	return filepath.Dir(s)
}

// fitImage scales img down to fit in r. The result has its origin at 0,0.
func fitImage(img image.Image, r image.Rectangle, scaler xdraw.Scaler) *image.RGBA {
	dr := layout.BestFit(r, img.Bounds())
	dimg := image.NewRGBA(dr.Sub(dr.Min))
	scaler.Scale(dimg, dimg.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dimg
}

// toPlan9Bitmap converts an image to the plan9 format for display.
func toPlan9Bitmap(img *image.RGBA) *bytes.Buffer {
	n := 60 + img.Bounds().Dx()*img.Bounds().Dy()*4
	b := bytes.NewBuffer(make([]byte, 0, n))
	fmt.Fprintf(b, "%11s %11d %11d %11d %11d ",
		"r8g8b8a8", 0, 0, img.Bounds().Dx(), img.Bounds().Dy())
	for y := img.Bounds().Min.Y; y < img.Bounds().Max.Y; y++ {
		row := img.Pix[img.PixOffset(img.Bounds().Min.X, y):]
		for x := 0; x < img.Bounds().Dx(); x++ {
			p := row[4*x : 4*x+4]
			b.WriteByte(p[3])
			b.WriteByte(p[2])
			b.WriteByte(p[1])
			b.WriteByte(p[0])
		}
	}
	return b
}
