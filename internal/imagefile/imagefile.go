// Package imagefile loads the image behind a locator for display.
package imagefile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/xor-gate/goexif2/exif"
	"github.com/xor-gate/goexif2/tiff"
	_ "golang.org/x/image/webp"
)

// maxImageSize bounds the bytes read for one image.
const maxImageSize = 64 << 20

var (
	ErrNotSupportedFormat = errors.New("not supported format")
	ErrOutsideAssetDir    = errors.New("locator escapes the asset directory")
)

// Picture holds the decoded contents behind a locator.
type Picture struct {
	Locator  string      // the locator as given
	Source   string      // file path or URL actually read
	Format   string      // registered image format name, like png
	Image    image.Image // decoded image
	ExifInfo string      // a summary of the EXIF data if present
}

// Resolver maps locators to image sources. Locators are either
// absolute http(s) URLs or paths served under PublicURL, which
// are read from AssetDir.
type Resolver struct {
	AssetDir   string
	PublicURL  string
	HTTPClient *http.Client
}

// Source returns the file path or URL a locator refers to.
func (r *Resolver) Source(locator string) (string, error) {
	if u, err := url.Parse(locator); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return locator, nil
	}

	p := locator
	if pub := strings.TrimSuffix(r.PublicURL, "/"); pub != "" && (p == pub || strings.HasPrefix(p, pub+"/")) {
		p = strings.TrimPrefix(p, pub)
	}
	// path.Clean of a rooted path cannot climb above the root.
	p = path.Clean("/" + p)
	if p == "/" {
		return "", fmt.Errorf("resolve %q: %w", locator, ErrOutsideAssetDir)
	}
	return filepath.Join(r.AssetDir, filepath.FromSlash(p)), nil
}

// Load reads and decodes the image behind locator.
func (r *Resolver) Load(ctx context.Context, locator string) (*Picture, error) {
	src, err := r.Source(locator)
	if err != nil {
		return nil, err
	}

	var data []byte
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		data, err = r.fetch(ctx, src)
	} else {
		data, err = os.ReadFile(src)
	}
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	switch ct := http.DetectContentType(data); ct {
	case "image/gif", "image/jpeg", "image/png", "image/webp":
		// supported format
	default:
		return nil, fmt.Errorf("load: cannot handle %s: %w", ct, ErrNotSupportedFormat)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("load: decode image: %w", err)
	}

	return &Picture{
		Locator:  locator,
		Source:   src,
		Format:   format,
		Image:    img,
		ExifInfo: exifInfo(bytes.NewReader(data)),
	}, nil
}

func (r *Resolver) fetch(ctx context.Context, src string) ([]byte, error) {
	hc := r.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get %s: %s", src, resp.Status)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
}

// exifInfo returns an online human readable string of the exif data.
func exifInfo(r tiff.ReadAtReaderSeeker) string {
	ex, err := exif.Decode(r)
	if err != nil {
		return ""
	}

	asString := func(t *tiff.Tag) string {
		return t.String()
	}

	asRatFloat := func(t *tiff.Tag) string {
		f, err := t.Rat(0)
		if err != nil {
			return "?"
		}
		return f.FloatString(2)
	}

	labels := []struct {
		pat     string
		name    exif.FieldName
		printer func(*tiff.Tag) string
	}{
		{"Date: %s", exif.DateTimeOriginal, asString},
		{"Model: %s", exif.Model, asString},
		{"f/%s", exif.FNumber, asRatFloat},
		{"Exp: %s", exif.ExposureTime, asRatFloat},
		{"ISO: %s", exif.ISOSpeedRatings, asString},
	}

	var fields []string
	for _, label := range labels {
		if tag, err := ex.Get(label.name); err == nil {
			fields = append(fields, fmt.Sprintf(label.pat, label.printer(tag)))
		}
	}
	if len(fields) > 0 {
		return "Exif: " + strings.Join(fields, " ")
	}
	return ""
}
