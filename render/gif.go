package render

import (
	"image"
	"image/color/palette"
	"image/gif"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
)

// EncodeGIF writes frames as an endlessly looping animated GIF playing at
// fps frames per second. Frames whose size differs from the first frame are
// scaled to it.
func EncodeGIF(w io.Writer, frames []image.Image, fps float64) error {
	if len(frames) == 0 {
		return errors.New("no frames to encode")
	}
	if fps <= 0 {
		return errors.Errorf("invalid frame rate %v", fps)
	}
	// GIF delays are in hundredths of a second.
	delay := int(math.Round(100 / fps))
	bounds := frames[0].Bounds()

	anim := &gif.GIF{
		Image: make([]*image.Paletted, len(frames)),
		Delay: make([]int, len(frames)),
	}
	for i, img := range frames {
		if img == nil {
			return errors.Errorf("frame %d is nil", i)
		}
		src := img
		if img.Bounds().Size() != bounds.Size() {
			scaled := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
			xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), img, img.Bounds(), xdraw.Src, nil)
			src = scaled
		}
		dst := image.NewPaletted(image.Rect(0, 0, bounds.Dx(), bounds.Dy()), palette.Plan9)
		xdraw.FloydSteinberg.Draw(dst, dst.Bounds(), src, src.Bounds().Min)
		anim.Image[i] = dst
		anim.Delay[i] = delay
	}
	return gif.EncodeAll(w, anim)
}

// WriteGIF encodes frames into the file at path, creating parent
// directories. The file is written atomically (temp file then rename).
func WriteGIF(path string, frames []image.Image, fps float64) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "mkdir %s", dir)
	}
	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return errors.Wrap(err, "create temp gif file")
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if err := EncodeGIF(tmpFile, frames, fps); err != nil {
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return errors.Wrap(err, "close temp gif file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "rename temp gif to target")
	}
	return nil
}
