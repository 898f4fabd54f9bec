package drawio

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	placeholderWidth  = 800
	placeholderHeight = 400
)

// WritePlaceholder generates a PNG at path carrying a human-readable error
// annotation. It stands in for a failed export so downstream consumers of the
// image directory never see a missing file.
func WritePlaceholder(path, diagramName, errMsg string) error {
	img := image.NewRGBA(image.Rect(0, 0, placeholderWidth, placeholderHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{R: 245, G: 245, B: 245, A: 255}), image.Point{}, draw.Src)

	ink := color.RGBA{R: 180, G: 30, B: 30, A: 255}
	lines := []string{
		"CONVERSION FAILED",
		diagramName,
		"",
	}
	lines = append(lines, wrapText(errMsg, 100)...)

	face := basicfont.Face7x13
	y := 40
	for _, line := range lines {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(ink),
			Face: face,
			Dot:  fixed.P(20, y),
		}
		d.DrawString(line)
		y += face.Height + 4
		if y > placeholderHeight-20 {
			break
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("drawio: create placeholder %q: %w", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("drawio: encode placeholder: %w", err)
	}
	return nil
}

// wrapText splits s into lines at most width characters long, breaking on
// spaces where possible.
func wrapText(s string, width int) []string {
	var lines []string
	for len(s) > width {
		cut := width
		for i := width; i > 0; i-- {
			if s[i] == ' ' {
				cut = i
				break
			}
		}
		lines = append(lines, s[:cut])
		s = s[cut:]
		for len(s) > 0 && s[0] == ' ' {
			s = s[1:]
		}
	}
	if s != "" {
		lines = append(lines, s)
	}
	return lines
}
