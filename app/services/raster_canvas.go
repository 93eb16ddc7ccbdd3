package services

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	qrcode "github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Canvas geometry. Glyph metrics follow basicfont.Face7x13.
const (
	canvasMargin    = 8
	canvasOverAlloc = 4096 // over-allocated height, trimmed to the cursor on finish
	glyphWidth      = 7
	glyphHeight     = 13
	lineGap         = 3
)

// RasterCanvas is a monochrome pixel canvas for raster-mode receipts. Drawing
// advances a vertical cursor; Trimmed returns only the painted region so no
// blank tail is fed through the printer.
type RasterCanvas struct {
	img   *image.Gray
	width int
	y     int
}

// NewRasterCanvas allocates a white canvas at the paper's dot width
func NewRasterCanvas(widthDots int) *RasterCanvas {
	img := image.NewGray(image.Rect(0, 0, widthDots, canvasOverAlloc))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	return &RasterCanvas{img: img, width: widthDots, y: canvasMargin}
}

// Width returns the canvas width in dots
func (c *RasterCanvas) Width() int {
	return c.width
}

// Height returns the used canvas height in dots
func (c *RasterCanvas) Height() int {
	return c.y + canvasMargin
}

// Columns returns how many glyphs fit on one line at scale 1
func (c *RasterCanvas) Columns() int {
	return (c.width - 2*canvasMargin) / glyphWidth
}

// DrawText renders one line of text and advances the cursor. scale is an
// integer pixel multiplier; bold overstrikes the glyphs one dot to the right.
func (c *RasterCanvas) DrawText(text, align string, scale int, bold bool) {
	if scale < 1 {
		scale = 1
	}
	text = removeDiacritics(text)

	lineW := len(text) * glyphWidth
	tmp := image.NewGray(image.Rect(0, 0, lineW+2, glyphHeight+2))
	draw.Draw(tmp, tmp.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	d := font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(0, glyphHeight-2),
	}
	d.DrawString(text)
	if bold {
		d.Dot = fixed.P(1, glyphHeight-2)
		d.DrawString(text)
	}

	drawnW := lineW * scale
	var x0 int
	switch align {
	case AlignCenter:
		x0 = (c.width - drawnW) / 2
	case AlignRight:
		x0 = c.width - canvasMargin - drawnW
	default:
		x0 = canvasMargin
	}
	if x0 < 0 {
		x0 = 0
	}

	// Nearest-neighbour blit at integer scale
	for y := 0; y < glyphHeight+2; y++ {
		for x := 0; x < lineW+2; x++ {
			if tmp.GrayAt(x, y).Y >= 128 {
				continue
			}
			for dy := 0; dy < scale; dy++ {
				for dx := 0; dx < scale; dx++ {
					c.set(x0+x*scale+dx, c.y+y*scale+dy)
				}
			}
		}
	}

	c.y += (glyphHeight+2)*scale + lineGap
}

// Space advances the cursor without drawing
func (c *RasterCanvas) Space(px int) {
	c.y += px
}

// Rule draws a full-width solid rule
func (c *RasterCanvas) Rule() {
	c.y += 2
	for x := canvasMargin; x < c.width-canvasMargin; x++ {
		c.set(x, c.y)
		c.set(x, c.y+1)
	}
	c.y += 6
}

// DashedRule draws a full-width dashed rule
func (c *RasterCanvas) DashedRule() {
	c.y += 2
	for x := canvasMargin; x < c.width-canvasMargin; x++ {
		if (x/6)%2 == 0 {
			c.set(x, c.y)
		}
	}
	c.y += 5
}

// PartialRule draws a rule over the right 1/div of the width, used to set
// off the grand total from the lines above it
func (c *RasterCanvas) PartialRule(div int) {
	c.y += 2
	n := (c.width - 2*canvasMargin) / div
	for x := c.width - canvasMargin - n; x < c.width-canvasMargin; x++ {
		c.set(x, c.y)
	}
	c.y += 5
}

// Box draws a bordered banner with the text centered inside
func (c *RasterCanvas) Box(text string) {
	c.y += 3
	top := c.y
	height := glyphHeight + 12
	left, right := canvasMargin, c.width-canvasMargin-1

	for x := left; x <= right; x++ {
		c.set(x, top)
		c.set(x, top+height)
	}
	for y := top; y <= top+height; y++ {
		c.set(left, y)
		c.set(right, y)
	}

	c.y = top + 5
	c.DrawText(text, AlignCenter, 1, true)
	c.y = top + height + 6
}

// DrawQR renders a QR code for the payload, centered
func (c *RasterCanvas) DrawQR(payload string) error {
	size := c.width / 3
	if size > 160 {
		size = 160
	}
	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	img := qr.Image(size)

	bounds := img.Bounds()
	x0 := (c.width - bounds.Dx()) / 2
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			gray := (299*r + 587*g + 114*b) / 1000
			if gray < 128<<8 {
				c.set(x0+x-bounds.Min.X, c.y+y-bounds.Min.Y)
			}
		}
	}
	c.y += bounds.Dy()
	return nil
}

// Border draws the outer frame around everything painted so far
func (c *RasterCanvas) Border() {
	c.y += 4
	bottom := c.y
	for x := 1; x < c.width-1; x++ {
		c.set(x, 1)
		c.set(x, bottom)
	}
	for y := 1; y <= bottom; y++ {
		c.set(1, y)
		c.set(c.width-2, y)
	}
	c.y = bottom + 2
}

// Trimmed returns the painted region of the canvas
func (c *RasterCanvas) Trimmed() *image.Gray {
	h := c.Height()
	if h > canvasOverAlloc {
		h = canvasOverAlloc
	}
	return c.img.SubImage(image.Rect(0, 0, c.width, h)).(*image.Gray)
}

func (c *RasterCanvas) set(x, y int) {
	if x < 0 || y < 0 || x >= c.width || y >= canvasOverAlloc {
		return
	}
	c.img.SetGray(x, y, color.Gray{Y: 0})
}

// removeDiacritics maps accented characters to plain ASCII so text renders
// on printers with limited character tables
func removeDiacritics(text string) string {
	replacements := map[rune]rune{
		'á': 'a', 'Á': 'A',
		'é': 'e', 'É': 'E',
		'í': 'i', 'Í': 'I',
		'ó': 'o', 'Ó': 'O',
		'ú': 'u', 'Ú': 'U',
		'ü': 'u', 'Ü': 'U',
		'ñ': 'n', 'Ñ': 'N',
		'₹': 'R',
	}

	var result []rune
	for _, r := range text {
		if r < 128 {
			result = append(result, r)
		} else if replacement, ok := replacements[r]; ok {
			result = append(result, replacement)
		} else {
			result = append(result, ' ')
		}
	}
	return string(result)
}
