package services

import (
	"bytes"
	"fmt"
	"image"
)

// ESC/POS Commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	DLE byte = 0x10
	EOT byte = 0x04
	NL  byte = 0x0A
)

// EncodeOptions carry per-print device behavior taken from PrinterConfig
type EncodeOptions struct {
	AutoCut    bool
	OpenDrawer bool
}

// Encoder turns a PrintableDocument into the byte sequence a thermal printer
// consumes. Encoding is a pure transformation; it never touches a transport.
type Encoder struct{}

// NewEncoder creates an encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode serializes a document into ESC/POS bytes
func (e *Encoder) Encode(doc *PrintableDocument, opts EncodeOptions) ([]byte, error) {
	buf := new(bytes.Buffer)
	e.initialize(buf)

	switch doc.Mode {
	case ModeText:
		e.encodeText(buf, doc)
	case ModeRaster:
		if doc.Canvas == nil {
			return nil, fmt.Errorf("raster document has no canvas")
		}
		if err := e.encodeRaster(buf, doc.Canvas.Trimmed()); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported render mode: %s", doc.Mode)
	}

	if opts.AutoCut {
		e.cut(buf)
	} else {
		buf.WriteByte(NL)
		buf.WriteByte(NL)
		buf.WriteByte(NL)
	}
	if opts.OpenDrawer {
		buf.Write(DrawerPulse())
	}
	return buf.Bytes(), nil
}

// DrawerPulse is the fixed cash-drawer kick sequence, independent of any
// document content
func DrawerPulse() []byte {
	return []byte{ESC, 'p', 0, 25, 250}
}

// StatusProbe is the real-time transmit request used by the connectivity
// check; the printer answers with a single status byte
func StatusProbe() []byte {
	return []byte{DLE, EOT, 1}
}

func (e *Encoder) initialize(buf *bytes.Buffer) {
	buf.Write([]byte{ESC, '@'})    // Initialize printer
	buf.Write([]byte{ESC, 't', 2}) // Code page 850 for Latin characters
}

func (e *Encoder) encodeText(buf *bytes.Buffer, doc *PrintableDocument) {
	align := byte(0xFF)
	emphasis := false

	for _, row := range doc.Rows {
		if a := alignByte(row.Align); a != align {
			buf.Write([]byte{ESC, 'a', a})
			align = a
		}
		if row.Emphasis != emphasis {
			var v byte
			if row.Emphasis {
				v = 1
			}
			buf.Write([]byte{ESC, 'E', v})
			emphasis = row.Emphasis
		}
		if row.DoubleH {
			buf.Write([]byte{GS, '!', 0x01}) // 1x width, 2x height
		}
		buf.WriteString(removeDiacritics(row.Text))
		buf.WriteByte(NL)
		if row.DoubleH {
			buf.Write([]byte{GS, '!', 0x00})
		}
	}

	// Leave the printer in a neutral state
	if emphasis {
		buf.Write([]byte{ESC, 'E', 0})
	}
	if align != 0 {
		buf.Write([]byte{ESC, 'a', 0})
	}
}

// encodeRaster emits the GS v 0 raster transfer: a header carrying the
// little-endian byte width and dot height, followed by the packed 1bpp
// bitmap, row-major, one bit per dot, set bit = printed dot.
func (e *Encoder) encodeRaster(buf *bytes.Buffer, img *image.Gray) error {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return fmt.Errorf("raster canvas is empty")
	}

	widthBytes := (width + 7) / 8

	buf.WriteByte(GS)
	buf.WriteByte('v')
	buf.WriteByte('0')
	buf.WriteByte(0) // normal density
	buf.WriteByte(byte(widthBytes % 256))
	buf.WriteByte(byte(widthBytes / 256))
	buf.WriteByte(byte(height % 256))
	buf.WriteByte(byte(height / 256))

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x += 8 {
			var b byte
			for bit := 0; bit < 8; bit++ {
				px := x + bit
				if px >= bounds.Max.X {
					break
				}
				if img.GrayAt(px, y).Y < 128 {
					b |= 1 << uint(7-bit)
				}
			}
			buf.WriteByte(b)
		}
	}

	buf.WriteByte(NL)
	return nil
}

func (e *Encoder) cut(buf *bytes.Buffer) {
	buf.Write([]byte{GS, 'V', 66, 0})
}

func alignByte(align string) byte {
	switch align {
	case AlignCenter:
		return 1
	case AlignRight:
		return 2
	default:
		return 0
	}
}
