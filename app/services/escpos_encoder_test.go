package services

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"PosPrint/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textDoc(rows ...TextRow) *PrintableDocument {
	return &PrintableDocument{
		Kind:  DocumentBill,
		Mode:  ModeText,
		Width: models.PaperWide,
		Rows:  rows,
	}
}

func TestEncodeStartsWithInitialize(t *testing.T) {
	e := NewEncoder()

	out, err := e.Encode(textDoc(TextRow{Text: "hello"}), EncodeOptions{})
	require.NoError(t, err)

	// ESC @ then code page selection
	assert.Equal(t, []byte{ESC, '@', ESC, 't', 2}, out[:5])
}

func TestEncodeTextRowsAndStateSwitching(t *testing.T) {
	e := NewEncoder()

	out, err := e.Encode(textDoc(
		TextRow{Text: "left plain"},
		TextRow{Text: "centered bold", Align: AlignCenter, Emphasis: true},
	), EncodeOptions{})
	require.NoError(t, err)

	assert.Contains(t, string(out), "left plain\n")
	assert.Contains(t, string(out), "centered bold\n")
	// Alignment switched to center exactly once
	assert.Equal(t, 1, bytes.Count(out, []byte{ESC, 'a', 1}))
	// Emphasis turned on for the second row and reset at the end
	assert.Equal(t, 1, bytes.Count(out, []byte{ESC, 'E', 1}))
	assert.Equal(t, 1, bytes.Count(out, []byte{ESC, 'E', 0}))
}

func TestEncodeDoubleHeightWrapsRow(t *testing.T) {
	e := NewEncoder()

	out, err := e.Encode(textDoc(TextRow{Text: "TOTAL", DoubleH: true}), EncodeOptions{})
	require.NoError(t, err)

	on := bytes.Index(out, []byte{GS, '!', 0x01})
	off := bytes.Index(out, []byte{GS, '!', 0x00})
	text := bytes.Index(out, []byte("TOTAL"))
	require.NotEqual(t, -1, on)
	require.NotEqual(t, -1, off)
	assert.Less(t, on, text)
	assert.Greater(t, off, text)
}

func TestEncodeCutVersusFeed(t *testing.T) {
	e := NewEncoder()
	doc := textDoc(TextRow{Text: "x"})

	cut, err := e.Encode(doc, EncodeOptions{AutoCut: true})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(cut, []byte{GS, 'V', 66, 0}))

	feed, err := e.Encode(doc, EncodeOptions{})
	require.NoError(t, err)
	assert.False(t, bytes.Contains(feed, []byte{GS, 'V', 66, 0}))
	assert.True(t, bytes.HasSuffix(feed, []byte{NL, NL, NL}))
}

func TestEncodeDrawerPulseAppended(t *testing.T) {
	e := NewEncoder()

	out, err := e.Encode(textDoc(TextRow{Text: "x"}), EncodeOptions{AutoCut: true, OpenDrawer: true})
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(out, DrawerPulse()))
}

func TestEncodeRasterHeaderAndBits(t *testing.T) {
	// 16x2 canvas: all white except the first and last dot of row 0
	img := image.NewGray(image.Rect(0, 0, 16, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 16; x++ {
			img.SetGray(x, y, color.Gray{Y: 255})
		}
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	img.SetGray(15, 0, color.Gray{Y: 0})

	e := NewEncoder()
	buf := new(bytes.Buffer)
	require.NoError(t, e.encodeRaster(buf, img))
	out := buf.Bytes()

	// Header: GS v 0 m xL xH yL yH with little-endian byte width and height
	require.Equal(t, []byte{GS, 'v', '0', 0, 2, 0, 2, 0}, out[:8])

	// Row 0: leftmost dot is the high bit of byte 0, rightmost the low bit
	// of byte 1. Row 1 is blank.
	assert.Equal(t, byte(0x80), out[8])
	assert.Equal(t, byte(0x01), out[9])
	assert.Equal(t, byte(0x00), out[10])
	assert.Equal(t, byte(0x00), out[11])
}

func TestEncodeRasterWidthNotByteAligned(t *testing.T) {
	// 10 dots wide: packs into 2 bytes per row with 6 padding bits
	img := image.NewGray(image.Rect(0, 0, 10, 1))
	for x := 0; x < 10; x++ {
		img.SetGray(x, 0, color.Gray{Y: 0})
	}

	e := NewEncoder()
	buf := new(bytes.Buffer)
	require.NoError(t, e.encodeRaster(buf, img))
	out := buf.Bytes()

	assert.Equal(t, byte(2), out[4]) // width bytes
	assert.Equal(t, byte(0xFF), out[8])
	assert.Equal(t, byte(0xC0), out[9]) // only the top 2 bits of the second byte
}

func TestEncodeRasterRejectsEmptyCanvas(t *testing.T) {
	e := NewEncoder()
	buf := new(bytes.Buffer)
	err := e.encodeRaster(buf, image.NewGray(image.Rect(0, 0, 0, 0)))
	assert.Error(t, err)
}

func TestStatusProbeBytes(t *testing.T) {
	assert.Equal(t, []byte{DLE, EOT, 1}, StatusProbe())
}
