// Package render draws report tables as PNG images.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Table is a titled grid of text cells.
type Table struct {
	Title   []string
	Columns []string
	Rows    [][]string
}

var (
	headerBg   = color.RGBA{0x4C, 0xAF, 0x50, 0xFF}
	stripeBg   = color.RGBA{0xF7, 0xF7, 0xF7, 0xFF}
	gridColor  = color.RGBA{0xDD, 0xDD, 0xDD, 0xFF}
	textColor  = color.Black
	headerText = color.White
)

const (
	cellPadX   = 8
	cellPadY   = 6
	titleGap   = 4
	margin     = 16
	maxCellLen = 48
	emptyText  = "(no data)"
)

// PNG renders t and writes it to w.
func PNG(w io.Writer, t Table) error {
	img, err := Draw(t)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// Draw renders t into an image. Rows shorter than the header are padded;
// longer rows are an error.
func Draw(t Table) (*image.RGBA, error) {
	if len(t.Columns) == 0 {
		return nil, fmt.Errorf("table has no columns")
	}
	rows := t.Rows
	if len(rows) == 0 {
		rows = [][]string{{emptyText}}
	}

	face := basicfont.Face7x13
	charW := face.Advance
	lineH := face.Height

	header := foldAll(t.Columns)
	body := make([][]string, len(rows))
	for i, r := range rows {
		if len(r) > len(t.Columns) {
			return nil, fmt.Errorf("row %d has %d cells, table has %d columns", i, len(r), len(t.Columns))
		}
		cells := make([]string, len(t.Columns))
		copy(cells, foldAll(r))
		body[i] = cells
	}

	widths := make([]int, len(header))
	for c, h := range header {
		widths[c] = utf8.RuneCountInString(h)
	}
	for _, r := range body {
		for c, cell := range r {
			widths[c] = max(widths[c], utf8.RuneCountInString(cell))
		}
	}

	tableW := 0
	for c := range widths {
		widths[c] = widths[c]*charW + 2*cellPadX
		tableW += widths[c]
	}
	rowH := lineH + 2*cellPadY

	title := foldAll(t.Title)
	titleH := 0
	for _, line := range title {
		tableW = max(tableW, utf8.RuneCountInString(line)*charW)
		titleH += lineH + titleGap
	}
	if titleH > 0 {
		titleH += titleGap * 2
	}

	width := tableW + 2*margin
	height := titleH + rowH*(len(body)+1) + 2*margin

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Face: face}
	y := margin
	for _, line := range title {
		x := margin + (tableW-utf8.RuneCountInString(line)*charW)/2
		drawText(d, line, x, y+face.Ascent, textColor)
		y += lineH + titleGap
	}
	if titleH > 0 {
		y += titleGap * 2
	}

	fillRow(img, margin, y, tableW, rowH, headerBg)
	drawCells(d, header, widths, margin, y+cellPadY+face.Ascent, headerText)
	y += rowH

	for i, r := range body {
		if i%2 == 1 {
			fillRow(img, margin, y, tableW, rowH, stripeBg)
		}
		drawCells(d, r, widths, margin, y+cellPadY+face.Ascent, textColor)
		hline(img, margin, y, tableW, gridColor)
		y += rowH
	}
	hline(img, margin, y, tableW, gridColor)

	return img, nil
}

func drawCells(d *font.Drawer, cells []string, widths []int, x, baseline int, c color.Color) {
	for i, cell := range cells {
		drawText(d, cell, x+cellPadX, baseline, c)
		x += widths[i]
	}
}

func drawText(d *font.Drawer, s string, x, baseline int, c color.Color) {
	d.Src = image.NewUniform(c)
	d.Dot = fixed.P(x, baseline)
	d.DrawString(s)
}

func fillRow(img draw.Image, x, y, w, h int, c color.Color) {
	draw.Draw(img, image.Rect(x, y, x+w, y+h), image.NewUniform(c), image.Point{}, draw.Src)
}

func hline(img *image.RGBA, x, y, w int, c color.Color) {
	for i := x; i < x+w; i++ {
		img.Set(i, y, c)
	}
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold reduces s to the ASCII range the bitmap font can draw.
func fold(s string) string {
	s = strings.NewReplacer("đ", "d", "Đ", "D").Replace(s)
	out, _, err := transform.String(stripMarks, s)
	if err != nil {
		out = s
	}
	var b strings.Builder
	for _, r := range out {
		switch {
		case r == '\n' || r == '\t':
			b.WriteByte(' ')
		case r < 0x20 || r > 0x7e:
			b.WriteByte('?')
		default:
			b.WriteRune(r)
		}
	}
	res := b.String()
	if utf8.RuneCountInString(res) > maxCellLen {
		res = string([]rune(res)[:maxCellLen-3]) + "..."
	}
	return res
}

func foldAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fold(s)
	}
	return out
}
