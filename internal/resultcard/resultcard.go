// Package resultcard renders exam result cards as PNG images.
//
// Layout flows top to bottom: title band, student block (with an optional
// photo on the right), marks table, totals and the exam date. Text is drawn
// with the fixed 7x13 bitmap face, so rendering needs no font files.
package resultcard

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
)

// Photo box size.
const (
	PhotoWidth  = 96
	PhotoHeight = 120
)

const (
	margin    = 24
	lineH     = 18
	rowH      = 24
	titleBand = 56
)

// Template is the visual configuration of a card. Colors are #rrggbb.
type Template struct {
	Title            string `json:"title"`
	Width            int    `json:"width"`
	Background       string `json:"background"`
	Accent           string `json:"accent"`
	TextColor        string `json:"text_color"`
	HeaderBackground string `json:"header_background"`
	HidePhoto        bool   `json:"hide_photo"`
}

// DefaultTemplate is used for zero fields of a caller's template.
func DefaultTemplate() Template {
	return Template{
		Title:            "Result Card",
		Width:            800,
		Background:       "#ffffff",
		Accent:           "#1f4e79",
		TextColor:        "#000000",
		HeaderBackground: "#f0f0f0",
	}
}

func (t Template) withDefaults() Template {
	d := DefaultTemplate()
	if t.Title == "" {
		t.Title = d.Title
	}
	if t.Width < 400 {
		t.Width = d.Width
	}
	if t.Background == "" {
		t.Background = d.Background
	}
	if t.Accent == "" {
		t.Accent = d.Accent
	}
	if t.TextColor == "" {
		t.TextColor = d.TextColor
	}
	if t.HeaderBackground == "" {
		t.HeaderBackground = d.HeaderBackground
	}
	return t
}

// Student is the identity block printed on the card.
type Student struct {
	Name     string
	CustomID string
	Standard string
	Batch    string
	Tuition  string
}

// Card is everything Render needs. Photo may be nil.
type Card struct {
	Template Template
	Student  Student
	Result   domain.Result
	Photo    image.Image
}

// ErrNoSubjects is returned for a result without subjects.
var ErrNoSubjects = errors.New("result has no subjects")

// ParseHexColor parses #rgb or #rrggbb.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

type palette struct {
	bg, accent, text, header, stripe, muted color.NRGBA
}

func (t Template) palette() (palette, error) {
	var p palette
	var err error
	for _, c := range []struct {
		dst *color.NRGBA
		hex string
	}{
		{&p.bg, t.Background},
		{&p.accent, t.Accent},
		{&p.text, t.TextColor},
		{&p.header, t.HeaderBackground},
	} {
		if *c.dst, err = ParseHexColor(c.hex); err != nil {
			return palette{}, err
		}
	}
	p.stripe = color.NRGBA{R: 0xf8, G: 0xf9, B: 0xfa, A: 0xff}
	p.muted = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
	return p, nil
}

// Height is the image height Render will produce for c.
func Height(c Card) int {
	info := 4 * lineH
	if !c.Template.HidePhoto && c.Photo != nil && info < PhotoHeight {
		info = PhotoHeight
	}
	table := rowH * (len(c.Result.Subjects) + 2)
	return titleBand + margin + info + margin + table + margin + 3*lineH + margin
}

// Render draws the card.
func Render(c Card) (*image.NRGBA, error) {
	if len(c.Result.Subjects) == 0 {
		return nil, ErrNoSubjects
	}
	tpl := c.Template.withDefaults()
	pal, err := tpl.palette()
	if err != nil {
		return nil, err
	}

	w, h := tpl.Width, Height(c)
	img := imaging.New(w, h, pal.bg)
	r := &renderer{img: img}

	// title band
	r.fill(image.Rect(0, 0, w, titleBand), pal.accent)
	r.text(margin, titleBand/2+5, tpl.Title, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	if c.Student.Tuition != "" {
		r.textRight(w-margin, titleBand/2+5, c.Student.Tuition, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	}

	// student block
	y := titleBand + margin
	infoTop := y
	for _, line := range []string{
		"Name: " + c.Student.Name,
		"Student ID: " + c.Student.CustomID,
		"Standard: " + c.Student.Standard + batchSuffix(c.Student.Batch),
		"Exam: " + examLine(c.Result),
	} {
		r.text(margin, y+13, line, pal.text)
		y += lineH
	}
	if !tpl.HidePhoto && c.Photo != nil {
		thumb := imaging.Fit(c.Photo, PhotoWidth, PhotoHeight, imaging.Lanczos)
		at := image.Pt(w-margin-PhotoWidth, infoTop)
		r.stroke(image.Rect(at.X-2, at.Y-2, at.X+PhotoWidth+2, at.Y+PhotoHeight+2), pal.text)
		img = imaging.Paste(img, thumb, at)
		r.img = img
		if y < infoTop+PhotoHeight {
			y = infoTop + PhotoHeight
		}
	}
	y += margin

	// marks table
	cols := tableColumns(w)
	r.fill(image.Rect(margin, y, w-margin, y+rowH), pal.header)
	for i, head := range []string{"Subject", "Max", "Obtained", "%", "Grade"} {
		r.text(cols[i], y+16, head, pal.text)
	}
	y += rowH
	for i, s := range c.Result.Subjects {
		if i%2 == 0 {
			r.fill(image.Rect(margin, y, w-margin, y+rowH), pal.stripe)
		}
		for j, cell := range []string{s.Name, num(s.MaxMarks), num(s.Obtained), strconv.Itoa(s.Percentage()), s.Grade()} {
			r.text(cols[j], y+16, cell, pal.text)
		}
		y += rowH
	}
	tot := c.Result.Totals()
	r.fill(image.Rect(margin, y, w-margin, y+rowH), pal.header)
	for j, cell := range []string{"Total", num(tot.MaxMarks), num(tot.Obtained), strconv.Itoa(tot.Percentage), tot.Grade} {
		r.text(cols[j], y+16, cell, pal.text)
	}
	y += rowH + margin

	// totals and date
	r.text(margin, y+13, fmt.Sprintf("Total: %s / %s", num(tot.Obtained), num(tot.MaxMarks)), pal.text)
	r.text(margin, y+13+lineH, fmt.Sprintf("Percentage: %d%%   Grade: %s", tot.Percentage, tot.Grade), pal.accent)
	if c.Result.Remarks != "" {
		r.text(margin, y+13+2*lineH, "Remarks: "+c.Result.Remarks, pal.text)
	}
	if !c.Result.ExamDate.IsZero() {
		r.textRight(w-margin, y+13, "Date: "+c.Result.ExamDate.Format("02 Jan 2006"), pal.muted)
	}
	return r.img, nil
}

// Encode renders c and writes it to w as PNG.
func Encode(w io.Writer, c Card) error {
	img, err := Render(c)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}

func tableColumns(w int) [5]int {
	inner := w - 2*margin
	return [5]int{
		margin + 8,
		margin + inner*40/100,
		margin + inner*55/100,
		margin + inner*72/100,
		margin + inner*85/100,
	}
}

func batchSuffix(batch string) string {
	if batch == "" {
		return ""
	}
	return " (" + batch + ")"
}

func examLine(r domain.Result) string {
	if r.ExamType == "" {
		return r.ExamName
	}
	return r.ExamName + " - " + r.ExamType
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

type renderer struct {
	img *image.NRGBA
}

func (r *renderer) fill(rect image.Rectangle, c color.Color) {
	draw.Draw(r.img, rect, image.NewUniform(c), image.Point{}, draw.Src)
}

func (r *renderer) stroke(rect image.Rectangle, c color.Color) {
	r.fill(image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+1), c)
	r.fill(image.Rect(rect.Min.X, rect.Max.Y-1, rect.Max.X, rect.Max.Y), c)
	r.fill(image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+1, rect.Max.Y), c)
	r.fill(image.Rect(rect.Max.X-1, rect.Min.Y, rect.Max.X, rect.Max.Y), c)
}

// text draws s with its baseline at y.
func (r *renderer) text(x, y int, s string, c color.Color) {
	d := &font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textRight draws s ending at x.
func (r *renderer) textRight(x, y int, s string, c color.Color) {
	width := font.MeasureString(basicfont.Face7x13, s).Round()
	r.text(x-width, y, s, c)
}
