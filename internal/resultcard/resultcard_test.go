package resultcard

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
)

func sampleCard() Card {
	return Card{
		Student: Student{Name: "Asha", CustomID: "STU-1", Standard: "8th", Batch: "Morning", Tuition: "Bright Minds"},
		Result: domain.Result{
			ExamName: "Unit Test 1",
			ExamDate: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
			Subjects: []domain.SubjectMark{
				{Name: "Maths", MaxMarks: 100, Obtained: 92},
				{Name: "Science", MaxMarks: 100, Obtained: 67},
			},
		},
	}
}

func TestRender_Dimensions(t *testing.T) {
	c := sampleCard()
	img, err := Render(c)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != Height(c) {
		t.Errorf("bounds = %v, want 800x%d", b, Height(c))
	}

	// title band uses the accent color
	want, _ := ParseHexColor(DefaultTemplate().Accent)
	if got := img.NRGBAAt(1, 1); got != want {
		t.Errorf("title band pixel = %v, want %v", got, want)
	}
}

func TestRender_PhotoGrowsCard(t *testing.T) {
	c := sampleCard()
	without := Height(c)

	photo := image.NewNRGBA(image.Rect(0, 0, 300, 400))
	c.Photo = photo
	if Height(c) <= without {
		t.Errorf("Height with photo = %d, want more than %d", Height(c), without)
	}

	c.Template.HidePhoto = true
	if Height(c) != without {
		t.Errorf("hidden photo changed height to %d", Height(c))
	}
}

func TestEncode_PNG(t *testing.T) {
	var buf bytes.Buffer
	c := sampleCard()
	c.Photo = image.NewNRGBA(image.Rect(0, 0, 50, 50))
	if err := Encode(&buf, c); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	cfg, err := png.DecodeConfig(&buf)
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if cfg.Width != 800 {
		t.Errorf("width = %d", cfg.Width)
	}
}

func TestRender_Errors(t *testing.T) {
	c := sampleCard()
	c.Result.Subjects = nil
	if _, err := Render(c); !errors.Is(err, ErrNoSubjects) {
		t.Errorf("no subjects: error = %v", err)
	}

	c = sampleCard()
	c.Template.Background = "#zzzzzz"
	if _, err := Render(c); err == nil {
		t.Error("bad color should fail")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
	}{
		{"#ffffff", color.NRGBA{255, 255, 255, 255}},
		{"1f4e79", color.NRGBA{0x1f, 0x4e, 0x79, 255}},
		{"#f00", color.NRGBA{255, 0, 0, 255}},
	}
	for _, tt := range tests {
		got, err := ParseHexColor(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseHexColor(%q) = %v, %v", tt.in, got, err)
		}
	}
}
