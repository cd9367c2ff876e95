package core

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"

	"github.com/disintegration/imaging"

	"github.com/JonMunkholm/tuitiondesk/internal/domain"
	"github.com/JonMunkholm/tuitiondesk/internal/resultcard"
)

// ResultCardRequest asks for one rendered result card. Photo is an
// optional PNG or JPEG, base64 encoded in JSON.
type ResultCardRequest struct {
	StudentID string              `json:"student_id" validate:"required"`
	Template  resultcard.Template `json:"template"`
	Result    domain.Result       `json:"result"`
	Photo     []byte              `json:"photo,omitempty"`
}

// RenderResultCard draws the card for a stored student and writes it to w
// as PNG.
func (s *Service) RenderResultCard(ctx context.Context, w io.Writer, req ResultCardRequest) error {
	if err := s.check(req); err != nil {
		return err
	}
	if err := req.Result.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	st, err := s.student(ctx, req.StudentID)
	if err != nil {
		return err
	}
	card := resultcard.Card{
		Template: req.Template,
		Student: resultcard.Student{
			Name:     st.Name,
			CustomID: st.CustomID,
			Standard: st.Standard,
		},
		Result: req.Result,
	}
	if t, err := s.store.TenantByID(ctx, st.TenantID); err == nil {
		card.Student.Tuition = t.Name
	}
	if st.BatchID != "" {
		if b, err := s.store.BatchByID(ctx, st.BatchID); err == nil {
			card.Student.Batch = b.Name
		}
	}
	if len(req.Photo) > 0 {
		photo, err := decodePhoto(req.Photo)
		if err != nil {
			return invalid("photo", "must be a PNG or JPEG image")
		}
		card.Photo = photo
	}

	return resultcard.Encode(w, card)
}

func decodePhoto(data []byte) (image.Image, error) {
	return imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
}
