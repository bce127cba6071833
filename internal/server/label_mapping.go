package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"tomgalvin.uk/labelle/api"
	"tomgalvin.uk/labelle/internal/label"
)

var (
	ErrInvalidRequest = errors.New("Invalid request")
	ErrInvalidNode    = errors.New("Invalid node")
)

func mapJobFromJson(nodes []api.Node) (label.Job, error) {
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: a label needs at least one node", ErrInvalidRequest)
	}
	job := make(label.Job, len(nodes))
	for i := range nodes {
		n, err := mapNodeFromJson(&nodes[i])
		if err != nil {
			return nil, fmt.Errorf("%w %d: %w", ErrInvalidNode, i, err)
		}
		job[i] = n
	}
	return job, nil
}

func deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

func mapNodeFromJson(src *api.Node) (label.Node, error) {
	switch src.Type {
	case api.NodeTypeText:
		return mapTextFromJson(src)
	case api.NodeTypeBarcode:
		return label.Barcode{
			Payload:   deref(src.Payload),
			Symbology: label.NormalizeSymbology(deref(src.Symbology)),
			ShowText:  deref(src.ShowText),
		}, nil
	case api.NodeTypeQr:
		if deref(src.Payload) == "" {
			return nil, errors.New("qr payload is empty")
		}
		return label.QrCode{Payload: *src.Payload}, nil
	case api.NodeTypePicture:
		return mapPictureFromJson(src)
	}
	return nil, fmt.Errorf("unknown node type %q", src.Type)
}

func mapTextFromJson(src *api.Node) (label.Node, error) {
	lines := deref(src.Lines)
	if len(lines) == 0 {
		return nil, errors.New("text needs at least one line")
	}
	align, err := label.ParseJustify(deref(src.Align))
	if err != nil {
		return nil, err
	}
	scale := deref(src.ScalePercent)
	if src.ScalePercent != nil && (scale < 1 || scale > 100) {
		return nil, fmt.Errorf("scale_percent %d outside 1..100", scale)
	}
	frame := deref(src.FrameWidthPx)
	if frame < 0 {
		return nil, fmt.Errorf("negative frame_width_px %d", frame)
	}
	return label.TextBlock{
		Lines:        lines,
		Font:         deref(src.Font),
		ScalePercent: scale,
		FrameWidthPx: frame,
		Align:        align,
	}, nil
}

// Pictures only come inline; the server never reads paths it is sent.
func mapPictureFromJson(src *api.Node) (label.Node, error) {
	data, err := base64.StdEncoding.DecodeString(deref(src.Image))
	if err != nil {
		return nil, fmt.Errorf("picture is not valid base64:\n%w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("picture is empty")
	}
	if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
		return nil, fmt.Errorf("picture is %s, not an image", mtype.String())
	}
	return label.Picture{Data: data, Dither: deref(src.Dither)}, nil
}
