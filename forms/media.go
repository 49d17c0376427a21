package forms

import (
	"context"
	"fmt"
	"log"
	"strings"

	"captain/apiclient"
)

type MediaLister interface {
	Media(ctx context.Context) ([]apiclient.Media, error)
}

// MediaPicker is the media library dialog of the content editor.
type MediaPicker struct {
	items []apiclient.Media
}

// LoadMediaPicker fetches the library. A failed fetch leaves the picker empty.
func LoadMediaPicker(ctx context.Context, src MediaLister) *MediaPicker {
	items, err := src.Media(ctx)
	if err != nil {
		log.Printf("forms: loading media failed: %v", err)
		return &MediaPicker{}
	}
	return &MediaPicker{items: items}
}

func (p *MediaPicker) Items() []apiclient.Media {
	return append([]apiclient.Media(nil), p.items...)
}

// Filter returns the items whose MIME type starts with prefix, e.g. "image/".
func (p *MediaPicker) Filter(prefix string) []apiclient.Media {
	var out []apiclient.Media
	for _, m := range p.items {
		if strings.HasPrefix(m.MimeType, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Markdown is the snippet inserted into the content for m.
func Markdown(m apiclient.Media) string {
	if strings.HasPrefix(m.MimeType, "image/") {
		return fmt.Sprintf("![%s](/media/%s)", m.Name, m.Path)
	}
	return fmt.Sprintf("[%s](/media/%s)", m.Name, m.Path)
}
