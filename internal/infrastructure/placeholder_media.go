package infrastructure

import (
	"fmt"
	"time"
)

const (
	placeholderImageURL = "https://picsum.photos"
	PlaceholderVideoURL = "https://sample-videos.com/zip/10/mp4/SampleVideo_1280x720_1mb.mp4"
	PlaceholderModel    = "placeholder"
)

// PlaceholderMedia hands out stock media URLs when no generator is available.
type PlaceholderMedia struct {
	now func() time.Time
}

func NewPlaceholderMedia() *PlaceholderMedia {
	return &PlaceholderMedia{now: time.Now}
}

// ImageURL adds a cache-busting parameter so clients do not reuse a stale image.
func (p *PlaceholderMedia) ImageURL(size string) string {
	w, h, ok := ParseSize(size)
	if !ok {
		w, h = 1024, 1024
	}
	return fmt.Sprintf("%s/%d/%d?random=%d", placeholderImageURL, w, h, p.now().UnixMilli())
}

func (p *PlaceholderMedia) VideoURL() string {
	return PlaceholderVideoURL
}
