package catalog

import "strings"

const (
	PosterSize   = "w500"
	BackdropSize = "w1280"
)

// Images builds absolute image URLs from catalog-relative paths.
type Images struct {
	BaseURL string
}

func (i Images) url(size string, path *string) *string {
	if path == nil || *path == "" || i.BaseURL == "" {
		return nil
	}
	u := strings.TrimRight(i.BaseURL, "/") + "/" + size + *path
	return &u
}

// Poster returns the poster URL or nil when path is empty.
func (i Images) Poster(path *string) *string {
	return i.url(PosterSize, path)
}

// Backdrop returns the backdrop URL or nil when path is empty.
func (i Images) Backdrop(path *string) *string {
	return i.url(BackdropSize, path)
}
