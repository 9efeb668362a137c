package domain

import (
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
)

// Video is one entry of the catalog's video list for a movie.
type Video struct {
	Key       string `json:"key"`
	Name      string `json:"name"`
	Site      string `json:"site"`
	Type      string `json:"type"`
	Official  bool   `json:"official"`
	Published string `json:"published_at,omitempty"`
}

// Trailers returns the YouTube trailers held in the movie's stored
// details, in catalog order.
func (m Movie) Trailers() ([]Video, error) {
	trailers := []Video{}
	if len(m.Details) == 0 {
		return trailers, nil
	}
	var details struct {
		Videos []Video `json:"videos"`
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(m.Details, &details); err != nil {
		return nil, fmt.Errorf("decode details of movie %s: %w", m.ExternalID, err)
	}
	for _, v := range details.Videos {
		if strings.EqualFold(v.Site, "YouTube") && strings.EqualFold(v.Type, "Trailer") {
			trailers = append(trailers, v)
		}
	}
	return trailers, nil
}
