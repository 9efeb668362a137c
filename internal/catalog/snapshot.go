package catalog

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/Clark-Hu/movplay/internal/domain"
)

const maxCastMembers = 20

type detailsPayload struct {
	ID                  int64               `json:"id"`
	Title               string              `json:"title"`
	OriginalTitle       string              `json:"original_title"`
	Genres              []domain.Genre      `json:"genres"`
	ReleaseDate         string              `json:"release_date"`
	Runtime             *int                `json:"runtime"`
	VoteAverage         float64             `json:"vote_average"`
	VoteCount           int64               `json:"vote_count"`
	PosterPath          *string             `json:"poster_path"`
	BackdropPath        *string             `json:"backdrop_path"`
	Overview            string              `json:"overview"`
	Tagline             string              `json:"tagline"`
	Status              string              `json:"status"`
	Budget              int64               `json:"budget"`
	Revenue             int64               `json:"revenue"`
	Popularity          float64             `json:"popularity"`
	SpokenLanguages     jsoniter.RawMessage `json:"spoken_languages"`
	ProductionCompanies jsoniter.RawMessage `json:"production_companies"`
	ProductionCountries jsoniter.RawMessage `json:"production_countries"`
	Credits             struct {
		Cast []jsoniter.RawMessage `json:"cast"`
		Crew jsoniter.RawMessage   `json:"crew"`
	} `json:"credits"`
	Videos struct {
		Results jsoniter.RawMessage `json:"results"`
	} `json:"videos"`
	Keywords struct {
		Keywords jsoniter.RawMessage `json:"keywords"`
	} `json:"keywords"`
}

// convertToSnapshot keeps the typed fields and packs the remaining
// catalog sub-documents into an opaque Details object.
func convertToSnapshot(p detailsPayload) (*domain.MovieSnapshot, error) {
	if p.ID <= 0 {
		return nil, fmt.Errorf("%w: payload without id", ErrUnavailable)
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = strings.TrimSpace(p.OriginalTitle)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: payload without title", ErrUnavailable)
	}

	snap := &domain.MovieSnapshot{
		ExternalID:     strconv.FormatInt(p.ID, 10),
		Title:          title,
		OriginalTitle:  p.OriginalTitle,
		Genres:         p.Genres,
		Runtime:        p.Runtime,
		ExternalRating: domain.RatingSummary{Average: p.VoteAverage, Count: p.VoteCount},
		PosterPath:     nonEmpty(p.PosterPath),
		BackdropPath:   nonEmpty(p.BackdropPath),
		Overview:       p.Overview,
		Tagline:        p.Tagline,
		Status:         p.Status,
		Budget:         p.Budget,
		Revenue:        p.Revenue,
		Popularity:     p.Popularity,
	}
	if snap.Genres == nil {
		snap.Genres = []domain.Genre{}
	}
	if d, err := time.Parse("2006-01-02", p.ReleaseDate); err == nil {
		snap.ReleaseDate = &d
	}

	cast := p.Credits.Cast
	if len(cast) > maxCastMembers {
		cast = cast[:maxCastMembers]
	}
	var castRaw jsoniter.RawMessage
	if len(cast) > 0 {
		encoded, err := json.Marshal(cast)
		if err != nil {
			return nil, fmt.Errorf("%w: encode cast: %v", ErrUnavailable, err)
		}
		castRaw = encoded
	}

	details := map[string]jsoniter.RawMessage{}
	for key, raw := range map[string]jsoniter.RawMessage{
		"spokenLanguages":     p.SpokenLanguages,
		"productionCompanies": p.ProductionCompanies,
		"productionCountries": p.ProductionCountries,
		"cast":                castRaw,
		"crew":                p.Credits.Crew,
		"videos":              p.Videos.Results,
		"keywords":            p.Keywords.Keywords,
	} {
		if isPassthrough(raw) {
			details[key] = raw
		}
	}
	encoded, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("%w: encode details: %v", ErrUnavailable, err)
	}
	snap.Details = encoded
	return snap, nil
}

// isPassthrough accepts exactly one non-null, well-formed JSON value.
func isPassthrough(raw jsoniter.RawMessage) bool {
	if len(raw) == 0 || strings.TrimSpace(string(raw)) == "null" {
		return false
	}
	iter := jsoniter.ConfigFastest.BorrowIterator(raw)
	defer jsoniter.ConfigFastest.ReturnIterator(iter)
	iter.Skip()
	if iter.Error != nil {
		return false
	}
	return iter.WhatIsNext() == jsoniter.InvalidValue && errors.Is(iter.Error, io.EOF)
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
