package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/Clark-Hu/movplay/internal/catalog"
	"github.com/Clark-Hu/movplay/internal/domain"
)

// SearchMovies forwards a title search to the catalog.
func (s *Service) SearchMovies(ctx context.Context, query string, page int) (*catalog.Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.Errorf(domain.ErrInvalidInput, "search query is required")
	}
	result, err := s.catalog.Search(ctx, query, page)
	if err != nil {
		return nil, catalogError("search", err)
	}
	return result, nil
}

// BrowseMovies returns one of the catalog's curated listings.
func (s *Service) BrowseMovies(ctx context.Context, category catalog.Category, page int) (*catalog.Page, error) {
	result, err := s.catalog.List(ctx, category, page)
	if err != nil {
		return nil, catalogError(string(category), err)
	}
	return result, nil
}

// DiscoverMovies lists catalog movies matching filter.
func (s *Service) DiscoverMovies(ctx context.Context, filter catalog.DiscoverFilter, page int) (*catalog.Page, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	result, err := s.catalog.Discover(ctx, filter, page)
	if err != nil {
		return nil, catalogError("discover", err)
	}
	return result, nil
}

// MovieGenres returns the catalog's genre list.
func (s *Service) MovieGenres(ctx context.Context) ([]domain.Genre, error) {
	genres, err := s.catalog.Genres(ctx)
	if err != nil {
		return nil, catalogError("genres", err)
	}
	return genres, nil
}

// RecommendedMovies returns the catalog's recommendations for externalID.
func (s *Service) RecommendedMovies(ctx context.Context, externalID string, page int) (*catalog.Page, error) {
	return s.relatedMovies(ctx, externalID, page, s.catalog.Recommendations)
}

// SimilarMovies returns catalog movies similar to externalID.
func (s *Service) SimilarMovies(ctx context.Context, externalID string, page int) (*catalog.Page, error) {
	return s.relatedMovies(ctx, externalID, page, s.catalog.Similar)
}

func (s *Service) relatedMovies(ctx context.Context, externalID string, page int, fetch func(context.Context, string, int) (*catalog.Page, error)) (*catalog.Page, error) {
	externalID, err := domain.CanonicalExternalID(externalID)
	if err != nil {
		return nil, err
	}
	result, err := fetch(ctx, externalID, page)
	if err != nil {
		return nil, catalogError(externalID, err)
	}
	return result, nil
}

// MovieTrailers returns the YouTube trailers stored with the movie,
// caching the movie first if needed.
func (s *Service) MovieTrailers(ctx context.Context, externalID string) ([]domain.Video, error) {
	movie, err := s.EnsureMovie(ctx, externalID)
	if err != nil {
		return nil, err
	}
	trailers, err := movie.Trailers()
	if err != nil {
		return nil, fmt.Errorf("trailers: %w", err)
	}
	return trailers, nil
}
