package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Clark-Hu/movplay/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrNotFound is returned when the catalog has no entry for the id.
	ErrNotFound = errors.New("catalog: not found")
	// ErrUnavailable covers network failures, rate limiting, upstream
	// errors and payloads that cannot be decoded.
	ErrUnavailable = errors.New("catalog: unavailable")
)

// Category selects one of the catalog's curated movie lists.
type Category string

const (
	CategoryPopular    Category = "popular"
	CategoryTopRated   Category = "top_rated"
	CategoryNowPlaying Category = "now_playing"
	CategoryUpcoming   Category = "upcoming"
	CategoryTrending   Category = "trending"
)

// Summary is one row of a catalog listing.
type Summary struct {
	ID            int64   `json:"id"`
	Title         string  `json:"title"`
	OriginalTitle string  `json:"original_title"`
	Overview      string  `json:"overview"`
	ReleaseDate   string  `json:"release_date"`
	PosterPath    *string `json:"poster_path"`
	BackdropPath  *string `json:"backdrop_path"`
	GenreIDs      []int   `json:"genre_ids"`
	Popularity    float64 `json:"popularity"`
	VoteAverage   float64 `json:"vote_average"`
	VoteCount     int64   `json:"vote_count"`
}

// Page is a paginated catalog listing.
type Page struct {
	Page         int       `json:"page"`
	Results      []Summary `json:"results"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
}

// Client defines the contract for querying the external movie catalog.
type Client interface {
	MovieDetails(ctx context.Context, externalID string) (*domain.MovieSnapshot, error)
	Search(ctx context.Context, query string, page int) (*Page, error)
	List(ctx context.Context, category Category, page int) (*Page, error)
	Discover(ctx context.Context, filter DiscoverFilter, page int) (*Page, error)
	Genres(ctx context.Context) ([]domain.Genre, error)
	Recommendations(ctx context.Context, externalID string, page int) (*Page, error)
	Similar(ctx context.Context, externalID string, page int) (*Page, error)
}

// HTTPClient implements Client against a TMDB-compatible v3 API.
type HTTPClient struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPClient constructs a new HTTP-backed catalog client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) (*HTTPClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse catalog url: %w", err)
	}
	return &HTTPClient{
		baseURL: parsed,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConnsPerHost:   16,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		logger: logger.Named("catalog"),
	}, nil
}

// MovieDetails fetches one movie with credits, videos and keywords.
func (c *HTTPClient) MovieDetails(ctx context.Context, externalID string) (*domain.MovieSnapshot, error) {
	params := url.Values{}
	params.Set("append_to_response", "credits,videos,keywords")

	var payload detailsPayload
	if err := c.get(ctx, "/movie/"+url.PathEscape(externalID), params, &payload); err != nil {
		return nil, err
	}
	return convertToSnapshot(payload)
}

// Search runs a title search.
func (c *HTTPClient) Search(ctx context.Context, query string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("page", strconv.Itoa(normalizePage(page)))
	params.Set("include_adult", "false")

	var result Page
	if err := c.get(ctx, "/search/movie", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List fetches a curated listing. Trending uses the weekly window.
func (c *HTTPClient) List(ctx context.Context, category Category, page int) (*Page, error) {
	var path string
	switch category {
	case CategoryPopular, CategoryTopRated, CategoryNowPlaying, CategoryUpcoming:
		path = "/movie/" + string(category)
	case CategoryTrending:
		path = "/trending/movie/week"
	default:
		return nil, fmt.Errorf("catalog: unknown category %q", category)
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var result Page
	if err := c.get(ctx, path, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Discover runs a filtered catalog query. Unset filter fields are left
// to the catalog's defaults.
func (c *HTTPClient) Discover(ctx context.Context, filter DiscoverFilter, page int) (*Page, error) {
	params := filter.params()
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var result Page
	if err := c.get(ctx, "/discover/movie", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Genres lists the catalog's movie genres.
func (c *HTTPClient) Genres(ctx context.Context) ([]domain.Genre, error) {
	var payload struct {
		Genres []domain.Genre `json:"genres"`
	}
	if err := c.get(ctx, "/genre/movie/list", nil, &payload); err != nil {
		return nil, err
	}
	if payload.Genres == nil {
		payload.Genres = []domain.Genre{}
	}
	return payload.Genres, nil
}

// Recommendations lists movies the catalog recommends for externalID.
func (c *HTTPClient) Recommendations(ctx context.Context, externalID string, page int) (*Page, error) {
	return c.related(ctx, externalID, "recommendations", page)
}

// Similar lists movies the catalog considers similar to externalID.
func (c *HTTPClient) Similar(ctx context.Context, externalID string, page int) (*Page, error) {
	return c.related(ctx, externalID, "similar", page)
}

func (c *HTTPClient) related(ctx context.Context, externalID, kind string, page int) (*Page, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(normalizePage(page)))

	var result Page
	if err := c.get(ctx, "/movie/"+url.PathEscape(externalID)+"/"+kind, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *HTTPClient) get(ctx context.Context, path string, params url.Values, dst any) error {
	rel := &url.URL{Path: c.baseURL.Path + path}
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	rel.RawQuery = params.Encode()
	endpoint := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			return fmt.Errorf("%w: decode %s: %v", ErrUnavailable, path, err)
		}
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		c.logger.Warn("rate limited", zap.String("path", path))
		return fmt.Errorf("%w: rate limited", ErrUnavailable)
	default:
		c.logger.Warn("unexpected status", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: upstream returned %d", ErrUnavailable, resp.StatusCode)
	}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	if page > 500 {
		return 500
	}
	return page
}
