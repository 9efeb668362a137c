package domain

import (
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxWatchlistNameLength        = 100
	MaxWatchlistDescriptionLength = 500
	MaxWatchlistTagLength         = 30
	MaxPersonalNotesLength        = 1000

	DefaultWatchlistName        = "My Watchlist"
	DefaultWatchlistDescription = "Movies I want to watch"
)

// Permission is a collaborator's access level on a watchlist.
type Permission string

const (
	PermissionView  Permission = "view"
	PermissionEdit  Permission = "edit"
	PermissionAdmin Permission = "admin"
)

// ParsePermission validates a raw permission string.
func ParsePermission(raw string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(raw))); p {
	case PermissionView, PermissionEdit, PermissionAdmin:
		return p, nil
	case "":
		return PermissionView, nil
	default:
		return "", Errorf(ErrInvalidInput, "invalid permission %q", raw)
	}
}

// WatchlistEntry is a movie membership keyed by ExternalID.
type WatchlistEntry struct {
	MovieID        string
	ExternalID     string
	Title          string
	PosterPath     *string
	AddedAt        time.Time
	Watched        bool
	WatchedAt      *time.Time
	PersonalRating *float64
	PersonalNotes  string
}

// Collaborator grants another user access to a watchlist.
type Collaborator struct {
	UserID     string
	Permission Permission
	AddedAt    time.Time
}

// Watchlist is a named, ordered collection of entries owned by one user.
// Entries are ordered by AddedAt and hold at most one entry per ExternalID.
type Watchlist struct {
	ID            string
	UserID        string
	Name          string
	Description   string
	IsPublic      bool
	IsDefault     bool
	Tags          []string
	Views         int64
	LikeCount     int
	Entries       []WatchlistEntry
	Collaborators []Collaborator
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Entry looks up the membership for externalID.
func (w Watchlist) Entry(externalID string) (WatchlistEntry, bool) {
	for _, e := range w.Entries {
		if e.ExternalID == externalID {
			return e, true
		}
	}
	return WatchlistEntry{}, false
}

func (w Watchlist) WatchedCount() int {
	n := 0
	for _, e := range w.Entries {
		if e.Watched {
			n++
		}
	}
	return n
}

// CompletionPercentage is the rounded share of watched entries.
func (w Watchlist) CompletionPercentage() int {
	if len(w.Entries) == 0 {
		return 0
	}
	return int(math.Round(float64(w.WatchedCount()) / float64(len(w.Entries)) * 100))
}

func (w Watchlist) permission(userID string) (Permission, bool) {
	for _, c := range w.Collaborators {
		if c.UserID == userID {
			return c.Permission, true
		}
	}
	return "", false
}

// CanView reports whether userID may read the watchlist.
func (w Watchlist) CanView(userID string) bool {
	if w.IsPublic || (userID != "" && w.UserID == userID) {
		return true
	}
	_, ok := w.permission(userID)
	return ok
}

// CanEdit reports whether userID may change the watchlist's entries.
func (w Watchlist) CanEdit(userID string) bool {
	if userID == "" {
		return false
	}
	if w.UserID == userID {
		return true
	}
	p, ok := w.permission(userID)
	return ok && (p == PermissionEdit || p == PermissionAdmin)
}

// WatchlistInput is the user-editable part of a watchlist.
type WatchlistInput struct {
	Name        string
	Description string
	IsPublic    bool
	Tags        []string
}

// Normalize trims and validates the input.
func (in WatchlistInput) Normalize() (WatchlistInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return in, Errorf(ErrInvalidInput, "watchlist name is required")
	}
	if utf8.RuneCountInString(in.Name) > MaxWatchlistNameLength {
		return in, Errorf(ErrInvalidInput, "watchlist name cannot exceed %d characters", MaxWatchlistNameLength)
	}
	if utf8.RuneCountInString(in.Description) > MaxWatchlistDescriptionLength {
		return in, Errorf(ErrInvalidInput, "description cannot exceed %d characters", MaxWatchlistDescriptionLength)
	}
	tags := make([]string, 0, len(in.Tags))
	for _, tag := range in.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if utf8.RuneCountInString(tag) > MaxWatchlistTagLength {
			return in, Errorf(ErrInvalidInput, "tag cannot exceed %d characters", MaxWatchlistTagLength)
		}
		tags = append(tags, tag)
	}
	in.Tags = tags
	return in, nil
}
