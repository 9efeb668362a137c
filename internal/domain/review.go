package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MaxReviewTitleLength   = 200
	MaxReviewCommentLength = 2000
)

// Review is one user's opinion of one movie. (UserID, MovieID) is unique.
type Review struct {
	ID             string
	UserID         string
	Username       string
	MovieID        string
	ExternalID     string
	Rating         float64
	Title          string
	Comment        string
	SpoilerWarning bool
	Visible        bool
	HelpfulCount   int
	UnhelpfulCount int
	ReportCount    int
	EditedAt       *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// HelpfulScore is helpful votes minus not-helpful votes.
func (r Review) HelpfulScore() int {
	return r.HelpfulCount - r.UnhelpfulCount
}

// TotalVotes counts every recorded helpfulness vote.
func (r Review) TotalVotes() int {
	return r.HelpfulCount + r.UnhelpfulCount
}

// ValidateReviewText trims and bounds the optional title and comment.
func ValidateReviewText(title, comment string) (string, string, error) {
	title = strings.TrimSpace(title)
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(title) > MaxReviewTitleLength {
		return "", "", Errorf(ErrInvalidInput, "review title cannot exceed %d characters", MaxReviewTitleLength)
	}
	if utf8.RuneCountInString(comment) > MaxReviewCommentLength {
		return "", "", Errorf(ErrInvalidInput, "review comment cannot exceed %d characters", MaxReviewCommentLength)
	}
	return title, comment, nil
}

// ReportReason enumerates why a review was reported.
type ReportReason string

const (
	ReportSpam          ReportReason = "spam"
	ReportInappropriate ReportReason = "inappropriate"
	ReportSpoiler       ReportReason = "spoiler"
	ReportOffensive     ReportReason = "offensive"
	ReportOther         ReportReason = "other"
)

// ParseReportReason validates a raw reason string.
func ParseReportReason(raw string) (ReportReason, error) {
	switch r := ReportReason(strings.ToLower(strings.TrimSpace(raw))); r {
	case ReportSpam, ReportInappropriate, ReportSpoiler, ReportOffensive, ReportOther:
		return r, nil
	default:
		return "", Errorf(ErrInvalidInput, "invalid report reason %q", raw)
	}
}

// ReviewSort orders review listings.
type ReviewSort string

const (
	SortNewest  ReviewSort = "newest"
	SortOldest  ReviewSort = "oldest"
	SortHighest ReviewSort = "highest"
	SortLowest  ReviewSort = "lowest"
	SortHelpful ReviewSort = "helpful"
)

// ParseReviewSort defaults to newest for empty input.
func ParseReviewSort(raw string) (ReviewSort, error) {
	switch s := ReviewSort(strings.ToLower(strings.TrimSpace(raw))); s {
	case "":
		return SortNewest, nil
	case SortNewest, SortOldest, SortHighest, SortLowest, SortHelpful:
		return s, nil
	default:
		return "", Errorf(ErrInvalidInput, "invalid sort %q", raw)
	}
}
