// Package article holds the records that flow through the translation
// pipeline: the source article handed in by a collector, the ordered content
// blocks of its body, and the translated article handed to a publisher.
package article

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalid is returned when a record fails required-field validation.
var ErrInvalid = errors.New("invalid article record")

// SourceArticle is a candidate produced by a source collector.
// RawHTML may be empty until the article has been fetched.
type SourceArticle struct {
	URL         string    `json:"url" yaml:"url" validate:"required,url"`
	Title       string    `json:"title" yaml:"title"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	RawHTML     string    `json:"-" yaml:"-"`
}

// NewSourceArticle builds a validated SourceArticle.
func NewSourceArticle(url, title string, publishedAt time.Time, rawHTML string) (SourceArticle, error) {
	a := SourceArticle{
		URL:         strings.TrimSpace(url),
		Title:       strings.TrimSpace(title),
		PublishedAt: publishedAt,
		RawHTML:     rawHTML,
	}
	if err := validate.Struct(a); err != nil {
		return SourceArticle{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return a, nil
}

// WithHTML returns a copy carrying the fetched document.
func (a SourceArticle) WithHTML(rawHTML string) SourceArticle {
	a.RawHTML = rawHTML
	return a
}

// TranslatedArticle is the publish-ready result of the pipeline.
type TranslatedArticle struct {
	Title       string    `json:"title" yaml:"title" validate:"required"`
	BodyHTML    string    `json:"body_html" yaml:"body_html" validate:"required"`
	Excerpt     string    `json:"excerpt" yaml:"excerpt"`
	SummaryHTML string    `json:"summary_html,omitempty" yaml:"summary_html,omitempty"`
	Warnings    []Warning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewTranslatedArticle builds a validated TranslatedArticle.
func NewTranslatedArticle(title, bodyHTML, excerpt, summaryHTML string, warnings []Warning) (TranslatedArticle, error) {
	t := TranslatedArticle{
		Title:       strings.TrimSpace(title),
		BodyHTML:    strings.TrimSpace(bodyHTML),
		Excerpt:     strings.TrimSpace(excerpt),
		SummaryHTML: strings.TrimSpace(summaryHTML),
		Warnings:    warnings,
	}
	if err := validate.Struct(t); err != nil {
		return TranslatedArticle{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return t, nil
}

// WarningKind classifies a non-fatal integrity problem.
type WarningKind string

const (
	WarnSegmentCount     WarningKind = "segment_count"
	WarnTokenMissing     WarningKind = "token_missing"
	WarnTokenDuplicated  WarningKind = "token_duplicated"
	WarnResidualLanguage WarningKind = "residual_language"
	WarnFeaturedImage    WarningKind = "featured_image"
)

// Warning is attached to a result instead of failing the article.
type Warning struct {
	Kind     WarningKind `json:"kind" yaml:"kind"`
	Message  string      `json:"message" yaml:"message"`
	Position int         `json:"position" yaml:"position"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s at %d: %s", w.Kind, w.Position, w.Message)
}
