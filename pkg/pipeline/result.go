package pipeline

import (
	"time"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

// Outcome classifies what happened to an article.
type Outcome string

const (
	OutcomePublished    Outcome = "published"
	OutcomeTranslated   Outcome = "translated" // dry run
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeCorroborated Outcome = "corroborated"
	OutcomeSkipped      Outcome = "skipped"
	OutcomeFailed       Outcome = "failed"
	OutcomeAborted      Outcome = "aborted"
)

// Stages name where an article stopped.
const (
	StageSource    = "source"
	StageLedger    = "ledger"
	StageFetch     = "fetch"
	StageExtract   = "extract"
	StageTranslate = "translate"
	StageRepair    = "repair"
	StageCompose   = "compose"
	StagePublish   = "publish"
)

// Result is the record of one article.
type Result struct {
	URL         string                     `json:"url" yaml:"url"`
	SourceTitle string                     `json:"source_title" yaml:"source_title"`
	Outcome     Outcome                    `json:"outcome" yaml:"outcome"`
	Stage       string                     `json:"stage" yaml:"stage"`
	Error       string                     `json:"error,omitempty" yaml:"error,omitempty"`
	PostURL     string                     `json:"post_url,omitempty" yaml:"post_url,omitempty"`
	Warnings    []article.Warning          `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	Article     *article.TranslatedArticle `json:"article,omitempty" yaml:"article,omitempty"`
	Duration    time.Duration              `json:"duration" yaml:"duration"`

	Err error `json:"-" yaml:"-"`
}

// Report summarises a batch.
type Report struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"duration" yaml:"duration"`
	Collected int             `json:"collected" yaml:"collected"`
	Throttled bool            `json:"throttled" yaml:"throttled"`
	Counts    map[Outcome]int `json:"counts" yaml:"counts"`
	Results   []Result        `json:"results" yaml:"results"`
}

func (r *Report) add(res Result) {
	if r.Counts == nil {
		r.Counts = make(map[Outcome]int)
	}
	r.Counts[res.Outcome]++
	r.Results = append(r.Results, res)
}
