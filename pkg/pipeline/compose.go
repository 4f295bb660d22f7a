package pipeline

import (
	"html/template"
	"strings"
	"time"
)

// Labels are the fixed strings of the composed post.
type Labels struct {
	Published string `mapstructure:"published" json:"published"`
	Source    string `mapstructure:"source" json:"source"`
	Original  string `mapstructure:"original" json:"original"`
	Summary   string `mapstructure:"summary" json:"summary"`
}

// DefaultLabels returns the Korean labels.
func DefaultLabels() Labels {
	return Labels{
		Published: "원문 게시시각",
		Source:    "출처",
		Original:  "원문 기사 보기",
		Summary:   "핵심 요약",
	}
}

type composition struct {
	Title         string
	OriginalTitle string
	Source        string
	Host          string
	Published     time.Time
	Image         string
	Body          string
	Summary       string
}

var postTemplate = template.Must(template.New("post").Parse(
	`{{if .Image}}<figure style="margin: 0 0 30px 0;"><img src="{{.Image}}" alt="{{.Title}}" style="width:100%; height:auto; display:block;" /></figure>

{{end}}<div class="newsbridge-article" style="line-height:1.85; font-size:17px;">
<div style="border-top:2px solid #111; border-bottom:1px solid #ddd; padding:10px 0; margin:0 0 24px 0;">
{{if .When}}<p style="margin:0; color:#555; font-size:13px;">{{.Labels.Published}}: {{.When}}</p>
{{end}}<p style="margin:6px 0 0 0; color:#111; font-size:13px;">{{.Labels.Source}}: <a href="{{.Source}}" target="_blank" rel="noopener">{{.Host}}</a></p>
</div>
{{.Body}}
{{if .Summary}}<div class="newsbridge-summary" style="background:#f7f7f7; border-left:4px solid #111; padding:12px 16px; margin:24px 0 0 0;">
<p style="margin:0 0 8px 0; font-weight:bold;">{{.Labels.Summary}}</p>
{{.Summary}}
</div>
{{end}}</div>

<hr style="margin: 40px 0 20px 0;">
<p style="font-size: 14px; color: #666;">ℹ️ <strong>{{.Labels.Original}}:</strong> <a href="{{.Source}}" target="_blank" rel="noopener">{{.OriginalTitle}}</a></p>`))

// compose builds the final post HTML: featured figure, source meta line,
// body, summary box and a footer link to the original.
func (p *Pipeline) compose(c composition) (string, error) {
	var when string
	if !c.Published.IsZero() {
		local := c.Published.In(p.deps.SourceZone)
		when = local.Format("2006-01-02 15:04") + " (" + local.Format("MST") + ")"
	}
	var sb strings.Builder
	err := postTemplate.Execute(&sb, struct {
		composition
		Labels  Labels
		When    string
		Body    template.HTML
		Summary template.HTML
	}{
		composition: c,
		Labels:      p.cfg.Labels,
		When:        when,
		Body:        template.HTML(c.Body),
		Summary:     template.HTML(c.Summary),
	})
	return sb.String(), err
}
