package outcome

import (
	"strings"
	"time"

	"github.com/sells-group/futuretree/internal/model"
)

// Survey answers for how the committed path went.
const (
	SurveySuccess   = "success"
	SurveyPartial   = "partial"
	SurveyFailure   = "failure"
	SurveyAbandoned = "abandoned"
)

// SurveyResponse is a completed follow-up survey.
type SurveyResponse struct {
	Outcome         string   `json:"outcome"`
	ActualSpend     *float64 `json:"actualSpend,omitempty"`
	ProgressPercent *float64 `json:"progressPercent,omitempty"`
	WouldRecommend  *bool    `json:"wouldRecommend,omitempty"`
	Lessons         string   `json:"lessons,omitempty"`
	ActualMonths    *float64 `json:"actualMonths,omitempty"`
	FailureLayer    string   `json:"failureLayer,omitempty"`
}

// Validate returns every problem with r as a *model.ValidationError.
func (r *SurveyResponse) Validate() error {
	verr := &model.ValidationError{}
	switch r.Outcome {
	case SurveySuccess, SurveyPartial, SurveyFailure, SurveyAbandoned:
	case "":
		verr.Add("outcome", "is required")
	default:
		verr.Add("outcome", "must be one of success, partial, failure, abandoned")
	}
	if r.ActualSpend != nil && *r.ActualSpend < 0 {
		verr.Add("actualSpend", "must be >= 0")
	}
	if r.ProgressPercent != nil && (*r.ProgressPercent < 0 || *r.ProgressPercent > 100) {
		verr.Add("progressPercent", "must be between 0 and 100")
	}
	if r.ActualMonths != nil && *r.ActualMonths < 0 {
		verr.Add("actualMonths", "must be >= 0")
	}
	if r.FailureLayer != "" && !model.FailureLayer(r.FailureLayer).Valid() {
		verr.Add("failureLayer", "must be one of reality, understanding, decision, action")
	}
	return verr.OrNil()
}

// Succeeded reports whether the answers count as a success: an explicit
// success, or a partial result that reached full progress.
func (r *SurveyResponse) Succeeded() bool {
	if r.Outcome == SurveySuccess {
		return true
	}
	return r.Outcome == SurveyPartial && r.ProgressPercent != nil && *r.ProgressPercent >= 100
}

// reachedEnd reports whether the path was followed to completion, so the
// time since commitment is its total duration.
func (r *SurveyResponse) reachedEnd() bool {
	return r.Succeeded() || (r.ProgressPercent != nil && *r.ProgressPercent >= 100)
}

// apply copies the answers into o's actual fields. Without reported months
// the elapsed time since commitment is used, but only for a path followed to
// the end; an abandoned or unfinished one has no total duration.
func (r *SurveyResponse) apply(o *model.PathOutcome, now time.Time) {
	success := r.Succeeded()
	o.ActualSuccess = &success
	o.ActualCost = r.ActualSpend
	o.ProgressPercent = r.ProgressPercent
	o.WouldRecommend = r.WouldRecommend
	o.Lessons = model.StringPtr(strings.TrimSpace(r.Lessons))

	if r.ActualMonths != nil {
		m := *r.ActualMonths
		o.ActualMonths = &m
	} else if r.reachedEnd() {
		m := monthsBetween(o.CommittedAt, now)
		o.ActualMonths = &m
	}

	if r.FailureLayer != "" {
		l := model.FailureLayer(r.FailureLayer)
		o.FailureLayer = &l
	}
}
