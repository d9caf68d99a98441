package score

import "sort"

// Severity orders audit findings; lower rank sorts first.
type Severity string

// The fixed severity scale.
const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
	SeverityInfo:     4,
}

// Effort and lift classifications used by the quick-wins ranking.
const (
	EffortLow    = "Low"
	EffortMedium = "Medium"
	EffortHigh   = "High"

	LiftLow    = "Low"
	LiftMedium = "Medium"
	LiftHigh   = "High"
)

// Issue is one append-only audit finding. Only its position in the output
// ordering is ever computed; the fields never change after creation.
type Issue struct {
	Severity       Severity `json:"priority"`
	Category       string   `json:"category"`
	Title          string   `json:"title"`
	Detail         string   `json:"detail"`
	Impact         string   `json:"impact,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	Evidence       []string `json:"evidence,omitempty"`
	Effort         string   `json:"effort,omitempty"`
	ExpectedLift   string   `json:"expected_lift,omitempty"`
}

// NewIssue builds an Issue, deduplicating evidence URLs while preserving
// their first-seen order.
func NewIssue(severity Severity, category, title, detail string, evidence ...string) Issue {
	seen := make(map[string]struct{}, len(evidence))
	deduped := make([]string, 0, len(evidence))
	for _, e := range evidence {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		deduped = append(deduped, e)
	}
	if len(deduped) == 0 {
		deduped = nil
	}
	return Issue{
		Severity: severity,
		Category: category,
		Title:    title,
		Detail:   detail,
		Evidence: deduped,
		Effort:   EffortMedium,
	}
}

func rank(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return len(severityRank)
}

// Prioritize returns issues ordered by severity, ties broken by title, so
// output is stable run over run for identical inputs. The input slice is not
// modified.
func Prioritize(issues []Issue) []Issue {
	ordered := make([]Issue, len(issues))
	copy(ordered, issues)
	sort.SliceStable(ordered, func(i, j int) bool {
		ri, rj := rank(ordered[i].Severity), rank(ordered[j].Severity)
		if ri != rj {
			return ri < rj
		}
		return ordered[i].Title < ordered[j].Title
	})
	return ordered
}

func liftRank(lift string) int {
	switch lift {
	case LiftHigh:
		return 0
	case LiftMedium:
		return 1
	default:
		return 2
	}
}

// QuickWins ranks issues by severity, then low effort, then high expected
// lift, and keeps only Low/Medium-effort items up to limit.
func QuickWins(issues []Issue, limit int) []Issue {
	ranked := make([]Issue, len(issues))
	copy(ranked, issues)
	sort.SliceStable(ranked, func(i, j int) bool {
		ri, rj := rank(ranked[i].Severity), rank(ranked[j].Severity)
		if ri != rj {
			return ri < rj
		}
		ei := 0
		if ranked[i].Effort != EffortLow {
			ei = 1
		}
		ej := 0
		if ranked[j].Effort != EffortLow {
			ej = 1
		}
		if ei != ej {
			return ei < ej
		}
		return liftRank(ranked[i].ExpectedLift) < liftRank(ranked[j].ExpectedLift)
	})
	wins := make([]Issue, 0, limit)
	for _, issue := range ranked {
		if issue.Effort != EffortLow && issue.Effort != EffortMedium {
			continue
		}
		wins = append(wins, issue)
		if len(wins) >= limit {
			break
		}
	}
	return wins
}
