package domain

import "time"

// ReviewVerdict is a reviewer's decision on a submitted WorkItem. Verdicts are
// append-only; Sequence orders them per item starting at 1.
type ReviewVerdict struct {
	ID               string
	WorkItemID       string
	ReviewerID       string
	Sequence         int
	Decision         Decision
	Feedback         *string
	DefectCategories []DefectCategory
	CreatedAt        time.Time
}

// CategoryNames returns the names of the attached defect categories.
func (v *ReviewVerdict) CategoryNames() []string {
	names := make([]string, 0, len(v.DefectCategories))
	for _, c := range v.DefectCategories {
		names = append(names, c.Name)
	}
	return names
}

// Latest returns the verdict with the highest sequence, or nil.
func Latest(verdicts []ReviewVerdict) *ReviewVerdict {
	var latest *ReviewVerdict
	for i := range verdicts {
		if latest == nil || verdicts[i].Sequence > latest.Sequence {
			latest = &verdicts[i]
		}
	}
	return latest
}
