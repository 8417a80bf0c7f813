package schema

import "time"

// GFIBrief is one issue scored by the classifier. Probability is the model
// output and Threshold the cutoff that was applied to call it a GFI; both
// are stored as-is without range checks.
type GFIBrief struct {
	Name        string
	Owner       string
	Number      int
	Threshold   float64
	Probability float64
	LastUpdated time.Time
	State       Nullable[string]
	Title       Nullable[string]
}

func ValidateGFIBrief(raw map[string]any) (GFIBrief, error) {
	d := newDecoder(raw)
	g := GFIBrief{
		Name:        d.requiredString("name"),
		Owner:       d.requiredString("owner"),
		Number:      d.requiredInt("number"),
		Threshold:   d.requiredFloat("threshold"),
		Probability: d.requiredFloat("probability"),
		LastUpdated: d.requiredTime("last_updated"),
		State:       d.nullableString("state"),
		Title:       d.nullableString("title"),
	}
	return g, d.err()
}

func (g GFIBrief) Encode() map[string]any {
	raw := map[string]any{
		"name":         g.Name,
		"owner":        g.Owner,
		"number":       g.Number,
		"threshold":    g.Threshold,
		"probability":  g.Probability,
		"last_updated": encodeTime(g.LastUpdated),
	}
	putNullableString(raw, "state", g.State)
	putNullableString(raw, "title", g.Title)
	return raw
}

// TrainingResult records model performance metrics for one repository's
// issue history. It is informational; the train/test split consistency is
// the producer's responsibility.
type TrainingResult struct {
	Owner             string
	Name              string
	IssuesTrain       int
	IssuesTest        int
	NResolvedIssues   int
	NNewcomerResolved int
	Accuracy          Nullable[float64]
	AUC               Nullable[float64]
	LastUpdated       time.Time
}

func ValidateTrainingResult(raw map[string]any) (TrainingResult, error) {
	d := newDecoder(raw)
	r := TrainingResult{
		Owner:             d.requiredString("owner"),
		Name:              d.requiredString("name"),
		IssuesTrain:       d.requiredInt("issues_train"),
		IssuesTest:        d.requiredInt("issues_test"),
		NResolvedIssues:   d.requiredInt("n_resolved_issues"),
		NNewcomerResolved: d.requiredInt("n_newcomer_resolved"),
		Accuracy:          d.nullableFloat("accuracy"),
		AUC:               d.nullableFloat("auc"),
		LastUpdated:       d.requiredTime("last_updated"),
	}
	return r, d.err()
}

func (r TrainingResult) Encode() map[string]any {
	raw := map[string]any{
		"owner":               r.Owner,
		"name":                r.Name,
		"issues_train":        r.IssuesTrain,
		"issues_test":         r.IssuesTest,
		"n_resolved_issues":   r.NResolvedIssues,
		"n_newcomer_resolved": r.NNewcomerResolved,
		"last_updated":        encodeTime(r.LastUpdated),
	}
	putNullableFloat(raw, "accuracy", r.Accuracy)
	putNullableFloat(raw, "auc", r.AUC)
	return raw
}
