package schema

import "time"

// UpdateConfig controls the background task that syncs one repository's
// GitHub data. Interval is in seconds; values <= 0 are accepted here and
// substituted by the sync worker.
type UpdateConfig struct {
	TaskID    string
	Interval  int
	BeginTime time.Time
}

func ValidateUpdateConfig(raw map[string]any) (UpdateConfig, error) {
	d := newDecoder(raw)
	c := UpdateConfig{
		TaskID:    d.requiredString("task_id"),
		Interval:  d.requiredInt("interval"),
		BeginTime: d.requiredTime("begin_time"),
	}
	return c, d.err()
}

func (c UpdateConfig) Encode() map[string]any {
	return map[string]any{
		"task_id":    c.TaskID,
		"interval":   c.Interval,
		"begin_time": encodeTime(c.BeginTime),
	}
}

// RepoConfig holds the GFI-detection heuristics tuned per repository.
// GFIThreshold is the probability cutoff; range is not checked here.
type RepoConfig struct {
	NewcomerThreshold int
	GFIThreshold      float64
	NeedComment       bool
	IssueTag          string
}

func ValidateRepoConfig(raw map[string]any) (RepoConfig, error) {
	d := newDecoder(raw)
	c := RepoConfig{
		NewcomerThreshold: d.requiredInt("newcomer_threshold"),
		GFIThreshold:      d.requiredFloat("gfi_threshold"),
		NeedComment:       d.requiredBool("need_comment"),
		IssueTag:          d.requiredString("issue_tag"),
	}
	return c, d.err()
}

func (c RepoConfig) Encode() map[string]any {
	return map[string]any{
		"newcomer_threshold": c.NewcomerThreshold,
		"gfi_threshold":      c.GFIThreshold,
		"need_comment":       c.NeedComment,
		"issue_tag":          c.IssueTag,
	}
}

// Config pairs the sync task settings with the detection heuristics for a
// single onboarded repository.
type Config struct {
	UpdateConfig UpdateConfig
	RepoConfig   RepoConfig
}

func ValidateConfig(raw map[string]any) (Config, error) {
	d := newDecoder(raw)
	var c Config
	if sub := d.requiredObject("update_config"); sub != nil {
		update, err := ValidateUpdateConfig(sub)
		if err != nil {
			d.failNested("update_config", err)
		}
		c.UpdateConfig = update
	}
	if sub := d.requiredObject("repo_config"); sub != nil {
		repo, err := ValidateRepoConfig(sub)
		if err != nil {
			d.failNested("repo_config", err)
		}
		c.RepoConfig = repo
	}
	return c, d.err()
}

func (c Config) Encode() map[string]any {
	return map[string]any{
		"update_config": c.UpdateConfig.Encode(),
		"repo_config":   c.RepoConfig.Encode(),
	}
}
