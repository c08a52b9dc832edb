package settings

import (
	"time"

	"github.com/buoywatch/buoywatch/server/internal/compute"
)

// Built-in defaults applied when a rule is unset.
const (
	DefaultOfflineAfter  = 30 * time.Minute
	DefaultMissingRepeat = 360 * time.Minute
	DefaultTTL           = 60 * time.Second
)

// Document is the raw rule document as stored by a Source. Durations are
// expressed in minutes so the same document can be edited by hand in Redis.
type Document struct {
	Weights   map[string]float64 `yaml:"weights" json:"weights,omitempty"`
	Scheduler SchedulerDoc       `yaml:"scheduler" json:"scheduler"`
}

// SchedulerDoc is the scheduler section of a Document.
type SchedulerDoc struct {
	Paused               bool `yaml:"paused" json:"paused"`
	OfflineAfterMinutes  int  `yaml:"offline_after_minutes" json:"offline_after_minutes,omitempty"`
	MissingRepeatMinutes int  `yaml:"missing_repeat_minutes" json:"missing_repeat_minutes,omitempty"`
}

// Rules is the resolved, ready-to-use rule set.
type Rules struct {
	Weights       compute.Weights
	Paused        bool
	OfflineAfter  time.Duration
	MissingRepeat time.Duration
}

// Defaults returns the built-in rule set.
func Defaults() Rules {
	return Rules{
		Weights:       compute.DefaultWeights(),
		OfflineAfter:  DefaultOfflineAfter,
		MissingRepeat: DefaultMissingRepeat,
	}
}

// Resolve merges doc over the built-in defaults. A nil doc yields Defaults.
func Resolve(doc *Document) Rules {
	r := Defaults()
	if doc == nil {
		return r
	}
	r.Weights = r.Weights.Merge(doc.Weights)
	r.Paused = doc.Scheduler.Paused
	if doc.Scheduler.OfflineAfterMinutes > 0 {
		r.OfflineAfter = time.Duration(doc.Scheduler.OfflineAfterMinutes) * time.Minute
	}
	if doc.Scheduler.MissingRepeatMinutes > 0 {
		r.MissingRepeat = time.Duration(doc.Scheduler.MissingRepeatMinutes) * time.Minute
	}
	return r
}
