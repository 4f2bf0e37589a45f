package store

import "strings"

// Stage represents one phase of a work item's lifecycle.
type Stage string

const (
	StageDiscovered Stage = "discovered"
	StageAnalyzing  Stage = "analyzing"
	StageCaptioning Stage = "captioning"
	StagePublishing Stage = "publishing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"
)

var stageOrder = []Stage{
	StageDiscovered,
	StageAnalyzing,
	StageCaptioning,
	StagePublishing,
	StageDone,
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, len(stageOrder)+1)
	for _, stage := range stageOrder {
		set[stage] = struct{}{}
	}
	set[StageFailed] = struct{}{}
	return set
}()

// ActiveStages returns the non-terminal stages in pipeline order.
func ActiveStages() []Stage {
	return []Stage{StageDiscovered, StageAnalyzing, StageCaptioning, StagePublishing}
}

// AllStages returns every stage, pipeline order first, then failed.
func AllStages() []Stage {
	return append(append([]Stage{}, stageOrder...), StageFailed)
}

// ParseStage converts a string into a known Stage.
func ParseStage(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stageSet[normalized]
	return normalized, ok
}

// Next returns the stage that follows s in the forward direction.
func (s Stage) Next() (Stage, bool) {
	for i, stage := range stageOrder {
		if stage == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return "", false
}

// IsTerminal reports whether the stage ends the item's lifecycle.
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether a move from s to target is legal: forward to
// the immediate successor, a retry back onto s itself, failure from any
// non-terminal stage, or the terminal done move from publishing.
func (s Stage) CanTransition(target Stage) bool {
	if s.IsTerminal() {
		return false
	}
	if target == StageFailed {
		return true
	}
	if target == s {
		return true
	}
	next, ok := s.Next()
	return ok && next == target
}
