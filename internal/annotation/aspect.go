// Package annotation holds the evaluation catalogs (aspects, datasets) and
// turns raw gold and run documents into score indexes keyed by conversation
// and turn identity.
package annotation

import "strings"

// Aspect is a named dimension of conversational quality.
type Aspect string

// Turn-level aspects.
const (
	Relevance       Aspect = "relevance"
	Interestingness Aspect = "interestingness"
)

// Dialogue-level aspects.
const (
	Understanding   Aspect = "understanding"
	TaskCompletion  Aspect = "task_completion"
	InterestArousal Aspect = "interest_arousal"
	Efficiency      Aspect = "efficiency"
	DialogOverall   Aspect = "dialog_overall"
)

// Level is the granularity an aspect is judged at.
type Level string

const (
	LevelTurn     Level = "turn"
	LevelDialogue Level = "dialogue"
)

var (
	turnAspects     = []Aspect{Relevance, Interestingness}
	dialogueAspects = []Aspect{Understanding, TaskCompletion, InterestArousal, Efficiency, DialogOverall}
)

// TurnAspects returns the turn-level aspects in display order.
func TurnAspects() []Aspect {
	return append([]Aspect(nil), turnAspects...)
}

// DialogueAspects returns the dialogue-level aspects in display order.
func DialogueAspects() []Aspect {
	return append([]Aspect(nil), dialogueAspects...)
}

// AllAspects returns turn-level aspects followed by dialogue-level aspects.
func AllAspects() []Aspect {
	all := make([]Aspect, 0, len(turnAspects)+len(dialogueAspects))
	all = append(all, turnAspects...)
	return append(all, dialogueAspects...)
}

// AspectsAt returns the aspects judged at level.
func AspectsAt(level Level) []Aspect {
	switch level {
	case LevelTurn:
		return TurnAspects()
	case LevelDialogue:
		return DialogueAspects()
	default:
		return nil
	}
}

// Level reports the granularity of a. Unknown aspects return "".
func (a Aspect) Level() Level {
	for _, t := range turnAspects {
		if a == t {
			return LevelTurn
		}
	}
	for _, d := range dialogueAspects {
		if a == d {
			return LevelDialogue
		}
	}
	return ""
}

// Label is the human-readable chart label, e.g. "task completion".
func (a Aspect) Label() string {
	return strings.ReplaceAll(string(a), "_", " ")
}

// String implements fmt.Stringer.
func (a Aspect) String() string {
	return string(a)
}
