package annotation

import "fmt"

// TurnKey identifies one assistant turn within a conversation.
type TurnKey struct {
	ConvID string
	Turn   int
}

// String formats the key as "conv_id:turn".
func (k TurnKey) String() string {
	return fmt.Sprintf("%s:%d", k.ConvID, k.Turn)
}

// Scores maps an aspect to its score. Aspects without a score are absent.
type Scores map[Aspect]float64

// Get returns the score for a and whether it is present.
func (s Scores) Get(a Aspect) (float64, bool) {
	v, ok := s[a]
	return v, ok
}

// Index is a score mapping that remembers first-insertion order, so walks
// over it are deterministic. Setting an existing key replaces its scores in
// place.
type Index[K comparable] struct {
	keys    []K
	entries map[K]Scores
}

// TurnIndex holds turn-level scores.
type TurnIndex = Index[TurnKey]

// DialogueIndex holds dialogue-level scores keyed by conversation id.
type DialogueIndex = Index[string]

func newIndex[K comparable]() *Index[K] {
	return &Index[K]{entries: make(map[K]Scores)}
}

func (ix *Index[K]) set(key K, scores Scores) {
	if _, exists := ix.entries[key]; !exists {
		ix.keys = append(ix.keys, key)
	}
	ix.entries[key] = scores
}

// Get returns the scores stored under key.
func (ix *Index[K]) Get(key K) (Scores, bool) {
	if ix == nil {
		return nil, false
	}
	s, ok := ix.entries[key]
	return s, ok
}

// Len returns the number of keys.
func (ix *Index[K]) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.keys)
}

// Keys returns the keys in insertion order.
func (ix *Index[K]) Keys() []K {
	if ix == nil {
		return nil
	}
	return append([]K(nil), ix.keys...)
}

// GoldSet is the canonical form of a gold annotation document.
type GoldSet struct {
	Turns     *TurnIndex
	Dialogues *DialogueIndex
}

// PredictionSet is the canonical form of a run document.
type PredictionSet struct {
	Turns     *TurnIndex
	Dialogues *DialogueIndex
}
