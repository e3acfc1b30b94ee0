// Package words carries the embedded Spanish dictionary the rules engine
// draws from. Entries are immutable reference data: selected, never mutated.
package words

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"
)

// Difficulty selects a dictionary tier.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d names a known tier.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Entry is a single dictionary word with its definition, used as the clue.
type Entry struct {
	Word       string     `json:"word"`
	Definition string     `json:"definition"`
	Difficulty Difficulty `json:"difficulty"`
}

//go:embed palabras.json
var rawEntries []byte

var (
	loadOnce sync.Once
	byTier   map[Difficulty][]Entry
	loadErr  error
)

func load() {
	var entries []Entry
	if err := json.Unmarshal(rawEntries, &entries); err != nil {
		loadErr = fmt.Errorf("diccionario embebido corrupto: %w", err)
		return
	}
	byTier = make(map[Difficulty][]Entry)
	for _, e := range entries {
		byTier[e.Difficulty] = append(byTier[e.Difficulty], e)
	}
}

// Embedded is the dictionary collaborator backed by the compiled-in word list.
type Embedded struct{}

// WordsForDifficulty returns a copy of the entries in the given tier.
// The slice is empty for unknown tiers.
func (Embedded) WordsForDifficulty(tier Difficulty) []Entry {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil
	}
	src := byTier[tier]
	out := make([]Entry, len(src))
	copy(out, src)
	return out
}
