// Package deck loads flashcards from disk and keeps their display order.
package deck

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"

	"github.com/pavelanni/flashquiz/internal/model"
)

// LoadError reports a flashcard file that cannot be used. The quiz cannot
// run without cards, so callers treat it as fatal.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load flashcards from %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Deck is an ordered sequence of flashcards.
type Deck struct {
	path  string
	cards []model.Flashcard
}

// NewDeck wraps an in-memory card list.
func NewDeck(cards []model.Flashcard) *Deck {
	return &Deck{cards: slices.Clone(cards)}
}

// Load reads a JSON array of {question, answer} objects.
func Load(path string) (*Deck, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	var cards []model.Flashcard
	if err := json.Unmarshal(data, &cards); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("parse JSON: %w", err)}
	}
	if len(cards) == 0 {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("no flashcards")}
	}
	for i, c := range cards {
		if c.Question == "" {
			return nil, &LoadError{Path: path, Err: fmt.Errorf("card %d has an empty question", i+1)}
		}
	}

	return &Deck{path: path, cards: cards}, nil
}

// Shuffle randomly permutes the whole deck in place.
func (d *Deck) Shuffle() {
	rand.Shuffle(len(d.cards), func(i, j int) {
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	})
}

// Cards returns a copy of the cards in their current order.
func (d *Deck) Cards() []model.Flashcard {
	return slices.Clone(d.cards)
}

// Len returns the number of cards.
func (d *Deck) Len() int {
	return len(d.cards)
}

// Path returns the file the deck was loaded from, if any.
func (d *Deck) Path() string {
	return d.path
}
