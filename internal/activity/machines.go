package activity

import (
	"math/rand/v2"

	"github.com/parlorlabs/arcade/internal/content"
)

// NewMachines builds the machine set for all supported kinds against one
// content library.
func NewMachines(lib *content.Library) map[Kind]Machine {
	return map[Kind]Machine{
		KindTypingDuel: &TypingDuel{Content: lib, IntN: rand.IntN},
		KindTrivia:     &Trivia{Content: lib, IntN: rand.IntN},
		KindRPS:        &RPS{},
		KindTicTacToe:  &TicTacToe{IntN: rand.IntN},
		KindStory:      &StoryBuilder{Content: lib, IntN: rand.IntN},
	}
}
