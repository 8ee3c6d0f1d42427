package forum

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type PageSeed struct {
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
}

// DefaultPages is the category set created on first start.
var DefaultPages = []PageSeed{
	{"CSE", "Computer Science and Engineering - Programming, Data Structures, Algorithms, DBMS, OS, Networks"},
	{"ECE", "Electronics and Communication Engineering - Circuits, Signals, Communication Systems, VLSI"},
	{"Mathematics", "Mathematics - Calculus, Linear Algebra, Probability, Statistics, Discrete Math"},
	{"Physics", "Physics - Mechanics, Thermodynamics, Electromagnetism, Quantum Physics"},
	{"AI/ML", "Artificial Intelligence and Machine Learning - Neural Networks, Deep Learning, NLP, Computer Vision"},
	{"General", "General Doubts - Any other academic or non-academic questions"},
}

// Seed creates every page in seeds whose name does not exist yet and
// returns how many were created. Running it again is a no-op.
func (d *PageDirectory) Seed(ctx context.Context, seeds []PageSeed) (int, error) {
	created := 0
	for _, s := range seeds {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		_, err := d.Create(ctx, s.Name, s.Description)
		switch {
		case errors.Is(err, ErrConflict):
			Logger.Debug().Str("name", s.Name).Msg("seed page exists")
		case err != nil:
			return created, fmt.Errorf("seed page %q: %w", s.Name, err)
		default:
			created++
		}
	}
	if created > 0 {
		Logger.Info().Int("created", created).Msg("default pages seeded")
	}
	return created, nil
}
