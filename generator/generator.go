package generator

import (
	"context"
	"io"
	"math/rand"
	"sync/atomic"
	"time"
)

// DefaultImageURL is used for every generated brand unless overridden.
const DefaultImageURL = "https://picsum.photos/200/300"

const (
	tokenLength   = 5
	sentenceWords = 5
)

// Brand is the record shipped to the bulk-index endpoint.
type Brand struct {
	ID          int64  `json:"id" bson:"_id"`
	Version     int64  `json:"version" bson:"version"`
	Slug        string `json:"slug" bson:"slug"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description" bson:"description"`
	ImageURL    string `json:"image_url" bson:"image_url"`
}

type Option func(*Generator)

// WithRand sets the source used for the text fields.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rnd = r
		}
	}
}

func WithSeed(seed int64) Option {
	return WithRand(rand.New(rand.NewSource(seed)))
}

func WithImageURL(url string) Option {
	return func(g *Generator) {
		if url != "" {
			g.imageURL = url
		}
	}
}

// Generator emits exactly n brands with ids 1..n. It is not safe for
// concurrent use; to start over, create a new Generator.
type Generator struct {
	n        int64
	emitted  atomic.Int64
	rnd      *rand.Rand
	imageURL string
}

func New(n int, opts ...Option) *Generator {
	if n < 0 {
		n = 0
	}
	g := &Generator{
		n:        int64(n),
		imageURL: DefaultImageURL,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.rnd == nil {
		g.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return g
}

func (g *Generator) Count() int { return int(g.n) }

// Emitted reports how many brands have been produced so far.
func (g *Generator) Emitted() int { return int(g.emitted.Load()) }

// Next returns the next brand, or io.EOF once n brands have been produced.
func (g *Generator) Next() (Brand, error) {
	id := g.emitted.Load() + 1
	if id > g.n {
		return Brand{}, io.EOF
	}
	g.emitted.Store(id)

	return Brand{
		ID:          id,
		Version:     0,
		Slug:        Word(g.rnd, tokenLength),
		Name:        Word(g.rnd, tokenLength),
		Description: Sentence(g.rnd, sentenceWords),
		ImageURL:    g.imageURL,
	}, nil
}

// Stream produces the remaining brands on a channel that is closed when the
// generator is exhausted or ctx is done.
func (g *Generator) Stream(ctx context.Context) <-chan Brand {
	ch := make(chan Brand)

	go func() {
		defer close(ch)
		for {
			b, err := g.Next()
			if err != nil {
				return
			}
			select {
			case ch <- b:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}
