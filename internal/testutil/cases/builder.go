// Package cases provides test fixtures for insolvency cases. Builders seed
// cases into a store so tests can start from a known legal timeline.
package cases

import (
	"context"
	"fmt"
	"testing"

	"github.com/Veraticus/clawback/internal/model"
	"github.com/Veraticus/clawback/internal/service"
)

// CaseID represents a strongly-typed fixture case id.
type CaseID string

// String returns the string representation of the case id.
func (c CaseID) String() string {
	return string(c)
}

// Builder provides a fluent interface for constructing test cases.
type Builder interface {
	// WithCase adds a single case to the builder.
	WithCase(c model.Case) Builder

	// WithFixture adds the cases of a predefined fixture.
	WithFixture(fixture Fixture) Builder

	// Build saves the cases in the provided storage and returns them.
	Build(ctx context.Context, storage service.Storage) (Cases, error)
}

// Cases is a collection of seeded cases.
type Cases []model.Case

// Find returns the case with the given id or nil.
func (cs Cases) Find(id CaseID) *model.Case {
	for i := range cs {
		if cs[i].ID == string(id) {
			return &cs[i]
		}
	}
	return nil
}

// MustFind returns the case with the given id or fails the test.
func (cs Cases) MustFind(t *testing.T, id CaseID) *model.Case {
	t.Helper()
	c := cs.Find(id)
	if c == nil {
		t.Fatalf("case %q not seeded", id)
	}
	return c
}

type builder struct {
	cases []model.Case
}

// NewBuilder creates an empty case builder.
func NewBuilder() Builder {
	return &builder{}
}

func (b *builder) WithCase(c model.Case) Builder {
	b.cases = append(b.cases, c)
	return b
}

func (b *builder) WithFixture(fixture Fixture) Builder {
	b.cases = append(b.cases, fixture.Cases()...)
	return b
}

func (b *builder) Build(ctx context.Context, storage service.Storage) (Cases, error) {
	seen := make(map[string]bool, len(b.cases))
	result := make(Cases, 0, len(b.cases))
	for i := range b.cases {
		c := b.cases[i]
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		if err := storage.SaveCase(ctx, &c); err != nil {
			return nil, fmt.Errorf("failed to seed case %q: %w", c.ID, err)
		}
		result = append(result, c)
	}
	return result, nil
}
