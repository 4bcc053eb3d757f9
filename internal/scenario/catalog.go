// File: internal/scenario/catalog.go
package scenario

import (
	"fmt"
	"sort"

	"github.com/xkilldash9x/shelfcheck/internal/browser/wait"
)

// Lock keys shared by scenarios that mutate the same records.
const (
	// LockFavorites guards the favorites of the configured user.
	LockFavorites = "favorites"
	// LockCatalog guards scenarios that count or index catalog cards while others add or delete.
	LockCatalog = "catalog-admin"
)

// Catalog is an ordered registry of scenarios keyed by ID.
type Catalog struct {
	scenarios []Scenario
	ids       map[string]bool
}

func NewCatalog() *Catalog {
	return &Catalog{ids: make(map[string]bool)}
}

// DefaultCatalog registers every UI and API scenario.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.MustRegister(UIScenarios()...)
	c.MustRegister(APIScenarios()...)
	return c
}

// Register adds scenarios. IDs must be unique and every scenario needs a suite and steps.
func (c *Catalog) Register(scenarios ...Scenario) error {
	for _, sc := range scenarios {
		switch {
		case sc.ID == "":
			return fmt.Errorf("scenario %q has no id", sc.Title)
		case c.ids[sc.ID]:
			return fmt.Errorf("scenario %s is already registered", sc.ID)
		case sc.Suite != SuiteUI && sc.Suite != SuiteAPI:
			return fmt.Errorf("scenario %s has unknown suite %q", sc.ID, sc.Suite)
		case len(sc.Steps) == 0:
			return fmt.Errorf("scenario %s has no steps", sc.ID)
		}
		c.ids[sc.ID] = true
		c.scenarios = append(c.scenarios, sc)
	}
	return nil
}

func (c *Catalog) MustRegister(scenarios ...Scenario) {
	if err := c.Register(scenarios...); err != nil {
		panic(err)
	}
}

// All returns every scenario sorted by ID.
func (c *Catalog) All() []Scenario {
	out := append([]Scenario(nil), c.scenarios...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Filter returns the scenarios of suite whose ID matches the glob. An empty glob
// matches everything.
func (c *Catalog) Filter(suite Suite, glob string) ([]Scenario, error) {
	var out []Scenario
	for _, sc := range c.All() {
		if suite != SuiteAll && suite != "" && sc.Suite != suite {
			continue
		}
		if glob != "" {
			ok, err := wait.MatchGlob(glob, sc.ID)
			if err != nil {
				return nil, fmt.Errorf("invalid id pattern: %w", err)
			}
			if !ok {
				continue
			}
		}
		out = append(out, sc)
	}
	return out, nil
}
