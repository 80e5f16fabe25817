package tree

import (
	"github.com/pkg/errors"
)

// Strategy is one storage technique; New binds it to a dialect and an
// ordering variant.
type Strategy struct {
	Key  string
	Name string
	New  func(d Dialect, sorted bool) Tree
}

// Model is a strategy with its ordering variant, i.e. one report row.
type Model struct {
	Key    string
	Name   string
	Sorted bool
	new    func(d Dialect, sorted bool) Tree
}

func (m Model) New(d Dialect) Tree {
	return m.new(d, m.Sorted)
}

// Models expands strategies into report order: every unsorted variant,
// then every sorted one.
func Models(strategies ...Strategy) []Model {
	models := make([]Model, 0, 2*len(strategies))
	for _, sorted := range []bool{false, true} {
		for _, s := range strategies {
			m := Model{Key: s.Key, Name: s.Name, Sorted: sorted, new: s.New}
			if sorted {
				m.Key += "-sorted"
				m.Name += " Sorted"
			}
			models = append(models, m)
		}
	}
	return models
}

// Select keeps the models named by keys, in catalogue order. An empty key
// list selects everything.
func Select(models []Model, keys []string) ([]Model, error) {
	if len(keys) == 0 {
		return models, nil
	}
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}
	var selected []Model
	for _, m := range models {
		if wanted[m.Key] {
			selected = append(selected, m)
			delete(wanted, m.Key)
		}
	}
	for k := range wanted {
		return nil, errors.Errorf("unknown model: %s", k)
	}
	return selected, nil
}
