package common

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResults() *Results {
	r := NewResults([]string{"Inserts", "Descendants"}, []string{"TB MP", "TB AL"}, []string{"sqlite", "dolt"})
	r.Add(Cell{"Inserts", "TB MP", "sqlite", false}, 10)
	r.Add(Cell{"Inserts", "TB MP", "sqlite", false}, 12)
	r.Add(Cell{"Inserts", "TB MP", "sqlite", true}, 8)
	r.Add(Cell{"Descendants", "TB AL", "dolt", false}, 120.5)
	return r
}

func TestResultsCells(t *testing.T) {
	r := sampleResults()
	cells := r.Cells()
	require.Len(t, cells, 2*2*2*2)
	assert.Equal(t, Cell{"Inserts", "TB MP", "sqlite", false}, cells[0])
	assert.Equal(t, Cell{"Inserts", "TB MP", "sqlite", true}, cells[1])
	assert.Equal(t, Cell{"Inserts", "TB MP", "dolt", false}, cells[2])
	assert.Equal(t, Cell{"Descendants", "TB AL", "dolt", true}, cells[len(cells)-1])
	assert.Equal(t, 3, r.Measured())
}

func TestResultsMean(t *testing.T) {
	r := sampleResults()
	mean, ok := r.Mean(Cell{"Inserts", "TB MP", "sqlite", false})
	assert.True(t, ok)
	assert.Equal(t, 11.0, mean)

	_, ok = r.Mean(Cell{"Descendants", "TB MP", "sqlite", true})
	assert.False(t, ok)
}

func TestResultsUnsettled(t *testing.T) {
	r := NewResults([]string{"Move"}, []string{"TB NS"}, []string{"sqlite"})
	settled := Cell{"Move", "TB NS", "sqlite", false}
	noisy := Cell{"Move", "TB NS", "sqlite", true}
	for _, v := range []float64{50, 50.5, 49.5} {
		r.Add(settled, v)
	}
	for _, v := range []float64{10, 50, 90} {
		r.Add(noisy, v)
	}
	assert.Equal(t, []Cell{noisy}, r.Unsettled(0.05))
}

func TestResultsSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, sampleResults().Save(path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"TEST", "MODEL", "ENGINE", "TX", "MILLISECONDS"},
		{"Inserts", "TB MP", "sqlite", "false", "10", "12"},
		{"Inserts", "TB MP", "sqlite", "true", "8"},
		{"Descendants", "TB AL", "dolt", "false", "120.5"},
	}, records)
}

func TestResultsJSON(t *testing.T) {
	r := sampleResults()
	data, err := json.Marshal(r)
	require.NoError(t, err)

	var back Results
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r.Tests, back.Tests)
	assert.Equal(t, r.Models, back.Models)
	assert.Equal(t, r.Engines, back.Engines)
	for _, c := range r.Cells() {
		assert.Equal(t, r.Samples(c), back.Samples(c), "%+v", c)
	}
}
