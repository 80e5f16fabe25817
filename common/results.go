package common

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Cell identifies one measured value of the report.
type Cell struct {
	Test   string `json:"test"`
	Model  string `json:"model"`
	Engine string `json:"engine"`
	Tx     bool   `json:"tx"`
}

// Results collects per-cell trial samples in milliseconds. The order of
// Tests, Models and Engines is the order the report uses.
type Results struct {
	Tests   []string
	Models  []string
	Engines []string
	stats   *Stats[Cell]
}

func NewResults(tests, models, engines []string) *Results {
	return &Results{
		Tests:   tests,
		Models:  models,
		Engines: engines,
		stats:   NewStats[Cell](),
	}
}

func (r *Results) Add(cell Cell, ms float64) {
	r.stats.Add(cell, ms)
}

func (r *Results) Samples(cell Cell) []float64 {
	return r.stats.Samples(cell)
}

// Mean of the cell's samples; ok is false when the cell was never measured.
func (r *Results) Mean(cell Cell) (mean float64, ok bool) {
	mean, _, n := r.stats.Calculate(cell)
	return mean, n > 0
}

func (r *Results) Calculate(cell Cell) (float64, float64, int) {
	return r.stats.Calculate(cell)
}

// Cells enumerates every cell of the report grid in report order.
func (r *Results) Cells() []Cell {
	cells := make([]Cell, 0, len(r.Tests)*len(r.Models)*len(r.Engines)*2)
	for _, test := range r.Tests {
		for _, model := range r.Models {
			for _, engine := range r.Engines {
				for _, tx := range []bool{false, true} {
					cells = append(cells, Cell{Test: test, Model: model, Engine: engine, Tx: tx})
				}
			}
		}
	}
	return cells
}

// Measured is the number of cells holding at least one sample.
func (r *Results) Measured() int {
	return r.stats.Len()
}

func (r *Results) MaxRelative() float64 {
	return r.stats.MaxRelative()
}

// Unsettled lists the measured cells whose coefficient of variation is
// still at or above cv.
func (r *Results) Unsettled(cv float64) []Cell {
	var measured []Cell
	for _, c := range r.Cells() {
		if len(r.Samples(c)) > 0 {
			measured = append(measured, c)
		}
	}
	return FilterCvSufficient(measured, r.stats, cv)
}

// Save writes one CSV record per measured cell: the cell key followed by
// every sample.
func (r *Results) Save(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to save results")
	}
	defer file.Close()
	writer := csv.NewWriter(file)

	if err := writer.Write([]string{"TEST", "MODEL", "ENGINE", "TX", "MILLISECONDS"}); err != nil {
		return errors.Wrap(err, "failed to save header")
	}
	for _, cell := range r.Cells() {
		values := r.Samples(cell)
		if len(values) == 0 {
			continue
		}
		record := []string{cell.Test, cell.Model, cell.Engine, strconv.FormatBool(cell.Tx)}
		for _, value := range values {
			record = append(record, strconv.FormatFloat(value, 'f', -1, 64))
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "failed to save data")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush results")
}

type resultsJSON struct {
	Tests   []string   `json:"tests"`
	Models  []string   `json:"models"`
	Engines []string   `json:"engines"`
	Cells   []cellJSON `json:"cells"`
}

type cellJSON struct {
	Cell
	Samples []float64 `json:"samples"`
}

func (r *Results) MarshalJSON() ([]byte, error) {
	out := resultsJSON{Tests: r.Tests, Models: r.Models, Engines: r.Engines}
	for _, cell := range r.Cells() {
		if samples := r.Samples(cell); len(samples) > 0 {
			out.Cells = append(out.Cells, cellJSON{Cell: cell, Samples: samples})
		}
	}
	return json.Marshal(out)
}

func (r *Results) UnmarshalJSON(data []byte) error {
	var in resultsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = *NewResults(in.Tests, in.Models, in.Engines)
	for _, c := range in.Cells {
		for _, v := range c.Samples {
			r.Add(c.Cell, v)
		}
	}
	return nil
}
