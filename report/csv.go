package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"

	"tree_bench/common"
)

// CSV writes one record per measured cell with its trial count, mean and
// standard deviation in milliseconds.
func CSV(w io.Writer, r *common.Results) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"TEST", "MODEL", "ENGINE", "TX", "TRIALS", "MEAN_MS", "STDDEV_MS"}); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	for _, cell := range r.Cells() {
		mean, stddev, n := r.Calculate(cell)
		if n == 0 {
			continue
		}
		record := []string{
			cell.Test,
			cell.Model,
			cell.Engine,
			strconv.FormatBool(cell.Tx),
			strconv.Itoa(n),
			strconv.FormatFloat(mean, 'f', 3, 64),
			strconv.FormatFloat(stddev, 'f', 3, 64),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "failed to write record")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush report")
}
