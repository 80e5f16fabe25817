package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree_bench/common"
)

func sample() *common.Results {
	r := common.NewResults([]string{"Inserts", "Descendants"}, []string{"TB MP", "TB AL"}, []string{"sqlite", "pg83"})
	add := func(test, model, engine string, tx bool, ms ...float64) {
		for _, v := range ms {
			r.Add(common.Cell{Test: test, Model: model, Engine: engine, Tx: tx}, v)
		}
	}
	add("Inserts", "TB MP", "sqlite", false, 3220.4)
	add("Inserts", "TB MP", "sqlite", true, 2600, 2720)
	add("Inserts", "TB MP", "pg83", false, 2540)
	add("Inserts", "TB MP", "pg83", true, 2309.6)
	add("Inserts", "TB AL", "sqlite", false, 1963)
	add("Inserts", "TB AL", "pg83", false, 1736)
	add("Inserts", "TB AL", "pg83", true, 1631)
	add("Descendants", "TB MP", "sqlite", false, 6298)
	add("Descendants", "TB MP", "pg83", false, 7132)
	add("Descendants", "TB AL", "sqlite", false, 56850)
	add("Descendants", "TB AL", "pg83", false, 50682)
	return r
}

func TestRST(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RST(&out, sample()))

	expected := `+-------------+-------+-------------------+-------------------+
| Test        | Model |       sqlite      |        pg83       |
|             |       +---------+---------+---------+---------+
|             |       |  no tx  |    tx   |  no tx  |    tx   |
+=============+=======+=========+=========+=========+=========+
| Inserts     | TB MP |    3220 |    2660 |    2540 |    2310 |
|             +-------+---------+---------+---------+---------+
|             | TB AL |    1963 |     N/A |    1736 |    1631 |
+-------------+-------+---------+---------+---------+---------+
| Descendants | TB MP |    6298 |     N/A |    7132 |     N/A |
|             +-------+---------+---------+---------+---------+
|             | TB AL |   56850 |     N/A |   50682 |     N/A |
+-------------+-------+---------+---------+---------+---------+
`
	assert.Equal(t, expected, out.String())
}

func TestRSTWideCells(t *testing.T) {
	r := common.NewResults([]string{"Move"}, []string{"TB NS Sorted"}, []string{"postgres-production-17"})
	r.Add(common.Cell{Test: "Move", Model: "TB NS Sorted", Engine: "postgres-production-17"}, 123456789012)

	var out bytes.Buffer
	require.NoError(t, RST(&out, r))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 7)
	for _, line := range lines {
		assert.Len(t, line, len(lines[0]), line)
	}
	assert.Contains(t, lines[1], "postgres-production-17")
	assert.Contains(t, lines[5], " 123456789012 |")
	assert.Contains(t, lines[5], " N/A |")
}

func TestRSTShape(t *testing.T) {
	var out bytes.Buffer
	r := sample()
	require.NoError(t, RST(&out, r))

	body := 0
	for _, line := range strings.Split(out.String(), "\n") {
		if strings.HasPrefix(line, "| ") && strings.Contains(line, "TB ") {
			body++
			// two value columns per engine
			assert.Equal(t, 2+2*len(r.Engines)+1, strings.Count(line, "|"))
		}
	}
	assert.Equal(t, len(r.Tests)*len(r.Models), body)
}

func TestCSV(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, CSV(&out, sample()))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, "TEST,MODEL,ENGINE,TX,TRIALS,MEAN_MS,STDDEV_MS", lines[0])
	assert.Equal(t, "Inserts,TB MP,sqlite,false,1,3220.400,0.000", lines[1])
	assert.Equal(t, "Inserts,TB MP,sqlite,true,2,2660.000,84.853", lines[2])
	assert.Len(t, lines, 12)
}

func TestWrite(t *testing.T) {
	var rst, csv bytes.Buffer
	require.NoError(t, Write(&rst, sample(), "rst"))
	require.NoError(t, Write(&csv, sample(), "csv"))
	assert.True(t, strings.HasPrefix(rst.String(), "+---"))
	assert.True(t, strings.HasPrefix(csv.String(), "TEST,"))
	assert.Error(t, Write(&rst, sample(), "html"))
}
