package excel

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/RushiGong/ESPEI/domain/evidence"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func records() []*evidence.ComparisonRecord {
	ln := func(s string) *apd.Decimal {
		d, _, _ := apd.NewFromString(s)
		return d
	}
	return []*evidence.ComparisonRecord{{
		ID:   "cmp-1",
		Run1: &evidence.Run{Evidence: evidence.Evidence{Model: "a", Value: ln("-812.123456789012345678901234567890"), Unit: evidence.UnitLog}},
		Run2: &evidence.Run{Evidence: evidence.Evidence{Model: "b", Value: ln("-815"), Unit: evidence.UnitLog}},
		Comparison: evidence.Comparison{
			Ratio:    ln("1.24695"),
			Space:    evidence.SpaceLog10,
			Favored:  evidence.Model1,
			Strength: evidence.StrengthStrong,
		},
	}}
}

func TestWriteComparisons(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteComparisons(&buf, records()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Bayes factor", rows[0][7])
	assert.Equal(t, []string{
		"cmp-1", "a", "-812.123456789012345678901234567890", "b", "-815",
		"log", "log10", "1.24695", "model1", "Strong",
	}, rows[1])
}

func TestSaveComparisons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, SaveComparisons(path, records()))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	value, err := f.GetCellValue(sheetName, "J2")
	require.NoError(t, err)
	assert.Equal(t, "Strong", value)
}
