package motion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rpText = `  0.000000e+00   0.000000e+00   0.000000e+00   0.000000e+00   0.000000e+00   0.000000e+00
  1.000000e-01  -2.000000e-01   0.000000e+00   1.000000e-03   0.000000e+00   0.000000e+00
  1.000000e-01  -2.000000e-01   5.000000e-01   1.000000e-03   0.000000e+00  -2.000000e-03

`

func writeRP(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rp_bold.txt")
	require.NoError(t, os.WriteFile(path, []byte(text), 0644))
	return path
}

func TestReadParams(t *testing.T) {
	p, err := ReadParams(writeRP(t, rpText))
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())
	assert.InDelta(t, -0.2, p.Matrix().At(1, 1), 1e-12)
	assert.InDelta(t, -0.002, p.Matrix().At(2, 5), 1e-12)
}

func TestReadParamsErrors(t *testing.T) {
	tcs := map[string]struct {
		text string
		want error
	}{
		"empty":       {text: "\n\n", want: ErrEmpty},
		"short row":   {text: "0 0 0 0 0\n", want: ErrBadColumn},
		"not numeric": {text: "0 0 0 0 0 x\n"},
	}
	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			_, err := ReadParams(writeRP(t, tc.text))
			require.Error(t, err)
			if tc.want != nil {
				assert.ErrorIs(t, err, tc.want)
			}
		})
	}

	_, err := ReadParams(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestFramewiseDisplacement(t *testing.T) {
	p, err := ReadParams(writeRP(t, rpText))
	require.NoError(t, err)

	fd := p.FramewiseDisplacement(50)
	// 0.1 + 0.2 + 50*0.001, then 0.5 + 50*0.002
	assert.InDeltaSlice(t, []float64{0, 0.35, 0.6}, fd, 1e-9)
}

func TestSummarize(t *testing.T) {
	p, err := ReadParams(writeRP(t, rpText))
	require.NoError(t, err)

	s := p.Summarize(0)
	assert.Equal(t, 3, s.Volumes)
	assert.InDelta(t, 0.5, s.MaxAbsTranslation, 1e-12)
	assert.InDelta(t, 0.002, s.MaxAbsRotation, 1e-12)
	assert.InDelta(t, 0.4/3, s.MeanAbsTranslation[1], 1e-12)
	assert.InDelta(t, 0.5/3, s.MeanAbsTranslation[2], 1e-12)
	assert.InDelta(t, 0.002/3, s.MeanAbsRotation[2], 1e-12)
	assert.InDelta(t, 0.95/3, s.MeanFD, 1e-9)
	assert.InDelta(t, 0.6, s.MaxFD, 1e-9)
	assert.Equal(t, []int{2}, s.Outliers(0.5))
	assert.Empty(t, s.Outliers(1))
}

func TestNewParams(t *testing.T) {
	p, err := NewParams([][]float64{{0, 0, 0, 0, 0, 0}})
	require.NoError(t, err)
	s := p.Summarize(DefaultRadius)
	assert.Equal(t, []float64{0}, s.FD)
	assert.Equal(t, 0.0, s.MaxFD)

	_, err = NewParams(nil)
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = NewParams([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrBadColumn)
}
