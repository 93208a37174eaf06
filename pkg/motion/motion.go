// Package motion reads the realignment parameters written by realign &
// unwarp and summarises head motion over a run.
package motion

import (
	"bufio"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DefaultRadius is the head radius in mm used to turn rotations into
// displacements.
const DefaultRadius = 50.0

const numParams = 6

var (
	ErrEmpty     = errors.New("no realignment parameters")
	ErrBadColumn = errors.New("expected 6 columns")
)

// Params holds one row per volume: x, y, z translations in mm followed by
// pitch, roll and yaw in radians.
type Params struct {
	m *mat.Dense
}

// Summary describes the motion in a run.
type Summary struct {
	Volumes int `yaml:"volumes"`

	// MeanAbsTranslation and MeanAbsRotation are the per-axis means of the
	// absolute estimates.
	MeanAbsTranslation [3]float64 `yaml:"meanAbsTranslation"`
	MeanAbsRotation    [3]float64 `yaml:"meanAbsRotation"`

	// MaxAbsTranslation is in mm, MaxAbsRotation in radians.
	MaxAbsTranslation float64 `yaml:"maxAbsTranslation"`
	MaxAbsRotation    float64 `yaml:"maxAbsRotation"`

	// FD is the framewise displacement of each volume; the first is 0.
	FD     []float64 `yaml:"fd,flow"`
	MeanFD float64   `yaml:"meanFD"`
	MaxFD  float64   `yaml:"maxFD"`
}

// ReadParams parses an rp_*.txt file.
func ReadParams(path string) (*Params, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open realignment parameters")
	}
	defer f.Close()

	var data []float64
	rows := 0
	sc := bufio.NewScanner(f)
	for line := 1; sc.Scan(); line++ {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != numParams {
			return nil, errors.Wrapf(ErrBadColumn, "%s:%d has %d", path, line, len(fields))
		}
		for _, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "%s:%d", path, line)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "read realignment parameters")
	}
	if rows == 0 {
		return nil, errors.Wrap(ErrEmpty, path)
	}
	return &Params{m: mat.NewDense(rows, numParams, data)}, nil
}

// NewParams wraps rows of six parameters.
func NewParams(rows [][]float64) (*Params, error) {
	if len(rows) == 0 {
		return nil, ErrEmpty
	}
	m := mat.NewDense(len(rows), numParams, nil)
	for i, r := range rows {
		if len(r) != numParams {
			return nil, errors.Wrapf(ErrBadColumn, "row %d has %d", i, len(r))
		}
		m.SetRow(i, r)
	}
	return &Params{m: m}, nil
}

// Len is the number of volumes.
func (p *Params) Len() int {
	r, _ := p.m.Dims()
	return r
}

// Matrix exposes the parameters as a volumes x 6 matrix.
func (p *Params) Matrix() mat.Matrix {
	return p.m
}

// FramewiseDisplacement is the sum of absolute volume-to-volume changes,
// rotations converted to arc length on a sphere of the given radius.
func (p *Params) FramewiseDisplacement(radius float64) []float64 {
	n := p.Len()
	fd := make([]float64, n)
	prev := make([]float64, numParams)
	cur := make([]float64, numParams)
	mat.Row(prev, 0, p.m)
	for i := 1; i < n; i++ {
		mat.Row(cur, i, p.m)
		for j := 0; j < numParams; j++ {
			d := math.Abs(cur[j] - prev[j])
			if j >= 3 {
				d *= radius
			}
			fd[i] += d
		}
		prev, cur = cur, prev
	}
	return fd
}

// Summarize computes the motion summary. A radius of 0 uses DefaultRadius.
func (p *Params) Summarize(radius float64) Summary {
	if radius <= 0 {
		radius = DefaultRadius
	}
	n := p.Len()
	s := Summary{Volumes: n}

	col := make([]float64, n)
	for j := 0; j < numParams; j++ {
		mat.Col(col, j, p.m)
		for i, v := range col {
			col[i] = math.Abs(v)
		}
		mean := stat.Mean(col, nil)
		peak := floats.Max(col)
		if j < 3 {
			s.MeanAbsTranslation[j] = mean
			s.MaxAbsTranslation = math.Max(s.MaxAbsTranslation, peak)
		} else {
			s.MeanAbsRotation[j-3] = mean
			s.MaxAbsRotation = math.Max(s.MaxAbsRotation, peak)
		}
	}

	s.FD = p.FramewiseDisplacement(radius)
	s.MeanFD = stat.Mean(s.FD, nil)
	s.MaxFD = floats.Max(s.FD)
	return s
}

// Outliers returns the 0-based indices of volumes whose framewise
// displacement exceeds threshold.
func (s Summary) Outliers(threshold float64) []int {
	var idx []int
	for i, d := range s.FD {
		if d > threshold {
			idx = append(idx, i)
		}
	}
	return idx
}
