// Package slicetime derives the variables needed for slice-timing correction
// of interleaved EPI acquisitions.
//
// For an interleaved acquisition with an even number of slices the scanner
// excites the even slices first and the odd slices second. With an odd number
// of slices the odd slices go first. Slice numbers are 1-based, as the
// slice-timing toolbox expects.
package slicetime

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"rsfmri/pkg/nifti"
)

var (
	ErrTRUndefined = errors.New("TR is not defined")
	ErrNoSlices    = errors.New("number of slices must be positive")
	ErrNoInput     = errors.New("no input files")
)

// Vars holds the slice-timing parameters of a run.
type Vars struct {
	// NSlices is the number of slices per volume.
	NSlices int `yaml:"nslices" json:"nslices"`

	// TA is the acquisition time, TR - TR/NSlices.
	TA float64 `yaml:"TA" json:"TA"`

	// TR is the repetition time in seconds.
	TR float64 `yaml:"TR" json:"TR"`

	// SliceOrder lists the 1-based slice numbers in acquisition order.
	SliceOrder []int `yaml:"sliceorder,flow" json:"sliceorder"`
}

// SliceOrder returns the interleaved acquisition order for nslices slices.
func SliceOrder(nslices int) []int {
	if nslices <= 0 {
		return []int{}
	}

	first, second := 2, 1
	if nslices%2 != 0 {
		first, second = 1, 2
	}

	order := make([]int, 0, nslices)
	for s := first; s <= nslices; s += 2 {
		order = append(order, s)
	}
	for s := second; s <= nslices; s += 2 {
		order = append(order, s)
	}
	return order
}

// ComputeVars builds the slice-timing variables for nslices slices at the
// given repetition time.
func ComputeVars(nslices int, tr float64) (Vars, error) {
	if tr <= 0 {
		return Vars{}, ErrTRUndefined
	}
	if nslices <= 0 {
		return Vars{}, errors.Wrapf(ErrNoSlices, "got %d", nslices)
	}
	return Vars{
		NSlices:    nslices,
		TA:         tr - tr/float64(nslices),
		TR:         tr,
		SliceOrder: SliceOrder(nslices),
	}, nil
}

// VarsForFiles reads the slice count from the header of the first file and
// computes the slice-timing variables for it. All files of a run are assumed
// to share the geometry of the first one.
func VarsForFiles(files []string, tr float64) (Vars, error) {
	if len(files) == 0 {
		return Vars{}, ErrNoInput
	}
	if tr <= 0 {
		return Vars{}, ErrTRUndefined
	}

	hdr, err := nifti.ReadHeader(files[0])
	if err != nil {
		return Vars{}, errors.Wrapf(err, "read header of %s", files[0])
	}
	return ComputeVars(hdr.NumSlices(), tr)
}

// SliceTimes returns the onset of each slice in seconds relative to the start
// of the volume, indexed by slice number minus one. Acquisition slots are
// spread evenly over TA, so the last slice acquired starts at TA. Entries of
// SliceOrder outside 1..len(SliceOrder) are skipped.
func (v Vars) SliceTimes() []float64 {
	n := len(v.SliceOrder)
	times := make([]float64, n)
	if n < 2 {
		return times
	}

	slots := floats.Span(make([]float64, n), 0, v.TA)
	for k, slice := range v.SliceOrder {
		if slice < 1 || slice > n {
			continue
		}
		times[slice-1] = slots[k]
	}
	return times
}

// RefSlice returns the slice acquired in the middle of the volume, the usual
// reference for slice-timing correction.
func (v Vars) RefSlice() int {
	if len(v.SliceOrder) == 0 {
		return 0
	}
	return v.SliceOrder[len(v.SliceOrder)/2]
}
