package spm

// Options holds the realign & unwarp settings written into the batch job.
// The defaults match the toolbox defaults.
type Options struct {
	// Estimation
	Quality        float64 `yaml:"quality"`
	Separation     float64 `yaml:"separation"`
	FWHM           float64 `yaml:"fwhm"`
	RegisterToMean bool    `yaml:"registerToMean"`
	EstInterp      int     `yaml:"estimateInterp"`
	EstWrap        [3]int  `yaml:"estimateWrap"`

	// Unwarp estimation
	BasisFunctions [2]int  `yaml:"basisFunctions"`
	RegOrder       int     `yaml:"regularisationOrder"`
	Lambda         float64 `yaml:"lambda"`
	Jacobian       bool    `yaml:"jacobian"`
	FirstOrder     []int   `yaml:"firstOrderEffects"`
	SecondOrder    []int   `yaml:"secondOrderEffects"`
	UnwarpFWHM     float64 `yaml:"unwarpFwhm"`
	ReEstimate     bool    `yaml:"reEstimateMovement"`
	Iterations     int     `yaml:"iterations"`
	ExpandRound    string  `yaml:"expandRound"`

	// Reslicing
	Which  [2]int `yaml:"which"`
	Interp int    `yaml:"interp"`
	Wrap   [3]int `yaml:"wrap"`
	Mask   bool   `yaml:"mask"`
	Prefix string `yaml:"prefix"`

	// SingleThread starts MATLAB with -singleCompThread.
	SingleThread bool `yaml:"singleThread"`
}

// DefaultOptions returns the toolbox defaults: all images resliced plus the
// mean, written with the "u" prefix.
func DefaultOptions() Options {
	return Options{
		Quality:        0.9,
		Separation:     4,
		FWHM:           5,
		RegisterToMean: false,
		EstInterp:      2,
		BasisFunctions: [2]int{12, 12},
		RegOrder:       1,
		Lambda:         100000,
		Jacobian:       false,
		FirstOrder:     []int{4, 5},
		SecondOrder:    []int{},
		UnwarpFWHM:     4,
		ReEstimate:     true,
		Iterations:     5,
		ExpandRound:    "Average",
		Which:          [2]int{2, 1},
		Interp:         4,
		Mask:           true,
		Prefix:         "u",
	}
}
