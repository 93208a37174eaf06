package models

import (
	"fmt"
)

// Scan is one volume of an image series: a 3D file, or one frame of a 4D file.
type Scan struct {
	// Path is the image file on disk
	Path string

	// Frame is the 1-based volume index within Path
	Frame int
}

// String renders the scan in the "path,frame" form the toolbox expects.
func (s Scan) String() string {
	return fmt.Sprintf("%s,%d", s.Path, s.Frame)
}

// RealignOutputs lists the files written by realign & unwarp.
type RealignOutputs struct {
	// MeanImage is the mean of the realigned and unwarped series
	MeanImage string `yaml:"meanImage"`

	// RealignedFiles are the resliced images, one per input file
	RealignedFiles []string `yaml:"realignedFiles"`

	// Parameters is the text file holding the translation and rotation
	// estimates, one row per volume
	Parameters string `yaml:"parameters"`

	// Script is the batch job that produced the outputs
	Script string `yaml:"script"`
}
