package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"rsfmri/pkg/config"
	"rsfmri/pkg/fileutil"
	"rsfmri/pkg/gz"
	"rsfmri/pkg/motion"
	"rsfmri/pkg/nifti"
	"rsfmri/pkg/slicetime"
	"rsfmri/pkg/spm"
)

var (
	sliceCount  int
	repetition  float64
	fdThreshold float64
)

var filesCmd = &cobra.Command{
	Use:   "files DIR [PATTERN]",
	Short: "List files matching DIR/PATTERN in sorted order",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFiles,
}

var datestrCmd = &cobra.Command{
	Use:   "datestr",
	Short: "Print the current run timestamp",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), fileutil.MakeDateStr())
		return nil
	},
}

var slicetimeCmd = &cobra.Command{
	Use:   "slicetime [IMAGE...]",
	Short: "Print slice-timing variables for an interleaved acquisition",
	Long: `Prints nslices, TA, TR and the slice order. The slice count comes from
--nslices or from the header of the first IMAGE. TR comes from --tr, the
configuration, or the image header, in that order.`,
	RunE: runSlicetime,
}

var zipCmd = &cobra.Command{
	Use:   "zip FILE...",
	Short: "gzip files in place, skipping those already compressed",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return newZipper().ZipFiles(cmd.Context(), args...)
	},
}

var unzipCmd = &cobra.Command{
	Use:   "unzip FILE...",
	Short: "gunzip files in place and print the decompressed names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := newZipper().UnzipFiles(cmd.Context(), args)
		if err != nil {
			return err
		}
		for _, f := range files {
			fmt.Fprintln(cmd.OutOrStdout(), f)
		}
		return nil
	},
}

var realignCmd = &cobra.Command{
	Use:   "realign FILE...",
	Short: "Run SPM realign & unwarp on a series",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRealign,
}

var motionCmd = &cobra.Command{
	Use:   "motion RP_FILE",
	Short: "Summarise head motion from a realignment parameter file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMotion,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateDefaultConfigFile(path); err != nil {
			return err
		}
		logger.Info("wrote default configuration", zap.String("path", path))
		return nil
	},
}

func init() {
	slicetimeCmd.Flags().IntVarP(&sliceCount, "nslices", "n", 0, "number of slices")
	slicetimeCmd.Flags().Float64Var(&repetition, "tr", 0, "repetition time in seconds")
	motionCmd.Flags().Float64Var(&fdThreshold, "fd-threshold", 0, "flag volumes above this framewise displacement (mm)")
	configCmd.AddCommand(configInitCmd)
}

func newZipper() *gz.Zipper {
	return gz.NewZipper(runner, logger, cfg.ZipOptions())
}

func printYAML(cmd *cobra.Command, v any) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return errors.Wrap(err, "encode output")
	}
	return enc.Close()
}

func runFiles(cmd *cobra.Command, args []string) error {
	pattern := cfg.Processing.Glob
	if len(args) == 2 {
		pattern = args[1]
	}
	files, n, err := fileutil.GetFiles(args[0], pattern)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, f := range files {
		fmt.Fprintln(out, f)
	}
	logger.Debug("listed files", zap.String("dir", args[0]), zap.String("pattern", pattern), zap.Int("count", n))
	return nil
}

func runSlicetime(cmd *cobra.Command, args []string) error {
	tr := repetition
	if tr <= 0 {
		tr = cfg.Acquisition.TR
	}

	var hdr *nifti.Header
	if len(args) > 0 {
		var err error
		if hdr, err = nifti.ReadHeader(args[0]); err != nil {
			return errors.Wrapf(err, "read header of %s", args[0])
		}
		if tr <= 0 {
			tr = hdr.TR()
			logger.Debug("TR taken from image header", zap.Float64("tr", tr))
		}
	}

	var (
		vars slicetime.Vars
		err  error
	)
	switch {
	case sliceCount > 0:
		vars, err = slicetime.ComputeVars(sliceCount, tr)
	case hdr != nil:
		vars, err = slicetime.VarsForFiles(args, tr)
	default:
		return errors.New("need --nslices or an image")
	}
	if err != nil {
		return err
	}

	return printYAML(cmd, struct {
		slicetime.Vars `yaml:",inline"`
		SliceTimes     []float64 `yaml:"slicetimes,flow"`
		RefSlice       int       `yaml:"refslice"`
	}{vars, vars.SliceTimes(), vars.RefSlice()})
}

func runRealign(cmd *cobra.Command, args []string) error {
	r := spm.NewRealigner(runner, newZipper(), logger, cfg.Tools.Matlab, cfg.Realign)
	out, err := r.RealignUnwarp(cmd.Context(), args)
	if err != nil {
		return err
	}
	return printYAML(cmd, out)
}

func runMotion(cmd *cobra.Command, args []string) error {
	params, err := motion.ReadParams(args[0])
	if err != nil {
		return err
	}
	summary := params.Summarize(cfg.Motion.Radius)

	threshold := fdThreshold
	if threshold <= 0 {
		threshold = cfg.Motion.FDThreshold
	}
	outliers := summary.Outliers(threshold)
	if len(outliers) > 0 {
		logger.Warn("volumes above framewise displacement threshold",
			zap.Float64("threshold", threshold),
			zap.Ints("volumes", outliers))
	}

	return printYAML(cmd, struct {
		motion.Summary `yaml:",inline"`
		Threshold      float64 `yaml:"fdThreshold"`
		Outliers       []int   `yaml:"outliers,flow"`
	}{summary, threshold, outliers})
}
