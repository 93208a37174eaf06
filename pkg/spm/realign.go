// Package spm drives the realign & unwarp step of the SPM toolbox through a
// MATLAB subprocess.
//
// The toolbox writes its outputs next to the inputs and resolves relative
// paths against its working directory, so every job runs in the directory of
// the first input file. The calling process never changes directory.
package spm

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"rsfmri/internal/models"
	"rsfmri/pkg/command"
	"rsfmri/pkg/fileutil"
	"rsfmri/pkg/gz"
	"rsfmri/pkg/nifti"
)

// DefaultMatlabCmd is the wrapper script that starts MATLAB with SPM8 on the path.
const DefaultMatlabCmd = "matlab-spm8"

var (
	ErrNoInput       = errors.New("no input files")
	ErrRealignFailed = errors.New("realign & unwarp failed")
	ErrMissingOutput = errors.New("expected output not written")
)

// Realigner runs realign & unwarp jobs.
type Realigner struct {
	runner    command.Runner
	zipper    *gz.Zipper
	logger    *zap.Logger
	matlabCmd string
	opts      Options

	// dateStr names the job script; replaced in tests.
	dateStr func() string
}

// NewRealigner creates a Realigner. Gzipped inputs are unpacked with zipper
// before the job runs, since SPM8 cannot read them. An empty matlabCmd falls
// back to DefaultMatlabCmd; a nil logger disables logging.
func NewRealigner(runner command.Runner, zipper *gz.Zipper, logger *zap.Logger, matlabCmd string, opts Options) *Realigner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if matlabCmd == "" {
		matlabCmd = DefaultMatlabCmd
	}
	if zipper == nil {
		zipper = gz.NewZipper(runner, logger, gz.DefaultOptions())
	}
	return &Realigner{
		runner:    runner,
		zipper:    zipper,
		logger:    logger,
		matlabCmd: matlabCmd,
		opts:      opts,
		dateStr:   fileutil.MakeDateStr,
	}
}

// RealignUnwarp realigns and unwarps infiles as one series. It returns the
// mean image, the realigned files and the realignment parameter file. When
// MATLAB exits non-zero its stderr is logged and ErrRealignFailed returned.
func (r *Realigner) RealignUnwarp(ctx context.Context, infiles []string) (*models.RealignOutputs, error) {
	if len(infiles) == 0 {
		return nil, ErrNoInput
	}

	files := make([]string, len(infiles))
	for i, f := range infiles {
		abs, err := filepath.Abs(f)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve %s", f)
		}
		files[i] = abs
	}

	files, err := r.zipper.UnzipFiles(ctx, files)
	if err != nil {
		return nil, errors.Wrap(err, "unpack inputs")
	}

	scans, err := expandScans(files)
	if err != nil {
		return nil, err
	}

	workDir := filepath.Dir(files[0])
	scriptName := uniqueScriptName(workDir, "realign_unwarp_"+r.dateStr())
	scriptPath := filepath.Join(workDir, scriptName+".m")

	job, err := renderJob(scanStrings(scans), r.opts)
	if err != nil {
		return nil, errors.Wrap(err, "render batch job")
	}
	if err := os.WriteFile(scriptPath, []byte(job), 0644); err != nil {
		return nil, errors.Wrap(err, "write batch job")
	}

	cmd, err := command.ParseCommandLine(r.matlabCmd)
	if err != nil {
		return nil, errors.Wrap(err, "matlab command")
	}
	args := []string{"-nodesktop", "-nosplash"}
	if r.opts.SingleThread {
		args = append(args, "-singleCompThread")
	}
	cmd = cmd.With(append(args, "-r", batchInvocation(scriptName))...)
	cmd.Dir = workDir

	r.logger.Info("running realign & unwarp",
		zap.Int("files", len(files)),
		zap.Int("scans", len(scans)),
		zap.String("dir", workDir),
		zap.String("script", scriptPath))

	res, err := r.runner.Run(ctx, cmd)
	if err != nil {
		return nil, errors.Wrap(err, "run matlab")
	}
	if !res.OK() {
		r.logger.Error("realign & unwarp failed",
			zap.Int("returncode", res.ReturnCode),
			zap.String("stderr", res.Stderr),
			zap.String("stdout", lastLines(res.Stdout, 20)))
		return nil, errors.Wrapf(ErrRealignFailed, "return code %d", res.ReturnCode)
	}

	out := outputsFor(files, r.opts)
	out.Script = scriptPath
	if !fileutil.FileExists(out.Parameters) {
		return nil, errors.Wrap(ErrMissingOutput, out.Parameters)
	}

	r.logger.Info("realign & unwarp finished",
		zap.String("mean", out.MeanImage),
		zap.String("parameters", out.Parameters),
		zap.Duration("duration", res.Duration))
	return out, nil
}

// expandScans lists every volume of files, reading 4D headers to count frames.
func expandScans(files []string) ([]models.Scan, error) {
	var scans []models.Scan
	for _, f := range files {
		hdr, err := nifti.ReadHeader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "read header of %s", f)
		}
		for frame := 1; frame <= hdr.NumVolumes(); frame++ {
			scans = append(scans, models.Scan{Path: f, Frame: frame})
		}
	}
	return scans, nil
}

func scanStrings(scans []models.Scan) []string {
	out := make([]string, len(scans))
	for i, s := range scans {
		out[i] = s.String()
	}
	return out
}

// outputsFor derives the toolbox output names: prefixed resliced images, the
// mean image named after the first input and rp_<first>.txt. Which[0] selects
// the resliced images (0 none, 1 all but the first, 2 all) and a zero Which[1]
// means no mean image is written.
func outputsFor(files []string, opts Options) *models.RealignOutputs {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "u"
	}

	var resliced []string
	switch opts.Which[0] {
	case 0:
	case 1:
		resliced = files[1:]
	default:
		resliced = files
	}
	realigned := make([]string, len(resliced))
	for i, f := range resliced {
		realigned[i] = withPrefix(f, prefix)
	}

	first := files[0]
	base, _ := fileutil.SplitExt(filepath.Base(first))
	out := &models.RealignOutputs{
		RealignedFiles: realigned,
		Parameters:     filepath.Join(filepath.Dir(first), "rp_"+base+".txt"),
	}
	if opts.Which[1] != 0 {
		out.MeanImage = withPrefix(first, "mean"+prefix)
	}
	return out
}

// uniqueScriptName returns name, or name_N with the smallest N >= 1 when a
// script of that name already exists in dir.
func uniqueScriptName(dir, name string) string {
	candidate := name
	for n := 1; fileutil.FileExists(filepath.Join(dir, candidate+".m")); n++ {
		candidate = fmt.Sprintf("%s_%d", name, n)
	}
	return candidate
}

func withPrefix(path, prefix string) string {
	return filepath.Join(filepath.Dir(path), prefix+filepath.Base(path))
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
