// Package gz compresses and decompresses images in place with the gzip and
// gunzip command-line tools, checking their return codes.
package gz

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"rsfmri/pkg/command"
	"rsfmri/pkg/fileutil"
)

var (
	ErrZipFailed   = errors.New("failed to zip")
	ErrUnzipFailed = errors.New("failed to unzip")
)

// Options configures the tools a Zipper calls.
type Options struct {
	// GzipCmd and GunzipCmd are command lines; the file name is appended.
	GzipCmd   string
	GunzipCmd string

	// Jobs bounds how many files are compressed at once. Values below 1 mean 1.
	Jobs int
}

// DefaultOptions runs the system gzip and gunzip one file at a time.
func DefaultOptions() Options {
	return Options{
		GzipCmd:   "gzip",
		GunzipCmd: "gunzip",
		Jobs:      1,
	}
}

// Zipper wraps gzip and gunzip.
type Zipper struct {
	runner command.Runner
	logger *zap.Logger
	opts   Options
}

// NewZipper creates a Zipper. A nil logger disables logging.
func NewZipper(runner command.Runner, logger *zap.Logger, opts Options) *Zipper {
	if logger == nil {
		logger = zap.NewNop()
	}
	def := DefaultOptions()
	if opts.GzipCmd == "" {
		opts.GzipCmd = def.GzipCmd
	}
	if opts.GunzipCmd == "" {
		opts.GunzipCmd = def.GunzipCmd
	}
	if opts.Jobs < 1 {
		opts.Jobs = 1
	}
	return &Zipper{runner: runner, logger: logger, opts: opts}
}

// ZipFiles gzips each file in place. Files whose extension mentions gz are
// taken as already compressed and skipped. A file gzip fails on is logged and
// the remaining files are still processed; the failures are returned
// together. Errors starting gzip at all abort the batch.
func (z *Zipper) ZipFiles(ctx context.Context, files ...string) error {
	base, err := command.ParseCommandLine(z.opts.GzipCmd)
	if err != nil {
		return errors.Wrap(err, "gzip command")
	}

	// one slot per file keeps the combined error in input order
	failures := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(z.opts.Jobs)
	for i, f := range files {
		if _, ext := fileutil.SplitExt(f); strings.Contains(ext, "gz") {
			z.logger.Debug("already zipped", zap.String("file", f))
			continue
		}
		i, f := i, f
		g.Go(func() error {
			res, err := z.runner.Run(gctx, base.With(f))
			if err != nil {
				return errors.Wrapf(err, "gzip %s", f)
			}
			if !res.OK() {
				z.logger.Error("failed to zip",
					zap.String("file", f),
					zap.Int("returncode", res.ReturnCode),
					zap.String("stderr", strings.TrimSpace(res.Stderr)))
				failures[i] = errors.Wrapf(ErrZipFailed, "%s (return code %d)", f, res.ReturnCode)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return multierr.Combine(failures...)
}

// UnzipFile gunzips infile and returns the name of the decompressed file.
// Files not ending in .gz are returned unchanged, and when the decompressed
// file already exists it is returned without running gunzip.
func (z *Zipper) UnzipFile(ctx context.Context, infile string) (string, error) {
	base, ext := fileutil.SplitExt(infile)
	if ext != ".gz" {
		return infile, nil
	}
	if fileutil.FileExists(base) {
		z.logger.Debug("already unzipped", zap.String("file", base))
		return base, nil
	}

	cmd, err := command.ParseCommandLine(z.opts.GunzipCmd)
	if err != nil {
		return "", errors.Wrap(err, "gunzip command")
	}
	res, err := z.runner.Run(ctx, cmd.With(infile))
	if err != nil {
		return "", errors.Wrapf(err, "gunzip %s", infile)
	}
	if !res.OK() {
		z.logger.Error("failed to unzip",
			zap.String("file", infile),
			zap.Int("returncode", res.ReturnCode),
			zap.String("stderr", strings.TrimSpace(res.Stderr)))
		return "", errors.Wrapf(ErrUnzipFailed, "%s (return code %d)", infile, res.ReturnCode)
	}
	return base, nil
}

// UnzipFiles runs UnzipFile over files in order and returns the decompressed
// names. It stops at the first failure.
func (z *Zipper) UnzipFiles(ctx context.Context, files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		name, err := z.UnzipFile(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}
