package gz

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"rsfmri/pkg/command"
	"rsfmri/pkg/command/commandtest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeTools emulates gzip and gunzip in process, removing the source file the
// way the real tools do.
func fakeTools(t *testing.T) *commandtest.Runner {
	return &commandtest.Runner{Handler: func(cmd command.Command) (*command.Result, error) {
		path := cmd.Args[len(cmd.Args)-1]
		data, err := os.ReadFile(path)
		if err != nil {
			return commandtest.Exit(1, err.Error()), nil
		}
		switch cmd.Binary {
		case "gzip":
			var buf bytes.Buffer
			zw := gzip.NewWriter(&buf)
			_, _ = zw.Write(data)
			require.NoError(t, zw.Close())
			require.NoError(t, os.WriteFile(path+".gz", buf.Bytes(), 0644))
		case "gunzip":
			zr, err := gzip.NewReader(bytes.NewReader(data))
			if err != nil {
				return commandtest.Exit(1, "not in gzip format"), nil
			}
			plain, err := io.ReadAll(zr)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(path[:len(path)-len(".gz")], plain, 0644))
		default:
			t.Fatalf("unexpected command %s", cmd)
		}
		require.NoError(t, os.Remove(path))
		return &command.Result{}, nil
	}}
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestZipFilesSkipsZipped(t *testing.T) {
	dir := t.TempDir()
	plain := filepath.Join(dir, "bold.nii")
	zipped := filepath.Join(dir, "anat.nii.gz")
	tgz := filepath.Join(dir, "bundle.tgz")
	writeFile(t, plain, []byte("plain"))

	runner := &commandtest.Runner{}
	z := NewZipper(runner, nil, DefaultOptions())
	require.NoError(t, z.ZipFiles(context.Background(), plain, zipped, tgz))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gzip", calls[0].Binary)
	assert.Equal(t, []string{plain}, calls[0].Args)
}

func TestZipFilesContinuesAfterFailure(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		filepath.Join(dir, "a.nii"),
		filepath.Join(dir, "missing.nii"),
		filepath.Join(dir, "c.nii"),
		filepath.Join(dir, "gone.nii"),
	}
	writeFile(t, files[0], []byte("a"))
	writeFile(t, files[2], []byte("c"))

	core, logs := observer.New(zap.ErrorLevel)
	z := NewZipper(fakeTools(t), zap.New(core), DefaultOptions())

	err := z.ZipFiles(context.Background(), files...)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrZipFailed)
	errs := multierr.Errors(err)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Error(), "missing.nii")
	assert.Contains(t, errs[1].Error(), "gone.nii")

	assert.FileExists(t, files[0]+".gz")
	assert.FileExists(t, files[2]+".gz")
	assert.Equal(t, 2, logs.FilterMessage("failed to zip").Len())
}

func TestZipFilesConcurrent(t *testing.T) {
	dir := t.TempDir()
	var files []string
	for _, name := range []string{"1.nii", "2.nii", "3.nii", "4.nii", "5.nii"} {
		p := filepath.Join(dir, name)
		writeFile(t, p, []byte(name))
		files = append(files, p)
	}

	var inflight, peak int32
	fake := fakeTools(t)
	runner := &commandtest.Runner{Handler: func(cmd command.Command) (*command.Result, error) {
		n := atomic.AddInt32(&inflight, 1)
		defer atomic.AddInt32(&inflight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		return fake.Handler(cmd)
	}}

	z := NewZipper(runner, nil, Options{Jobs: 2})
	require.NoError(t, z.ZipFiles(context.Background(), files...))
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
	for _, f := range files {
		assert.FileExists(t, f+".gz")
	}
}

func TestZipFilesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	z := NewZipper(&commandtest.Runner{}, nil, DefaultOptions())
	err := z.ZipFiles(ctx, "a.nii")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnzipFileNotGz(t *testing.T) {
	runner := &commandtest.Runner{}
	z := NewZipper(runner, nil, DefaultOptions())

	got, err := z.UnzipFile(context.Background(), "bold.nii")
	require.NoError(t, err)
	assert.Equal(t, "bold.nii", got)
	assert.Empty(t, runner.Calls())
}

func TestUnzipFileBaseExists(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "bold.nii")
	writeFile(t, base, []byte("plain"))

	runner := &commandtest.Runner{}
	z := NewZipper(runner, nil, DefaultOptions())

	got, err := z.UnzipFile(context.Background(), base+".gz")
	require.NoError(t, err)
	assert.Equal(t, base, got)
	assert.Empty(t, runner.Calls())
}

func TestUnzipFileFailure(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.nii.gz")
	writeFile(t, bad, []byte("not gzip"))

	core, logs := observer.New(zap.ErrorLevel)
	z := NewZipper(fakeTools(t), zap.New(core), DefaultOptions())

	got, err := z.UnzipFile(context.Background(), bad)
	assert.ErrorIs(t, err, ErrUnzipFailed)
	assert.Empty(t, got)
	assert.Equal(t, 1, logs.FilterMessage("failed to unzip").Len())
}

func roundTrip(t *testing.T, runner command.Runner) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "bold.nii")
	content := bytes.Repeat([]byte{0x5c, 0x01, 0x00, 0xff}, 4096)
	writeFile(t, path, content)

	z := NewZipper(runner, nil, DefaultOptions())
	require.NoError(t, z.ZipFiles(context.Background(), path))
	assert.NoFileExists(t, path)
	assert.FileExists(t, path+".gz")

	got, err := z.UnzipFile(context.Background(), path+".gz")
	require.NoError(t, err)
	assert.Equal(t, path, got)

	restored, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, content, restored)
}

func TestRoundTrip(t *testing.T) {
	roundTrip(t, fakeTools(t))
}

func TestRoundTripSystemTools(t *testing.T) {
	for _, bin := range []string{"gzip", "gunzip"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
	roundTrip(t, command.NewExecRunner(nil))
}

func TestUnzipFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.nii")
	writeFile(t, a, []byte("a"))

	z := NewZipper(fakeTools(t), nil, DefaultOptions())
	require.NoError(t, z.ZipFiles(context.Background(), a))

	got, err := z.UnzipFiles(context.Background(), []string{a + ".gz", filepath.Join(dir, "b.nii")})
	require.NoError(t, err)
	assert.Equal(t, []string{a, filepath.Join(dir, "b.nii")}, got)
}
