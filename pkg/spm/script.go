package spm

import (
	"fmt"
	"strings"
	"text/template"
)

// jobTemplate is the realign & unwarp batch job. Scans are per frame, so a
// 4D image contributes one line per volume.
var jobTemplate = template.Must(template.New("realignunwarp").Funcs(template.FuncMap{
	"str":   matlabString,
	"vec":   matlabVector,
	"bool":  matlabBool,
	"float": matlabFloat,
}).Parse(`% realign & unwarp job written by rsfmri
spm('defaults', 'fmri');
spm_jobman('initcfg');
matlabbatch{1}.spm.spatial.realignunwarp.data.scans = {
{{- range .Scans}}
    {{str .}}
{{- end}}
};
matlabbatch{1}.spm.spatial.realignunwarp.data.pmscan = '';
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.quality = {{float .Opts.Quality}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.sep = {{float .Opts.Separation}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.fwhm = {{float .Opts.FWHM}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.rtm = {{bool .Opts.RegisterToMean}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.einterp = {{.Opts.EstInterp}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.ewrap = {{vec .Opts.EstWrap}};
matlabbatch{1}.spm.spatial.realignunwarp.eoptions.weight = '';
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.basfcn = {{vec .Opts.BasisFunctions}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.regorder = {{.Opts.RegOrder}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.lambda = {{float .Opts.Lambda}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.jm = {{bool .Opts.Jacobian}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.fot = {{vec .Opts.FirstOrder}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.sot = {{vec .Opts.SecondOrder}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.uwfwhm = {{float .Opts.UnwarpFWHM}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.rem = {{bool .Opts.ReEstimate}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.noi = {{.Opts.Iterations}};
matlabbatch{1}.spm.spatial.realignunwarp.uweoptions.expround = {{str .Opts.ExpandRound}};
matlabbatch{1}.spm.spatial.realignunwarp.uwroptions.uwwhich = {{vec .Opts.Which}};
matlabbatch{1}.spm.spatial.realignunwarp.uwroptions.rinterp = {{.Opts.Interp}};
matlabbatch{1}.spm.spatial.realignunwarp.uwroptions.wrap = {{vec .Opts.Wrap}};
matlabbatch{1}.spm.spatial.realignunwarp.uwroptions.mask = {{bool .Opts.Mask}};
matlabbatch{1}.spm.spatial.realignunwarp.uwroptions.prefix = {{str .Opts.Prefix}};
spm_jobman('run', matlabbatch);
`))

type jobData struct {
	Scans []string
	Opts  Options
}

func renderJob(scans []string, opts Options) (string, error) {
	var b strings.Builder
	if err := jobTemplate.Execute(&b, jobData{Scans: scans, Opts: opts}); err != nil {
		return "", err
	}
	return b.String(), nil
}

// matlabString quotes s as a MATLAB char array.
func matlabString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func matlabBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func matlabFloat(f float64) string {
	return fmt.Sprintf("%g", f)
}

// matlabVector renders an int slice or array as a row vector.
func matlabVector(v any) string {
	var xs []int
	switch t := v.(type) {
	case []int:
		xs = t
	case [2]int:
		xs = t[:]
	case [3]int:
		xs = t[:]
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// batchInvocation is the -r argument: run the job script and exit with a
// status MATLAB reports back to the shell.
func batchInvocation(script string) string {
	return fmt.Sprintf("try, %s; catch err, disp(err.message); exit(1); end; exit(0);", script)
}
