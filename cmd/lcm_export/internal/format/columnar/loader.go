package columnar

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
)

// WriteLoader emits the companion MATLAB loader script beside the output
// directory. The script prefers the absolute output path and falls back
// to the relative one, the way the original tool's .m emission did.
func WriteLoader(scriptPath, outDir string, channels []string) error {
	absDir, err := filepath.Abs(outDir)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))

	var b strings.Builder
	fmt.Fprintf(&b, "function d = %s()\n", SanitizeName(base))
	fmt.Fprintf(&b, "full_dname = '%s';\n", absDir)
	fmt.Fprintf(&b, "dname = '%s';\n", outDir)
	b.WriteString("if exist(full_dname, 'dir')\n")
	b.WriteString("    root = full_dname;\n")
	b.WriteString("else\n")
	b.WriteString("    root = dname;\n")
	b.WriteString("end\n")
	b.WriteString("d = struct();\n")
	for _, channel := range channels {
		name := SanitizeName(channel)
		fmt.Fprintf(&b, "d.%s = parquetread(fullfile(root, '%s.parquet'));\n", name, name)
	}

	f, err := os.Create(scriptPath)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return multierr.Append(err, f.Close())
	}
	return f.Close()
}
