package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	tablesDir    = "tables"
	functionsDir = "functions"

	fileMode = 0o644
	dirMode  = 0o755
)

// SanitizeFileName keeps ASCII letters, digits, '_', '.' and '-' and
// replaces everything else with '_'.
func SanitizeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" || strings.Trim(out, ".") == "" {
		out = "_" + out
	}
	return out
}

// TablePath returns <out>/<schema>/tables/<table>.sql.
func TablePath(out, schema, table string) string {
	return filepath.Join(out, SanitizeFileName(schema), tablesDir, SanitizeFileName(table)+".sql")
}

// FunctionPath returns <out>/<schema>/functions/<function>.sql.
func FunctionPath(out, schema, function string) string {
	return filepath.Join(out, SanitizeFileName(schema), functionsDir, SanitizeFileName(function)+".sql")
}

// writeFileAtomic writes data to a temporary file next to path and renames it
// into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, fileMode); err != nil {
		cleanup()
		return fmt.Errorf("setting mode on %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// uniquePath returns path, or path with a numeric suffix when an earlier
// object already sanitized to the same name. Names are compared without
// case, since macOS and Windows file systems fold it.
func uniquePath(path string, taken map[string]bool) string {
	if !taken[strings.ToLower(path)] {
		taken[strings.ToLower(path)] = true
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d%s", base, i, ext)
		if !taken[strings.ToLower(candidate)] {
			taken[strings.ToLower(candidate)] = true
			return candidate
		}
	}
}
