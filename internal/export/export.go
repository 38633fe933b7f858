// Package export writes generated scripts to an output directory.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/pthm/tablerizer/internal/catalog"
	"github.com/pthm/tablerizer/internal/sqlgen"
)

// ErrIntrospection wraps failures reading the catalog, as opposed to
// failures writing output.
var ErrIntrospection = errors.New("catalog introspection failed")

// Inspector loads the catalog for a filter. *catalog.Inspector implements it.
type Inspector interface {
	Inspect(ctx context.Context, f catalog.Filter) (*catalog.Catalog, error)
}

// Options configures an export.
type Options struct {
	// Out is the output root directory.
	Out string

	// Roles filters and renames grantees.
	Roles sqlgen.Roles

	// DryRun writes every script to the writer, each preceded by a
	// "-- File: <path>" line, instead of touching the filesystem.
	DryRun io.Writer

	// Clean removes the tables/ and functions/ directories of every exported
	// schema before writing. Ignored in dry-run mode.
	Clean bool

	// Progress is notified per file; nil means no progress reporting.
	Progress Progress
}

// Result summarises a finished export.
type Result struct {
	Tables    int
	Functions int // distinct routine names (one file each)
	Files     int
	Skipped   int // objects with nothing to export
	Bytes     int64
	Paths     []string
}

// Summary is a one-line human-readable description of r.
func (r *Result) Summary() string {
	return fmt.Sprintf("%d %s, %d %s -> %d %s (%s)",
		r.Tables, plural(r.Tables, "table", "tables"),
		r.Functions, plural(r.Functions, "function", "functions"),
		r.Files, plural(r.Files, "file", "files"),
		humanize.Bytes(uint64(r.Bytes)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// Exporter inspects a database and writes one script per table and per
// routine name.
type Exporter struct {
	inspector Inspector
	opts      Options
	gen       *sqlgen.Generator
}

// New creates an Exporter.
func New(inspector Inspector, opts Options) *Exporter {
	if opts.Progress == nil {
		opts.Progress = NoProgress{}
	}
	return &Exporter{
		inspector: inspector,
		opts:      opts,
		gen:       sqlgen.New(opts.Roles),
	}
}

type file struct {
	path string
	data []byte
}

// Run performs the export.
func (e *Exporter) Run(ctx context.Context, f catalog.Filter) (*Result, error) {
	if e.opts.DryRun == nil && e.opts.Out == "" {
		return nil, errors.New("no output directory")
	}

	cat, err := e.inspector.Inspect(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntrospection, err)
	}

	res := &Result{}
	files := e.render(cat, res)

	if e.opts.DryRun != nil {
		for _, fl := range files {
			if _, err := fmt.Fprintf(e.opts.DryRun, "-- File: %s\n%s\n", fl.path, fl.data); err != nil {
				return nil, fmt.Errorf("writing dry run output: %w", err)
			}
			res.add(fl)
		}
		return res, nil
	}

	if e.opts.Clean {
		if err := e.clean(f); err != nil {
			return nil, err
		}
	}

	e.opts.Progress.Start(len(files))
	defer e.opts.Progress.Finish()

	for _, fl := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := writeFileAtomic(fl.path, fl.data); err != nil {
			return nil, err
		}
		res.add(fl)
		e.opts.Progress.Increment(filepath.Base(fl.path))
		log.WithFields(log.Fields{"path": fl.path, "bytes": len(fl.data)}).Debug("wrote script")
	}
	return res, nil
}

func (r *Result) add(fl file) {
	r.Files++
	r.Bytes += int64(len(fl.data))
	r.Paths = append(r.Paths, fl.path)
}

// render builds every script in a stable order: tables by schema and name,
// then routines by schema and name.
func (e *Exporter) render(cat *catalog.Catalog, res *Result) []file {
	out := e.opts.Out
	taken := make(map[string]bool)
	var files []file

	tables := append([]*catalog.Table(nil), cat.Tables...)
	sort.SliceStable(tables, func(i, j int) bool {
		if tables[i].Schema != tables[j].Schema {
			return tables[i].Schema < tables[j].Schema
		}
		return tables[i].Name < tables[j].Name
	})
	for _, t := range tables {
		res.Tables++
		script := e.gen.TableScript(t)
		if script.Empty() {
			res.Skipped++
			log.WithFields(log.Fields{"schema": t.Schema, "table": t.Name}).Debug("nothing to export")
			continue
		}
		files = append(files, file{
			path: uniquePath(TablePath(out, t.Schema, t.Name), taken),
			data: script.Bytes(),
		})
	}

	type routineKey struct{ schema, name string }
	groups := lo.GroupBy(cat.Functions, func(fn *catalog.Function) routineKey {
		return routineKey{schema: fn.Schema, name: fn.Name}
	})
	keys := lo.Keys(groups)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].schema != keys[j].schema {
			return keys[i].schema < keys[j].schema
		}
		return keys[i].name < keys[j].name
	})
	for _, k := range keys {
		res.Functions++
		script := e.gen.FunctionScript(groups[k])
		files = append(files, file{
			path: uniquePath(FunctionPath(out, k.schema, k.name), taken),
			data: script.Bytes(),
		})
	}
	return files
}

// clean removes previously exported directories for the filter's schemas.
func (e *Exporter) clean(f catalog.Filter) error {
	scope := f.Scope
	if scope == "" {
		scope = catalog.ScopeAll
	}
	var dirs []string
	for _, schema := range lo.Uniq(lo.Compact(f.Schemas)) {
		base := filepath.Join(e.opts.Out, SanitizeFileName(schema))
		if scope.IncludesTables() {
			dirs = append(dirs, filepath.Join(base, tablesDir))
		}
		if scope.IncludesFunctions() {
			dirs = append(dirs, filepath.Join(base, functionsDir))
		}
	}

	for _, dir := range dirs {
		if !within(e.opts.Out, dir) {
			return fmt.Errorf("refusing to clean %s outside %s", dir, e.opts.Out)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("cleaning %s: %w", dir, err)
		}
		log.WithField("dir", dir).Debug("cleaned output directory")
	}
	return nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && !strings.HasPrefix(rel, "..")
}
