// Package gen renders compiled schema trees into Go source: one file
// per model holding the document struct, its collection and field-name
// constants, and concrete methods for the synthesizable virtuals.
package gen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/developer-rs5/easy-mongoo/schema"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// modulePkg is the import path generated files use to reach runtime
// helpers.
const modulePkg = "github.com/developer-rs5/easy-mongoo"

// A Generator renders trees into a target directory.
type Generator struct {
	dir     string
	pkg     string
	workers int
}

// New returns a generator writing into dir. The package name defaults
// to the directory's base name.
func New(dir string) *Generator {
	return &Generator{
		dir:     dir,
		pkg:     filepath.Base(dir),
		workers: runtime.GOMAXPROCS(0),
	}
}

// WithPackage sets the generated package name.
func (g *Generator) WithPackage(pkg string) *Generator {
	if pkg != "" {
		g.pkg = pkg
	}
	return g
}

// WithWorkers sets the number of parallel renders.
func (g *Generator) WithWorkers(n int) *Generator {
	if n > 0 {
		g.workers = n
	}
	return g
}

// Generate renders every tree and writes one file per model, in
// parallel. The first failure cancels the remaining renders.
func (g *Generator) Generate(ctx context.Context, trees ...*schema.Tree) error {
	if len(trees) == 0 {
		return errors.New("gen: no trees to generate")
	}
	if g.dir == "" {
		return errors.New("gen: output directory is required")
	}
	if err := os.MkdirAll(g.dir, 0o755); err != nil {
		return fmt.Errorf("gen: create output directory: %w", err)
	}
	errg, _ := errgroup.WithContext(ctx)
	errg.SetLimit(g.workers)
	for _, t := range trees {
		t := t
		errg.Go(func() error {
			f, err := g.Model(t)
			if err != nil {
				return err
			}
			return g.writeFile(f, strings.ToLower(t.Name)+".go")
		})
	}
	return errg.Wait()
}

// Generate renders trees into dir with default settings.
func Generate(ctx context.Context, dir string, trees ...*schema.Tree) error {
	return New(dir).Generate(ctx, trees...)
}

func (g *Generator) writeFile(f *jen.File, filename string) error {
	path := filepath.Join(g.dir, filename)
	src, err := render(f, path)
	if err != nil {
		return err
	}
	return os.WriteFile(path, src, 0o644)
}

// render buffers the jennifer output and runs it through goimports.
func render(f *jen.File, filename string) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		return nil, fmt.Errorf("gen: render %s: %w", filepath.Base(filename), err)
	}
	src, err := imports.Process(filename, buf.Bytes(), nil)
	if err != nil {
		return nil, fmt.Errorf("gen: format %s: %w", filepath.Base(filename), err)
	}
	return src, nil
}

func (g *Generator) newFile() *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment("Code generated by mongoo. DO NOT EDIT.")
	return f
}
