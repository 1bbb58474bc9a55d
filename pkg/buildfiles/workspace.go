package buildfiles

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anvilbuild/anvil/pkg/graph"
)

// Workspace discovers and evaluates BUILD files under a root directory.
type Workspace struct {
	rootDir       string
	parser        *Parser
	logger        zerolog.Logger
	buildFileName string
}

// NewWorkspace creates a workspace rooted at rootDir.
func NewWorkspace(rootDir string, parser *Parser, logger zerolog.Logger) *Workspace {
	if parser == nil {
		parser = NewParser(0)
	}
	return &Workspace{
		rootDir:       rootDir,
		parser:        parser,
		logger:        logger,
		buildFileName: BuildFileName,
	}
}

// SetBuildFileName overrides the default BUILD file name.
func (w *Workspace) SetBuildFileName(name string) {
	if name != "" {
		w.buildFileName = name
	}
}

// RootDir returns the workspace root.
func (w *Workspace) RootDir() string {
	return w.rootDir
}

// ScanDeclarations walks the workspace, evaluates every BUILD file and
// returns all target declarations. Hidden directories and the work
// directory are not descended into.
func (w *Workspace) ScanDeclarations(ctx context.Context) ([]graph.TargetDeclaration, error) {
	var decls []graph.TargetDeclaration

	err := filepath.WalkDir(w.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			name := d.Name()
			if path != w.rootDir && (strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".anvil.d")) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != w.buildFileName {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		src, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(w.rootDir, filepath.Dir(path))
		if err != nil {
			return err
		}
		dir := filepath.ToSlash(rel)
		if dir == "." {
			dir = ""
		}

		fileDecls, err := w.parser.ParseFile(ctx, dir, src)
		if err != nil {
			return err
		}
		w.logger.Debug().Str("dir", dir).Int("targets", len(fileDecls)).Msg("Evaluated BUILD file")
		decls = append(decls, fileDecls...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decls, nil
}

// CreateBuildGraph scans the workspace and assembles the target graph and
// its address mapper.
func (w *Workspace) CreateBuildGraph(ctx context.Context) (graph.BuildGraph, *graph.AddressMapper, error) {
	decls, err := w.ScanDeclarations(ctx)
	if err != nil {
		return nil, nil, err
	}
	mapper, err := graph.NewAddressMapper(decls)
	if err != nil {
		return nil, nil, err
	}
	return graph.NewGraph(mapper, w.logger), mapper, nil
}
