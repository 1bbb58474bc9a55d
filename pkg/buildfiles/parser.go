// Package buildfiles evaluates BUILD files and assembles the target graph
// from the declarations they register.
//
// BUILD files are Starlark programs. Each target(...) call declares one
// target addressed by the directory of the BUILD file and the target name.
package buildfiles

import (
	"context"
	"fmt"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/anvilbuild/anvil/pkg/graph"
)

// BuildFileName is the file evaluated in each directory of the workspace.
const BuildFileName = "BUILD"

// Parser evaluates BUILD files safely.
type Parser struct {
	timeout time.Duration
}

// NewParser creates a BUILD file parser.
func NewParser(timeout time.Duration) *Parser {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Parser{timeout: timeout}
}

// ParseFile evaluates one BUILD file and returns the targets it declares.
// The dir is the workspace-relative directory holding the file; it becomes
// the path component of every declared address.
func (p *Parser) ParseFile(ctx context.Context, dir string, src []byte) ([]graph.TargetDeclaration, error) {
	evalCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	declsCh := make(chan []graph.TargetDeclaration, 1)
	errCh := make(chan error, 1)

	go func() {
		decls, err := p.parseSync(dir, src)
		if err != nil {
			errCh <- err
		} else {
			declsCh <- decls
		}
	}()

	select {
	case <-evalCtx.Done():
		return nil, fmt.Errorf("BUILD file evaluation timeout after %v: %s", p.timeout, dir)
	case err := <-errCh:
		return nil, err
	case decls := <-declsCh:
		return decls, nil
	}
}

func (p *Parser) parseSync(dir string, src []byte) ([]graph.TargetDeclaration, error) {
	collector := &declCollector{dir: dir}

	thread := &starlark.Thread{
		Name: "anvil",
		Print: func(_ *starlark.Thread, msg string) {
			// BUILD files have no stdout.
		},
	}

	predeclared := starlark.StringDict{
		"struct": starlarkstruct.Default,
		"target": starlark.NewBuiltin("target", collector.builtinTarget),
		"glob":   starlark.NewBuiltin("glob", builtinGlob),
	}

	if _, err := starlark.ExecFile(thread, dir+"/"+BuildFileName, src, predeclared); err != nil {
		return nil, fmt.Errorf("failed to evaluate %s/%s: %w", dir, BuildFileName, err)
	}

	return collector.decls, nil
}

// declCollector accumulates target() calls from one BUILD file.
type declCollector struct {
	dir   string
	decls []graph.TargetDeclaration
}

func (c *declCollector) builtinTarget(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var deps, tags, sources *starlark.List

	if err := starlark.UnpackArgs(b.Name(), args, kwargs,
		"name", &name,
		"deps?", &deps,
		"tags?", &tags,
		"sources?", &sources,
	); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("target: name must not be empty")
	}

	depList, err := stringList("deps", deps)
	if err != nil {
		return nil, err
	}
	tagList, err := stringList("tags", tags)
	if err != nil {
		return nil, err
	}
	srcList, err := stringList("sources", sources)
	if err != nil {
		return nil, err
	}

	addr := graph.Address{Path: c.dir, Name: name}
	for _, d := range c.decls {
		if d.Address == addr {
			return nil, fmt.Errorf("target: duplicate target name %q in %s", name, c.dir)
		}
	}

	c.decls = append(c.decls, graph.TargetDeclaration{
		Address:      addr,
		Dependencies: depList,
		Tags:         tagList,
		Sources:      srcList,
	})
	return starlark.None, nil
}

// builtinGlob records source patterns verbatim. Expansion against the
// filesystem happens when a task consumes the target's sources.
func builtinGlob(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var patterns []starlark.Value
	for i, arg := range args {
		s, ok := starlark.AsString(arg)
		if !ok {
			return nil, fmt.Errorf("glob argument %d is not a string", i)
		}
		patterns = append(patterns, starlark.String(s))
	}
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("glob takes no keyword arguments")
	}
	return starlark.NewList(patterns), nil
}

func stringList(param string, l *starlark.List) ([]string, error) {
	if l == nil {
		return nil, nil
	}
	out := make([]string, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		s, ok := starlark.AsString(l.Index(i))
		if !ok {
			return nil, fmt.Errorf("%s element %d is not a string", param, i)
		}
		out = append(out, s)
	}
	return out, nil
}
