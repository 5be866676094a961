package compiler

import (
	"context"

	"github.com/dlua-lang/dlua/internal/build"
)

// Report is the pending work of a source tree.
type Report struct {
	Files      []string
	Changed    []string
	Affected   []string
	Unresolved []string
	Cycles     [][]string
}

// Status loads the project without touching the export directory and
// reports what the next run would do.
func Status(ctx context.Context, opts Options) (Report, error) {
	lo := New(opts).loadOptions()
	lo.ReadOnly = true
	p, err := build.Load(ctx, lo)
	if err != nil {
		return Report{}, err
	}
	return Report{
		Files:      p.AllFiles(),
		Changed:    p.Changed(),
		Affected:   p.Affected(),
		Unresolved: p.Unresolved(),
		Cycles:     p.Graph().Cycles(),
	}, nil
}
