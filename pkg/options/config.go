package options

import (
	"fmt"
	"os"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"github.com/go-playground/validator/v10"
)

// workspaceSchema constrains the workspace config file. Unification with the
// user's anvil.cue catches unknown fields and type mismatches with CUE's own
// diagnostics before the value is decoded.
const workspaceSchema = `
close({
	workdir?:             string
	quiet?:               bool
	fail_fast?:           bool
	kill_workers?:        bool
	v2_goals?:            [...string]
	policy_paths?:        [...string]
	store_path?:          string
	invalidation_report?: string
	build_file_name?:     string
})
`

// WorkspaceConfig is the decoded workspace configuration (anvil.cue).
type WorkspaceConfig struct {
	Workdir            string   `json:"workdir,omitempty" validate:"omitempty,endswith=.anvil.d"`
	Quiet              *bool    `json:"quiet,omitempty"`
	FailFast           bool     `json:"fail_fast,omitempty"`
	KillWorkers        bool     `json:"kill_workers,omitempty"`
	V2Goals            []string `json:"v2_goals,omitempty"`
	PolicyPaths        []string `json:"policy_paths,omitempty"`
	StorePath          string   `json:"store_path,omitempty"`
	InvalidationReport string   `json:"invalidation_report,omitempty"`
	BuildFileName      string   `json:"build_file_name,omitempty" validate:"omitempty,alphanum"`
}

// LoadWorkspaceConfig parses and validates the CUE config file at path.
// A missing file is not an error: all options keep their hardcoded defaults.
func LoadWorkspaceConfig(path string) (*WorkspaceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &WorkspaceConfig{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(workspaceSchema)
	if schema.Err() != nil {
		return nil, fmt.Errorf("internal config schema error: %w", schema.Err())
	}

	value := ctx.CompileBytes(data)
	if value.Err() != nil {
		return nil, fmt.Errorf("failed to parse config %s: %s", path, errors.Details(value.Err(), nil))
	}

	unified := schema.Unify(value)
	if err := unified.Validate(); err != nil {
		return nil, fmt.Errorf("config %s does not match schema: %s", path, errors.Details(err, nil))
	}

	var cfg WorkspaceConfig
	if err := unified.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// ApplyTo folds config-file values into the global scope at config rank.
// Flag-ranked values already present are not overridden.
func (c *WorkspaceConfig) ApplyTo(g *GlobalOptions) {
	if c.Workdir != "" && g.GetRank("workdir") < RankConfig {
		g.Workdir = c.Workdir
		g.SetRank("workdir", RankConfig)
	}
	if c.Quiet != nil && g.GetRank("quiet") < RankConfig {
		g.Quiet = *c.Quiet
		g.SetRank("quiet", RankConfig)
	}
	if c.FailFast && g.GetRank("fail_fast") < RankConfig {
		g.FailFast = true
		g.SetRank("fail_fast", RankConfig)
	}
	if c.KillWorkers && g.GetRank("kill_workers") < RankConfig {
		g.KillWorkers = true
		g.SetRank("kill_workers", RankConfig)
	}
	if len(c.PolicyPaths) > 0 && len(g.PolicyPaths) == 0 {
		g.PolicyPaths = c.PolicyPaths
	}
	if c.StorePath != "" && g.StorePath == "" {
		g.StorePath = c.StorePath
	}
	if c.InvalidationReport != "" && g.InvalidationReportPath == "" {
		g.InvalidationReportPath = c.InvalidationReport
	}
}
