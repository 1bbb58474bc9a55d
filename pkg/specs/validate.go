package specs

import (
	"fmt"
	"strings"
)

// UnsupportedSpecsError is returned when filesystem specs are routed to the
// address-based goal engine. It carries everything needed to print an
// actionable diagnostic: the command the user attempted and a corrected
// invocation using --owner-of.
type UnsupportedSpecsError struct {
	// BinName is the name of the tool binary, used to render commands.
	BinName string

	// Goals are the goal names the user requested.
	Goals []string

	// Globs are the raw filesystem spec strings that triggered the error.
	Globs []string
}

// Error renders the full user-facing diagnostic.
func (e *UnsupportedSpecsError) Error() string {
	quoted := make([]string, len(e.Goals))
	for i, g := range e.Goals {
		quoted[i] = fmt.Sprintf("%q", g)
	}
	goals := strings.Join(quoted, " ")
	globs := strings.Join(e.Globs, " ")
	original := strings.TrimSpace(fmt.Sprintf("%s %s %s", e.BinName, goals, globs))

	ownerArgs := make([]string, len(e.Globs))
	wildcard := false
	for i, glob := range e.Globs {
		ownerArgs[i] = fmt.Sprintf("--owner-of=%s", glob)
		if strings.ContainsAny(glob, "*?") {
			wildcard = true
		}
	}

	var suggestion string
	if wildcard {
		suggestion = fmt.Sprintf(
			"run `%s --owner-of=src/jvm/f1.java --owner-of=src/jvm/f2.java %s`. "+
				"(You must explicitly enumerate every file because `--owner-of` does not support globs.)",
			e.BinName, goals)
	} else {
		suggestion = fmt.Sprintf("run `%s %s %s`.", e.BinName, strings.Join(ownerArgs, " "), goals)
	}

	return fmt.Sprintf(
		"Instead of running `%s`, %s\n\n"+
			"Why? Filesystem specs like `src/jvm/example.java` and `src/**/*.java` are not supported "+
			"by the goal engine. Use address specs like `src/jvm/example:foo` and `::`, or use "+
			"`--owner-of` for %s to find the files' owning targets for you.",
		original, suggestion, e.BinName)
}

// Validate rejects spec combinations the goal engine cannot execute. It is a
// pure check with no side effects and must run before any graph resolution:
// if any filesystem spec is present the engine never sees the request.
func Validate(sp Specs, goalNames []string, binName string) error {
	if len(sp.FilesystemSpecs) == 0 {
		return nil
	}
	globs := make([]string, len(sp.FilesystemSpecs))
	for i, fs := range sp.FilesystemSpecs {
		globs[i] = fs.Glob
	}
	return &UnsupportedSpecsError{
		BinName: binName,
		Goals:   goalNames,
		Globs:   globs,
	}
}
