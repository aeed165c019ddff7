// Package io formats a solver's decision tree and solution as a
// human-readable trail: REQUEST / RESOLVE / UNRESOLVE / BLOCKED / TRY
// lines, indented by tree depth. Color and terminal formatting are an
// external adapter's concern; this package only produces plain text.
package io

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/spkfs/spfs/spk/api"
	"github.com/spkfs/spfs/spk/solve"
)

// FormatIdent renders an Ident as "name/version[/build]"; the version
// part is always written, the build only when the Ident carries one.
func FormatIdent(ident api.Ident) string {
	out := ident.Name
	out += "/" + ident.Version.String()
	if ident.Build != nil {
		out += "/" + ident.Build.String()
	}
	return out
}

func formatRequest(name string, requests []api.Request) string {
	var ranges []string
	for _, r := range requests {
		switch {
		case r.Pkg != nil:
			s := r.Pkg.Range.String()
			if r.Pkg.Build != nil {
				s += "/" + r.Pkg.Build.String()
			}
			ranges = append(ranges, s)
		case r.Var != nil:
			ranges = append(ranges, r.Var.Value)
		}
	}
	return name + "/" + strings.Join(ranges, ",")
}

// FormatDecision renders one decision's local changes: what it resolved,
// what it requested, what it unresolved, and its error, if any. At
// verbosity > 1, each package's rejected candidates (TRY lines) are
// included.
func FormatDecision(d *solve.Decision, verbosity int) string {
	var b strings.Builder

	resolved := d.GetResolved().Items()
	if len(resolved) > 0 {
		names := make([]string, len(resolved))
		for i, item := range resolved {
			names[i] = FormatIdent(item.Spec.Pkg)
		}
		fmt.Fprintf(&b, "RESOLVE %s\n", strings.Join(names, ", "))
	}

	requests := d.LocalRequests()
	if len(requests) > 0 {
		var lines []string
		for name, reqs := range requests {
			lines = append(lines, formatRequest(name, reqs))
		}
		fmt.Fprintf(&b, "REQUEST %s\n", strings.Join(lines, ", "))
	}

	if d.Error() == nil {
		if unresolved := d.LocalUnresolved(); len(unresolved) > 0 {
			fmt.Fprintf(&b, "UNRESOLVE %s\n", strings.Join(unresolved, ", "))
		}
	}

	if err := d.Error(); err != nil {
		if unresolvedErr, ok := err.(*solve.UnresolvedPackageError); ok && verbosity > 1 {
			for version, reason := range unresolvedErr.History {
				fmt.Fprintf(&b, "TRY %s/%s - %s\n", unresolvedErr.Name, version, reason)
			}
		}
		fmt.Fprintf(&b, "BLOCKED %s\n", err)
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatDecisionTree renders an entire decision tree in depth-first
// order, indenting each decision's lines by its depth with ">" on the
// first line and "." on continuation lines, matching the solver's own
// notion of branch depth.
func FormatDecisionTree(tree *solve.DecisionTree, verbosity int) string {
	var b strings.Builder
	for _, d := range tree.Walk() {
		text := FormatDecision(d, verbosity)
		if text == "" {
			continue
		}
		lines := strings.Split(text, "\n")
		fmt.Fprintf(&b, "%s %s\n", strings.Repeat(">", d.Level()), lines[0])
		for _, line := range lines[1:] {
			fmt.Fprintf(&b, "%s %s\n", strings.Repeat(".", d.Level()), line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatSolution renders a resolved Solution as an installed-packages
// listing.
func FormatSolution(sol *solve.Solution) string {
	var b strings.Builder
	b.WriteString("Installed Packages:\n")
	for _, item := range sol.Items() {
		fmt.Fprintf(&b, "  %s\n", FormatIdent(item.Spec.Pkg))
	}
	return b.String()
}

// verbosityLevel maps a solver trail verbosity to the logrus level it
// should be emitted at: the trail is diagnostic detail, never an error
// in itself, so it tops out at Info.
func verbosityLevel(verbosity int) logrus.Level {
	if verbosity > 1 {
		return logrus.DebugLevel
	}
	return logrus.InfoLevel
}

// LogDecisionTree logs the formatted decision tree through logger at a
// level derived from verbosity.
func LogDecisionTree(logger *logrus.Logger, tree *solve.DecisionTree, verbosity int) {
	logger.Log(verbosityLevel(verbosity), "\n"+FormatDecisionTree(tree, verbosity))
}
