package analyzer

import (
	"sort"

	deplint "github.com/default-to-open/rpmdeplint"
)

// entry is the per-PUT record held by a DependencySet.
type entry struct {
	pkg          *deplint.Package
	dependencies []*deplint.Package
	problems     []deplint.Problem
}

// DependencySet is an append-only accumulator for try_to_install_all's
// per-PUT results, plus the aggregate views the CLI and other checks
// consume.
type DependencySet struct {
	entries []entry
}

// Add records one PUT's resolved dependency closure (or its problems, if
// the solve for it failed). Add never deduplicates: calling it twice for
// the same pkg appends a second record.
func (s *DependencySet) Add(pkg *deplint.Package, dependencies []*deplint.Package, problems []deplint.Problem) {
	s.entries = append(s.entries, entry{pkg: pkg, dependencies: dependencies, problems: problems})
}

// Packages returns every PUT added, sorted by NEVRA.
func (s *DependencySet) Packages() []*deplint.Package {
	out := make([]*deplint.Package, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.pkg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NEVRA() < out[j].NEVRA() })
	return out
}

// PackagesWithProblems returns every PUT that had at least one problem,
// sorted by NEVRA.
func (s *DependencySet) PackagesWithProblems() []*deplint.Package {
	var out []*deplint.Package
	for _, e := range s.entries {
		if len(e.problems) > 0 {
			out = append(out, e.pkg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NEVRA() < out[j].NEVRA() })
	return out
}

// OverallProblems returns the union of every PUT's problems, sorted
// lexicographically.
func (s *DependencySet) OverallProblems() []deplint.Problem {
	seen := make(map[deplint.Problem]struct{})
	var out []deplint.Problem
	for _, e := range s.entries {
		for _, p := range e.problems {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PackageDependencyInfo is one PUT's install-closure/problems pair, as
// returned by PackageDependencies.
type PackageDependencyInfo struct {
	Dependencies []*deplint.Package
	Problems     []deplint.Problem
}

// PackageDependencies returns a mapping from NEVRA to that PUT's recorded
// dependencies and problems.
func (s *DependencySet) PackageDependencies() map[string]PackageDependencyInfo {
	out := make(map[string]PackageDependencyInfo, len(s.entries))
	for _, e := range s.entries {
		out[e.pkg.NEVRA()] = PackageDependencyInfo{Dependencies: e.dependencies, Problems: e.problems}
	}
	return out
}

// RepositoryDependencies returns, for every repo name seen among recorded
// dependency closures, the sorted set of repo packages pulled in from it.
// Supplements the distilled spec with rpmdeplint's original
// repository_dependencies() read view (see DESIGN.md).
func (s *DependencySet) RepositoryDependencies() map[string][]*deplint.Package {
	byRepo := make(map[string]map[string]*deplint.Package)
	for _, e := range s.entries {
		for _, dep := range e.dependencies {
			repo := dep.RepoName()
			if byRepo[repo] == nil {
				byRepo[repo] = make(map[string]*deplint.Package)
			}
			byRepo[repo][dep.NEVRA()] = dep
		}
	}
	out := make(map[string][]*deplint.Package, len(byRepo))
	for repo, set := range byRepo {
		list := make([]*deplint.Package, 0, len(set))
		for _, pkg := range set {
			list = append(list, pkg)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].NEVRA() < list[j].NEVRA() })
		out[repo] = list
	}
	return out
}

// RepositoryFor reports which repo a given dependency NEVRA was pulled
// from, across every recorded closure. Supplements the distilled spec with
// rpmdeplint's original repository_for_package() read view (see
// DESIGN.md).
func (s *DependencySet) RepositoryFor(nevra string) (string, bool) {
	for _, e := range s.entries {
		for _, dep := range e.dependencies {
			if dep.NEVRA() == nevra {
				return dep.RepoName(), true
			}
		}
	}
	return "", false
}
