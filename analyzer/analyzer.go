// Package analyzer implements DependencyAnalyzer: the orchestrator that
// owns a finalized SolverPool and exposes the four diagnostic checks
// (unsatisfiable dependencies, repo closure breakage, undeclared file
// conflicts, upgrade regressions) spec.md's PURPOSE & SCOPE names.
package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/quay/zlog"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/internal/solver"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

// Analyzer runs the four checks against a finalized pool. PUTs is the set
// of packages under test, in the order they were given on the command
// line (diagnostic ordering depends on this, per spec.md §5).
type Analyzer struct {
	Pool    *solver.Pool
	PUTs    []*deplint.Package
	Fetcher *Fetcher
}

// New constructs an Analyzer over an already-finalized pool.
func New(pool *solver.Pool, puts []*deplint.Package, fetcher *Fetcher) *Analyzer {
	return &Analyzer{Pool: pool, PUTs: puts, Fetcher: fetcher}
}

// TryToInstallAll implements §4.4.1: solve a single INSTALL job per PUT, in
// input order, recording either its dependency closure or its problems.
func (a *Analyzer) TryToInstallAll() (bool, *DependencySet) {
	set := &DependencySet{}
	ok := true
	for _, put := range a.PUTs {
		txn, problems := a.Pool.Solve([]deplint.Job{solver.InstallJob(put)})
		if len(problems) > 0 {
			ok = false
			set.Add(put, nil, problems)
			continue
		}
		set.Add(put, txn.Installs, nil)
	}
	return ok, set
}

// FindRepoclosureProblems implements §4.4.2.
func (a *Analyzer) FindRepoclosureProblems(ctx context.Context) []deplint.Problem {
	obsoleted := a.obsoletedBy(a.PUTs)
	existingObsoleted := a.obsoletedBy(repoPackagesOf(a.Pool))

	var problems []deplint.Problem
	for _, s := range a.Pool.Packages() {
		if s.IsPUT() {
			continue
		}
		if obsoleted[s] || existingObsoleted[s] {
			continue
		}
		if !a.Pool.CompatibleArch(s.Arch) {
			continue
		}

		eraseJobs := eraseJobsFor(obsoleted, existingObsoleted)
		_, problemsFull := a.Pool.Solve(append([]deplint.Job{solver.InstallJob(s)}, eraseJobs...))
		if len(problemsFull) == 0 {
			continue
		}

		reducedJobs := eraseJobsForSet(existingObsoleted)
		_, problemsReduced := a.Pool.Solve(append([]deplint.Job{solver.InstallJob(s)}, reducedJobs...))
		if len(problemsReduced) > 0 {
			for _, p := range problemsReduced {
				zlog.Warn(ctx).Msg("Ignoring pre-existing repoclosure problem: " + string(p))
			}
			continue
		}
		problems = append(problems, problemsFull...)
	}
	return sortProblems(problems)
}

// obsoletedBy computes the set described by spec.md §4.4.2's Obsoleted /
// ExistingObsoleted rules for the given set of "anchor" packages (PUTs for
// Obsoleted, all repo packages for ExistingObsoleted).
func (a *Analyzer) obsoletedBy(anchors []*deplint.Package) map[*deplint.Package]bool {
	out := make(map[*deplint.Package]bool)
	for _, anchor := range anchors {
		anchorEVR := anchor.EVRA()
		for _, q := range repoPackagesOf(a.Pool) {
			if q == anchor {
				continue
			}
			if q.Name != anchor.Name || q.Arch != anchor.Arch {
				continue
			}
			qEVR := q.EVRA()
			if rpmver.Compare(&qEVR, &anchorEVR) < 0 {
				out[q] = true
			}
		}
		for _, rel := range anchor.Obsoletes {
			for _, q := range a.Pool.Packages() {
				if q.ProvidesMatch(rel.Name, rel.Flags, rel.EVR) {
					out[q] = true
				}
			}
		}
	}
	return out
}

func eraseJobsFor(sets ...map[*deplint.Package]bool) []deplint.Job {
	var jobs []deplint.Job
	for _, set := range sets {
		jobs = append(jobs, eraseJobsForSet(set)...)
	}
	return jobs
}

func eraseJobsForSet(set map[*deplint.Package]bool) []deplint.Job {
	jobs := make([]deplint.Job, 0, len(set))
	for pkg := range set {
		jobs = append(jobs, solver.EraseJob(pkg))
	}
	return jobs
}

func repoPackagesOf(pool *solver.Pool) []*deplint.Package {
	var out []*deplint.Package
	for _, pkg := range pool.Packages() {
		if !pkg.IsPUT() {
			out = append(out, pkg)
		}
	}
	return out
}

// FindUpgradeProblems implements §4.4.4.
func (a *Analyzer) FindUpgradeProblems() []deplint.Problem {
	var problems []deplint.Problem
	for _, put := range a.PUTs {
		res := a.Pool.UpgradeCandidates(put)
		switch res.Step {
		case solver.StepIgnore:
		case solver.StepUpgraded:
			problems = append(problems, deplint.Problem(fmt.Sprintf(
				"%s would be upgraded by %s from repo %s", put.NEVRA(), res.Other.NEVRA(), res.Other.RepoName())))
		case solver.StepObsoleted:
			problems = append(problems, deplint.Problem(fmt.Sprintf(
				"%s would be obsoleted by %s from repo %s", put.NEVRA(), res.Other.NEVRA(), res.Other.RepoName())))
		default:
			panic("analyzer: unrecognised transaction step type")
		}
	}
	return sortProblems(problems)
}

func sortProblems(probs []deplint.Problem) []deplint.Problem {
	out := make([]deplint.Problem, len(probs))
	copy(out, probs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
