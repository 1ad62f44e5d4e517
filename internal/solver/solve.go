package solver

import (
	"context"
	"fmt"
	"runtime/trace"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	deplint "github.com/default-to-open/rpmdeplint"
)

var solveDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "rpmdeplint",
		Subsystem: "solver",
		Name:      "solve_duration_seconds",
		Help:      "Time spent in Pool.Solve, one observation per call.",
	},
	[]string{},
)

// Transaction is the result of a successful solve: every package that ended
// up installed (the job targets plus whatever was transitively pulled in
// to satisfy their Requires).
type Transaction struct {
	Installs []*deplint.Package
}

// Solve resolves jobs against the pool: INSTALL/UPDATE/MULTIVERSION
// selectors seed the install set; ERASE selectors remove their targets from
// the pool of available providers (and prevent them from being selected).
// Pool must already be Finalize-d.
//
// This stands in for a CDCL/libsolv core (see SPEC_FULL.md §4.4):
// it is a breadth-first dependency-closure over Requires, picking the
// highest-EVR available provider for each unsatisfied Requires rather than
// backtracking over conflicting choices. Precise enough for the four
// diagnostic contracts this module implements; not a general-purpose
// installer.
func (p *Pool) Solve(jobs []deplint.Job) (*Transaction, []deplint.Problem) {
	defer trace.StartRegion(context.Background(), "solver.Solve").End()
	start := time.Now()
	defer func() { solveDuration.WithLabelValues().Observe(time.Since(start).Seconds()) }()

	if !p.finalized {
		panic("solver: Solve called before Finalize")
	}

	erased := make(map[int]bool)
	var seeds []*deplint.Package
	for _, j := range jobs {
		targets := p.resolveSelector(j.Selector)
		switch j.Action {
		case deplint.JobErase:
			for _, t := range targets {
				if id, ok := p.idOf[t]; ok {
					erased[id] = true
				}
			}
		default:
			seeds = append(seeds, targets...)
		}
	}

	installed := make(map[int]*deplint.Package)
	var worklist []*deplint.Package
	for _, s := range seeds {
		id, ok := p.idOf[s]
		if !ok || erased[id] {
			continue
		}
		if _, ok := installed[id]; ok {
			continue
		}
		installed[id] = s
		worklist = append(worklist, s)
	}

	var problems []deplint.Problem
	for len(worklist) > 0 {
		cur := worklist[0]
		worklist = worklist[1:]

		for _, req := range cur.Requires {
			if strings.HasPrefix(req.Name, "rpmlib(") {
				continue
			}
			cands := p.providersFor(req, erased)
			if len(cands) == 0 {
				problems = append(problems, deplint.Problem(
					fmt.Sprintf("nothing provides %s needed by %s", req.String(), cur.NEVRA())))
				continue
			}
			best := newest(cands)
			id := p.idOf[best]
			if _, ok := installed[id]; ok {
				continue
			}
			installed[id] = best
			worklist = append(worklist, best)
		}
	}

	installs := make([]*deplint.Package, 0, len(installed))
	for _, pkg := range installed {
		installs = append(installs, pkg)
	}
	sort.Slice(installs, func(i, j int) bool { return installs[i].NEVRA() < installs[j].NEVRA() })

	return &Transaction{Installs: installs}, sortedProblems(problems)
}

// resolveSelector expands a Selector into the pool packages it names.
func (p *Pool) resolveSelector(sel deplint.Selector) []*deplint.Package {
	switch sel.Kind {
	case deplint.SelectByPackage:
		if sel.Package == nil {
			return nil
		}
		return []*deplint.Package{sel.Package}
	case deplint.SelectByName:
		var out []*deplint.Package
		for _, pkg := range p.byID {
			if pkg.Name == sel.Name {
				out = append(out, pkg)
			}
		}
		return out
	case deplint.SelectByProvides:
		var out []*deplint.Package
		for _, pkg := range p.byID {
			if pkg.ProvidesMatch(sel.Name, sel.Flags, sel.EVR) {
				out = append(out, pkg)
			}
		}
		return out
	default:
		return nil
	}
}

// InstallJob builds a Job that installs exactly pkg.
func InstallJob(pkg *deplint.Package) deplint.Job {
	return deplint.Job{
		Action:   deplint.JobInstall,
		Selector: deplint.Selector{Kind: deplint.SelectByPackage, Package: pkg},
	}
}

// EraseJob builds a Job that removes exactly pkg from the set of available
// providers for the solve it's submitted in.
func EraseJob(pkg *deplint.Package) deplint.Job {
	return deplint.Job{
		Action:   deplint.JobErase,
		Selector: deplint.Selector{Kind: deplint.SelectByPackage, Package: pkg},
	}
}
