// Package solver implements SolverPool: an in-memory arena of every known
// Package (repo packages plus PUTs in the synthetic "@commandline"
// pseudo-repo), with what-provides and what-provides-file indices, and a
// from-scratch dependency-closure resolver standing in for a SAT/libsolv
// binding (none exists anywhere in the corpus this module was grounded on).
package solver

import (
	"fmt"
	"sort"
	"strings"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

// installonlyNames is the hardcoded set of package/virtual-provide names
// that may be installed in multiple versions side by side.
var installonlyNames = map[string]struct{}{
	"kernel":                        {},
	"kernel-PAE":                    {},
	"installonlypkg(kernel)":        {},
	"installonlypkg(kernel-module)": {},
	"installonlypkg(vm)":            {},
	"kernel-bigmem":                 {},
	"kernel-enterprise":             {},
	"kernel-smp":                    {},
	"kernel-modules":                {},
	"kernel-debug":                  {},
	"kernel-unsupported":            {},
	"kernel-source":                 {},
	"kernel-devel":                  {},
	"kernel-PAE-debug":              {},
}

// Pool is a solvable arena: every Package gets a stable integer id, indexed
// flat to avoid owning-pointer cycles between Requires/Provides edges.
type Pool struct {
	Arch string

	byID []*deplint.Package
	idOf map[*deplint.Package]int

	finalized    bool
	provides     map[string][]int
	fileProvides map[string][]int
}

// NewPool constructs an empty pool targeting the given test architecture.
func NewPool(arch string) *Pool {
	return &Pool{
		Arch: arch,
		idOf: make(map[*deplint.Package]int),
	}
}

// Add registers pkg in the pool, returning its id. Add must not be called
// after Finalize.
func (p *Pool) Add(pkg *deplint.Package) int {
	if p.finalized {
		panic("solver: Add called after Finalize")
	}
	if id, ok := p.idOf[pkg]; ok {
		return id
	}
	id := len(p.byID)
	p.byID = append(p.byID, pkg)
	p.idOf[pkg] = id
	return id
}

// Packages returns every package in the pool, in addition order.
func (p *Pool) Packages() []*deplint.Package {
	out := make([]*deplint.Package, len(p.byID))
	copy(out, p.byID)
	return out
}

// IDOf returns pkg's pool id; pkg must already have been Add-ed.
func (p *Pool) IDOf(pkg *deplint.Package) (int, bool) {
	id, ok := p.idOf[pkg]
	return id, ok
}

// CompatibleArch reports whether arch is installable against the pool's
// configured test architecture (noarch always is).
func (p *Pool) CompatibleArch(arch string) bool {
	return arch == rpmver.Noarch || rpmver.Compatible(p.Arch, arch)
}

// IsInstallonly reports whether pkg is in the hardcoded installonly set,
// applied as SELECTION_PROVIDES so either its own name or a matching
// virtual Provide counts.
func (p *Pool) IsInstallonly(pkg *deplint.Package) bool {
	if _, ok := installonlyNames[pkg.Name]; ok {
		return true
	}
	for _, prov := range pkg.Provides {
		if _, ok := installonlyNames[prov.Name]; ok {
			return true
		}
	}
	return false
}

// Finalize computes what-provides (createwhatprovides) and what-provides-
// file (addfileprovides) indices over every package currently in the pool.
// The pool is read-only after Finalize, matching spec.md's SolverPool
// lifecycle.
func (p *Pool) Finalize() error {
	p.provides = make(map[string][]int)
	p.fileProvides = make(map[string][]int)

	for id, pkg := range p.byID {
		p.provides[pkg.Name] = append(p.provides[pkg.Name], id)
		for _, prov := range pkg.Provides {
			p.provides[prov.Name] = append(p.provides[prov.Name], id)
		}
		files, err := pkg.Files()
		if err != nil {
			return fmt.Errorf("solver: finalizing file-provides for %s: %w", pkg.NEVRA(), err)
		}
		for _, f := range files {
			p.fileProvides[f.Path] = append(p.fileProvides[f.Path], id)
		}
	}
	p.finalized = true
	return nil
}

// PackagesProvidingFile returns every package in the pool (other than
// exclude, if non-nil) whose file list owns path.
func (p *Pool) PackagesProvidingFile(path string, exclude *deplint.Package) []*deplint.Package {
	ids := p.fileProvides[path]
	out := make([]*deplint.Package, 0, len(ids))
	for _, id := range ids {
		pkg := p.byID[id]
		if pkg == exclude {
			continue
		}
		out = append(out, pkg)
	}
	return out
}

// providersFor returns every non-erased package in the pool whose Provides
// (or file-provides, for a "/"-prefixed name) satisfies req.
func (p *Pool) providersFor(req deplint.Dependency, erased map[int]bool) []*deplint.Package {
	var ids []int
	if strings.HasPrefix(req.Name, "/") {
		ids = p.fileProvides[req.Name]
	} else {
		ids = p.provides[req.Name]
	}
	out := make([]*deplint.Package, 0, len(ids))
	seen := make(map[int]bool, len(ids))
	for _, id := range ids {
		if erased[id] || seen[id] {
			continue
		}
		seen[id] = true
		pkg := p.byID[id]
		if strings.HasPrefix(req.Name, "/") {
			out = append(out, pkg)
			continue
		}
		if pkg.ProvidesMatch(req.Name, req.Flags, req.EVR) {
			out = append(out, pkg)
		}
	}
	return out
}

// newest picks a deterministic "best" candidate from a non-empty slice:
// highest EVR, with NEVRA string as a stable tie-break.
func newest(cands []*deplint.Package) *deplint.Package {
	best := cands[0]
	for _, c := range cands[1:] {
		be, ce := best.EVRA(), c.EVRA()
		be.Name, be.Architecture, ce.Name, ce.Architecture = nil, nil, nil, nil
		if cmp := rpmver.Compare(&ce, &be); cmp > 0 {
			best = c
		} else if cmp == 0 && c.NEVRA() < best.NEVRA() {
			best = c
		}
	}
	return best
}

// ExplicitlyConflict reports whether a and b declare an explicit RPM
// Conflicts relation against one another (in either direction).
func ExplicitlyConflict(a, b *deplint.Package) bool {
	return conflictsWith(a, b) || conflictsWith(b, a)
}

func conflictsWith(a, b *deplint.Package) bool {
	for _, c := range a.Conflicts {
		if b.ProvidesMatch(c.Name, c.Flags, c.EVR) {
			return true
		}
	}
	return false
}

// sortedProblems returns a stable, lexicographically sorted copy of probs.
func sortedProblems(probs []deplint.Problem) []deplint.Problem {
	out := make([]deplint.Problem, len(probs))
	copy(out, probs)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
