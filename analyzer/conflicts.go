package analyzer

import (
	"context"
	"fmt"
	"sort"

	"github.com/quay/zlog"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/internal/rpminspect"
	"github.com/default-to-open/rpmdeplint/internal/solver"
)

// FindConflicts implements §4.4.3: for each PUT and each file it owns,
// enumerate other packages owning the same path and report undeclared
// conflicts.
func (a *Analyzer) FindConflicts(ctx context.Context) ([]deplint.Problem, error) {
	var problems []deplint.Problem

	for _, put := range a.PUTs {
		files, err := put.Files()
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			reported, err := a.checkFileConflicts(ctx, put, f)
			if err != nil {
				return nil, err
			}
			problems = append(problems, reported...)
		}
	}

	return dedupeSortProblems(problems), nil
}

// checkFileConflicts examines every other owner of f.Path and returns at
// most one Problem: the first candidate that is genuinely conflicting (the
// remaining candidates for this (put, f) are not examined, per spec.md
// §4.4.3's short-circuit rule).
func (a *Analyzer) checkFileConflicts(ctx context.Context, put *deplint.Package, f deplint.FileEntry) ([]deplint.Problem, error) {
	candidates := a.Pool.PackagesProvidingFile(f.Path, put)
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].NEVRA() < candidates[j].NEVRA() })

	for _, cand := range candidates {
		_, soloPutProblems := a.Pool.Solve([]deplint.Job{solver.InstallJob(put)})
		_, soloCandProblems := a.Pool.Solve([]deplint.Job{solver.InstallJob(cand)})
		if len(soloPutProblems) > 0 || len(soloCandProblems) > 0 {
			zlog.Warn(ctx).Msg("pre-existing dependency problem comparing " + put.NEVRA() + " and " + cand.NEVRA())
			continue
		}

		if solver.ExplicitlyConflict(put, cand) {
			continue
		}

		candFile, err := a.fileEntryFor(ctx, cand, f.Path)
		if err != nil {
			return nil, err
		}
		if candFile == nil {
			continue
		}

		if f.Equal(*candFile) {
			continue
		}
		if f.Color != candFile.Color && f.Color != 0 && candFile.Color != 0 {
			continue
		}

		return []deplint.Problem{deplint.Problem(
			fmt.Sprintf("%s provides %s which is also provided by %s", put.NEVRA(), f.Path, cand.NEVRA()))}, nil
	}
	return nil, nil
}

// fileEntryFor returns cand's FileEntry at path, fetching cand's RPM bytes
// if cand is a repo package whose filelists-derived FileEntry lacks
// mode/owner/group/digest.
func (a *Analyzer) fileEntryFor(ctx context.Context, cand *deplint.Package, path string) (*deplint.FileEntry, error) {
	if cand.IsPUT() {
		return lookupFile(cand, path)
	}

	localPath, cleanup, err := a.Fetcher.Fetch(ctx, cand)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	entries, err := rpminspect.FileEntries(localPath)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Path == path {
			return &e, nil
		}
	}
	return nil, nil
}

func lookupFile(pkg *deplint.Package, path string) (*deplint.FileEntry, error) {
	files, err := pkg.Files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		if f.Path == path {
			return &f, nil
		}
	}
	return nil, nil
}

func dedupeSortProblems(probs []deplint.Problem) []deplint.Problem {
	seen := make(map[deplint.Problem]struct{}, len(probs))
	out := make([]deplint.Problem, 0, len(probs))
	for _, p := range probs {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
