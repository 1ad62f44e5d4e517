package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/analyzer"
	"github.com/default-to-open/rpmdeplint/internal/cache"
	"github.com/default-to-open/rpmdeplint/internal/config"
	"github.com/default-to-open/rpmdeplint/internal/repodata"
	"github.com/default-to-open/rpmdeplint/internal/rpminspect"
	"github.com/default-to-open/rpmdeplint/internal/solver"
	"github.com/default-to-open/rpmdeplint/internal/yumconf"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

// errDefectsFound signals that one of the four checks already printed its
// diagnostic block to stderr; Execute translates it to exit code 3.
var errDefectsFound = errors.New("defects found")

// session holds everything a check subcommand needs once the PUTs are
// opened and the pool is finalized.
type session struct {
	pool     *solver.Pool
	puts     []*deplint.Package
	analyzer *analyzer.Analyzer
}

// buildSession opens every PUT path, determines the test architecture,
// loads every configured repo into a finalized SolverPool, and returns an
// Analyzer ready to run checks against it.
func buildSession(ctx context.Context, putPaths []string) (*session, error) {
	puts := make([]*deplint.Package, 0, len(putPaths))
	for _, p := range putPaths {
		pkg, err := rpminspect.Open(p)
		if err != nil {
			return nil, err
		}
		puts = append(puts, pkg)
	}

	arch, err := determineArch(puts)
	if err != nil {
		return nil, err
	}

	repoDefs, err := resolveRepoDefs()
	if err != nil {
		return nil, err
	}

	dir, err := resolveCacheDir()
	if err != nil {
		return nil, err
	}
	store := cache.New(dir, cache.ExpiryFromEnv())
	loader := repodata.NewLoader(store)

	pool := solver.NewPool(arch)
	for _, put := range puts {
		pool.Add(put)
	}

	repoBases := make(map[string]string, len(repoDefs))
	for _, def := range repoDefs {
		repo := repoFromDef(def)

		loaded, ok, err := loader.Load(ctx, repo)
		if err != nil {
			var re repodata.RepoError
			if errors.As(err, &re) {
				return nil, &deplint.RepoDownloadError{RepoRepr: re.Repo().Repr(), Reason: errors.Unwrap(err)}
			}
			return nil, &deplint.RepoDownloadError{RepoRepr: repo.Repr(), Reason: err}
		}
		if !ok {
			continue // skip_if_unavailable
		}
		repoBases[repo.Name] = loaded.Base

		pkgs, err := repodata.ParsePackages(loaded.Primary, loaded.Filelists, repo)
		loaded.Primary.Close()
		loaded.Filelists.Close()
		if err != nil {
			return nil, &deplint.RepoDownloadError{RepoRepr: repo.Repr(), Reason: err}
		}
		for _, pkg := range pkgs {
			pool.Add(pkg)
		}
	}

	if err := pool.Finalize(); err != nil {
		return nil, err
	}

	fetcher := analyzer.NewFetcher(store, loader, repoBases)
	return &session{pool: pool, puts: puts, analyzer: analyzer.New(pool, puts, fetcher)}, nil
}

func repoFromDef(d yumconf.RepoDef) repodata.Repo {
	return repodata.Repo{
		Name:              d.Name,
		BaseURL:           d.BaseURL,
		Metalink:          d.Metalink,
		Mirrorlist:        d.Mirrorlist,
		SkipIfUnavailable: d.SkipIfUnavail,
	}
}

// resolveRepoDefs merges --repo flags (each "NAME,PATH") with, if
// --repos-from-system was given, every enabled repo found in /etc/yum.conf
// and /etc/yum.repos.d/*.repo.
func resolveRepoDefs() ([]yumconf.RepoDef, error) {
	defs := make([]yumconf.RepoDef, 0, len(flags.repos))
	for _, r := range flags.repos {
		name, path, ok := strings.Cut(r, ",")
		if !ok {
			return nil, &deplint.UsageError{Msg: fmt.Sprintf("invalid --repo value %q: expected NAME,PATH", r)}
		}
		defs = append(defs, yumconf.RepoDef{Name: name, BaseURL: path})
	}

	if flags.reposFromSystem {
		sysDefs, err := yumconf.Load("/etc/yum.conf", "/etc/yum.repos.d")
		if err != nil {
			return nil, err
		}
		defs = append(defs, sysDefs...)
	}

	return defs, nil
}

func resolveCacheDir() (string, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return "", err
	}
	if cfg.Cache.Dir != "" {
		return cfg.Cache.Dir, nil
	}
	return cache.Root()
}

// determineArch implements spec.md §6's arch-determination rule: an
// explicit --arch wins outright, then a defaults.arch value from the
// config layer; otherwise every PUT's architecture is mapped through the
// canonical arch table and the (single) resulting family becomes the
// pool's test architecture.
func determineArch(puts []*deplint.Package) (string, error) {
	if flags.arch != "" {
		return flags.arch, nil
	}
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return "", err
	}
	if cfg.Defaults.Arch != "" {
		return cfg.Defaults.Arch, nil
	}

	families := make(map[string]struct{})
	for _, p := range puts {
		if p.Arch == rpmver.Noarch {
			continue
		}
		canon, _ := rpmver.CanonicalArch(p.Arch)
		families[canon] = struct{}{}
	}

	switch len(families) {
	case 0:
		return "", &deplint.UsageError{Msg: "no --arch given and every PUT is noarch"}
	case 1:
		for f := range families {
			return f, nil
		}
	}

	names := make([]string, 0, len(families))
	for f := range families {
		names = append(names, f)
	}
	sort.Strings(names)
	return "", &deplint.UsageError{
		Msg: fmt.Sprintf("PUTs have incompatible architectures: %s", strings.Join(names, ", ")),
	}
}

// printBlock renders one of spec.md §6's exact diagnostic blocks: a header
// line followed by one problem per line.
func printBlock(w io.Writer, header string, problems []deplint.Problem) {
	fmt.Fprintf(w, "%s\n", header)
	for _, p := range problems {
		fmt.Fprintf(w, "%s\n", p)
	}
}
