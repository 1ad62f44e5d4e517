package analyzer

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/internal/solver"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

func repoPkg(name, version, release, arch, repo string) *deplint.Package {
	return deplint.NewPackage(name, 0, version, release, arch,
		deplint.Source{Kind: deplint.SourceRepo, Repo: repo}, nil)
}

func putPkg(name, version, release, arch string) *deplint.Package {
	return deplint.NewPackage(name, 0, version, release, arch,
		deplint.Source{Kind: deplint.SourceCommandline, Path: "/tmp/" + name + ".rpm"}, nil)
}

func putPkgWithFiles(name, version, release, arch string, files []deplint.FileEntry) *deplint.Package {
	return deplint.NewPackage(name, 0, version, release, arch,
		deplint.Source{Kind: deplint.SourceCommandline, Path: "/tmp/" + name + ".rpm"},
		func() ([]deplint.FileEntry, error) { return files, nil })
}

func dep(name string, flags rpmver.Flags, evr *rpmver.Version) deplint.Dependency {
	return deplint.Dependency{Name: name, Flags: flags, EVR: evr}
}

func buildPool(arch string, pkgs ...*deplint.Package) *solver.Pool {
	pool := solver.NewPool(arch)
	for _, p := range pkgs {
		pool.Add(p)
	}
	if err := pool.Finalize(); err != nil {
		panic(err)
	}
	return pool
}

func TestTryToInstallAll(t *testing.T) {
	c := repoPkg("c", "0.1", "1", "i386", "base")
	c.Provides = []deplint.Dependency{dep("libfoo.so.4", rpmver.FlagAny, nil)}
	d := repoPkg("d", "0.1", "1", "i386", "base")
	d.Requires = []deplint.Dependency{dep("libfoo.so.4", rpmver.FlagAny, nil)}

	ok := putPkg("ok", "1.0", "1", "i386")
	ok.Requires = []deplint.Dependency{dep("libfoo.so.4", rpmver.FlagAny, nil)}

	broken := putPkg("broken", "1.0", "1", "i386")
	broken.Requires = []deplint.Dependency{dep("doesnotexist", rpmver.FlagAny, nil)}

	pool := buildPool("i386", c, d, ok, broken)
	a := New(pool, []*deplint.Package{ok, broken}, nil)

	allOK, set := a.TryToInstallAll()
	if allOK {
		t.Fatal("expected overall ok=false due to broken PUT")
	}
	if got := set.OverallProblems(); len(got) != 1 || got[0] != "nothing provides doesnotexist needed by broken-1.0-1.i386" {
		t.Fatalf("unexpected overall problems: %v", got)
	}
	withProblems := set.PackagesWithProblems()
	if len(withProblems) != 1 || withProblems[0] != broken {
		t.Fatalf("expected only broken in PackagesWithProblems, got %v", withProblems)
	}
}

func TestFindRepoclosureProblemsPreExistingIgnored(t *testing.T) {
	b := repoPkg("b", "0.1", "1", "i386", "base")
	b.Requires = []deplint.Dependency{dep("doesnotexist", rpmver.FlagAny, nil)}
	existingA := repoPkg("a", "0.1", "1", "i386", "base")

	putA := putPkg("a", "0.1", "1", "i386")

	pool := buildPool("i386", b, existingA, putA)
	a := New(pool, []*deplint.Package{putA}, nil)

	problems := a.FindRepoclosureProblems(context.Background())
	if len(problems) != 0 {
		t.Fatalf("expected pre-existing repoclosure problem to be ignored, got %v", problems)
	}
}

func TestFindRepoclosureProblemsObsoletingRename(t *testing.T) {
	foolib := repoPkg("foolib", "4.0", "1", "i386", "base")
	foolib.Provides = []deplint.Dependency{dep("libfoo.so.4", rpmver.FlagAny, nil)}
	b := repoPkg("b", "0.1", "1", "i386", "base")
	b.Requires = []deplint.Dependency{dep("libfoo.so.4", rpmver.FlagAny, nil)}

	evr5 := rpmver.Version{Epoch: "0", Version: "5.0", Release: "1"}
	libfoo := putPkg("libfoo", "5.0", "1", "i386")
	libfoo.Obsoletes = []deplint.Dependency{dep("foolib", rpmver.FlagLT, &evr5)}
	libfoo.Provides = []deplint.Dependency{dep("libfoo.so.5", rpmver.FlagAny, nil)}

	pool := buildPool("i386", foolib, b, libfoo)
	a := New(pool, []*deplint.Package{libfoo}, nil)

	problems := a.FindRepoclosureProblems(context.Background())
	want := []deplint.Problem{"nothing provides libfoo.so.4 needed by b-0.1-1.i386"}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Errorf("unexpected problems (-want +got):\n%s", diff)
	}
}

func TestFindUpgradeProblems(t *testing.T) {
	newA := repoPkg("a", "5.0", "1", "i386", "base")
	putA := putPkg("a", "4.0", "1", "i386")

	pool := buildPool("i386", newA, putA)
	a := New(pool, []*deplint.Package{putA}, nil)

	problems := a.FindUpgradeProblems()
	want := []deplint.Problem{"a-4.0-1.i386 would be upgraded by a-5.0-1.i386 from repo base"}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Errorf("unexpected problems (-want +got):\n%s", diff)
	}
}

func TestFindUpgradeProblemsEpochAwareNoUpgrade(t *testing.T) {
	repo := repoPkg("anaconda-user-help", "19.31.123", "1.el7", "noarch", "base")
	put := deplint.NewPackage("anaconda-user-help", 1, "7.3.2", "1.el7", "noarch",
		deplint.Source{Kind: deplint.SourceCommandline, Path: "/tmp/p.rpm"}, nil)

	pool := buildPool("noarch", repo, put)
	a := New(pool, []*deplint.Package{put}, nil)

	problems := a.FindUpgradeProblems()
	if len(problems) != 0 {
		t.Fatalf("expected no upgrade problems for higher-epoch PUT, got %v", problems)
	}
}

func TestFindConflictsReportsUndeclaredConflict(t *testing.T) {
	// Both candidates are PUTs so the comparison exercises lookupFile
	// directly, without needing a working Fetcher/cache.
	f := putPkgWithFiles("f", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Mode: 0o644, Digest: "bbb"}})
	other := putPkgWithFiles("other", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Mode: 0o644, Digest: "ccc"}})

	pool := buildPool("i386", f, other)
	a := New(pool, []*deplint.Package{f}, nil)

	problems, err := a.FindConflicts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []deplint.Problem{"f-0.1-1.i386 provides /usr/share/thing which is also provided by other-0.1-1.i386"}
	if diff := cmp.Diff(want, problems); diff != "" {
		t.Errorf("unexpected problems (-want +got):\n%s", diff)
	}
}

func TestFindConflictsPermitsIdenticalFiles(t *testing.T) {
	a := putPkgWithFiles("a", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Mode: 0o644, Owner: "root", Group: "root", Digest: "same"}})
	b := putPkgWithFiles("b", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Mode: 0o644, Owner: "root", Group: "root", Digest: "same"}})

	pool := buildPool("i386", a, b)
	an := New(pool, []*deplint.Package{a}, nil)

	problems, err := an.FindConflicts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected no conflicts for identical files, got %v", problems)
	}
}

func TestFindConflictsPermitsMultilibColorSplit(t *testing.T) {
	a := putPkgWithFiles("a", "0.1", "1", "x86_64",
		[]deplint.FileEntry{{Path: "/usr/lib/libfoo.so", Digest: "64bit", Color: 2}})
	b := putPkgWithFiles("b", "0.1", "1", "i686",
		[]deplint.FileEntry{{Path: "/usr/lib/libfoo.so", Digest: "32bit", Color: 1}})

	pool := buildPool("x86_64", a, b)
	an := New(pool, []*deplint.Package{a}, nil)

	problems, err := an.FindConflicts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected multilib color split to permit coexistence, got %v", problems)
	}
}

func TestFindConflictsSuppressedByExplicitConflicts(t *testing.T) {
	a := putPkgWithFiles("a", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Digest: "aaa"}})
	b := putPkgWithFiles("b", "0.1", "1", "i386",
		[]deplint.FileEntry{{Path: "/usr/share/thing", Digest: "bbb"}})
	a.Conflicts = []deplint.Dependency{dep("b", rpmver.FlagAny, nil)}

	pool := buildPool("i386", a, b)
	an := New(pool, []*deplint.Package{a}, nil)

	problems, err := an.FindConflicts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(problems) != 0 {
		t.Fatalf("expected explicit Conflicts to suppress the report, got %v", problems)
	}
}
