// Package rpmdeplint reports dependency, closure, conflict, and upgrade
// defects in a set of candidate RPM packages against one or more existing
// package repositories.
package rpmdeplint

import (
	"sort"
	"strconv"
	"sync"

	"github.com/default-to-open/rpmdeplint/rpmver"
)

// CommandlineRepo is the synthetic repository identifier used for packages
// under test (PUTs) supplied on the command line.
const CommandlineRepo = "@commandline"

// SourceKind distinguishes a PUT from a package originating in a real repo.
type SourceKind int

const (
	SourceCommandline SourceKind = iota
	SourceRepo
)

// Source is the tagged variant describing where a Package's bytes come
// from: a local filesystem path (PUT) or a location within a loaded repo.
// analyzer.Fetcher.Fetch resolves either kind to a local RPM file path,
// instead of the Package having two incompatible constructors.
type Source struct {
	Kind SourceKind

	// Path is the absolute filesystem path, set only when Kind ==
	// SourceCommandline.
	Path string

	// Repo, Location, XMLBase, and Checksum are set only when Kind ==
	// SourceRepo.
	Repo     string
	Location string
	XMLBase  string
	Checksum Checksum
}

// Checksum is a repodata-reported content digest.
type Checksum struct {
	Type string // e.g. "sha256"
	Hex  string
}

// RepoName returns the originating repo identifier: the repo's own name, or
// [CommandlineRepo] for a PUT.
func (s Source) RepoName() string {
	if s.Kind == SourceCommandline {
		return CommandlineRepo
	}
	return s.Repo
}

// Dependency is a (name, flags, evr?) relation, as found in a Requires,
// Provides, Obsoletes, or Conflicts vector.
type Dependency struct {
	Name  string
	Flags rpmver.Flags
	EVR   *rpmver.Version
}

// String renders the dependency the way RPM tooling conventionally does,
// e.g. "libfoo.so.4" or "foolib < 5.0-1".
func (d Dependency) String() string {
	if d.Flags == rpmver.FlagAny || d.EVR == nil {
		return d.Name
	}
	return d.Name + " " + d.Flags.String() + " " + d.EVR.EVR()
}

// FileEntry is one file owned by a Package, as reported by an RPM header's
// file table.
type FileEntry struct {
	Path   string
	Mode   uint32 // stat(2)-style mode bits, including the file-type bits
	Owner  string
	Group  string
	Digest string
	// Color is 0 (unspecified), 1 (32-bit ELF), or 2 (64-bit ELF).
	Color int
}

// Equal reports whether two FileEntrys would be considered the same file by
// RPM: matching mode, owner, group, and content digest. Color is
// deliberately excluded, as it only governs multilib coexistence, not
// content identity.
func (f FileEntry) Equal(o FileEntry) bool {
	return f.Mode == o.Mode && f.Owner == o.Owner && f.Group == o.Group && f.Digest == o.Digest
}

// FileLister lazily produces a Package's file list, as file metadata is
// comparatively expensive to extract (it requires either the filelists
// repodata stream or opening the RPM header itself).
type FileLister func() ([]FileEntry, error)

// Package is an immutable (after construction) description of one RPM,
// either a repo package discovered via repodata or a PUT supplied on the
// command line.
type Package struct {
	Name    string
	Epoch   int
	Version string
	Release string
	Arch    string

	Source Source

	Requires  []Dependency
	Provides  []Dependency
	Obsoletes []Dependency
	Conflicts []Dependency

	listFiles FileLister
	filesOnce sync.Once
	files     []FileEntry
	filesErr  error
}

// NewPackage constructs a Package, binding the (typically lazy) file
// lister. listFiles may be nil for packages whose files are never
// inspected.
func NewPackage(name string, epoch int, version, release, arch string, src Source, listFiles FileLister) *Package {
	return &Package{
		Name:      name,
		Epoch:     epoch,
		Version:   version,
		Release:   release,
		Arch:      arch,
		Source:    src,
		listFiles: listFiles,
	}
}

// EVRA returns the (Name, Architecture)-annotated rpmver.Version for p,
// suitable for comparison and formatting.
func (p *Package) EVRA() rpmver.Version {
	return rpmver.Version{
		Name:         &p.Name,
		Architecture: &p.Arch,
		Epoch:        strconv.Itoa(p.Epoch),
		Version:      p.Version,
		Release:      p.Release,
	}
}

// NEVRA renders the canonical name-[epoch:]version-release.arch string.
func (p *Package) NEVRA() string {
	v := p.EVRA()
	return v.String()
}

// String implements [fmt.Stringer].
func (p *Package) String() string { return p.NEVRA() }

// RepoName returns the package's originating repo id, or [CommandlineRepo]
// for a PUT.
func (p *Package) RepoName() string { return p.Source.RepoName() }

// IsPUT reports whether p is a package under test (a command-line
// argument), as opposed to one discovered in a loaded repo.
func (p *Package) IsPUT() bool { return p.Source.Kind == SourceCommandline }

// Files returns the package's file list, loading it on first access. The
// result is memoized; subsequent calls are free.
func (p *Package) Files() ([]FileEntry, error) {
	p.filesOnce.Do(func() {
		if p.listFiles == nil {
			return
		}
		p.files, p.filesErr = p.listFiles()
	})
	return p.files, p.filesErr
}

// ProvidesMatch reports whether any of p's Provides (or its NEVRA itself,
// which is always an implicit self-Provide) satisfies the given relation.
func (p *Package) ProvidesMatch(name string, flags rpmver.Flags, evr *rpmver.Version) bool {
	if name == p.Name {
		// Compare EVR only: evr (the dependency side) carries no Name or
		// Architecture, and rpmver.Compare orders by Name pointer before
		// looking at any version digit, so comparing against p.EVRA()
		// directly would decide a versioned self-provide by the Name
		// mismatch instead of the version.
		self := rpmver.Version{Epoch: strconv.Itoa(p.Epoch), Version: p.Version, Release: p.Release}
		if rpmver.Satisfies(flags, evr, &self) {
			return true
		}
	}
	for _, prov := range p.Provides {
		if prov.Name != name {
			continue
		}
		if flags == rpmver.FlagAny || prov.Flags == rpmver.FlagAny {
			return true
		}
		if prov.EVR == nil {
			continue
		}
		if rpmver.Satisfies(flags, evr, prov.EVR) {
			return true
		}
	}
	return false
}

// Problem is a diagnostic string in the stable format emitted by the
// dependency engine, e.g. "nothing provides X needed by Y". The string form
// is part of the externally observed contract: callers and tests match on
// it verbatim.
type Problem string

// JobAction is the action requested by a [Job].
type JobAction int

const (
	JobInstall JobAction = iota
	JobErase
	JobUpdate
	JobMultiversion
)

// Job is a solver request: apply Action to whatever the Selector resolves
// to.
type Job struct {
	Selector Selector
	Action   JobAction
}

// SelectorKind distinguishes the ways a Job's target set may be specified.
type SelectorKind int

const (
	// SelectByPackage selects exactly one known *Package.
	SelectByPackage SelectorKind = iota
	// SelectByName selects every known package with a matching Name.
	SelectByName
	// SelectByProvides selects every known package providing Name
	// (optionally constrained by Flags/EVR).
	SelectByProvides
)

// Selector names the target set of a [Job].
type Selector struct {
	Kind     SelectorKind
	Package  *Package
	Name     string
	Flags    rpmver.Flags
	EVR      *rpmver.Version
}

// sortedStrings returns a sorted copy of the given string set's keys.
func sortedStrings(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
