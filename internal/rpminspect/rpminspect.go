// Package rpminspect implements RpmFileInspector: opening an on-disk RPM
// (a package under test, supplied on the command line) and adapting its
// header into this module's Package/FileEntry shapes.
package rpminspect

import (
	"strings"

	rpm "github.com/cavaliercoder/go-rpm"

	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

// RPM header dependency sense bits, per rpm's rpmtag.h; go-rpm's
// Dependency.Flags() is the raw header value, so these are matched
// against it directly rather than assuming named constants from the
// library.
const (
	senseLess    = 1 << 1
	senseGreater = 1 << 2
	senseEqual   = 1 << 3
)

// FileEntries reads the RPM at path and returns its file table, for
// comparing a downloaded repo candidate's files against a PUT's during
// conflict checking. path is a scratch file, not necessarily the package's
// final repo location.
func FileEntries(path string) ([]deplint.FileEntry, error) {
	pf, err := rpm.OpenPackageFile(path)
	if err != nil {
		return nil, &deplint.UnreadablePackageError{Path: path, Err: err}
	}
	lister := fileListerFromHeader(pf, pf.Architecture())
	return lister()
}

// Open reads the RPM at path and adapts it into a *deplint.Package whose
// Source is a commandline PUT. The returned error, when non-nil, is always
// a *deplint.UnreadablePackageError.
func Open(path string) (*deplint.Package, error) {
	pf, err := rpm.OpenPackageFile(path)
	if err != nil {
		return nil, &deplint.UnreadablePackageError{Path: path, Err: err}
	}
	return packageFromHeader(pf, path), nil
}

func packageFromHeader(pf *rpm.PackageFile, path string) *deplint.Package {
	src := deplint.Source{Kind: deplint.SourceCommandline, Path: path}
	arch := pf.Architecture()

	pkg := deplint.NewPackage(pf.Name(), pf.Epoch(), pf.Version(), pf.Release(), arch, src,
		fileListerFromHeader(pf, arch))

	pkg.Requires = dependenciesFrom(pf.Requires())
	pkg.Provides = dependenciesFrom(pf.Provides())
	pkg.Obsoletes = dependenciesFrom(pf.Obsoletes())
	pkg.Conflicts = dependenciesFrom(pf.Conflicts())
	return pkg
}

func dependenciesFrom(deps []rpm.Dependency) []deplint.Dependency {
	if len(deps) == 0 {
		return nil
	}
	out := make([]deplint.Dependency, 0, len(deps))
	for _, d := range deps {
		out = append(out, dependencyFrom(d))
	}
	return out
}

func dependencyFrom(d rpm.Dependency) deplint.Dependency {
	dep := deplint.Dependency{Name: d.Name(), Flags: flagsFromSense(int(d.Flags()))}
	if dep.Flags == rpmver.FlagAny {
		return dep
	}
	if evr, ok := parseEVR(d.Version()); ok {
		dep.EVR = &evr
	} else {
		// A dependency whose version string doesn't parse as an EVR is
		// treated as unversioned rather than discarded.
		dep.Flags = rpmver.FlagAny
	}
	return dep
}

// parseEVR parses the bare "[epoch:]version[-release]" string go-rpm
// reports for a Dependency's Version(), which (unlike a package's own
// NEVRA) carries no name and may omit the release entirely.
func parseEVR(s string) (rpmver.Version, bool) {
	if s == "" {
		return rpmver.Version{}, false
	}
	v := rpmver.Version{Epoch: "0"}
	rest := s
	if e, after, ok := strings.Cut(rest, ":"); ok {
		v.Epoch = e
		rest = after
	}
	if ver, rel, ok := strings.Cut(rest, "-"); ok {
		v.Version, v.Release = ver, rel
	} else {
		v.Version = rest
	}
	if v.Version == "" {
		return rpmver.Version{}, false
	}
	return v, true
}

func flagsFromSense(sense int) rpmver.Flags {
	lt := sense&senseLess != 0
	gt := sense&senseGreater != 0
	eq := sense&senseEqual != 0
	switch {
	case lt && eq:
		return rpmver.FlagLE
	case gt && eq:
		return rpmver.FlagGE
	case lt:
		return rpmver.FlagLT
	case gt:
		return rpmver.FlagGT
	case eq:
		return rpmver.FlagEQ
	default:
		return rpmver.FlagAny
	}
}

// fileListerFromHeader returns a deplint.FileLister that adapts go-rpm's
// per-file header entries, approximating file color (spec.md §9 Open
// Question: go-rpm does not expose RPM's FILECOLORS tag) from the
// package's declared architecture and each path's lib/lib64 segment.
func fileListerFromHeader(pf *rpm.PackageFile, arch string) deplint.FileLister {
	return func() ([]deplint.FileEntry, error) {
		files := pf.Files()
		out := make([]deplint.FileEntry, 0, len(files))
		for _, f := range files {
			if !f.Mode().IsRegular() {
				continue
			}
			out = append(out, deplint.FileEntry{
				Path:   f.Name(),
				Mode:   uint32(f.Mode()),
				Owner:  f.Owner(),
				Group:  f.Group(),
				Digest: f.Digest(),
				Color:  approximateColor(arch, f.Name()),
			})
		}
		return out, nil
	}
}

// approximateColor guesses RPM's ELF "color" (1 = 32-bit, 2 = 64-bit) from
// architecture and path convention, since it isn't available from the
// library. noarch and any path outside a lib/lib64 segment is colorless
// (0), matching RPM's own behavior for non-ELF and architecture-agnostic
// content.
func approximateColor(arch, path string) int {
	if arch == rpmver.Noarch {
		return 0
	}
	segs := strings.Split(path, "/")
	for _, s := range segs {
		switch s {
		case "lib64":
			return 2
		case "lib":
			if is64BitArch(arch) {
				return 2
			}
			return 1
		}
	}
	return 0
}

func is64BitArch(arch string) bool {
	switch arch {
	case "x86_64", "aarch64", "ppc64", "ppc64le", "s390x", "ia64", "sparc64", "sparc64v":
		return true
	}
	return strings.Contains(arch, "64")
}
