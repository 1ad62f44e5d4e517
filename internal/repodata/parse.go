package repodata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/default-to-open/rpmdeplint/rpmver"

	deplint "github.com/default-to-open/rpmdeplint"
)

// ParsePackages decodes primary.xml and filelists.xml streams into
// Packages attributed to repo, joining each package's file list by pkgid:
// the filelists <package pkgid="..."> attribute is matched against the
// primary <checksum> value of the same package.
func ParsePackages(primary, filelists io.Reader, repo Repo) ([]*deplint.Package, error) {
	var pmd primaryMetadata
	if err := xml.NewDecoder(primary).Decode(&pmd); err != nil {
		return nil, fmt.Errorf("internal/repodata: parsing primary.xml: %w", err)
	}
	var fmd filelistsMetadata
	if err := xml.NewDecoder(filelists).Decode(&fmd); err != nil {
		return nil, fmt.Errorf("internal/repodata: parsing filelists.xml: %w", err)
	}

	files := make(map[string][]filelistFile, len(fmd.Packages))
	for _, p := range fmd.Packages {
		files[p.PkgID] = p.Files
	}

	out := make([]*deplint.Package, 0, len(pmd.Packages))
	for _, p := range pmd.Packages {
		epoch := 0
		if p.Version.Epoch != "" {
			e, err := strconv.Atoi(p.Version.Epoch)
			if err == nil {
				epoch = e
			}
		}

		src := deplint.Source{
			Kind:     deplint.SourceRepo,
			Repo:     repo.Name,
			Location: p.Location.Href,
			XMLBase:  p.Location.XMLBase,
			Checksum: deplint.Checksum{Type: p.Checksum.Type, Hex: p.Checksum.Hex},
		}

		pkgid := p.Checksum.Hex
		pkg := deplint.NewPackage(p.Name, epoch, p.Version.Version, p.Version.Release, p.Arch, src,
			fileListerFor(files[pkgid]))

		pkg.Requires = convertEntries(p.Format.Requires)
		pkg.Provides = convertEntries(p.Format.Provides)
		pkg.Obsoletes = convertEntries(p.Format.Obsoletes)
		pkg.Conflicts = convertEntries(p.Format.Conflicts)

		out = append(out, pkg)
	}
	return out, nil
}

func fileListerFor(files []filelistFile) deplint.FileLister {
	if len(files) == 0 {
		return nil
	}
	return func() ([]deplint.FileEntry, error) {
		out := make([]deplint.FileEntry, 0, len(files))
		for _, f := range files {
			if f.Type == "dir" {
				continue
			}
			// Repodata filelists carry paths only; mode/owner/group/digest
			// and color require the RPM header itself (internal/rpminspect),
			// fetched lazily only when a conflict candidate needs byte-level
			// comparison (spec.md §4.4.3).
			out = append(out, deplint.FileEntry{Path: f.Path})
		}
		return out, nil
	}
}

func convertEntries(es []primaryEntry) []deplint.Dependency {
	if len(es) == 0 {
		return nil
	}
	out := make([]deplint.Dependency, 0, len(es))
	for _, e := range es {
		d := deplint.Dependency{Name: e.Name, Flags: flagsFromString(e.Flags)}
		if d.Flags != rpmver.FlagAny {
			evr := rpmver.Version{Epoch: "0", Version: e.Version, Release: e.Release}
			if e.Epoch != "" {
				evr.Epoch = e.Epoch
			}
			d.EVR = &evr
		}
		out = append(out, d)
	}
	return out
}

func flagsFromString(s string) rpmver.Flags {
	switch s {
	case "EQ":
		return rpmver.FlagEQ
	case "LT":
		return rpmver.FlagLT
	case "LE":
		return rpmver.FlagLE
	case "GT":
		return rpmver.FlagGT
	case "GE":
		return rpmver.FlagGE
	default:
		return rpmver.FlagAny
	}
}
