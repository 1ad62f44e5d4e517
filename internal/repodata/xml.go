// Package repodata implements RepoLoader: parsing a repomd.xml index and
// loading its primary and filelists metadata streams into the solver pool,
// whether the repo is a local directory or fetched over HTTP(S).
package repodata

import "encoding/xml"

// repomd is the top-level repomd.xml index.
type repomd struct {
	XMLName xml.Name     `xml:"repomd"`
	Data    []repomdData `xml:"data"`
}

type repomdData struct {
	Type     string         `xml:"type,attr"`
	Checksum repomdChecksum `xml:"checksum"`
	Location repomdLocation `xml:"location"`
}

type repomdChecksum struct {
	Type string `xml:"type,attr"`
	Hex  string `xml:",chardata"`
}

type repomdLocation struct {
	Href string `xml:"href,attr"`
}

func (r repomd) find(kind string) (repomdData, bool) {
	for _, d := range r.Data {
		if d.Type == kind {
			return d, true
		}
	}
	return repomdData{}, false
}

// primaryMetadata is primary.xml: per-package NEVRA, deps, and location.
type primaryMetadata struct {
	XMLName  xml.Name         `xml:"metadata"`
	Packages []primaryPackage `xml:"package"`
}

type primaryPackage struct {
	Type     string            `xml:"type,attr"`
	Name     string            `xml:"name"`
	Arch     string            `xml:"arch"`
	Version  primaryVersion    `xml:"version"`
	Checksum primaryChecksum   `xml:"checksum"`
	Location primaryLocation   `xml:"location"`
	Format   primaryPackageFmt `xml:"format"`
}

type primaryVersion struct {
	Epoch   string `xml:"epoch,attr"`
	Version string `xml:"ver,attr"`
	Release string `xml:"rel,attr"`
}

type primaryChecksum struct {
	Type string `xml:"type,attr"`
	Hex  string `xml:",chardata"`
}

type primaryLocation struct {
	// XMLBase holds the xml:base attribute, which overrides the repo's
	// baseurl when later downloading this specific package.
	XMLBase string `xml:"base,attr"`
	Href    string `xml:"href,attr"`
}

type primaryPackageFmt struct {
	Requires  []primaryEntry `xml:"requires>entry"`
	Provides  []primaryEntry `xml:"provides>entry"`
	Obsoletes []primaryEntry `xml:"obsoletes>entry"`
	Conflicts []primaryEntry `xml:"conflicts>entry"`
}

type primaryEntry struct {
	Name    string `xml:"name,attr"`
	Flags   string `xml:"flags,attr"`
	Epoch   string `xml:"epoch,attr"`
	Version string `xml:"ver,attr"`
	Release string `xml:"rel,attr"`
}

// filelistsMetadata is filelists.xml: per-package owned file paths.
type filelistsMetadata struct {
	XMLName  xml.Name           `xml:"filelists"`
	Packages []filelistsPackage `xml:"package"`
}

type filelistsPackage struct {
	PkgID string         `xml:"pkgid,attr"`
	Name  string         `xml:"name,attr"`
	Arch  string         `xml:"arch,attr"`
	Files []filelistFile `xml:"file"`
}

type filelistFile struct {
	Type string `xml:"type,attr"`
	Path string `xml:",chardata"`
}
