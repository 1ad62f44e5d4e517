package analyzer

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/default-to-open/rpmdeplint/internal/cache"
	"github.com/default-to-open/rpmdeplint/internal/repodata"

	deplint "github.com/default-to-open/rpmdeplint"
)

// Fetcher resolves a repo package's actual bytes onto local disk for
// conflict comparison (spec.md §4.4.3: "the analyzer must have the
// candidate RPM's bytes"). PUTs never need fetching, since they are
// already local paths.
type Fetcher struct {
	Cache     *cache.Cache
	Loader    *repodata.Loader
	RepoBases map[string]string // repo name -> baseurl/resolved local dir
}

// NewFetcher builds a Fetcher sharing c for package-byte caching (the same
// content-addressed store RepoCache uses for repodata, generalized here to
// package payloads — see DESIGN.md).
func NewFetcher(c *cache.Cache, loader *repodata.Loader, repoBases map[string]string) *Fetcher {
	return &Fetcher{Cache: c, Loader: loader, RepoBases: repoBases}
}

// Fetch returns a local filesystem path holding pkg's RPM bytes, plus a
// cleanup func to release any scratch file. For a PUT, this is simply its
// original path with a no-op cleanup.
func (f *Fetcher) Fetch(ctx context.Context, pkg *deplint.Package) (path string, cleanup func(), err error) {
	if pkg.IsPUT() {
		return pkg.Source.Path, func() {}, nil
	}

	checksum := pkg.Source.Checksum.Hex
	if rc, hit, err := f.Cache.Lookup(ctx, checksum); err == nil && hit {
		defer rc.Close()
		return writeScratch(rc)
	}

	base := f.RepoBases[pkg.Source.Repo]
	loc := repodata.PackageLocation(base, pkg.Source.XMLBase, pkg.Source.Location)
	rc, err := f.Loader.FetchPackage(ctx, loc)
	if err != nil {
		return "", nil, &deplint.PackageDownloadError{NEVRA: pkg.NEVRA(), Reason: err}
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return "", nil, &deplint.PackageDownloadError{NEVRA: pkg.NEVRA(), Reason: err}
	}
	if checksum != "" {
		sum := sha256.Sum256(buf)
		if hex.EncodeToString(sum[:]) != checksum && pkg.Source.Checksum.Type == "sha256" {
			return "", nil, &deplint.PackageDownloadError{
				NEVRA: pkg.NEVRA(), Reason: fmt.Errorf("checksum mismatch for %s", loc)}
		}
	}
	if checksum != "" {
		if err := f.Cache.Insert(ctx, checksum, bytes.NewReader(buf)); err != nil {
			// Non-fatal: the analysis can proceed without a warm cache.
			_ = err
		}
	}

	tmp, err := os.CreateTemp("", "rpmdeplint-pkg-*.rpm")
	if err != nil {
		return "", nil, &deplint.PackageDownloadError{NEVRA: pkg.NEVRA(), Reason: err}
	}
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, &deplint.PackageDownloadError{NEVRA: pkg.NEVRA(), Reason: err}
	}
	tmp.Close()
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func writeScratch(r io.Reader) (string, func(), error) {
	tmp, err := os.CreateTemp("", "rpmdeplint-pkg-*.rpm")
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, err
	}
	tmp.Close()
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

