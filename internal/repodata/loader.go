package repodata

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/quay/zlog"

	"github.com/default-to-open/rpmdeplint/internal/cache"
)

// Repo is a logical repository descriptor: a name plus exactly one of
// baseurl/metalink/mirrorlist (see spec.md §9: mirrorlist is treated as
// metalink-equivalent here).
type Repo struct {
	Name              string
	BaseURL           string
	Metalink          string
	Mirrorlist        string
	SkipIfUnavailable bool
}

// Repr renders a short, stable description of the repo for error messages.
func (r Repo) Repr() string {
	url := r.BaseURL
	if url == "" {
		url = r.Metalink
	}
	if url == "" {
		url = r.Mirrorlist
	}
	return fmt.Sprintf("%s (%s)", r.Name, url)
}

// Loader resolves a Repo's repomd.xml and its primary/filelists streams,
// using cache for anything fetched over HTTP.
type Loader struct {
	Cache  *cache.Cache
	Client *http.Client
}

// NewLoader builds a Loader backed by c, using http.DefaultClient.
func NewLoader(c *cache.Cache) *Loader {
	return &Loader{Cache: c, Client: http.DefaultClient}
}

// Loaded is the result of resolving one Repo: open primary and filelists
// streams (already gzip-decompressed), plus the xml:base-aware package
// locator needed later for conflict-checking downloads.
type Loaded struct {
	Repo      Repo
	Base      string // resolved base (metalink/mirrorlist already followed)
	Primary   io.ReadCloser
	Filelists io.ReadCloser
}

// Load resolves repo's repomd.xml (locally or by download), fetches its
// primary and filelists data through the cache by checksum, and returns
// open, decompressed streams positioned at offset 0.
//
// On any transport/read failure, Load returns an error satisfying RepoError
// and wrapping the cause, unless repo.SkipIfUnavailable is set, in which case it
// returns (nil, false, nil) — signaling "drop this repo with a warning" —
// instead of an error.
func (l *Loader) Load(ctx context.Context, repo Repo) (*Loaded, bool, error) {
	const op = "internal/repodata/Loader.Load"
	ctx = zlog.ContextWithValues(ctx, "component", op, "repo", repo.Name)

	if err := l.Cache.Sweep(ctx); err != nil {
		zlog.Warn(ctx).Err(err).Msg("cache sweep failed, continuing")
	}

	md, base, err := l.loadRepomd(ctx, repo)
	if err != nil {
		if repo.SkipIfUnavailable {
			zlog.Warn(ctx).Err(err).Msg("repo unavailable, skipping per skip_if_unavailable")
			return nil, false, nil
		}
		return nil, false, err
	}

	primary, err := l.openData(ctx, repo, base, md, "primary")
	if err != nil {
		if repo.SkipIfUnavailable {
			zlog.Warn(ctx).Err(err).Msg("repo unavailable, skipping per skip_if_unavailable")
			return nil, false, nil
		}
		return nil, false, err
	}
	filelists, err := l.openData(ctx, repo, base, md, "filelists")
	if err != nil {
		primary.Close()
		if repo.SkipIfUnavailable {
			zlog.Warn(ctx).Err(err).Msg("repo unavailable, skipping per skip_if_unavailable")
			return nil, false, nil
		}
		return nil, false, err
	}

	return &Loaded{Repo: repo, Base: base, Primary: primary, Filelists: filelists}, true, nil
}

// loadRepomd returns the parsed repomd.xml and the effective base URL
// (directory containing "repodata/") to resolve "location href" values
// against.
func (l *Loader) loadRepomd(ctx context.Context, repo Repo) (repomd, string, error) {
	base := repo.BaseURL
	if isLocalDir(base) {
		f, err := os.Open(filepath.Join(base, "repodata", "repomd.xml"))
		if err != nil {
			return repomd{}, "", &repoDownloadError{repo: repo, reason: err}
		}
		defer f.Close()
		var md repomd
		if err := xml.NewDecoder(f).Decode(&md); err != nil {
			return repomd{}, "", &repoDownloadError{repo: repo, reason: fmt.Errorf("parsing repomd.xml: %w", err)}
		}
		return md, base, nil
	}

	resolvedBase, err := l.resolveRemoteBase(ctx, repo)
	if err != nil {
		return repomd{}, "", &repoDownloadError{repo: repo, reason: err}
	}

	resp, err := l.get(ctx, resolvedBase+"/repodata/repomd.xml")
	if err != nil {
		return repomd{}, "", &repoDownloadError{repo: repo, reason: err}
	}
	defer resp.Body.Close()

	var md repomd
	if err := xml.NewDecoder(resp.Body).Decode(&md); err != nil {
		return repomd{}, "", &repoDownloadError{repo: repo, reason: fmt.Errorf("parsing repomd.xml: %w", err)}
	}
	return md, resolvedBase, nil
}

// resolveRemoteBase resolves repo.BaseURL directly, or (for
// metalink/mirrorlist) fetches the metalink document and picks its first
// usable resource URL, per spec.md §9.
func (l *Loader) resolveRemoteBase(ctx context.Context, repo Repo) (string, error) {
	if repo.BaseURL != "" {
		return strings.TrimSuffix(repo.BaseURL, "/"), nil
	}
	metaURL := repo.Metalink
	if metaURL == "" {
		metaURL = repo.Mirrorlist
	}
	if metaURL == "" {
		return "", fmt.Errorf("repo %q has no baseurl, metalink, or mirrorlist", repo.Name)
	}

	resp, err := l.get(ctx, metaURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var doc metalinkDoc
	if err := xml.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("parsing metalink document: %w", err)
	}
	for _, f := range doc.Files {
		for _, u := range f.Resources {
			base := strings.TrimSuffix(u.URL, "/repodata/repomd.xml")
			base = strings.TrimSuffix(base, "/"+f.Name)
			if base != "" {
				return base, nil
			}
		}
	}
	return "", fmt.Errorf("metalink document for repo %q had no usable resource URL", repo.Name)
}

type metalinkDoc struct {
	Files []metalinkFile `xml:"files>file"`
}

type metalinkFile struct {
	Name      string           `xml:"name,attr"`
	Resources []metalinkResURL `xml:"resources>url"`
}

type metalinkResURL struct {
	URL string `xml:",chardata"`
}

// openData consults the cache for the checksum reported for kind ("primary"
// or "filelists"), fetching it on a miss, then returns a gzip-decompressed
// stream positioned at offset 0.
func (l *Loader) openData(ctx context.Context, repo Repo, base string, md repomd, kind string) (io.ReadCloser, error) {
	d, ok := md.find(kind)
	if !ok {
		return nil, &repoDownloadError{repo: repo, reason: fmt.Errorf("repomd.xml has no %q entry", kind)}
	}
	checksum := d.Checksum.Hex

	if rc, hit, err := l.Cache.Lookup(ctx, checksum); err != nil {
		return nil, &repoDownloadError{repo: repo, reason: err}
	} else if hit {
		gr, err := gzip.NewReader(rc)
		if err != nil {
			rc.Close()
			return nil, &repoDownloadError{repo: repo, reason: err}
		}
		return &gzipAndFile{Reader: gr, file: rc}, nil
	}

	raw, err := l.openLocation(ctx, base, d.Location.Href)
	if err != nil {
		return nil, &repoDownloadError{repo: repo, reason: err}
	}
	defer raw.Close()

	buf, err := io.ReadAll(raw)
	if err != nil {
		return nil, &repoDownloadError{repo: repo, reason: err}
	}
	if d.Checksum.Type == "sha256" {
		sum := sha256.Sum256(buf)
		if hex.EncodeToString(sum[:]) != checksum {
			return nil, &repoDownloadError{repo: repo, reason: fmt.Errorf("checksum mismatch for %s", d.Location.Href)}
		}
	}
	if err := l.Cache.Insert(ctx, checksum, strings.NewReader(string(buf))); err != nil {
		zlog.Warn(ctx).Err(err).Msg("unable to populate cache, continuing uncached")
	}

	gr, err := gzip.NewReader(strings.NewReader(string(buf)))
	if err != nil {
		return nil, &repoDownloadError{repo: repo, reason: err}
	}
	return gr, nil
}

func (l *Loader) openLocation(ctx context.Context, base, href string) (io.ReadCloser, error) {
	if isLocalDir(base) {
		return os.Open(filepath.Join(base, href))
	}
	resp, err := l.get(ctx, base+"/"+href)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchPackage opens a package's bytes at its resolved location (see
// PackageLocation), whether that location is a local path or an http(s)
// URL. Used by conflict-checking to pull a candidate repo package's RPM
// header, since only PUTs are already on local disk.
func (l *Loader) FetchPackage(ctx context.Context, location string) (io.ReadCloser, error) {
	if isLocalDir(location) {
		return os.Open(location)
	}
	resp, err := l.get(ctx, location)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (l *Loader) get(ctx context.Context, rawurl string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawurl, err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawurl, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", rawurl, resp.Status)
	}
	return resp, nil
}

// isLocalDir reports whether base names a local filesystem directory rather
// than an http(s) URL.
func isLocalDir(base string) bool {
	u, err := url.Parse(base)
	if err != nil {
		return true
	}
	switch u.Scheme {
	case "", "file":
		return true
	default:
		return false
	}
}

// PackageLocation resolves the absolute URL or filesystem path of a
// package's own file, honoring xml:base on the package's <location> when
// present, per spec.md §4.2/§6.
func PackageLocation(repoBase, xmlBase, href string) string {
	base := repoBase
	if xmlBase != "" {
		base = xmlBase
	}
	if isLocalDir(base) {
		return filepath.Join(base, href)
	}
	return strings.TrimSuffix(base, "/") + "/" + href
}

// RepoError is satisfied by any error Load returns that originates from a
// specific repo. The CLI boundary uses it to translate into
// *rpmdeplint.RepoDownloadError without this package importing the root
// package (avoiding an import cycle).
type RepoError interface {
	error
	Repo() Repo
}

// repoDownloadError is the concrete RepoError Load/openData/loadRepomd
// return.
type repoDownloadError struct {
	repo   Repo
	reason error
}

func (e *repoDownloadError) Error() string {
	return fmt.Sprintf("Failed to download repodata for %s: %s", e.repo.Repr(), e.reason)
}

func (e *repoDownloadError) Unwrap() error { return e.reason }

func (e *repoDownloadError) Repo() Repo { return e.repo }

// gzipAndFile closes both the gzip stream and the underlying cache file it
// was reading from; compress/gzip's own Close only tears down the gzip
// stream, leaving the backing file open.
type gzipAndFile struct {
	*gzip.Reader
	file io.Closer
}

func (g *gzipAndFile) Close() error {
	err := g.Reader.Close()
	if ferr := g.file.Close(); ferr != nil && err == nil {
		err = ferr
	}
	return err
}
