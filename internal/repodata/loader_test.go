package repodata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/default-to-open/rpmdeplint/internal/cache"
)

const testPrimaryXML = `<?xml version="1.0"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="1">
  <package type="rpm">
    <name>bash</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="5.1.8" rel="1.fc35"/>
    <checksum type="sha256" pkgid="YES">deadbeef</checksum>
    <location href="Packages/bash-5.1.8-1.fc35.x86_64.rpm"/>
    <format>
      <rpm:requires xmlns:rpm="http://linux.duke.edu/metadata/rpm">
        <rpm:entry name="libc.so.6" flags="GE" ver="2.17"/>
      </rpm:requires>
      <rpm:provides xmlns:rpm="http://linux.duke.edu/metadata/rpm">
        <rpm:entry name="bash" flags="EQ" epoch="0" ver="5.1.8" rel="1.fc35"/>
      </rpm:provides>
    </format>
  </package>
</metadata>
`

const testFilelistsXML = `<?xml version="1.0"?>
<filelists packages="1">
  <package pkgid="deadbeef" name="bash" arch="x86_64">
    <version epoch="0" ver="5.1.8" rel="1.fc35"/>
    <file>/usr/bin/bash</file>
    <file type="dir">/usr/bin</file>
  </package>
</filelists>
`

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte(s)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// buildLocalRepo writes a minimal repomd.xml plus gzipped primary/filelists
// under dir/repodata, returning the checksums used so callers can assert
// on cache population.
func buildLocalRepo(t *testing.T, dir string) (primarySum, filelistsSum string) {
	t.Helper()
	repodataDir := filepath.Join(dir, "repodata")
	if err := os.MkdirAll(repodataDir, 0o755); err != nil {
		t.Fatal(err)
	}

	primaryGz := gzipBytes(t, testPrimaryXML)
	filelistsGz := gzipBytes(t, testFilelistsXML)
	primarySum = sha256Hex(primaryGz)
	filelistsSum = sha256Hex(filelistsGz)

	if err := os.WriteFile(filepath.Join(repodataDir, "primary.xml.gz"), primaryGz, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(repodataDir, "filelists.xml.gz"), filelistsGz, 0o644); err != nil {
		t.Fatal(err)
	}

	repomdXML := `<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <data type="primary">
    <checksum type="sha256">` + primarySum + `</checksum>
    <location href="repodata/primary.xml.gz"/>
  </data>
  <data type="filelists">
    <checksum type="sha256">` + filelistsSum + `</checksum>
    <location href="repodata/filelists.xml.gz"/>
  </data>
</repomd>
`
	if err := os.WriteFile(filepath.Join(repodataDir, "repomd.xml"), []byte(repomdXML), 0o644); err != nil {
		t.Fatal(err)
	}
	return primarySum, filelistsSum
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	c := cache.New(t.TempDir(), cache.DefaultExpiry)
	return NewLoader(c)
}

func TestLoadLocalDirectory(t *testing.T) {
	dir := t.TempDir()
	primarySum, filelistsSum := buildLocalRepo(t, dir)
	l := newTestLoader(t)

	repo := Repo{Name: "local", BaseURL: dir}
	loaded, ok, err := l.Load(context.Background(), repo)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected repo to load")
	}
	defer loaded.Primary.Close()
	defer loaded.Filelists.Close()

	gotPrimary, err := io.ReadAll(loaded.Primary)
	if err != nil {
		t.Fatal(err)
	}
	if string(gotPrimary) != testPrimaryXML {
		t.Errorf("primary.xml mismatch:\ngot:  %s\nwant: %s", gotPrimary, testPrimaryXML)
	}
	gotFilelists, err := io.ReadAll(loaded.Filelists)
	if err != nil {
		t.Fatal(err)
	}
	if string(gotFilelists) != testFilelistsXML {
		t.Errorf("filelists.xml mismatch:\ngot:  %s\nwant: %s", gotFilelists, testFilelistsXML)
	}

	// The cache should now be populated by checksum, and a second load
	// should hit it instead of re-reading the directory.
	if _, hit, err := l.Cache.Lookup(context.Background(), primarySum); err != nil || !hit {
		t.Errorf("expected primary checksum %s to be cached, hit=%v err=%v", primarySum, hit, err)
	}
	if _, hit, err := l.Cache.Lookup(context.Background(), filelistsSum); err != nil || !hit {
		t.Errorf("expected filelists checksum %s to be cached, hit=%v err=%v", filelistsSum, hit, err)
	}

	loaded2, ok, err := l.Load(context.Background(), repo)
	if err != nil || !ok {
		t.Fatalf("second load failed: ok=%v err=%v", ok, err)
	}
	defer loaded2.Primary.Close()
	defer loaded2.Filelists.Close()
	got2, err := io.ReadAll(loaded2.Primary)
	if err != nil {
		t.Fatal(err)
	}
	if string(got2) != testPrimaryXML {
		t.Errorf("cached primary.xml mismatch:\ngot:  %s\nwant: %s", got2, testPrimaryXML)
	}
}

func TestLoadParsesIntoPackages(t *testing.T) {
	dir := t.TempDir()
	buildLocalRepo(t, dir)
	l := newTestLoader(t)
	repo := Repo{Name: "local", BaseURL: dir}

	loaded, ok, err := l.Load(context.Background(), repo)
	if err != nil || !ok {
		t.Fatalf("load failed: ok=%v err=%v", ok, err)
	}
	defer loaded.Primary.Close()
	defer loaded.Filelists.Close()

	pkgs, err := ParsePackages(loaded.Primary, loaded.Filelists, repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 1 {
		t.Fatalf("expected 1 package, got %d", len(pkgs))
	}
	p := pkgs[0]
	if p.Name != "bash" || p.Version != "5.1.8" || p.Release != "1.fc35" || p.Arch != "x86_64" {
		t.Errorf("unexpected package: %+v", p)
	}
	if len(p.Requires) != 1 || p.Requires[0].Name != "libc.so.6" {
		t.Errorf("unexpected requires: %+v", p.Requires)
	}
	files, err := p.Files()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Path != "/usr/bin/bash" {
		t.Errorf("expected single file /usr/bin/bash, got %+v", files)
	}
}

func TestLoadSkipIfUnavailable(t *testing.T) {
	l := newTestLoader(t)
	repo := Repo{Name: "missing", BaseURL: filepath.Join(t.TempDir(), "does-not-exist"), SkipIfUnavailable: true}

	loaded, ok, err := l.Load(context.Background(), repo)
	if err != nil {
		t.Fatalf("expected no error with SkipIfUnavailable, got %v", err)
	}
	if ok || loaded != nil {
		t.Fatalf("expected (nil, false) when skipping unavailable repo, got (%v, %v)", loaded, ok)
	}
}

func TestLoadUnavailableWithoutSkipIsError(t *testing.T) {
	l := newTestLoader(t)
	repo := Repo{Name: "missing", BaseURL: filepath.Join(t.TempDir(), "does-not-exist")}

	_, ok, err := l.Load(context.Background(), repo)
	if err == nil {
		t.Fatal("expected an error when repo is unavailable and SkipIfUnavailable is false")
	}
	if ok {
		t.Fatal("expected ok=false on error")
	}
}

func TestPackageLocationHonorsXMLBase(t *testing.T) {
	got := PackageLocation("http://example.test/repo", "http://mirror.test/alt", "Packages/foo.rpm")
	want := "http://mirror.test/alt/Packages/foo.rpm"
	if got != want {
		t.Errorf("PackageLocation with xml:base = %q, want %q", got, want)
	}

	got = PackageLocation("http://example.test/repo", "", "Packages/foo.rpm")
	want = "http://example.test/repo/Packages/foo.rpm"
	if got != want {
		t.Errorf("PackageLocation without xml:base = %q, want %q", got, want)
	}
}

func TestIsLocalDir(t *testing.T) {
	cases := []struct {
		base string
		want bool
	}{
		{"/srv/repo", true},
		{"", true},
		{"file:///srv/repo", true},
		{"http://example.test/repo", false},
		{"https://example.test/repo", false},
	}
	for _, c := range cases {
		if got := isLocalDir(c.base); got != c.want {
			t.Errorf("isLocalDir(%q) = %v, want %v", c.base, got, c.want)
		}
	}
}
