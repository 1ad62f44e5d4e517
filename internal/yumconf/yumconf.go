// Package yumconf ingests system yum/dnf configuration: /etc/yum.conf and
// /etc/yum.repos.d/*.repo, both of which are INI-shaped.
package yumconf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/ini.v1"
)

// RepoDef is one [section] of a .repo file (or of yum.conf, minus the
// "main" section) that specifies a usable repository.
type RepoDef struct {
	Name          string
	BaseURL       string
	Metalink      string
	Mirrorlist    string
	SkipIfUnavail bool
}

// URL returns the single baseurl|metalink|mirrorlist value configured for
// this repo, and which kind it is (the first non-empty of baseurl,
// metalink, mirrorlist). Load rejects a section that sets none or more than
// one of the three; mirrorlist and metalink are both treated as metalink
// equivalents (spec.md §9 Open Questions).
func (r RepoDef) URL() (url string, isMetalink bool, ok bool) {
	switch {
	case r.BaseURL != "":
		return r.BaseURL, false, true
	case r.Metalink != "":
		return r.Metalink, true, true
	case r.Mirrorlist != "":
		return r.Mirrorlist, true, true
	default:
		return "", false, false
	}
}

// substVars are the $releasever/$basearch/$arch substitutions performed on
// repo URLs, detected best-effort from the running system.
type substVars struct {
	releasever string
	basearch   string
	arch       string
}

func detectSubstVars() substVars {
	v := substVars{
		releasever: "$releasever",
		basearch:   goArchToRPMArch(runtime.GOARCH),
		arch:       goArchToRPMArch(runtime.GOARCH),
	}
	if b, err := os.ReadFile("/etc/os-release"); err == nil {
		for _, line := range strings.Split(string(b), "\n") {
			name, val, ok := strings.Cut(line, "=")
			if !ok || name != "VERSION_ID" {
				continue
			}
			v.releasever = strings.Trim(val, `"`)
		}
	}
	return v
}

func goArchToRPMArch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i386"
	default:
		return goarch
	}
}

func (v substVars) expand(s string) string {
	r := strings.NewReplacer(
		"$releasever", v.releasever,
		"$basearch", v.basearch,
		"$arch", v.arch,
	)
	return r.Replace(s)
}

// Load reads yumConfPath (typically /etc/yum.conf) and every *.repo file
// under reposDir (typically /etc/yum.repos.d), returning the union of
// enabled RepoDefs sorted by name. Sections named "main" or carrying
// enabled=0 are skipped. A missing yumConfPath or reposDir is not an error
// (a minimal or containerized system may lack either).
func Load(yumConfPath, reposDir string) ([]RepoDef, error) {
	vars := detectSubstVars()
	byName := make(map[string]RepoDef)

	if err := loadFile(yumConfPath, vars, byName); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(reposDir)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		entries = nil
	default:
		return nil, fmt.Errorf("internal/yumconf: reading %s: %w", reposDir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".repo") {
			continue
		}
		if err := loadFile(filepath.Join(reposDir, e.Name()), vars, byName); err != nil {
			return nil, err
		}
	}

	names := make([]string, 0, len(byName))
	for n := range byName {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]RepoDef, 0, len(names))
	for _, n := range names {
		out = append(out, byName[n])
	}
	return out, nil
}

func loadFile(path string, vars substVars, into map[string]RepoDef) error {
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	switch {
	case err == nil:
	case os.IsNotExist(err):
		return nil
	default:
		return fmt.Errorf("internal/yumconf: parsing %s: %w", path, err)
	}

	for _, sec := range f.Sections() {
		name := sec.Name()
		if name == ini.DefaultSection || name == "main" {
			continue
		}
		if sec.HasKey("enabled") && sec.Key("enabled").String() == "0" {
			continue
		}

		def := RepoDef{
			Name:          name,
			BaseURL:       vars.expand(sec.Key("baseurl").String()),
			Metalink:      vars.expand(sec.Key("metalink").String()),
			Mirrorlist:    vars.expand(sec.Key("mirrorlist").String()),
			SkipIfUnavail: sec.HasKey("skip_if_unavailable") && sec.Key("skip_if_unavailable").MustBool(false),
		}
		set := 0
		for _, u := range []string{def.BaseURL, def.Metalink, def.Mirrorlist} {
			if u != "" {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("internal/yumconf: section %q in %s: exactly one of baseurl, metalink, mirrorlist is required", name, path)
		}
		into[name] = def
	}
	return nil
}
