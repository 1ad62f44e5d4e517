// Package rpmver implements RPM version and dependency-relation comparison.
//
// The comparison algorithm ("rpmvercmp") is a faithful port of the reference
// C implementation and is the basis for every ordering decision the solver
// makes: which package is "newer", whether a Requires is satisfied by a
// candidate Provides, and whether a PUT obsoletes an installed package.
package rpmver

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Version represents a parsed NEVRA, NEVR, EVR, or EVRA string.
//
// Name and Architecture are optional; Epoch defaults to "0" when absent from
// the input, matching RPM's own convention that epoch is elided from
// user-visible strings when zero.
type Version struct {
	Name         *string
	Architecture *string
	Epoch        string
	Version      string
	Release      string
}

// evr writes the formatted EVR string into b.
func (v *Version) evr(b *strings.Builder) {
	if v.Epoch != "" && v.Epoch != "0" {
		b.WriteString(v.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(v.Version)
	b.WriteByte('-')
	b.WriteString(v.Release)
}

// String implements [fmt.Stringer], rendering the canonical
// name-[epoch:]version-release.arch form with epoch elided when zero.
func (v *Version) String() string {
	var b strings.Builder
	if v.Name != nil {
		b.WriteString(*v.Name)
		b.WriteByte('-')
	}
	v.evr(&b)
	if v.Architecture != nil {
		b.WriteByte('.')
		b.WriteString(*v.Architecture)
	}
	return b.String()
}

// EVR returns the formatted epoch:version-release string, with epoch elided
// when zero.
func (v *Version) EVR() string {
	var b strings.Builder
	v.evr(&b)
	return b.String()
}

// IsZero reports whether the receiver is the zero [Version].
func (v *Version) IsZero() bool {
	return v.Name == nil && v.Architecture == nil && v.Epoch == "" && v.Version == "" && v.Release == ""
}

// Parse parses a name-[epoch:]version-release[.arch] string.
//
// Parse accepts bare "version-release" and "epoch:version-release" forms
// too; Name is left nil when there were not enough "-"-separated segments to
// contain one.
func Parse(s string) (Version, error) {
	ret := Version{Epoch: "0"}
	v := s
	switch strings.Count(v, "-") {
	case 0:
		return Version{}, fmt.Errorf("rpmver: %q: missing separators", s)
	case 1:
		// version-release(.arch)
	default:
		// name-version-release(.arch)
		i := strings.LastIndexByte(v, '-')
		i = strings.LastIndexByte(v[:i], '-')
		name := v[:i]
		ret.Name = &name
		v = v[i+1:]
	}

	ev, ra, _ := strings.Cut(v, "-")
	ret.Version = ev
	if e, rest, ok := strings.Cut(ev, ":"); ok {
		if e != "" {
			ret.Epoch = e
		}
		ret.Version = rest
	}

	ret.Release = ra
	if idx := strings.LastIndexByte(ra, '.'); idx != -1 {
		a := ra[idx:]
		if _, ok := knownArchSuffix[a]; ok {
			arch := a[1:]
			ret.Architecture = &arch
			ret.Release = ra[:idx]
		}
	}

	return ret, nil
}

// knownArchSuffix is the set of architecture tags recognized as a trailing
// ".arch" component of a release string. It does not list every arch in
// arch.go's table (armv5tel, sparc and sh4, for example, are absent);
// anything not listed is left as part of the release string, which is the
// safe default since release strings may legitimately contain dots.
var knownArchSuffix = map[string]struct{}{
	".aarch64":  {},
	".armv7hl":  {},
	".armv7hnl": {},
	".i386":     {},
	".i486":     {},
	".i586":     {},
	".i686":     {},
	".ia64":     {},
	".noarch":   {},
	".ppc":      {},
	".ppc64":    {},
	".ppc64le":  {},
	".ppc64p7":  {},
	".s390":     {},
	".s390x":    {},
	".sh4a":     {},
	".sparc64v": {},
	".src":      {},
	".x86_64":   {},
}

// Flags is a dependency-relation comparison operator, as found in a
// Requires/Provides/Conflicts/Obsoletes vector.
type Flags int

const (
	// FlagAny matches any version of a named Provides (no EVR comparison).
	FlagAny Flags = iota
	FlagEQ
	FlagLT
	FlagLE
	FlagGT
	FlagGE
)

// String renders the conventional RPM operator spelling.
func (f Flags) String() string {
	switch f {
	case FlagEQ:
		return "="
	case FlagLT:
		return "<"
	case FlagLE:
		return "<="
	case FlagGT:
		return ">"
	case FlagGE:
		return ">="
	default:
		return ""
	}
}

// Satisfies reports whether candidate, compared against want under op,
// satisfies the relation. op == FlagAny always satisfies.
func Satisfies(op Flags, want, candidate *Version) bool {
	if op == FlagAny || want == nil {
		return true
	}
	c := Compare(candidate, want)
	switch op {
	case FlagEQ:
		return c == 0
	case FlagLT:
		return c < 0
	case FlagLE:
		return c <= 0
	case FlagGT:
		return c > 0
	case FlagGE:
		return c >= 0
	default:
		return false
	}
}

// Compare orders two Versions by (Name, Epoch, Version, Release,
// Architecture), returning a negative, zero, or positive int as a < b, a ==
// b, or a > b. A nil Name/Architecture sorts before a non-nil one of equal
// value otherwise, mirroring how hawkey/libsolv order otherwise-identical
// EVRs with missing metadata.
func Compare(a, b *Version) int {
	if c := comparePtr(a.Name, b.Name); c != 0 {
		return c
	}
	if c := rpmvercmp(orZero(a.Epoch), orZero(b.Epoch)); c != 0 {
		return c
	}
	if c := rpmvercmp(a.Version, b.Version); c != 0 {
		return c
	}
	if c := rpmvercmp(a.Release, b.Release); c != 0 {
		return c
	}
	return comparePtr(a.Architecture, b.Architecture)
}

func orZero(e string) string {
	if e == "" {
		return "0"
	}
	return e
}

func comparePtr(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a != nil && b == nil:
		return 1
	case a == nil && b != nil:
		return -1
	default:
		return rpmvercmp(*a, *b)
	}
}

// rpmvercmp compares two RPM version (or release, or epoch) segments.
//
// This is a port of the reference C implementation at
// rpmio/rpmvercmp.cc in the rpm-software-management/rpm project.
//
//	 1: a is newer than b
//	 0: a and b are the same version
//	-1: b is newer than a
func rpmvercmp(a, b string) int {
	if a == b {
		return 0
	}

	for {
		a = strings.TrimLeftFunc(a, rpmSeparatorTrim)
		b = strings.TrimLeftFunc(b, rpmSeparatorTrim)

		switch {
		case strings.HasPrefix(a, "~") && strings.HasPrefix(b, "~"):
			a, b = a[1:], b[1:]
		case strings.HasPrefix(a, "~"):
			return -1
		case strings.HasPrefix(b, "~"):
			return 1
		}

		switch {
		case strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			a, b = a[1:], b[1:]
		case a == "" && strings.HasPrefix(b, "^"):
			return -1
		case strings.HasPrefix(a, "^") && b == "":
			return 1
		case strings.HasPrefix(a, "^") && !strings.HasPrefix(b, "^"):
			return -1
		case !strings.HasPrefix(a, "^") && strings.HasPrefix(b, "^"):
			return 1
		}

		if a == "" || b == "" {
			break
		}

		r, _ := utf8.DecodeRuneInString(a)
		isnum := isDigit(r)
		var aSeg, bSeg string
		if isnum {
			aSeg, a = splitFunc(a, isDigit)
			bSeg, b = splitFunc(b, isDigit)
		} else {
			aSeg, a = splitFunc(a, isAlpha)
			bSeg, b = splitFunc(b, isAlpha)
		}

		switch {
		case aSeg == "":
			// Can't happen: the loop above only continues while a != "".
			return -1
		case bSeg == "" && !isnum:
			return -1
		case bSeg == "" && isnum:
			return 1
		}

		if isnum {
			aSeg = strings.TrimLeft(aSeg, "0")
			bSeg = strings.TrimLeft(bSeg, "0")
			switch {
			case len(aSeg) > len(bSeg):
				return 1
			case len(aSeg) < len(bSeg):
				return -1
			}
		}

		if c := strings.Compare(aSeg, bSeg); c != 0 {
			return c
		}
	}

	switch {
	case a == "" && b == "":
		return 0
	case a != "":
		return 1
	default:
		return -1
	}
}

func rpmSeparatorTrim(r rune) bool { return !isAlnum(r) && r != '~' && r != '^' }

func splitFunc(s string, f func(rune) bool) (string, string) {
	i := strings.IndexFunc(s, func(r rune) bool { return !f(r) })
	if i == -1 {
		return s, ""
	}
	return s[:i], s[i:]
}

func isAlpha(r rune) bool { return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' }
func isDigit(r rune) bool { return r >= '0' && r <= '9' }
func isAlnum(r rune) bool { return isAlpha(r) || isDigit(r) }
