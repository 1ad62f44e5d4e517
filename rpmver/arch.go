package rpmver

// canonicalArch maps a package architecture to the "family" arch used when
// determining the test architecture for a run (spec §6): "if --arch is
// absent, take the union of arches from the PUTs mapped through the
// canonical arch table".
var canonicalArch = map[string]string{
	"ia64": "ia64",

	"armv5tel":  "armv7hnl",
	"armv6l":    "armv7hnl",
	"armv7l":    "armv7hnl",
	"armv7hl":   "armv7hnl",
	"armv7hnl":  "armv7hnl",
	"armv7hnl2": "armv7hnl",

	"i386":   "x86_64",
	"i486":   "x86_64",
	"i586":   "x86_64",
	"i686":   "x86_64",
	"x86_64": "x86_64",

	"sparc":   "sparc64v",
	"sparcv9": "sparc64v",
	"sparc64": "sparc64v",

	"ppc":     "ppc64p7",
	"ppc64":   "ppc64p7",
	"ppc64le": "ppc64p7",
	"ppc64p7": "ppc64p7",

	"s390":  "s390x",
	"s390x": "s390x",

	"sh3":  "sh4a",
	"sh4":  "sh4a",
	"sh4a": "sh4a",
}

// Noarch is the architecture string that never participates in arch
// determination or compatibility checks; it is universally installable.
const Noarch = "noarch"

// CanonicalArch reports the canonical "family" architecture for arch, and
// whether arch is known to this table. Noarch is reported as itself with ok
// == false, since it never determines a test architecture on its own.
func CanonicalArch(arch string) (canonical string, ok bool) {
	if arch == Noarch {
		return Noarch, false
	}
	c, ok := canonicalArch[arch]
	if !ok {
		return arch, false
	}
	return c, true
}

// Compatible reports whether arch may be installed on a pool configured for
// testArch: arch is noarch, or arch's canonical family matches testArch's.
func Compatible(testArch, arch string) bool {
	if arch == Noarch {
		return true
	}
	a, aok := CanonicalArch(arch)
	t, tok := CanonicalArch(testArch)
	if !aok {
		a = arch
	}
	if !tok {
		t = testArch
	}
	return a == t
}
