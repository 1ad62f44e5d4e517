package solver

import (
	deplint "github.com/default-to-open/rpmdeplint"
	"github.com/default-to-open/rpmdeplint/rpmver"
)

// UpgradeStep is the distupgrade transaction step kind for one PUT.
type UpgradeStep int

const (
	// StepIgnore means the PUT is kept: no repo package upgrades or
	// obsoletes it.
	StepIgnore UpgradeStep = iota
	// StepUpgraded means some repo package of the same (name, arch) has a
	// strictly greater EVR.
	StepUpgraded
	// StepObsoleted means some repo package's Obsoletes relation matches
	// the PUT.
	StepObsoleted
)

// UpgradeResult is the outcome of comparing one PUT against the pool's
// repo packages for find_upgrade_problems.
type UpgradeResult struct {
	Step  UpgradeStep
	Other *deplint.Package // set for StepUpgraded/StepObsoleted
}

// UpgradeCandidates treats put as installed and evaluates whether any repo
// package in the pool would upgrade or obsolete it, per spec.md §4.4.4.
// Installonly packages (kernels) never report an upgrade, since multiple
// versions legitimately coexist.
func (p *Pool) UpgradeCandidates(put *deplint.Package) UpgradeResult {
	if p.IsInstallonly(put) {
		return UpgradeResult{Step: StepIgnore}
	}

	putEVR := put.EVRA()

	var bestUpgrade *deplint.Package
	var bestUpgradeEVR rpmver.Version
	for _, pkg := range p.byID {
		if pkg.Source.Kind != deplint.SourceRepo {
			continue
		}
		if pkg.Name != put.Name || pkg.Arch != put.Arch {
			continue
		}
		evr := pkg.EVRA()
		if rpmver.Compare(&evr, &putEVR) <= 0 {
			continue
		}
		if bestUpgrade == nil || rpmver.Compare(&evr, &bestUpgradeEVR) > 0 {
			bestUpgrade, bestUpgradeEVR = pkg, evr
		}
	}
	if bestUpgrade != nil {
		return UpgradeResult{Step: StepUpgraded, Other: bestUpgrade}
	}

	for _, pkg := range p.byID {
		if pkg.Source.Kind != deplint.SourceRepo {
			continue
		}
		for _, obs := range pkg.Obsoletes {
			if put.ProvidesMatch(obs.Name, obs.Flags, obs.EVR) {
				return UpgradeResult{Step: StepObsoleted, Other: pkg}
			}
		}
	}

	return UpgradeResult{Step: StepIgnore}
}
