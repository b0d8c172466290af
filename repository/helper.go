package repository

import (
	"regexp"
	"strings"
)

var (
	// to parse output of "git fetch --porcelain"
	updatedRefRgx = regexp.MustCompile(`(?m)^[^=] \w+ \w+ (refs\/[^\s]+)`)

	// to parse output of "git push --porcelain"
	// <flag> \t <from>:<to> \t <summary>
	pushedRefRgx = regexp.MustCompile(`(?m)^([ +\-*!=])\t([^:\t]*):([^\t]+)\t`)

	// to parse output of "git ls-remote --symref <remote> HEAD"
	// ref: refs/heads/xxxx  HEAD
	remoteDefaultBranchRgx = regexp.MustCompile(`^ref:\s+([^\s]+)\s+HEAD`)

	// to parse output of "git ls-remote --heads <remote>"
	// <hash>  refs/heads/xxxx
	remoteHeadRgx = regexp.MustCompile(`(?m)^[0-9A-Fa-f]+\s+refs/heads/(\S+)$`)
)

func updatedRefs(output string) []string {
	var refs []string

	for _, match := range updatedRefRgx.FindAllStringSubmatch(output, -1) {
		refs = append(refs, match[1])
	}

	return refs
}

// changedRefs returns remote refs from push output which were not
// already up to date
func changedRefs(output string) []string {
	var refs []string

	for _, match := range pushedRefRgx.FindAllStringSubmatch(output, -1) {
		if match[1] == "=" {
			continue
		}
		refs = append(refs, match[3])
	}

	return refs
}

func parseSymref(output string) (string, bool) {
	sections := remoteDefaultBranchRgx.FindStringSubmatch(strings.TrimSpace(output))
	if len(sections) != 2 {
		return "", false
	}
	return sections[1], true
}

func parseHeads(output string) []string {
	var branches []string

	for _, match := range remoteHeadRgx.FindAllStringSubmatch(output, -1) {
		branches = append(branches, match[1])
	}

	return branches
}
