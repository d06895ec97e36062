package repository

import (
	"regexp"
	"slices"
	"strconv"
)

var (
	updatedRefRgx = regexp.MustCompile(`(?m)^[^=] \w+ \w+ (refs\/[^\s]+)`)

	// git and go-git server both report pack size on the progress channel
	// "remote: Total 4 (delta 3), reused 4 (delta 3), pack-reused 0"
	totalObjectsRgx = regexp.MustCompile(`(?m)Total (\d+)`)

	// to parse output of "git ls-remote --symref origin HEAD"
	// ref: refs/heads/xxxx  HEAD
	remoteDefaultBranchRgx = regexp.MustCompile(`^ref:\s+([^\s]+)\s+HEAD`)
)

// updatedRefs parses `git fetch --porcelain` output and returns refs which
// were not up to date
func updatedRefs(output string) []string {
	var refs []string

	for _, match := range updatedRefRgx.FindAllStringSubmatch(output, -1) {
		refs = append(refs, match[1])
	}

	return refs
}

// totalObjects returns the largest object total reported in progress output
func totalObjects(progress string) int {
	var total int
	for _, match := range totalObjectsRgx.FindAllStringSubmatch(progress, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		total = max(total, n)
	}
	return total
}

// diffRefs returns sorted names of refs which were added, removed or moved
func diffRefs(before, after map[string]string) []string {
	var refs []string
	for name, target := range after {
		if prev, ok := before[name]; !ok || prev != target {
			refs = append(refs, name)
		}
	}
	for name := range before {
		if _, ok := after[name]; !ok {
			refs = append(refs, name)
		}
	}
	slices.Sort(refs)
	return refs
}
