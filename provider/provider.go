package provider

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/utilitywarehouse/git-backup/repository"
	"gopkg.in/yaml.v3"
)

// excluded repositories are listed individually only up to this many
const maxLoggedExclusions = 20

// Provider lists repositories of a single provider account
type Provider interface {
	// Name is the identity of the source used in logs, metrics and as
	// Descriptor.Source
	Name() string
	// Repositories returns filtered descriptors of all repositories visible
	// to the account. errors are logged and result in an empty list.
	Repositories(ctx context.Context) []repository.Descriptor
	// Credentials returns the http(s) credentials for clone URLs of this
	// source
	Credentials() repository.Auth
}

// CloneType selects which clone URL of a repository is used
type CloneType string

const (
	CloneSSH   CloneType = "ssh"
	CloneHTTPS CloneType = "https"
)

// UnmarshalYAML accepts clone type in any case i.e. "SSH" or "https"
func (c *CloneType) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	ct, err := ParseCloneType(s)
	if err != nil {
		return err
	}
	*c = ct
	return nil
}

// ParseCloneType returns clone type from given string, empty string defaults
// to ssh
func ParseCloneType(s string) (CloneType, error) {
	switch CloneType(strings.ToLower(strings.TrimSpace(s))) {
	case "", CloneSSH:
		return CloneSSH, nil
	case CloneHTTPS:
		return CloneHTTPS, nil
	}
	return "", fmt.Errorf("invalid clone type %q, valid values are 'ssh' or 'https'", s)
}

// Filter decides which discovered repositories are backed up.
// Owners and names are matched exactly and case-sensitively against the
// upstream values.
type Filter struct {
	Forks         bool
	ExcludeOwners []string
	Exclude       []string
}

// Keep returns true if repository should be backed up
func (f Filter) Keep(owner, name string, fork bool) bool {
	return (f.Forks || !fork) &&
		!slices.Contains(f.ExcludeOwners, owner) &&
		!slices.Contains(f.Exclude, name)
}

// record is a repository as returned by the provider API
type record struct {
	Owner string
	// OwnerAliases are other upstream names of the owner which are also
	// matched against exclude_owners i.e. leaf path of a nested gitlab group
	OwnerAliases []string
	Name         string
	Fork         bool
	SSHURL       string
	HTTPSURL     string
}

// keepRecord is Keep which also applies owner exclusions to owner aliases
func (f Filter) keepRecord(r record) bool {
	if !f.Keep(r.Owner, r.Name, r.Fork) {
		return false
	}
	for _, alias := range r.OwnerAliases {
		if slices.Contains(f.ExcludeOwners, alias) {
			return false
		}
	}
	return true
}

func (r record) url(clone CloneType) string {
	if clone == CloneHTTPS {
		return r.HTTPSURL
	}
	return r.SSHURL
}

// repositories runs discovery and converts records into descriptors, it is
// shared by all provider variants
func repositories(
	ctx context.Context,
	log *slog.Logger,
	source string,
	clone CloneType,
	filter Filter,
	discover func(ctx context.Context) ([]record, error),
) []repository.Descriptor {
	records, err := discover(ctx)
	if err != nil {
		log.Error("unable to discover repositories", "err", err)
		recordDiscoveryError(source)
		return []repository.Descriptor{}
	}

	descriptors, excluded := toDescriptors(source, clone, filter, records)

	switch {
	case len(excluded) > maxLoggedExclusions:
		log.Info("excluded repositories", "count", len(excluded))
	case len(excluded) > 0:
		log.Info("excluded repositories", "count", len(excluded), "repos", excluded)
	}
	log.Info("discovered repositories", "count", len(descriptors))

	recordDiscovery(source, len(descriptors), len(excluded))

	return descriptors
}

// toDescriptors applies filter to the records and returns descriptors of the
// kept records along with "owner/name" of the excluded ones
func toDescriptors(source string, clone CloneType, filter Filter, records []record) ([]repository.Descriptor, []string) {
	descriptors := []repository.Descriptor{}
	var excluded []string

	for _, r := range records {
		if !filter.keepRecord(r) {
			excluded = append(excluded, r.Owner+"/"+r.Name)
			continue
		}
		descriptors = append(descriptors, repository.Descriptor{
			Source: source,
			Owner:  r.Owner,
			Name:   r.Name,
			URL:    r.url(clone),
		})
	}

	return descriptors, excluded
}
