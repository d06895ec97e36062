package repository

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Descriptor identifies one remote repository discovered by a provider.
// (Source, Owner, Name) is the identity of the repository and it maps to the
// storage path root/Source/Owner/Name.
type Descriptor struct {
	// Source is the provider identity e.g. "github" or a gitlab alias
	Source string
	// Owner is the user, organisation or (nested) group owning the repository
	Owner string
	// Name is the repository name without `.git`
	Name string
	// URL is the clone URL selected by the source clone type
	URL string
}

func (d Descriptor) String() string {
	return d.Source + "/" + d.Owner + "/" + d.Name
}

// Dir returns the path of the local mirror under given root
func (d Descriptor) Dir(root string) string {
	return filepath.Join(root, d.Source, filepath.FromSlash(d.Owner), d.Name)
}

// Validate makes sure descriptor can be safely mapped to a directory under
// storage root.
func (d Descriptor) Validate() error {
	var errs []error

	if d.URL == "" {
		errs = append(errs, fmt.Errorf("repository url is required"))
	}
	if err := validateSegment("source", d.Source); err != nil {
		errs = append(errs, err)
	}
	if err := validateSegment("name", d.Name); err != nil {
		errs = append(errs, err)
	}

	// nested gitlab groups are represented as owner path
	if d.Owner == "" {
		errs = append(errs, fmt.Errorf("owner is required"))
	}
	for seg := range strings.SplitSeq(d.Owner, "/") {
		if d.Owner == "" {
			break
		}
		if err := validateSegment("owner", seg); err != nil {
			errs = append(errs, err)
			break
		}
	}

	return errors.Join(errs...)
}

func validateSegment(field, value string) error {
	switch {
	case value == "":
		return fmt.Errorf("%s is required", field)
	case value == "." || value == "..":
		return fmt.Errorf("%s %q is not allowed", field, value)
	case strings.ContainsAny(value, `/\`):
		return fmt.Errorf("%s %q must not contain path separator", field, value)
	}
	return nil
}
