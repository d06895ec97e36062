package backup

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/utilitywarehouse/git-backup/internal/utils"
	"github.com/utilitywarehouse/git-backup/provider"
)

const (
	TransportGoGit = "go-git"
	TransportGit   = "git"

	DefaultSSHKeyPath = "~/.ssh/id_rsa"
)

// ErrInvalidConfig is returned for all configuration errors
var ErrInvalidConfig = errors.New("invalid config")

// Config is the configuration of a backup run
type Config struct {
	// Target is the storage root, repositories are mirrored at
	// target/<source>/<owner>/<name>
	Target string `yaml:"target"`

	// Concurrency is the max number of repositories synced at the same time
	// across all sources. 0 means unbounded
	Concurrency int `yaml:"concurrency"`

	// Transport used for clone and fetch, 'go-git' (default) or 'git'
	Transport string `yaml:"transport"`

	// SSHKeyPath is the private key used for ssh clone URLs
	SSHKeyPath string `yaml:"ssh_key_path"`

	// SSHKnownHostsPath is the known hosts file used to verify remote hosts
	// if not set host key verification is disabled
	SSHKnownHostsPath string `yaml:"ssh_known_hosts_path"`

	// Sources are the provider accounts to backup
	Sources []Source `yaml:"sources"`
}

// Source is a provider account, exactly one of the provider fields must be set
type Source struct {
	GitHub *provider.GitHubConfig `yaml:"github"`
	GitLab *provider.GitLabConfig `yaml:"gitlab"`
}

// validate will verify config, defaults must be applied before
func (c *Config) validate() error {
	var errs []error

	if c.Target == "" {
		errs = append(errs, fmt.Errorf("target is required"))
	}

	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency))
	}

	switch c.Transport {
	case TransportGoGit, TransportGit:
	default:
		errs = append(errs, fmt.Errorf("wrong transport value provided %q, must be one of %s, %s",
			c.Transport, TransportGoGit, TransportGit))
	}

	// `~` is left unexpanded only when home dir is unknown
	for _, p := range []struct{ name, path string }{
		{"target", c.Target},
		{"ssh_key_path", c.SSHKeyPath},
		{"ssh_known_hosts_path", c.SSHKnownHostsPath},
	} {
		if utils.IsHomeRelative(p.path) {
			errs = append(errs, fmt.Errorf("%s %q can't be expanded, home directory is unknown", p.name, p.path))
		}
	}

	if len(c.Sources) == 0 {
		errs = append(errs, fmt.Errorf("at least one source is required"))
	}

	for i, s := range c.Sources {
		switch {
		case s.GitHub != nil && s.GitLab != nil:
			errs = append(errs, fmt.Errorf("sources[%d]: only one of github or gitlab can be set", i))
		case s.GitHub != nil:
			if err := s.GitHub.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("sources[%d].github: %w", i, err))
			}
			if s.GitHub.App != nil && utils.IsHomeRelative(s.GitHub.App.PrivateKeyPath) {
				errs = append(errs, fmt.Errorf("sources[%d].github.app: private_key_path %q can't be expanded, home directory is unknown", i, s.GitHub.App.PrivateKeyPath))
			}
		case s.GitLab != nil:
			if err := s.GitLab.Validate(); err != nil {
				errs = append(errs, fmt.Errorf("sources[%d].gitlab: %w", i, err))
			}
		default:
			errs = append(errs, fmt.Errorf("sources[%d]: one of github or gitlab is required", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}

	return nil
}

// applyDefaults sets default values and expands `~` in paths with given home
func (c *Config) applyDefaults(home string) {
	if c.Transport == "" {
		c.Transport = TransportGoGit
	}
	// default key lives in home dir
	if c.SSHKeyPath == "" && home != "" {
		c.SSHKeyPath = DefaultSSHKeyPath
	}

	c.Target = utils.ExpandHome(c.Target, home)
	c.SSHKeyPath = utils.ExpandHome(c.SSHKeyPath, home)
	c.SSHKnownHostsPath = utils.ExpandHome(c.SSHKnownHostsPath, home)

	for _, s := range c.Sources {
		if s.GitHub != nil && s.GitHub.App != nil {
			s.GitHub.App.PrivateKeyPath = utils.ExpandHome(s.GitHub.App.PrivateKeyPath, home)
		}
	}
}

// ValidateAndApplyDefaults will apply defaults and validate config. home is
// used to expand `~` in paths, it is resolved once by the caller. With empty
// home the default ssh key is not set and `~` paths are rejected.
func (c *Config) ValidateAndApplyDefaults(home string) error {
	c.applyDefaults(home)

	if err := c.validate(); err != nil {
		return err
	}

	// relative target would depend on working dir of each run
	if abs, err := filepath.Abs(c.Target); err == nil {
		c.Target = abs
	}

	return nil
}
