package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/utilitywarehouse/git-backup/repository"
)

const (
	defaultGitLabURL = "https://gitlab.com"
	gitlabSource     = "gitlab"

	// username accepted by gitlab for token based https authentication
	gitlabTokenUser = "oauth2"

	userAgent = "git-backup"
)

// GitLabConfig is the configuration of a gitlab account source
type GitLabConfig struct {
	// Name is an optional alias used as Descriptor.Source, it allows
	// multiple instances to be backed up to the same target
	Name string `yaml:"name"`
	// URL of the gitlab instance, defaults to https://gitlab.com
	URL string `yaml:"url"`
	// Token is a personal access token
	Token string `yaml:"token"`
	// Clone selects ssh or https clone URLs
	Clone CloneType `yaml:"clone"`
	// Forks includes forked projects
	Forks bool `yaml:"forks"`
	// ExcludeOwners is the list of namespaces to skip
	ExcludeOwners []string `yaml:"exclude_owners"`
	// Exclude is the list of project paths to skip
	Exclude []string `yaml:"exclude"`
}

// Source returns the value used as Descriptor.Source
func (c *GitLabConfig) Source() string {
	if c.Name != "" {
		return c.Name
	}
	return gitlabSource
}

// Validate returns all config errors
func (c *GitLabConfig) Validate() error {
	var errs []error

	if c.Token == "" {
		errs = append(errs, fmt.Errorf("gitlab token is required"))
	}
	if strings.ContainsAny(c.Name, `/\`) || c.Name == "." || c.Name == ".." {
		errs = append(errs, fmt.Errorf("gitlab name %q is not a valid directory name", c.Name))
	}
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid gitlab url %q", c.URL))
		}
	}

	return errors.Join(errs...)
}

// GitLab lists projects the authenticated user is a member of
type GitLab struct {
	conf    GitLabConfig
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// gitlabProject represents a GitLab project (repository).
type gitlabProject struct {
	Path              string `json:"path"`
	PathWithNamespace string `json:"path_with_namespace"`
	Namespace         struct {
		Path     string `json:"path"`
		FullPath string `json:"full_path"`
	} `json:"namespace"`
	SSHURLToRepo      string `json:"ssh_url_to_repo"`
	HTTPURLToRepo     string `json:"http_url_to_repo"`
	ForkedFromProject *struct {
		ID int `json:"id"`
	} `json:"forked_from_project"`
}

// NewGitLab returns gitlab provider for given config, if client is nil
// default client is used
func NewGitLab(conf GitLabConfig, client *http.Client, log *slog.Logger) (*GitLab, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		client = &http.Client{Timeout: apiTimeout}
	}
	if log == nil {
		log = slog.Default()
	}

	baseURL := conf.URL
	if baseURL == "" {
		baseURL = defaultGitLabURL
	}

	return &GitLab{
		conf:    conf,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log.With("source", conf.Source(), "url", baseURL),
	}, nil
}

func (g *GitLab) Name() string { return g.conf.Source() }

func (g *GitLab) Repositories(ctx context.Context) []repository.Descriptor {
	filter := Filter{Forks: g.conf.Forks, ExcludeOwners: g.conf.ExcludeOwners, Exclude: g.conf.Exclude}
	return repositories(ctx, g.log, g.conf.Source(), g.conf.Clone, filter, g.discover)
}

func (g *GitLab) Credentials() repository.Auth {
	return repository.Auth{Username: gitlabTokenUser, Password: g.conf.Token}
}

func (g *GitLab) discover(ctx context.Context) ([]record, error) {
	projects, err := Paginate(ctx, g.listProjects)
	if err != nil {
		return nil, err
	}

	records := make([]record, 0, len(projects))
	for _, p := range projects {
		// nested groups are kept as owner path
		owner := p.Namespace.FullPath
		if owner == "" {
			owner = p.Namespace.Path
		}
		r := record{
			Owner:    owner,
			Name:     p.Path,
			Fork:     p.ForkedFromProject != nil,
			SSHURL:   p.SSHURLToRepo,
			HTTPSURL: p.HTTPURLToRepo,
		}
		// exclude_owners written for the group name keep working for
		// nested groups
		if p.Namespace.Path != "" && p.Namespace.Path != owner {
			r.OwnerAliases = []string{p.Namespace.Path}
		}
		records = append(records, r)
	}
	return records, nil
}

// listProjects requests single page of projects
// GET /api/v4/projects?membership=true&per_page=100&page=N
func (g *GitLab) listProjects(ctx context.Context, page, perPage int) ([]gitlabProject, error) {
	query := url.Values{}
	query.Set("membership", "true")
	query.Set("per_page", strconv.Itoa(perPage))
	query.Set("page", strconv.Itoa(page))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/api/v4/projects?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("PRIVATE-TOKEN", g.conf.Token)
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Read limited body for diagnostics
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("unexpected status code: %d body:%q", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var projects []gitlabProject
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("unable to decode projects err:%w", err)
	}
	return projects, nil
}
