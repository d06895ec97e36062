package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v80/github"
	"github.com/utilitywarehouse/git-backup/pkg/auth"
	"github.com/utilitywarehouse/git-backup/repository"
	"golang.org/x/oauth2"
)

const (
	// Descriptor.Source of github repositories, it is not configurable
	githubSource = "github"

	// username accepted by github for token based https authentication
	githubTokenUser = "x-access-token"

	apiTimeout = 30 * time.Second
)

// GitHubConfig is the configuration of a github account source
type GitHubConfig struct {
	// User is used as https clone username
	User string `yaml:"user"`
	// Token is a personal access token
	Token string `yaml:"token"`
	// Clone selects ssh or https clone URLs
	Clone CloneType `yaml:"clone"`
	// Forks includes forked repositories
	Forks bool `yaml:"forks"`
	// ExcludeOwners is the list of owners to skip
	ExcludeOwners []string `yaml:"exclude_owners"`
	// Exclude is the list of repository names to skip
	Exclude []string `yaml:"exclude"`
	// APIURL is the API root of github enterprise server
	APIURL string `yaml:"api_url"`
	// App authenticates as a github app installation instead of token
	App *GitHubAppConfig `yaml:"app"`
}

// GitHubAppConfig holds github app details
type GitHubAppConfig struct {
	// The application id or the client ID of the Github app
	ID string `yaml:"id"`
	// The installation id of the app (in the organization).
	InstallationID string `yaml:"installation_id"`
	// path to the github app private key
	PrivateKeyPath string `yaml:"private_key_path"`
}

// Validate returns all config errors
func (c *GitHubConfig) Validate() error {
	var errs []error

	if c.App == nil && c.Token == "" {
		errs = append(errs, fmt.Errorf("github token or app is required"))
	}
	if c.App != nil && (c.App.ID == "" || c.App.InstallationID == "" || c.App.PrivateKeyPath == "") {
		errs = append(errs, fmt.Errorf("github app id, installation_id and private_key_path are required"))
	}
	if c.APIURL != "" {
		if _, err := url.Parse(c.APIURL); err != nil {
			errs = append(errs, fmt.Errorf("invalid github api_url err:%w", err))
		}
	}

	return errors.Join(errs...)
}

// GitHub lists repositories accessible to the authenticated user or, in app
// mode, to the app installation
type GitHub struct {
	conf   GitHubConfig
	client *github.Client
	ts     oauth2.TokenSource
	log    *slog.Logger
}

// NewGitHub returns github provider for given config
func NewGitHub(ctx context.Context, conf GitHubConfig, log *slog.Logger) (*GitHub, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	var ts oauth2.TokenSource
	if conf.App != nil {
		apiURL := conf.APIURL
		if apiURL == "" {
			apiURL = auth.DefaultGithubAPIURL
		}
		ts = auth.NewGithubAppTokenSource(ctx, auth.GithubApp{
			APIURL:         apiURL,
			AppID:          conf.App.ID,
			InstallationID: conf.App.InstallationID,
			PrivateKeyPath: conf.App.PrivateKeyPath,
		})
	} else {
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: conf.Token})
	}

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = apiTimeout

	client := github.NewClient(httpClient)
	client.UserAgent = userAgent
	if conf.APIURL != "" {
		// go-github requires trailing slash on the base URL
		baseURL, err := url.Parse(strings.TrimSuffix(conf.APIURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api_url err:%w", err)
		}
		client.BaseURL = baseURL
	}

	return &GitHub{
		conf:   conf,
		client: client,
		ts:     ts,
		log:    log.With("source", githubSource, "user", conf.User),
	}, nil
}

func (g *GitHub) Name() string { return githubSource }

func (g *GitHub) Repositories(ctx context.Context) []repository.Descriptor {
	filter := Filter{Forks: g.conf.Forks, ExcludeOwners: g.conf.ExcludeOwners, Exclude: g.conf.Exclude}
	return repositories(ctx, g.log, githubSource, g.conf.Clone, filter, g.discover)
}

// Credentials returns token based https credentials, in app mode the current
// installation token is returned.
func (g *GitHub) Credentials() repository.Auth {
	username := g.conf.User
	if username == "" || g.conf.App != nil {
		username = githubTokenUser
	}

	token, err := g.ts.Token()
	if err != nil {
		g.log.Error("unable to get github token", "err", err)
		return repository.Auth{Username: username}
	}
	return repository.Auth{Username: username, Password: token.AccessToken}
}

func (g *GitHub) discover(ctx context.Context) ([]record, error) {
	var repos []*github.Repository
	var err error

	if g.conf.App != nil {
		// GET /installation/repositories
		repos, err = Paginate(ctx, func(ctx context.Context, page, perPage int) ([]*github.Repository, error) {
			list, _, err := g.client.Apps.ListRepos(ctx, &github.ListOptions{Page: page, PerPage: perPage})
			if err != nil {
				return nil, err
			}
			return list.Repositories, nil
		})
	} else {
		// GET /user/repos
		repos, err = Paginate(ctx, func(ctx context.Context, page, perPage int) ([]*github.Repository, error) {
			list, _, err := g.client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
				ListOptions: github.ListOptions{Page: page, PerPage: perPage},
			})
			return list, err
		})
	}
	if err != nil {
		return nil, err
	}

	records := make([]record, 0, len(repos))
	for _, r := range repos {
		records = append(records, record{
			Owner:    r.GetOwner().GetLogin(),
			Name:     r.GetName(),
			Fork:     r.GetFork(),
			SSHURL:   r.GetSSHURL(),
			HTTPSURL: r.GetCloneURL(),
		})
	}
	return records, nil
}
