package repository

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/utilitywarehouse/git-backup/giturl"
)

// user@host:path without scheme
var scpLikeRgx = regexp.MustCompile(`^([^@/:\s]+)@[^/:\s]+:[^/]`)

// Auth holds credentials of a source. Which of them are used depends on the
// remote URL, see ForRemote.
type Auth struct {
	// username to use for basic or token based authentication
	Username string

	// password or personal access token to use for authentication
	Password string

	// SSH Details
	// path to the ssh key used to fetch remote
	SSHKeyPath string

	// path to the known hosts of the remote host, if empty host key
	// verification is disabled
	SSHKnownHostsPath string
}

// CredentialKind is the authentication method selected for a remote
type CredentialKind string

const (
	CredentialNone   CredentialKind = "none"
	CredentialSSHKey CredentialKind = "ssh-key"
	CredentialBasic  CredentialKind = "basic"
)

// Credential is the resolved authentication for a single remote URL
type Credential struct {
	Kind CredentialKind

	// ssh user from the URL for ssh remotes, basic auth username otherwise
	Username string
	Password string

	SSHKeyPath        string
	SSHKnownHostsPath string
}

// ForRemote selects credentials for given remote URL. ssh and scp-like URLs
// use public key authentication with the configured key while http(s) URLs
// use basic auth with the token. Local file URLs and URLs of unknown form need
// no credentials, the transport reports if the remote is unusable.
func (a Auth) ForRemote(remote string) Credential {
	scheme, user := remoteForm(remote)

	switch scheme {
	case giturl.SchemeSCP, giturl.SchemeSSH:
		if user == "" {
			user = "git"
		}
		return Credential{
			Kind:              CredentialSSHKey,
			Username:          user,
			SSHKeyPath:        a.SSHKeyPath,
			SSHKnownHostsPath: a.SSHKnownHostsPath,
		}

	case giturl.SchemeHTTPS, giturl.SchemeHTTP:
		// anonymous access to public repositories
		if a.Password == "" {
			return Credential{Kind: CredentialNone}
		}
		username := a.Username
		if username == "" {
			username = "-" // username is required
		}
		return Credential{
			Kind:     CredentialBasic,
			Username: username,
			Password: a.Password,
		}
	}

	return Credential{Kind: CredentialNone}
}

// remoteForm returns giturl scheme and user of the remote. URLs giturl can't
// parse are classified by their form only.
func remoteForm(remote string) (string, string) {
	if u, err := giturl.Parse(remote); err == nil {
		return u.Scheme, u.User
	}

	remote = strings.TrimSpace(remote)
	if sections := scpLikeRgx.FindStringSubmatch(remote); sections != nil {
		return giturl.SchemeSCP, sections[1]
	}

	u, err := url.Parse(remote)
	if err != nil {
		return "", ""
	}
	switch scheme := strings.ToLower(u.Scheme); scheme {
	case giturl.SchemeSSH, giturl.SchemeHTTPS, giturl.SchemeHTTP:
		return scheme, u.User.Username()
	}
	return "", ""
}
