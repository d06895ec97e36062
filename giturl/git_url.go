// Package giturl parses and classifies the clone URLs returned by providers
package giturl

import (
	"fmt"
	"regexp"
	"strings"
)

// Scheme values set on parsed URL
const (
	SchemeSCP   = "scp"
	SchemeSSH   = "ssh"
	SchemeHTTPS = "https"
	SchemeHTTP  = "http"
	SchemeLocal = "local"
)

var (
	// The repository name can contain
	// ASCII letters, digits, and the characters ., -, and _.

	// user@host.xz:path/to/repo.git
	scpURLRgx = regexp.MustCompile(`^(?P<user>[\w\-\.]+)@(?P<host>[\w\-]+(\.[\w\-]+)*(\:\d+)?):(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// ssh://user@host.xz[:port]/path/to/repo.git
	sshURLRgx = regexp.MustCompile(`^ssh://(?P<user>[\w\-\.]+)@(?P<host>[\w\-]+(\.[\w\-]+)*(\:\d+)??)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// https://[user@]host.xz[:port]/path/to/repo.git
	httpsURLRgx = regexp.MustCompile(`^https://((?P<user>[\w\-\.]+)@)?(?P<host>[\w\-]+(\.[\w\-]+)*(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// http://[user@]host.xz[:port]/path/to/repo.git
	// self-hosted gitlab instances without TLS return these
	httpURLRgx = regexp.MustCompile(`^http://((?P<user>[\w\-\.]+)@)?(?P<host>[\w\-]+(\.[\w\-]+)*(\:\d+)?)/(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)

	// file:///path/to/repo.git
	localURLRgx = regexp.MustCompile(`^file:///(?P<path>([\w\-\.]+\/)*)(?P<repo>[\w\-\.]+(\.git)?)$`)
)

// URL represents parsed git url
type URL struct {
	Scheme string // value will be either 'scp', 'ssh', 'https', 'http' or 'local'
	User   string // might be empty for http(s) and local urls
	Host   string // host or host:port
	Path   string // path to the repo
	Repo   string // repository name from the path includes .git
}

// NormaliseURL will return normalised url
func NormaliseURL(rawURL string) string {
	nURL := strings.ToLower(strings.TrimSpace(rawURL))
	nURL = strings.TrimRight(nURL, "/")

	return nURL
}

// Parse parses a raw url into a URL structure.
// valid git urls are...
//   - user@host.xz:path/to/repo.git
//   - ssh://user@host.xz[:port]/path/to/repo.git
//   - https://host.xz[:port]/path/to/repo.git
//   - http://host.xz[:port]/path/to/repo.git
//   - file:///path/to/repo.git
func Parse(rawURL string) (*URL, error) {
	gURL := &URL{}

	rawURL = NormaliseURL(rawURL)

	var rgx *regexp.Regexp

	switch {
	case IsSCPURL(rawURL):
		rgx, gURL.Scheme = scpURLRgx, SchemeSCP
	case IsSSHURL(rawURL):
		rgx, gURL.Scheme = sshURLRgx, SchemeSSH
	case IsHTTPSURL(rawURL):
		rgx, gURL.Scheme = httpsURLRgx, SchemeHTTPS
	case IsHTTPURL(rawURL):
		rgx, gURL.Scheme = httpURLRgx, SchemeHTTP
	case IsLocalURL(rawURL):
		rgx, gURL.Scheme = localURLRgx, SchemeLocal
	default:
		return nil, fmt.Errorf(
			"provided '%s' remote url is invalid, supported urls are 'user@host.xz:path/to/repo.git','ssh://user@host.xz/path/to/repo.git', 'http(s)://host.xz/path/to/repo.git' or 'file:///path/to/repo.git'",
			rawURL)
	}

	sections := rgx.FindStringSubmatch(rawURL)
	for i, name := range rgx.SubexpNames() {
		switch name {
		case "user":
			gURL.User = sections[i]
		case "host":
			gURL.Host = sections[i]
		case "path":
			gURL.Path = sections[i]
		case "repo":
			gURL.Repo = sections[i]
		}
	}

	// scp path doesn't have leading "/"
	// also removing training "/" for consistency
	gURL.Path = strings.Trim(gURL.Path, "/")

	if gURL.Path == "" && gURL.Scheme != SchemeLocal {
		return nil, fmt.Errorf("repo path (org) cannot be empty")
	}
	if gURL.Repo == "" || gURL.Repo == ".git" {
		return nil, fmt.Errorf("repo name is invalid")
	}

	return gURL, nil
}

// IsSSH returns true if the URL will be fetched over ssh transport
func (u *URL) IsSSH() bool {
	return u.Scheme == SchemeSCP || u.Scheme == SchemeSSH
}

// IsHTTP returns true if the URL will be fetched over http(s) transport
func (u *URL) IsHTTP() bool {
	return u.Scheme == SchemeHTTPS || u.Scheme == SchemeHTTP
}

// IsSCPURL returns true if supplied URL is scp-like syntax
func IsSCPURL(rawURL string) bool {
	return scpURLRgx.MatchString(rawURL)
}

// IsSSHURL returns true if supplied URL is SSH URL
func IsSSHURL(rawURL string) bool {
	return sshURLRgx.MatchString(rawURL)
}

// IsHTTPSURL returns true if supplied URL is HTTPS URL
func IsHTTPSURL(rawURL string) bool {
	return httpsURLRgx.MatchString(rawURL)
}

// IsHTTPURL returns true if supplied URL is plain HTTP URL
func IsHTTPURL(rawURL string) bool {
	return httpURLRgx.MatchString(rawURL)
}

// IsLocalURL returns true if supplied URL is file URL
func IsLocalURL(rawURL string) bool {
	return localURLRgx.MatchString(rawURL)
}
