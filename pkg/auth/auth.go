// Package auth creates GitHub App installation access tokens.
// Tokens are exposed as an oauth2.TokenSource so the same source can
// authenticate API discovery calls and https git transport.
package auth

import (
	"bytes"
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"golang.org/x/oauth2"
)

const (
	DefaultGithubAPIURL = "https://api.github.com"

	// token will be refreshed if it expires within this window
	tokenExpiryDelta = 10 * time.Minute
)

// GithubApp holds the details required to request installation tokens
type GithubApp struct {
	// API root, defaults to https://api.github.com
	APIURL string
	// The application id or the client ID of the Github app
	AppID string
	// The installation id of the app (in the organization).
	InstallationID string
	// path to the github app private key
	PrivateKeyPath string
	// optional http client, http.DefaultClient is used if nil
	HTTPClient *http.Client
}

type GithubAppTokenReqPermissions struct {
	Repositories []string          `json:"repositories,omitempty"`
	Permissions  map[string]string `json:"permissions"`
}

type GithubAppToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// backupPermissions are the permissions requested for installation tokens,
// mirroring needs read access to contents of every installation repository
var backupPermissions = GithubAppTokenReqPermissions{
	Permissions: map[string]string{"contents": "read", "metadata": "read"},
}

// NewGithubAppTokenSource returns a token source which requests a new
// installation token when the cached one is about to expire.
func NewGithubAppTokenSource(ctx context.Context, app GithubApp) oauth2.TokenSource {
	return oauth2.ReuseTokenSourceWithExpiry(nil, &appTokenSource{ctx: ctx, app: app}, tokenExpiryDelta)
}

type appTokenSource struct {
	ctx context.Context
	app GithubApp
}

func (s *appTokenSource) Token() (*oauth2.Token, error) {
	token, err := GithubAppInstallationToken(s.ctx, s.app, backupPermissions)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token.Token,
		Expiry:      token.ExpiresAt,
	}, nil
}

// GithubAppInstallationToken requests new installation access token for the app
func GithubAppInstallationToken(ctx context.Context, app GithubApp, reqPerms GithubAppTokenReqPermissions) (*GithubAppToken, error) {
	privateKey, err := readPrivateKey(app.PrivateKeyPath)
	if err != nil {
		return nil, err
	}

	jwtToken, err := signAppJWT(app.AppID, privateKey, time.Now())
	if err != nil {
		return nil, fmt.Errorf("unable to sign app jwt err:%w", err)
	}

	reqBody, err := json.Marshal(reqPerms)
	if err != nil {
		return nil, err
	}

	apiURL := strings.TrimRight(app.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultGithubAPIURL
	}
	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", apiURL, app.InstallationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	client := app.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		errMessage, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("GitHub app token response status %d, body:%q  err:%w", resp.StatusCode, errMessage, err)
	}

	var tokenResponse GithubAppToken
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, err
	}

	return &tokenResponse, nil
}

func signAppJWT(appID string, key *rsa.PrivateKey, now time.Time) (string, error) {
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, nil)
	if err != nil {
		return "", err
	}

	cl := jwt.Claims{
		// GitHub App's ID or client ID
		Issuer: appID,
		// issued at time, 60 seconds in the past to allow for clock drift
		IssuedAt: jwt.NewNumericDate(now.Add(-60 * time.Second)),
		// JWT expiration time (10 minute maximum)
		Expiry: jwt.NewNumericDate(now.Add(10 * time.Minute)),
	}

	return jwt.Signed(signer).Claims(cl).Serialize()
}

// readPrivateKey reads PKCS1 ("RSA PRIVATE KEY") or PKCS8 ("PRIVATE KEY")
// encoded RSA key. GitHub generates PKCS1 keys but converted keys are common.
func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	privatePEMData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(privatePEMData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, err
		}
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("private key is not an RSA key")
		}
		return rsaKey, nil
	default:
		return nil, fmt.Errorf("unsupported PEM block type %q", block.Type)
	}
}
