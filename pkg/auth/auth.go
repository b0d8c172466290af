// Package auth mints GitHub App installation tokens which can be used
// to fetch private source repositories over https.
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

	"github.com/hjoncour/gh-to-gl-migrator/internal/lock"
)

const defaultAPIURL = "https://api.github.com"

// token is reused until it's valid for less than this duration
const renewBefore = 10 * time.Minute

type GithubAppTokenReqPermissions struct {
	Repositories []string          `json:"repositories"`
	Permissions  map[string]string `json:"permissions"`
}

type GithubAppToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// GithubApp holds GitHub App credentials and caches the last issued
// installation token. A GithubApp is safe for concurrent use.
type GithubApp struct {
	AppID          string
	InstallationID string
	PrivateKeyPath string

	// APIURL of GitHub, default is https://api.github.com
	APIURL     string
	HTTPClient *http.Client

	lock  lock.Mutex
	token *GithubAppToken
}

// Token returns installation token with read access to contents of the
// given repository (name without owner and '.git').
func (a *GithubApp) Token(ctx context.Context, repo string) (string, error) {
	a.lock.Lock()
	defer a.lock.Unlock()

	if a.token != nil && a.token.ExpiresAt.After(time.Now().UTC().Add(renewBefore)) {
		return a.token.Token, nil
	}

	key, err := readPrivateKey(a.PrivateKeyPath)
	if err != nil {
		return "", err
	}

	perms := GithubAppTokenReqPermissions{
		Repositories: []string{strings.TrimSuffix(repo, ".git")},
		Permissions:  map[string]string{"contents": "read"},
	}

	token, err := InstallationToken(ctx, a.HTTPClient, a.APIURL, a.AppID, a.InstallationID, key, perms)
	if err != nil {
		return "", err
	}
	a.token = token
	return token.Token, nil
}

func readPrivateKey(path string) (*rsa.PrivateKey, error) {
	privatePEMData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(privatePEMData)
	if block == nil || block.Type != "RSA PRIVATE KEY" {
		return nil, fmt.Errorf("failed to decode PEM block containing private key")
	}

	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

// signAppJWT returns the JWT used to authenticate as the GitHub App
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

// InstallationToken requests new installation access token for the app
func InstallationToken(ctx context.Context, client *http.Client, apiURL string,
	appID, installationID string, key *rsa.PrivateKey, reqPerms GithubAppTokenReqPermissions,
) (*GithubAppToken, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}

	jwtToken, err := signAppJWT(appID, key, time.Now())
	if err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(reqPerms)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", strings.TrimRight(apiURL, "/"), installationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+jwtToken)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		errMessage, err := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("GitHub app token response status %d, body:%q  err:%w", resp.StatusCode, errMessage, err)
	}

	var tokenResponse GithubAppToken
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return nil, err
	}

	return &tokenResponse, nil
}
