// Package forge talks to the target forge (GitLab) REST API.
package forge

import (
	"fmt"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// ClientOptions configures how GitLab API clients are created
type ClientOptions struct {
	// Scheme of the API endpoint, default is https
	Scheme string
	// HTTPClient used for API calls, default is http.DefaultClient
	HTTPClient *http.Client
}

func (o ClientOptions) baseURL(host string) string {
	scheme := o.Scheme
	if scheme == "" {
		scheme = "https"
	}
	// client adds 'api/v4/' path
	return fmt.Sprintf("%s://%s/", scheme, host)
}

// newClient returns GitLab API client for given host. requests are never
// retried by the client.
func (o ClientOptions) newClient(host, token string) (*gitlab.Client, error) {
	opts := []gitlab.ClientOptionFunc{
		gitlab.WithBaseURL(o.baseURL(host)),
		gitlab.WithoutRetries(),
	}
	if o.HTTPClient != nil {
		opts = append(opts, gitlab.WithHTTPClient(o.HTTPClient))
	}
	return gitlab.NewClient(token, opts...)
}
