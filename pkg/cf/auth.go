package cf

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// Credentials selects how tokens are obtained from UAA. Username/Password
// uses the resource-owner password grant (the usual operator login);
// when only ClientID/ClientSecret are set, the client-credentials grant is
// used instead.
type Credentials struct {
	Username     string
	Password     string
	ClientID     string
	ClientSecret string
}

// defaultClientID is the public CLI client UAA ships with.
const defaultClientID = "cf"

// TokenSource builds a self-refreshing oauth2 token source against the UAA
// token endpoint. skipTLSVerify also applies to the token requests.
func TokenSource(ctx context.Context, uaaURL string, creds Credentials, skipTLSVerify bool) (oauth2.TokenSource, error) {
	clientID := creds.ClientID
	if clientID == "" {
		clientID = defaultClientID
	}
	tokenURL := uaaURL + "/oauth/token"

	// The oauth2 transport used for the token exchange itself.
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{
		Timeout:   30 * time.Second,
		Transport: transportFor(skipTLSVerify),
	})

	if creds.Username != "" {
		conf := &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInHeader},
		}
		token, err := conf.PasswordCredentialsToken(ctx, creds.Username, creds.Password)
		if err != nil {
			return nil, fmt.Errorf("uaa password grant: %w", err)
		}
		return conf.TokenSource(ctx, token), nil
	}

	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("either username/password or client_id/client_secret must be configured")
	}
	conf := &clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}
	return conf.TokenSource(ctx), nil
}

func transportFor(skipTLSVerify bool) http.RoundTripper {
	if !skipTLSVerify {
		return http.DefaultTransport
	}
	return &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}
