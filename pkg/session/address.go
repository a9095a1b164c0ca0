package session

import (
	"net/url"

	canvaserrors "github.com/odvcencio/codecanvas/pkg/errors"
)

// BuildAddress derives the channel address from the API base URL. A secure
// base (https) yields a secure channel scheme (wss); anything else yields
// ws. The bearer credential rides as a query parameter because the channel
// handshake carries no headers of its own.
func BuildAddress(baseURL, principalID, projectID, credential string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", canvaserrors.Wrap(err, canvaserrors.ErrCodeInvalidInput, "invalid server url")
	}
	if u.Host == "" {
		return "", canvaserrors.New(canvaserrors.ErrCodeInvalidInput, "server url has no host").
			WithContext("url", baseURL)
	}

	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws/" + principalID + "/" + projectID

	q := url.Values{}
	q.Set("token", credential)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
