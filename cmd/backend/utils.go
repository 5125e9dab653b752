package backend

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/buger/jsonparser"

	"gitlab.com/alternet/naming-service/internal/config"
)

// Utils talks to the REST API of the node running on this machine.
type Utils struct {
	// Client defaults to an http.Client with a generous timeout, since
	// resolving and registering wait for the DHT.
	Client *http.Client
}

func (u *Utils) client() *http.Client {
	if u.Client != nil {
		return u.Client
	}
	return &http.Client{Timeout: 2 * time.Minute}
}

// ResponseBody sends the request to http://localhost:<rest.port><endpoint>
// and returns the response body. Error statuses come back as an error built
// from the problem detail in the body.
func (u *Utils) ResponseBody(method, endpoint, query string, body []byte) ([]byte, error) {
	target := url.URL{
		Scheme:   "http",
		Host:     fmt.Sprintf("localhost:%d", config.GetConfig().Rest.Port),
		Path:     endpoint,
		RawQuery: query,
	}

	var reqBody io.Reader
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, target.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("unable to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := u.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to reach the node API: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("unable to read response body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return respBody, ProblemError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// ProblemError turns a problem detail response into an error message.
func ProblemError(status int, body []byte) error {
	title, err := jsonparser.GetString(body, "title")
	if err != nil {
		title = http.StatusText(status)
	}
	msg := title
	if detail, err := jsonparser.GetString(body, "detail"); err == nil && detail != "" {
		msg += ": " + detail
	}
	_, _ = jsonparser.ArrayEach(body, func(value []byte, _ jsonparser.ValueType, _ int, _ error) {
		detail, _ := jsonparser.GetString(value, "detail")
		pointer, _ := jsonparser.GetString(value, "pointer")
		msg += fmt.Sprintf("\n  %s %s", pointer, detail)
	}, "errors")
	return fmt.Errorf("%s (HTTP %d)", msg, status)
}
