package rest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	cerr "github.com/opst/fieldarchive/cmd/archivectl/errors"
	apierr "github.com/opst/fieldarchive/pkg/api/types/errors"
)

// MessageFor maps status codes to summaries of failed responses.
type MessageFor map[int]string

func (m MessageFor) summary(resp *http.Response) string {
	if msg, ok := m[resp.StatusCode]; ok {
		return fmt.Sprintf("%s (status code = %d)", msg, resp.StatusCode)
	}
	kind := "unexpected response"
	switch {
	case 500 <= resp.StatusCode:
		kind = "server error"
	case 400 <= resp.StatusCode:
		kind = "bad request"
	}
	return fmt.Sprintf("%s (status code = %d)", kind, resp.StatusCode)
}

func succeeded(resp *http.Response) bool {
	return 200 <= resp.StatusCode && resp.StatusCode < 300
}

// decodeJson reads a successful response into v, or makes an error from a failed one.
func decodeJson[T any](resp *http.Response, v *T, messageFor MessageFor) error {
	if !succeeded(resp) {
		return failure(resp, messageFor)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return cerr.New(
			fmt.Sprintf("broken response (status code = %d)", resp.StatusCode),
			cerr.WithCause(err),
		)
	}
	return nil
}

// discard drops the payload of a successful response, or makes an error from a failed one.
func discard(resp *http.Response, messageFor MessageFor) error {
	if !succeeded(resp) {
		return failure(resp, messageFor)
	}
	_, err := io.Copy(io.Discard, resp.Body)
	return err
}

// failure makes an error from a failed response.
//
// When the body is an API error message, it is the cause of the returned error.
func failure(resp *http.Response, messageFor MessageFor) error {
	summary := messageFor.summary(resp)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cerr.New(
			summary,
			cerr.WithDetail("cannot read server message: %s", err),
			cerr.WithCause(err),
		)
	}

	em := apierr.ErrorMessage{}
	if err := json.Unmarshal(body, &em); err != nil {
		return cerr.New(summary, cerr.WithDetail("%s", body))
	}
	return cerr.New(summary, cerr.WithDetail("%s", em.String()), cerr.WithCause(em))
}
