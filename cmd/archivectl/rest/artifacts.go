package rest

import (
	"context"
	"net/http"
	"strconv"

	apiartifacts "github.com/opst/fieldarchive/pkg/api/types/artifacts"
	kdb "github.com/opst/fieldarchive/pkg/db"
)

func (c *client) FindArtifacts(ctx context.Context, query kdb.ArtifactQuery) ([]apiartifacts.Summary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("artifacts")+"/", nil)
	if err != nil {
		return nil, err
	}

	q := req.URL.Query()
	for k, v := range map[string]string{
		"state":      query.State.String(),
		"project":    query.Project,
		"deviceType": query.DeviceType,
		"endpoint":   query.Endpoint,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	req.URL.RawQuery = q.Encode()

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	found := []apiartifacts.Summary{}
	if err := decodeJson(resp, &found, MessageFor{
		http.StatusBadRequest: "query is not acceptable",
	}); err != nil {
		return nil, err
	}
	return found, nil
}

func (c *client) GetArtifact(ctx context.Context, name string) (apiartifacts.Detail, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apipath("artifacts", name)+"/", nil)
	if err != nil {
		return apiartifacts.Detail{}, err
	}

	resp, err := c.do(req)
	if err != nil {
		return apiartifacts.Detail{}, err
	}
	defer resp.Body.Close()

	detail := apiartifacts.Detail{}
	if err := decodeJson(resp, &detail, MessageFor{
		http.StatusNotFound: "artifact " + name + " is not found",
	}); err != nil {
		return apiartifacts.Detail{}, err
	}
	return detail, nil
}

func (c *client) DeleteArtifact(ctx context.Context, name string, force bool) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.apipath("artifacts", name)+"/", nil)
	if err != nil {
		return err
	}
	if force {
		q := req.URL.Query()
		q.Set("force", strconv.FormatBool(force))
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return discard(resp, MessageFor{
		http.StatusNotFound: "artifact " + name + " is not found",
		http.StatusConflict: "artifact " + name + " cannot be deleted now",
	})
}
