package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	apiartifacts "github.com/opst/fieldarchive/pkg/api/types/artifacts"
	apierr "github.com/opst/fieldarchive/pkg/api/types/errors"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/domain"
)

// ListArtifactsHandler responds artifacts matching query parameters
// "state", "project", "deviceType" and "endpoint".
func ListArtifactsHandler(dbArtifacts kdb.ArtifactInterface) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		query := kdb.ArtifactQuery{
			Project:    c.QueryParam("project"),
			DeviceType: c.QueryParam("deviceType"),
			Endpoint:   c.QueryParam("endpoint"),
		}
		if s := c.QueryParam("state"); s != "" {
			state, err := domain.AsArtifactState(s)
			if err != nil {
				return apierr.BadRequest(
					fmt.Sprintf(
						"state should be one of %s, %s, %s or %s",
						domain.Pending, domain.Uploading, domain.Archived, domain.Placeholder,
					),
					err,
				)
			}
			query.State = state
		}

		found, err := dbArtifacts.Find(ctx, query)
		if err != nil {
			return apierr.InternalServerError(err)
		}

		resp := make([]apiartifacts.Summary, len(found))
		for nth, a := range found {
			resp[nth] = apiartifacts.ComposeSummary(a)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// GetArtifactHandler responds an artifact with its members.
func GetArtifactHandler(dbArtifacts kdb.ArtifactInterface, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		name := c.Param(paramName)

		a, err := dbArtifacts.Get(ctx, name)
		if err != nil {
			if errors.Is(err, kdb.ErrMissing) {
				return apierr.NotFound()
			}
			return apierr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, apiartifacts.ComposeDetail(a))
	}
}

type Deleter interface {
	Delete(ctx context.Context, name string, force bool) error
}

// DeleteArtifactHandler deletes an artifact.
//
// With query "force=true", the remote copy and member files are deleted too.
func DeleteArtifactHandler(deleter Deleter, paramName string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		name := c.Param(paramName)

		force := false
		if f := c.QueryParam("force"); f != "" {
			b, err := strconv.ParseBool(f)
			if err != nil {
				return apierr.BadRequest(`force should be "true" or "false"`, err)
			}
			force = b
		}

		if err := deleter.Delete(ctx, name, force); err != nil {
			if refused := new(domain.DeletionRefused); errors.As(err, &refused) {
				return apierr.Conflict(
					refused.Error(),
					apierr.WithHeldBy(refused.HeldBy),
					apierr.WithError(err),
				)
			}
			switch {
			case errors.Is(err, kdb.ErrMissing):
				return apierr.NotFound()
			case errors.Is(err, kdb.ErrConflict):
				return apierr.Conflict(
					"artifact is being uploaded",
					apierr.WithAdvice("retry after the upload finishes"),
					apierr.WithError(err),
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.NoContent(http.StatusNoContent)
	}
}
