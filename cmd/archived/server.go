package main

import (
	"fmt"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/opst/fieldarchive/cmd/archived/handlers"
	"github.com/opst/fieldarchive/pkg/api/auth"
	kdb "github.com/opst/fieldarchive/pkg/db"
	"github.com/opst/fieldarchive/pkg/utils/echoutil"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var API_ROOT = "/api"

func api(subpath string) string {
	if !strings.HasSuffix(subpath, "/") {
		subpath += "/"
	}
	return fmt.Sprintf("%s/%s", API_ROOT, subpath)
}

// BuildServer builds the operator API.
//
// Routes under API_ROOT require a bearer token signed with tokenSecret.
// "/metrics" is open.
func BuildServer(db kdb.Database, deleter handlers.Deleter, tokenSecret []byte, loglevel string) *echo.Echo {
	e := echo.New()
	echoutil.SetLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, ctx echo.Context) {
		e.DefaultHTTPErrorHandler(err, ctx)
		e.Logger.Error(err)
	}

	e.Pre(middleware.AddTrailingSlash())
	e.Use(echoutil.LogHandlerFunc)

	e.GET("/metrics/", echo.WrapHandler(promhttp.Handler()))

	authn := auth.Middleware(tokenSecret)
	e.GET(api("artifacts"), handlers.ListArtifactsHandler(db.Artifacts()), authn)
	e.GET(api("artifacts/:name"), handlers.GetArtifactHandler(db.Artifacts(), "name"), authn)
	e.DELETE(api("artifacts/:name"), handlers.DeleteArtifactHandler(deleter, "name"), authn)

	return e
}
