package echoutil

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
)

// LogHandlerFunc logs each request, and its response with server-side latency.
//
// Errors are logged here as returned by handlers, before echo renders them.
func LogHandlerFunc(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		begin := time.Now()
		c.Logger().Infof("< %s %s from %s", req.Method, req.URL, c.RealIP())

		err := next(c)

		res := c.Response()
		if err != nil {
			c.Logger().Infof(
				"> %s %s: error in %v: %v", req.Method, req.URL, time.Since(begin), err,
			)
		} else {
			c.Logger().Infof(
				"> %s %s: %d (%d bytes) in %v",
				req.Method, req.URL, res.Status, res.Size, time.Since(begin),
			)
		}
		return err
	}
}

var levels = map[string]log.Lvl{
	"debug": log.DEBUG,
	"info":  log.INFO,
	"warn":  log.WARN,
	"":      log.WARN,
	"error": log.ERROR,
	"off":   log.OFF,
}

// SetLevel sets log level of e by name (debug|info|warn|error|off, case insensitive).
//
// Unknown names fall back to warn with a warning.
func SetLevel(e *echo.Echo, loglevel string) {
	lvl, ok := levels[strings.ToLower(loglevel)]
	if !ok {
		e.Logger.SetLevel(log.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
		return
	}
	e.Logger.SetLevel(lvl)
}
