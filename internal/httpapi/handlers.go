package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/newsdesk/internal/globaltime"
	"horse.fit/newsdesk/internal/news"
	"horse.fit/newsdesk/internal/orchestrate"
)

const healthCheckTimeout = 2 * time.Second

func (s *Server) handleHealth(c echo.Context) error {
	backends := map[string]string{}
	healthy := true
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		err := check(checkCtx)
		cancel()
		if err != nil {
			backends[name] = err.Error()
			healthy = false
			continue
		}
		backends[name] = "ok"
	}

	data := map[string]any{
		"service":  "newsdesk",
		"time":     globaltime.UTC(),
		"backends": backends,
	}
	if !healthy {
		return fail(c, http.StatusServiceUnavailable, "Degraded", data)
	}
	return success(c, data)
}

func (s *Server) handleNews(c echo.Context) error {
	q := news.Query{
		Countries:   splitCSV(c.QueryParam("countries")),
		Categories:  splitCSV(c.QueryParam("categories")),
		SearchTerms: splitTerms(c.QueryParam("q")),
		RangeToken:  strings.TrimSpace(c.QueryParam("range")),
		Sources:     splitCSV(c.QueryParam("sources")),
		LangMode:    strings.TrimSpace(c.QueryParam("lang")),
		Popularity:  strings.EqualFold(strings.TrimSpace(c.QueryParam("sort")), "popular"),
	}

	resp, err := s.svc.Handle(c.Request().Context(), q)
	if err != nil {
		if errors.Is(err, orchestrate.ErrNoProviders) {
			s.logger.Error().Err(err).Msg("news request rejected")
			return fail(c, http.StatusServiceUnavailable, "No news providers configured", nil)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn().Err(err).Msg("news request aborted")
			return fail(c, http.StatusGatewayTimeout, "Upstream fetch timed out", nil)
		}
		return failValidation(c, map[string]string{"query": err.Error()})
	}

	return success(c, resp)
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitTerms breaks a free-text query into search terms on whitespace.
func splitTerms(raw string) []string {
	return strings.Fields(strings.TrimSpace(raw))
}
