package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/launchkit-dev/launchkit/internal/routes"
	"github.com/launchkit-dev/launchkit/internal/seo"
)

// sitemapPages are the static pages advertised to crawlers
var sitemapPages = []seo.Page{
	{Path: "/", ChangeFreq: "weekly", Priority: 1},
}

var startedAt = time.Now()

func (s *Server) sitemap(c *gin.Context) {
	var pages []seo.Page
	for _, p := range sitemapPages {
		if s.config.Routes.Classify(p.Path) == routes.Public {
			pages = append(pages, p)
		}
	}

	body, err := seo.Sitemap(s.site(), pages, startedAt)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to render sitemap")
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", body)
}

func (s *Server) manifest(c *gin.Context) {
	c.Header("Content-Type", "application/manifest+json")
	c.JSON(http.StatusOK, seo.NewManifest(s.site()))
}

// robots disallows every non-public prefix in the route table
func (s *Server) robots(c *gin.Context) {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	for _, rule := range s.config.Routes.Rules() {
		if rule.Class != routes.Public {
			fmt.Fprintf(&b, "Disallow: %s\n", rule.Prefix)
		}
	}
	fmt.Fprintf(&b, "Sitemap: %s\n", seo.CanonicalURL(s.config.Site.BaseURL, "/sitemap.xml"))

	c.String(http.StatusOK, b.String())
}
