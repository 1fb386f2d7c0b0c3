package server

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"

	"github.com/launchkit-dev/launchkit/internal/gate"
	"github.com/launchkit-dev/launchkit/internal/seo"
	"github.com/launchkit-dev/launchkit/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutTemplate = "templates/layout.html"

// loadPages parses every page template together with the shared layout
func loadPages() (map[string]*template.Template, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	pages := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutTemplate {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.ParseFS(templateFS, layoutTemplate, file)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// pageData is passed to every page template
type pageData struct {
	SiteName    string
	Title       string
	Description string
	Canonical   string
	ThemeColor  string
	Keywords    string
	Author      string
	JSONLD      template.JS
	Path        string
	LoginPath   string
	Session     *session.Session
	Error       string
	Form        map[string]string
	Year        int
}

func (s *Server) site() seo.Site {
	return seo.Site{
		Name:        s.config.Site.Name,
		Description: s.config.Site.Description,
		BaseURL:     s.config.Site.BaseURL,
		Locale:      s.config.Site.Locale,
		Author:      s.config.Site.Author,
		ThemeColor:  s.config.Site.ThemeColor,
		Background:  s.config.Site.Background,
	}
}

func (s *Server) newPageData(c *gin.Context, title string) pageData {
	sess, _ := gate.SessionFrom(c)
	p := gate.PathnameFrom(c)

	return pageData{
		SiteName:    s.config.Site.Name,
		Title:       title,
		Description: s.config.Site.Description,
		Canonical:   seo.CanonicalURL(s.config.Site.BaseURL, p),
		ThemeColor:  s.config.Site.ThemeColor,
		Keywords:    strings.Join(s.config.Site.Keywords, ", "),
		Author:      s.config.Site.Author,
		Path:        p,
		LoginPath:   s.config.Session.LoginPath,
		Session:     sess,
		Form:        map[string]string{},
		Year:        time.Now().Year(),
	}
}

func (s *Server) renderPage(c *gin.Context, status int, page string, data pageData) {
	tmpl, ok := s.pages[page]
	if !ok {
		s.logger.Error().Str("page", page).Msg("Unknown page template")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Render(status, render.HTML{Template: tmpl, Name: "layout", Data: data})
}

func (s *Server) homePage(c *gin.Context) {
	data := s.newPageData(c, s.config.Site.Name+" - "+s.config.Site.Description)

	jsonld, err := seo.Marshal(seo.WebSite(s.site()), seo.WebPage(s.site(), s.config.Site.Name, "/", ""))
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to build structured data")
	} else {
		data.JSONLD = template.JS(jsonld)
	}

	s.renderPage(c, http.StatusOK, "home", data)
}

func (s *Server) offlinePage(c *gin.Context) {
	s.renderPage(c, http.StatusOK, "offline", s.newPageData(c, "Offline"))
}

func (s *Server) notFoundPage(c *gin.Context) {
	s.renderPage(c, http.StatusNotFound, "not_found", s.newPageData(c, "Page not found"))
}

func (s *Server) loginPage(c *gin.Context) {
	s.renderLogin(c, http.StatusOK, "", "")
}

func (s *Server) renderLogin(c *gin.Context, status int, email, message string) {
	data := s.newPageData(c, "Login")
	data.Description = "Login to your account"
	data.Error = message
	data.Form["email"] = email
	s.setAuthPageJSONLD(&data, "Login", s.config.Session.LoginPath)
	s.renderPage(c, status, "login", data)
}

func (s *Server) registerPage(c *gin.Context) {
	s.renderRegister(c, http.StatusOK, RegisterForm{}, "")
}

func (s *Server) renderRegister(c *gin.Context, status int, form RegisterForm, message string) {
	data := s.newPageData(c, "Register")
	data.Description = "Register to your account"
	data.Error = message
	data.Form["name"] = form.Name
	data.Form["email"] = form.Email
	s.setAuthPageJSONLD(&data, "Register", "/register")
	s.renderPage(c, status, "register", data)
}

// setAuthPageJSONLD describes an auth page and its Home > page breadcrumb
func (s *Server) setAuthPageJSONLD(data *pageData, name, pagePath string) {
	jsonld, err := seo.Marshal(
		seo.WebPage(s.site(), name, pagePath, data.Description),
		seo.BreadcrumbList(s.site(), []seo.Crumb{{Name: "Home", Path: "/"}, {Name: name}}),
	)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to build structured data")
		return
	}
	data.JSONLD = template.JS(jsonld)
}

// dashboardPage renders for the session resolved by the protected layout.
// Under a fail-open policy the session may be absent.
func (s *Server) dashboardPage(c *gin.Context) {
	data := s.newPageData(c, "Dashboard")
	s.renderPage(c, http.StatusOK, "dashboard", data)
}
