// Package seo builds the sitemap, web app manifest and JSON-LD documents
// served by the marketing site.
package seo

import (
	"encoding/json"
	"encoding/xml"
	"strings"
	"time"
)

// Site is the metadata the builders draw from
type Site struct {
	Name        string
	Description string
	BaseURL     string // no trailing slash
	Locale      string
	Author      string
	ThemeColor  string
	Background  string
}

// CanonicalURL joins base and path with exactly one slash. An empty path
// returns base unchanged.
func CanonicalURL(base, path string) string {
	base = strings.TrimSuffix(base, "/")
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// SitemapEntry is one <url> element
type SitemapEntry struct {
	Loc        string  `xml:"loc"`
	LastMod    string  `xml:"lastmod,omitempty"`
	ChangeFreq string  `xml:"changefreq,omitempty"`
	Priority   float64 `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name       `xml:"urlset"`
	XMLNS   string         `xml:"xmlns,attr"`
	URLs    []SitemapEntry `xml:"url"`
}

// Page is a public page listed in the sitemap
type Page struct {
	Path       string
	ChangeFreq string
	Priority   float64
}

// Sitemap renders an XML sitemap for pages
func Sitemap(site Site, pages []Page, lastMod time.Time) ([]byte, error) {
	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range pages {
		set.URLs = append(set.URLs, SitemapEntry{
			Loc:        CanonicalURL(site.BaseURL, p.Path),
			LastMod:    lastMod.UTC().Format(time.RFC3339),
			ChangeFreq: p.ChangeFreq,
			Priority:   p.Priority,
		})
	}

	out, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// ManifestIcon is a web app manifest icon
type ManifestIcon struct {
	Src     string `json:"src"`
	Sizes   string `json:"sizes"`
	Type    string `json:"type"`
	Purpose string `json:"purpose,omitempty"`
}

// Manifest is a web app manifest
type Manifest struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	ShortName       string         `json:"short_name"`
	Description     string         `json:"description"`
	StartURL        string         `json:"start_url"`
	Scope           string         `json:"scope"`
	Display         string         `json:"display"`
	Orientation     string         `json:"orientation"`
	BackgroundColor string         `json:"background_color"`
	ThemeColor      string         `json:"theme_color"`
	Lang            string         `json:"lang"`
	Icons           []ManifestIcon `json:"icons"`
}

// NewManifest builds the standalone-app manifest for site
func NewManifest(site Site) Manifest {
	return Manifest{
		ID:              "/",
		Name:            site.Name,
		ShortName:       site.Name,
		Description:     site.Description,
		StartURL:        "/",
		Scope:           "/",
		Display:         "standalone",
		Orientation:     "portrait",
		BackgroundColor: site.Background,
		ThemeColor:      site.Background,
		Lang:            site.Locale,
		Icons: []ManifestIcon{
			{Src: "/android-chrome-192x192.png", Sizes: "192x192", Type: "image/png"},
			{Src: "/android-chrome-512x512.png", Sizes: "512x512", Type: "image/png"},
			{Src: "/apple-touch-icon.png", Sizes: "180x180", Type: "image/png", Purpose: "any"},
		},
	}
}

const schemaContext = "https://schema.org"

// Thing is a generic JSON-LD node
type Thing map[string]any

// WebSite returns a schema.org WebSite node published by the site itself
func WebSite(site Site) Thing {
	node := Thing{
		"@context":    schemaContext,
		"@type":       "WebSite",
		"name":        site.Name,
		"url":         site.BaseURL,
		"description": site.Description,
		"inLanguage":  site.Locale,
		"publisher": Thing{
			"@type": "Organization",
			"name":  site.Name,
			"url":   site.BaseURL,
		},
	}
	if site.Author != "" {
		node["author"] = Thing{
			"@type": "Organization",
			"name":  site.Author,
		}
	}
	return node
}

// WebPage returns a schema.org WebPage node for path
func WebPage(site Site, name, path, description string) Thing {
	if description == "" {
		description = site.Description
	}
	return Thing{
		"@context":    schemaContext,
		"@type":       "WebPage",
		"name":        name,
		"url":         CanonicalURL(site.BaseURL, path),
		"description": description,
		"inLanguage":  site.Locale,
		"isPartOf":    WebSite(site),
	}
}

// Crumb is a breadcrumb item; Path may be empty for the current page
type Crumb struct {
	Name string
	Path string
}

// BreadcrumbList returns a schema.org BreadcrumbList, positions starting at 1
func BreadcrumbList(site Site, crumbs []Crumb) Thing {
	items := make([]Thing, 0, len(crumbs))
	for i, c := range crumbs {
		item := Thing{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     c.Name,
		}
		if c.Path != "" {
			item["item"] = CanonicalURL(site.BaseURL, c.Path)
		}
		items = append(items, item)
	}
	return Thing{
		"@context":        schemaContext,
		"@type":           "BreadcrumbList",
		"itemListElement": items,
	}
}

// Marshal encodes one or more nodes for a <script type="application/ld+json"> tag
func Marshal(nodes ...Thing) (string, error) {
	var v any = nodes
	if len(nodes) == 1 {
		v = nodes[0]
	}
	out, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
