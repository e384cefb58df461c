package services

import (
	"net/url"
	"strings"
)

// Hosts whose name contains one of these fragments serve images directly.
var imageHostFragments = []string{
	"imgur.com",
	"images.unsplash.com",
	"cdn.",
	"i.redd.it",
	"media.",
	"img",
	"cloudinary.com",
	"imagedelivery.net",
}

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".avif"}

// ValidateImageURL accepts http(s) URLs on an allow-listed image host or
// whose path ends in an image extension.
func ValidateImageURL(field, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid(field, "image URL is required")
	}
	if IsAllowedImageURL(raw) {
		return nil
	}
	return invalid(field, "invalid image URL: only Imgur links and direct image URLs are allowed")
}

func IsAllowedImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := strings.ToLower(u.Hostname())
	for _, frag := range imageHostFragments {
		if strings.Contains(host, frag) {
			return true
		}
	}

	p := strings.ToLower(u.Path)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}
	return false
}
