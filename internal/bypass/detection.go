package bypass

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is the part of an HTTP response the detectors look at.
type Page struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector examines a page to determine if a bot protection mechanism
// blocked or challenged the request.
type Detector func(p *Page) (detected bool, source string)

// DefaultDetectors returns the standard list of bot protection detectors.
func DefaultDetectors() []Detector {
	return []Detector{
		detectCloudflare,
		detectAkamai,
		detectDataDome,
		detectPerimeterX,
		detectCaptchaTitle,
	}
}

// Analyze runs the page through the detectors in order and reports the
// source named by the first one that fires.
func Analyze(p *Page, detectors []Detector) (source string, detected bool) {
	if p == nil {
		return "", false
	}
	for _, d := range detectors {
		if ok, src := d(p); ok {
			return src, true
		}
	}
	return "", false
}

func header(p *Page, key string) string {
	if p.Header == nil {
		return ""
	}
	return p.Header.Get(key)
}

func detectCloudflare(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden && p.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(p, "Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cloudflare-nginx", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if bytes.Contains(p.Body, []byte(sig)) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}

func detectAkamai(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(p, "Server")), "akamai") {
		return true, "Akamai"
	}
	// Akamai's generic block page carries a "Reference #" id.
	if bytes.Contains(p.Body, []byte("Reference #")) && bytes.Contains(p.Body, []byte("Access Denied")) {
		return true, "Akamai"
	}
	return false, ""
}

func detectDataDome(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if strings.Contains(strings.ToLower(header(p, "Server")), "datadome") {
		return true, "DataDome"
	}
	if header(p, "X-DataDome") != "" || header(p, "X-DataDome-Response") != "" {
		return true, "DataDome"
	}
	if bytes.Contains(p.Body, []byte("geo.captcha-delivery.com")) || bytes.Contains(p.Body, []byte("datadome")) {
		return true, "DataDome"
	}
	return false, ""
}

func detectPerimeterX(p *Page) (bool, string) {
	if p.StatusCode != http.StatusForbidden {
		return false, ""
	}
	if header(p, "X-Px-Captcha") != "" {
		return true, "PerimeterX"
	}
	for _, sig := range []string{"client.perimeterx.net", "px-captcha", "_pxBlock"} {
		if bytes.Contains(p.Body, []byte(sig)) {
			return true, "PerimeterX"
		}
	}
	return false, ""
}

var captchaTitleHints = []string{
	"captcha",
	"unusual traffic",
	"are you a robot",
	"robot check",
	"ロボットではありません",
}

// detectCaptchaTitle catches interstitial challenge pages that are served
// with any status, by looking at the document title only.
func detectCaptchaTitle(p *Page) (bool, string) {
	if len(p.Body) == 0 {
		return false, ""
	}
	ct := strings.ToLower(header(p, "Content-Type"))
	if ct != "" && !strings.Contains(ct, "html") {
		return false, ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return false, ""
	}
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").First().Text()))
	if title == "" {
		return false, ""
	}
	for _, hint := range captchaTitleHints {
		if strings.Contains(title, hint) {
			return true, "Captcha"
		}
	}
	return false, ""
}
