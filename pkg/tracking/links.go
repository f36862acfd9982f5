package tracking

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	bareLinkPattern = regexp.MustCompile(`\bhttps?://[^\s<"]+`)
	hrefPattern     = regexp.MustCompile(`(href)\s*=\s*["'](https?://[^"']+)["']`)
	anchorOpen      = regexp.MustCompile(`(?i)<a[\s>]`)
	anchorClose     = regexp.MustCompile(`(?i)</a\s*>`)
)

// ClickPath is the route that resolves click tokens.
const ClickPath = "/t/c/"

// Linker rewrites links in an email body into signed click-tracking redirects.
type Linker struct {
	domain string
	signer *Signer
}

func NewLinker(domain string, signer *Signer) *Linker {
	return &Linker{domain: domain, signer: signer}
}

// ClickURL returns the tracking redirect for target.
func (l *Linker) ClickURL(leadID, emailID, target string) (string, error) {
	token, err := l.signer.SignClick(leadID, emailID, target)
	if err != nil {
		return "", err
	}

	return "https://" + l.domain + ClickPath + url.PathEscape(token), nil
}

// PrepareBody wraps bare links in anchors and points every href at the tracking redirect.
// Links already on the tracking domain are left as they are.
func (l *Linker) PrepareBody(body, leadID, emailID string) (string, error) {
	return l.RewriteLinks(WrapPlainLinks(body), leadID, emailID)
}

// RewriteLinks replaces http(s) href targets with signed tracking URLs.
func (l *Linker) RewriteLinks(body, leadID, emailID string) (string, error) {
	var rewriteErr error

	rewritten := hrefPattern.ReplaceAllStringFunc(body, func(match string) string {
		groups := hrefPattern.FindStringSubmatch(match)
		original := groups[2]

		if strings.Contains(original, l.domain) || rewriteErr != nil {
			return match
		}

		tracked, err := l.ClickURL(leadID, emailID, original)
		if err != nil {
			rewriteErr = err

			return match
		}

		return fmt.Sprintf(`%s="%s"`, groups[1], tracked)
	})
	if rewriteErr != nil {
		return "", rewriteErr
	}

	return rewritten, nil
}

// WrapPlainLinks turns bare http(s) URLs into <a href> anchors. URLs that are already an
// href value or sit inside an anchor are untouched.
func WrapPlainLinks(text string) string {
	matches := bareLinkPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var out strings.Builder

	last := 0

	for _, m := range matches {
		start, end := m[0], m[1]
		if isHrefValue(text, start) || insideAnchor(text, start) {
			continue
		}

		link := text[start:end]

		out.WriteString(text[last:start])
		fmt.Fprintf(&out, `<a href="%s">%s</a>`, link, link)

		last = end
	}

	out.WriteString(text[last:])

	return out.String()
}

func isHrefValue(text string, start int) bool {
	prefix := text[:start]

	return strings.HasSuffix(prefix, `href="`) || strings.HasSuffix(prefix, `href='`)
}

func insideAnchor(text string, start int) bool {
	prefix := text[:start]

	opens := anchorOpen.FindAllStringIndex(prefix, -1)
	if len(opens) == 0 {
		return false
	}

	closes := anchorClose.FindAllStringIndex(prefix, -1)
	if len(closes) == 0 {
		return true
	}

	return opens[len(opens)-1][0] > closes[len(closes)-1][0]
}
