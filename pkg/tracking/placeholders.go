package tracking

import (
	"regexp"
	"time"

	"github.com/dukex/dripflow/pkg/models"
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// UnsubscribePath is the route that resolves unsubscribe tokens.
const UnsubscribePath = "/unsubscribe"

// Renderer substitutes {placeholder} tokens in subjects and bodies.
type Renderer struct {
	domain string
	signer *Signer
}

func NewRenderer(domain string, signer *Signer) *Renderer {
	return &Renderer{domain: domain, signer: signer}
}

// Render replaces tokens using, in order, the built-in functions current_date and
// unsubscribe_link, then the lead's fields. Unknown tokens are kept verbatim. now should
// already be in the owner's timezone.
func (r *Renderer) Render(text string, lead *models.Lead, now time.Time) (string, error) {
	values := lead.PlaceholderValues()

	var renderErr error

	rendered := placeholderPattern.ReplaceAllStringFunc(text, func(match string) string {
		key := match[1 : len(match)-1]

		switch key {
		case "current_date":
			return now.Format("02/01/2006")
		case "unsubscribe_link":
			link, err := r.UnsubscribeURL(lead.ID)
			if err != nil {
				renderErr = err

				return match
			}

			return link
		}

		if value, ok := values[key]; ok {
			return value
		}

		return match
	})
	if renderErr != nil {
		return "", renderErr
	}

	return rendered, nil
}

func (r *Renderer) UnsubscribeURL(leadID string) (string, error) {
	token, err := r.signer.SignUnsubscribe(leadID)
	if err != nil {
		return "", err
	}

	return "https://" + r.domain + UnsubscribePath + "?token=" + token, nil
}
