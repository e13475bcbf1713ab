package email

import (
	"fmt"
	html "html/template"
	"strings"
	text "text/template"

	"github.com/vintasoftware/vintasend-go/pkg/notifications"
)

// Renderer produces the subject and HTML body for one notification from its
// resolved context.
type Renderer interface {
	Render(n notifications.Notification, renderContext notifications.Context) (subject, bodyHTML string, err error)
}

// TemplateRenderer renders the notification's inline templates with Go
// template syntax. The body is rendered with contextual HTML escaping, the
// subject as plain text. When the subject template is empty the notification
// title is used verbatim.
type TemplateRenderer struct{}

func (TemplateRenderer) Render(n notifications.Notification, renderContext notifications.Context) (string, string, error) {
	subject := n.Title
	if n.SubjectTemplate != "" {
		tmpl, err := text.New("subject").Parse(n.SubjectTemplate)
		if err != nil {
			return "", "", fmt.Errorf("%w: subject: %v", ErrRenderFailed, err)
		}
		var sb strings.Builder
		if err := tmpl.Execute(&sb, map[string]any(renderContext)); err != nil {
			return "", "", fmt.Errorf("%w: subject: %v", ErrRenderFailed, err)
		}
		subject = sb.String()
	}

	tmpl, err := html.New("body").Parse(n.BodyTemplate)
	if err != nil {
		return "", "", fmt.Errorf("%w: body: %v", ErrRenderFailed, err)
	}
	var bb strings.Builder
	if err := tmpl.Execute(&bb, map[string]any(renderContext)); err != nil {
		return "", "", fmt.Errorf("%w: body: %v", ErrRenderFailed, err)
	}

	return subject, bb.String(), nil
}
