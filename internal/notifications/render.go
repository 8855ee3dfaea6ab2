package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/angelmondragon/expiry-tracker/pkg/enums"
)

//go:embed templates/digest.html
var templateFS embed.FS

// DigestItem is one row of the digest email.
type DigestItem struct {
	Name            string
	ExpiryDate      time.Time
	DaysUntilExpiry int
	Priority        enums.NotificationPriority
}

// DigestContext is the structured input handed to the template.
type DigestContext struct {
	Subject     string
	UserName    string
	Items       []DigestItem
	GeneratedAt time.Time
}

type digestRow struct {
	Name       string
	ExpiryDate string
	Summary    string
	Color      string
}

// Renderer turns a DigestContext into an HTML body.
type Renderer struct {
	tmpl *template.Template
}

func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/digest.html")
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

func (r *Renderer) Render(data DigestContext) (string, error) {
	rows := make([]digestRow, 0, len(data.Items))
	for _, item := range data.Items {
		rows = append(rows, digestRow{
			Name:       item.Name,
			ExpiryDate: item.ExpiryDate.Format("02 Jan 2006"),
			Summary:    summarize(item.DaysUntilExpiry),
			Color:      rowColor(item.Priority),
		})
	}

	var buf bytes.Buffer
	err := r.tmpl.Execute(&buf, map[string]any{
		"Subject":     data.Subject,
		"UserName":    data.UserName,
		"Items":       rows,
		"GeneratedAt": data.GeneratedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return buf.String(), nil
}

func summarize(days int) string {
	switch {
	case days < 0:
		return fmt.Sprintf("Expired %d days ago", -days)
	case days == 0:
		return "Expires today"
	case days == 1:
		return "Expires tomorrow"
	default:
		return fmt.Sprintf("Expires in %d days", days)
	}
}

func rowColor(priority enums.NotificationPriority) string {
	switch priority {
	case enums.NotificationPriorityHigh:
		return "#fdecea"
	case enums.NotificationPriorityNormal:
		return "#fff4e5"
	default:
		return "#ffffff"
	}
}
