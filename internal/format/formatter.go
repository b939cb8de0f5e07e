// Package format renders a completed context bundle into one text
// block for the downstream completion call.
//
// Rendering is deterministic and idempotent: the same bundle always
// produces byte-identical output. Sections follow the bundle's
// allocation order, EMPTY envelopes and empty payloads are omitted
// entirely, and numeric values use a fixed locale.
package format

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mogascan/portfolio-risk-tracker-sub000/internal/provider"
)

// Render renders the bundle into one text block. It never fails:
// unknown payload shapes are stringified best-effort.
func Render(bundle *provider.Bundle) string {
	if bundle == nil {
		return ""
	}

	printer := message.NewPrinter(language.English)

	var sb strings.Builder
	for _, id := range bundle.Order {
		env, ok := bundle.Envelopes[id]
		if !ok || env == nil || env.Status == provider.StatusEmpty {
			continue
		}

		section := renderEnvelope(printer, env)
		if section == "" {
			continue
		}

		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(section)
	}

	return sb.String()
}

// renderEnvelope renders one envelope's section, or "" when there is
// nothing worth including.
func renderEnvelope(printer *message.Printer, env *provider.Envelope) string {
	payload, ok := env.Payload.(*provider.Payload)
	if !ok {
		return renderUnknown(env)
	}
	if payload == nil || len(payload.Records) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(sectionHeader(payload.Kind, env.Status))
	sb.WriteString("\n")

	for _, rec := range payload.Records {
		sb.WriteString("\n")
		sb.WriteString(rec.Title)
		if !rec.Timestamp.IsZero() {
			sb.WriteString(" (")
			sb.WriteString(rec.Timestamp.UTC().Format("2006-01-02 15:04 UTC"))
			sb.WriteString(")")
		}
		sb.WriteString("\n")

		for _, f := range rec.Fields {
			sb.WriteString("  ")
			sb.WriteString(f.Label)
			sb.WriteString(": ")
			sb.WriteString(formatValue(printer, f))
			sb.WriteString("\n")
		}

		if body := strings.TrimSpace(rec.Body); body != "" {
			for _, line := range strings.Split(body, "\n") {
				sb.WriteString("  ")
				sb.WriteString(line)
				sb.WriteString("\n")
			}
		}
	}

	return sb.String()
}

// renderUnknown stringifies a payload the formatter does not recognize.
func renderUnknown(env *provider.Envelope) string {
	if env.Payload == nil {
		return ""
	}

	var body string
	if data, err := json.MarshalIndent(env.Payload, "", "  "); err == nil {
		body = string(data)
	} else {
		body = fmt.Sprintf("%v", env.Payload)
	}
	if strings.TrimSpace(body) == "" || body == "{}" || body == "null" {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(sectionHeader(strings.ToUpper(env.ProviderID), env.Status))
	sb.WriteString("\n\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	return sb.String()
}

func sectionHeader(kind string, status provider.Status) string {
	if status == provider.StatusFallback {
		return "== " + kind + " (cached) =="
	}
	return "== " + kind + " =="
}

// formatValue renders a field value with fixed numeric conventions:
// floats get two decimals and thousands separators, currency fields a
// dollar prefix, integers thousands separators, times a fixed UTC
// layout.
func formatValue(printer *message.Printer, f provider.Field) string {
	switch v := f.Value.(type) {
	case float64:
		s := printer.Sprintf("%.2f", v)
		if f.Currency {
			return "$" + s
		}
		return s
	case float32:
		return formatValue(printer, provider.Field{Value: float64(v), Currency: f.Currency})
	case int:
		return printer.Sprintf("%d", v)
	case int64:
		return printer.Sprintf("%d", v)
	case time.Time:
		return v.UTC().Format("2006-01-02 15:04 UTC")
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
