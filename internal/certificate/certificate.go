// Package certificate renders the completion certificate for a document: who
// signed, in which order, and the full audit trail.
package certificate

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/net/publicsuffix"

	"signdesk/internal/domain"
)

var md = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown builds the certificate body.
func Markdown(doc domain.Document, recipients []domain.Recipient, trail []domain.AuditEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Certificate of completion\n\n")
	fmt.Fprintf(&b, "**Document:** %s  \n", escape(doc.Title))
	fmt.Fprintf(&b, "**Document ID:** `%s`  \n", doc.ID)
	fmt.Fprintf(&b, "**Status:** %s  \n", doc.Status)
	fmt.Fprintf(&b, "**Pages:** %d\n\n", doc.PageCount())

	b.WriteString("## Recipients\n\n")
	b.WriteString("| Order | Name | Email | Organization | Role | Status | Signed at |\n")
	b.WriteString("|---:|---|---|---|---|---|---|\n")
	for _, r := range recipients {
		fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %s | %s |\n",
			r.SigningOrder, escape(r.Name), escape(r.Email), escape(Organization(r.Email)), r.Role, r.SignatureStatus, stamp(r.SignedAt))
	}

	b.WriteString("\n## Audit trail\n\n")
	b.WriteString("| Time (UTC) | Action | Actor | IP | Details |\n")
	b.WriteString("|---|---|---|---|---|\n")
	for _, e := range trail {
		ts := e.Timestamp.UTC()
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			stamp(&ts), e.Action, escape(e.ActorID), escape(e.IPAddress), escape(e.Details))
	}
	return b.String()
}

// HTML renders the certificate as a standalone HTML page.
func HTML(doc domain.Document, recipients []domain.Recipient, trail []domain.AuditEntry) ([]byte, error) {
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(doc, recipients, trail)), &body); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	var out bytes.Buffer
	out.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Certificate of completion</title></head><body>\n")
	out.Write(body.Bytes())
	out.WriteString("</body></html>\n")
	return out.Bytes(), nil
}

// Organization is the registrable domain of an email address, so
// "ada@mail.example.co.uk" belongs to "example.co.uk".
func Organization(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return ""
	}
	host := strings.ToLower(strings.TrimSuffix(email[at+1:], "."))
	org, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return org
}

func stamp(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "|", `\|`, "*", `\*`, "_", `\_`, "`", "\\`",
	"<", `\<`, ">", `\>`, "[", `\[`, "]", `\]`, "#", `\#`,
	"\n", " ", "\r", " ",
)

func escape(s string) string {
	if s == "" {
		return "-"
	}
	return mdEscaper.Replace(s)
}
