package mailer

import (
	"fmt"
	"strings"
	"text/template"
)

// Notification templates. One inline template per notification type
// builds the per-proposal paragraph; the consolidated template stitches
// the paragraphs into one message per (recipient, other entity) pair.

// ProposalContext is the data handed to the inline templates.
type ProposalContext struct {
	Recipient string // "net", "ix" or "ac"
	ASN       uint32
	IPv4      string
	IPv6      string
	Speed     int
	IsRSPeer  bool
	Reason    string
	Error     string
	Exchange  string
	Network   string
}

// ConsolidatedContext is the data handed to the consolidated template.
type ConsolidatedContext struct {
	Recipient  string
	Entity     string
	Count      int
	TicketDays int
	Sections   []ConsolidatedSection
}

// ConsolidatedSection is one other-entity block inside a consolidated
// message.
type ConsolidatedSection struct {
	Other            string
	Adds             []string
	Modifies         []string
	Deletes          []string
	ProtocolConflict string
}

// SourceErrorContext is the data for feed-level error notices.
type SourceErrorContext struct {
	Exchange string
	Error    string
	Date     string
}

var inlineTemplates = map[string]*template.Template{
	"add": mustInline("add", `AS{{.ASN}} - please add the entry {{ippair .IPv4 .IPv6}} (speed {{.Speed}} Mbit/s{{if .IsRSPeer}}, route server peer{{end}}).
{{.Reason}}`),
	"modify": mustInline("modify", `AS{{.ASN}} {{ippair .IPv4 .IPv6}} - local data differs from the exchange's IX-F export.
{{.Reason}}`),
	"remove": mustInline("remove", `AS{{.ASN}} {{ippair .IPv4 .IPv6}} - this entry no longer appears in the exchange's IX-F export.
{{.Reason}}`),
	"conflict": mustInline("conflict", `AS{{.ASN}} {{ippair .IPv4 .IPv6}} - the proposed change could not be applied.
{{.Error}}`),
	"protocol-conflict": mustInline("protocol-conflict", `AS{{.ASN}} {{ippair .IPv4 .IPv6}} - the exchange's IX-F export carries an address in a protocol this network has marked as unsupported.`),
}

var consolidatedTemplate = template.Must(template.New("consolidated").Parse(
	`{{if eq .Recipient "net"}}The following mismatches exist between your network's data and one or more exchanges:{{else}}The following mismatches exist between {{.Entity}}'s IX-F export and the registry:{{end}}

{{range .Sections}}== {{.Other}} ==
{{if .Adds}}Proposed additions:
{{range .Adds}}  - {{.}}
{{end}}{{end}}{{if .Modifies}}Proposed changes:
{{range .Modifies}}  - {{.}}
{{end}}{{end}}{{if .Deletes}}Proposed removals:
{{range .Deletes}}  - {{.}}
{{end}}{{end}}{{if .ProtocolConflict}}Protocol conflict:
  - {{.ProtocolConflict}}
{{end}}
{{end}}{{if gt .TicketDays 0}}If these proposals remain unresolved for {{.TicketDays}} days a support ticket will be opened automatically.{{end}}
`))

var sourceErrorTemplate = template.Must(template.New("source-error").Parse(
	`The IX-F member export for {{.Exchange}} could not be processed on {{.Date}}:

    {{.Error}}

No membership data was imported. Please verify that the export is
reachable and valid JSON with at least one vlan_list entry.
`))

func mustInline(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(template.FuncMap{
		"ippair": func(v4, v6 string) string {
			switch {
			case v4 != "" && v6 != "":
				return v4 + " " + v6
			case v4 != "":
				return v4
			case v6 != "":
				return v6
			}
			return "-"
		},
	}).Parse(text))
}

// RenderInline renders the per-proposal paragraph for a notification
// type. Unknown types fall back to a plain identity line so a new type
// can never silence a notification.
func RenderInline(typ string, ctx ProposalContext) string {
	tmpl, ok := inlineTemplates[typ]
	if !ok {
		return fmt.Sprintf("AS%d %s %s - %s", ctx.ASN, ctx.IPv4, ctx.IPv6, ctx.Reason)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, ctx); err != nil {
		return fmt.Sprintf("AS%d %s %s - %s", ctx.ASN, ctx.IPv4, ctx.IPv6, ctx.Reason)
	}
	return b.String()
}

// RenderConsolidated renders one consolidated message.
func RenderConsolidated(ctx ConsolidatedContext) (string, error) {
	var b strings.Builder
	if err := consolidatedTemplate.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("failed to render consolidated notification: %w", err)
	}
	return b.String(), nil
}

// RenderSourceError renders a feed-level error notice.
func RenderSourceError(ctx SourceErrorContext) (string, error) {
	var b strings.Builder
	if err := sourceErrorTemplate.Execute(&b, ctx); err != nil {
		return "", fmt.Errorf("failed to render source error notification: %w", err)
	}
	return b.String(), nil
}
