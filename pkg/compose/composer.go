package compose

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/cloudops-tools/quota-notifier/pkg/model"
)

const defaultSubject = `Memory quota warning for org {{.OrgName}}`

const defaultBody = `Dear {{.GivenName}},

Org {{.OrgName}} is using {{.MemoryUsed}} of its {{.MemoryLimit}} memory quota. That is {{.PercentUsed}}% of the allowed maximum.

{{.SpaceBreakdown}}

Please scale down or remove unused applications, or contact us to raise the quota.

Regards,
{{.From}}
`

// bodyData is the value rendered into the subject and body templates.
type bodyData struct {
	From           string
	OrgName        string
	GivenName      string
	MemoryUsed     string
	MemoryLimit    string
	PercentUsed    int
	SpaceBreakdown string
}

// Composer renders notification subjects and bodies from an organization
// snapshot. The body is identical for every recipient of the same
// organization except for the salutation.
type Composer struct {
	from    string
	subject *template.Template
	body    *template.Template
}

// New creates a composer using the built-in templates. from is the sender
// identity shown in the message signature.
func New(from string) (*Composer, error) {
	return newComposer(from, defaultSubject, defaultBody)
}

func newComposer(from, subjectTmpl, bodyTmpl string) (*Composer, error) {
	subject, err := template.New("subject").Parse(subjectTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse subject template: %w", err)
	}
	body, err := template.New("body").Parse(bodyTmpl)
	if err != nil {
		return nil, fmt.Errorf("parse body template: %w", err)
	}
	return &Composer{from: from, subject: subject, body: body}, nil
}

// Subject renders the message subject for one organization.
func (c *Composer) Subject(snap model.OrgUsageSnapshot) (string, error) {
	return c.render(c.subject, snap, model.Recipient{})
}

// Body renders the personalized message body for one recipient.
func (c *Composer) Body(snap model.OrgUsageSnapshot, r model.Recipient) (string, error) {
	return c.render(c.body, snap, r)
}

func (c *Composer) render(tmpl *template.Template, snap model.OrgUsageSnapshot, r model.Recipient) (string, error) {
	given := r.GivenName
	if given == "" {
		given = "org manager"
	}
	data := bodyData{
		From:           c.from,
		OrgName:        snap.OrgName,
		GivenName:      given,
		MemoryUsed:     FormatMB(snap.MemoryUsedMB),
		MemoryLimit:    FormatMB(snap.MemoryLimitMB),
		PercentUsed:    snap.PercentUsed,
		SpaceBreakdown: SpaceBreakdown(snap),
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", tmpl.Name(), err)
	}
	return sb.String(), nil
}

// SpaceBreakdown renders the per-space usage lines plus a closing totals
// line. Each space shows its consumed memory and the share of the org quota
// it accounts for (truncating division).
func SpaceBreakdown(snap model.OrgUsageSnapshot) string {
	var sb strings.Builder
	apps, instances := 0, 0
	for _, space := range snap.Spaces {
		share := 0
		if snap.MemoryLimitMB > 0 {
			share = 100 * space.ConsumedMB / snap.MemoryLimitMB
		}
		fmt.Fprintf(&sb, "* Space %s is using %dM (%d%%) of the org's memory quota.\n",
			space.SpaceName, space.ConsumedMB, share)
		apps += space.AppCount
		instances += space.InstanceCount
	}
	fmt.Fprintf(&sb, "There are %d apps running in this org with a total of %d instances.", apps, instances)
	return sb.String()
}
