package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudops-tools/quota-notifier/pkg/model"
	"github.com/cloudops-tools/quota-notifier/pkg/uaa"
)

// ManagerSource lists the manager user ids of an organization.
type ManagerSource interface {
	OrgManagerIDs(ctx context.Context, orgGUID string) ([]string, error)
}

// Directory resolves a stable user id to a profile.
type Directory interface {
	LookupUser(ctx context.Context, id string) (*uaa.User, error)
}

// Resolver maps an organization's manager references to deliverable
// recipients. A manager the directory cannot resolve unambiguously is logged
// and excluded; one without an email on file is excluded silently. The
// resolver never retries.
type Resolver struct {
	source    ManagerSource
	directory Directory
	logger    *slog.Logger
}

// New creates a recipient resolver.
func New(source ManagerSource, directory Directory, logger *slog.Logger) *Resolver {
	return &Resolver{source: source, directory: directory, logger: logger}
}

// Resolve returns the deliverable recipients for one organization. The
// returned error covers transient failures (manager listing, directory
// outage) and aborts only this organization's evaluation; NotFound and
// Ambiguous lookups merely exclude the affected recipient.
func (r *Resolver) Resolve(ctx context.Context, orgGUID, orgName string) ([]model.Recipient, error) {
	ids, err := r.source.OrgManagerIDs(ctx, orgGUID)
	if err != nil {
		return nil, fmt.Errorf("list org managers: %w", err)
	}

	recipients := make([]model.Recipient, 0, len(ids))
	for _, id := range ids {
		user, err := r.directory.LookupUser(ctx, id)
		if err != nil {
			if errors.Is(err, uaa.ErrNotFound) || errors.Is(err, uaa.ErrAmbiguous) {
				r.logger.Warn("excluding unresolvable org manager",
					"org", orgName, "user_id", id, "error", err)
				continue
			}
			return nil, fmt.Errorf("lookup manager %s: %w", id, err)
		}
		if user.PrimaryEmail == "" {
			r.logger.Debug("org manager has no email on file",
				"org", orgName, "user_id", id)
			continue
		}
		recipients = append(recipients, model.Recipient{
			UserID:     user.ID,
			GivenName:  user.GivenName,
			FamilyName: user.FamilyName,
			Email:      user.PrimaryEmail,
		})
	}
	return recipients, nil
}
