package snapshot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudops-tools/quota-notifier/pkg/cf"
	"github.com/cloudops-tools/quota-notifier/pkg/evaluate"
	"github.com/cloudops-tools/quota-notifier/pkg/model"
)

// Source is the slice of the platform API the builder needs.
type Source interface {
	ListOrganizations(ctx context.Context) ([]cf.Organization, error)
	GetQuota(ctx context.Context, quotaGUID string) (*cf.Quota, error)
	MemoryUsedMB(ctx context.Context, orgGUID string) (int, error)
	ListSpaces(ctx context.Context, orgGUID string) ([]cf.Space, error)
	SpaceApplications(ctx context.Context, spaceGUID string) ([]cf.Application, error)
}

// Builder turns raw platform API responses into per-organization usage
// snapshots. Organizations without a usable quota (none assigned, or a zero
// memory limit) are dropped silently; a data-source failure for one
// organization is logged and skips just that organization.
type Builder struct {
	source Source
	logger *slog.Logger
}

// New creates a snapshot builder.
func New(source Source, logger *slog.Logger) *Builder {
	return &Builder{source: source, logger: logger}
}

// Build produces one snapshot per organization that has a positive memory
// quota. The returned error is pass-fatal and only set when the organization
// list itself cannot be fetched.
func (b *Builder) Build(ctx context.Context) ([]model.OrgUsageSnapshot, int, error) {
	orgs, err := b.source.ListOrganizations(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}

	snapshots := make([]model.OrgUsageSnapshot, 0, len(orgs))
	skipped := 0
	for _, org := range orgs {
		snap, ok, err := b.buildOrg(ctx, org)
		if err != nil {
			b.logger.Error("skipping org after data source error",
				"org", org.Name, "org_id", org.GUID, "error", err)
			skipped++
			continue
		}
		if !ok {
			skipped++
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, skipped, nil
}

// buildOrg assembles one organization's snapshot. ok is false when the org
// has no usable quota and is out of scope for alerting.
func (b *Builder) buildOrg(ctx context.Context, org cf.Organization) (model.OrgUsageSnapshot, bool, error) {
	var zero model.OrgUsageSnapshot

	if org.QuotaGUID == "" {
		b.logger.Debug("org has no quota assigned", "org", org.Name)
		return zero, false, nil
	}
	quota, err := b.source.GetQuota(ctx, org.QuotaGUID)
	if err != nil {
		return zero, false, err
	}
	if quota.MemoryLimitMB <= 0 {
		b.logger.Debug("org quota has no memory limit", "org", org.Name)
		return zero, false, nil
	}

	// The aggregate figure matches platform billing; per-app sums do not.
	usedMB, err := b.source.MemoryUsedMB(ctx, org.GUID)
	if err != nil {
		return zero, false, err
	}

	spaces, err := b.source.ListSpaces(ctx, org.GUID)
	if err != nil {
		return zero, false, err
	}
	usage := make([]model.SpaceUsage, 0, len(spaces))
	for _, space := range spaces {
		apps, err := b.source.SpaceApplications(ctx, space.GUID)
		if err != nil {
			return zero, false, err
		}
		su := model.SpaceUsage{SpaceID: space.GUID, SpaceName: space.Name}
		for _, app := range apps {
			su.ConsumedMB += app.Instances * app.MemoryMB
			su.AppCount++
			su.InstanceCount += app.Instances
		}
		usage = append(usage, su)
	}

	return model.OrgUsageSnapshot{
		OrgID:         org.GUID,
		OrgName:       org.Name,
		MemoryLimitMB: quota.MemoryLimitMB,
		MemoryUsedMB:  usedMB,
		PercentUsed:   evaluate.PercentUsed(usedMB, quota.MemoryLimitMB),
		Spaces:        usage,
	}, true, nil
}
