package cf

// Organization is a Cloud Foundry org as returned by the platform API.
// QuotaGUID is empty when the org has no quota definition assigned; such
// orgs are out of scope for alerting.
type Organization struct {
	GUID      string
	Name      string
	QuotaGUID string
}

// Quota is an org quota definition. MemoryLimitMB of zero means the quota
// is unusable for percentage accounting.
type Quota struct {
	GUID          string
	MemoryLimitMB int
}

// Space is a sub-division of an organization.
type Space struct {
	GUID string
	Name string
}

// Application is the per-app slice of a space summary. Memory is the
// per-instance allocation in MB.
type Application struct {
	GUID      string
	Name      string
	Instances int
	MemoryMB  int
}

// Wire shapes. The v2 API wraps every resource in metadata/entity envelopes.

type resourceList struct {
	Resources []resource `json:"resources"`
}

type resource struct {
	Metadata struct {
		GUID string `json:"guid"`
	} `json:"metadata"`
	Entity struct {
		Name                string `json:"name"`
		QuotaDefinitionGUID string `json:"quota_definition_guid"`
		MemoryLimit         int    `json:"memory_limit"`
	} `json:"entity"`
}

type memoryUsageResponse struct {
	MemoryUsageInMB int `json:"memory_usage_in_mb"`
}

type spaceSummaryResponse struct {
	Apps []struct {
		GUID      string `json:"guid"`
		Name      string `json:"name"`
		Instances int    `json:"instances"`
		Memory    int    `json:"memory"`
	} `json:"apps"`
}
