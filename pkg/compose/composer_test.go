package compose_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudops-tools/quota-notifier/pkg/compose"
	"github.com/cloudops-tools/quota-notifier/pkg/model"
)

func acmeSnapshot() model.OrgUsageSnapshot {
	return model.OrgUsageSnapshot{
		OrgID:         "org-1",
		OrgName:       "acme",
		MemoryLimitMB: 10240,
		MemoryUsedMB:  8192,
		PercentUsed:   80,
		Spaces: []model.SpaceUsage{
			{SpaceID: "sp-1", SpaceName: "dev", ConsumedMB: 2048, AppCount: 2, InstanceCount: 4},
			{SpaceID: "sp-2", SpaceName: "prod", ConsumedMB: 6144, AppCount: 3, InstanceCount: 6},
		},
	}
}

func TestComposer_Subject(t *testing.T) {
	c, err := compose.New("The Platform Ops Team")
	require.NoError(t, err)

	subject, err := c.Subject(acmeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "Memory quota warning for org acme", subject)
}

func TestComposer_Body(t *testing.T) {
	c, err := compose.New("The Platform Ops Team")
	require.NoError(t, err)

	body, err := c.Body(acmeSnapshot(), model.Recipient{GivenName: "Alice", Email: "a@x.com"})
	require.NoError(t, err)

	assert.Contains(t, body, "Dear Alice,")
	assert.Contains(t, body, "Org acme is using 8G of its 10G memory quota.")
	assert.Contains(t, body, "That is 80% of the allowed maximum.")
	assert.Contains(t, body, "* Space dev is using 2048M (20%) of the org's memory quota.")
	assert.Contains(t, body, "* Space prod is using 6144M (60%) of the org's memory quota.")
	assert.Contains(t, body, "There are 5 apps running in this org with a total of 10 instances.")
	assert.Contains(t, body, "The Platform Ops Team")
}

func TestComposer_Body_NoGivenName(t *testing.T) {
	c, err := compose.New("ops")
	require.NoError(t, err)

	body, err := c.Body(acmeSnapshot(), model.Recipient{Email: "a@x.com"})
	require.NoError(t, err)
	assert.Contains(t, body, "Dear org manager,")
}

func TestComposer_SameBodyAcrossRecipients(t *testing.T) {
	c, err := compose.New("ops")
	require.NoError(t, err)

	snap := acmeSnapshot()
	first, err := c.Body(snap, model.Recipient{GivenName: "Alice"})
	require.NoError(t, err)
	second, err := c.Body(snap, model.Recipient{GivenName: "Bob"})
	require.NoError(t, err)

	// Only the salutation differs.
	assert.NotEqual(t, first, second)
	assert.Equal(t,
		first[len("Dear Alice,"):],
		second[len("Dear Bob,"):],
	)
}

func TestNewFromFile_Override(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	content := "subject: \"quota alert: {{.OrgName}}\"\nbody: \"{{.GivenName}}: {{.PercentUsed}}% used\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := compose.NewFromFile("ops", path)
	require.NoError(t, err)

	subject, err := c.Subject(acmeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "quota alert: acme", subject)

	body, err := c.Body(acmeSnapshot(), model.Recipient{GivenName: "Alice"})
	require.NoError(t, err)
	assert.Equal(t, "Alice: 80% used", body)
}

func TestNewFromFile_PartialOverrideKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("subject: \"custom subject\"\n"), 0o644))

	c, err := compose.NewFromFile("ops", path)
	require.NoError(t, err)

	subject, err := c.Subject(acmeSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "custom subject", subject)

	body, err := c.Body(acmeSnapshot(), model.Recipient{GivenName: "Alice"})
	require.NoError(t, err)
	assert.Contains(t, body, "Dear Alice,")
}

func TestNewFromFile_MissingFile(t *testing.T) {
	_, err := compose.NewFromFile("ops", filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestNewFromFile_BadTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("body: \"{{.Unclosed\"\n"), 0o644))

	_, err := compose.NewFromFile("ops", path)
	assert.Error(t, err)
}
