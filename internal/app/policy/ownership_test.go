package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skymaintain/service-layer/internal/app/domain/ingestion"
)

func validOwnership() ingestion.DataOwnership {
	return ingestion.DataOwnership{
		Owner:          "ops.lead@example.com",
		Steward:        "data.steward@example.com",
		LineageSource:  "acms-connector",
		Classification: ingestion.ClassificationInternal,
		RetentionDays:  730,
	}
}

func TestValidateOwnershipValid(t *testing.T) {
	assert.Empty(t, ValidateOwnership(validOwnership()))
}

func TestValidateOwnershipIssueOrder(t *testing.T) {
	issues := ValidateOwnership(ingestion.DataOwnership{RetentionDays: -1})
	require.Equal(t, []string{
		"owner is required",
		"steward is required",
		"lineageSource is required",
		"retentionDays must be positive",
	}, issues)
}

func TestValidateOwnershipSingleIssue(t *testing.T) {
	o := validOwnership()
	o.Steward = ""
	require.Equal(t, []string{"steward is required"}, ValidateOwnership(o))

	o = validOwnership()
	o.RetentionDays = 0
	require.Equal(t, []string{"retentionDays must be positive"}, ValidateOwnership(o))
}

func TestDefaultRetention(t *testing.T) {
	cases := []struct {
		classification ingestion.Classification
		days           int
	}{
		{ingestion.ClassificationPublic, 365},
		{ingestion.ClassificationInternal, 730},
		{ingestion.ClassificationConfidential, 1095},
		{ingestion.ClassificationRestricted, 1825},
	}
	for _, tc := range cases {
		days, ok := DefaultRetention(tc.classification)
		require.True(t, ok, "classification %s", tc.classification)
		assert.Equal(t, tc.days, days)
	}

	_, ok := DefaultRetention(ingestion.Classification("secret"))
	assert.False(t, ok)
}
