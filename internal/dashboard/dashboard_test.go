package dashboard

import (
	"context"
	"fmt"
	"testing"

	"github.com/clousec/clousec/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func finding(id string, service string, sev model.Severity, status model.FindingStatus) model.Finding {
	return model.Finding{
		Fingerprint: id,
		Service:     service,
		ResourceID:  id,
		Issue:       "issue",
		Region:      "us-east-1",
		Severity:    sev,
		Status:      status,
	}
}

func TestSummarize(t *testing.T) {
	findings := []model.Finding{
		finding("a", model.ServiceEC2, model.SeverityHigh, model.StatusOpen),
		finding("b", model.ServiceEC2, model.SeverityCritical, model.StatusOpen),
		finding("c", model.ServiceS3, model.SeverityHigh, model.StatusOpen),
		finding("d", model.ServiceIAM, model.SeverityCritical, model.StatusResolved),
		finding("e", model.ServiceS3, model.SeverityMedium, model.StatusResolved),
	}

	summary := Summarize(findings, model.DashboardSampleSize)

	assert.Equal(t, 3, summary.Open)
	assert.Equal(t, 2, summary.Resolved)
	assert.Equal(t, map[string]int{"HIGH": 2, "CRITICAL": 2, "MEDIUM": 1}, summary.BySeverity)
	assert.Equal(t, map[string]int{"EC2": 2, "S3": 2, "IAM": 1}, summary.ByService)
	require.Len(t, summary.OpenFindings, 3)
	for _, f := range summary.OpenFindings {
		assert.Equal(t, model.StatusOpen, f.Status)
	}
}

func TestSummarize_SampleIsCapped(t *testing.T) {
	var findings []model.Finding
	for i := 0; i < 25; i++ {
		findings = append(findings, finding(fmt.Sprintf("f-%d", i), model.ServiceEC2, model.SeverityMedium, model.StatusOpen))
	}

	summary := Summarize(findings, model.DashboardSampleSize)

	assert.Equal(t, 25, summary.Open)
	require.Len(t, summary.OpenFindings, model.DashboardSampleSize)
	assert.Equal(t, "f-0", summary.OpenFindings[0].Fingerprint)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil, model.DashboardSampleSize)

	assert.Zero(t, summary.Open)
	assert.Zero(t, summary.Resolved)
	assert.NotNil(t, summary.BySeverity)
	assert.NotNil(t, summary.ByService)
	assert.NotNil(t, summary.OpenFindings)
}

type stubAggregator struct {
	sample int
	calls  int
}

func (s *stubAggregator) Aggregate(_ context.Context, sample int) (model.DashboardSummary, error) {
	s.sample = sample
	s.calls++
	return model.NewDashboardSummary(), nil
}

func TestView_RecomputesEveryCall(t *testing.T) {
	stub := &stubAggregator{}
	view := NewView(stub)

	_, err := view.Summary(context.Background())
	require.NoError(t, err)
	_, err = view.Summary(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, model.DashboardSampleSize, stub.sample)
}
