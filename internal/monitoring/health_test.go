package monitoring_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studyhall/internal/monitoring"
)

func staticCheck(name string, status monitoring.ProbeStatus) monitoring.Check {
	return monitoring.NewCheck(name, func(context.Context) monitoring.ProbeResult {
		return monitoring.ProbeResult{Status: status}
	})
}

func TestCheckerReportsWorstStatus(t *testing.T) {
	checker := monitoring.NewChecker(time.Second,
		staticCheck("a", monitoring.StatusUp),
		staticCheck("b", monitoring.StatusDegraded),
	)

	report := checker.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
	require.False(t, report.Down())
	require.Len(t, report.Checks, 2)
	require.Equal(t, "a", report.Checks[0].Component)
	require.Equal(t, "b", report.Checks[1].Component)

	checker.Register(staticCheck("c", monitoring.StatusDown))
	report = checker.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	require.True(t, report.Down())
}

func TestCheckerEmptyIsUp(t *testing.T) {
	report := monitoring.NewChecker(0).Evaluate(context.Background())
	require.Equal(t, monitoring.StatusUp, report.Status)
	require.Empty(t, report.Checks)
}

func TestCheckerRecoversPanicsAndMissingStatus(t *testing.T) {
	checker := monitoring.NewChecker(time.Second,
		monitoring.NewCheck("boom", func(context.Context) monitoring.ProbeResult { panic("kaboom") }),
		monitoring.NewCheck("blank", func(context.Context) monitoring.ProbeResult { return monitoring.ProbeResult{} }),
		monitoring.NewCheck("unimplemented", nil),
	)

	report := checker.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDown, report.Status)
	for _, r := range report.Checks {
		require.Equal(t, monitoring.StatusDown, r.Status, r.Component)
	}
	require.Contains(t, report.Checks[0].Details, "kaboom")
}

func TestCheckerAppliesTimeout(t *testing.T) {
	checker := monitoring.NewChecker(20*time.Millisecond, monitoring.NewCheck("slow", func(ctx context.Context) monitoring.ProbeResult {
		<-ctx.Done()
		return monitoring.ResultFromError(ctx.Err())
	}))

	report := checker.Evaluate(context.Background())
	require.Equal(t, monitoring.StatusDegraded, report.Status)
}

func TestResultFromError(t *testing.T) {
	require.Equal(t, monitoring.StatusUp, monitoring.ResultFromError(nil).Status)

	down := monitoring.ResultFromError(errors.New("refused"))
	require.Equal(t, monitoring.StatusDown, down.Status)
	require.Equal(t, "refused", down.Details)

	require.Equal(t, monitoring.StatusDegraded, monitoring.ResultFromError(context.DeadlineExceeded).Status)
}
