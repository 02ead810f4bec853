package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAndExport(t *testing.T) {
	Init(nil, zerolog.Nop())

	before := testutil.ToFloat64(reconcileTotal.WithLabelValues(ModeRoster, ResultSuccess))
	ObserveReconcile(ModeRoster, "", 25*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(reconcileTotal.WithLabelValues(ModeRoster, ResultSuccess)))

	unclassified := testutil.ToFloat64(paymentsUnmatched.WithLabelValues(reasonUnclassified))
	AddUnmatchedPayments(3, 0, 1)
	assert.Equal(t, unclassified+3, testutil.ToFloat64(paymentsUnmatched.WithLabelValues(reasonUnclassified)))

	SetTenantTotals("school-1", 1200, 800, -50, 10)
	assert.Equal(t, -50.0, testutil.ToFloat64(tenantDiscrepancy.WithLabelValues("school-1")))

	path := filepath.Join(t.TempDir(), "treasury.prom")
	require.NoError(t, WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "treasury_tenant_owed"))
}
