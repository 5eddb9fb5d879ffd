package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("test")

	c.MissionStarted()
	c.MissionStarted()
	c.MissionFinished("complete")
	c.ActionExecuted("click", "success")
	c.ActionExecuted("click", "success")
	c.ActionExecuted("type", "failed")
	c.ApprovalRequested()
	c.OracleAttempt(true)
	c.OracleAttempt(false)
	c.CycleDuration(1500 * time.Millisecond)
	c.EventDropped()

	assert.Equal(t, 2.0, testutil.ToFloat64(c.missionsStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.missionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.missionsFinished.WithLabelValues("complete")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actions.WithLabelValues("click", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actions.WithLabelValues("type", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.approvals))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.oracleAttempts.WithLabelValues("false")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.cycleDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.eventsDropped))
}

func TestCollector_SeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCollector("same")
		NewCollector("same")
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("agent")
	c.ActionExecuted("scroll", "success")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agent_actions_total{kind="scroll",outcome="success"} 1`)
}
