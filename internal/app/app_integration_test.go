//go:build integration

package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/pkg/testutil/containers"
)

// TestFullStackRecalcOverKafka runs the service against Postgres, Redis and
// Redpanda with recalculation routed through the task queue.
func TestFullStackRecalcOverKafka(t *testing.T) {
	mgr := containers.GetManager()
	pg := mgr.GetPostgres(t)
	rd := mgr.GetRedis(t)
	kf := mgr.GetKafka(t)

	suffix := uuid.NewString()[:8]
	t.Setenv("TRADELEDGER_DATABASE_DSN", pg.DSN)
	t.Setenv("TRADELEDGER_REDIS_URL", rd.URL)
	t.Setenv("TRADELEDGER_KAFKA_BROKERS", kf.Brokers[0])
	t.Setenv("TRADELEDGER_KAFKA_RECALC_TOPIC", "risk.recalc."+suffix)
	t.Setenv("TRADELEDGER_KAFKA_DEAD_LETTER_TOPIC", "risk.recalc.dlq."+suffix)
	t.Setenv("TRADELEDGER_KAFKA_AUDIT_TOPIC", "audit.events."+suffix)
	t.Setenv("TRADELEDGER_KAFKA_CONSUMER_GROUP", "tradeledger-it-"+suffix)
	t.Setenv("TRADELEDGER_KAFKA_PARTITIONS", "1")
	t.Setenv("TRADELEDGER_RECALC_MODE", "kafka")

	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.app.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				t.Errorf("background workers: %v", err)
			}
		case <-time.After(10 * time.Second):
			t.Error("background workers did not stop")
		}
	})

	owner, ownerToken := h.register("corporate")
	_, auditorToken := h.register("auditor")

	rr, doc := h.do(http.MethodPost, "/api/documents", ownerToken, map[string]any{
		"doc_type": "INVOICE", "doc_number": "INV-" + suffix, "content": []byte("invoice body"),
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	docID := doc["id"].(string)

	rr, result := h.do(http.MethodPost, "/api/documents/"+docID+"/verify", auditorToken, nil)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, true, result["verified"])

	var score map[string]any
	require.Eventually(t, func() bool {
		rr, body := h.do(http.MethodGet, "/api/risk/scores?user_id="+owner, ownerToken, nil)
		scores, _ := body["scores"].([]any)
		if rr.Code != http.StatusOK || len(scores) != 1 {
			return false
		}
		score = scores[0].(map[string]any)
		return true
	}, 30*time.Second, 200*time.Millisecond)
	assert.Contains(t, []any{"LOW", "MEDIUM", "HIGH"}, score["category"])

	rr, _ = h.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}
