package websets

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrichmentListDecodesArrayShape(t *testing.T) {
	payload := `[
		{"enrichmentId": "enrich_email", "status": "completed", "result": "jane@acme.com"},
		{"enrichmentId": "enrich_phone", "status": "pending", "result": null}
	]`

	var list EnrichmentList
	require.NoError(t, json.Unmarshal([]byte(payload), &list))
	require.Len(t, list, 2)

	assert.Equal(t, "enrich_email", list[0].EnrichmentID)
	assert.Equal(t, "jane@acme.com", list[0].Result)
	assert.Equal(t, EnrichmentCompleted, list[0].Status)
	assert.Empty(t, list[1].Result)
}

func TestEnrichmentListDecodesMapShape(t *testing.T) {
	payload := `{
		"Work Email": {"status": "completed", "result": "jane@acme.com"},
		"Company": {"status": "completed", "result": "Acme"}
	}`

	var list EnrichmentList
	require.NoError(t, json.Unmarshal([]byte(payload), &list))
	require.Len(t, list, 2)

	// Map entries come out sorted by label so decoding is deterministic.
	assert.Equal(t, "Company", list[0].Label)
	assert.Equal(t, "Acme", list[0].Result)
	assert.Equal(t, "Work Email", list[1].Label)
	assert.Equal(t, "jane@acme.com", list[1].Result)
}

func TestEnrichmentListDecodesResultVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"scalar string", `[{"status":"completed","result":"CTO"}]`, "CTO"},
		{"array takes first element", `[{"status":"completed","result":["CTO","CFO"]}]`, "CTO"},
		{"empty array", `[{"status":"completed","result":[]}]`, ""},
		{"number flattened", `[{"status":"completed","result":42}]`, "42"},
		{"null result", `[{"status":"completed","result":null}]`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var list EnrichmentList
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &list))
			require.Len(t, list, 1)
			assert.Equal(t, tt.want, list[0].Result)
		})
	}
}

func TestEnrichmentUsable(t *testing.T) {
	tests := []struct {
		name       string
		enrichment Enrichment
		want       bool
	}{
		{"completed with value", Enrichment{Status: EnrichmentCompleted, Result: "x"}, true},
		{"pending", Enrichment{Status: EnrichmentPending, Result: "x"}, false},
		{"failed", Enrichment{Status: EnrichmentFailed, Result: "x"}, false},
		{"empty result", Enrichment{Status: EnrichmentCompleted, Result: ""}, false},
		{"literal null", Enrichment{Status: EnrichmentCompleted, Result: "null"}, false},
		{"literal None", Enrichment{Status: EnrichmentCompleted, Result: "None"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.enrichment.Usable())
		})
	}
}

func TestWebsetProgressAggregates(t *testing.T) {
	ws := &Webset{
		ID:     "ws-1",
		Status: StatusRunning,
		Searches: []SearchState{
			{Progress: Progress{Found: 10, Analyzed: 40}},
			{Progress: Progress{Found: 5, Analyzed: 20}},
		},
	}

	got := ws.Progress()
	assert.Equal(t, 15, got.Found)
	assert.Equal(t, 60, got.Analyzed)
}

func TestStatusClassification(t *testing.T) {
	assert.True(t, IsRunning(StatusRunning))
	assert.True(t, IsRunning(StatusPaused))
	assert.True(t, IsTerminalSuccess(StatusIdle))
	assert.True(t, IsTerminalSuccess(StatusComplete))
	assert.True(t, IsTerminalFailure(StatusFailed))
	assert.True(t, IsTerminalFailure(StatusCanceled))
	assert.False(t, IsRunning(StatusIdle))
	assert.False(t, IsTerminalSuccess(StatusFailed))
}
