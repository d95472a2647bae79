package npa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNPAClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/uppf/rates/current", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"reference":"NPA/UPPF/07","effectiveDate":"2026-04-01T00:00:00Z","rates":[{"productCode":"PMS","rate":"0.1200"}]}`))
	})
	mux.HandleFunc("/uppf/claims", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "NPA-2026-W08-01J", r.Header.Get("Idempotency-Key"))
		var batch ClaimBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		_ = json.NewEncoder(w).Encode(SubmissionAck{
			SubmissionReference: batch.SubmissionReference,
			Status:              "RECEIVED",
			Accepted:            len(batch.Claims),
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithHTTP(httpclient.New(httpclient.Options{Provider: "npa", BaseURL: srv.URL}))

	sheet, err := c.FetchUPPFRates(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NPA/UPPF/07", sheet.Reference)
	require.Len(t, sheet.Rates, 1)
	assert.Equal(t, "0.12", sheet.Rates[0].Rate.String())
	assert.Equal(t, 2026, sheet.EffectiveDate.Year())

	ack, err := c.SubmitClaims(context.Background(), ClaimBatch{
		SubmissionReference: "NPA-2026-W08-01J",
		WindowID:            "2026-W08",
		Claims:              []ClaimItem{{ClaimNumber: "UPPF-2026-W08-0001"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, ack.Accepted)
}
