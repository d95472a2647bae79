package dealer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDealerClient(t *testing.T) {
	var notice SettlementNotice
	mux := http.NewServeMux()
	mux.HandleFunc("/dealers/D-9", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"D-9","code":"ACCRA-NORTH","name":"Accra North","status":"ACTIVE"}`))
	})
	mux.HandleFunc("/dealers/D-9/credit-profile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"dealerId":"D-9","creditLimit":"50000","outstanding":"1200.50"}`))
	})
	mux.HandleFunc("/dealers/D-9/settlements", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SETTLEMENT_POSTED:SETT-d-9-2026-W08-1", r.Header.Get("Idempotency-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&notice))
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewWithHTTP(httpclient.New(httpclient.Options{Provider: "dealer", BaseURL: srv.URL}))
	ctx := context.Background()

	d, err := c.GetDealer(ctx, "D-9")
	require.NoError(t, err)
	assert.Equal(t, "Accra North", d.Name)

	profile, err := c.GetCreditProfile(ctx, "D-9")
	require.NoError(t, err)
	assert.Equal(t, "1200.5", profile.Outstanding.String())

	require.NoError(t, c.NotifySettlement(ctx, SettlementNotice{
		Type:             NoticeSettlementPosted,
		SettlementNumber: "SETT-d-9-2026-W08-1",
		DealerID:         "D-9",
		NetPayable:       decimal.RequireFromString("9212.50"),
	}))
	assert.Equal(t, "9212.5", notice.NetPayable.String())
}
