package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	auditrepository "github.com/smallbiznis/petroprice/internal/audit/repository"
	auditservice "github.com/smallbiznis/petroprice/internal/audit/service"
	"github.com/smallbiznis/petroprice/internal/cache"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/smallbiznis/petroprice/internal/providers/transaction"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	"github.com/smallbiznis/petroprice/internal/reconciliation/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T, handler http.Handler, policy config.PricingPolicy) (*Service, *gorm.DB, context.Context) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&reconciliationdomain.Consignment{},
		&reconciliationdomain.Route{},
		&reconciliationdomain.ThreeWayReconciliation{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))

	var transactions transaction.Client
	if handler != nil {
		srv := httptest.NewServer(handler)
		t.Cleanup(srv.Close)
		transactions = transaction.NewWithHTTP(httpclient.New(httpclient.Options{Provider: "transaction", BaseURL: srv.URL}))
	}

	svc := New(Params{
		DB:           db,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clk,
		Repo:         repository.Provide(),
		Transactions: transactions,
		Policy:       cache.NewPolicyReader(cache.NewPricingCache(clk), config.NewStaticPolicyHolder(policy)),
		AuditSvc: auditservice.NewService(auditservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepository.Provide(),
		}),
	}).(*Service)

	return svc, db, orgcontext.WithOrgID(context.Background(), snowflake.ID(100))
}

func TestReconcileFetchesAndCachesConsignment(t *testing.T) {
	var calls atomic.Int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/consignments/CN-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"consignmentId":"CN-1","routeId":"R-KSI","productCode":"pms","stationId":"ST-001",
			"depotLitres":"10000","transporterLitres":"9980","stationLitres":"9950","plannedKm":"300","actualKm":"325",
			"deliveredAt":"2026-05-03T14:00:00Z"}`))
	})
	svc, db, ctx := setupService(t, handler, config.DefaultPricingPolicy())

	rec, err := svc.Reconcile(ctx, "CN-1")
	require.NoError(t, err)
	assert.Equal(t, reconciliationdomain.StatusMatched, rec.Status)
	assert.True(t, rec.VariancePct.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, rec.TolerancePct.Equal(decimal.NewFromInt(2)))

	consignment, err := svc.GetConsignment(ctx, "CN-1")
	require.NoError(t, err)
	assert.Equal(t, "PMS", consignment.ProductCode)
	require.NotNil(t, consignment.DeliveredAt)
	assert.EqualValues(t, 1, calls.Load())

	again, err := svc.Reconcile(ctx, "CN-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, again.ID)

	var rows int64
	require.NoError(t, db.Model(&reconciliationdomain.ThreeWayReconciliation{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)

	got, err := svc.Get(ctx, "CN-1")
	require.NoError(t, err)
	assert.Equal(t, reconciliationdomain.StatusMatched, got.Status)
}

func TestReconcileUsesPolicyTolerance(t *testing.T) {
	policy := config.DefaultPricingPolicy()
	policy.ReconciliationTolerancePct = 0.25
	svc, _, ctx := setupService(t, nil, policy)

	_, err := svc.RecordConsignment(ctx, reconciliationdomain.Consignment{
		ConsignmentID:     "CN-2",
		RouteID:           "R-KSI",
		ProductCode:       "AGO",
		DepotLitres:       decimal.NewFromInt(10000),
		TransporterLitres: decimal.NewFromInt(9980),
		StationLitres:     decimal.NewFromInt(9950),
	})
	require.NoError(t, err)

	rec, err := svc.Reconcile(ctx, "CN-2")
	require.NoError(t, err)
	assert.Equal(t, reconciliationdomain.StatusVarianceDetected, rec.Status)
}

func TestReconcileUnknownConsignment(t *testing.T) {
	svc, _, ctx := setupService(t, http.NotFoundHandler(), config.DefaultPricingPolicy())

	_, err := svc.Reconcile(ctx, "CN-404")
	assert.ErrorIs(t, err, reconciliationdomain.ErrConsignmentNotFound)

	_, err = svc.Get(ctx, "CN-404")
	assert.ErrorIs(t, err, reconciliationdomain.ErrReconciliationMissing)

	_, err = svc.Reconcile(ctx, " ")
	assert.ErrorIs(t, err, reconciliationdomain.ErrInvalidConsignment)
}

func TestUpsertRoute(t *testing.T) {
	svc, _, ctx := setupService(t, nil, config.DefaultPricingPolicy())

	route, err := svc.UpsertRoute(ctx, reconciliationdomain.Route{
		RouteID: "R-KSI", Name: "Tema - Kumasi", KmThreshold: decimal.NewFromInt(200), RouteType: "rural",
	})
	require.NoError(t, err)
	assert.Equal(t, reconciliationdomain.RouteRural, route.RouteType)

	updated, err := svc.UpsertRoute(ctx, reconciliationdomain.Route{
		RouteID: "R-KSI", KmThreshold: decimal.NewFromInt(220), RouteType: "RURAL",
	})
	require.NoError(t, err)
	assert.Equal(t, route.ID, updated.ID)
	assert.True(t, updated.KmThreshold.Equal(decimal.NewFromInt(220)))

	_, err = svc.UpsertRoute(ctx, reconciliationdomain.Route{RouteID: "R-X", RouteType: "SEA"})
	assert.ErrorIs(t, err, reconciliationdomain.ErrInvalidRoute)

	_, err = svc.GetRoute(ctx, "R-NONE")
	assert.ErrorIs(t, err, reconciliationdomain.ErrRouteNotFound)
}
