package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
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
	componentdomain "github.com/smallbiznis/petroprice/internal/component/domain"
	"github.com/smallbiznis/petroprice/internal/config"
	journaldomain "github.com/smallbiznis/petroprice/internal/journal/domain"
	journalrepository "github.com/smallbiznis/petroprice/internal/journal/repository"
	journalservice "github.com/smallbiznis/petroprice/internal/journal/service"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	"github.com/smallbiznis/petroprice/internal/providers/httpclient"
	"github.com/smallbiznis/petroprice/internal/providers/npa"
	reconciliationdomain "github.com/smallbiznis/petroprice/internal/reconciliation/domain"
	reconciliationrepository "github.com/smallbiznis/petroprice/internal/reconciliation/repository"
	reconciliationservice "github.com/smallbiznis/petroprice/internal/reconciliation/service"
	uppfdomain "github.com/smallbiznis/petroprice/internal/uppf/domain"
	"github.com/smallbiznis/petroprice/internal/uppf/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testWindow = "2026-W08"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// fakeRegulator serves the UPPF endpoints and records claim batches.
type fakeRegulator struct {
	mu         sync.Mutex
	batches    []npa.ClaimBatch
	failClaims bool
	failRates  bool
	rateSheet  string
}

func (f *fakeRegulator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/uppf/claims":
		if f.failClaims {
			http.Error(w, "rejected", http.StatusUnprocessableEntity)
			return
		}
		var batch npa.ClaimBatch
		if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.batches = append(f.batches, batch)
		_ = json.NewEncoder(w).Encode(npa.SubmissionAck{
			SubmissionReference: batch.SubmissionReference, Status: "RECEIVED", Accepted: len(batch.Claims),
		})
	case r.Method == http.MethodGet && r.URL.Path == "/uppf/rates/current":
		if f.failRates {
			http.Error(w, "sheet withdrawn", http.StatusUnprocessableEntity)
			return
		}
		_, _ = w.Write([]byte(f.rateSheet))
	default:
		http.NotFound(w, r)
	}
}

type fixture struct {
	db             *gorm.DB
	node           *snowflake.Node
	clk            *clock.FakeClock
	policy         *cache.PolicyReader
	audit          auditdomain.Service
	reconciliation reconciliationdomain.Service
	journal        journaldomain.Service
	regulator      *fakeRegulator
	npa            npa.Client
	ctx            context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&reconciliationdomain.Consignment{},
		&reconciliationdomain.Route{},
		&reconciliationdomain.ThreeWayReconciliation{},
		&uppfdomain.UppfClaim{},
		&uppfdomain.RateSyncRun{},
		&journaldomain.JournalRequest{},
		&componentdomain.PricingComponent{},
		&auditdomain.AuditLog{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	policy := cache.NewPolicyReader(cache.NewPricingCache(clk), config.NewStaticPolicyHolder(config.DefaultPricingPolicy()))
	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepository.Provide(),
	})

	regulator := &fakeRegulator{}
	srv := httptest.NewServer(regulator)
	t.Cleanup(srv.Close)

	return &fixture{
		db:     db,
		node:   node,
		clk:    clk,
		policy: policy,
		audit:  audit,
		reconciliation: reconciliationservice.New(reconciliationservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk,
			Repo: reconciliationrepository.Provide(), Policy: policy, AuditSvc: audit,
		}),
		journal: journalservice.NewService(journalservice.Params{
			DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: journalrepository.Provide(), AuditSvc: audit,
		}),
		regulator: regulator,
		npa:       npa.NewWithHTTP(httpclient.New(httpclient.Options{Provider: "npa", BaseURL: srv.URL})),
		ctx:       orgcontext.WithOrgID(context.Background(), snowflake.ID(100)),
	}
}

func (f *fixture) service() *Service {
	return New(Params{
		DB:             f.db,
		Log:            zap.NewNop(),
		GenID:          f.node,
		Clock:          f.clk,
		Repo:           repository.Provide(),
		Reconciliation: f.reconciliation,
		Journal:        f.journal,
		NPA:            f.npa,
		Policy:         f.policy,
		AuditSvc:       f.audit,
	}).(*Service)
}

func (f *fixture) route(t *testing.T, id, threshold string) {
	t.Helper()
	_, err := f.reconciliation.UpsertRoute(f.ctx, reconciliationdomain.Route{
		RouteID: id, KmThreshold: d(threshold), RouteType: reconciliationdomain.RouteRural,
	})
	require.NoError(t, err)
}

func (f *fixture) consignment(t *testing.T, id, routeID, km, litres string, reconcile bool) {
	t.Helper()
	_, err := f.reconciliation.RecordConsignment(f.ctx, reconciliationdomain.Consignment{
		ConsignmentID:     id,
		RouteID:           routeID,
		ProductCode:       "PMS",
		DepotLitres:       d(litres),
		TransporterLitres: d(litres),
		StationLitres:     d(litres),
		PlannedKm:         d(km),
		ActualKm:          d(km),
	})
	require.NoError(t, err)
	if reconcile {
		_, err = f.reconciliation.Reconcile(f.ctx, id)
		require.NoError(t, err)
	}
}

func TestCreateClaimChecksPreconditionsInOrder(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	create := func(id string) error {
		_, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: id, WindowID: testWindow})
		return err
	}

	assert.ErrorIs(t, create("CN-404"), uppfdomain.ErrConsignmentNotFound)

	f.consignment(t, "CN-NOROUTE", "R-MISSING", "125", "30000", true)
	assert.ErrorIs(t, create("CN-NOROUTE"), uppfdomain.ErrRouteNotFound)

	f.route(t, "R-FLAT", "0")
	f.consignment(t, "CN-FLAT", "R-FLAT", "125", "30000", true)
	assert.ErrorIs(t, create("CN-FLAT"), uppfdomain.ErrNoEqualisationPoint)

	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-UNRECONCILED", "R-TAM", "125", "30000", false)
	assert.ErrorIs(t, create("CN-UNRECONCILED"), uppfdomain.ErrNotReconciled)

	f.consignment(t, "CN-SHORT", "R-TAM", "90", "30000", true)
	assert.ErrorIs(t, create("CN-SHORT"), uppfdomain.ErrNoEligibleDistance)

	_, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{WindowID: testWindow})
	assert.ErrorIs(t, err, uppfdomain.ErrInvalidRequest)
}

func TestCreateClaimComputesAmount(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-1", "R-TAM", "125", "30000", true)

	claim, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	require.NoError(t, err)
	assert.Equal(t, "UPPF-2026-W08-0001", claim.ClaimNumber)
	assert.Equal(t, "900.00", claim.ClaimAmount.StringFixed(2))
	assert.True(t, claim.KmBeyondEqualisation.Equal(d("25")))
	assert.Equal(t, uppfdomain.ClaimDraft, claim.Status)
	assert.True(t, claim.ThreeWayReconciled)

	_, err = svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	assert.ErrorIs(t, err, uppfdomain.ErrClaimExists)

	f.consignment(t, "CN-2", "R-TAM", "150", "1000", true)
	tariff := d("0.002")
	second, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-2", WindowID: testWindow, TariffPerLitreKm: &tariff})
	require.NoError(t, err)
	assert.Equal(t, "UPPF-2026-W08-0002", second.ClaimNumber)
	assert.Equal(t, "100.00", second.ClaimAmount.StringFixed(2))
}

func TestCreateClaimReportsTakenClaimNumberAsConflict(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-1", "R-TAM", "125", "30000", true)
	f.consignment(t, "CN-2", "R-TAM", "150", "1000", true)

	first, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	require.NoError(t, err)

	// A concurrent writer took the next sequence after this request counted.
	now := f.clk.Now().UTC()
	require.NoError(t, repository.Provide().InsertClaim(f.ctx, f.db, &uppfdomain.UppfClaim{
		ID:            f.node.Generate(),
		OrgID:         snowflake.ID(100),
		ClaimNumber:   uppfdomain.ClaimNumber(testWindow, 2),
		ConsignmentID: "CN-OTHER",
		RouteID:       "R-TAM",
		WindowID:      "2026-W09",
		ProductCode:   "PMS",
		Status:        uppfdomain.ClaimDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}))

	_, err = svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-2", WindowID: testWindow})
	assert.ErrorIs(t, err, uppfdomain.ErrClaimNumberConflict)
	assert.NotErrorIs(t, err, uppfdomain.ErrClaimExists)

	var count int64
	require.NoError(t, f.db.Model(&uppfdomain.UppfClaim{}).Where("consignment_id = ?", "CN-2").Count(&count).Error)
	assert.Zero(t, count)

	_, err = svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	assert.ErrorIs(t, err, uppfdomain.ErrClaimExists, "claim %s already filed", first.ClaimNumber)
}

func TestClaimLifecycle(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-1", "R-TAM", "125", "30000", true)
	claim, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	require.NoError(t, err)

	_, err = svc.SettleClaim(f.ctx, claim.ClaimNumber, uppfdomain.SettleRequest{SettlementAmount: d("900")})
	assert.ErrorIs(t, err, uppfdomain.ErrInvalidTransition)

	submitted, err := svc.SubmitClaims(f.ctx, testWindow)
	require.NoError(t, err)
	assert.Equal(t, 1, submitted.Submitted)
	assert.True(t, submitted.Pushed)
	assert.Empty(t, submitted.Warning)
	assert.Regexp(t, `^NPA-2026-W08-[0-9A-Z]{26}$`, submitted.SubmissionReference)
	require.Len(t, f.regulator.batches, 1)
	assert.Equal(t, submitted.SubmissionReference, f.regulator.batches[0].SubmissionReference)
	assert.Equal(t, claim.ClaimNumber, f.regulator.batches[0].Claims[0].ClaimNumber)

	again, err := svc.SubmitClaims(f.ctx, testWindow)
	require.NoError(t, err)
	assert.Zero(t, again.Submitted)
	assert.Empty(t, again.SubmissionReference)

	approvedAmount := d("850")
	approved, err := svc.RecordResponse(f.ctx, claim.ClaimNumber, uppfdomain.ResponseRequest{Approved: true, ApprovedAmount: &approvedAmount})
	require.NoError(t, err)
	assert.Equal(t, uppfdomain.ClaimApproved, approved.Status)
	assert.True(t, approved.VarianceAmount.Equal(d("50")))

	_, err = svc.RecordResponse(f.ctx, claim.ClaimNumber, uppfdomain.ResponseRequest{Approved: true})
	assert.ErrorIs(t, err, uppfdomain.ErrInvalidTransition)

	settled, err := svc.SettleClaim(f.ctx, claim.ClaimNumber, uppfdomain.SettleRequest{SettlementAmount: d("800"), Reference: "BOG-7781"})
	require.NoError(t, err)
	assert.Equal(t, uppfdomain.ClaimSettled, settled.Status)
	assert.True(t, settled.VarianceAmount.Equal(d("100")))
	require.NotNil(t, settled.JournalEntryNumber)
	assert.Equal(t, "JE-UPPF_SETTLEMENT-20260504-0001", *settled.JournalEntryNumber)

	var journals []journaldomain.JournalRequest
	require.NoError(t, f.db.Order("entry_number").Find(&journals).Error)
	require.Len(t, journals, 2)
	assert.Equal(t, journaldomain.TemplateUPPFClaim, journals[0].TemplateCode)
	assert.True(t, journals[0].TotalDebit.Equal(d("850")))
	assert.Equal(t, journaldomain.TemplateUPPFSettlement, journals[1].TemplateCode)
	assert.Equal(t, "BOG-7781", journals[1].Reference)

	counts, err := svc.CountByStatus(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, counts[uppfdomain.ClaimSettled])
}

func TestRejectRequiresReason(t *testing.T) {
	f := newFixture(t)
	svc := f.service()
	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-1", "R-TAM", "125", "30000", true)
	claim, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: "CN-1", WindowID: testWindow})
	require.NoError(t, err)
	_, err = svc.SubmitClaims(f.ctx, testWindow)
	require.NoError(t, err)

	_, err = svc.RecordResponse(f.ctx, claim.ClaimNumber, uppfdomain.ResponseRequest{Approved: false, Reason: "  "})
	assert.ErrorIs(t, err, uppfdomain.ErrRejectionReason)

	rejected, err := svc.RecordResponse(f.ctx, claim.ClaimNumber, uppfdomain.ResponseRequest{Approved: false, Reason: "waybill mismatch"})
	require.NoError(t, err)
	assert.Equal(t, uppfdomain.ClaimRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "waybill mismatch", *rejected.RejectionReason)
	assert.True(t, rejected.VarianceAmount.Equal(d("900")))

	var journals int64
	require.NoError(t, f.db.Model(&journaldomain.JournalRequest{}).Count(&journals).Error)
	assert.Zero(t, journals)

	_, err = svc.GetClaim(f.ctx, "UPPF-2026-W08-9999")
	assert.ErrorIs(t, err, uppfdomain.ErrClaimNotFound)
}

func TestSubmitClaimsKeepsClaimsWhenPushFails(t *testing.T) {
	f := newFixture(t)
	f.regulator.failClaims = true
	svc := f.service()
	f.route(t, "R-TAM", "100")
	f.consignment(t, "CN-1", "R-TAM", "125", "30000", true)
	f.consignment(t, "CN-2", "R-TAM", "110", "10000", true)
	for _, id := range []string{"CN-1", "CN-2"} {
		_, err := svc.CreateClaim(f.ctx, uppfdomain.CreateClaimRequest{ConsignmentID: id, WindowID: testWindow})
		require.NoError(t, err)
	}

	result, err := svc.SubmitClaims(f.ctx, testWindow)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Submitted)
	assert.False(t, result.Pushed)
	assert.Contains(t, result.Warning, "regulator push failed")
	assert.Equal(t, "1020.00", result.TotalAmount.StringFixed(2))

	claims, err := svc.ListClaims(f.ctx, uppfdomain.ListClaimsRequest{WindowID: testWindow, Status: "submitted"})
	require.NoError(t, err)
	require.Len(t, claims, 2)
	for _, c := range claims {
		require.NotNil(t, c.SubmissionReference)
		assert.Equal(t, result.SubmissionReference, *c.SubmissionReference)
	}
}

func TestCalculateLevyUsesPolicyTable(t *testing.T) {
	f := newFixture(t)
	svc := f.service()

	result, err := svc.CalculateLevy(f.ctx, uppfdomain.LevyInput{ProductCode: "PMS", Litres: d("30000"), RouteType: "URBAN"})
	require.NoError(t, err)
	assert.Equal(t, "3780.00", result.Total.StringFixed(2))

	_, err = svc.CalculateLevy(f.ctx, uppfdomain.LevyInput{ProductCode: "JET", Litres: d("1")})
	assert.ErrorIs(t, err, uppfdomain.ErrUnknownProduct)
}
