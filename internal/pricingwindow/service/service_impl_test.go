package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/petroprice/internal/audit/domain"
	auditrepository "github.com/smallbiznis/petroprice/internal/audit/repository"
	auditservice "github.com/smallbiznis/petroprice/internal/audit/service"
	"github.com/smallbiznis/petroprice/internal/clock"
	"github.com/smallbiznis/petroprice/internal/config"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/pricingwindow/repository"
	"github.com/smallbiznis/petroprice/internal/providers/station"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var may1 = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

func day(d int) time.Time { return may1.AddDate(0, 0, d-1) }

type stubCalculator struct {
	prices  map[string]string
	invalid bool
}

func (s *stubCalculator) CalculatePrice(_ context.Context, req pricebuildupdomain.CalculateRequest) (*pricebuildupdomain.Calculation, error) {
	price := decimal.RequireFromString(s.prices[req.ProductCode])
	calc := &pricebuildupdomain.Calculation{
		Result: pricebuildupdomain.Result{
			ProductCode:     req.ProductCode,
			EffectiveDate:   req.EffectiveDate,
			ExRefineryPrice: price.Sub(decimal.NewFromInt(1)),
			ExPumpPrice:     price,
			Components: []pricebuildupdomain.Line{
				{Code: "EXREF", Name: "Ex-Refinery", Value: price.Sub(decimal.NewFromInt(1))},
				{Code: "UPPF", Name: "UPPF", Value: decimal.NewFromInt(1)},
			},
			SourceDocuments: []string{"NPA-2026-W08"},
		},
	}
	if s.invalid {
		calc.Validation.Errors = []string{"ex-pump price below minimum"}
	}
	return calc, nil
}

type fixture struct {
	svc      *Service
	db       *gorm.DB
	ctx      context.Context
	clk      *clock.FakeClock
	stations *MockClient
	calc     *stubCalculator
}

func setupService(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&windowdomain.PricingWindow{}, &windowdomain.StationPrice{}, &auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(may1.Add(8 * time.Hour))
	ctrl := gomock.NewController(t)
	stations := NewMockClient(ctrl)
	calc := &stubCalculator{prices: map[string]string{"PMS": "14.2500", "AGO": "15.1000"}}

	audit := auditservice.NewService(auditservice.Params{
		DB: db, Log: zap.NewNop(), GenID: node, Clock: clk, Repo: auditrepository.Provide(),
	})
	svc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Cfg:        config.Config{Timezone: "UTC"},
		Repo:       repository.Provide(),
		Calculator: calc,
		Stations:   stations,
		AuditSvc:   audit,
	}).(*Service)

	return &fixture{
		svc:      svc,
		db:       db,
		ctx:      orgcontext.WithOrgID(context.Background(), snowflake.ID(100)),
		clk:      clk,
		stations: stations,
		calc:     calc,
	}
}

func (f *fixture) expectCatalog() {
	f.stations.EXPECT().ListActiveStations(gomock.Any()).Return([]station.Station{
		{ID: "ST-001", Name: "Airport", Active: true},
		{ID: "ST-002", Name: "Tema", Active: true},
	}, nil).AnyTimes()
	f.stations.EXPECT().ListSupportedProducts(gomock.Any()).Return([]station.Product{
		{Code: "PMS"}, {Code: "AGO"},
	}, nil).AnyTimes()
}

func acknowledgeAll(failStation string) func(context.Context, []station.PriceItem) ([]station.PublishItemResult, error) {
	return func(_ context.Context, items []station.PriceItem) ([]station.PublishItemResult, error) {
		out := make([]station.PublishItemResult, 0, len(items))
		for _, item := range items {
			status := station.DeliveryDelivered
			if item.StationID == failStation {
				status = station.DeliveryFailed
			}
			out = append(out, station.PublishItemResult{StationID: item.StationID, ProductID: item.ProductID, Status: status})
		}
		return out, nil
	}
}

func (f *fixture) createWindow(t *testing.T, number int, start, end time.Time) *windowdomain.PricingWindow {
	t.Helper()
	w, err := f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
		WindowNumber: number, Year: 2026, StartDate: start, EndDate: end,
	})
	require.NoError(t, err)
	return w
}

func TestCreateWindowRejectsOverlaps(t *testing.T) {
	f := setupService(t)
	f.createWindow(t, 8, day(1), day(14))

	tests := []struct {
		name       string
		start, end time.Time
	}{
		{"starts inside", day(10), day(20)},
		{"ends inside", day(1).AddDate(0, 0, -6), day(3)},
		{"contains", day(1).AddDate(0, 0, -1), day(20)},
		{"contained", day(5), day(7)},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
				WindowNumber: 20 + i, Year: 2026, StartDate: tt.start, EndDate: tt.end,
			})
			assert.ErrorIs(t, err, windowdomain.ErrWindowOverlap)
		})
	}

	next := f.createWindow(t, 9, day(15), day(28))
	assert.Equal(t, "2026-W09", next.WindowID)
	assert.Equal(t, windowdomain.StatusDraft, next.Status)
}

func TestCreateWindowValidation(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
		WindowNumber: 8, Year: 2026, StartDate: day(14), EndDate: day(1),
	})
	assert.ErrorIs(t, err, windowdomain.ErrInvalidDateRange)

	late := day(15)
	_, err = f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
		WindowNumber: 8, Year: 2026, StartDate: day(1), EndDate: day(14), SubmissionDeadline: &late,
	})
	assert.ErrorIs(t, err, windowdomain.ErrInvalidDeadline)

	f.createWindow(t, 8, day(1), day(14))
	_, err = f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
		WindowNumber: 8, Year: 2026, StartDate: day(20), EndDate: day(30),
	})
	assert.ErrorIs(t, err, windowdomain.ErrWindowExists)

	_, err = f.svc.CreateWindow(context.Background(), windowdomain.CreateWindowRequest{
		WindowNumber: 9, Year: 2026, StartDate: day(15), EndDate: day(28),
	})
	assert.ErrorIs(t, err, windowdomain.ErrInvalidOrganization)
}

func TestCreateBiWeeklyWindowIsIdempotent(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Any()).DoAndReturn(acknowledgeAll("ST-002")).Times(1)

	previous := f.createWindow(t, 7, day(1).AddDate(0, 0, -14), day(1).AddDate(0, 0, -1))
	_, err := f.svc.repo.UpdateStatus(f.ctx, f.db, previous.OrgID, previous.WindowID, windowdomain.StatusDraft, windowdomain.StatusActive, f.clk.Now())
	require.NoError(t, err)

	first, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	require.True(t, first.Created)
	assert.Equal(t, "2026-W08", first.Window.WindowID)
	assert.Equal(t, windowdomain.StatusActive, first.Window.Status)
	require.NotNil(t, first.Window.SubmissionDeadline)
	assert.True(t, first.Window.SubmissionDeadline.Equal(time.Date(2026, 5, 12, 17, 0, 0, 0, time.UTC)))
	require.NotNil(t, first.Publish)
	assert.Equal(t, 4, first.Publish.Published)
	assert.Equal(t, 2, first.Publish.Delivered)
	assert.Empty(t, first.PublishError)

	closed, err := f.svc.GetWindow(f.ctx, previous.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	f.clk.Advance(3 * time.Hour)
	second, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Nil(t, second.Publish)
	assert.Equal(t, first.Window.ID, second.Window.ID)

	var windows int64
	require.NoError(t, f.db.Model(&windowdomain.PricingWindow{}).Count(&windows).Error)
	assert.EqualValues(t, 2, windows)

	prices, err := f.svc.ListStationPrices(f.ctx, "2026-W08")
	require.NoError(t, err)
	require.Len(t, prices, 4)
	for _, p := range prices {
		if p.StationID == "ST-002" {
			assert.Equal(t, windowdomain.DeliveryFailed, p.DeliveryStatus)
		} else {
			assert.Equal(t, windowdomain.DeliveryDelivered, p.DeliveryStatus)
		}
	}
}

func TestCreateBiWeeklyWindowReusesWindowLaterInBlock(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Any()).DoAndReturn(acknowledgeAll("")).Times(1)

	first, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	require.True(t, first.Created)
	assert.Equal(t, "2026-W08", first.Window.WindowID)

	// day 125 of the year still falls in block 8
	f.clk.Set(day(5).Add(10 * time.Hour))
	again, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	assert.False(t, again.Created)
	assert.Equal(t, first.Window.ID, again.Window.ID)
	assert.True(t, again.Window.StartDate.Equal(day(1)))

	var windows int64
	require.NoError(t, f.db.Model(&windowdomain.PricingWindow{}).Count(&windows).Error)
	assert.EqualValues(t, 1, windows)
}

func TestCreateBiWeeklyWindowOffCycleClampsPredecessor(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Any()).DoAndReturn(acknowledgeAll("")).Times(2)

	first, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	require.True(t, first.Created)
	assert.True(t, first.Window.EndDate.Equal(day(14)))

	f.clk.Set(day(6).Add(8 * time.Hour))
	second, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	require.True(t, second.Created)
	assert.Equal(t, "2026-W09", second.Window.WindowID)
	assert.Equal(t, windowdomain.StatusActive, second.Window.Status)

	previous, err := f.svc.GetWindow(f.ctx, first.Window.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusClosed, previous.Status)
	assert.True(t, previous.EndDate.Equal(day(5)), "end_date %s", previous.EndDate)
	require.NotNil(t, previous.SubmissionDeadline)
	assert.False(t, previous.SubmissionDeadline.After(previous.EndDate))

	all, err := f.svc.ListWindows(f.ctx, windowdomain.ListWindowsRequest{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.False(t, windowdomain.Overlaps(all[0].StartDate, all[0].EndDate, all[1].StartDate, all[1].EndDate))

	active, err := f.svc.ListWindows(f.ctx, windowdomain.ListWindowsRequest{Status: "ACTIVE"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "2026-W09", active[0].WindowID)
}

func TestCreateBiWeeklyWindowRejectsOverlappingDraft(t *testing.T) {
	f := setupService(t)
	f.createWindow(t, 20, day(10), day(20))

	_, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	assert.ErrorIs(t, err, windowdomain.ErrWindowOverlap)

	var windows int64
	require.NoError(t, f.db.Model(&windowdomain.PricingWindow{}).Count(&windows).Error)
	assert.EqualValues(t, 1, windows)
}

func TestCreateBiWeeklyWindowKeepsWindowWhenPublishFails(t *testing.T) {
	f := setupService(t)
	f.stations.EXPECT().ListActiveStations(gomock.Any()).Return(nil, errors.New("station service unavailable"))

	result, err := f.svc.CreateBiWeeklyWindow(f.ctx)
	require.NoError(t, err)
	assert.True(t, result.Created)
	assert.Contains(t, result.PublishError, "station service unavailable")
	assert.Equal(t, windowdomain.StatusDraft, result.Window.Status)
}

func TestCalculateAndPublishFailsFastOnInvalidCalculation(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.calc.invalid = true
	w := f.createWindow(t, 8, day(1), day(14))

	_, err := f.svc.CalculateAndPublishPrices(f.ctx, w.WindowID, nil)
	assert.ErrorIs(t, err, windowdomain.ErrCalculationInvalid)

	var count int64
	require.NoError(t, f.db.Model(&windowdomain.StationPrice{}).Count(&count).Error)
	assert.Zero(t, count)

	got, err := f.svc.GetWindow(f.ctx, w.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusDraft, got.Status)
}

func TestCalculateAndPublishSkipsPublishedPairs(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Len(4)).DoAndReturn(acknowledgeAll("")).Times(1)
	w := f.createWindow(t, 8, day(1), day(14))

	first, err := f.svc.CalculateAndPublishPrices(f.ctx, w.WindowID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Published)
	assert.Equal(t, 4, first.Delivered)
	assert.Zero(t, first.Skipped)
	assert.True(t, first.Activated)

	second, err := f.svc.CalculateAndPublishPrices(f.ctx, w.WindowID, nil)
	require.NoError(t, err)
	assert.Zero(t, second.Published)
	assert.Equal(t, 4, second.Skipped)

	got, err := f.svc.GetWindow(f.ctx, w.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusActive, got.Status)
	assert.NotNil(t, got.PublishedAt)
}

func TestPublishStagesNextWindowUntilTransition(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Len(4)).DoAndReturn(acknowledgeAll("")).Times(2)
	cur := f.createWindow(t, 8, day(1), day(14))
	next := f.createWindow(t, 9, day(15), day(28))

	first, err := f.svc.CalculateAndPublishPrices(f.ctx, cur.WindowID, nil)
	require.NoError(t, err)
	assert.True(t, first.Activated)

	f.calc.prices["PMS"] = "15.6750"
	second, err := f.svc.CalculateAndPublishPrices(f.ctx, next.WindowID, nil)
	require.NoError(t, err)
	assert.False(t, second.Activated)
	assert.Equal(t, 4, second.Published)

	active, err := f.svc.ListWindows(f.ctx, windowdomain.ListWindowsRequest{Status: "ACTIVE"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, cur.WindowID, active[0].WindowID)

	staged, err := f.svc.GetWindow(f.ctx, next.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusDraft, staged.Status)
	assert.NotNil(t, staged.PublishedAt)

	changes, err := f.svc.TransitionWindow(f.ctx, cur.WindowID, next.WindowID)
	require.NoError(t, err)
	require.Len(t, changes, 4)
	for _, c := range changes {
		if c.ProductCode == "PMS" {
			assert.True(t, c.ChangePct.Equal(decimal.NewFromInt(10)), "%s %s", c.StationID, c.ChangePct)
		} else {
			assert.True(t, c.ChangePct.IsZero(), "%s %s", c.StationID, c.ChangePct)
		}
	}

	got, err := f.svc.GetActiveWindow(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, next.WindowID, got.WindowID)
}

func TestCalculateAndPublishDegradesWhenPushFails(t *testing.T) {
	f := setupService(t)
	f.expectCatalog()
	f.stations.EXPECT().PublishPrices(gomock.Any(), gomock.Any()).Return(nil, errors.New("circuit_open"))
	w := f.createWindow(t, 8, day(1), day(14))

	result, err := f.svc.CalculateAndPublishPrices(f.ctx, w.WindowID, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Published)
	assert.Zero(t, result.Delivered)
	assert.Contains(t, result.Warnings, "station push failed: circuit_open")

	prices, err := f.svc.ListStationPrices(f.ctx, w.WindowID)
	require.NoError(t, err)
	for _, p := range prices {
		assert.Equal(t, windowdomain.DeliveryFailed, p.DeliveryStatus)
		require.NotNil(t, p.DeliveryError)
	}
}

func TestCalculateAndPublishUnknownWindow(t *testing.T) {
	f := setupService(t)
	_, err := f.svc.CalculateAndPublishPrices(f.ctx, "2026-W40", nil)
	assert.ErrorIs(t, err, windowdomain.ErrWindowNotFound)
}

func insertPrice(t *testing.T, f *fixture, windowID, stationID, product, price string) {
	t.Helper()
	require.NoError(t, f.svc.repo.InsertStationPrice(f.ctx, f.db, &windowdomain.StationPrice{
		ID:             f.svc.genID.Generate(),
		OrgID:          snowflake.ID(100),
		StationID:      stationID,
		ProductCode:    product,
		WindowID:       windowID,
		ExPumpPrice:    decimal.RequireFromString(price),
		Breakdown:      []byte(`[{"code":"EXREF","value":"10"}]`),
		PublishedAt:    f.clk.Now(),
		DeliveryStatus: windowdomain.DeliveryDelivered,
		CreatedAt:      f.clk.Now(),
	}))
}

func TestTransitionWindowReportsPriceChanges(t *testing.T) {
	f := setupService(t)
	cur := f.createWindow(t, 8, day(1), day(14))
	next := f.createWindow(t, 9, day(15), day(28))
	_, err := f.svc.repo.UpdateStatus(f.ctx, f.db, cur.OrgID, cur.WindowID, windowdomain.StatusDraft, windowdomain.StatusActive, f.clk.Now())
	require.NoError(t, err)

	insertPrice(t, f, cur.WindowID, "ST-001", "PMS", "12.50")
	insertPrice(t, f, next.WindowID, "ST-001", "PMS", "13.75")
	insertPrice(t, f, next.WindowID, "ST-002", "PMS", "13.75")

	changes, err := f.svc.TransitionWindow(f.ctx, cur.WindowID, next.WindowID)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "ST-001", changes[0].StationID)
	assert.True(t, changes[0].ChangePct.Equal(decimal.RequireFromString("10")))

	active, err := f.svc.GetActiveWindow(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, next.WindowID, active.WindowID)

	_, err = f.svc.TransitionWindow(f.ctx, next.WindowID, cur.WindowID)
	assert.ErrorIs(t, err, windowdomain.ErrInvalidTransition)

	_, err = f.svc.TransitionWindow(f.ctx, next.WindowID, "2026-W30")
	assert.ErrorIs(t, err, windowdomain.ErrWindowNotFound)
}

func TestArchiveOldWindows(t *testing.T) {
	f := setupService(t)
	old := f.createWindow(t, 8, day(1), day(14))
	recent := f.createWindow(t, 9, day(15), day(28))
	for _, w := range []*windowdomain.PricingWindow{old, recent} {
		_, err := f.svc.repo.UpdateStatus(f.ctx, f.db, w.OrgID, w.WindowID, windowdomain.StatusDraft, windowdomain.StatusActive, f.clk.Now())
		require.NoError(t, err)
		_, err = f.svc.repo.UpdateStatus(f.ctx, f.db, w.OrgID, w.WindowID, windowdomain.StatusActive, windowdomain.StatusClosed, f.clk.Now())
		require.NoError(t, err)
	}
	f.clk.Set(day(20).AddDate(1, 0, 0))

	count, err := f.svc.ArchiveOldWindows(f.ctx, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)

	count, err = f.svc.ArchiveOldWindows(f.ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, count)

	got, err := f.svc.GetWindow(f.ctx, old.WindowID)
	require.NoError(t, err)
	assert.Equal(t, windowdomain.StatusArchived, got.Status)
	assert.NotNil(t, got.ArchivedAt)
}

func TestCloseExpiredWindowsAndDeadlines(t *testing.T) {
	f := setupService(t)
	deadline := day(12).Add(17 * time.Hour)
	w, err := f.svc.CreateWindow(f.ctx, windowdomain.CreateWindowRequest{
		WindowNumber: 8, Year: 2026, StartDate: day(1), EndDate: day(14), SubmissionDeadline: &deadline,
	})
	require.NoError(t, err)
	_, err = f.svc.repo.UpdateStatus(f.ctx, f.db, w.OrgID, w.WindowID, windowdomain.StatusDraft, windowdomain.StatusActive, f.clk.Now())
	require.NoError(t, err)

	f.clk.Set(day(13))
	past, err := f.svc.ListPastDeadline(f.ctx)
	require.NoError(t, err)
	require.Len(t, past, 1)

	count, err := f.svc.CloseExpiredWindows(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	f.clk.Set(day(15).Add(time.Hour))
	count, err = f.svc.CloseExpiredWindows(f.ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestExportPriceSchedule(t *testing.T) {
	f := setupService(t)
	w := f.createWindow(t, 8, day(1), day(14))
	insertPrice(t, f, w.WindowID, "ST-001", "PMS", "12.50")

	raw, err := f.svc.ExportPriceSchedule(f.ctx, w.WindowID)
	require.NoError(t, err)

	book, err := excelize.OpenReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer book.Close()

	window, err := book.GetCellValue("summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, "2026-W08", window)

	header, err := book.GetCellValue("prices", "D1")
	require.NoError(t, err)
	assert.Equal(t, "EXREF", header)
	stationID, err := book.GetCellValue("prices", "A2")
	require.NoError(t, err)
	assert.Equal(t, "ST-001", stationID)
	price, err := book.GetCellValue("prices", "C2")
	require.NoError(t, err)
	assert.Equal(t, "12.5", price)

	_, err = f.svc.ExportPriceSchedule(f.ctx, "2026-W09")
	assert.ErrorIs(t, err, windowdomain.ErrWindowNotFound)
}
