package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/petroprice/internal/orgcontext"
	pricebuildupdomain "github.com/smallbiznis/petroprice/internal/pricebuildup/domain"
	windowdomain "github.com/smallbiznis/petroprice/internal/pricingwindow/domain"
	"github.com/smallbiznis/petroprice/internal/providers/station"
	"github.com/smallbiznis/petroprice/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

type productPrice struct {
	code            string
	exPumpPrice     decimal.Decimal
	breakdown       []windowdomain.BreakdownLine
	rawBreakdown    datatypes.JSON
	sourceDocuments datatypes.JSON
}

// CalculateAndPublishPrices prices every supported product once for the
// window and writes one StationPrice per active station. Pairs already
// published are skipped, so a rerun only fills gaps.
func (s *Service) CalculateAndPublishPrices(ctx context.Context, windowID string, overrides []pricebuildupdomain.Override) (*windowdomain.PublishResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok {
		return nil, windowdomain.ErrInvalidOrganization
	}
	window, err := s.repo.FindByWindowID(ctx, s.db, orgID, strings.TrimSpace(windowID))
	if err != nil {
		return nil, err
	}
	if window == nil {
		return nil, windowdomain.ErrWindowNotFound
	}
	if window.Status != windowdomain.StatusDraft && window.Status != windowdomain.StatusActive {
		return nil, windowdomain.ErrInvalidTransition
	}

	stations, err := s.stations.ListActiveStations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stations: %w", err)
	}
	products, err := s.stations.ListSupportedProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	result := &windowdomain.PublishResult{
		WindowID: window.WindowID,
		Errors:   []string{},
		Warnings: []string{},
	}
	if len(stations) == 0 {
		result.Warnings = append(result.Warnings, windowdomain.ErrNoStations.Error())
	}

	prices := make([]productPrice, 0, len(products))
	for _, product := range products {
		calc, err := s.calculator.CalculatePrice(ctx, pricebuildupdomain.CalculateRequest{
			ProductCode:   product.Code,
			EffectiveDate: window.StartDate,
			Overrides:     overrides,
		})
		if err != nil {
			return nil, fmt.Errorf("calculate %s: %w", product.Code, err)
		}
		if !calc.Validation.Valid() {
			return nil, fmt.Errorf("%w: %s: %s", windowdomain.ErrCalculationInvalid, product.Code, strings.Join(calc.Validation.Errors, "; "))
		}
		for _, w := range calc.Validation.Warnings {
			result.Warnings = append(result.Warnings, product.Code+": "+w)
		}
		for _, w := range calc.Result.Warnings {
			result.Warnings = append(result.Warnings, product.Code+": "+w)
		}
		price, err := toProductPrice(calc.Result)
		if err != nil {
			return nil, err
		}
		prices = append(prices, price)
	}

	var (
		mu      sync.Mutex
		written []*windowdomain.StationPrice
	)
	publishedAt := s.clock.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(publishWorkers)
	for _, st := range stations {
		for _, price := range prices {
			g.Go(func() error {
				row, skipped, err := s.writeStationPrice(gctx, orgID, window.WindowID, st.ID, price)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err != nil:
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("%s/%s: %v", st.ID, price.code, err))
				case skipped:
					result.Skipped++
				default:
					result.Published++
					written = append(written, row)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	if len(written) > 0 {
		result.Delivered = s.deliver(ctx, window.WindowID, prices, written, result)
	}

	if err := s.repo.MarkPublished(ctx, s.db, orgID, window.WindowID, publishedAt); err != nil {
		return nil, err
	}
	activated, err := s.activateIfIdle(ctx, orgID, window, publishedAt)
	if err != nil {
		return nil, err
	}
	result.Activated = activated

	perProduct := map[string]int{}
	for _, row := range written {
		perProduct[row.ProductCode]++
	}
	for code, count := range perProduct {
		s.obsMetrics.RecordPricesPublished(ctx, code, "published", count)
	}
	if result.Failed > 0 {
		s.obsMetrics.RecordPricesPublished(ctx, "all", "failed", result.Failed)
	}

	if err := s.audit(ctx, s.db, orgID, "pricing_window.published", window.WindowID, map[string]any{
		"published": result.Published,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
		"delivered": result.Delivered,
	}); err != nil {
		s.log.Warn("failed to record publish audit", zap.String("window_id", window.WindowID), zap.Error(err))
	}

	s.log.Info("window prices published",
		zap.String("window_id", window.WindowID),
		zap.Int("stations", len(stations)),
		zap.Int("products", len(prices)),
		zap.Int("published", result.Published),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Bool("activated", result.Activated),
	)
	return result, nil
}

// activateIfIdle moves a DRAFT window to ACTIVE only when the org has no
// other ACTIVE window. A window published ahead of its predecessor stays
// DRAFT with its prices staged until TransitionWindow swaps the two.
func (s *Service) activateIfIdle(ctx context.Context, orgID snowflake.ID, window *windowdomain.PricingWindow, at time.Time) (bool, error) {
	active, err := s.repo.FindActive(ctx, s.db, orgID)
	if err != nil {
		return false, err
	}
	if active != nil {
		return active.WindowID == window.WindowID, nil
	}
	activated, err := s.repo.UpdateStatus(ctx, s.db, orgID, window.WindowID, windowdomain.StatusDraft, windowdomain.StatusActive, at)
	if err != nil {
		// one-active index: another window won the race
		if db.IsDuplicateKeyErr(err) {
			return false, nil
		}
		return false, err
	}
	return activated, nil
}

func (s *Service) writeStationPrice(ctx context.Context, orgID snowflake.ID, windowID, stationID string, price productPrice) (*windowdomain.StationPrice, bool, error) {
	existing, err := s.repo.FindStationPrice(ctx, s.db, orgID, stationID, price.code, windowID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return nil, true, nil
	}

	now := s.clock.Now().UTC()
	row := &windowdomain.StationPrice{
		ID:              s.genID.Generate(),
		OrgID:           orgID,
		StationID:       stationID,
		ProductCode:     price.code,
		WindowID:        windowID,
		ExPumpPrice:     price.exPumpPrice,
		Breakdown:       price.rawBreakdown,
		SourceDocuments: price.sourceDocuments,
		PublishedAt:     now,
		DeliveryStatus:  windowdomain.DeliveryPending,
		CreatedAt:       now,
	}
	if err := s.repo.InsertStationPrice(ctx, s.db, row); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, true, nil
		}
		return nil, false, err
	}
	return row, false, nil
}

// deliver pushes the newly written rows to the station service and records
// the per-item outcome. A failed push leaves rows FAILED and is reported as
// a warning; the prices stay published locally.
func (s *Service) deliver(ctx context.Context, windowID string, prices []productPrice, rows []*windowdomain.StationPrice, result *windowdomain.PublishResult) int {
	byCode := make(map[string]productPrice, len(prices))
	for _, p := range prices {
		byCode[p.code] = p
	}
	items := make([]station.PriceItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, station.PriceItem{
			StationID:      row.StationID,
			ProductID:      row.ProductCode,
			WindowID:       windowID,
			ExPumpPrice:    row.ExPumpPrice,
			PriceBreakdown: toBreakdownItems(byCode[row.ProductCode].breakdown),
		})
	}

	outcomes, err := s.stations.PublishPrices(ctx, items)
	if err != nil {
		msg := err.Error()
		for _, row := range rows {
			s.updateDelivery(ctx, row, windowdomain.DeliveryFailed, &msg)
		}
		result.Warnings = append(result.Warnings, "station push failed: "+msg)
		s.log.Warn("station price push failed",
			zap.String("window_id", windowID),
			zap.Int("items", len(items)),
			zap.Error(err),
		)
		return 0
	}

	index := make(map[string]station.PublishItemResult, len(outcomes))
	for _, o := range outcomes {
		index[o.StationID+"|"+o.ProductID] = o
	}
	delivered := 0
	for _, row := range rows {
		outcome, ok := index[row.StationID+"|"+row.ProductCode]
		switch {
		case !ok:
			msg := "no acknowledgement from station service"
			s.updateDelivery(ctx, row, windowdomain.DeliveryFailed, &msg)
		case strings.EqualFold(outcome.Status, station.DeliveryDelivered):
			s.updateDelivery(ctx, row, windowdomain.DeliveryDelivered, nil)
			delivered++
		default:
			msg := outcome.Error
			if msg == "" {
				msg = strings.ToLower(outcome.Status)
			}
			s.updateDelivery(ctx, row, windowdomain.DeliveryFailed, &msg)
		}
	}
	if delivered < len(rows) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d of %d prices not acknowledged by station service", len(rows)-delivered, len(rows)))
	}
	return delivered
}

func (s *Service) updateDelivery(ctx context.Context, row *windowdomain.StationPrice, status windowdomain.DeliveryStatus, msg *string) {
	row.DeliveryStatus = status
	row.DeliveryError = msg
	if err := s.repo.UpdateDelivery(ctx, s.db, row.ID, status, msg); err != nil {
		s.log.Error("failed to record delivery status",
			zap.String("station_id", row.StationID),
			zap.String("product_code", row.ProductCode),
			zap.Error(err),
		)
	}
}

func toProductPrice(result pricebuildupdomain.Result) (productPrice, error) {
	lines := make([]windowdomain.BreakdownLine, 0, len(result.Components))
	for _, c := range result.Components {
		lines = append(lines, windowdomain.BreakdownLine{
			Code:           c.Code,
			Name:           c.Name,
			Category:       string(c.Category),
			Unit:           string(c.Unit),
			Rate:           c.Rate,
			Value:          c.Value,
			IsOverridden:   c.IsOverridden,
			OverrideReason: c.OverrideReason,
		})
	}
	rawLines, err := json.Marshal(lines)
	if err != nil {
		return productPrice{}, err
	}
	docs := result.SourceDocuments
	if docs == nil {
		docs = []string{}
	}
	rawDocs, err := json.Marshal(docs)
	if err != nil {
		return productPrice{}, err
	}
	return productPrice{
		code:            result.ProductCode,
		exPumpPrice:     result.ExPumpPrice,
		breakdown:       lines,
		rawBreakdown:    datatypes.JSON(rawLines),
		sourceDocuments: datatypes.JSON(rawDocs),
	}, nil
}

func toBreakdownItems(lines []windowdomain.BreakdownLine) []station.BreakdownItem {
	out := make([]station.BreakdownItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, station.BreakdownItem{
			Code:           l.Code,
			Name:           l.Name,
			Category:       l.Category,
			Unit:           l.Unit,
			Rate:           l.Rate,
			Value:          l.Value,
			IsOverridden:   l.IsOverridden,
			OverrideReason: l.OverrideReason,
		})
	}
	return out
}

// decodeBreakdown reads a persisted breakdown; malformed rows yield nil.
func decodeBreakdown(raw datatypes.JSON) []windowdomain.BreakdownLine {
	if len(raw) == 0 {
		return nil
	}
	var lines []windowdomain.BreakdownLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil
	}
	return lines
}

var errEmptySchedule = errors.New("no station prices for window")
