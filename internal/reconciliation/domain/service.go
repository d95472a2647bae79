package domain

import (
	"context"
	"errors"
)

type Service interface {
	Reconcile(ctx context.Context, consignmentID string) (*ThreeWayReconciliation, error)
	Get(ctx context.Context, consignmentID string) (*ThreeWayReconciliation, error)
	GetConsignment(ctx context.Context, consignmentID string) (*Consignment, error)
	RecordConsignment(ctx context.Context, c Consignment) (*Consignment, error)
	GetRoute(ctx context.Context, routeID string) (*Route, error)
	UpsertRoute(ctx context.Context, r Route) (*Route, error)
}

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidConsignment    = errors.New("invalid_consignment")
	ErrConsignmentNotFound   = errors.New("consignment_not_found")
	ErrReconciliationMissing = errors.New("reconciliation_not_found")
	ErrInvalidRoute          = errors.New("invalid_route")
	ErrRouteNotFound         = errors.New("route_not_found")
)
