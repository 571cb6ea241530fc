// Package rules holds the CRM business-rule validators.
//
// Both validators read a count and compare it before the caller writes. The
// check and the write are separate statements, so two concurrent writers can
// both pass the check and together exceed the limit.
package rules

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// Limits enforced at write time.
const (
	MaxClientsPerManager        = 5
	MaxInProgressDealsPerClient = 3
)

// ClientCounter counts the clients a manager is attached to.
type ClientCounter interface {
	CountClientsByManager(ctx context.Context, managerID int64) (int, error)
}

// DealCounter counts a client's in-progress deals.
type DealCounter interface {
	CountInProgressDeals(ctx context.Context, clientID int64) (int, error)
}

// ManagerCapacity rejects attaching another client to managerID once the
// manager already has MaxClientsPerManager clients.
func ManagerCapacity(ctx context.Context, counter ClientCounter, managerID int64) error {
	if managerID == 0 {
		return nil
	}
	n, err := counter.CountClientsByManager(ctx, managerID)
	if err != nil {
		return fmt.Errorf("count manager clients: %w", err)
	}
	if n >= MaxClientsPerManager {
		return httpx.Invalid("manager", fmt.Sprintf("Manager %d already manages %d clients, no more can be added.", managerID, MaxClientsPerManager))
	}
	return nil
}

// DealCapacity rejects another in-progress deal for clientID once the client
// already has MaxInProgressDealsPerClient of them.
func DealCapacity(ctx context.Context, counter DealCounter, clientID int64) error {
	if clientID == 0 {
		return nil
	}
	n, err := counter.CountInProgressDeals(ctx, clientID)
	if err != nil {
		return fmt.Errorf("count client deals: %w", err)
	}
	if n >= MaxInProgressDealsPerClient {
		return httpx.Invalid("client", fmt.Sprintf("Client already has %d in-progress deals, no more can be added.", MaxInProgressDealsPerClient))
	}
	return nil
}
