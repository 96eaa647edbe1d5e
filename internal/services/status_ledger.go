package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/AlanaPvart7/Proyect2/internal/repositories"
)

const statusRecordIDPrefix = "osr_"

// StatusLedgerDeps bundles the collaborators of the status ledger.
type StatusLedgerDeps struct {
	Records           repositories.StatusRecordRepository
	ReservingStatuses []string
	Clock             func() time.Time
	IDGenerator       func() string
}

type statusLedger struct {
	records   repositories.StatusRecordRepository
	reserving map[string]struct{}
	clock     func() time.Time
	newID     func() string
}

// NewStatusLedger builds the ledger. Orders whose latest status is in ReservingStatuses hold stock.
func NewStatusLedger(deps StatusLedgerDeps) (StatusLedger, error) {
	if deps.Records == nil {
		return nil, errors.New("status ledger: status record repository is required")
	}
	if len(deps.ReservingStatuses) == 0 {
		return nil, errors.New("status ledger: at least one reserving status is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	reserving := make(map[string]struct{}, len(deps.ReservingStatuses))
	for _, id := range deps.ReservingStatuses {
		if id = strings.TrimSpace(id); id != "" {
			reserving[id] = struct{}{}
		}
	}
	return &statusLedger{
		records:   deps.Records,
		reserving: reserving,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
	}, nil
}

// Append writes a new record. The timestamp is forced past the current latest record so the new
// record always becomes the current status even when clocks tie.
func (l *statusLedger) Append(ctx context.Context, orderID, statusID, actorID string) (OrderStatusRecord, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return OrderStatusRecord{}, err
	}
	statusID, err = ValidateIdentifier("status id", statusID)
	if err != nil {
		return OrderStatusRecord{}, err
	}

	now := l.clock()
	latest, ok, err := l.records.Latest(ctx, orderID)
	if err != nil {
		return OrderStatusRecord{}, mapRepositoryError(err)
	}
	if ok && !now.After(latest.Timestamp) {
		now = latest.Timestamp.Add(time.Microsecond)
	}

	record := l.newRecord(orderID, statusID, actorID, now)
	if err := l.records.Append(ctx, record); err != nil {
		return OrderStatusRecord{}, mapRepositoryError(err)
	}
	return record, nil
}

func (l *statusLedger) newRecord(orderID, statusID, actorID string, at time.Time) OrderStatusRecord {
	return OrderStatusRecord{
		ID:        statusRecordIDPrefix + l.newID(),
		OrderID:   orderID,
		StatusID:  statusID,
		ActorID:   strings.TrimSpace(actorID),
		Timestamp: at,
	}
}

func (l *statusLedger) Current(ctx context.Context, orderID string) (OrderStatusRecord, bool, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return OrderStatusRecord{}, false, err
	}
	record, ok, err := l.records.Latest(ctx, orderID)
	if err != nil {
		return OrderStatusRecord{}, false, mapRepositoryError(err)
	}
	return record, ok, nil
}

func (l *statusLedger) CurrentMany(ctx context.Context, orderIDs []string) (map[string]OrderStatusRecord, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return map[string]OrderStatusRecord{}, nil
	}
	records, err := l.records.LatestMany(ctx, ids)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	if records == nil {
		records = map[string]OrderStatusRecord{}
	}
	return records, nil
}

func (l *statusLedger) History(ctx context.Context, orderID string) ([]OrderStatusRecord, error) {
	orderID, err := ValidateIdentifier("order id", orderID)
	if err != nil {
		return nil, err
	}
	records, err := l.records.History(ctx, orderID)
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return records, nil
}

func (l *statusLedger) IsReserving(statusID string) bool {
	_, ok := l.reserving[strings.TrimSpace(statusID)]
	return ok
}
