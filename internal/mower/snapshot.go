package mower

import (
	"context"
	"errors"
	"time"

	"github.com/enicky/automower-ble/internal/logging"
	"github.com/enicky/automower-ble/internal/protocol"
	"go.uber.org/zap"
)

// Snapshot is a status summary gathered in one pass. Fields whose query
// failed are left at their zero value and the failure is recorded in Errors.
// Kinds that were never asked because no command id is known are listed in
// Skipped; their fields are zero too and carry no reading.
type Snapshot struct {
	Taken         time.Time
	Model         protocol.MowerModel
	BatteryLevel  uint8
	Charging      bool
	State         protocol.MowerState
	Activity      protocol.MowerActivity
	Mode          protocol.Mode
	Restriction   protocol.RestrictionReason
	NextStartTime time.Time
	Errors        map[protocol.ResponseKind]error
	Skipped       map[protocol.ResponseKind]struct{}
}

// Has reports whether kind was read successfully
func (s *Snapshot) Has(kind protocol.ResponseKind) bool {
	if _, failed := s.Errors[kind]; failed {
		return false
	}
	_, skipped := s.Skipped[kind]
	return !skipped
}

// OK reports whether every query succeeded
func (s *Snapshot) OK() bool {
	return len(s.Errors) == 0
}

// KnownModel returns the model identified earlier in the session
func (c *Client) KnownModel() (protocol.MowerModel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.model == nil {
		return protocol.MowerModel{}, false
	}
	return *c.model, true
}

// Snapshot queries the mower's status. The model is only queried the first
// time. Kinds without a known command id are skipped. A cancelled ctx aborts
// the snapshot.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{
		Taken:   time.Now(),
		Errors:  make(map[protocol.ResponseKind]error),
		Skipped: make(map[protocol.ResponseKind]struct{}),
	}

	record := func(kind protocol.ResponseKind, err error) error {
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if errors.Is(err, ErrUnknownCommand) {
			s.Skipped[kind] = struct{}{}
			return nil
		}
		logging.Debug("Snapshot query failed", zap.Stringer("kind", kind), zap.Error(err))
		s.Errors[kind] = err
		return nil
	}

	if model, ok := c.KnownModel(); ok {
		s.Model = model
	} else {
		var err error
		s.Model, err = c.Model(ctx)
		if err := record(protocol.KindDeviceType, err); err != nil {
			return nil, err
		}
	}

	steps := []struct {
		kind protocol.ResponseKind
		run  func() error
	}{
		{protocol.KindBatteryLevel, func() (err error) { s.BatteryLevel, err = c.BatteryLevel(ctx); return }},
		{protocol.KindIsCharging, func() (err error) { s.Charging, err = c.IsCharging(ctx); return }},
		{protocol.KindMowerState, func() (err error) { s.State, err = c.State(ctx); return }},
		{protocol.KindMowerActivity, func() (err error) { s.Activity, err = c.Activity(ctx); return }},
		{protocol.KindMode, func() (err error) { s.Mode, err = c.Mode(ctx); return }},
		{protocol.KindRestrictionReason, func() (err error) { s.Restriction, err = c.RestrictionReason(ctx); return }},
		{protocol.KindStartTime, func() (err error) { s.NextStartTime, err = c.NextStartTime(ctx); return }},
	}
	for _, step := range steps {
		if err := record(step.kind, step.run()); err != nil {
			return nil, err
		}
	}

	return s, nil
}
