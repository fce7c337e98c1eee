// Package status stores per-build status records and the build lease.
//
// A record lives under the key built by [cache.Keyer.BuildStatus] and moves
// through absent → pending → (absent | error). Success deletes the record
// (the completion markers in artifact storage are the durable "done" state);
// pending and error records carry a TTL and expire back to absent.
//
// Claiming pending is the cross-worker lease: [Store.TryAcquire] succeeds for
// exactly one caller while the record is absent. Leases are not renewed by
// default, so a build that outlives its TTL can be duplicated by another
// worker. [Store.Renew] exists for deployments that enable renewal.
//
// [cache.Keyer.BuildStatus]: github.com/matzehuels/snackager/pkg/cache.Keyer.BuildStatus
package status

import (
	"context"
	"encoding/json"
	"time"

	"github.com/matzehuels/snackager/pkg/errors"
)

// State is the persisted state of a build.
type State string

const (
	StatePending State = "pending"
	StateError   State = "error"
)

// Record is a persisted build status.
type Record struct {
	State   State       `json:"type"`
	Message string      `json:"message,omitempty"`
	Code    errors.Code `json:"code,omitempty"`
}

// Err rehydrates the stored error of an error record. It returns nil for any
// other state.
func (r *Record) Err() error {
	if r == nil || r.State != StateError {
		return nil
	}
	return errors.Rehydrate(r.Code, r.Message)
}

// Store persists build status records.
type Store interface {
	// Get returns the record under key, or nil when absent.
	Get(ctx context.Context, key string) (*Record, error)

	// TryAcquire claims key as pending for ttl. It reports false when any
	// record already exists.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Renew extends a pending claim. It reports false when key is not pending.
	Renew(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release deletes the record under key.
	Release(ctx context.Context, key string) error

	// Fail replaces the record with an error record expiring after ttl.
	Fail(ctx context.Context, key string, err error, ttl time.Duration) error
}

func pendingRecord() *Record {
	return &Record{State: StatePending}
}

func errorRecord(err error) *Record {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	return &Record{State: StateError, Message: errors.UserMessage(err), Code: code}
}

func encode(r *Record) string {
	data, _ := json.Marshal(r)
	return string(data)
}

func decode(s string) (*Record, error) {
	var r Record
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, err
	}
	return &r, nil
}
