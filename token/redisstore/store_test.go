package redisstore

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hexveil/goSessions/token"
)

func newTestStore(t *testing.T) (*Store, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "gst"), rdb
}

func hashOf(seed string) [32]byte {
	return sha256.Sum256([]byte(seed))
}

func seedRecord(t *testing.T, s *Store, userID, deviceID, seed string, now time.Time) *token.Record {
	t.Helper()
	rec := &token.Record{
		ID:         uuid.NewString(),
		UserID:     userID,
		DeviceID:   deviceID,
		DeviceName: "Pixel 9",
		Platform:   "android",
		TokenHash:  hashOf(seed),
		FamilyID:   uuid.NewString(),
		Status:     token.StatusActive,
		CreatedAt:  now,
		ExpiresAt:  now.Add(30 * 24 * time.Hour),
		LastUsedAt: now,
	}
	if err := s.Create(context.Background(), rec); err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func successorFor(seed string, now time.Time) token.Successor {
	return token.Successor{
		ID:        uuid.NewString(),
		TokenHash: hashOf(seed),
		ExpiresAt: now.Add(30 * 24 * time.Hour),
	}
}

func activeRecords(t *testing.T, s *Store, userID string, now time.Time) []*token.Record {
	t.Helper()
	records, err := s.ListActive(context.Background(), userID, now)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	return records
}

func TestRotateSuccess(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)

	succ := successorFor("t1", now)
	next, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", succ, now)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if next.UserID != "user-1" || next.DeviceID != "dev-A" {
		t.Fatalf("unexpected successor identity: %+v", next)
	}
	if next.FamilyID != root.FamilyID {
		t.Fatalf("successor left the family: %q != %q", next.FamilyID, root.FamilyID)
	}
	if next.Status != token.StatusActive {
		t.Fatalf("successor status %q", next.Status)
	}
	if next.DeviceName != root.DeviceName || next.Platform != root.Platform {
		t.Fatalf("successor lost device metadata: %+v", next)
	}

	// The tip of the chain moved: only the successor is active.
	records := activeRecords(t, s, "user-1", now)
	if len(records) != 1 || records[0].TokenHash != succ.TokenHash {
		t.Fatalf("expected successor to be the only active record, got %d", len(records))
	}
}

func TestRotateReuseRevokesFamily(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)

	if _, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor("t1", now), now); err != nil {
		t.Fatalf("first rotate: %v", err)
	}

	// Replaying the rotated-out record is a compromise verdict.
	_, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor("t2", now), now)
	if !errors.Is(err, token.ErrReuseDetected) {
		t.Fatalf("expected ErrReuseDetected, got %v", err)
	}

	if records := activeRecords(t, s, "user-1", now); len(records) != 0 {
		t.Fatalf("expected the whole family revoked, %d still active", len(records))
	}

	// The tip T1 was killed by the cascade: presenting it now reports revoked.
	_, err = s.Rotate(context.Background(), hashOf("t1"), "dev-A", successorFor("t3", now), now)
	if !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected ErrRevoked for cascaded tip, got %v", err)
	}
}

func TestRotateDeviceMismatchRevokesFamily(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)

	_, err := s.Rotate(context.Background(), root.TokenHash, "dev-B", successorFor("t1", now), now)
	if !errors.Is(err, token.ErrDeviceMismatch) {
		t.Fatalf("expected ErrDeviceMismatch, got %v", err)
	}

	// The legitimate record went down with the family.
	_, err = s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor("t2", now), now)
	if !errors.Is(err, token.ErrRevoked) {
		t.Fatalf("expected ErrRevoked after cascade, got %v", err)
	}
}

func TestRotateExpired(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)

	late := now.Add(31 * 24 * time.Hour)
	_, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor("t1", late), late)
	if !errors.Is(err, token.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestRotateNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now()

	_, err := s.Rotate(context.Background(), hashOf("missing"), "dev-A", successorFor("t1", now), now)
	if !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeDeviceLeavesOtherDevicesAlone(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, s, "user-1", "dev-A", "a0", now)
	seedRecord(t, s, "user-1", "dev-B", "b0", now)

	revoked, err := s.RevokeDevice(context.Background(), "user-1", "dev-A", token.ReasonLogout, now)
	if err != nil {
		t.Fatalf("revoke device: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("expected 1 revoked record, got %d", revoked)
	}

	records := activeRecords(t, s, "user-1", now)
	if len(records) != 1 || records[0].DeviceID != "dev-B" {
		t.Fatalf("expected only dev-B to stay active, got %+v", records)
	}
	if records[0].RevokedReason != "" {
		t.Fatalf("active record should carry no revocation reason")
	}
}

func TestRevokeAllExcept(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, s, "user-1", "dev-A", "a0", now)
	seedRecord(t, s, "user-1", "dev-B", "b0", now)
	seedRecord(t, s, "user-1", "dev-C", "c0", now)

	revoked, err := s.RevokeAllExcept(context.Background(), "user-1", "dev-B", token.ReasonLogoutAll, now)
	if err != nil {
		t.Fatalf("revoke all except: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 revoked records, got %d", revoked)
	}

	records := activeRecords(t, s, "user-1", now)
	if len(records) != 1 || records[0].DeviceID != "dev-B" {
		t.Fatalf("expected dev-B to survive, got %+v", records)
	}
}

func TestRevokeAllExceptEmptyDeviceRevokesEverything(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, s, "user-1", "dev-A", "a0", now)
	seedRecord(t, s, "user-1", "dev-B", "b0", now)

	revoked, err := s.RevokeAllExcept(context.Background(), "user-1", "", token.ReasonLogoutAll, now)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 revoked records, got %d", revoked)
	}
	if records := activeRecords(t, s, "user-1", now); len(records) != 0 {
		t.Fatalf("expected nothing active, got %d", len(records))
	}
}

func TestListActiveSkipsExpired(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	seedRecord(t, s, "user-1", "dev-A", "a0", now)

	late := now.Add(31 * 24 * time.Hour)
	if records := activeRecords(t, s, "user-1", late); len(records) != 0 {
		t.Fatalf("expected expired record to be skipped, got %d", len(records))
	}
}

func TestPurgeExpiredKeepsActiveAndFreshRows(t *testing.T) {
	s, rdb := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)
	if _, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor("t1", now), now); err != nil {
		t.Fatalf("rotate: %v", err)
	}

	// Immediately after rotation nothing is past its expiry yet.
	purged, err := s.PurgeExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 0 {
		t.Fatalf("expected nothing purged, got %d", purged)
	}

	// Far enough in the future the used root is collectable, the active tip is not.
	cutoff := now.Add(60 * 24 * time.Hour)
	purged, err = s.PurgeExpired(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Fatalf("expected the used root purged, got %d", purged)
	}

	members, err := rdb.SMembers(context.Background(), s.userKey("user-1")).Result()
	if err != nil {
		t.Fatalf("smembers: %v", err)
	}
	if len(members) != 1 {
		t.Fatalf("expected one indexed record after purge, got %d", len(members))
	}
}

func TestRotateConcurrentSingleWinner(t *testing.T) {
	s, _ := newTestStore(t)
	now := time.Now().Truncate(time.Second)

	root := seedRecord(t, s, "user-1", "dev-A", "t0", now)

	const n = 16
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := s.Rotate(context.Background(), root.TokenHash, "dev-A", successorFor(fmt.Sprintf("succ-%d", i), now), now)
			results <- err
		}(i)
	}

	success, reuse := 0, 0
	for i := 0; i < n; i++ {
		err := <-results
		switch {
		case err == nil:
			success++
		case errors.Is(err, token.ErrReuseDetected), errors.Is(err, token.ErrRevoked):
			reuse++
		default:
			t.Fatalf("unexpected rotate error: %v", err)
		}
	}

	if success != 1 {
		t.Fatalf("expected exactly one rotation winner, got %d", success)
	}
	if reuse != n-1 {
		t.Fatalf("expected %d reuse verdicts, got %d", n-1, reuse)
	}
}
