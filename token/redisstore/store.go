package redisstore

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hexveil/goSessions/token"
)

const (
	rotateStatusNotFound       int64 = 0
	rotateStatusDeviceMismatch int64 = 1
	rotateStatusReuse          int64 = 2
	rotateStatusRevoked        int64 = 3
	rotateStatusExpired        int64 = 4
	rotateStatusRotated        int64 = 5
)

// rotateScript runs the full rotation verdict atomically. Redis executes a
// script as a single unit, so exactly one concurrent caller presenting the
// same secret observes status=active; every other caller re-enters after the
// winner committed and lands in the reuse branch. Family cascades triggered
// by a mismatch or reuse verdict complete inside the same script execution.
const rotateScript = `
local token_key = KEYS[1]
local prefix = ARGV[1]
local presented_device = ARGV[2]
local now = tonumber(ARGV[3])
local succ_id = ARGV[4]
local succ_hash = ARGV[5]
local succ_expires = ARGV[6]

local fields = redis.call("HMGET", token_key,
  "user_id", "device_id", "device_name", "platform", "family_id", "status", "expires_at")
local user_id = fields[1]
local device_id = fields[2]
local device_name = fields[3]
local platform = fields[4]
local family_id = fields[5]
local status = fields[6]
local expires_at = fields[7]

if not user_id then
  return {0}
end

local family_key = prefix .. ":f:" .. family_id

local function revoke_family(reason)
  for _, member in ipairs(redis.call("SMEMBERS", family_key)) do
    local member_key = prefix .. ":t:" .. member
    if redis.call("HGET", member_key, "status") ~= "revoked" then
      redis.call("HSET", member_key,
        "status", "revoked",
        "revoked_at", now,
        "revoked_reason", reason)
    end
  end
end

if device_id ~= presented_device then
  revoke_family("device_mismatch")
  return {1}
end

if status == "used" then
  revoke_family("reuse_detected")
  return {2}
end

if status == "revoked" then
  return {3}
end

if now > tonumber(expires_at) then
  return {4}
end

redis.call("HSET", token_key,
  "status", "used",
  "used_at", now,
  "last_used_at", now)

local succ_key = prefix .. ":t:" .. succ_hash
redis.call("HSET", succ_key,
  "id", succ_id,
  "user_id", user_id,
  "device_id", device_id,
  "device_name", device_name,
  "platform", platform,
  "family_id", family_id,
  "status", "active",
  "created_at", now,
  "expires_at", succ_expires,
  "last_used_at", now)
redis.call("SADD", family_key, succ_hash)
redis.call("SADD", prefix .. ":u:" .. user_id, succ_hash)

return {5, user_id, device_name, platform, family_id}
`

var rotateLua = redis.NewScript(rotateScript)

// revokeMatchingScript revokes the user's active records, optionally filtered
// by device. ARGV[3] selects the mode: "only" revokes records bound to the
// device in ARGV[4], "except" revokes records bound to any other device.
const revokeMatchingScript = `
local user_key = KEYS[1]
local prefix = ARGV[1]
local now = tonumber(ARGV[2])
local mode = ARGV[3]
local device = ARGV[4]
local reason = ARGV[5]

local revoked = 0
for _, member in ipairs(redis.call("SMEMBERS", user_key)) do
  local member_key = prefix .. ":t:" .. member
  local rec = redis.call("HMGET", member_key, "status", "device_id")
  local status = rec[1]
  local device_id = rec[2]
  if status == "active" then
    local matches = false
    if mode == "only" then
      matches = device_id == device
    else
      matches = device_id ~= device
    end
    if matches then
      redis.call("HSET", member_key,
        "status", "revoked",
        "revoked_at", now,
        "revoked_reason", reason)
      revoked = revoked + 1
    end
  end
end

return revoked
`

var revokeMatchingLua = redis.NewScript(revokeMatchingScript)

// Store is a Redis-backed token.Store. Each record lives in a hash keyed by
// the hex token digest; per-family and per-user sets index the records for
// cascades, listing, and bulk revocation. Records carry no Redis TTL while
// active; retired rows are retained for audit until PurgeExpired removes them.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a token [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "gs"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) tokenKey(hash [32]byte) string {
	return s.prefix + ":t:" + hex.EncodeToString(hash[:])
}

func (s *Store) familyKey(familyID string) string {
	return s.prefix + ":f:" + familyID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create persists a family root or rotation successor record.
func (s *Store) Create(ctx context.Context, rec *token.Record) error {
	member := hex.EncodeToString(rec.TokenHash[:])

	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.tokenKey(rec.TokenHash),
			"id", rec.ID,
			"user_id", rec.UserID,
			"device_id", rec.DeviceID,
			"device_name", rec.DeviceName,
			"platform", rec.Platform,
			"family_id", rec.FamilyID,
			"status", string(rec.Status),
			"created_at", rec.CreatedAt.Unix(),
			"expires_at", rec.ExpiresAt.Unix(),
			"last_used_at", rec.LastUsedAt.Unix(),
		)
		pipe.SAdd(ctx, s.familyKey(rec.FamilyID), member)
		pipe.SAdd(ctx, s.userKey(rec.UserID), member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return nil
}

// Rotate runs the rotation verdict for the record matching tokenHash.
func (s *Store) Rotate(ctx context.Context, tokenHash [32]byte, deviceID string, successor token.Successor, now time.Time) (*token.Record, error) {
	raw, err := rotateLua.Run(ctx, s.redis,
		[]string{s.tokenKey(tokenHash)},
		s.prefix,
		deviceID,
		now.Unix(),
		successor.ID,
		hex.EncodeToString(successor.TokenHash[:]),
		successor.ExpiresAt.Unix(),
	).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}

	reply, ok := raw.([]interface{})
	if !ok || len(reply) == 0 {
		return nil, fmt.Errorf("%w: unexpected rotate reply %v", token.ErrStoreUnavailable, raw)
	}
	verdict, ok := reply[0].(int64)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected rotate verdict %v", token.ErrStoreUnavailable, reply[0])
	}

	switch verdict {
	case rotateStatusNotFound:
		return nil, token.ErrNotFound
	case rotateStatusDeviceMismatch:
		return nil, token.ErrDeviceMismatch
	case rotateStatusReuse:
		return nil, token.ErrReuseDetected
	case rotateStatusRevoked:
		return nil, token.ErrRevoked
	case rotateStatusExpired:
		return nil, token.ErrExpired
	case rotateStatusRotated:
		if len(reply) < 5 {
			return nil, fmt.Errorf("%w: short rotate reply", token.ErrStoreUnavailable)
		}
		return &token.Record{
			ID:         successor.ID,
			UserID:     replyString(reply[1]),
			DeviceID:   deviceID,
			DeviceName: replyString(reply[2]),
			Platform:   replyString(reply[3]),
			TokenHash:  successor.TokenHash,
			FamilyID:   replyString(reply[4]),
			Status:     token.StatusActive,
			CreatedAt:  now,
			ExpiresAt:  successor.ExpiresAt,
			LastUsedAt: now,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown rotate verdict %d", token.ErrStoreUnavailable, verdict)
	}
}

// ListActive returns the user's active, unexpired records.
func (s *Store) ListActive(ctx context.Context, userID string, now time.Time) ([]*token.Record, error) {
	members, err := s.redis.SMembers(ctx, s.userKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}

	records := make([]*token.Record, 0, len(members))
	for _, member := range members {
		fields, err := s.redis.HGetAll(ctx, s.prefix+":t:"+member).Result()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
		}
		if len(fields) == 0 {
			continue
		}
		rec, err := recordFromFields(member, fields)
		if err != nil {
			return nil, err
		}
		if rec.Status != token.StatusActive || rec.Expired(now) {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// RevokeDevice revokes the user's active records bound to deviceID.
func (s *Store) RevokeDevice(ctx context.Context, userID, deviceID, reason string, now time.Time) (int64, error) {
	return s.revokeMatching(ctx, userID, "only", deviceID, reason, now)
}

// RevokeAllExcept revokes the user's active records on every device except
// exceptDeviceID.
func (s *Store) RevokeAllExcept(ctx context.Context, userID, exceptDeviceID, reason string, now time.Time) (int64, error) {
	return s.revokeMatching(ctx, userID, "except", exceptDeviceID, reason, now)
}

func (s *Store) revokeMatching(ctx context.Context, userID, mode, deviceID, reason string, now time.Time) (int64, error) {
	raw, err := revokeMatchingLua.Run(ctx, s.redis,
		[]string{s.userKey(userID)},
		s.prefix,
		now.Unix(),
		mode,
		deviceID,
		reason,
	).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	revoked, ok := raw.(int64)
	if !ok {
		return 0, fmt.Errorf("%w: unexpected revoke reply %v", token.ErrStoreUnavailable, raw)
	}
	return revoked, nil
}

// PurgeExpired removes retired records whose expiry lies before the cutoff,
// along with their index set memberships.
func (s *Store) PurgeExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64

	iter := s.redis.Scan(ctx, 0, s.prefix+":t:*", 256).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		fields, err := s.redis.HMGet(ctx, key, "status", "expires_at", "family_id", "user_id").Result()
		if err != nil {
			return purged, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
		}
		status, _ := fields[0].(string)
		expiresRaw, _ := fields[1].(string)
		familyID, _ := fields[2].(string)
		userID, _ := fields[3].(string)
		if status == "" || status == string(token.StatusActive) {
			continue
		}
		expires, err := strconv.ParseInt(expiresRaw, 10, 64)
		if err != nil || !time.Unix(expires, 0).Before(cutoff) {
			continue
		}

		member := key[len(s.prefix+":t:"):]
		_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, s.familyKey(familyID), member)
			pipe.SRem(ctx, s.userKey(userID), member)
			return nil
		})
		if err != nil {
			return purged, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
		}
		purged++
	}
	if err := iter.Err(); err != nil {
		return purged, fmt.Errorf("%w: %v", token.ErrStoreUnavailable, err)
	}
	return purged, nil
}

func replyString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func recordFromFields(member string, fields map[string]string) (*token.Record, error) {
	rec := &token.Record{
		ID:            fields["id"],
		UserID:        fields["user_id"],
		DeviceID:      fields["device_id"],
		DeviceName:    fields["device_name"],
		Platform:      fields["platform"],
		FamilyID:      fields["family_id"],
		Status:        token.Status(fields["status"]),
		RevokedReason: fields["revoked_reason"],
	}

	hash, err := hex.DecodeString(member)
	if err != nil || len(hash) != len(rec.TokenHash) {
		return nil, fmt.Errorf("%w: corrupt token key %q", token.ErrStoreUnavailable, member)
	}
	copy(rec.TokenHash[:], hash)

	for field, dst := range map[string]*time.Time{
		"created_at":   &rec.CreatedAt,
		"expires_at":   &rec.ExpiresAt,
		"used_at":      &rec.UsedAt,
		"revoked_at":   &rec.RevokedAt,
		"last_used_at": &rec.LastUsedAt,
	} {
		raw, ok := fields[field]
		if !ok || raw == "" {
			continue
		}
		unix, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: corrupt %s on token %q", token.ErrStoreUnavailable, field, member)
		}
		*dst = time.Unix(unix, 0)
	}

	return rec, nil
}
