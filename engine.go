package goSessions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hexveil/goSessions/internal"
	"github.com/hexveil/goSessions/jwt"
	"github.com/hexveil/goSessions/token"
)

// Engine defines a public type used by goSessions APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config       Config
	store        token.Store
	storeBackend string
	verifier     CredentialVerifier
	jwtManager   *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
	nowFn        func() time.Time
}

func (e *Engine) now() time.Time {
	if e == nil || e.nowFn == nil {
		return time.Now()
	}
	return e.nowFn()
}

// Close describes the close operation and its observable behavior.
//
// Close may return an error when input validation, dependency calls, or security checks fail.
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped may return an error when input validation, dependency calls, or security checks fail.
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot may return an error when input validation, dependency calls, or security checks fail.
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Login describes the login operation and its observable behavior.
//
// Login may return an error when input validation, dependency calls, or security checks fail.
// Login does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An access token is always minted on success. A refresh token is minted only
// when device info is supplied: each such login starts a brand-new token
// family bound to that device.
func (e *Engine) Login(ctx context.Context, identifier, password string, device *DeviceInfo) (*LoginResult, error) {
	if e == nil || e.verifier == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}
	if device != nil && device.DeviceID == "" {
		return nil, errors.New("login: device id required when device info is supplied")
	}

	userID, err := e.verifier.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		if errors.Is(err, ErrInvalidCredentials) {
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", "", err, nil)
			return nil, err
		}
		return nil, fmt.Errorf("credential verification: %w", err)
	}

	deviceID := ""
	if device != nil {
		deviceID = device.DeviceID
	}

	accessToken, err := e.jwtManager.CreateAccess(userID, deviceID)
	if err != nil {
		return nil, err
	}

	result := &LoginResult{
		UserID:      userID,
		AccessToken: accessToken,
		ExpiresIn:   int64(e.config.JWT.AccessTTL.Seconds()),
	}

	if device != nil {
		if e.store == nil {
			return nil, ErrEngineNotReady
		}

		secret, err := internal.NewRefreshSecret()
		if err != nil {
			return nil, err
		}

		now := e.now()
		rec := &token.Record{
			ID:         uuid.NewString(),
			UserID:     userID,
			DeviceID:   device.DeviceID,
			DeviceName: device.DeviceName,
			Platform:   device.Platform,
			TokenHash:  internal.HashRefreshSecret(secret),
			FamilyID:   uuid.NewString(),
			Status:     token.StatusActive,
			CreatedAt:  now,
			ExpiresAt:  now.Add(e.config.Refresh.TTL),
			LastUsedAt: now,
		}
		if err := e.store.Create(ctx, rec); err != nil {
			return nil, e.storeErr(err)
		}

		result.RefreshToken = internal.EncodeRefreshSecret(secret)

		e.metricInc(MetricSessionCreated)
		e.emitAudit(ctx, auditEventSessionCreated, true, userID, device.DeviceID, rec.FamilyID, nil, func() map[string]string {
			return map[string]string{
				"platform": device.Platform,
			}
		})
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, userID, deviceID, "", nil, nil)

	return result, nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh may return an error when input validation, dependency calls, or security checks fail.
// Refresh does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The presented token is retired whatever the outcome. A replayed token or a
// token presented from the wrong device revokes its whole family before the
// error is returned.
func (e *Engine) Refresh(ctx context.Context, refreshToken, deviceID string) (*RefreshResult, error) {
	if e == nil || e.store == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	secret, err := internal.DecodeRefreshSecret(refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", deviceID, "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	nextSecret, err := internal.NewRefreshSecret()
	if err != nil {
		return nil, err
	}

	now := e.now()
	successor := token.Successor{
		ID:        uuid.NewString(),
		TokenHash: internal.HashRefreshSecret(nextSecret),
		ExpiresAt: now.Add(e.config.Refresh.TTL),
	}

	rec, err := e.store.Rotate(ctx, internal.HashRefreshSecret(secret), deviceID, successor, now)
	if err != nil {
		return nil, e.refreshVerdict(ctx, deviceID, err)
	}

	accessToken, err := e.jwtManager.CreateAccess(rec.UserID, rec.DeviceID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, rec.UserID, rec.DeviceID, rec.FamilyID, nil, nil)

	return &RefreshResult{
		UserID:       rec.UserID,
		DeviceID:     rec.DeviceID,
		AccessToken:  accessToken,
		RefreshToken: internal.EncodeRefreshSecret(nextSecret),
		ExpiresIn:    int64(e.config.JWT.AccessTTL.Seconds()),
	}, nil
}

// refreshVerdict maps store rotation sentinels to the public taxonomy and
// records the corresponding metric and audit trail.
func (e *Engine) refreshVerdict(ctx context.Context, deviceID string, err error) error {
	switch {
	case errors.Is(err, token.ErrNotFound):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", deviceID, "", ErrRefreshInvalid, nil)
		return ErrRefreshInvalid
	case errors.Is(err, token.ErrDeviceMismatch):
		e.metricInc(MetricRefreshTheftDetected)
		e.emitAudit(ctx, auditEventRefreshTheftDetected, false, "", deviceID, "", ErrTokenTheft, nil)
		return ErrTokenTheft
	case errors.Is(err, token.ErrReuseDetected):
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuseDetected, false, "", deviceID, "", ErrRefreshReuse, nil)
		return ErrRefreshReuse
	case errors.Is(err, token.ErrRevoked):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", deviceID, "", ErrTokenRevoked, nil)
		return ErrTokenRevoked
	case errors.Is(err, token.ErrExpired):
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshExpired, false, "", deviceID, "", ErrRefreshExpired, nil)
		return ErrRefreshExpired
	default:
		e.metricInc(MetricRefreshFailure)
		return e.storeErr(err)
	}
}

// VerifyAccess describes the verifyaccess operation and its observable behavior.
//
// VerifyAccess may return an error when input validation, dependency calls, or security checks fail.
// VerifyAccess does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// It is purely stateless: no store round trip is made.
func (e *Engine) VerifyAccess(ctx context.Context, tokenStr string) (*AuthResult, error) {
	if e == nil || e.jwtManager == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()

	claims, err := e.jwtManager.ParseAccess(tokenStr)
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	e.metricInc(MetricVerifySuccess)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	return &AuthResult{
		UserID:   claims.UID,
		DeviceID: claims.DeviceID,
	}, nil
}

// ListDevices describes the listdevices operation and its observable behavior.
//
// ListDevices may return an error when input validation, dependency calls, or security checks fail.
// ListDevices does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Each device appears once even when it holds several active families; the
// most recently used record represents it. Ordered most recently used first.
func (e *Engine) ListDevices(ctx context.Context, userID string) ([]DeviceSession, error) {
	if e == nil || e.store == nil {
		return nil, ErrEngineNotReady
	}

	records, err := e.store.ListActive(ctx, userID, e.now())
	if err != nil {
		return nil, e.storeErr(err)
	}

	byDevice := make(map[string]*token.Record, len(records))
	for _, rec := range records {
		cur, ok := byDevice[rec.DeviceID]
		if !ok || recencyOf(rec).After(recencyOf(cur)) {
			byDevice[rec.DeviceID] = rec
		}
	}

	sessions := make([]DeviceSession, 0, len(byDevice))
	for _, rec := range byDevice {
		sessions = append(sessions, DeviceSession{
			DeviceID:   rec.DeviceID,
			DeviceName: rec.DeviceName,
			Platform:   rec.Platform,
			CreatedAt:  rec.CreatedAt,
			LastUsedAt: recencyOf(rec),
			ExpiresAt:  rec.ExpiresAt,
		})
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].LastUsedAt.After(sessions[j].LastUsedAt)
	})

	e.metricInc(MetricDevicesListed)
	e.emitAudit(ctx, auditEventDevicesListed, true, userID, "", "", nil, func() map[string]string {
		return map[string]string{
			"devices": strconv.Itoa(len(sessions)),
		}
	})

	return sessions, nil
}

func recencyOf(rec *token.Record) time.Time {
	if rec.LastUsedAt.IsZero() {
		return rec.CreatedAt
	}
	return rec.LastUsedAt
}

// Logout describes the logout operation and its observable behavior.
//
// Logout may return an error when input validation, dependency calls, or security checks fail.
// Logout does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Idempotent: logging out a device with no active sessions is not an error.
func (e *Engine) Logout(ctx context.Context, userID, deviceID string) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	revoked, err := e.store.RevokeDevice(ctx, userID, deviceID, token.ReasonLogout, e.now())
	if err != nil {
		return e.storeErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, userID, deviceID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.FormatInt(revoked, 10),
		}
	})

	return nil
}

// LogoutAll describes the logoutall operation and its observable behavior.
//
// LogoutAll may return an error when input validation, dependency calls, or security checks fail.
// LogoutAll does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// An empty exceptDeviceID revokes every device, including the caller's.
func (e *Engine) LogoutAll(ctx context.Context, userID, exceptDeviceID string) (int64, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	revoked, err := e.store.RevokeAllExcept(ctx, userID, exceptDeviceID, token.ReasonLogoutAll, e.now())
	if err != nil {
		return 0, e.storeErr(err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, exceptDeviceID, "", nil, func() map[string]string {
		return map[string]string{
			"revoked": strconv.FormatInt(revoked, 10),
		}
	})

	return revoked, nil
}

// PurgeExpired describes the purgeexpired operation and its observable behavior.
//
// PurgeExpired may return an error when input validation, dependency calls, or security checks fail.
// PurgeExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Only retired (used or revoked) records past their expiry are removed;
// active records are kept regardless so reuse detection retains its history.
func (e *Engine) PurgeExpired(ctx context.Context) (int64, error) {
	if e == nil || e.store == nil {
		return 0, ErrEngineNotReady
	}

	purged, err := e.store.PurgeExpired(ctx, e.now())
	if err != nil {
		return 0, e.storeErr(err)
	}

	e.emitAudit(ctx, auditEventExpiredRecordsPurged, true, "", "", "", nil, func() map[string]string {
		return map[string]string{
			"purged": strconv.FormatInt(purged, 10),
		}
	})

	return purged, nil
}

func (e *Engine) storeErr(err error) error {
	if errors.Is(err, token.ErrStoreUnavailable) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return err
}
