package goSessions

import "time"

type SecurityReport struct {
	SigningAlgorithm      string
	AccessTTL             time.Duration
	RefreshTTL            time.Duration
	StoreBackend          string
	RotationEnforced      bool
	ReuseDetectionEnabled bool
	TheftDetectionEnabled bool
	AuditEnabled          bool
	MetricsEnabled        bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		SigningAlgorithm: e.config.JWT.SigningMethod,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.Refresh.TTL,
		StoreBackend:     e.storeBackend,
		// Rotation, reuse detection, and theft detection have no off switch:
		// every refresh retires the presented token and any anomaly kills
		// the family.
		RotationEnforced:      true,
		ReuseDetectionEnabled: true,
		TheftDetectionEnabled: true,
		AuditEnabled:          e.config.Audit.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
	}
}
