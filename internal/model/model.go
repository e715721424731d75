// Package model defines domain entities used by services and repositories.
package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// CatalogStatus is the lifecycle state of an ephemeral catalog.
type CatalogStatus string

const (
	StatusDraft      CatalogStatus = "draft"
	StatusActive     CatalogStatus = "active"
	StatusSoftBurned CatalogStatus = "soft_burned"
	StatusHardBurned CatalogStatus = "hard_burned"
	StatusExpired    CatalogStatus = "expired"
)

// Terminal reports whether no further lifecycle transition is allowed.
func (s CatalogStatus) Terminal() bool {
	switch s {
	case StatusSoftBurned, StatusHardBurned, StatusExpired:
		return true
	}
	return false
}

// CaptureAction is the per-catalog response to capture-class security events.
type CaptureAction string

const (
	CaptureNone  CaptureAction = "none"
	CaptureBlock CaptureAction = "block"
	CaptureBurn  CaptureAction = "burn"
)

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Lat float64
	Lng float64
}

// SecurityPolicy is the per-catalog access rule set. The rule set is small
// and closed, so it is plain data rather than strategy objects.
type SecurityPolicy struct {
	RequireGeofence   bool
	GeofenceCenter    GeoPoint
	GeofenceRadiusKm  float64
	HourStart         *int // local hour, inclusive
	HourEnd           *int // local hour, exclusive
	MaxViews          int  // 0 = unlimited
	SingleUse         bool
	WhitelistRequired bool
	CaptureAction     CaptureAction
}

// Catalog is a time-boxed, access-controlled product listing.
// NameEnc and TokenEnc are fieldcrypt blobs; TokenSearch is the deterministic
// lookup hash of the plaintext URL token.
type Catalog struct {
	ID           uuid.UUID
	OwnerID      uuid.UUID
	NameEnc      string
	TokenEnc     string
	TokenSearch  string
	CodeDigest   []byte // SHA-256 of the access code
	Status       CatalogStatus
	BurnReason   string
	ExpiresAt    time.Time
	NeverExpires bool
	Policy       SecurityPolicy
	CreatedAt    time.Time
}

// LineItem is a single product row inside a catalog.
type LineItem struct {
	ID           uuid.UUID
	CatalogID    uuid.UUID
	ProductID    string
	NameEnc      string
	PriceCents   int64
	Stock        int
	DisplayOrder int
}

// WhitelistEntry is a pre-authorized viewer with its own sub-token.
// Revocation is permanent; there is no un-revoke.
type WhitelistEntry struct {
	ID            uuid.UUID
	CatalogID     uuid.UUID
	ViewerNameEnc string
	ContactEnc    string
	ContactSearch string
	SubTokenHash  string // search hash of the per-viewer sub-token
	Revoked       bool
	ViewCount     int
	CreatedAt     time.Time
}

// EventType classifies a security event.
type EventType string

const (
	EventRateLimitExceeded       EventType = "rate_limit_exceeded"
	EventBannedDeviceAccess      EventType = "banned_device_access"
	EventFailedMenuLookup        EventType = "failed_menu_lookup"
	EventFailedAccessCode        EventType = "failed_access_code"
	EventGeofenceLocationDenied  EventType = "geofence_location_denied"
	EventGeofenceViolation       EventType = "geofence_violation"
	EventOutsideTimeWindow       EventType = "outside_time_window"
	EventCatalogGone             EventType = "catalog_gone"
	EventMaxViewsExceeded        EventType = "max_views_exceeded"
	EventMenuAccessed            EventType = "menu_accessed"
	EventScreenshotDetected      EventType = "screenshot_detected"
	EventScreenRecordingDetected EventType = "screen_recording_detected"
	EventDevtoolsDetected        EventType = "devtools_detected"
	EventPrintAttempt            EventType = "print_attempt"
	EventCopyAttempt             EventType = "copy_attempt"
	EventVisibilityChange        EventType = "visibility_change"
	EventAutoBurnTriggered       EventType = "auto_burn_triggered"
	EventZombieOrderRecovered    EventType = "zombie_order_recovered"
	EventRefundFailed            EventType = "refund_failed"
)

// Severity grades a security event.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SecurityEvent is an append-only audit record. Never mutated after insert.
type SecurityEvent struct {
	ID        uuid.UUID
	CatalogID uuid.NullUUID // unset for failed lookups
	Type      EventType
	Severity  Severity
	SourceIP  string
	DeviceFP  string
	Location  *GeoPoint
	Detail    string
	CreatedAt time.Time
}

// ReservationState tracks a provisional inventory hold.
type ReservationState string

const (
	ReservationHeld      ReservationState = "held"
	ReservationConfirmed ReservationState = "confirmed"
	ReservationCancelled ReservationState = "cancelled"
)

// ReservationItem is one product/quantity pair inside a reservation.
type ReservationItem struct {
	ProductID string
	Quantity  int
}

// Reservation is an exclusive hold on stock pending order confirmation.
type Reservation struct {
	ID           uuid.UUID
	CatalogID    uuid.UUID
	LockToken    uuid.UUID
	State        ReservationState
	CancelReason string
	Items        []ReservationItem
	CreatedAt    time.Time
}

// Order is a confirmed purchase. Orders are only ever created in confirmed
// state; no partially-written order is visible to readers.
type Order struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	TotalCents    int64
	PaymentRef    string
	Status        string // always "confirmed"
	CreatedAt     time.Time
}

// Customer is a lightweight contact record scoped to a catalog.
type Customer struct {
	ID            uuid.UUID
	CatalogID     uuid.UUID
	ContactEnc    string
	ContactSearch string
	CreatedAt     time.Time
}
