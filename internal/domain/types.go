package domain

import (
	"encoding/json"
	"time"
)

// Metric types a rule can watch. BUDGET rules compare percent-of-amount
// against their tiers instead of the raw metric value.
const (
	MetricCost   = "COST"
	MetricCPU    = "CPU"
	MetricMemory = "MEMORY"
	MetricDisk   = "DISK"
	MetricBudget = "BUDGET"
)

// Comparison operators. EQ uses an epsilon of 0.01 so decimal metric
// values do not miss on float representation.
const (
	OpGreaterThan = "GT"
	OpLessThan    = "LT"
	OpEqual       = "EQ"
)

const EqualEpsilon = 0.01

// Event statuses.
const (
	EventActive       = "ACTIVE"
	EventAcknowledged = "ACKNOWLEDGED"
	EventResolved     = "RESOLVED"
)

// Access grant statuses.
const (
	GrantPending  = "PENDING"
	GrantApproved = "APPROVED"
	GrantRejected = "REJECTED"
	GrantExpired  = "EXPIRED"
)

// Budget periods. Only MONTHLY is computed; QUARTERLY and ANNUAL are
// declared but rejected at validation until their windowing is defined.
const (
	PeriodMonthly   = "MONTHLY"
	PeriodQuarterly = "QUARTERLY"
	PeriodAnnual    = "ANNUAL"
)

// Channel describes one notification target on a rule. Config is opaque
// to everything except the sender for its type.
type Channel struct {
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// BudgetConfig is present on BUDGET rules. Thresholds are percent of
// Amount for these rules.
type BudgetConfig struct {
	Amount float64 `json:"amount"`
	Period string  `json:"period"`
}

// Rule is a monitorable condition. Thresholds is ascending; a simple
// alert rule has exactly one tier, a budget has several.
type Rule struct {
	ID         string        `json:"id"`
	TenantID   string        `json:"tenantId"`
	Name       string        `json:"name"`
	MetricType string        `json:"metricType"`
	Scope      string        `json:"scope,omitempty"`
	Thresholds []float64     `json:"thresholds"`
	Operator   string        `json:"operator"`
	Channels   []Channel     `json:"channels"`
	Budget     *BudgetConfig `json:"budget,omitempty"`
	Enabled    bool          `json:"enabled"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// Event is one triggered breach. At most one ACTIVE event exists per
// (rule id, threshold tier); the storage layer enforces it.
type Event struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"ruleId"`
	TenantID       string    `json:"tenantId"`
	ThresholdTier  float64   `json:"thresholdTier"`
	CurrentValue   float64   `json:"currentValue"`
	ThresholdValue float64   `json:"thresholdValue"`
	Message        string    `json:"message"`
	Status         string    `json:"status"`
	AcknowledgedBy string    `json:"acknowledgedBy,omitempty"`
	TriggeredAt    time.Time `json:"triggeredAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// AccessGrant is a time-boxed privilege elevation request. ExpiresAt is
// set exactly once, at approval.
type AccessGrant struct {
	ID              string     `json:"id"`
	TenantID        string     `json:"tenantId"`
	UserID          string     `json:"userId"`
	RequestedRoleID string     `json:"requestedRoleId"`
	Justification   string     `json:"justification"`
	DurationMinutes int        `json:"durationMinutes"`
	Status          string     `json:"status"`
	ApproverID      string     `json:"approverId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

// Role and RoleAssignment back the RBAC side of JIT access.
type Role struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	CreatedAt   time.Time `json:"createdAt"`
}

type RoleAssignment struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	UserID         string    `json:"userId"`
	RoleID         string    `json:"roleId"`
	GrantRequestID string    `json:"grantRequestId,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
