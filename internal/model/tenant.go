// Package model defines the tenant-scoped entities persisted by the Store
// and exchanged between the pipeline components.
package model

import "time"

// Plan is a tenant's subscription tier. It drives rate-limit admission
// and, indirectly, connector/analysis quotas.
type Plan string

const (
	PlanFree         Plan = "FREE"
	PlanStarter      Plan = "STARTER"
	PlanProfessional Plan = "PROFESSIONAL"
	PlanEnterprise   Plan = "ENTERPRISE"
)

// Tenant is the top-level isolation boundary. Every other entity in this
// package carries a TenantID that must match the Tenant that owns it.
type Tenant struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Plan      Plan      `json:"plan"`
	DataDir   string    `json:"dataDir"`
	CreatedAt time.Time `json:"createdAt"`
}

// Role is a User's permission level within its tenant.
type Role string

const (
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
	RoleViewer Role = "VIEWER"
)

// User belongs to exactly one tenant. Email is unique within that tenant,
// not globally.
type User struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenantId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
