package wallet

import "time"

type VerificationStatus string

var (
	VerificationNever    VerificationStatus = "never"
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

func (v VerificationStatus) String() string {
	switch v {
	case VerificationNever, VerificationPending, VerificationVerified, VerificationFailed:
		return string(v)
	default:
		return ""
	}
}

// Wallet holds one tenant's payment-gateway credentials, envelope-encrypted
// at rest. Secret columns are excluded from JSON so no serializer can leak
// them. A wallet is deactivated, never deleted.
type Wallet struct {
	ID                    string             `gorm:"column:id;primaryKey" json:"id"`
	TenantID              string             `gorm:"column:tenant_id;uniqueIndex;not null" json:"tenant_id"`
	PublicKey             string             `gorm:"column:public_key;not null" json:"-"`
	SecretKey             string             `gorm:"column:secret_key;not null" json:"-"`
	WebhookSecret         *string            `gorm:"column:webhook_secret" json:"-"`
	IsActive              bool               `gorm:"column:is_active;default:true" json:"is_active"`
	VerificationStatus    VerificationStatus `gorm:"column:verification_status;default:'never'" json:"verification_status"`
	LastVerifiedAt        *time.Time         `gorm:"column:last_verified_at" json:"last_verified_at,omitempty"`
	LastVerificationError *string            `gorm:"column:last_verification_error" json:"last_verification_error,omitempty"`
	CreatedAt             time.Time          `gorm:"column:created_at" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"column:updated_at" json:"updated_at"`
}

// Credentials is the decrypted, ready-to-use view of a wallet. It lives
// only in memory on a resolve path and must never be persisted or logged.
type Credentials struct {
	PublicKey     string
	SecretKey     string
	WebhookSecret *string
}

// MaskedCredentials is the display-safe view. The secret key and webhook
// secret are always the fixed sentinel; only the public key keeps its last
// four characters.
type MaskedCredentials struct {
	PublicKey     string  `json:"public_key"`
	SecretKey     string  `json:"secret_key"`
	WebhookSecret *string `json:"webhook_secret,omitempty"`
}
