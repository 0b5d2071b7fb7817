package models

import "time"

type PaymentStatus string

//goland:noinspection ALL
const (
	PSTATUS_PENDING   PaymentStatus = "pending"
	PSTATUS_COMPLETED PaymentStatus = "completed"
	PSTATUS_FAILED    PaymentStatus = "failed"
)

// Terminal reports whether no further transition may leave the status.
func (s PaymentStatus) Terminal() bool {
	return s == PSTATUS_COMPLETED || s == PSTATUS_FAILED
}

// Payment is one donation attempt. Amount is kept in major currency units,
// the provider sees it multiplied by 100.
type Payment struct {
	ID string `gorm:"primaryKey;size:36" bson:"_id" json:"id"`

	Amount   int64  `gorm:"not null" bson:"amount" json:"amount"`
	Currency string `gorm:"size:8;default:'INR'" bson:"currency" json:"currency"`
	PayerID  string `gorm:"size:36;not null;index" bson:"payer_id" json:"payerId"`
	PayeeID  string `gorm:"size:36;not null;index" bson:"payee_id" json:"payeeId"`
	Message  string `gorm:"size:500" bson:"message" json:"message"`

	ProviderOrderID   string `gorm:"size:64;not null;uniqueIndex" bson:"provider_order_id" json:"providerOrderId"`
	ProviderPaymentID string `gorm:"size:64" bson:"provider_payment_id" json:"providerPaymentId,omitempty"`

	Status PaymentStatus `gorm:"size:16;not null;index;default:'pending'" bson:"status" json:"status"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

func (Payment) TableName() string {
	return "payments"
}
