package models

import "time"

// Claim is a name this node registered and keeps republishing.
type Claim struct {
	Model
	Name string `gorm:"uniqueIndex;not null"`
}

// Grant is a lease this node issued to another peer.
type Grant struct {
	Model
	Subdomain string    `gorm:"uniqueIndex;not null"`
	Leasee    string    `gorm:"not null"`
	Until     time.Time `gorm:"index"`
}
