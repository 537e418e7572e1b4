// internal/models/license_type.go
package models

import (
	"github.com/lib/pq"
)

// LicenseType is one entry in the license catalog: a content hash of the
// legal terms pointing at the canonical terms document.
type LicenseType struct {
	BaseModel
	LicenseHash string         `json:"license_hash" gorm:"size:66;not null;uniqueIndex"`
	TermsURL    string         `json:"terms_url" gorm:"size:2048;not null"`
	Description string         `json:"description" gorm:"type:text"`
	Tags        pq.StringArray `json:"tags" gorm:"type:text[]"`
	CreatedBy   Address        `json:"created_by" gorm:"size:42;not null;index"`
}

// Licensee is one registered licensee account: an address plus opaque
// registration data and an admin-controlled usability flag.
type Licensee struct {
	BaseModel
	Address      Address `json:"address" gorm:"size:42;not null;uniqueIndex"`
	Data         []byte  `json:"data" gorm:"not null"`
	Usable       bool    `json:"usable" gorm:"default:false;index"`
	RegisteredBy Address `json:"registered_by" gorm:"size:42"`
}

// Admin is one entry in the access registry. The main admin is seeded at
// bootstrap and cannot be removed.
type Admin struct {
	BaseModel
	Address Address `json:"address" gorm:"size:42;not null;uniqueIndex"`
	IsMain  bool    `json:"is_main" gorm:"default:false"`
	AddedBy Address `json:"added_by" gorm:"size:42"`
}
