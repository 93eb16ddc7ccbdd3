package models

import "time"

// BusinessConfig holds the business identity printed on every bill header
// and footer. Optional fields are simply omitted from the printout when empty.
type BusinessConfig struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`

	// Tax & licensing
	GSTIN        string  `json:"gstin"`         // tax registration id
	FSSAILicense string  `json:"fssai_license"` // food license id
	TaxMode      TaxMode `json:"tax_mode"`
	ShowVegMark  bool    `json:"show_veg_mark"` // boxed "tax invoice / veg" banner on bills

	// Footer
	ThankYouNote string `json:"thank_you_note"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
