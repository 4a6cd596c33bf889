// Package person defines the person record (member, beneficiary, volunteer
// or donor) imported in bulk, together with its validation schema, the
// column headers accepted in uploaded files and a sample template.
package person

import "github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"

// TargetKey identifies person imports in the service registry and URLs.
const TargetKey = "persons"

// KeyField is the field used to drop duplicate persons within one upload.
const KeyField = "nationalId"

// MaxRecords is the default cap on records per upload.
const MaxRecords = 2000

// Status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Person is one validated person record.
type Person struct {
	ID                string   `json:"id,omitempty"`
	Name              string   `json:"name"`
	NationalID        string   `json:"nationalId,omitempty"`
	Nationality       string   `json:"nationality,omitempty"`
	Country           string   `json:"country,omitempty"`
	City              string   `json:"city,omitempty"`
	Settlement        string   `json:"settlement,omitempty"`
	Neighborhood      string   `json:"neighborhood,omitempty"`
	Address           string   `json:"address,omitempty"`
	FamilyMemberCount *int     `json:"familyMemberCount,omitempty"`
	LinkedOrphan      string   `json:"linkedOrphan,omitempty"`
	LinkedCard        string   `json:"linkedCard,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	RegistrationDate  string   `json:"registrationDate,omitempty"` // YYYY-MM-DD
	RegistrationUnit  string   `json:"registrationUnit,omitempty"`
	Category          string   `json:"category,omitempty"`
	Type              string   `json:"type,omitempty"`
	FundRegion        string   `json:"fundRegion,omitempty"`
	TotalAmount       *float64 `json:"totalAmount,omitempty"`
	IBAN              string   `json:"iban,omitempty"`
	Status            string   `json:"status"`
}

// Key returns the national ID used for deduplication, if any.
func (p Person) Key() (string, bool) {
	return p.NationalID, p.NationalID != ""
}

// Dedupe drops persons that repeat an earlier national ID. Persons without
// a national ID are kept.
func Dedupe(people []Person) ([]Person, int) {
	return bulkimport.Dedupe(people, Person.Key)
}
