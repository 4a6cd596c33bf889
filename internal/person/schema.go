package person

import (
	"regexp"

	"github.com/kafkasder-git/starter-function-sub002/internal/bulkimport"
)

var (
	nationalIDPattern = regexp.MustCompile(`^[0-9]{11}$`)
	phonePattern      = regexp.MustCompile(`^(\+90|0)?5[0-9]{9}$`)
	ibanPattern       = regexp.MustCompile(`^TR[0-9]{24}$`)
)

// Fields lists the person fields in template order.
var Fields = []bulkimport.FieldSpec{
	{Name: "id", Type: bulkimport.FieldText},
	{Name: "name", Type: bulkimport.FieldText, Required: true, MinLen: 2, MaxLen: 100},
	{Name: "nationalId", Type: bulkimport.FieldText, Pattern: nationalIDPattern, Message: "national ID must be 11 digits"},
	{Name: "nationality", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "country", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "city", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "settlement", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "neighborhood", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "address", Type: bulkimport.FieldText, MaxLen: 500},
	{Name: "familyMemberCount", Type: bulkimport.FieldInteger, Min: bulkimport.Limit(1), Max: bulkimport.Limit(20)},
	{Name: "linkedOrphan", Type: bulkimport.FieldText, MaxLen: 100},
	{Name: "linkedCard", Type: bulkimport.FieldText, MaxLen: 100},
	{Name: "phone", Type: bulkimport.FieldText, Pattern: phonePattern, Message: "enter a valid mobile phone number"},
	{Name: "registrationDate", Type: bulkimport.FieldDate, Layouts: []string{dateLayout}},
	{Name: "registrationUnit", Type: bulkimport.FieldText, MaxLen: 100},
	{Name: "category", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "type", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "fundRegion", Type: bulkimport.FieldText, MaxLen: 50},
	{Name: "totalAmount", Type: bulkimport.FieldNumber, Min: bulkimport.Limit(0), Max: bulkimport.Limit(MaxTotalAmount)},
	{Name: "iban", Type: bulkimport.FieldText, Pattern: ibanPattern, Message: "enter a valid TR IBAN"},
	{Name: "status", Type: bulkimport.FieldEnum, Enum: []string{StatusActive, StatusInactive}, Default: StatusActive},
}

const dateLayout = "2006-01-02"

// MaxTotalAmount is the largest amount the NUMERIC(14, 2) column holds.
const MaxTotalAmount = 999999999999.99

// Schema returns the strict person schema: unknown keys are rejected.
func Schema() *bulkimport.Schema[Person] {
	return &bulkimport.Schema[Person]{
		Fields: Fields,
		Strict: true,
		Build:  build,
	}
}

func build(v bulkimport.Values) (Person, error) {
	p := Person{
		ID:               v.String("id"),
		Name:             v.String("name"),
		NationalID:       v.String("nationalId"),
		Nationality:      v.String("nationality"),
		Country:          v.String("country"),
		City:             v.String("city"),
		Settlement:       v.String("settlement"),
		Neighborhood:     v.String("neighborhood"),
		Address:          v.String("address"),
		LinkedOrphan:     v.String("linkedOrphan"),
		LinkedCard:       v.String("linkedCard"),
		Phone:            v.String("phone"),
		RegistrationUnit: v.String("registrationUnit"),
		Category:         v.String("category"),
		Type:             v.String("type"),
		FundRegion:       v.String("fundRegion"),
		IBAN:             v.String("iban"),
		Status:           v.String("status"),
	}
	if v.Has("familyMemberCount") {
		n := int(v.Int("familyMemberCount"))
		p.FamilyMemberCount = &n
	}
	if v.Has("totalAmount") {
		f := v.Float("totalAmount")
		p.TotalAmount = &f
	}
	if t, ok := v.Time("registrationDate"); ok {
		p.RegistrationDate = t.Format(dateLayout)
	}
	return p, nil
}
