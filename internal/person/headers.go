package person

import "strings"

// headerAliases maps the display headers of the sample template, in Turkish
// and English, to field names.
var headerAliases = foldAliases(map[string]string{
	"id":                   "id",
	"ad soyad":             "name",
	"name":                 "name",
	"full name":            "name",
	"kimlik no":            "nationalId",
	"tc kimlik no":         "nationalId",
	"national id":          "nationalId",
	"uyruk":                "nationality",
	"nationality":          "nationality",
	"ülkesi":               "country",
	"ülke":                 "country",
	"country":              "country",
	"şehri":                "city",
	"şehir":                "city",
	"city":                 "city",
	"yerleşimi":            "settlement",
	"yerleşim":             "settlement",
	"settlement":           "settlement",
	"mahalle":              "neighborhood",
	"neighborhood":         "neighborhood",
	"adres":                "address",
	"address":              "address",
	"ailedeki kişi sayısı": "familyMemberCount",
	"family member count":  "familyMemberCount",
	"bağlı yetim":          "linkedOrphan",
	"linked orphan":        "linkedOrphan",
	"bağlı kart":           "linkedCard",
	"linked card":          "linkedCard",
	"telefon no":           "phone",
	"telefon":              "phone",
	"phone":                "phone",
	"kayıt tarihi":         "registrationDate",
	"registration date":    "registrationDate",
	"kaydı açan birim":     "registrationUnit",
	"registration unit":    "registrationUnit",
	"kategori":             "category",
	"category":             "category",
	"tür":                  "type",
	"type":                 "type",
	"fon bölgesi":          "fundRegion",
	"fund region":          "fundRegion",
	"toplam tutar":         "totalAmount",
	"total amount":         "totalAmount",
	"iban":                 "iban",
	"durum":                "status",
	"status":               "status",
})

// FieldForHeader resolves a column header to a field name. Field names
// themselves resolve to themselves. Unknown headers are returned unchanged
// so the strict schema reports them.
func FieldForHeader(header string) string {
	h := strings.TrimSpace(header)
	for _, f := range Fields {
		if strings.EqualFold(f.Name, h) {
			return f.Name
		}
	}
	if field, ok := headerAliases[foldHeader(h)]; ok {
		return field
	}
	return h
}

var iFolder = strings.NewReplacer("İ", "i", "I", "i", "ı", "i")

// foldHeader lowercases, maps every Turkish and Latin i variant to "i" and
// collapses inner whitespace.
func foldHeader(h string) string {
	return strings.Join(strings.Fields(strings.ToLower(iFolder.Replace(h))), " ")
}

func foldAliases(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[foldHeader(k)] = v
	}
	return out
}
