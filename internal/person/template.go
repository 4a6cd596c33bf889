package person

import (
	"encoding/csv"
	"io"
)

// TemplateFileName is the suggested download name of the sample file.
const TemplateFileName = "bulk-import-sample.csv"

// TemplateHeaders are the display headers of the sample file, one per field
// in Fields order except status.
var TemplateHeaders = []string{
	"ID", "Ad Soyad", "Kimlik No", "Uyruk", "Ülkesi", "Şehri", "Yerleşimi", "Mahalle", "Adres",
	"Ailedeki Kişi Sayısı", "Bağlı Yetim", "Bağlı Kart", "Telefon No", "Kayıt Tarihi",
	"Kaydı Açan Birim", "Kategori", "Tür", "Fon Bölgesi", "Toplam Tutar", "Iban",
}

var templateRows = [][]string{
	{"1", "Ahmet Yılmaz", "12345678901", "Türk", "Türkiye", "İstanbul", "Ataşehir", "Ataşehir Mah.", "Ataşehir Mah. No:15",
		"4", "Yetim Ahmet", "12345", "05551234567", "2024-01-15", "Merkez Birim", "Yardım Alanı", "Üye", "İstanbul", "5000.00",
		"TR123456789012345678901234"},
	{"2", "Fatma Demir", "23456789012", "Türk", "Türkiye", "Ankara", "Çankaya", "Çankaya Mah.", "Çankaya Mah. No:25",
		"3", "Yetim Fatma", "67890", "05552345678", "2024-01-16", "Şube Birim", "Yardım Alanı", "Üye", "Ankara", "3500.00",
		"TR234567890123456789012345"},
	{"3", "Mehmet Kaya", "34567890123", "Türk", "Türkiye", "İzmir", "Konak", "Konak Mah.", "Konak Mah. No:35",
		"5", "Yetim Mehmet", "11111", "05553456789", "2024-01-17", "Temsilcilik", "Yardım Alanı", "Üye", "İzmir", "7500.00",
		"TR345678901234567890123456"},
}

// WriteTemplate writes the sample CSV with display headers and three
// example rows that pass validation.
func WriteTemplate(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(TemplateHeaders); err != nil {
		return err
	}
	if err := cw.WriteAll(templateRows); err != nil {
		return err
	}
	return cw.Error()
}
