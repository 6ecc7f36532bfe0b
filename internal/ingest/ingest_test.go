package ingest

import (
	"testing"
	"time"

	"github.com/lox/heatlock/internal/models"
)

func TestParseMETARTemp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want float64
		ok   bool
	}{
		{"positive temp", "KNYC 141651Z 28012KT 10SM FEW250 26/18 A3002", 26, true},
		{"negative temp", "KMDW 141651Z 31015KT 10SM OVC030 M04/M09 A3021", -4, true},
		{"negative dewpoint only", "KDEN 141651Z 36008KT 10SM CLR 02/M05 A3035", 2, true},
		{"no temp group", "KNYC 141651Z 28012KT 10SM FEW250 A3002", 0, false},
		{"empty", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseMETARTemp(tt.raw)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("temp = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCelsiusToFahrenheit(t *testing.T) {
	tests := []struct {
		c, f float64
	}{
		{0, 32},
		{100, 212},
		{-40, -40},
		{35, 95},
	}
	for _, tt := range tests {
		if got := celsiusToFahrenheit(tt.c); got != tt.f {
			t.Errorf("celsiusToFahrenheit(%v) = %v, want %v", tt.c, got, tt.f)
		}
	}
}

func TestParseIEMCSV(t *testing.T) {
	city := models.City{Key: "nyc", MetarID: "KNYC"}
	fetchedAt := time.Date(2026, 7, 14, 20, 0, 0, 0, time.UTC)

	body := `station,valid,tmpf
NYC,2026-07-14 14:51,88.00
NYC,2026-07-14 15:51,91.00
NYC,2026-07-14 16:23,
NYC,2026-07-14 16:51,90.00
garbage line
NYC,bad-timestamp,85.00
`
	readings := ParseIEMCSV(body, city, fetchedAt)
	if len(readings) != 3 {
		t.Fatalf("len(readings) = %d, want 3", len(readings))
	}
	if readings[1].TempF != 91.0 {
		t.Errorf("TempF = %v, want 91.0", readings[1].TempF)
	}
	if readings[0].Source != "iem" {
		t.Errorf("Source = %q, want iem", readings[0].Source)
	}
	want := time.Date(2026, 7, 14, 14, 51, 0, 0, time.UTC)
	if !readings[0].ObservedAt.Equal(want) {
		t.Errorf("ObservedAt = %v, want %v", readings[0].ObservedAt, want)
	}
	if !readings[0].FetchedAt.Equal(fetchedAt) {
		t.Errorf("FetchedAt = %v, want %v", readings[0].FetchedAt, fetchedAt)
	}
}

func TestParseIEMCSV_Empty(t *testing.T) {
	city := models.City{Key: "nyc", MetarID: "KNYC"}
	if readings := ParseIEMCSV("station,valid,tmpf\n", city, time.Now()); len(readings) != 0 {
		t.Errorf("len(readings) = %d, want 0", len(readings))
	}
}

const sampleCLIToday = `
000
CDUS41 KOKX 142000
CLINYC

CLIMATE REPORT
NATIONAL WEATHER SERVICE NEW YORK, NY
400 PM EDT TUE JUL 14 2026

...................................

...THE CENTRAL PARK NY CLIMATE SUMMARY FOR JULY 14 2026...

WEATHER ITEM   OBSERVED TIME   RECORD YEAR NORMAL DEPARTURE LAST
                VALUE   (LST)  VALUE       VALUE  FROM      YEAR
                                                  NORMAL
...................................................................
TEMPERATURE (F)
 TODAY
  MAXIMUM         95    228 PM  100  1995   84     11       88
  MINIMUM         75    544 AM   58  1930   69      6       73
  AVERAGE         85                        77      8       81
`

const sampleCLIYesterday = `
TEMPERATURE (F)
 YESTERDAY
  MAXIMUM         95    228 PM  100  1995   84     11       88
  MINIMUM         75    544 AM   58  1930   69      6       73
`

func TestParseClimateMax(t *testing.T) {
	got, ok := ParseClimateMax(sampleCLIToday)
	if !ok {
		t.Fatal("ParseClimateMax: not ok")
	}
	if got != 95 {
		t.Errorf("max = %v, want 95", got)
	}
}

func TestParseClimateMax_YesterdayIgnored(t *testing.T) {
	if _, ok := ParseClimateMax(sampleCLIYesterday); ok {
		t.Error("accepted a YESTERDAY report")
	}
}

func TestParseClimateMax_Negative(t *testing.T) {
	body := "TEMPERATURE (F)\n TODAY\n  MAXIMUM         -4    1151 AM\n"
	got, ok := ParseClimateMax(body)
	if !ok || got != -4 {
		t.Errorf("got (%v, %v), want (-4, true)", got, ok)
	}
}

func TestParseClimateMax_NoSection(t *testing.T) {
	if _, ok := ParseClimateMax("PRECIPITATION (IN)\n  TODAY 0.00"); ok {
		t.Error("accepted a report with no temperature section")
	}
}
