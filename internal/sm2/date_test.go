package sm2

import (
	"encoding/json"
	"testing"
	"time"
)

func TestDateArithmetic(t *testing.T) {
	testCases := []struct {
		name     string
		start    Date
		days     int
		expected string
	}{
		{"same month", Date{2026, time.March, 10}, 5, "2026-03-15"},
		{"month boundary", Date{2026, time.January, 30}, 3, "2026-02-02"},
		{"leap day", Date{2028, time.February, 28}, 1, "2028-02-29"},
		{"year boundary", Date{2026, time.December, 31}, 1, "2027-01-01"},
		{"backwards", Date{2026, time.March, 1}, -1, "2026-02-28"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.start.AddDays(tc.days).String(); got != tc.expected {
				t.Errorf("Expected %s, but got %s", tc.expected, got)
			}
		})
	}
}

func TestDateOfIgnoresTimeOfDay(t *testing.T) {
	morning := DateOf(time.Date(2026, time.May, 4, 0, 0, 1, 0, time.UTC))
	night := DateOf(time.Date(2026, time.May, 4, 23, 59, 59, 0, time.UTC))
	if morning != night {
		t.Errorf("Expected the same day, but got %s and %s", morning, night)
	}
	if morning.Compare(night) != 0 || morning.Before(night) || morning.After(night) {
		t.Error("Expected dates on the same day to compare equal")
	}
	if !morning.Before(night.AddDays(1)) {
		t.Error("Expected a date to be before the next day")
	}
}

func TestDateText(t *testing.T) {
	d, err := ParseDate("2026-10-19")
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if d != (Date{2026, time.October, 19}) {
		t.Errorf("Expected 2026-10-19, but got %+v", d)
	}

	if _, err := ParseDate("19/10/2026"); err == nil {
		t.Error("Expected an error for a non-ISO date")
	}

	b, err := json.Marshal(struct {
		Due Date `json:"due"`
	}{d})
	if err != nil {
		t.Fatalf("Expected no error, but got %v", err)
	}
	if string(b) != `{"due":"2026-10-19"}` {
		t.Errorf("Expected ISO date in JSON, but got %s", b)
	}

	var back Date
	if err := back.UnmarshalText([]byte("2026-10-19")); err != nil || back != d {
		t.Errorf("Expected round trip to %s, but got %s (err %v)", d, back, err)
	}
}

func TestDateScan(t *testing.T) {
	var d Date
	if err := d.Scan("2026-01-02"); err != nil || d.String() != "2026-01-02" {
		t.Errorf("Expected 2026-01-02 from string, but got %s (err %v)", d, err)
	}
	if err := d.Scan(time.Date(2026, 2, 3, 22, 0, 0, 0, time.UTC)); err != nil || d.String() != "2026-02-03" {
		t.Errorf("Expected 2026-02-03 from time, but got %s (err %v)", d, err)
	}
	if err := d.Scan(nil); err != nil || !d.IsZero() {
		t.Errorf("Expected zero date from nil, but got %s (err %v)", d, err)
	}
	if err := d.Scan(42); err == nil {
		t.Error("Expected an error scanning an int")
	}
	v, err := (Date{2026, time.April, 9}).Value()
	if err != nil || v != "2026-04-09" {
		t.Errorf("Expected driver value 2026-04-09, but got %v (err %v)", v, err)
	}
}
