package schema

import (
	"reflect"
	"testing"
	"time"
)

func TestTabRecord_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rec     TabRecord
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid record",
			rec:  TabRecord{URL: "https://a.com", DeviceName: "Laptop"},
		},
		{
			name:    "missing url",
			rec:     TabRecord{DeviceName: "Laptop"},
			wantErr: true,
			errMsg:  "url is required",
		},
		{
			name:    "missing device",
			rec:     TabRecord{URL: "https://a.com"},
			wantErr: true,
			errMsg:  "device_name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && err.Error() != tt.errMsg {
				t.Errorf("Validate() error = %q, want %q", err.Error(), tt.errMsg)
			}
		})
	}
}

func TestTabRecord_DisplayTitle(t *testing.T) {
	withTitle := &TabRecord{URL: "https://a.com", Title: "A"}
	if got := withTitle.DisplayTitle(); got != "A" {
		t.Errorf("DisplayTitle() = %q, want %q", got, "A")
	}

	noTitle := &TabRecord{URL: "https://a.com"}
	if got := noTitle.DisplayTitle(); got != "https://a.com" {
		t.Errorf("DisplayTitle() = %q, want url fallback", got)
	}
}

func TestGroupByDevice(t *testing.T) {
	now := time.Now()
	records := []*TabRecord{
		{ID: 3, URL: "https://c.com", DeviceName: "Phone", LastUpdated: now},
		{ID: 2, URL: "https://b.com", DeviceName: "Laptop", LastUpdated: now.Add(-time.Minute)},
		{ID: 1, URL: "https://a.com", DeviceName: "Phone", LastUpdated: now.Add(-time.Hour)},
	}

	groups := GroupByDevice(records)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].DeviceName != "Laptop" || groups[1].DeviceName != "Phone" {
		t.Errorf("groups not sorted by device: %s, %s", groups[0].DeviceName, groups[1].DeviceName)
	}

	var phoneIDs []int64
	for _, rec := range groups[1].Tabs {
		phoneIDs = append(phoneIDs, rec.ID)
	}
	if !reflect.DeepEqual(phoneIDs, []int64{3, 1}) {
		t.Errorf("phone tabs = %v, want input order [3 1]", phoneIDs)
	}
}

func TestGroupByDevice_Empty(t *testing.T) {
	if groups := GroupByDevice(nil); len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
}

func TestDevices(t *testing.T) {
	records := []*TabRecord{
		{URL: "https://a.com", DeviceName: "Work PC"},
		{URL: "https://b.com", DeviceName: "Laptop"},
		{URL: "https://c.com", DeviceName: "Work PC"},
	}

	got := Devices(records)
	want := []string{"Laptop", "Work PC"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Devices() = %v, want %v", got, want)
	}
}
