package core

import (
	"reflect"
	"testing"
	"time"
)

func TestMonthOf(t *testing.T) {
	tests := []struct {
		date     string
		expected MonthKey
	}{
		{"2025-03-15", "2025-03"},
		{"2024-12-01", "2024-12"},
		{"2025-01", "2025-01"},
		{"short", "short"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := MonthOf(tt.date); got != tt.expected {
				t.Errorf("MonthOf(%q) = %q, want %q", tt.date, got, tt.expected)
			}
		})
	}
}

func TestMonthOfTime(t *testing.T) {
	ts := time.Date(2025, time.July, 31, 23, 59, 0, 0, time.UTC)
	if got := MonthOfTime(ts); got != "2025-07" {
		t.Errorf("MonthOfTime() = %q, want %q", got, "2025-07")
	}
}

func TestMonthKeyValid(t *testing.T) {
	tests := []struct {
		month    MonthKey
		expected bool
	}{
		{"2025-01", true},
		{"2025-12", true},
		{"2025-13", false},
		{"2025-00", false},
		{"2025", false},
		{"garbage", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.month), func(t *testing.T) {
			if got := tt.month.Valid(); got != tt.expected {
				t.Errorf("Valid(%q) = %v, want %v", tt.month, got, tt.expected)
			}
		})
	}
}

func TestMinMonth(t *testing.T) {
	if got := MinMonth("2024-11", "2025-02"); got != "2024-11" {
		t.Errorf("MinMonth() = %q, want %q", got, "2024-11")
	}
	if got := MinMonth("2025-02", "2024-11"); got != "2024-11" {
		t.Errorf("MinMonth() = %q, want %q", got, "2024-11")
	}
	if got := MinMonth("2025-02", "2025-02"); got != "2025-02" {
		t.Errorf("MinMonth() = %q, want %q", got, "2025-02")
	}
}

func TestMonthsBetween(t *testing.T) {
	tests := []struct {
		name     string
		start    MonthKey
		end      MonthKey
		expected []MonthKey
	}{
		{
			name:     "single month",
			start:    "2025-03",
			end:      "2025-03",
			expected: []MonthKey{"2025-03"},
		},
		{
			name:     "within one year",
			start:    "2025-03",
			end:      "2025-06",
			expected: []MonthKey{"2025-03", "2025-04", "2025-05", "2025-06"},
		},
		{
			name:     "year boundary",
			start:    "2024-11",
			end:      "2025-02",
			expected: []MonthKey{"2024-11", "2024-12", "2025-01", "2025-02"},
		},
		{
			name:     "start after end",
			start:    "2025-05",
			end:      "2025-03",
			expected: nil,
		},
		{
			name:     "unparseable start",
			start:    "garbage",
			end:      "2025-03",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MonthsBetween(tt.start, tt.end)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("MonthsBetween(%q, %q) = %v, want %v", tt.start, tt.end, got, tt.expected)
			}
		})
	}
}
