package model

import (
	"testing"
	"time"
)

func TestClassOf(t *testing.T) {
	tests := []struct {
		name     string
		weekday  time.Weekday
		expected WeekdayClass
		night    ShiftKind
	}{
		{"周一", time.Monday, ClassMidweek, ShiftNightMidweek},
		{"周二", time.Tuesday, ClassMidweek, ShiftNightMidweek},
		{"周三", time.Wednesday, ClassMidweek, ShiftNightMidweek},
		{"周四", time.Thursday, ClassStandard, ShiftNightWeekday},
		{"周五", time.Friday, ClassWeekend, ShiftNightWeekend},
		{"周六", time.Saturday, ClassWeekend, ShiftNightWeekend},
		{"周日", time.Sunday, ClassStandard, ShiftNightWeekday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ClassOf(tt.weekday)
			if c != tt.expected {
				t.Errorf("ClassOf(%v) = %s, expected %s", tt.weekday, c, tt.expected)
			}
			if k := c.NightKind(); k != tt.night {
				t.Errorf("NightKind() = %s, expected %s", k, tt.night)
			}
		})
	}
}

func TestShiftKind_IsNight(t *testing.T) {
	tests := []struct {
		kind     ShiftKind
		expected bool
	}{
		{ShiftDay, false},
		{ShiftNightWeekday, true},
		{ShiftNightWeekend, true},
		{ShiftNightMidweek, true},
		{ShiftNightAny, true},
		{ShiftKind(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			if result := tt.kind.IsNight(); result != tt.expected {
				t.Errorf("IsNight() = %v, expected %v", result, tt.expected)
			}
		})
	}
}

func TestParseShiftKind(t *testing.T) {
	tests := []struct {
		input    string
		expected ShiftKind
		wantErr  bool
	}{
		{"d", ShiftDay, false},
		{" Day ", ShiftDay, false},
		{"n", ShiftNightAny, false},
		{"nwd", ShiftNightWeekday, false},
		{"NWE", ShiftNightWeekend, false},
		{"hwk", ShiftNightMidweek, false},
		{"x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseShiftKind(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseShiftKind(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if kind != tt.expected {
				t.Errorf("ParseShiftKind(%q) = %s, expected %s", tt.input, kind, tt.expected)
			}
		})
	}
}

func TestDay_IsFreeByCalendar(t *testing.T) {
	tests := []struct {
		name     string
		day      Day
		expected bool
	}{
		{"工作日", Day{}, false},
		{"周末", Day{Weekend: true}, true},
		{"节假日", Day{Holiday: true}, true},
		{"周末节假日", Day{Weekend: true, Holiday: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.day.IsFreeByCalendar(); result != tt.expected {
				t.Errorf("IsFreeByCalendar() = %v, expected %v", result, tt.expected)
			}
		})
	}
}
