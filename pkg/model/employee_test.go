package model

import (
	"testing"
)

func TestParseEligibility(t *testing.T) {
	tests := []struct {
		name     string
		spec     string
		expected []ShiftKind
		double   bool
		wantErr  bool
	}{
		{"日班夜班连班", "d,n,n+d", []ShiftKind{ShiftDay, ShiftNightWeekday, ShiftNightWeekend, ShiftNightMidweek}, true, false},
		{"仅周末夜班", "nwe", []ShiftKind{ShiftNightWeekend}, false, false},
		{"空格分隔", "d hwk", []ShiftKind{ShiftDay, ShiftNightMidweek}, false, false},
		{"空字符串", "", nil, false, false},
		{"未知代码", "d,x", nil, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eligible, double, err := ParseEligibility(tt.spec)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseEligibility(%q) error = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(eligible) != len(tt.expected) {
				t.Errorf("Expected %d kinds, got %d", len(tt.expected), len(eligible))
			}
			for _, k := range tt.expected {
				if !eligible[k] {
					t.Errorf("Expected %s to be eligible", k)
				}
			}
			if double != tt.double {
				t.Errorf("double = %v, expected %v", double, tt.double)
			}
		})
	}
}

func TestEmployee_MustNotBeRelievedBy(t *testing.T) {
	e := &Employee{Name: "anna", NotRelievedBy: []string{"bernd"}}

	if !e.MustNotBeRelievedBy("bernd") {
		t.Error("Expected bernd to be forbidden")
	}
	if e.MustNotBeRelievedBy("clara") {
		t.Error("Expected clara to be allowed")
	}
}

func TestEmployee_EligibleCodes(t *testing.T) {
	e := &Employee{
		Eligible:          map[ShiftKind]bool{ShiftNightWeekend: true, ShiftDay: true, ShiftNightMidweek: false},
		AllowsDoubleShift: true,
	}

	codes := e.EligibleCodes()
	expected := []string{"d", "nwe", "n+d"}
	if len(codes) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, codes)
	}
	for i := range expected {
		if codes[i] != expected[i] {
			t.Errorf("codes[%d] = %s, expected %s", i, codes[i], expected[i])
		}
	}
}

func TestValidateEmployees(t *testing.T) {
	tests := []struct {
		name      string
		employees []*Employee
		wantErr   bool
	}{
		{"正常", []*Employee{{Name: "a", HoursPerWeek: 40}, {Name: "b", NotRelievedBy: []string{"a"}}}, false},
		{"空姓名", []*Employee{{Name: " "}}, true},
		{"重复姓名", []*Employee{{Name: "a"}, {Name: "a"}}, true},
		{"负工时", []*Employee{{Name: "a", HoursPerWeek: -1}}, true},
		{"未知接替人", []*Employee{{Name: "a", NotRelievedBy: []string{"z"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmployees(tt.employees)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEmployees() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
