package services

import (
	"errors"
	"testing"

	"autopilot/internal/models"
)

func TestROICalculate(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{ID: "robot-1", MonthlyLeaseCents: 200000}

	inputs := models.ROIInputs{
		LaborRate:          20,
		Utilization:        0.8,
		MaintenanceFactor:  0.1,
		ManualMonthlySpend: 5000,
		ManualMonthlyHours: 100,
	}

	got, err := roi.Calculate(inputs, robot)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}

	tests := []struct {
		field string
		got   float64
		want  float64
	}{
		{"MonthlyLeaseCost", got.MonthlyLeaseCost, 2000},
		{"MonthlyMaintenance", got.MonthlyMaintenance, 200},
		{"MonthlyManualCost", got.MonthlyManualCost, 5000},
		{"MonthlySavings", got.MonthlySavings, 1800},
		{"AnnualSavings", got.AnnualSavings, 21600},
		{"ThreeYearNet", got.ThreeYearNet, 64800},
		{"PaybackMonths", got.PaybackMonths, 1.11},
		{"HoursFreedPerMonth", got.HoursFreedPerMonth, 80},
		{"LaborSavingsPerMonth", got.LaborSavingsPerMonth, 1600},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.field, tt.got, tt.want)
		}
	}
	if got.RobotID != "robot-1" {
		t.Errorf("RobotID = %q", got.RobotID)
	}
}

func TestROICalculateLaborEstimate(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{ID: "robot-1", MonthlyLeaseCents: 100000}

	// No explicit spend: manual cost comes from rate * hours
	inputs := models.ROIInputs{
		LaborRate:          25,
		Utilization:        1.0,
		MaintenanceFactor:  0.05,
		ManualMonthlyHours: 80,
	}

	got, err := roi.Calculate(inputs, robot)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if got.MonthlyManualCost != 2000 {
		t.Errorf("MonthlyManualCost = %v, want 2000 (25*80)", got.MonthlyManualCost)
	}
	if got.MonthlySavings != 950 {
		t.Errorf("MonthlySavings = %v, want 950 (2000 - 1000 lease - 50 maintenance)", got.MonthlySavings)
	}
}

func TestROICalculateDefaults(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{MonthlyLeaseCents: 100000}

	// Out-of-range utilization and untouched maintenance both fall back
	inputs := models.ROIInputs{ManualMonthlySpend: 3000, Utilization: 1.5}
	got, err := roi.Calculate(inputs, robot)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	// 3000*0.85 - (1000 lease + 1000*0.10 maintenance)
	if got.MonthlySavings != 1450 {
		t.Errorf("MonthlySavings = %v, want 1450", got.MonthlySavings)
	}
	if got.MonthlyMaintenance != 100 {
		t.Errorf("MonthlyMaintenance = %v, want 100 (default factor on zero input)", got.MonthlyMaintenance)
	}
}

func TestROICalculateInvalidInputs(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{MonthlyLeaseCents: 100000}

	tests := []struct {
		name   string
		inputs models.ROIInputs
	}{
		{"all zero", models.ROIInputs{}},
		{"negative spend", models.ROIInputs{ManualMonthlySpend: -1}},
		{"negative rate", models.ROIInputs{LaborRate: -5, ManualMonthlyHours: 10}},
		{"rate without hours", models.ROIInputs{LaborRate: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := roi.Calculate(tt.inputs, robot); !errors.Is(err, ErrROIInputs) {
				t.Errorf("Calculate() error = %v, want ErrROIInputs", err)
			}
		})
	}
}

func TestROINegativeSavings(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{MonthlyLeaseCents: 500000}

	inputs := models.ROIInputs{ManualMonthlySpend: 1000, Utilization: 1.0}
	got, err := roi.Calculate(inputs, robot)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if got.MonthlySavings >= 0 {
		t.Errorf("expected negative savings, got %v", got.MonthlySavings)
	}
	if got.PaybackMonths != 0 {
		t.Errorf("no payback when savings are negative, got %v", got.PaybackMonths)
	}
}

func TestDeriveROIInputs(t *testing.T) {
	tests := []struct {
		name      string
		spend     string
		duration  string
		wantSpend float64
		wantHours float64
	}{
		{"mapped bands", "$2,000 - $5,000", "2 hr", 3500, 60},
		{"low band", "<$2,000", "1 hr", 1500, 30},
		{"top band", "$10,000+", "4 hr", 12000, 120},
		{"free-text duration", "$5,000 - $10,000", "3 hr", 7500, 90},
		{"unmapped values", "a lot", "sometimes", 4330, 60},
		{"no answers", "", "", 4330, 60},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := map[string]models.DiscoveryAnswer{}
			if tt.spend != "" {
				answers["monthly_spend"] = answer("monthly_spend", tt.spend)
			}
			if tt.duration != "" {
				answers["duration"] = answer("duration", tt.duration)
			}

			got := DeriveROIInputs(answers)
			if got.ManualMonthlySpend != tt.wantSpend {
				t.Errorf("ManualMonthlySpend = %v, want %v", got.ManualMonthlySpend, tt.wantSpend)
			}
			if got.ManualMonthlyHours != tt.wantHours {
				t.Errorf("ManualMonthlyHours = %v, want %v", got.ManualMonthlyHours, tt.wantHours)
			}
			if got.LaborRate != 25 || got.Utilization != 1.0 || got.MaintenanceFactor != 0.05 {
				t.Errorf("derived defaults off: %+v", got)
			}
		})
	}
}

func TestDeriveROIInputsAlwaysCalculable(t *testing.T) {
	roi := NewROIService()
	robot := &models.Robot{ID: "robot-1", MonthlyLeaseCents: 90000}

	if _, err := roi.Calculate(DeriveROIInputs(nil), robot); err != nil {
		t.Fatalf("derived inputs must always pass validation, got %v", err)
	}
}
