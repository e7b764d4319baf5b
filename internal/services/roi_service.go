package services

import (
	"errors"
	"strconv"
	"strings"

	"autopilot/internal/models"
)

// ROI errors
var ErrROIInputs = errors.New("invalid roi inputs")

// Fallbacks when the user has not tuned the advanced inputs.
const (
	defaultUtilization       = 0.85
	defaultMaintenanceFactor = 0.10
)

// ROIProjection is the computed business case for one robot.
type ROIProjection struct {
	RobotID               string  `json:"robot_id"`
	MonthlyLeaseCost      float64 `json:"monthly_lease_cost"`
	MonthlyMaintenance    float64 `json:"monthly_maintenance"`
	MonthlyManualCost     float64 `json:"monthly_manual_cost"`
	MonthlySavings        float64 `json:"monthly_savings"`
	AnnualSavings         float64 `json:"annual_savings"`
	PaybackMonths         float64 `json:"payback_months"`
	ThreeYearNet          float64 `json:"three_year_net"`
	HoursFreedPerMonth    float64 `json:"hours_freed_per_month"`
	LaborSavingsPerMonth  float64 `json:"labor_savings_per_month"`
}

// ROIService computes lease-vs-manual economics. Pure math, no storage.
type ROIService struct{}

// NewROIService creates a new ROI service
func NewROIService() *ROIService {
	return &ROIService{}
}

// Calculate projects savings for leasing the given robot against the user's
// current manual cleaning spend.
func (s *ROIService) Calculate(inputs models.ROIInputs, robot *models.Robot) (*ROIProjection, error) {
	if inputs.ManualMonthlySpend < 0 || inputs.ManualMonthlyHours < 0 || inputs.LaborRate < 0 {
		return nil, ErrROIInputs
	}
	if inputs.ManualMonthlySpend == 0 && (inputs.LaborRate == 0 || inputs.ManualMonthlyHours == 0) {
		return nil, ErrROIInputs
	}

	utilization := inputs.Utilization
	if utilization <= 0 || utilization > 1 {
		utilization = defaultUtilization
	}
	maintenance := inputs.MaintenanceFactor
	if maintenance <= 0 {
		maintenance = defaultMaintenanceFactor
	}

	lease := float64(robot.MonthlyLeaseCents) / 100
	maintenanceCost := lease * maintenance
	robotCost := lease + maintenanceCost

	// Manual cost: explicit spend wins, labor estimate fills the gap
	manualCost := inputs.ManualMonthlySpend
	if manualCost == 0 {
		manualCost = inputs.LaborRate * inputs.ManualMonthlyHours
	}

	// The robot covers utilization% of the manual workload
	displaced := manualCost * utilization
	monthlySavings := displaced - robotCost

	hoursFreed := inputs.ManualMonthlyHours * utilization
	laborSavings := hoursFreed * inputs.LaborRate

	paybackMonths := 0.0
	if monthlySavings > 0 {
		// First month's lease is the outlay to recover
		paybackMonths = lease / monthlySavings
	}

	return &ROIProjection{
		RobotID:              robot.ID,
		MonthlyLeaseCost:     round2(lease),
		MonthlyMaintenance:   round2(maintenanceCost),
		MonthlyManualCost:    round2(manualCost),
		MonthlySavings:       round2(monthlySavings),
		AnnualSavings:        round2(monthlySavings * 12),
		PaybackMonths:        round2(paybackMonths),
		ThreeYearNet:         round2(monthlySavings * 36),
		HoursFreedPerMonth:   round2(hoursFreed),
		LaborSavingsPerMonth: round2(laborSavings),
	}, nil
}

// spendBands maps the monthly_spend answer choices to a dollar midpoint.
var spendBands = map[string]float64{
	"<$2,000":          1500,
	"$2,000 - $5,000":  3500,
	"$5,000 - $10,000": 7500,
	"$10,000+":         12000,
}

// durationBands maps the duration answer choices to monthly cleaning hours.
var durationBands = map[string]float64{
	"1 hr":  30,
	"2 hr":  60,
	"4 hr":  120,
	"Other": 60,
}

// Fallbacks when the answers do not pin down spend or hours.
const (
	derivedFallbackSpend = 4330.0
	derivedFallbackHours = 60.0
	derivedLaborRate     = 25.0
)

// DeriveROIInputs builds usable ROI inputs from discovery answers alone, for
// callers that never filled in the advanced inputs.
func DeriveROIInputs(answers map[string]models.DiscoveryAnswer) models.ROIInputs {
	spend := derivedFallbackSpend
	if raw := answers["monthly_spend"].Value; raw != "" {
		if mapped, ok := spendBands[raw]; ok {
			spend = mapped
		}
	}

	hours := derivedFallbackHours
	if raw := answers["duration"].Value; raw != "" {
		if mapped, ok := durationBands[raw]; ok {
			hours = mapped
		} else if fields := strings.Fields(raw); len(fields) > 0 {
			// Free-text like "3 hr": treat the number as hours per day
			if perDay, err := strconv.ParseFloat(fields[0], 64); err == nil && perDay > 0 {
				hours = perDay * 30
			}
		}
	}

	return models.ROIInputs{
		LaborRate:          derivedLaborRate,
		Utilization:        1.0,
		MaintenanceFactor:  0.05,
		ManualMonthlySpend: spend,
		ManualMonthlyHours: hours,
	}
}

func round2(v float64) float64 {
	if v < 0 {
		return float64(int64(v*100-0.5)) / 100
	}
	return float64(int64(v*100+0.5)) / 100
}
