package services

import (
	"testing"

	"autopilot/internal/models"
)

func courtRobot() *models.Robot {
	return &models.Robot{
		ID:                "robot-court",
		Name:              "CourtSweep Pro",
		Category:          "Court Cleaning",
		Description:       "Purpose-built for indoor sports courts",
		Surfaces:          []string{"Cushioned Acrylic", "Hardwood"},
		Modes:             []string{"Vacuum", "Dry Mop"},
		CoverageSqftPerHr: 12000,
		MonthlyLeaseCents: 120000,
	}
}

func genericRobot() *models.Robot {
	return &models.Robot{
		ID:                "robot-generic",
		Name:              "FloorBot",
		Category:          "General",
		Modes:             []string{"Sweep"},
		CoverageSqftPerHr: 4000,
		MonthlyLeaseCents: 80000,
	}
}

func clubAnswers() map[string]models.DiscoveryAnswer {
	return map[string]models.DiscoveryAnswer{
		"company_type":  answer("company_type", "Pickleball Club"),
		"method":        answer("method", "Vacuum and mop"),
		"monthly_spend": answer("monthly_spend", "$2,000 - $5,000"),
	}
}

func TestScoreRobotFacilityAndMethod(t *testing.T) {
	score, reasons := scoreRobot(courtRobot(), clubAnswers())

	// 50 base + 25 facility + 20 method + 15 budget + 10 coverage, capped
	if score != 100 {
		t.Errorf("score = %v, want 100 (capped)", score)
	}
	if len(reasons) != 4 {
		t.Fatalf("expected 4 reasons, got %v", reasons)
	}
	if reasons[0].Factor != "Facility Match" {
		t.Errorf("first reason = %q, want Facility Match", reasons[0].Factor)
	}
}

func TestScoreRobotRanksCourtAboveGeneric(t *testing.T) {
	answers := clubAnswers()
	courtScore, _ := scoreRobot(courtRobot(), answers)
	genericScore, _ := scoreRobot(genericRobot(), answers)

	if courtScore <= genericScore {
		t.Errorf("court robot (%v) should outrank generic robot (%v) for a club", courtScore, genericScore)
	}
}

func TestScoreRobotNoAnswers(t *testing.T) {
	score, reasons := scoreRobot(genericRobot(), nil)
	if score != 50 {
		t.Errorf("score = %v, want the 50 base with nothing to match", score)
	}
	if len(reasons) != 0 {
		t.Errorf("no answers should yield no reasons, got %v", reasons)
	}
}

func TestScoreRobotBudgetBands(t *testing.T) {
	answers := map[string]models.DiscoveryAnswer{
		"monthly_spend": answer("monthly_spend", "$2,000 - $5,000"),
	}

	tests := []struct {
		name       string
		leaseCents int64
		wantBonus  float64
	}{
		{"well under budget", 150000, 15},  // $1,500 <= $1,750
		{"within budget", 300000, 10},      // $3,000 <= $3,500
		{"slightly over", 500000, 5},       // $5,000 <= $5,250
		{"far over budget", 700000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			robot := &models.Robot{ID: "r", MonthlyLeaseCents: tt.leaseCents}
			score, _ := scoreRobot(robot, answers)
			if got := score - 50; got != tt.wantBonus {
				t.Errorf("budget bonus = %v, want %v", got, tt.wantBonus)
			}
		})
	}
}

func TestRecommendationLabel(t *testing.T) {
	cheap := &models.Robot{MonthlyLeaseCents: 80000}   // $800
	premium := &models.Robot{MonthlyLeaseCents: 150000} // $1,500

	tests := []struct {
		name  string
		rank  int
		score float64
		robot *models.Robot
		want  string
	}{
		{"top pick", 1, 90, premium, LabelRecommended},
		{"cheap runner-up", 2, 70, cheap, LabelBestValue},
		{"premium contender", 2, 75, premium, LabelUpgrade},
		{"weak runner-up", 2, 40, cheap, LabelAlternative},
		{"third place premium", 3, 80, premium, LabelUpgrade},
		{"third place cheap", 3, 80, cheap, LabelAlternative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recommendationLabel(tt.rank, tt.score, tt.robot); got != tt.want {
				t.Errorf("recommendationLabel(%d, %v) = %q, want %q", tt.rank, tt.score, got, tt.want)
			}
		})
	}
}

func TestDiscoveryContextFollowsFlowOrder(t *testing.T) {
	answers := map[string]models.DiscoveryAnswer{
		"method":       answer("method", "Vacuum"),
		"company_name": answer("company_name", "Club A"),
	}

	got := discoveryContext(answers)
	want := "Company Name: Club A. Cleaning Method: Vacuum"
	if got != want {
		t.Errorf("discoveryContext() = %q, want %q", got, want)
	}
}

func TestRecommendationCacheKey(t *testing.T) {
	a := clubAnswers()
	b := clubAnswers()

	if recommendationCacheKey(a, nil, 3) != recommendationCacheKey(b, nil, 3) {
		t.Error("identical requests must share a cache key")
	}
	if recommendationCacheKey(a, nil, 3) == recommendationCacheKey(a, nil, 5) {
		t.Error("different topK must not share a cache key")
	}
	inputs := &models.ROIInputs{ManualMonthlySpend: 1000}
	if recommendationCacheKey(a, nil, 3) == recommendationCacheKey(a, inputs, 3) {
		t.Error("different inputs must not share a cache key")
	}
}
