package services

import (
	"testing"

	"autopilot/internal/models"
)

func TestValidateExtractedAnswers(t *testing.T) {
	raw := []models.DiscoveryAnswer{
		{QuestionID: 99, Key: "company_name", Label: "wrong label", Value: "Club A", Group: "Context"},
		{QuestionID: 2, Key: "made_up_key", Label: "x", Value: "y", Group: "Company"},
		{QuestionID: 8, Key: "sqft", Label: "Total Sq Ft", Value: "   ", Group: "Facility"},
		{QuestionID: 9, Key: "method", Label: "Cleaning Method", Value: " Vacuum ", Group: "Operations"},
	}

	validated := ValidateExtractedAnswers(raw)

	if len(validated) != 2 {
		t.Fatalf("expected 2 validated answers, got %d", len(validated))
	}
	if _, ok := validated["made_up_key"]; ok {
		t.Error("unknown keys must be dropped")
	}
	if _, ok := validated["sqft"]; ok {
		t.Error("empty values must be dropped")
	}

	// Model output cannot override the canonical question metadata
	got := validated["company_name"]
	if got.QuestionID != 1 || got.Label != "Company Name" || got.Group != models.GroupCompany {
		t.Errorf("metadata not pinned to question table: %+v", got)
	}
	if validated["method"].Value != "Vacuum" {
		t.Errorf("value should be trimmed: %q", validated["method"].Value)
	}
}

func TestValidateExtractedAnswersEmpty(t *testing.T) {
	if got := ValidateExtractedAnswers(nil); len(got) != 0 {
		t.Errorf("nil input should validate to empty map, got %d entries", len(got))
	}
}

func TestMergeROIInputs(t *testing.T) {
	rate := 22.5
	spend := 4000.0

	existing := &models.ROIInputs{
		LaborRate:          18,
		Utilization:        0.9,
		MaintenanceFactor:  0.05,
		ManualMonthlyHours: 120,
	}

	merged := mergeROIInputs(existing, &rate, &spend, nil)
	if merged == nil {
		t.Fatal("expected merged inputs")
	}
	if merged.LaborRate != 22.5 {
		t.Errorf("laborRate = %v, want 22.5", merged.LaborRate)
	}
	if merged.ManualMonthlySpend != 4000 {
		t.Errorf("manualMonthlySpend = %v, want 4000", merged.ManualMonthlySpend)
	}
	if merged.ManualMonthlyHours != 120 {
		t.Errorf("unmentioned hours should keep stored value, got %v", merged.ManualMonthlyHours)
	}
	if merged.Utilization != 0.9 || merged.MaintenanceFactor != 0.05 {
		t.Error("tuning fields must carry over")
	}
	if existing.LaborRate != 18 {
		t.Error("mergeROIInputs mutated its input")
	}
}

func TestMergeROIInputsNothingExtracted(t *testing.T) {
	if got := mergeROIInputs(&models.ROIInputs{LaborRate: 18}, nil, nil, nil); got != nil {
		t.Errorf("no extracted numbers should return nil, got %+v", got)
	}
}

func TestMergeROIInputsRejectsNonPositive(t *testing.T) {
	zero := 0.0
	neg := -5.0
	got := mergeROIInputs(nil, &zero, &neg, nil)
	if got == nil {
		t.Fatal("mentioned fields still produce a result struct")
	}
	if got.LaborRate != 0 || got.ManualMonthlySpend != 0 {
		t.Errorf("non-positive values must not be stored: %+v", got)
	}
}

func TestExtractionSchemaClosedSets(t *testing.T) {
	schema := extractionSchema()

	answers := schema["properties"].(map[string]interface{})["answers"].(map[string]interface{})
	items := answers["items"].(map[string]interface{})
	props := items["properties"].(map[string]interface{})

	keyEnum := props["key"].(map[string]interface{})["enum"].([]string)
	if len(keyEnum) != len(models.DiscoveryQuestions) {
		t.Errorf("key enum has %d entries, want %d", len(keyEnum), len(models.DiscoveryQuestions))
	}

	groupEnum := props["group"].(map[string]interface{})["enum"].([]string)
	if len(groupEnum) != len(models.ValidGroups) {
		t.Errorf("group enum has %d entries, want %d", len(groupEnum), len(models.ValidGroups))
	}
}
