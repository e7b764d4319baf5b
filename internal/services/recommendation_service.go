package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"autopilot/internal/models"
)

// Recommendation labels shown next to ranked robots.
const (
	LabelRecommended = "RECOMMENDED"
	LabelBestValue   = "BEST VALUE"
	LabelUpgrade     = "UPGRADE"
	LabelAlternative = "ALTERNATIVE"
)

const defaultRecommendationCount = 3

// RecommendationReason explains one scoring factor.
type RecommendationReason struct {
	Factor      string  `json:"factor"`
	Explanation string  `json:"explanation"`
	ScoreImpact float64 `json:"score_impact"`
}

// RobotRecommendation is one ranked catalog entry with its business case.
type RobotRecommendation struct {
	Rank       int                    `json:"rank"`
	Robot      models.Robot           `json:"robot"`
	MatchScore float64                `json:"match_score"`
	Label      string                 `json:"label"`
	Summary    string                 `json:"summary"`
	Reasons    []RecommendationReason `json:"reasons"`
	ROI        *ROIProjection         `json:"roi,omitempty"`
}

// RecommendationOption is a below-the-fold alternative.
type RecommendationOption struct {
	RobotID           string  `json:"robot_id"`
	Name              string  `json:"name"`
	MatchScore        float64 `json:"match_score"`
	MonthlyLeaseCents int64   `json:"monthly_lease_cents"`
}

// RecommendationsResponse is the full ranked answer.
type RecommendationsResponse struct {
	Recommendations []RobotRecommendation  `json:"recommendations"`
	OtherOptions    []RecommendationOption `json:"other_options"`
	Inputs          models.ROIInputs       `json:"inputs"`
}

// RecommendationService ranks catalog robots against a caller's discovery
// answers. Scoring is deterministic; semantic search, when available, adds a
// relevance bonus on top. Responses are cached since the same answer set
// asks the same question.
type RecommendationService struct {
	robots *RobotService
	roi    *ROIService
	rag    *RAGService
	cache  *cache.Cache
}

// NewRecommendationService creates a new recommendation service
func NewRecommendationService(robots *RobotService, roi *ROIService, rag *RAGService) *RecommendationService {
	return &RecommendationService{
		robots: robots,
		roi:    roi,
		rag:    rag,
		cache:  cache.New(1*time.Hour, 10*time.Minute),
	}
}

// Recommend scores every active robot against the answers and returns the
// top K with ROI projections, plus the rest as brief alternatives. Nil
// inputs are derived from the answers.
func (s *RecommendationService) Recommend(ctx context.Context, answers map[string]models.DiscoveryAnswer, inputs *models.ROIInputs, topK int) (*RecommendationsResponse, error) {
	if topK <= 0 {
		topK = defaultRecommendationCount
	}

	key := recommendationCacheKey(answers, inputs, topK)
	if cached, found := s.cache.Get(key); found {
		resp := cached.(RecommendationsResponse)
		return &resp, nil
	}

	robots, err := s.robots.List(ctx, RobotFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog for recommendations: %w", err)
	}
	if len(robots) == 0 {
		return &RecommendationsResponse{Recommendations: []RobotRecommendation{}, OtherOptions: []RecommendationOption{}}, nil
	}

	resolvedInputs := DeriveROIInputs(answers)
	if inputs != nil {
		resolvedInputs = *inputs
	}

	semanticBonus := s.semanticBonuses(ctx, answers, len(robots))

	type scored struct {
		robot   models.Robot
		score   float64
		reasons []RecommendationReason
	}
	ranked := make([]scored, 0, len(robots))
	for _, robot := range robots {
		score, reasons := scoreRobot(&robot, answers)
		if bonus, ok := semanticBonus[robot.ID]; ok && bonus > 0 {
			score += bonus
			reasons = append(reasons, RecommendationReason{
				Factor:      "Relevance",
				Explanation: "Strong match for your described needs",
				ScoreImpact: round2(bonus),
			})
		}
		if score > 100 {
			score = 100
		}
		ranked = append(ranked, scored{robot: robot, score: score, reasons: reasons})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	resp := RecommendationsResponse{
		Recommendations: []RobotRecommendation{},
		OtherOptions:    []RecommendationOption{},
		Inputs:          resolvedInputs,
	}

	for i, entry := range ranked {
		if i < topK {
			rank := i + 1
			rec := RobotRecommendation{
				Rank:       rank,
				Robot:      entry.robot,
				MatchScore: round2(entry.score),
				Label:      recommendationLabel(rank, entry.score, &entry.robot),
				Summary:    recommendationSummary(&entry.robot, entry.reasons),
				Reasons:    entry.reasons,
			}
			if projection, err := s.roi.Calculate(resolvedInputs, &entry.robot); err == nil {
				rec.ROI = projection
			} else {
				log.Printf("⚠️  Skipping ROI projection for robot %s: %v", entry.robot.ID, err)
			}
			resp.Recommendations = append(resp.Recommendations, rec)
			continue
		}
		resp.OtherOptions = append(resp.OtherOptions, RecommendationOption{
			RobotID:           entry.robot.ID,
			Name:              entry.robot.Name,
			MatchScore:        round2(entry.score),
			MonthlyLeaseCents: entry.robot.MonthlyLeaseCents,
		})
	}

	s.cache.Set(key, resp, cache.DefaultExpiration)
	return &resp, nil
}

// semanticBonuses turns vector relevance into up to 10 extra points per
// robot. Search being down just means no bonus.
func (s *RecommendationService) semanticBonuses(ctx context.Context, answers map[string]models.DiscoveryAnswer, topK int) map[string]float64 {
	if s.rag == nil || !s.rag.Enabled() {
		return nil
	}
	query := discoveryContext(answers)
	if query == "" {
		return nil
	}

	matches, err := s.rag.Search(ctx, query, topK, "", "")
	if err != nil {
		log.Printf("⚠️  Semantic ranking unavailable for recommendations: %v", err)
		return nil
	}

	bonuses := make(map[string]float64, len(matches))
	for _, m := range matches {
		bonuses[m.RobotID] = m.Score * 10
	}
	return bonuses
}

// discoveryContext flattens answers into a search query in flow order.
func discoveryContext(answers map[string]models.DiscoveryAnswer) string {
	parts := make([]string, 0, len(answers))
	for _, q := range models.DiscoveryQuestions {
		if a, ok := answers[q.Key]; ok && a.Value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", q.Label, a.Value))
		}
	}
	return strings.Join(parts, ". ")
}

func answerValue(answers map[string]models.DiscoveryAnswer, key string) string {
	return strings.ToLower(answers[key].Value)
}

func containsAny(haystack string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

func anyFieldContains(fields []string, needles ...string) bool {
	for _, f := range fields {
		if containsAny(strings.ToLower(f), needles...) {
			return true
		}
	}
	return false
}

// scoreRobot rates how well one robot fits the answers, 0-100 from a base of
// 50. Factors: facility type, cleaning method, budget fit, coverage.
func scoreRobot(robot *models.Robot, answers map[string]models.DiscoveryAnswer) (float64, []RecommendationReason) {
	score := 50.0
	reasons := []RecommendationReason{}

	companyType := answerValue(answers, "company_type")
	method := answerValue(answers, "method")
	monthlySpend := answers["monthly_spend"].Value

	category := strings.ToLower(robot.Category)
	description := strings.ToLower(robot.Description)

	// Facility type
	switch {
	case containsAny(companyType, "club", "pickleball", "tennis"):
		if containsAny(category, "court", "sport") || containsAny(description, "court", "sport") {
			score += 25
			reasons = append(reasons, RecommendationReason{
				Factor:      "Facility Match",
				Explanation: "Optimized for sports court cleaning",
				ScoreImpact: 25,
			})
		} else if anyFieldContains(robot.Surfaces, "court", "cushion", "acrylic") {
			score += 20
			reasons = append(reasons, RecommendationReason{
				Factor:      "Surface Compatibility",
				Explanation: "Supports sports court surfaces",
				ScoreImpact: 20,
			})
		}
	case containsAny(companyType, "restaurant", "retail"):
		if containsAny(category, "compact", "all-in-one") {
			score += 20
			reasons = append(reasons, RecommendationReason{
				Factor:      "Facility Match",
				Explanation: "Compact design ideal for commercial spaces",
				ScoreImpact: 20,
			})
		}
	case containsAny(companyType, "warehouse", "datacenter"):
		if containsAny(category, "enterprise", "industrial") || containsAny(description, "industrial") {
			score += 25
			reasons = append(reasons, RecommendationReason{
				Factor:      "Facility Match",
				Explanation: "Industrial-grade cleaning capacity",
				ScoreImpact: 25,
			})
		}
	}

	// Cleaning method
	switch {
	case strings.Contains(method, "mop") && anyFieldContains(robot.Modes, "mop", "scrub"):
		score += 20
		reasons = append(reasons, RecommendationReason{
			Factor:      "Cleaning Method",
			Explanation: "Supports wet cleaning and mopping",
			ScoreImpact: 20,
		})
	case strings.Contains(method, "vacuum") && anyFieldContains(robot.Modes, "vacuum"):
		score += 20
		reasons = append(reasons, RecommendationReason{
			Factor:      "Cleaning Method",
			Explanation: "Powerful vacuum capability",
			ScoreImpact: 20,
		})
	case strings.Contains(method, "sweep") && anyFieldContains(robot.Modes, "sweep"):
		score += 15
		reasons = append(reasons, RecommendationReason{
			Factor:      "Cleaning Method",
			Explanation: "Effective sweeping mode",
			ScoreImpact: 15,
		})
	}

	// Budget fit against the spend band midpoint
	if budgetMid, ok := spendBands[monthlySpend]; ok {
		lease := float64(robot.MonthlyLeaseCents) / 100
		switch {
		case lease <= budgetMid*0.5:
			score += 15
			reasons = append(reasons, RecommendationReason{
				Factor:      "Budget Fit",
				Explanation: "Excellent value within your budget",
				ScoreImpact: 15,
			})
		case lease <= budgetMid:
			score += 10
			reasons = append(reasons, RecommendationReason{
				Factor:      "Budget Fit",
				Explanation: "Fits within your current spend",
				ScoreImpact: 10,
			})
		case lease <= budgetMid*1.5:
			score += 5
			reasons = append(reasons, RecommendationReason{
				Factor:      "Budget Consideration",
				Explanation: "Premium option with higher capabilities",
				ScoreImpact: 5,
			})
		}
	}

	// Coverage bonus for high-throughput machines
	if robot.CoverageSqftPerHr >= 10000 {
		score += 10
		reasons = append(reasons, RecommendationReason{
			Factor:      "Efficiency",
			Explanation: "High coverage rate frees more hours",
			ScoreImpact: 10,
		})
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score, reasons
}

// recommendationLabel picks the display label for a ranked robot.
func recommendationLabel(rank int, score float64, robot *models.Robot) string {
	if rank == 1 {
		return LabelRecommended
	}
	lease := float64(robot.MonthlyLeaseCents) / 100
	if rank == 2 && lease < 1000 && score >= 60 {
		return LabelBestValue
	}
	if lease >= 1200 && score >= 70 {
		return LabelUpgrade
	}
	return LabelAlternative
}

func recommendationSummary(robot *models.Robot, reasons []RecommendationReason) string {
	if len(reasons) == 0 {
		return fmt.Sprintf("%s is a solid general-purpose fit for your facility.", robot.Name)
	}
	return fmt.Sprintf("%s: %s.", robot.Name, strings.TrimSuffix(reasons[0].Explanation, "."))
}

// recommendationCacheKey hashes the request so identical answer sets share a
// cached response.
func recommendationCacheKey(answers map[string]models.DiscoveryAnswer, inputs *models.ROIInputs, topK int) string {
	payload := struct {
		Answers map[string]models.DiscoveryAnswer `json:"answers"`
		Inputs  *models.ROIInputs                 `json:"inputs"`
		TopK    int                               `json:"top_k"`
	}{answers, inputs, topK}

	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return "recommendations:" + hex.EncodeToString(sum[:])
}
