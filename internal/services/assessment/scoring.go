package services

import (
	"fmt"
	"math"

	"github.com/healthmap/healthmap-api/internal/models"
)

// DefaultScaleMax — верхняя граница шкалы для вопросов без вариантов ответа.
const DefaultScaleMax = 10

// Пороги уровней в процентах.
const (
	mediumThreshold = 40
	highThreshold   = 70
)

// DimensionScore — итог по одному измерению.
type DimensionScore struct {
	DimensionID  string
	Name         string
	DisplayOrder int
	Score        int
	Max          int
	Percentage   int
	Level        models.Level
}

// Scorecard — итог по всей попытке.
type Scorecard struct {
	Dimensions []DimensionScore
	Total      int
}

// Score считает баллы по ответам. Учитываются только отвеченные вопросы:
// балл вопроса равен значению ответа, умноженному на вес, максимум равен
// наибольшему значению варианта (для шкалы без вариантов DefaultScaleMax,
// для да/нет 1), умноженному на вес. Вопросы без измерения входят только
// в общий балл.
func Score(a *models.Assessment, responses []models.UserResponse) Scorecard {
	byQuestion := make(map[string]models.UserResponse, len(responses))
	for _, r := range responses {
		byQuestion[r.QuestionID] = r
	}

	type acc struct{ score, max int }
	perDimension := make(map[string]*acc, len(a.Dimensions))
	for _, d := range a.Dimensions {
		perDimension[d.ID] = &acc{}
	}

	var card Scorecard
	for _, q := range a.Questions {
		r, ok := byQuestion[q.ID]
		if !ok {
			continue
		}
		value, ok := responseValue(q, r)
		if !ok {
			continue
		}

		points := value * q.Weight
		card.Total += points

		if q.DimensionID == nil {
			continue
		}
		d, ok := perDimension[*q.DimensionID]
		if !ok {
			continue
		}
		d.score += points
		d.max += questionMax(q, value) * q.Weight
	}

	for _, dim := range a.Dimensions {
		d := perDimension[dim.ID]
		pct := Percentage(d.score, d.max)
		card.Dimensions = append(card.Dimensions, DimensionScore{
			DimensionID:  dim.ID,
			Name:         dim.Name,
			DisplayOrder: dim.DisplayOrder,
			Score:        d.score,
			Max:          d.max,
			Percentage:   pct,
			Level:        LevelFor(pct),
		})
	}
	return card
}

// Percentage возвращает round(score/max*100) в пределах 0..100; 0 при max = 0.
func Percentage(score, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	pct := int(math.Round(float64(score) * 100 / float64(maxScore)))
	return min(max(pct, 0), 100)
}

// LevelFor переводит процент в уровень.
func LevelFor(percentage int) models.Level {
	switch {
	case percentage >= highThreshold:
		return models.LevelHigh
	case percentage >= mediumThreshold:
		return models.LevelMedium
	default:
		return models.LevelLow
	}
}

// Interpret возвращает текст интерпретации и рекомендации для уровня.
func Interpret(dimension string, level models.Level) (string, string) {
	switch level {
	case models.LevelHigh:
		return fmt.Sprintf("Your %s is in a strong place.", dimension),
			fmt.Sprintf("Keep up the habits that support your %s.", dimension)
	case models.LevelMedium:
		return fmt.Sprintf("Your %s is moderate, with room to improve.", dimension),
			fmt.Sprintf("Pick one small, consistent change to strengthen your %s.", dimension)
	default:
		return fmt.Sprintf("Your %s needs attention.", dimension),
			fmt.Sprintf("Consider discussing your %s with a health professional.", dimension)
	}
}

func responseValue(q models.AssessmentQuestion, r models.UserResponse) (int, bool) {
	if r.ResponseValue != nil {
		return *r.ResponseValue, true
	}
	if r.OptionID != nil {
		for _, o := range q.Options {
			if o.ID == *r.OptionID {
				return o.OptionValue, true
			}
		}
	}
	return 0, false
}

func questionMax(q models.AssessmentQuestion, answered int) int {
	if len(q.Options) > 0 {
		best := q.Options[0].OptionValue
		for _, o := range q.Options[1:] {
			best = max(best, o.OptionValue)
		}
		return max(best, answered)
	}
	if q.QuestionType == models.QuestionTypeBoolean {
		return 1
	}
	return max(DefaultScaleMax, answered)
}
