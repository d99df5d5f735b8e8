package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/nstogner/butler/pkg/domain"
	"github.com/nstogner/butler/pkg/metrics"
)

// Overall sentiment values.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	positiveWords = []string{"good", "great", "excellent", "amazing", "delicious", "tasty", "perfect", "love"}
	negativeWords = []string{"bad", "terrible", "poor", "awful", "horrible", "disgusting", "worst", "hate"}

	themeWords = []struct {
		theme string
		words []string
	}{
		{"taste", []string{"taste", "flavor"}},
		{"service", []string{"service", "staff"}},
		{"delivery", []string{"delivery", "time"}},
		{"packaging", []string{"pack", "container"}},
		{"value", []string{"price", "value", "worth"}},
	}
)

// Sentiment counts reviews by polarity.
type Sentiment struct {
	Positive int    `json:"positive"`
	Negative int    `json:"negative"`
	Neutral  int    `json:"neutral"`
	Overall  string `json:"overall"`
}

// ReviewAnalysis summarises a set of reviews.
type ReviewAnalysis struct {
	Sentiment     Sentiment      `json:"sentiment"`
	Themes        map[string]int `json:"themes"`
	TotalReviews  int            `json:"totalReviews"`
	AverageRating float64        `json:"averageRating"`
}

// ReviewReport is the outcome of AggregateReviews.
type ReviewReport struct {
	Restaurant string            `json:"restaurant"`
	Platform   domain.PlatformID `json:"platform"`
	Dish       string            `json:"dish,omitempty"`
	Reviews    []domain.Review   `json:"reviews"`
	Analysis   ReviewAnalysis    `json:"analysis"`
}

// AggregateReviews fetches the reviews of restaurant and analyses them.
func (o *Orchestrator) AggregateReviews(ctx context.Context, restaurant string, id domain.PlatformID, dish string) (ReviewReport, error) {
	a, err := o.registry.Get(id)
	if err != nil {
		return ReviewReport{}, err
	}
	reviews, err := a.Reviews(ctx, restaurant)
	metrics.RecordPlatformRequest(string(id), "reviews", err)
	if err != nil {
		return ReviewReport{}, fmt.Errorf("fetching reviews for %q on %s: %w", restaurant, id, err)
	}
	if dish != "" {
		reviews = mentioning(reviews, dish)
	}
	return ReviewReport{
		Restaurant: restaurant,
		Platform:   id,
		Dish:       dish,
		Reviews:    reviews,
		Analysis:   AnalyzeReviews(reviews),
	}, nil
}

func mentioning(reviews []domain.Review, dish string) []domain.Review {
	dish = strings.ToLower(dish)
	out := []domain.Review{}
	for _, r := range reviews {
		if strings.Contains(strings.ToLower(r.Text), dish) {
			out = append(out, r)
		}
	}
	return out
}

// AnalyzeReviews applies the keyword heuristics to reviews. A review is
// positive or negative when one keyword count is strictly larger, otherwise
// neutral. Themes are counted independently of each other.
func AnalyzeReviews(reviews []domain.Review) ReviewAnalysis {
	out := ReviewAnalysis{
		Themes:       map[string]int{},
		TotalReviews: len(reviews),
	}
	for _, t := range themeWords {
		out.Themes[t.theme] = 0
	}

	var ratingSum float64
	var rated int
	for _, r := range reviews {
		text := strings.ToLower(r.Text)
		pos, neg := countWords(text, positiveWords), countWords(text, negativeWords)
		switch {
		case pos > neg:
			out.Sentiment.Positive++
		case neg > pos:
			out.Sentiment.Negative++
		default:
			out.Sentiment.Neutral++
		}

		for _, t := range themeWords {
			if countWords(text, t.words) > 0 {
				out.Themes[t.theme]++
			}
		}

		if r.Rating > 0 {
			ratingSum += r.Rating
			rated++
		}
	}

	switch {
	case out.Sentiment.Positive > out.Sentiment.Negative:
		out.Sentiment.Overall = SentimentPositive
	case out.Sentiment.Negative > out.Sentiment.Positive:
		out.Sentiment.Overall = SentimentNegative
	default:
		out.Sentiment.Overall = SentimentNeutral
	}
	if rated > 0 {
		out.AverageRating = math.Round(ratingSum/float64(rated)*10) / 10
	}
	return out
}

// countWords returns how many of words occur in text.
func countWords(text string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			n++
		}
	}
	return n
}
