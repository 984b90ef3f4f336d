package learner

import (
	"errors"
	"fmt"
	"math"
)

// Sentiment is the audience reaction label attached to a metric submission.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// ErrInvalidMetrics is returned for malformed metric submissions.
var ErrInvalidMetrics = errors.New("invalid metrics")

// Metrics is one post-publication measurement of an artifact.
type Metrics struct {
	Reach       int       `json:"reach"`
	Likes       int       `json:"likes"`
	Comments    int       `json:"comments"`
	Shares      int       `json:"shares"`
	Conversions int       `json:"conversions"`
	Sentiment   Sentiment `json:"sentiment"`
}

// Validate rejects negative counts and unknown sentiment labels. An empty
// label is read as neutral.
func (m *Metrics) Validate() error {
	if m.Reach < 0 || m.Likes < 0 || m.Comments < 0 || m.Shares < 0 || m.Conversions < 0 {
		return fmt.Errorf("%w: counts must be non-negative", ErrInvalidMetrics)
	}
	switch m.Sentiment {
	case "":
		m.Sentiment = SentimentNeutral
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("%w: unknown sentiment %q", ErrInvalidMetrics, m.Sentiment)
	}
	return nil
}

// Score weights.
const (
	weightEngagement  = 0.3
	weightReach       = 0.2
	weightConversions = 0.3
	weightSentiment   = 0.2

	// reachCap and conversionCap are the counts at which those terms saturate.
	reachCap      = 10000.0
	conversionCap = 100.0
)

// EngagementRate is (likes + 2*comments + 3*shares) / reach, capped at 1.
// Zero reach has zero engagement.
func EngagementRate(m Metrics) float64 {
	if m.Reach <= 0 {
		return 0
	}
	weighted := float64(m.Likes + 2*m.Comments + 3*m.Shares)
	return math.Min(weighted/float64(m.Reach), 1)
}

func sentimentValue(s Sentiment) float64 {
	switch s {
	case SentimentPositive:
		return 1
	case SentimentNegative:
		return 0
	default:
		return 0.5
	}
}

// Score computes the composite performance score in [0, 1], rounded to two
// decimals.
func Score(m Metrics) float64 {
	s := weightEngagement*EngagementRate(m) +
		weightReach*math.Min(float64(m.Reach)/reachCap, 1) +
		weightConversions*math.Min(float64(m.Conversions)/conversionCap, 1) +
		weightSentiment*sentimentValue(m.Sentiment)
	return math.Round(s*100) / 100
}
