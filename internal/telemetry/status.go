package telemetry

import (
	"strings"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

// Default keyword tables for the engine-status classifier. ON keywords are
// tested before OFF keywords; the first match wins.
var (
	DefaultOnKeywords = []string{
		"PTO ON", "ENGINE ON", "GENERATOR ON", "GEN ON",
		"START", "STARTED", "RUNNING", "ACTIVE",
		"POWER ON", "SWITCHED ON",
	}
	DefaultOffKeywords = []string{
		"PTO OFF", "ENGINE OFF", "GENERATOR OFF", "GEN OFF",
		"STOP", "STOPPED", "IDLE", "INACTIVE",
		"POWER OFF", "SWITCHED OFF",
	}
)

// StatusClassifier maps free-text driver/status fields to a tri-state signal.
type StatusClassifier struct {
	onKeywords  []string
	offKeywords []string
}

// NewStatusClassifier builds a classifier; empty keyword sets fall back to defaults.
func NewStatusClassifier(onKeywords, offKeywords []string) *StatusClassifier {
	if len(onKeywords) == 0 {
		onKeywords = DefaultOnKeywords
	}
	if len(offKeywords) == 0 {
		offKeywords = DefaultOffKeywords
	}
	return &StatusClassifier{onKeywords: onKeywords, offKeywords: offKeywords}
}

// Classify normalizes the text and tests substring membership against the ON
// set, then the OFF set. No match means UNKNOWN, which must cause no state
// transition downstream.
func (c *StatusClassifier) Classify(text string) models.StatusSignal {
	normalized := NormalizeStatusText(text)
	if normalized == "" {
		return models.SignalUnknown
	}
	for _, kw := range c.onKeywords {
		if strings.Contains(normalized, kw) {
			return models.SignalOn
		}
	}
	for _, kw := range c.offKeywords {
		if strings.Contains(normalized, kw) {
			return models.SignalOff
		}
	}
	return models.SignalUnknown
}

// NormalizeStatusText uppercases, collapses whitespace and trims.
func NormalizeStatusText(text string) string {
	return strings.Join(strings.Fields(strings.ToUpper(text)), " ")
}
