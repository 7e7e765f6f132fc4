package telemetry

import (
	"testing"

	"github.com/TakundaMabukwa/fuel-server-sub001/internal/models"
)

func TestClassify_Keywords(t *testing.T) {
	t.Parallel()

	c := NewStatusClassifier(nil, nil)

	cases := []struct {
		name string
		text string
		want models.StatusSignal
	}{
		{"pto on", "PTO ON", models.SignalOn},
		{"engine on lowercase", "engine on", models.SignalOn},
		{"embedded running", "Vehicle running at site", models.SignalOn},
		{"generator off", "GENERATOR OFF", models.SignalOff},
		{"stopped", "Engine stopped", models.SignalOff},
		{"idle", "idle", models.SignalOff},
		{"extra whitespace", "  pto   on  ", models.SignalOn},
		{"plain position", "NEW ROAD", models.SignalUnknown},
		{"empty", "", models.SignalUnknown},
		{"whitespace only", "   ", models.SignalUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := c.Classify(tc.text); got != tc.want {
				t.Fatalf("Classify(%q) = %v, want %v", tc.text, got, tc.want)
			}
		})
	}
}

func TestClassify_OnWinsOverOff(t *testing.T) {
	t.Parallel()

	// A text containing keywords from both sets resolves to ON because the ON
	// set is tested first.
	c := NewStatusClassifier(nil, nil)
	if got := c.Classify("ENGINE ON after stop"); got != models.SignalOn {
		t.Fatalf("expected ON, got %v", got)
	}
}

func TestClassify_CustomKeywords(t *testing.T) {
	t.Parallel()

	c := NewStatusClassifier([]string{"WORK BEGIN"}, []string{"WORK END"})
	if got := c.Classify("work begin"); got != models.SignalOn {
		t.Fatalf("expected ON for custom keyword, got %v", got)
	}
	if got := c.Classify("ENGINE ON"); got != models.SignalUnknown {
		t.Fatalf("default keyword should not match custom set, got %v", got)
	}
}

func TestNormalizeStatusText(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"  pto   on ", "PTO ON"},
		{"Engine\tOn", "ENGINE ON"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := NormalizeStatusText(tc.in); got != tc.want {
			t.Fatalf("NormalizeStatusText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
