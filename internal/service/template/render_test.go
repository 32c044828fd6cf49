package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRender(t *testing.T) {
	vars := map[string]string{
		"firstname": "Jane",
		"dealname":  "Acme renewal",
	}

	out := Render("Hi {{firstname}}, {{dealname}} closed. {{ firstname }} again.", vars)
	assert.Equal(t, "Hi Jane, Acme renewal closed. Jane again.", out)
}

func TestRenderKeepsUnknownPlaceholders(t *testing.T) {
	out := Render("Hi {{firstname}}, your score is {{hs_score}}", map[string]string{"firstname": "Jane"})
	assert.Equal(t, "Hi Jane, your score is {{hs_score}}", out)
}

func TestExtractVariables(t *testing.T) {
	vars := ExtractVariables("{{a}} then {{b}} then {{a}} and {{deal.amount}}")
	assert.Equal(t, []string{"a", "b", "deal.amount"}, vars)

	assert.Empty(t, ExtractVariables("no placeholders here"))
}

func TestAppendMetrics(t *testing.T) {
	out := AppendMetrics("Pipeline update", []string{"Total value", "Deal count"}, map[string]string{
		"Total value": "$120.00",
		"Deal count":  "3",
	})
	assert.Equal(t, "Pipeline update\n\nTotal value: $120.00\nDeal count: 3", out)

	assert.Equal(t, "unchanged", AppendMetrics("unchanged", nil, nil))
}
