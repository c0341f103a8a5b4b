package reasoner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Action     string  `json:"action" validate:"required,oneof=ask stop"`
	Confidence float64 `json:"confidence" validate:"gte=0,lte=1"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		in   string
		ok   bool
	}{
		{"plain", `{"action":"ask","confidence":0.4}`, true},
		{"fenced", "```json\n{\"action\":\"stop\",\"confidence\":1}\n```", true},
		{"prose around", `Sure! {"action":"ask","confidence":0.2} hope that helps`, true},
		{"not json", "I think we should ask about founders", false},
		{"bad enum", `{"action":"dance","confidence":0.5}`, false},
		{"out of range", `{"action":"ask","confidence":1.5}`, false},
		{"missing action", `{"confidence":0.5}`, false},
		{"truncated", `{"action":"ask",`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s sample
			err := Decode(tt.in, &s)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, KindMalformed, kind)
		})
	}
}
