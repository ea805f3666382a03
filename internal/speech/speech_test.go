package speech

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "  ", nil},
		{"single without punctuation", "hej där", []string{"hej där"}},
		{"several", "Hej! Hur mår du? Jag mår bra.", []string{"Hej!", "Hur mår du?", "Jag mår bra."}},
		{"newlines", "Coolt.\nT-rex är klassisk.", []string{"Coolt.", "T-rex är klassisk."}},
		{"decimal stays", "Det är 3.5 meter. Långt!", []string{"Det är 3.5 meter.", "Långt!"}},
		{"ellipsis", "Hmm... Kanske?!", []string{"Hmm...", "Kanske?!"}},
		{"trailing fragment", "Ja. och sen", []string{"Ja.", "och sen"}},
		{"full width", "好！真的？", []string{"好！", "真的？"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sentences(tt.in))
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		in     string
		ok     bool
		reason string
	}{
		{"", false, ReasonEmpty},
		{"   ", false, ReasonEmpty},
		{"Hmm", false, ReasonNoise},
		{" tack för att du tittade. ", false, ReasonNoise},
		{"[musik]", false, ReasonNoise},
		{"dinosaurier", false, ReasonTooShort},
		{"vad ser du", true, ""},
	}
	for _, tt := range tests {
		ok, reason := Validate(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.reason, reason, tt.in)
	}
}
