package entity

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestElementDescriptor_String(t *testing.T) {
	d := ElementDescriptor{Label: 3, Kind: "button", Text: "Add to Cart"}
	assert.Equal(t, `[3] BUTTON - "Add to Cart"`, d.String())
}

func TestElementDescriptor_StringTruncatesByRune(t *testing.T) {
	d := ElementDescriptor{Label: 1, Kind: "a", Text: strings.Repeat("ü", 60)}

	s := d.String()
	assert.True(t, utf8.ValidString(s))
	assert.Equal(t, `[1] A - "`+strings.Repeat("ü", 50)+`"`, s)
}
