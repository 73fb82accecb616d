package browser

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSelector(t *testing.T) {
	tests := []struct {
		sel  string
		want string
	}{
		{"//div[@id='wp']", "xpath=//div[@id='wp']"},
		{"(//a[contains(@class,'checkin')])[1]", "xpath=(//a[contains(@class,'checkin')])[1]"},
		{"#loginform", "#loginform"},
		{"a.checkin-btn", "a.checkin-btn"},
		{"form input[name='username']", "form input[name='username']"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeSelector(tt.sel), "selector %q", tt.sel)
	}
}
