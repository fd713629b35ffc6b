// Copyright © 2026 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagValidators(t *testing.T) {
	tests := []struct {
		name       string
		value      string
		validators []FlagValidatorType
		wantErr    bool
	}{
		{"jammed", "--origin", []FlagValidatorType{JammedFlagValidator}, true},
		{"not jammed", "-x", []FlagValidatorType{JammedFlagValidator}, false},
		{"output ok", "yaml", []FlagValidatorType{OutputValidator}, false},
		{"output bad", "raw", []FlagValidatorType{OutputValidator}, true},
		{"store ok", "s3", []FlagValidatorType{StoreValidator}, false},
		{"store bad", "redis", []FlagValidatorType{StoreValidator}, true},
		{"origin empty", "", []FlagValidatorType{OriginValidator}, false},
		{"origin ok", "https://Example.com/app", []FlagValidatorType{OriginValidator}, false},
		{"origin no scheme", "example.com", []FlagValidatorType{OriginValidator}, true},
		{"chain stops at first", "--x", []FlagValidatorType{JammedFlagValidator, OriginValidator}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := FlagValidators(tt.value, tt.validators...)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
