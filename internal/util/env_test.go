package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	tests := []struct {
		value        string
		defaultValue bool
		want         bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"OFF", true, false},
		{" true ", false, true},
		{"maybe", true, true},
		{"maybe", false, false},
	}
	for _, tt := range tests {
		t.Setenv("LEADLINE_TEST_BOOL", tt.value)
		if got := ParseBoolEnv("LEADLINE_TEST_BOOL", tt.defaultValue); got != tt.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tt.value, tt.defaultValue, got, tt.want)
		}
	}
}

func TestParseBoolEnvUnset(t *testing.T) {
	if got := ParseBoolEnv("LEADLINE_TEST_BOOL_UNSET", true); !got {
		t.Error("unset variable should return the default")
	}
	if got := ParseBoolEnv("LEADLINE_TEST_BOOL_UNSET", false); got {
		t.Error("unset variable should return the default")
	}
}
