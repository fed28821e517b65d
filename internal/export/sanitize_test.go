package export

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "slashes colons and asterisks",
			input:    "a/b:c*d",
			expected: "a_b_c_d",
		},
		{
			name:     "clean name unchanged",
			input:    "My Collection v2",
			expected: "My Collection v2",
		},
		{
			name:     "windows reserved characters",
			input:    `api<test>"prod"|copy?`,
			expected: "api_test__prod__copy_",
		},
		{
			name:     "backslash",
			input:    `a\b`,
			expected: "a_b",
		},
		{
			name:     "control characters",
			input:    "tab\there",
			expected: "tab_here",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
			if again := SanitizeFilename(got); again != got {
				t.Errorf("SanitizeFilename is not idempotent: %q -> %q", got, again)
			}
		})
	}
}
