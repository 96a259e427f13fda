package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitValues(t *testing.T) {

	testData := []struct {
		name     string
		values   []string
		expected []string
	}{
		{
			name:     "TestSplitValues_Semicolon",
			values:   []string{"black", "white"},
			expected: []string{"black", "white"},
		},
		{
			name:     "TestSplitValues_Comma",
			values:   []string{"token-a,token-b"},
			expected: []string{"token-a", "token-b"},
		},
		{
			name:     "TestSplitValues_Mixed",
			values:   []string{"black, white", "fop"},
			expected: []string{"black", "white", "fop"},
		},
		{
			name:     "TestSplitValues_Empty",
			values:   []string{"", " , "},
			expected: nil,
		},
	}

	for _, testRun := range testData {
		t.Run(testRun.name, func(t *testing.T) {
			require.Equal(t, testRun.expected, splitValues(testRun.values))
		})
	}
}
