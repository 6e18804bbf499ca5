package storage

import "testing"

func TestProviderScope(t *testing.T) {
	cases := []struct {
		scope    string
		provider string
		ok       bool
	}{
		{"provider:aws", "aws", true},
		{"provider:gcp", "gcp", true},
		{"provider:", "", false},
		{"service:ec2", "", false},
		{"aws", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		provider, ok := providerScope(tc.scope)
		if provider != tc.provider || ok != tc.ok {
			t.Errorf("providerScope(%q) = %q, %v; want %q, %v", tc.scope, provider, ok, tc.provider, tc.ok)
		}
	}
}
