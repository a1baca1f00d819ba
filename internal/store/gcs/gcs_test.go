package gcs

import "testing"

func TestObjectName(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
		want   string
	}{
		{"ledger-ai", "transactions", "ledger-ai/transactions.json"},
		{"", "accounts", "accounts.json"},
		{"a/b/", "notes", "a/b/notes.json"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := ObjectName(tt.prefix, tt.key); got != tt.want {
				t.Errorf("ObjectName(%q, %q) = %q, want %q", tt.prefix, tt.key, got, tt.want)
			}
		})
	}
}
