package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user tgbotapi.User
		want string
	}{
		{"first and last", tgbotapi.User{ID: 1, FirstName: "Alice", LastName: "Smith"}, "Alice Smith"},
		{"first only", tgbotapi.User{ID: 1, FirstName: "Alice"}, "Alice"},
		{"username fallback", tgbotapi.User{ID: 1, UserName: "alice42"}, "alice42"},
		{"id fallback", tgbotapi.User{ID: 77}, "User77"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := displayName(&tt.user); got != tt.want {
				t.Fatalf("displayName = %q, want %q", got, tt.want)
			}
		})
	}
}
