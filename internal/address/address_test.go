package address

import "testing"

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want bool
	}{
		{name: "simple", addr: "user@domain.com", want: true},
		{name: "display-name", addr: "User Name <user@domain.com>", want: true},
		{name: "surrounding-space", addr: "  user@domain.com  ", want: true},
		{name: "missing-domain", addr: "user@", want: false},
		{name: "missing-at", addr: "plainaddress", want: false},
		{name: "empty", addr: "", want: false},
		{name: "spaces-only", addr: "   ", want: false},
		{name: "double-at", addr: "user@@domain.com", want: false},
		{name: "subdomain", addr: "user@mail.internal.example.org", want: true},
	}

	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			if got := Valid(tc.addr); got != tc.want {
				t.Fatalf("Valid(%q) = %v, want %v", tc.addr, got, tc.want)
			}
		})
	}
}
