package shared

import (
	"context"
	"testing"
)

func TestMemberIDFromContext(t *testing.T) {
	cases := []struct {
		name string
		user string
		want int64
		ok   bool
	}{
		{name: "numeric id", user: "42", want: 42, ok: true},
		{name: "padded id", user: " 42 ", want: 42, ok: true},
		{name: "anonymous session", user: "", ok: false},
		{name: "malformed id", user: "not-a-number", ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sess := &Session{}
			sess.SetUser(tc.user)
			ctx := ContextWithSession(context.Background(), sess)

			id, ok := MemberIDFromContext(ctx)
			if ok != tc.ok || id != tc.want {
				t.Fatalf("got (%d, %v), want (%d, %v)", id, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestMemberIDFromContextWithoutSession(t *testing.T) {
	if _, ok := MemberIDFromContext(context.Background()); ok {
		t.Fatalf("a sessionless context must read as unauthenticated")
	}
}
