package model

import "testing"

func TestSessionSignInClosesForm(t *testing.T) {
	s := Session{
		State:     ExpectingLoginPassword,
		Form:      LoginForm{Email: "alice@example.com"},
		AssetID:   3,
		TradeMode: Buy,
	}

	s.SignIn(Token{AccessToken: "tok", TokenType: "bearer"}, "alice@example.com")

	if !s.IsAuthenticated() {
		t.Fatal("IsAuthenticated() = false after SignIn")
	}
	if s.State != DefaultState || s.Form != (LoginForm{}) || s.AssetID != 0 || s.TradeMode != "" {
		t.Errorf("form not closed after SignIn: %+v", s)
	}
	if s.Token != "tok" || s.TokenType != "bearer" || s.Email != "alice@example.com" {
		t.Errorf("credentials = %+v", s)
	}

	s.State = ExpectingDepositAmount
	s.SignOut()
	if s != (Session{}) {
		t.Errorf("SignOut() left %+v", s)
	}
}
