package model

// State is the form or dialog a chat is currently answering.
type State int

const (
	DefaultState State = iota
	ExpectingRegisterEmail
	ExpectingRegisterPassword
	ExpectingRegisterConfirmPassword
	ExpectingLoginEmail
	ExpectingLoginPassword
	ExpectingDepositAmount
	ExpectingTradeQuantity
)

// Session is everything the bot remembers about a chat between updates:
// the backend credentials and the form or modal currently open.
type Session struct {
	State     State     `json:"state"`
	Token     string    `json:"token,omitempty"`
	TokenType string    `json:"token_type,omitempty"`
	Email     string    `json:"email,omitempty"`
	Form      LoginForm `json:"form,omitempty"`
	AssetID   int64     `json:"asset_id,omitempty"`
	TradeMode Direction `json:"trade_mode,omitempty"`
}

// LoginForm keeps the email typed so far in the register and login flows.
// Passwords are never part of it.
type LoginForm struct {
	Email string `json:"email,omitempty"`
}

func (s Session) IsAuthenticated() bool {
	return s.Token != ""
}

// SignIn stores credentials and closes any open form.
func (s *Session) SignIn(token Token, email string) {
	s.Token = token.AccessToken
	s.TokenType = token.TokenType
	s.Email = email
	s.CloseForm()
}

// SignOut forgets credentials and any conversation in progress.
func (s *Session) SignOut() {
	*s = Session{}
}

func (s *Session) CloseForm() {
	s.State = DefaultState
	s.Form = LoginForm{}
	s.AssetID = 0
	s.TradeMode = ""
}
