package model

type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type Account struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}
