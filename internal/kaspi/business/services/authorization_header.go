package services

import (
	"net/http"
)

type AuthEngine interface {
	GetApiKey() string
	SetApiKey(request *http.Request)
}

// TokenAuth проставляет сервисный токен Kaspi в заголовок X-Auth-Token.
type TokenAuth struct {
	apiKey string
}

func (b *TokenAuth) GetApiKey() string {
	return b.apiKey
}

func (b *TokenAuth) SetApiKey(request *http.Request) {
	if b.apiKey == "" {
		return
	}
	request.Header.Set("X-Auth-Token", b.apiKey)
}

func NewTokenAuth(apiKey string) *TokenAuth {
	return &TokenAuth{apiKey: apiKey}
}

// BasicAuth — базовая авторизация для учётной системы.
type BasicAuth struct {
	login    string
	password string
}

func (b *BasicAuth) GetApiKey() string {
	return b.login
}

func (b *BasicAuth) SetApiKey(request *http.Request) {
	request.SetBasicAuth(b.login, b.password)
}

func NewBasicAuth(login, password string) *BasicAuth {
	return &BasicAuth{login: login, password: password}
}
