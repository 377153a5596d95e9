package server

const (
	RouteAuthBnet          = "/auth/bnet"
	RouteAuthCallback      = "/auth/callback"
	RouteAuthValidate      = "/auth/validate"
	RouteAuthLogout        = "/auth/logout"
	RouteAuthRefreshToken  = "/auth/refresh-token"
	RouteAuthExchangeToken = "/auth/exchange-token"
	RouteAuthUpdateConsent = "/auth/update-consent"

	RouteAPIItem      = "/api/item/{itemId}"
	RouteAPICharacter = "/api/character/{realm}/{name}"
)
