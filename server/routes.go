package server

func (s *Server) initRoutes() {
	// Browser-facing OAuth flow
	s.RegisterRouteHandler("GET "+RouteAuthBnet, ChainMiddleware(s.AuthorizeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthCallback, ChainMiddleware(s.CallbackHandler(), s.APIMiddleware()...))

	// Session API
	s.RegisterRouteHandler("GET "+RouteAuthValidate, ChainMiddleware(s.ValidateHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthLogout, ChainMiddleware(s.LogoutHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthExchangeToken, ChainMiddleware(s.ExchangeTokenHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthUpdateConsent, ChainMiddleware(s.UpdateConsentHandler(), s.APIMiddleware()...))

	// Cached game-data passthrough
	if s.gamedata != nil {
		s.RegisterRouteHandler("GET "+RouteAPIItem, ChainMiddleware(s.ItemHandler(), s.APIMiddleware()...))
		s.RegisterRouteHandler("GET "+RouteAPICharacter, ChainMiddleware(s.CharacterHandler(), s.APIMiddleware()...))
	}
}
