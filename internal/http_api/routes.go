package http_api

// routes sets up the routes for the HTTP server.
func (s *HTTPServer) routes() {
	v1 := s.router.Group("/v1")
	{
		v1.GET("/challenge", s.getChallenge)
		v1.POST("/gratis", s.gratis)
		v1.POST("/shunt", s.shunt)
		v1.POST("/provider", s.addProvider)

		v1.GET("/get-transactions/:fromAddress/:toAddress", s.getTransactions)
		v1.POST("/is-signature-valid", s.isSignatureValid)
		v1.GET("/ledger/:address", s.ledger)
		v1.GET("/export/:toAddress", s.export)

		v1.POST("/void", s.voidView)
		v1.POST("/go-void", s.goVoid)

		v1.POST("/retarget-subscriber", s.retargetSubscriber)
		v1.POST("/retarget-provider", s.retargetProvider)
		v1.GET("/retarget/:id", s.retargetAcknowledged)
		v1.POST("/go-retarget", s.goRetarget)
	}

	s.router.GET("/status.json", s.status)
}
