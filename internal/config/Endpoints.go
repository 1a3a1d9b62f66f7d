package config

// Endpoints holds the exchange endpoints for this environment.
type Endpoints struct {
	// ExchangeWS is the websocket JSON-RPC endpoint of the order book exchange.
	// All exchange traffic, one-shot queries included, runs over this session.
	ExchangeWS string
}

func loadEndpoints() (Endpoints, error) {
	ws, err := getEnv("EXCHANGE_WS_URL")
	if err != nil {
		return Endpoints{}, err
	}
	return Endpoints{ExchangeWS: ws}, nil
}
