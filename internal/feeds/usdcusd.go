package feeds

// USDCUSDSources returns the five-venue USDC/USD ticker set the depeg
// circuit breaker medians, grounded on original_source/sho/x402_proxy.py's
// check_depeg() source list (Kraken, Bitstamp, Coinbase, Gemini, Bitfinex).
func USDCUSDSources() []Fetcher {
	return []Fetcher{
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=USDCUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/usdcusd/", "last"),
		newTickerField("coinbase", "api.exchange.coinbase.com",
			"https://api.exchange.coinbase.com/products/USDC-USD/ticker", "price"),
		newTickerField("gemini", "api.gemini.com",
			"https://api.gemini.com/v1/pubticker/usdcusd", "last"),
		newBitfinexTicker("bitfinex", "api-pub.bitfinex.com",
			"https://api-pub.bitfinex.com/v2/ticker/tUDCUSD"),
	}
}
