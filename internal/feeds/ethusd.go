package feeds

// ETHUSDSources returns the five direct-median fetchers, grounded on
// original_source/oracle/feeds/ethusd.py's SOURCES list.
func ETHUSDSources() []Fetcher {
	return []Fetcher{
		newTickerField("coinbase", "api.exchange.coinbase.com",
			"https://api.exchange.coinbase.com/products/ETH-USD/ticker", "price"),
		newKrakenTicker("kraken", "api.kraken.com",
			"https://api.kraken.com/0/public/Ticker?pair=ETHUSD"),
		newTickerField("bitstamp", "www.bitstamp.net",
			"https://www.bitstamp.net/api/v2/ticker/ethusd/", "last"),
		newTickerField("gemini", "api.gemini.com",
			"https://api.gemini.com/v1/pubticker/ethusd", "last"),
		newBitfinexTicker("bitfinex", "api-pub.bitfinex.com",
			"https://api-pub.bitfinex.com/v2/ticker/tETHUSD"),
	}
}
