package models

import "time"

// Rows returned by MarketDataRepository. All slices are ordered most recent first.

type FundingRateRow struct {
	Exchange string    `db:"exchange"`
	Time     time.Time `db:"time"`
	Close    float64   `db:"close"`
}

type OpenInterestRow struct {
	Time  time.Time `db:"time"`
	Close float64   `db:"close"`
}

type WhaleTransferRow struct {
	Time      time.Time `db:"time"`
	Symbol    string    `db:"symbol"`
	AmountUSD float64   `db:"amount_usd"`
	FromOwner string    `db:"from_owner"`
	ToOwner   string    `db:"to_owner"`
}

type EtfFlowRow struct {
	Date       time.Time `db:"date"`
	NetFlowUSD float64   `db:"net_flow_usd"`
}

type FearGreedRow struct {
	Time           time.Time `db:"time"`
	Value          float64   `db:"value"`
	Classification string    `db:"classification"`
}

type OrderbookRow struct {
	Time     time.Time `db:"time"`
	BidDepth float64   `db:"bid_depth"`
	AskDepth float64   `db:"ask_depth"`
}

type TakerVolumeRow struct {
	Time       time.Time `db:"time"`
	BuyVolume  float64   `db:"buy_volume"`
	SellVolume float64   `db:"sell_volume"`
}

type PriceRow struct {
	Time  time.Time `db:"time"`
	High  float64   `db:"high"`
	Low   float64   `db:"low"`
	Close float64   `db:"close"`
}

type LiquidationRow struct {
	Time     time.Time `db:"time"`
	LongUSD  float64   `db:"long_usd"`
	ShortUSD float64   `db:"short_usd"`
}

type LongShortRow struct {
	Time       time.Time `db:"time"`
	LongRatio  float64   `db:"long_ratio"`
	ShortRatio float64   `db:"short_ratio"`
}
