package constants

// RecordType is the closed set of compliance record categories. The string
// values are the wire contract with the extraction model: anything else in a
// record's record_type field fails validation.
type RecordType string

const (
	SecuritiesTrade        RecordType = "securities-trade"
	SecuritiesPosition     RecordType = "securities-position"
	OTCFundTrade           RecordType = "otc-fund-trade"
	OTCFundPosition        RecordType = "otc-fund-position"
	UnlistedEquityTrade    RecordType = "unlisted-equity-trade"
	UnlistedEquityPosition RecordType = "unlisted-equity-position"
)

// RecordTypes lists all record types in their canonical report ordering.
// The template writer emits sections in exactly this order.
var RecordTypes = []RecordType{
	SecuritiesTrade,
	SecuritiesPosition,
	OTCFundTrade,
	OTCFundPosition,
	UnlistedEquityTrade,
	UnlistedEquityPosition,
}

// Titles maps each record type to its section title in the output workbook.
var Titles = map[RecordType]string{
	SecuritiesTrade:        "Securities Trade Filings",
	SecuritiesPosition:     "Securities Position Filings",
	OTCFundTrade:           "OTC Fund Trade Filings",
	OTCFundPosition:        "OTC Fund Position Filings",
	UnlistedEquityTrade:    "Unlisted Equity Trade Filings",
	UnlistedEquityPosition: "Unlisted Equity Position Filings",
}

// IsValidRecordType reports whether s is one of the six closed values.
func IsValidRecordType(s string) bool {
	switch RecordType(s) {
	case SecuritiesTrade, SecuritiesPosition,
		OTCFundTrade, OTCFundPosition,
		UnlistedEquityTrade, UnlistedEquityPosition:
		return true
	}
	return false
}
