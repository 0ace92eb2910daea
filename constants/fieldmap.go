package constants

// Field pairs a human-readable column name with the canonical data key the
// extraction model is asked to emit. Order matters: it is the column order
// of both the extraction prompt and the output workbook.
type Field struct {
	Display string
	Key     string
}

// FieldMap is the ordered column layout for one record type.
type FieldMap []Field

// Keys returns the canonical data keys in column order.
func (m FieldMap) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

// DisplayNames returns the column headers in column order.
func (m FieldMap) DisplayNames() []string {
	names := make([]string, len(m))
	for i, f := range m {
		names[i] = f.Display
	}
	return names
}

// FieldMaps defines the column layout per record type. These tables are the
// de facto wire contract with the extraction model and must stay in
// lock-step with the prompt vocabulary.
var FieldMaps = map[RecordType]FieldMap{
	SecuritiesTrade: {
		{"Securities Account", "securities_account"},
		{"Market", "market"},
		{"Security Code", "security_code"},
		{"Security Name", "security_name"},
		{"Direction", "direction"},
		{"Trade Type", "trade_type"},
		{"Quantity (Shares)", "trade_quantity"},
		{"Price", "trade_price"},
		{"Product Name", "product_name"},
		{"Trade Date", "trade_date"},
		{"Remarks", "remarks"},
	},
	SecuritiesPosition: {
		{"Securities Account", "securities_account"},
		{"Market", "market"},
		{"Security Code", "security_code"},
		{"Security Name", "security_name"},
		{"Position (Shares)", "position_quantity"},
		{"Position Date", "position_date"},
		{"Remarks", "remarks"},
	},
	OTCFundTrade: {
		{"Product Code", "product_code"},
		{"Product Name", "product_name"},
		{"Direction", "direction"},
		{"Fund Investment Target", "fund_target"},
		{"Trade Shares", "trade_shares"},
		{"Trade Date", "trade_date"},
		{"Remarks", "remarks"},
	},
	OTCFundPosition: {
		{"Product Code", "product_code"},
		{"Product Name", "product_name"},
		{"Position Shares", "position_shares"},
		{"Position Date", "position_date"},
		{"Remarks", "remarks"},
	},
	UnlistedEquityTrade: {
		{"Enterprise Name", "enterprise_name"},
		{"Unified Social Credit Code", "credit_code"},
		{"Direction", "direction"},
		{"Subscribed Capital (10k)", "subscribed_capital"},
		{"Paid-in Capital (10k)", "paid_in_capital"},
		{"Shareholding (%)", "shareholding_pct"},
		{"Trade Date", "trade_date"},
		{"Remarks", "remarks"},
	},
	UnlistedEquityPosition: {
		{"Enterprise Name", "enterprise_name"},
		{"Unified Social Credit Code", "credit_code"},
		{"Direction", "direction"},
		{"Subscribed Capital (10k)", "subscribed_capital"},
		{"Paid-in Capital (10k)", "paid_in_capital"},
		{"Shareholding (%)", "shareholding_pct"},
		{"Position Date", "position_date"},
		{"Remarks", "remarks"},
	},
}
