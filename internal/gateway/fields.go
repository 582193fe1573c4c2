package gateway

// Outbound request fields.
const (
	FieldMerchantID     = "MID"
	FieldWebsite        = "WEBSITE"
	FieldOrderID        = "ORDER_ID"
	FieldAmount         = "TXN_AMOUNT"
	FieldEmail          = "EMAIL"
	FieldCurrency       = "CURRENCY"
	FieldMobile         = "MOBILE_NO"
	FieldCallbackURL    = "CALLBACK_URL"
	FieldTxnDate        = "TXN_DATE"
	FieldProductDetails = "PRODUCT_DETAILS"
)

// Callback fields.
const (
	FieldCallbackOrderID   = "ORDERID"
	FieldStatus            = "STATUS"
	FieldCallbackAmount    = "TXNAMOUNT"
	FieldTransactionNumber = "transaction_number"
	FieldResponseCode      = "RESPCODE"
	FieldResponseMessage   = "RESPMSG"
)

// FieldChecksum carries the signature. The gateway sends it as
// "checksumhash" on callbacks and expects "CHECKSUMHASH" on requests.
const FieldChecksum = "CHECKSUMHASH"

// Transaction status values reported in the STATUS callback field.
const (
	StatusSuccess = "TXN_SUCCESS"
	StatusFailure = "TXN_FAILURE"
	StatusPending = "PENDING"
)

// TxnDateLayout is the format of the TXN_DATE field.
const TxnDateLayout = "2006-01-02 15:04:05"

// DefaultExcluded lists fields that never participate in the checksum.
var DefaultExcluded = []string{FieldProductDetails}
