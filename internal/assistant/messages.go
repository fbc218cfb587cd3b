package assistant

import (
	"github.com/shopspring/decimal"

	"github.com/loqalabs/kadai/internal/catalog"
	"github.com/loqalabs/kadai/internal/shoperr"
)

// Status texts shown on screen and spoken aloud.
const (
	MsgEmptyQuery     = "⚠️ ஒரு பொருளின் பெயரை உள்ளிடவும்"
	MsgNotFound       = "❌ பொருள் கிடைக்கவில்லை"
	MsgServerError    = "⚠️ சர்வருடன் இணைக்க முடியவில்லை"
	MsgRemoved        = "பொருள் கூடையில் இருந்து அகற்றப்பட்டது"
	MsgEmptyCart      = "⚠️ கூடை காலியாக உள்ளது"
	MsgMissingDetails = "⚠️ வாடிக்கையாளர் விவரங்களை உள்ளிடவும்"
	MsgInvalidPhone   = "⚠️ செல்லுபடியாகும் 10 இலக்க தொலைபேசி எண் கொடுக்கவும்"
	MsgOrderFailed    = "⚠️ ஆர்டர் தோல்வியடைந்தது"
)

func foundMessage(item catalog.Item) string {
	return item.Name + " விலை ₹" + item.Price.String() + " ரூபாய்"
}

func addedMessage(item catalog.Item) string {
	return item.Name + " கூடையில் சேர்க்கப்பட்டது"
}

func orderPlacedMessage(total decimal.Decimal) string {
	return "✅ ஆர்டர் வெற்றிகரமாக வைக்கப்பட்டது | மொத்தம் ₹" + total.String()
}

// errorMessage maps a search or order failure to its status text.
func errorMessage(err error, transport string) string {
	if kind, ok := shoperr.KindOf(err); ok {
		switch kind {
		case shoperr.EmptyQuery:
			return MsgEmptyQuery
		case shoperr.EmptyCart:
			return MsgEmptyCart
		case shoperr.MissingDetails:
			return MsgMissingDetails
		case shoperr.InvalidPhone:
			return MsgInvalidPhone
		}
	}
	return transport
}
