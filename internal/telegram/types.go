package telegram

import "encoding/json"

// ─── Outbound request types ──────────────────────────────────────────────────

// LabeledPrice is one line item of an invoice. Amount is in Stars.
type LabeledPrice struct {
	Label  string `json:"label"`
	Amount int    `json:"amount"`
}

// Invoice mirrors the createInvoiceLink parameters.
type Invoice struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Payload     string         `json:"payload"`
	Currency    string         `json:"currency"`
	Prices      []LabeledPrice `json:"prices"`
}

// WebAppInfo opens a Mini App from an inline button.
type WebAppInfo struct {
	URL string `json:"url"`
}

// InlineKeyboardButton is one button of an inline keyboard. Exactly one of
// URL / WebApp should be set.
type InlineKeyboardButton struct {
	Text   string      `json:"text"`
	URL    string      `json:"url,omitempty"`
	WebApp *WebAppInfo `json:"web_app,omitempty"`
}

// InlineKeyboardMarkup is the reply_markup wrapper for inline keyboards.
type InlineKeyboardMarkup struct {
	InlineKeyboard [][]InlineKeyboardButton `json:"inline_keyboard"`
}

// Message mirrors the sendMessage parameters used by this service.
// ChatID is a string so both numeric user ids and @channel usernames work.
type Message struct {
	ChatID                string                `json:"chat_id"`
	Text                  string                `json:"text"`
	ParseMode             string                `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool                  `json:"disable_web_page_preview,omitempty"`
	ReplyMarkup           *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

// ─── Inbound webhook types ───────────────────────────────────────────────────

// User is the sender of an inbound update.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Chat identifies where an inbound message came from.
type Chat struct {
	ID int64 `json:"id"`
}

// SuccessfulPayment is attached to a message once the provider confirms a
// payment. InvoicePayload carries the order id set at invoice creation.
type SuccessfulPayment struct {
	Currency                string `json:"currency"`
	TotalAmount             int    `json:"total_amount"`
	InvoicePayload          string `json:"invoice_payload"`
	TelegramPaymentChargeID string `json:"telegram_payment_charge_id"`
	ProviderPaymentChargeID string `json:"provider_payment_charge_id"`
}

// PreCheckoutQuery must be answered within the provider's timeout or the
// payment is aborted client-side.
type PreCheckoutQuery struct {
	ID             string `json:"id"`
	From           User   `json:"from"`
	Currency       string `json:"currency"`
	TotalAmount    int    `json:"total_amount"`
	InvoicePayload string `json:"invoice_payload"`
}

// IncomingMessage is the subset of message fields the webhook consumes.
type IncomingMessage struct {
	Chat              Chat               `json:"chat"`
	From              *User              `json:"from,omitempty"`
	SuccessfulPayment *SuccessfulPayment `json:"successful_payment,omitempty"`
}

// Update is the webhook envelope. Only the fields this service reacts to
// are decoded; everything else is ignored.
type Update struct {
	UpdateID         int64             `json:"update_id"`
	Message          *IncomingMessage  `json:"message,omitempty"`
	PreCheckoutQuery *PreCheckoutQuery `json:"pre_checkout_query,omitempty"`
}

// apiResponse is the Bot API envelope: {ok, result, description}.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}
