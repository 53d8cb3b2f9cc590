package dto

import "encoding/json"

// MetaWebhookPayload is the outer envelope Meta delivers for WhatsApp
// Business, Instagram and Facebook Messenger events. The top-level Object
// field discriminates the platform.
type MetaWebhookPayload struct {
	Object string             `json:"object"`
	Entry  []MetaWebhookEntry `json:"entry"`
}

// MetaWebhookEntry is one entry of a Meta webhook delivery. WhatsApp uses
// Changes; Instagram and Messenger use Messaging.
type MetaWebhookEntry struct {
	ID        string               `json:"id"`
	Time      int64                `json:"time,omitempty"`
	Changes   []WhatsAppChange     `json:"changes,omitempty"`
	Messaging []MessengerEventItem `json:"messaging,omitempty"`
}

// WhatsAppChange captures one WhatsApp Business notification
type WhatsAppChange struct {
	Field string        `json:"field"`
	Value WhatsAppValue `json:"value"`
}

// WhatsAppValue contains message metadata, contacts and message events
type WhatsAppValue struct {
	MessagingProduct string            `json:"messaging_product"`
	Metadata         WhatsAppMetadata  `json:"metadata"`
	Contacts         []WhatsAppContact `json:"contacts,omitempty"`
	Messages         []WhatsAppMessage `json:"messages,omitempty"`
	Statuses         []WhatsAppStatus  `json:"statuses,omitempty"`
}

// WhatsAppMetadata identifies the business phone number the event belongs to
type WhatsAppMetadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// WhatsAppContact carries the sender's profile hint
type WhatsAppContact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// WhatsAppMessage is one inbound WhatsApp message
type WhatsAppMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Text      *WhatsAppText   `json:"text,omitempty"`
	Image     *WhatsAppMedia  `json:"image,omitempty"`
	Video     *WhatsAppMedia  `json:"video,omitempty"`
	Audio     *WhatsAppMedia  `json:"audio,omitempty"`
	Document  *WhatsAppMedia  `json:"document,omitempty"`
	Location  json.RawMessage `json:"location,omitempty"`
}

// WhatsAppText contains a text message body
type WhatsAppText struct {
	Body string `json:"body"`
}

// WhatsAppMedia contains minimal media attachment metadata
type WhatsAppMedia struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
	Filename string `json:"filename,omitempty"`
	SHA256   string `json:"sha256,omitempty"`
}

// WhatsAppStatus is a delivery/read receipt for an outbound message
type WhatsAppStatus struct {
	ID          string          `json:"id"`
	Status      string          `json:"status"`
	Timestamp   string          `json:"timestamp"`
	RecipientID string          `json:"recipient_id"`
	Errors      []WhatsAppError `json:"errors,omitempty"`
}

// WhatsAppError describes a failed delivery
type WhatsAppError struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// MessengerEventItem is one messaging event for Instagram or Facebook
// Messenger. Exactly one of Message, Delivery, Read is set per item.
type MessengerEventItem struct {
	Sender    MessengerParty    `json:"sender"`
	Recipient MessengerParty    `json:"recipient"`
	Timestamp int64             `json:"timestamp"`
	Message   *MessengerMessage `json:"message,omitempty"`
	Delivery  *MessengerReceipt `json:"delivery,omitempty"`
	Read      *MessengerReceipt `json:"read,omitempty"`
}

// MessengerParty identifies a messaging participant
type MessengerParty struct {
	ID string `json:"id"`
}

// MessengerMessage is one inbound Instagram/Messenger message
type MessengerMessage struct {
	MID         string                `json:"mid"`
	Text        string                `json:"text,omitempty"`
	Attachments []MessengerAttachment `json:"attachments,omitempty"`
	QuickReply  *MessengerQuickReply  `json:"quick_reply,omitempty"`
}

// MessengerAttachment is one attachment of an inbound message
type MessengerAttachment struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// MessengerQuickReply carries a pressed quick-reply payload
type MessengerQuickReply struct {
	Payload string `json:"payload"`
}

// MessengerReceipt fans a delivery or read receipt out over message ids
type MessengerReceipt struct {
	MIDs      []string `json:"mids,omitempty"`
	Watermark int64    `json:"watermark,omitempty"`
}

// GatewayMessageRequest is the structured ingestion body posted by the
// self-hosted session bridge. Already close to canonical shape.
type GatewayMessageRequest struct {
	MessageID     string          `json:"message_id" validate:"required,min=1,max=255"`
	FromNumber    string          `json:"from_number" validate:"required,min=3,max=64"`
	ToNumber      string          `json:"to_number" validate:"required,min=3,max=64"`
	Direction     string          `json:"direction" validate:"required,oneof=incoming outgoing"`
	Type          string          `json:"type" validate:"required,oneof=text image video audio document sticker location contact other"`
	Content       *string         `json:"content,omitempty"`
	MediaMetadata json.RawMessage `json:"media_metadata,omitempty"`
	Status        string          `json:"status" validate:"required,oneof=pending sent delivered read failed"`
	IsAutoReply   bool            `json:"is_auto_reply,omitempty"`
	PushName      *string         `json:"push_name,omitempty"`
	Timestamp     *int64          `json:"timestamp,omitempty"`
}

// TelegramUpdate is the subset of a Telegram bot update the normalizer
// consumes.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

// TelegramMessage is one inbound Telegram message
type TelegramMessage struct {
	MessageID int64             `json:"message_id"`
	From      *TelegramUser     `json:"from,omitempty"`
	Chat      TelegramChat      `json:"chat"`
	Date      int64             `json:"date"`
	Text      string            `json:"text,omitempty"`
	Photo     []TelegramPhoto   `json:"photo,omitempty"`
	Document  *TelegramDocument `json:"document,omitempty"`
	Voice     *TelegramDocument `json:"voice,omitempty"`
	Location  *TelegramLocation `json:"location,omitempty"`
	Caption   string            `json:"caption,omitempty"`
}

// TelegramUser identifies the sender of a Telegram message
type TelegramUser struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// TelegramChat identifies the conversation a message belongs to
type TelegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// TelegramPhoto is one size variant of a photo attachment
type TelegramPhoto struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

// TelegramDocument is a generic file attachment
type TelegramDocument struct {
	FileID   string `json:"file_id"`
	MimeType string `json:"mime_type,omitempty"`
	FileName string `json:"file_name,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// TelegramLocation is a shared location
type TelegramLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
