package model

import (
	"errors"
	"time"
)

// プロバイダが入力を拒否した（呼び出し側で直せる）
var ErrPaymentRejected = errors.New("payment rejected")

// KHQRの発行結果
type QRCharge struct {
	QRString  string    `json:"qr_string"`
	MD5       string    `json:"md5"`
	Image     string    `json:"qr_image"` // data:image/png;base64,...
	ExpiresAt time.Time `json:"expires_at"`
}

// カード決済のPaymentIntent
type CardIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret,omitempty"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Email        string `json:"email,omitempty"`
	// 作成時にmetadataへ入れたユーザー。0なら不明
	UserID int64 `json:"-"`
}

const CardIntentSucceeded = "succeeded"

// Stripeの最小請求額（USDセント）
const MinCardAmount int64 = 50
