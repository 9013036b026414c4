// Package khqr はKHQR（EMVCo準拠）の支払い文字列を組み立てる。
package khqr

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidField = errors.New("invalid khqr field")

const (
	currencyUSD = "840"
	currencyKHR = "116"

	// 店舗カテゴリ（その他小売）
	merchantCategoryCode = "5999"
	terminalLabel        = "POS-01"

	maxAccountIDLen = 32
	maxNameLen      = 25
	maxCityLen      = 15
	maxBillLen      = 25
	maxLabelLen     = 25
)

type Merchant struct {
	BakongAccountID string // xxx@bank
	MerchantID      string // 空なら個人アカウント(tag 29)
	AcquiringBank   string
	Name            string
	City            string
	StoreLabel      string
}

type Request struct {
	Amount     int64  // 最小単位（USDならセント）
	Currency   string // "USD" or "KHR"
	BillNumber string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

type Payload struct {
	QR  string
	MD5 string
}

func tlv(tag, value string) string {
	return fmt.Sprintf("%s%02d%s", tag, len(value), value)
}

func checkLen(name, v string, max int) error {
	if v == "" || len(v) > max {
		return fmt.Errorf("%w: %s must be 1..%d chars", ErrInvalidField, name, max)
	}
	return nil
}

// 金額はUSDなら小数2桁固定、KHRは整数
func formatAmount(amount int64, currency string) (string, string, error) {
	if amount <= 0 {
		return "", "", fmt.Errorf("%w: amount must be positive", ErrInvalidField)
	}
	switch strings.ToUpper(currency) {
	case "", "USD":
		return decimal.New(amount, -2).StringFixed(2), currencyUSD, nil
	case "KHR":
		return strconv.FormatInt(amount, 10), currencyKHR, nil
	}
	return "", "", fmt.Errorf("%w: unsupported currency %q", ErrInvalidField, currency)
}

// Encodeは動的KHQR文字列とそのMD5を返す
func Encode(m Merchant, req Request) (Payload, error) {
	if err := checkLen("bakong account id", m.BakongAccountID, maxAccountIDLen); err != nil {
		return Payload{}, err
	}
	if !strings.Contains(m.BakongAccountID, "@") {
		return Payload{}, fmt.Errorf("%w: bakong account id must look like name@bank", ErrInvalidField)
	}
	if err := checkLen("merchant name", m.Name, maxNameLen); err != nil {
		return Payload{}, err
	}
	if err := checkLen("merchant city", m.City, maxCityLen); err != nil {
		return Payload{}, err
	}
	if err := checkLen("bill number", req.BillNumber, maxBillLen); err != nil {
		return Payload{}, err
	}
	if len(m.StoreLabel) > maxLabelLen {
		return Payload{}, fmt.Errorf("%w: store label too long", ErrInvalidField)
	}
	if !req.ExpiresAt.After(req.CreatedAt) {
		return Payload{}, fmt.Errorf("%w: expiration must be after creation", ErrInvalidField)
	}

	amount, currency, err := formatAmount(req.Amount, req.Currency)
	if err != nil {
		return Payload{}, err
	}

	var b strings.Builder
	b.WriteString(tlv("00", "01"))
	b.WriteString(tlv("01", "12")) // 動的QR

	if m.MerchantID != "" {
		acct := tlv("00", m.BakongAccountID) + tlv("01", m.MerchantID)
		if m.AcquiringBank != "" {
			acct += tlv("02", m.AcquiringBank)
		}
		b.WriteString(tlv("30", acct))
	} else {
		acct := tlv("00", m.BakongAccountID)
		if m.AcquiringBank != "" {
			acct += tlv("02", m.AcquiringBank)
		}
		b.WriteString(tlv("29", acct))
	}

	b.WriteString(tlv("52", merchantCategoryCode))
	b.WriteString(tlv("53", currency))
	b.WriteString(tlv("54", amount))
	b.WriteString(tlv("58", "KH"))
	b.WriteString(tlv("59", m.Name))
	b.WriteString(tlv("60", m.City))

	extra := tlv("01", req.BillNumber)
	if m.StoreLabel != "" {
		extra += tlv("03", m.StoreLabel)
	}
	extra += tlv("07", terminalLabel)
	b.WriteString(tlv("62", extra))

	ts := tlv("00", strconv.FormatInt(req.CreatedAt.UnixMilli(), 10)) +
		tlv("01", strconv.FormatInt(req.ExpiresAt.UnixMilli(), 10))
	b.WriteString(tlv("99", ts))

	b.WriteString("6304")
	qr := b.String()
	qr += fmt.Sprintf("%04X", crc16([]byte(qr)))

	sum := md5.Sum([]byte(qr))
	return Payload{QR: qr, MD5: hex.EncodeToString(sum[:])}, nil
}

// BillNumberは注文参照（UUID）の末尾10文字
func BillNumber(reference string) string {
	s := strings.ReplaceAll(reference, "-", "")
	if len(s) <= 10 {
		return s
	}
	return s[len(s)-10:]
}
