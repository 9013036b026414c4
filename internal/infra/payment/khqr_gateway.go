package payment

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/infra/payment/khqr"
)

type transactionChecker interface {
	CheckTransactionByMD5(ctx context.Context, md5 string) (bool, error)
}

// KHQRGatewayはQR発行（ローカルで組み立て）と入金確認（Bakong）をまとめる
type KHQRGateway struct {
	merchant khqr.Merchant
	currency string
	expiry   time.Duration
	checker  transactionChecker
	now      func() time.Time
}

func NewKHQRGateway(cfg config.Payment, checker transactionChecker) *KHQRGateway {
	return &KHQRGateway{
		merchant: khqr.Merchant{
			BakongAccountID: cfg.BakongAccountID,
			MerchantID:      cfg.MerchantID,
			AcquiringBank:   cfg.AcquiringBank,
			Name:            cfg.MerchantName,
			City:            cfg.MerchantCity,
			StoreLabel:      cfg.StoreLabel,
		},
		currency: strings.ToUpper(cfg.Currency),
		expiry:   cfg.QRExpiry,
		checker:  checker,
		now:      time.Now,
	}
}

// Generateは注文referenceからbill numberを作り、QRを発行する
func (g *KHQRGateway) Generate(ctx context.Context, amount int64, reference string) (model.QRCharge, error) {
	created := g.now()
	expires := created.Add(g.expiry)

	p, err := khqr.Encode(g.merchant, khqr.Request{
		Amount:     amount,
		Currency:   g.currency,
		BillNumber: khqr.BillNumber(reference),
		CreatedAt:  created,
		ExpiresAt:  expires,
	})
	if err != nil {
		return model.QRCharge{}, fmt.Errorf("%w: %v", model.ErrPaymentRejected, err)
	}

	img, err := RenderQR(p.QR)
	if err != nil {
		return model.QRCharge{}, err
	}

	return model.QRCharge{
		QRString:  p.QR,
		MD5:       p.MD5,
		Image:     img,
		ExpiresAt: expires,
	}, nil
}

func (g *KHQRGateway) Check(ctx context.Context, md5 string) (bool, error) {
	return g.checker.CheckTransactionByMD5(ctx, md5)
}

// RenderQRはPNGのdata URLを返す
func RenderQR(content string) (string, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
