package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"petstore/internal/domain/model"
	"petstore/internal/logger"
)

// QRGatewayはKHQRの発行と入金確認
type QRGateway interface {
	Generate(ctx context.Context, amount int64, reference string) (model.QRCharge, error)
	Check(ctx context.Context, md5 string) (bool, error)
}

// CardGatewayはStripeのPaymentIntent
type CardGateway interface {
	CreateIntent(ctx context.Context, amount int64, userID int64) (model.CardIntent, error)
	Retrieve(ctx context.Context, intentID string) (model.CardIntent, error)
}

type PrepareInput struct {
	Reference string
	UserID    int64
	Total     int64
	IntentID  string
}

// Prepareの結果。DBにはまだ書かない
type PaymentPrep struct {
	Result model.PaymentResult
	Paid   bool
	QRCode string
	QR     *model.QRCharge
}

// PaymentStrategyは支払い方法ごとの処理
type PaymentStrategy interface {
	Method() model.PaymentMethod
	// 注文保存の前に呼ぶ。失敗したら注文は作らない
	Prepare(ctx context.Context, in PrepareInput) (PaymentPrep, error)
	// 入金済みか確認する。paid=trueなら記録すべき結果を返す
	Reconcile(ctx context.Context, o model.Order) (model.PaymentResult, bool, error)
}

type PaymentStrategies map[model.PaymentMethod]PaymentStrategy

// cardはnil可（Stripe未設定）
func NewPaymentStrategies(card CardGateway, qr QRGateway, log *zap.Logger) PaymentStrategies {
	return PaymentStrategies{
		model.PaymentMethodCard: &cardStrategy{gateway: card, log: log, now: time.Now},
		model.PaymentMethodKHQR: &khqrStrategy{gateway: qr, log: log, now: time.Now},
		model.PaymentMethodCOD:  codStrategy{},
	}
}

func (s PaymentStrategies) For(m model.PaymentMethod) (PaymentStrategy, error) {
	st, ok := s[m]
	if !ok {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}
	return st, nil
}

// ゲートウェイのエラーを呼び出し側で直せるか（400）どうか（502）で分ける
func gatewayError(err error, message string) error {
	if errors.Is(err, model.ErrPaymentRejected) {
		return wrapHTTPError(http.StatusBadRequest, message, ErrPaymentGateway)
	}
	return wrapHTTPError(http.StatusBadGateway, "payment provider unavailable", ErrPaymentGateway)
}

type cardStrategy struct {
	gateway CardGateway
	log     *zap.Logger
	now     func() time.Time
}

func (s *cardStrategy) Method() model.PaymentMethod { return model.PaymentMethodCard }

func (s *cardStrategy) Prepare(ctx context.Context, in PrepareInput) (PaymentPrep, error) {
	if in.IntentID == "" {
		// 後から PUT /orders/:id/pay で記録する
		return PaymentPrep{}, nil
	}

	result, err := s.Verify(ctx, in.IntentID, in.Total, in.UserID)
	if err != nil {
		return PaymentPrep{}, err
	}
	return PaymentPrep{Result: result, Paid: true}, nil
}

// VerifyはPaymentIntentが成功済みで金額が一致し、userIDのものかを確かめる。
// 使用済みかどうかは注文Txの中でCardPaymentsが見る
func (s *cardStrategy) Verify(ctx context.Context, intentID string, total int64, userID int64) (model.PaymentResult, error) {
	if s.gateway == nil {
		logger.Warn(ctx, s.log, "Stripe not configured, card payment recorded without verification",
			zap.String("payment_intent_id", intentID))
		return s.success(intentID, ""), nil
	}

	pi, err := s.gateway.Retrieve(ctx, intentID)
	if err != nil {
		return model.PaymentResult{}, gatewayError(err, "Invalid payment intent")
	}
	if pi.Status != model.CardIntentSucceeded {
		return model.PaymentResult{}, wrapHTTPError(http.StatusBadRequest, "Payment not completed", ErrPaymentGateway)
	}
	if pi.Amount != total {
		return model.PaymentResult{}, wrapHTTPError(http.StatusBadRequest, "Payment amount does not match order total", ErrPaymentGateway)
	}
	if pi.UserID != 0 && pi.UserID != userID {
		return model.PaymentResult{}, wrapHTTPError(http.StatusBadRequest, "Invalid payment intent", ErrPaymentGateway)
	}
	return s.success(pi.ID, pi.Email), nil
}

func (s *cardStrategy) Reconcile(ctx context.Context, o model.Order) (model.PaymentResult, bool, error) {
	if s.gateway == nil || o.PaymentResult.ID == "" {
		return model.PaymentResult{}, false, nil
	}
	pi, err := s.gateway.Retrieve(ctx, o.PaymentResult.ID)
	if err != nil {
		return model.PaymentResult{}, false, err
	}
	if pi.Status != model.CardIntentSucceeded || pi.Amount != o.TotalPrice {
		return model.PaymentResult{}, false, nil
	}
	if pi.UserID != 0 && pi.UserID != o.UserID {
		return model.PaymentResult{}, false, nil
	}
	return s.success(pi.ID, pi.Email), true, nil
}

func (s *cardStrategy) success(id, email string) model.PaymentResult {
	return model.PaymentResult{
		ID:           id,
		Status:       model.PaymentStatusSuccess,
		UpdateTime:   s.now().UTC().Format(time.RFC3339),
		EmailAddress: email,
	}
}

type khqrStrategy struct {
	gateway QRGateway
	log     *zap.Logger
	now     func() time.Time
}

func (s *khqrStrategy) Method() model.PaymentMethod { return model.PaymentMethodKHQR }

func (s *khqrStrategy) Prepare(ctx context.Context, in PrepareInput) (PaymentPrep, error) {
	qr, err := s.gateway.Generate(ctx, in.Total, in.Reference)
	if err != nil {
		logger.Error(ctx, s.log, "KHQR generation failed", zap.String("reference", in.Reference), zap.Error(err))
		return PaymentPrep{}, gatewayError(err, "Failed to generate KHQR")
	}

	return PaymentPrep{
		Result: model.PaymentResult{
			ID:         qr.MD5,
			Status:     model.PaymentStatusPending,
			UpdateTime: s.now().UTC().Format(time.RFC3339),
		},
		QRCode: qr.QRString,
		QR:     &qr,
	}, nil
}

func (s *khqrStrategy) Reconcile(ctx context.Context, o model.Order) (model.PaymentResult, bool, error) {
	md5 := o.PaymentResult.ID
	if md5 == "" {
		return model.PaymentResult{}, false, nil
	}

	paid, err := s.gateway.Check(ctx, md5)
	if err != nil {
		return model.PaymentResult{}, false, err
	}
	if !paid {
		return model.PaymentResult{}, false, nil
	}
	return model.PaymentResult{
		ID:         md5,
		Status:     model.PaymentStatusSuccess,
		UpdateTime: s.now().UTC().Format(time.RFC3339),
	}, true, nil
}

// 代引きは配達時に入金扱い
type codStrategy struct{}

func (codStrategy) Method() model.PaymentMethod { return model.PaymentMethodCOD }

func (codStrategy) Prepare(ctx context.Context, in PrepareInput) (PaymentPrep, error) {
	return PaymentPrep{}, nil
}

func (codStrategy) Reconcile(ctx context.Context, o model.Order) (model.PaymentResult, bool, error) {
	return model.PaymentResult{}, false, nil
}
