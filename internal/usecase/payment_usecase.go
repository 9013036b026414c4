package usecase

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"petstore/internal/domain/model"
	"petstore/internal/logger"
)

type PaymentUsecase struct {
	pricer *Pricer
	card   CardGateway
	log    *zap.Logger
}

// cardはnil可（Stripe未設定）
func NewPaymentUsecase(pricer *Pricer, card CardGateway, log *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{pricer: pricer, card: card, log: log}
}

type CreateIntentInput struct {
	Items         []CheckoutItem
	PromotionCode string
}

type CreateIntentOutput struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"payment_intent_id"`
	Amount          int64  `json:"amount"`
}

// CreateIntentはサーバー側で金額を計算してPaymentIntentを作る
func (u *PaymentUsecase) CreateIntent(ctx context.Context, userID int64, in CreateIntentInput) (CreateIntentOutput, error) {
	if userID <= 0 {
		return CreateIntentOutput{}, errUnauthorized()
	}
	if u.card == nil {
		return CreateIntentOutput{}, wrapHTTPError(http.StatusBadRequest, "Card payments are not available", ErrPaymentGateway)
	}

	priced, err := u.pricer.Price(ctx, in.Items, in.PromotionCode)
	if err != nil {
		return CreateIntentOutput{}, err
	}

	amount := priced.Breakdown.TotalPrice
	if amount < model.MinCardAmount {
		return CreateIntentOutput{}, wrapHTTPError(http.StatusBadRequest, "Amount must be at least $0.50", ErrPaymentGateway)
	}

	pi, err := u.card.CreateIntent(ctx, amount, userID)
	if err != nil {
		logger.Error(ctx, u.log, "create payment intent failed", zap.Int64("amount", amount), zap.Error(err))
		return CreateIntentOutput{}, gatewayError(err, "Invalid payment amount")
	}

	return CreateIntentOutput{
		ClientSecret:    pi.ClientSecret,
		PaymentIntentID: pi.ID,
		Amount:          amount,
	}, nil
}
