package payment

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/metrics"
)

type StripeGateway struct {
	sc       *client.API
	currency string
	cb       *gobreaker.CircuitBreaker
	tracer   trace.Tracer
	metrics  *metrics.Metrics
}

func NewStripeGateway(cfg config.Payment) *StripeGateway {
	backends := stripe.NewBackends(newInstrumentedClient(cfg.Timeout))
	return &StripeGateway{
		sc:       client.New(cfg.StripeSecretKey, backends),
		currency: strings.ToLower(cfg.Currency),
		cb:       newBreaker("stripe"),
		tracer:   otel.Tracer("infra/payment/stripe"),
	}
}

func (g *StripeGateway) WithMetrics(m *metrics.Metrics) *StripeGateway {
	g.metrics = m
	return g
}

// userIDはmetadataに残し、注文時に本人のintentか確かめる
func (g *StripeGateway) CreateIntent(ctx context.Context, amount int64, userID int64) (model.CardIntent, error) {
	ctx, span := g.tracer.Start(ctx, "Stripe.CreateIntent")
	defer span.End()

	if amount < model.MinCardAmount {
		return model.CardIntent{}, fmt.Errorf("%w: amount must be at least %d cents", model.ErrPaymentRejected, model.MinCardAmount)
	}

	return executeWithBreaker(g.cb, g.metrics, func() (model.CardIntent, error) {
		params := &stripe.PaymentIntentParams{
			Amount:   stripe.Int64(amount),
			Currency: stripe.String(g.currency),
			AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
				Enabled: stripe.Bool(true),
			},
		}
		params.AddMetadata(metadataUserID, strconv.FormatInt(userID, 10))
		params.Context = ctx

		pi, err := g.sc.PaymentIntents.New(params)
		if err != nil {
			return model.CardIntent{}, classifyStripeError(err)
		}
		return toCardIntent(pi), nil
	})
}

func (g *StripeGateway) Retrieve(ctx context.Context, intentID string) (model.CardIntent, error) {
	ctx, span := g.tracer.Start(ctx, "Stripe.Retrieve")
	defer span.End()

	return executeWithBreaker(g.cb, g.metrics, func() (model.CardIntent, error) {
		params := &stripe.PaymentIntentParams{}
		params.Context = ctx

		pi, err := g.sc.PaymentIntents.Get(intentID, params)
		if err != nil {
			return model.CardIntent{}, classifyStripeError(err)
		}
		return toCardIntent(pi), nil
	})
}

const metadataUserID = "user_id"

func toCardIntent(pi *stripe.PaymentIntent) model.CardIntent {
	ci := model.CardIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Email:        pi.ReceiptEmail,
	}
	// ダッシュボードで作ったintentにはmetadataがない
	if v, ok := pi.Metadata[metadataUserID]; ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			ci.UserID = id
		}
	}
	return ci
}

// 4xx系（存在しないID、不正な金額）は呼び出し側の問題
func classifyStripeError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode >= 400 && se.HTTPStatusCode < 500 {
		return fmt.Errorf("%w: %s", model.ErrPaymentRejected, se.Msg)
	}
	return fmt.Errorf("stripe: %w", err)
}
