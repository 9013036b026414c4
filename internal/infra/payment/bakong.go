package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"petstore/internal/config"
	"petstore/internal/domain/model"
	"petstore/internal/metrics"
)

// Bakong Open APIの取引照会クライアント
type BakongClient struct {
	baseURL string
	token   string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	metrics *metrics.Metrics
}

func NewBakongClient(cfg config.Payment) *BakongClient {
	return &BakongClient{
		baseURL: strings.TrimRight(cfg.BakongBaseURL, "/"),
		token:   cfg.BakongToken,
		http:    newInstrumentedClient(cfg.Timeout),
		cb:      newBreaker("bakong"),
	}
}

func (c *BakongClient) WithMetrics(m *metrics.Metrics) *BakongClient {
	c.metrics = m
	return c
}

type checkTransactionRequest struct {
	MD5 string `json:"md5"`
}

type checkTransactionResponse struct {
	ResponseCode    int             `json:"responseCode"`
	ResponseMessage string          `json:"responseMessage"`
	ErrorCode       *int            `json:"errorCode"`
	Data            json.RawMessage `json:"data"`
}

// CheckTransactionByMD5は振込が完了していればtrueを返す
func (c *BakongClient) CheckTransactionByMD5(ctx context.Context, md5 string) (bool, error) {
	// HTTPのspanはotelhttpが作る。呼び出し元のspanにmd5を付けておく
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("khqr.md5", md5))

	return executeWithBreaker(c.cb, c.metrics, func() (bool, error) {
		return c.check(ctx, md5)
	})
}

func (c *BakongClient) check(ctx context.Context, md5 string) (bool, error) {
	body, err := json.Marshal(checkTransactionRequest{MD5: md5})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/check_transaction_by_md5", bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("bakong request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return false, fmt.Errorf("bakong status %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("%w: bakong status %d", model.ErrPaymentRejected, resp.StatusCode)
	}

	var out checkTransactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("bakong decode: %w", err)
	}

	// 0=成功。それ以外は未入金（見つからない等）
	return out.ResponseCode == 0 && len(out.Data) > 0 && string(out.Data) != "null", nil
}

func isRejected(err error) bool {
	return errors.Is(err, model.ErrPaymentRejected)
}

// 外向きHTTPはotelhttpで計装する
func newInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Host + r.URL.Path
			}),
		),
	}
}
