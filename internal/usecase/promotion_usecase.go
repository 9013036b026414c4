package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"petstore/internal/domain/model"
	"petstore/internal/domain/pricing"
	"petstore/internal/domain/promotion"
	"petstore/internal/logger"
	repo "petstore/internal/repository"
)

type PromotionUsecase struct {
	tx         repo.TransactionManager
	promotions repo.PromotionRepository
	policy     pricing.Policy
	log        *zap.Logger
	now        func() time.Time
}

func NewPromotionUsecase(
	tx repo.TransactionManager,
	promotions repo.PromotionRepository,
	policy pricing.Policy,
	log *zap.Logger,
) *PromotionUsecase {
	return &PromotionUsecase{
		tx:         tx,
		promotions: promotions,
		policy:     policy,
		log:        log,
		now:        time.Now,
	}
}

type ValidatePromotionOutput struct {
	Success        bool                `json:"success"`
	Code           string              `json:"code"`
	Type           model.PromotionType `json:"type"`
	Value          int64               `json:"value"`
	DiscountAmount int64               `json:"discount_amount"`
	Message        string              `json:"message"`
}

// Validateはカート小計に対してコードを検証する（利用回数は増やさない）
func (u *PromotionUsecase) Validate(ctx context.Context, code string, cartTotal int64) (ValidatePromotionOutput, error) {
	if strings.TrimSpace(code) == "" {
		return ValidatePromotionOutput{}, NewHTTPError(http.StatusBadRequest, "code required")
	}
	if cartTotal < 0 {
		return ValidatePromotionOutput{}, NewHTTPError(http.StatusBadRequest, "cart_total must be >= 0")
	}

	normalized := promotion.NormalizeCode(code)
	p, err := u.promotions.FindByCode(ctx, normalized)
	if errors.Is(err, repo.ErrNotFound) {
		return ValidatePromotionOutput{}, promotionError(promotion.Reject(promotion.ReasonNotFound, normalized))
	}
	if err != nil {
		return ValidatePromotionOutput{}, errDB()
	}

	if err := promotion.Validate(p, cartTotal, u.now()); err != nil {
		return ValidatePromotionOutput{}, promotionError(err)
	}

	discount := promotion.Discount(p, cartTotal, cartTotal, u.policy.Shipping(cartTotal))
	return ValidatePromotionOutput{
		Success:        true,
		Code:           p.Code,
		Type:           p.Type,
		Value:          p.Value,
		DiscountAmount: discount,
		Message:        "Coupon Applied!",
	}, nil
}

type PromotionInput struct {
	Code                 string
	Description          string
	Type                 model.PromotionType
	Value                int64
	StartDate            time.Time
	EndDate              time.Time
	UsageLimit           int64
	MinPurchase          int64
	CampaignType         model.CampaignType
	ApplicableProductIDs []int64
	IsActive             *bool
}

// nilは「変更しない」
type PromotionUpdateInput struct {
	Description          *string
	Type                 *model.PromotionType
	Value                *int64
	StartDate            *time.Time
	EndDate              *time.Time
	UsageLimit           *int64
	MinPurchase          *int64
	CampaignType         *model.CampaignType
	ApplicableProductIDs []int64
	IsActive             *bool
}

func checkPromotion(p model.Promotion) error {
	if !p.Type.Valid() {
		return NewHTTPError(http.StatusBadRequest, "invalid type")
	}
	switch p.CampaignType {
	case model.CampaignPromoCode, model.CampaignProductDiscount:
	default:
		return NewHTTPError(http.StatusBadRequest, "invalid campaign_type")
	}
	if !p.StartDate.Before(p.EndDate) {
		return NewHTTPError(http.StatusBadRequest, "End date must be after start date")
	}
	if p.Type != model.PromotionTypeShipping && p.Value <= 0 {
		return NewHTTPError(http.StatusBadRequest, "Discount value must be positive")
	}
	if p.Type == model.PromotionTypePercent && p.Value > 100 {
		return NewHTTPError(http.StatusBadRequest, "Percent discount cannot exceed 100")
	}
	if p.UsageLimit < 0 {
		return NewHTTPError(http.StatusBadRequest, "usage_limit must be >= 0")
	}
	if p.MinPurchase < 0 {
		return NewHTTPError(http.StatusBadRequest, "min_purchase must be >= 0")
	}
	return nil
}

func (u *PromotionUsecase) Create(ctx context.Context, adminUserID int64, in PromotionInput) (model.Promotion, error) {
	if adminUserID <= 0 {
		return model.Promotion{}, errUnauthorized()
	}

	code := promotion.NormalizeCode(in.Code)
	if code == "" || len(code) > 50 {
		return model.Promotion{}, NewHTTPError(http.StatusBadRequest, "invalid code")
	}

	p := model.Promotion{
		Code:                 code,
		Description:          strings.TrimSpace(in.Description),
		Type:                 in.Type,
		Value:                in.Value,
		StartDate:            in.StartDate,
		EndDate:              in.EndDate,
		IsActive:             true,
		UsageLimit:           in.UsageLimit,
		MinPurchase:          in.MinPurchase,
		CampaignType:         in.CampaignType,
		ApplicableProductIDs: in.ApplicableProductIDs,
		CreatedBy:            adminUserID,
	}
	if p.CampaignType == "" {
		p.CampaignType = model.CampaignPromoCode
	}
	if p.ApplicableProductIDs == nil {
		p.ApplicableProductIDs = []int64{}
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	if err := checkPromotion(p); err != nil {
		return model.Promotion{}, err
	}

	var created model.Promotion
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		created, err = r.Promotions().Create(ctx, p)
		if errors.Is(err, repo.ErrConflict) {
			return NewHTTPError(http.StatusBadRequest, "Code already exists")
		}
		if err != nil {
			return errDB()
		}
		return u.audit(ctx, r, adminUserID, model.AuditActionCreatePromotion, created.ID, nil, created)
	})
	if err != nil {
		return model.Promotion{}, err
	}
	return created, nil
}

func (u *PromotionUsecase) Update(ctx context.Context, adminUserID int64, id int64, in PromotionUpdateInput) (model.Promotion, error) {
	if adminUserID <= 0 {
		return model.Promotion{}, errUnauthorized()
	}
	if id <= 0 {
		return model.Promotion{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var updated model.Promotion
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Promotions().FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "Promotion not found")
		}
		if err != nil {
			return errDB()
		}

		p := before
		if in.Description != nil {
			p.Description = strings.TrimSpace(*in.Description)
		}
		if in.Type != nil {
			p.Type = *in.Type
		}
		if in.Value != nil {
			p.Value = *in.Value
		}
		if in.StartDate != nil {
			p.StartDate = *in.StartDate
		}
		if in.EndDate != nil {
			p.EndDate = *in.EndDate
		}
		if in.UsageLimit != nil {
			p.UsageLimit = *in.UsageLimit
		}
		if in.MinPurchase != nil {
			p.MinPurchase = *in.MinPurchase
		}
		if in.CampaignType != nil {
			p.CampaignType = *in.CampaignType
		}
		if in.ApplicableProductIDs != nil {
			p.ApplicableProductIDs = in.ApplicableProductIDs
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		if err := checkPromotion(p); err != nil {
			return err
		}

		if err := r.Promotions().Update(ctx, p); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return NewHTTPError(http.StatusNotFound, "Promotion not found")
			}
			return errDB()
		}
		updated = p
		return u.audit(ctx, r, adminUserID, model.AuditActionUpdatePromotion, id, before, p)
	})
	if err != nil {
		return model.Promotion{}, err
	}
	return updated, nil
}

func (u *PromotionUsecase) Delete(ctx context.Context, adminUserID int64, id int64) error {
	if adminUserID <= 0 {
		return errUnauthorized()
	}
	if id <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		before, err := r.Promotions().FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "Not Found")
		}
		if err != nil {
			return errDB()
		}
		if err := r.Promotions().Delete(ctx, id); err != nil {
			return errDB()
		}
		return u.audit(ctx, r, adminUserID, model.AuditActionDeletePromotion, id, before, nil)
	})
}

func (u *PromotionUsecase) List(ctx context.Context) ([]model.Promotion, error) {
	list, err := u.promotions.List(ctx)
	if err != nil {
		return nil, errDB()
	}
	return list, nil
}

type ProductDiscountOutput struct {
	Type  model.PromotionType `json:"type"`
	Value int64               `json:"value"`
	Code  string              `json:"code"`
}

// ProductDiscountsは商品ID→割引情報（商品バッジ用）
func (u *PromotionUsecase) ProductDiscounts(ctx context.Context) (map[string]ProductDiscountOutput, error) {
	list, err := u.promotions.ListActiveProductDiscounts(ctx, u.now())
	if err != nil {
		return nil, errDB()
	}

	out := make(map[string]ProductDiscountOutput)
	for _, p := range list {
		for _, id := range p.ApplicableProductIDs {
			out[idString(id)] = ProductDiscountOutput{Type: p.Type, Value: p.Value, Code: p.Code}
		}
	}
	return out, nil
}

type BroadcastOutput struct {
	Message    string `json:"message"`
	Recipients int    `json:"recipients"`
}

// Broadcastは全ユーザー分の通知をoutboxに積む。送信はworkerが行う
func (u *PromotionUsecase) Broadcast(ctx context.Context, adminUserID int64, id int64) (BroadcastOutput, error) {
	if adminUserID <= 0 {
		return BroadcastOutput{}, errUnauthorized()
	}
	if id <= 0 {
		return BroadcastOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var count int
	var code string
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Promotions().FindByID(ctx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "Promotion not found")
		}
		if err != nil {
			return errDB()
		}
		code = p.Code

		users, err := r.Users().ListReachable(ctx)
		if err != nil {
			return errDB()
		}
		if len(users) == 0 {
			return NewHTTPError(http.StatusBadRequest, "No users to email")
		}

		for _, user := range users {
			n := model.Notification{
				Kind:           model.NotificationPromotionBroadcast,
				To:             user.Email,
				Name:           user.FirstName,
				PromotionCode:  p.Code,
				PromotionType:  p.Type,
				PromotionValue: p.Value,
				PromotionEnds:  p.EndDate.Format("2006-01-02"),
			}
			if err := enqueueNotification(ctx, r.Outbox(), n); err != nil {
				return errDB()
			}
		}
		count = len(users)
		return nil
	})
	if err != nil {
		return BroadcastOutput{}, err
	}

	logger.Info(ctx, u.log, "Promotion broadcast queued", zap.String("code", code), zap.Int("recipients", count))
	return BroadcastOutput{
		Message:    fmt.Sprintf("Broadcast started for %d users.", count),
		Recipients: count,
	}, nil
}

func (u *PromotionUsecase) audit(ctx context.Context, r repo.TxRepos, actor int64, action model.AuditAction, id int64, before, after any) error {
	log := model.NewAuditLog(actor, action, model.AuditResourcePromotion, id, before, after, u.now())
	if err := r.AuditLogs().Create(ctx, log); err != nil {
		return errDB()
	}
	return nil
}
