package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"petstore/internal/domain/model"
	repo "petstore/internal/repository"
)

// 商品カタログ（公開の一覧・詳細と管理者の登録・在庫設定）
type ProductUsecase struct {
	tx       repo.TransactionManager
	products repo.ProductRepository
	now      func() time.Time
}

func NewProductUsecase(tx repo.TransactionManager, products repo.ProductRepository) *ProductUsecase {
	return &ProductUsecase{tx: tx, products: products, now: time.Now}
}

// GET /products の条件
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

var productSorts = map[string]bool{"": true, "new": true, "price_asc": true, "price_desc": true, "top": true}

func (in ListProductsInput) query() (repo.ProductListQuery, error) {
	bad := func(msg string) (repo.ProductListQuery, error) {
		return repo.ProductListQuery{}, NewHTTPError(http.StatusBadRequest, msg)
	}
	switch {
	case in.Page < 1:
		return bad("invalid page")
	case in.Limit < 1 || in.Limit > 100:
		return bad("invalid limit")
	case len(in.Q) > 100:
		return bad("q too long")
	case in.MinPrice != nil && *in.MinPrice < 0:
		return bad("min_price must be >= 0")
	case in.MaxPrice != nil && *in.MaxPrice < 0:
		return bad("max_price must be >= 0")
	case in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice:
		return bad("min_price must be <= max_price")
	case !productSorts[in.Sort]:
		return bad("invalid sort")
	}
	return repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        strings.TrimSpace(in.Q),
		Category: strings.TrimSpace(in.Category),
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	}, nil
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) List(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	q, err := in.query()
	if err != nil {
		return ProductListOutput{}, err
	}
	items, total, err := u.products.ListPublic(ctx, q)
	if err != nil {
		return ProductListOutput{}, errDB()
	}
	if items == nil {
		items = []model.Product{}
	}
	return ProductListOutput{Items: items, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// 売れ筋（sold順）
func (u *ProductUsecase) Top(ctx context.Context, limit int) ([]model.Product, error) {
	if limit < 1 || limit > 20 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid limit")
	}
	items, err := u.products.ListTop(ctx, limit)
	if err != nil {
		return nil, errDB()
	}
	if items == nil {
		items = []model.Product{}
	}
	return items, nil
}

// 非公開の商品は存在しない扱い
func (u *ProductUsecase) Get(ctx context.Context, id int64) (model.Product, error) {
	if id <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	p, err := u.products.FindByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !p.IsActive) {
		return model.Product{}, errNotFound()
	}
	if err != nil {
		return model.Product{}, errDB()
	}
	return p, nil
}

// 管理者の商品登録・更新
type ProductInput struct {
	Name        string
	Description string
	Category    string
	ImageURL    string
	Price       int64
	Stock       int64
	IsActive    bool
}

func (in ProductInput) toModel() (model.Product, error) {
	p := model.Product{
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		ImageURL:    strings.TrimSpace(in.ImageURL),
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
	}
	switch {
	case p.Name == "":
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "name required")
	case p.Price < 0:
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	case p.Stock < 0:
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	return p, nil
}

func productErr(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	return errDB()
}

func (u *ProductUsecase) Create(ctx context.Context, adminUserID int64, in ProductInput) (int64, error) {
	if adminUserID <= 0 {
		return 0, errUnauthorized()
	}
	p, err := in.toModel()
	if err != nil {
		return 0, err
	}
	p.CreatedAt = u.now()
	p.UpdatedAt = p.CreatedAt

	created, err := u.products.Create(ctx, p)
	if err != nil {
		return 0, errDB()
	}
	return created.ID, nil
}

// 在庫はSetStockでだけ変える（Stockは無視）
func (u *ProductUsecase) Update(ctx context.Context, adminUserID, productID int64, in ProductInput) error {
	if adminUserID <= 0 {
		return errUnauthorized()
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	in.Stock = 0
	p, err := in.toModel()
	if err != nil {
		return err
	}
	p.ID = productID
	p.UpdatedAt = u.now()

	if err := u.products.Update(ctx, p); err != nil {
		return productErr(err)
	}
	return nil
}

// 論理削除。過去の注文明細はスナップショットなので影響しない
func (u *ProductUsecase) Delete(ctx context.Context, adminUserID, productID int64) error {
	if adminUserID <= 0 {
		return errUnauthorized()
	}
	if productID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	if err := u.products.SoftDelete(ctx, productID); err != nil {
		return productErr(err)
	}
	return nil
}

// 在庫の棚卸し。差分を調整履歴に、前後の値を監査ログに同じTxで残す
func (u *ProductUsecase) SetStock(ctx context.Context, adminUserID, productID, newStock int64, reason string) error {
	reason = strings.TrimSpace(reason)
	switch {
	case adminUserID <= 0:
		return errUnauthorized()
	case productID <= 0:
		return NewHTTPError(http.StatusBadRequest, "invalid product id")
	case newStock < 0:
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	case reason == "":
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, productID)
		if err != nil {
			return productErr(err)
		}
		if err := r.Inventory().SetStock(ctx, productID, newStock); err != nil {
			return productErr(err)
		}

		now := u.now()
		adj := model.NewInventoryAdjustment(productID, adminUserID, p.Stock, newStock, reason, now)
		if err := r.Inventory().CreateAdjustment(ctx, adj); err != nil {
			return errDB()
		}
		if err := r.AuditLogs().Create(ctx, model.NewAuditLog(
			adminUserID, model.AuditActionUpdateStock, model.AuditResourceProduct, productID,
			map[string]int64{"stock": p.Stock}, map[string]int64{"stock": newStock}, now,
		)); err != nil {
			return errDB()
		}
		return nil
	})
}
