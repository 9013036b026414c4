package mail

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"petstore/internal/domain/model"
)

//go:embed templates/*.html
var templateFS embed.FS

const storeName = "PetStore+"

// 送信用に組み立てたメール
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Renderer struct {
	siteURL string
	tmpl    *template.Template
}

func NewRenderer(siteURL string) (*Renderer, error) {
	tmpl, err := template.New("mail").Funcs(template.FuncMap{
		"money": Money,
		"upper": func(s model.OrderStatus) string { return strings.ToUpper(string(s)) },
		"date":  func(t time.Time) string { return t.Format("2006-01-02") },
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse mail templates: %w", err)
	}
	return &Renderer{siteURL: strings.TrimRight(siteURL, "/"), tmpl: tmpl}, nil
}

// Moneyはセントを$12.34形式にする
func Money(cents int64) string {
	return "$" + decimal.New(cents, -2).StringFixed(2)
}

var statusColors = map[model.OrderStatus]string{
	model.OrderStatusProcessing: "#3B82F6",
	model.OrderStatusShipped:    "#8B5CF6",
	model.OrderStatusDelivered:  "#10B981",
	model.OrderStatusCancelled:  "#EF4444",
}

var statusMessages = map[model.OrderStatus]string{
	model.OrderStatusProcessing: "Your order is being processed and will be shipped soon.",
	model.OrderStatusShipped:    "Great news! Your order has been shipped and is on its way.",
	model.OrderStatusDelivered:  "Your package has been delivered. Enjoy your purchase!",
	model.OrderStatusCancelled:  "Your order has been cancelled. If you have any questions, please contact support.",
}

type notificationView struct {
	model.Notification
	Store         string
	SiteURL       string
	MethodLabel   string
	StatusColor   string
	StatusMessage string
	Offer         string
}

// Renderは通知の種類ごとに件名と本文を作る
func (r *Renderer) Render(n model.Notification) (Message, error) {
	v := notificationView{
		Notification: n,
		Store:        storeName,
		SiteURL:      r.siteURL,
		MethodLabel:  n.Method.Label(),
	}

	var subject string
	switch n.Kind {
	case model.NotificationOrderConfirmation:
		subject = fmt.Sprintf("Order Confirmation - %s", n.Reference)
	case model.NotificationPaymentPending:
		subject = fmt.Sprintf("Complete your payment - %s", n.Reference)
	case model.NotificationPaymentReceived:
		subject = fmt.Sprintf("Payment Received - %s", n.Reference)
	case model.NotificationStatusChanged:
		subject = fmt.Sprintf("Order Update: %s", n.Status)
		v.StatusColor = statusColors[n.Status]
		if v.StatusColor == "" {
			v.StatusColor = "#6B7280"
		}
		v.StatusMessage = statusMessages[n.Status]
		if v.StatusMessage == "" {
			v.StatusMessage = fmt.Sprintf("Your order status has been updated to %s.", n.Status)
		}
	case model.NotificationPromotionBroadcast:
		v.Offer = Offer(n.PromotionType, n.PromotionValue)
		subject = fmt.Sprintf("Special Offer: %s at %s!", v.Offer, storeName)
	default:
		return Message{}, fmt.Errorf("unknown notification kind: %q", n.Kind)
	}

	body, err := r.execute(string(n.Kind)+".html", v)
	if err != nil {
		return Message{}, err
	}
	return Message{To: n.To, Subject: subject, HTML: body}, nil
}

// Offerは割引の表示文言
func Offer(t model.PromotionType, value int64) string {
	switch t {
	case model.PromotionTypePercent:
		return fmt.Sprintf("%d%% OFF", value)
	case model.PromotionTypeFixed:
		return Money(value) + " OFF"
	default:
		return "FREE SHIPPING"
	}
}

type invoiceView struct {
	Store string
	Order model.Order
	Items []model.OrderItem
	User  model.User
}

// RenderInvoiceは請求書のHTMLを返す
func (r *Renderer) RenderInvoice(o model.Order, items []model.OrderItem, u model.User) (string, error) {
	return r.execute("invoice.html", invoiceView{Store: storeName, Order: o, Items: items, User: u})
}

func (r *Renderer) execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
