package models

import "time"

// ProductType задает вид покупаемого продукта.
type ProductType string

const (
	ProductFullReport            ProductType = "full_report"
	ProductOrganizationalPackage ProductType = "organizational_package"
)

// PaymentStatus описывает состояние оплаты покупки.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// DiscountType задает способ расчета скидки.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// PackageStatus описывает состояние купленного пакета отчетов.
type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackageExpired   PackageStatus = "expired"
	PackageExhausted PackageStatus = "exhausted"
	PackageRefunded  PackageStatus = "refunded"
)

// PurchasedReportStatus — состояние отчета, выданного из пакета.
type PurchasedReportStatus string

const (
	PurchasedReportPending   PurchasedReportStatus = "pending"
	PurchasedReportGenerated PurchasedReportStatus = "generated"
	PurchasedReportDelivered PurchasedReportStatus = "delivered"
	PurchasedReportFailed    PurchasedReportStatus = "failed"
)

// Purchase — покупка пользователя. Все суммы в центах.
type Purchase struct {
	ID               string        `json:"id"`
	UserID           string        `json:"userId"`
	UserAssessmentID *string       `json:"userAssessmentId,omitempty"`
	DiscountCodeID   *string       `json:"discountCodeId,omitempty"`
	ProductType      ProductType   `json:"productType"`
	OriginalPrice    int64         `json:"originalPrice"`
	DiscountAmount   int64         `json:"discountAmount"`
	FinalPrice       int64         `json:"finalPrice"`
	PaymentStatus    PaymentStatus `json:"paymentStatus"`
	PaymentProvider  string        `json:"paymentProvider"`
	PaymentID        string        `json:"paymentId"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// DiscountCode — промокод. DiscountValue хранит проценты или центы в зависимости от типа.
type DiscountCode struct {
	ID                 string        `json:"id"`
	Code               string        `json:"code"`
	Description        string        `json:"description"`
	DiscountType       DiscountType  `json:"discountType"`
	DiscountValue      int64         `json:"discountValue"`
	MaxUses            *int          `json:"maxUses,omitempty"` // nil: без ограничения
	CurrentUses        int           `json:"currentUses"`
	IsActive           bool          `json:"isActive"`
	ValidFrom          time.Time     `json:"validFrom"`
	ValidUntil         *time.Time    `json:"validUntil,omitempty"`
	ApplicableProducts []ProductType `json:"applicableProducts"` // пустой список: любой продукт
	CreatedBy          *string       `json:"createdBy,omitempty"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// ReportPackage — продаваемый пакет отчетов.
type ReportPackage struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Description        string    `json:"description"`
	PackageType        string    `json:"packageType"`
	ReportCount        *int      `json:"reportCount,omitempty"` // nil: безлимитный пакет
	PricePerReport     *int64    `json:"pricePerReport,omitempty"`
	TotalPrice         int64     `json:"totalPrice"`
	DiscountPercentage int       `json:"discountPercentage"`
	ValidityDays       *int      `json:"validityDays,omitempty"` // nil: бессрочно
	IsActive           bool      `json:"isActive"`
	TargetCustomerType string    `json:"targetCustomerType"`
	StripePriceID      string    `json:"stripePriceId"`
	Features           []string  `json:"features"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// PackagePurchase — купленный пакет и остаток отчетов в нем.
type PackagePurchase struct {
	ID               string        `json:"id"`
	StripeCustomerID string        `json:"stripeCustomerId"`
	ReportPackageID  string        `json:"reportPackageId"`
	StripePaymentID  *string       `json:"stripePaymentId,omitempty"`
	DiscountCodeID   *string       `json:"discountCodeId,omitempty"`
	OriginalPrice    int64         `json:"originalPrice"`
	DiscountAmount   int64         `json:"discountAmount"`
	FinalPrice       int64         `json:"finalPrice"`
	ReportsRemaining *int          `json:"reportsRemaining,omitempty"` // nil: безлимитно
	TotalReports     *int          `json:"totalReports,omitempty"`
	PurchaseStatus   PackageStatus `json:"purchaseStatus"`
	ExpiresAt        *time.Time    `json:"expiresAt,omitempty"`
	PurchasedAt      time.Time     `json:"purchasedAt"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
}

// PurchasedReport — отчет, списанный с пакета.
type PurchasedReport struct {
	ID                string                `json:"id"`
	PackagePurchaseID string                `json:"packagePurchaseId"`
	UserAssessmentID  string                `json:"userAssessmentId"`
	ReportID          *string               `json:"reportId,omitempty"`
	ReportStatus      PurchasedReportStatus `json:"reportStatus"`
	AssignedTo        string                `json:"assignedTo"`
	AssignedBy        *string               `json:"assignedBy,omitempty"`
	GeneratedAt       *time.Time            `json:"generatedAt,omitempty"`
	DeliveredAt       *time.Time            `json:"deliveredAt,omitempty"`
	CreatedAt         time.Time             `json:"createdAt"`
	UpdatedAt         time.Time             `json:"updatedAt"`
}
