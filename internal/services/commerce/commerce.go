// Package services содержит коммерческую логику: промокоды, покупки отчетов
// и списание отчетов с купленных пакетов.
package services

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/healthmap/healthmap-api/internal/lib/apperror"
	"github.com/healthmap/healthmap-api/internal/lib/rabbitmq"
	"github.com/healthmap/healthmap-api/internal/lib/sl"
	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/healthmap/healthmap-api/internal/storage"
)

var (
	ErrDiscountInvalid   = apperror.BadRequest("Invalid or expired discount code")
	ErrProductInvalid    = apperror.BadRequest("Invalid product")
	ErrPriceUnavailable  = apperror.BadRequest("Product is not available for purchase")
	ErrAttemptNotFound   = apperror.NotFound("Assessment attempt not found")
	ErrPackageNotFound   = apperror.NotFound("Report package not found")
	ErrPurchaseNotFound  = apperror.NotFound("Purchase not found")
	ErrInvalidTransition = apperror.Conflict("Invalid payment status transition")
	ErrPackageExhausted  = apperror.Conflict("Report package has no reports left")
	ErrPackageInactive   = apperror.Conflict("Report package is not active")
	ErrPackageExpired    = apperror.Conflict("Report package has expired")
	ErrInternal          = apperror.New(http.StatusInternalServerError, "Internal server error", nil)
)

// transitions — допустимые переходы статуса оплаты.
var transitions = map[models.PaymentStatus][]models.PaymentStatus{
	models.PaymentPending:   {models.PaymentCompleted, models.PaymentFailed},
	models.PaymentCompleted: {models.PaymentRefunded},
}

// Repository описывает хранилище коммерческих записей.
type Repository interface {
	GetDiscountCodeByCode(ctx context.Context, code string) (*models.DiscountCode, error)
	GetUserAssessment(ctx context.Context, id string) (*models.UserAssessment, error)
	GetAssessment(ctx context.Context, id string) (*models.Assessment, error)
	GetReportPackage(ctx context.Context, id string) (*models.ReportPackage, error)
	CreatePurchase(ctx context.Context, p models.Purchase) error
	GetPurchase(ctx context.Context, id string) (*models.Purchase, error)
	UpdatePurchaseStatus(ctx context.Context, id string, from, to models.PaymentStatus,
		provider, paymentID string, now time.Time) error
	GetPackagePurchase(ctx context.Context, userID, id string) (*models.PackagePurchase, error)
	ConsumePackageReport(ctx context.Context, userID string, pr models.PurchasedReport, now time.Time) error
	MarkPackageExpired(ctx context.Context, id string, now time.Time) error
}

// EventPublisher публикует доменные события.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// PurchaseInput — запрос на покупку.
type PurchaseInput struct {
	ProductType      models.ProductType `json:"productType" validate:"required,oneof=full_report organizational_package"`
	UserAssessmentID *string            `json:"userAssessmentId,omitempty"`
	ReportPackageID  *string            `json:"reportPackageId,omitempty"`
	DiscountCode     string             `json:"discountCode,omitempty" validate:"max=64"`
}

// CommerceService реализует покупки и пакеты отчетов.
type CommerceService struct {
	repo      Repository
	publisher EventPublisher
	log       *slog.Logger
	now       func() time.Time
}

// NewCommerceService создает новый экземпляр CommerceService.
func NewCommerceService(repo Repository, publisher EventPublisher, log *slog.Logger) *CommerceService {
	return &CommerceService{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Quote считает скидку по промокоду для продукта с ценой price (в центах).
// Процентная скидка округляется вниз, итоговая скидка не превышает цену.
func Quote(d *models.DiscountCode, product models.ProductType, price int64, now time.Time) (int64, error) {
	if d == nil || !d.IsActive {
		return 0, ErrDiscountInvalid
	}
	if now.Before(d.ValidFrom) || (d.ValidUntil != nil && !now.Before(*d.ValidUntil)) {
		return 0, ErrDiscountInvalid
	}
	if d.MaxUses != nil && d.CurrentUses >= *d.MaxUses {
		return 0, ErrDiscountInvalid
	}
	if len(d.ApplicableProducts) > 0 && !slices.Contains(d.ApplicableProducts, product) {
		return 0, ErrDiscountInvalid
	}

	var discount int64
	switch d.DiscountType {
	case models.DiscountPercentage:
		discount = price * d.DiscountValue / 100
	case models.DiscountFixed:
		discount = d.DiscountValue
	default:
		return 0, ErrDiscountInvalid
	}
	return min(max(discount, 0), price), nil
}

// CreatePurchase создает ожидающую оплаты покупку с учетом промокода.
func (s *CommerceService) CreatePurchase(ctx context.Context, userID string, in PurchaseInput) (*models.Purchase, error) {
	const op = "services.CreatePurchase"
	log := s.log.With(sl.Op(op), slog.String("product_type", string(in.ProductType)))

	price, err := s.price(ctx, userID, in)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	p := models.Purchase{
		ID:               uuid.NewString(),
		UserID:           userID,
		UserAssessmentID: in.UserAssessmentID,
		ProductType:      in.ProductType,
		OriginalPrice:    price,
		FinalPrice:       price,
		PaymentStatus:    models.PaymentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if in.DiscountCode != "" {
		d, err := s.repo.GetDiscountCodeByCode(ctx, in.DiscountCode)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrDiscountInvalid
			}
			log.Error("failed to get discount code", sl.Err(err))
			return nil, ErrInternal
		}
		discount, err := Quote(d, in.ProductType, price, now)
		if err != nil {
			return nil, err
		}
		p.DiscountCodeID = &d.ID
		p.DiscountAmount = discount
		p.FinalPrice = price - discount
	}

	if err := s.repo.CreatePurchase(ctx, p); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrAttemptNotFound
		}
		log.Error("failed to create purchase", sl.Err(err))
		return nil, ErrInternal
	}

	log.Info("purchase created", slog.String("purchase_id", p.ID), slog.Int64("final_price", p.FinalPrice))
	return &p, nil
}

// price определяет базовую цену продукта.
func (s *CommerceService) price(ctx context.Context, userID string, in PurchaseInput) (int64, error) {
	const op = "services.price"

	switch in.ProductType {
	case models.ProductFullReport:
		if in.UserAssessmentID == nil {
			return 0, ErrProductInvalid
		}
		ua, err := s.repo.GetUserAssessment(ctx, *in.UserAssessmentID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return 0, ErrAttemptNotFound
			}
			s.log.Error("failed to get attempt", sl.Op(op), sl.Err(err))
			return 0, ErrInternal
		}
		if ua.UserID != userID {
			return 0, ErrAttemptNotFound
		}
		a, err := s.repo.GetAssessment(ctx, ua.AssessmentID)
		if err != nil {
			s.log.Error("failed to get assessment", sl.Op(op), sl.Err(err))
			return 0, ErrInternal
		}
		if a.PaidReportPrice == nil {
			return 0, ErrPriceUnavailable
		}
		return *a.PaidReportPrice, nil

	case models.ProductOrganizationalPackage:
		if in.ReportPackageID == nil {
			return 0, ErrProductInvalid
		}
		pkg, err := s.repo.GetReportPackage(ctx, *in.ReportPackageID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return 0, ErrPackageNotFound
			}
			s.log.Error("failed to get report package", sl.Op(op), sl.Err(err))
			return 0, ErrInternal
		}
		if !pkg.IsActive {
			return 0, ErrPriceUnavailable
		}
		return pkg.TotalPrice, nil

	default:
		return 0, ErrProductInvalid
	}
}

// UpdatePaymentStatus переводит покупку пользователя в новый статус оплаты.
// После успешной оплаты публикуется событие purchase.completed.
func (s *CommerceService) UpdatePaymentStatus(ctx context.Context, userID, purchaseID string,
	status models.PaymentStatus, provider, paymentID string) (*models.Purchase, error) {
	const op = "services.UpdatePaymentStatus"
	log := s.log.With(sl.Op(op), slog.String("purchase_id", purchaseID))

	p, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPurchaseNotFound
		}
		log.Error("failed to get purchase", sl.Err(err))
		return nil, ErrInternal
	}
	if p.UserID != userID {
		return nil, ErrPurchaseNotFound
	}
	if !slices.Contains(transitions[p.PaymentStatus], status) {
		return nil, ErrInvalidTransition
	}

	now := s.now().UTC()
	err = s.repo.UpdatePurchaseStatus(ctx, p.ID, p.PaymentStatus, status, provider, paymentID, now)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, ErrInvalidTransition
		}
		log.Error("failed to update purchase status", sl.Err(err))
		return nil, ErrInternal
	}

	p.PaymentStatus = status
	if provider != "" {
		p.PaymentProvider = provider
	}
	if paymentID != "" {
		p.PaymentID = paymentID
	}
	p.UpdatedAt = now

	if status == models.PaymentCompleted {
		event := rabbitmq.PurchaseCompleted{
			PurchaseID:       p.ID,
			UserID:           p.UserID,
			ProductType:      string(p.ProductType),
			UserAssessmentID: p.UserAssessmentID,
			FinalPrice:       p.FinalPrice,
		}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingPurchaseCompleted, event); err != nil {
			log.Warn("failed to publish purchase event", sl.Err(err))
		}
	}

	log.Info("payment status updated", slog.String("status", string(status)))
	return p, nil
}

// ConsumeReport списывает один отчет с пакета пользователя под попытку
// userAssessmentID. Пакет должен принадлежать пользователю, быть активным,
// не просроченным и иметь остаток. Попытка должна быть своей или пройденной
// по трекингу организации пакета, иначе ErrAttemptNotFound.
func (s *CommerceService) ConsumeReport(ctx context.Context, userID, packagePurchaseID, userAssessmentID,
	assignedTo string) (*models.PurchasedReport, error) {
	const op = "services.ConsumeReport"
	log := s.log.With(sl.Op(op), slog.String("package_purchase_id", packagePurchaseID))

	now := s.now().UTC()
	pr := models.PurchasedReport{
		ID:                uuid.NewString(),
		PackagePurchaseID: packagePurchaseID,
		UserAssessmentID:  userAssessmentID,
		ReportStatus:      models.PurchasedReportPending,
		AssignedTo:        assignedTo,
		AssignedBy:        &userID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err := s.repo.ConsumePackageReport(ctx, userID, pr, now)
	switch {
	case err == nil:
		log.Info("report consumed", slog.String("user_assessment_id", userAssessmentID))
		return &pr, nil
	case errors.Is(err, storage.ErrNotFound):
		return nil, ErrAttemptNotFound
	case errors.Is(err, storage.ErrConflict):
		return nil, s.classifyPackage(ctx, userID, packagePurchaseID, now)
	default:
		log.Error("failed to consume report", sl.Err(err))
		return nil, ErrInternal
	}
}

// classifyPackage объясняет, почему списание с пакета не прошло. Просроченный
// активный пакет переводится в expired.
func (s *CommerceService) classifyPackage(ctx context.Context, userID, id string, now time.Time) error {
	const op = "services.classifyPackage"
	log := s.log.With(sl.Op(op), slog.String("package_purchase_id", id))

	pp, err := s.repo.GetPackagePurchase(ctx, userID, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrPackageNotFound
		}
		log.Error("failed to get package purchase", sl.Err(err))
		return ErrInternal
	}

	switch {
	case pp.PurchaseStatus == models.PackageExpired:
		return ErrPackageExpired
	case pp.PurchaseStatus == models.PackageExhausted:
		return ErrPackageExhausted
	case pp.PurchaseStatus != models.PackageActive:
		return ErrPackageInactive
	case pp.ExpiresAt != nil && !now.Before(*pp.ExpiresAt):
		if err := s.repo.MarkPackageExpired(ctx, pp.ID, now); err != nil {
			log.Warn("failed to mark package expired", sl.Err(err))
		}
		return ErrPackageExpired
	case pp.ReportsRemaining != nil && *pp.ReportsRemaining <= 0:
		return ErrPackageExhausted
	default:
		// Пакет изменился между UPDATE и чтением.
		return ErrPackageExhausted
	}
}
