package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/healthmap/healthmap-api/internal/models"
	"github.com/jackc/pgx/v5/pgtype"
)

const discountColumns = `id, code, description, discount_type, discount_value, max_uses, current_uses,
	is_active, valid_from, valid_until, applicable_products, created_by, created_at, updated_at`

// CreateDiscountCode сохраняет промокод.
func (s *Storage) CreateDiscountCode(ctx context.Context, d models.DiscountCode) error {
	const op = "storage.CreateDiscountCode"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	products := make([]string, 0, len(d.ApplicableProducts))
	for _, p := range d.ApplicableProducts {
		products = append(products, string(p))
	}

	query := `INSERT INTO discount_codes (id, code, description, discount_type, discount_value, max_uses,
				  current_uses, is_active, valid_from, valid_until, applicable_products, created_by,
				  created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := s.DB.ExecContext(ctx, query, d.ID, d.Code, nullString(d.Description), string(d.DiscountType),
		d.DiscountValue, nullInt(d.MaxUses), d.CurrentUses, d.IsActive, d.ValidFrom, nullTime(d.ValidUntil),
		products, nullStringPtr(d.CreatedBy), d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrConflict)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetDiscountCodeByCode ищет промокод по его тексту.
func (s *Storage) GetDiscountCodeByCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	const op = "storage.GetDiscountCodeByCode"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		d                      models.DiscountCode
		description, createdBy sql.NullString
		discountType           string
		maxUses                sql.NullInt64
		validUntil             sql.NullTime
		products               []string
	)
	typeMap := pgtype.NewMap()
	query := `SELECT ` + discountColumns + ` FROM discount_codes WHERE code = $1`
	err := s.DB.QueryRowContext(ctx, query, code).Scan(&d.ID, &d.Code, &description, &discountType,
		&d.DiscountValue, &maxUses, &d.CurrentUses, &d.IsActive, &d.ValidFrom, &validUntil,
		typeMap.SQLScanner(&products), &createdBy, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	d.Description = description.String
	d.DiscountType = models.DiscountType(discountType)
	d.MaxUses = intPtr(maxUses)
	d.ValidUntil = timePtr(validUntil)
	d.CreatedBy = stringPtr(createdBy)
	for _, p := range products {
		d.ApplicableProducts = append(d.ApplicableProducts, models.ProductType(p))
	}
	return &d, nil
}

// CreateReportPackage сохраняет пакет отчетов.
func (s *Storage) CreateReportPackage(ctx context.Context, p models.ReportPackage) error {
	const op = "storage.CreateReportPackage"

	features := p.Features
	if features == nil {
		features = []string{}
	}
	query := `INSERT INTO report_packages (id, name, description, package_type, report_count,
				  price_per_report, total_price, discount_percentage, validity_days, is_active,
				  target_customer_type, stripe_price_id, features, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := s.DB.ExecContext(ctx, query, p.ID, p.Name, nullString(p.Description), p.PackageType,
		nullInt(p.ReportCount), nullInt64(p.PricePerReport), p.TotalPrice, p.DiscountPercentage,
		nullInt(p.ValidityDays), p.IsActive, p.TargetCustomerType, nullString(p.StripePriceID), features,
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetReportPackage возвращает пакет отчетов по идентификатору.
func (s *Storage) GetReportPackage(ctx context.Context, id string) (*models.ReportPackage, error) {
	const op = "storage.GetReportPackage"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		p                            models.ReportPackage
		description, stripePriceID   sql.NullString
		reportCount, price, validity sql.NullInt64
		features                     []string
	)
	typeMap := pgtype.NewMap()
	query := `SELECT id, name, description, package_type, report_count, price_per_report, total_price,
				  discount_percentage, validity_days, is_active, target_customer_type, stripe_price_id,
				  features, created_at, updated_at
			  FROM report_packages WHERE id = $1`
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name, &description, &p.PackageType,
		&reportCount, &price, &p.TotalPrice, &p.DiscountPercentage, &validity, &p.IsActive,
		&p.TargetCustomerType, &stripePriceID, typeMap.SQLScanner(&features), &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.Description = description.String
	p.StripePriceID = stripePriceID.String
	p.ReportCount = intPtr(reportCount)
	p.PricePerReport = int64Ptr(price)
	p.ValidityDays = intPtr(validity)
	p.Features = features
	return &p, nil
}

// CreatePurchase сохраняет покупку.
func (s *Storage) CreatePurchase(ctx context.Context, p models.Purchase) error {
	const op = "storage.CreatePurchase"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO purchases (id, user_id, user_assessment_id, discount_code_id, product_type,
				  original_price, discount_amount, final_price, payment_status, payment_provider, payment_id,
				  created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := s.DB.ExecContext(ctx, query, p.ID, p.UserID, nullStringPtr(p.UserAssessmentID),
		nullStringPtr(p.DiscountCodeID), string(p.ProductType), p.OriginalPrice, p.DiscountAmount,
		p.FinalPrice, string(p.PaymentStatus), nullString(p.PaymentProvider), nullString(p.PaymentID),
		p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetPurchase возвращает покупку по идентификатору.
func (s *Storage) GetPurchase(ctx context.Context, id string) (*models.Purchase, error) {
	const op = "storage.GetPurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		p                     models.Purchase
		attemptID, discountID sql.NullString
		provider, paymentID   sql.NullString
		productType, status   string
	)
	query := `SELECT id, user_id, user_assessment_id, discount_code_id, product_type, original_price,
				  discount_amount, final_price, payment_status, payment_provider, payment_id,
				  created_at, updated_at
			  FROM purchases WHERE id = $1`
	err := s.DB.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.UserID, &attemptID, &discountID,
		&productType, &p.OriginalPrice, &p.DiscountAmount, &p.FinalPrice, &status, &provider, &paymentID,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.UserAssessmentID = stringPtr(attemptID)
	p.DiscountCodeID = stringPtr(discountID)
	p.ProductType = models.ProductType(productType)
	p.PaymentStatus = models.PaymentStatus(status)
	p.PaymentProvider = provider.String
	p.PaymentID = paymentID.String
	return &p, nil
}

// UpdatePurchaseStatus переводит покупку из статуса from в статус to и
// записывает идентификаторы платежа. При переходе в completed счетчик
// использований промокода увеличивается в той же транзакции. Если покупка
// не в статусе from, возвращается ErrConflict.
func (s *Storage) UpdatePurchaseStatus(ctx context.Context, id string, from, to models.PaymentStatus,
	provider, paymentID string, now time.Time) error {
	const op = "storage.UpdatePurchaseStatus"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var discountID sql.NullString
		err := tx.QueryRowContext(ctx, `UPDATE purchases
			SET payment_status = $3,
				payment_provider = COALESCE($4, payment_provider),
				payment_id = COALESCE($5, payment_id),
				updated_at = $6
			WHERE id = $1 AND payment_status = $2
			RETURNING discount_code_id`,
			id, string(from), string(to), nullString(provider), nullString(paymentID), now).Scan(&discountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrConflict
			}
			return err
		}

		if to == models.PaymentCompleted && discountID.Valid {
			_, err = tx.ExecContext(ctx, `UPDATE discount_codes
				SET current_uses = current_uses + 1, updated_at = $2
				WHERE id = $1`, discountID.String, now)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// HasCompletedPurchase сообщает, оплачен ли пользователем полный отчет по попытке.
func (s *Storage) HasCompletedPurchase(ctx context.Context, userID, userAssessmentID string) (bool, error) {
	const op = "storage.HasCompletedPurchase"

	var ok bool
	err := s.DB.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM purchases
			WHERE user_id = $1 AND user_assessment_id = $2 AND payment_status = 'completed')`,
		userID, userAssessmentID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// GetPackagePurchase возвращает пакет, купленный пользователем. Чужой пакет
// не отличается от отсутствующего.
func (s *Storage) GetPackagePurchase(ctx context.Context, userID, id string) (*models.PackagePurchase, error) {
	const op = "storage.GetPackagePurchase"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var (
		p                     models.PackagePurchase
		paymentID, discountID sql.NullString
		remaining, total      sql.NullInt64
		status                string
		expiresAt             sql.NullTime
	)
	query := `SELECT pp.id, pp.stripe_customer_id, pp.report_package_id, pp.stripe_payment_id,
				  pp.discount_code_id, pp.original_price, pp.discount_amount, pp.final_price,
				  pp.reports_remaining, pp.total_reports, pp.purchase_status, pp.expires_at,
				  pp.purchased_at, pp.created_at, pp.updated_at
			  FROM package_purchases pp
			  JOIN stripe_customers sc ON sc.id = pp.stripe_customer_id
			  WHERE pp.id = $1 AND sc.user_id = $2`
	err := s.DB.QueryRowContext(ctx, query, id, userID).Scan(&p.ID, &p.StripeCustomerID, &p.ReportPackageID,
		&paymentID, &discountID, &p.OriginalPrice, &p.DiscountAmount, &p.FinalPrice, &remaining, &total,
		&status, &expiresAt, &p.PurchasedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	p.StripePaymentID = stringPtr(paymentID)
	p.DiscountCodeID = stringPtr(discountID)
	p.ReportsRemaining = intPtr(remaining)
	p.TotalReports = intPtr(total)
	p.PurchaseStatus = models.PackageStatus(status)
	p.ExpiresAt = timePtr(expiresAt)
	return &p, nil
}

// ConsumePackageReport списывает один отчет с пакета пользователя и создает
// запись о выданном отчете. Списание выполняется одним условным UPDATE: пакет
// должен быть активен, не просрочен и иметь остаток (NULL означает безлимит).
// Если условие не выполнено, возвращается ErrConflict. Попытка должна
// принадлежать владельцу пакета или идти по трекингу организации, на которую
// оформлен клиент; иначе ErrNotFound и списание откатывается.
func (s *Storage) ConsumePackageReport(ctx context.Context, userID string, pr models.PurchasedReport,
	now time.Time) error {
	const op = "storage.ConsumePackageReport"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE package_purchases pp
			SET reports_remaining = pp.reports_remaining - 1,
				purchase_status = CASE WHEN pp.reports_remaining = 1 THEN 'exhausted' ELSE pp.purchase_status END,
				updated_at = $3
			FROM stripe_customers sc
			WHERE pp.id = $1
				AND sc.id = pp.stripe_customer_id
				AND sc.user_id = $2
				AND pp.purchase_status = 'active'
				AND (pp.expires_at IS NULL OR pp.expires_at > $3)
				AND (pp.reports_remaining IS NULL OR pp.reports_remaining > 0)`,
			pr.PackagePurchaseID, userID, now)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConflict
		}

		var eligible bool
		err = tx.QueryRowContext(ctx, `SELECT EXISTS (
				SELECT 1 FROM user_assessments ua
				JOIN package_purchases pp ON pp.id = $2
				JOIN stripe_customers sc ON sc.id = pp.stripe_customer_id
				WHERE ua.id = $1
					AND (ua.user_id = sc.user_id
						OR (sc.organization_tracking_id IS NOT NULL
							AND ua.organization_tracking_id = sc.organization_tracking_id)))`,
			pr.UserAssessmentID, pr.PackagePurchaseID).Scan(&eligible)
		if err != nil {
			return err
		}
		if !eligible {
			return ErrNotFound
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO purchased_reports (id, package_purchase_id,
				user_assessment_id, report_status, assigned_to, assigned_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			pr.ID, pr.PackagePurchaseID, pr.UserAssessmentID, string(pr.ReportStatus),
			nullString(pr.AssignedTo), nullStringPtr(pr.AssignedBy), now)
		return err
	})
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// MarkPackageExpired переводит активный пакет с истекшим сроком в expired.
func (s *Storage) MarkPackageExpired(ctx context.Context, id string, now time.Time) error {
	const op = "storage.MarkPackageExpired"

	_, err := s.DB.ExecContext(ctx, `UPDATE package_purchases
		SET purchase_status = 'expired', updated_at = $2
		WHERE id = $1 AND purchase_status = 'active' AND expires_at IS NOT NULL AND expires_at <= $2`,
		id, now)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListPurchasedReports возвращает отчеты, выданные из пакета.
func (s *Storage) ListPurchasedReports(ctx context.Context, packagePurchaseID string) ([]models.PurchasedReport, error) {
	const op = "storage.ListPurchasedReports"

	rows, err := s.DB.QueryContext(ctx, `SELECT id, package_purchase_id, user_assessment_id, report_id,
			report_status, assigned_to, assigned_by, generated_at, delivered_at, created_at, updated_at
		FROM purchased_reports WHERE package_purchase_id = $1 ORDER BY created_at, id`, packagePurchaseID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []models.PurchasedReport
	for rows.Next() {
		var (
			r                                models.PurchasedReport
			reportID, assignedTo, assignedBy sql.NullString
			status                           string
			generatedAt, deliveredAt         sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.PackagePurchaseID, &r.UserAssessmentID, &reportID, &status,
			&assignedTo, &assignedBy, &generatedAt, &deliveredAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		r.ReportID = stringPtr(reportID)
		r.ReportStatus = models.PurchasedReportStatus(status)
		r.AssignedTo = assignedTo.String
		r.AssignedBy = stringPtr(assignedBy)
		r.GeneratedAt = timePtr(generatedAt)
		r.DeliveredAt = timePtr(deliveredAt)
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
