package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/fanjava-backend/pkg/config"
	"github.com/angelmondragon/fanjava-backend/pkg/db"
	"github.com/angelmondragon/fanjava-backend/pkg/db/models"
	"github.com/angelmondragon/fanjava-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fanjava-backend/pkg/errors"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox"
	"github.com/angelmondragon/fanjava-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fanjava-backend/pkg/pagination"
)

const (
	minBodyLength = 10
	minRating     = 1
	maxRating     = 5
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PurchaseChecker answers whether a client received a product.
type PurchaseChecker interface {
	HasDeliveredPurchase(ctx context.Context, clientID, productID uuid.UUID) (bool, error)
}

// Service is the single entry point for review writes and the rating aggregate.
type Service interface {
	Create(ctx context.Context, clientID uuid.UUID, input CreateInput) (*ReviewDTO, error)
	Update(ctx context.Context, actor Actor, reviewID uuid.UUID, input UpdateInput) (*ReviewDTO, error)
	Delete(ctx context.Context, actor Actor, reviewID uuid.UUID) error
	Approve(ctx context.Context, actor Actor, reviewID uuid.UUID) (*ReviewDTO, error)
	ListForProduct(ctx context.Context, productID, viewer uuid.UUID, params pagination.Params) (*ReviewList, error)
	ListPending(ctx context.Context, actor Actor, params pagination.Params) (*ReviewList, error)
	AverageRating(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

type CreateInput struct {
	ProductID uuid.UUID
	Rating    int
	Title     *string
	Body      string
}

// UpdateInput carries the fields being edited; nil fields are kept.
type UpdateInput struct {
	Rating *int
	Title  *string
	Body   *string
}

type ReviewDTO struct {
	ID         uuid.UUID  `json:"id"`
	ProductID  uuid.UUID  `json:"product_id"`
	ClientID   uuid.UUID  `json:"client_id"`
	Rating     int        `json:"rating"`
	Title      *string    `json:"title,omitempty"`
	Body       string     `json:"body"`
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

type ReviewList struct {
	Reviews    []ReviewDTO `json:"reviews"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// RatingSummary is the maintained product aggregate.
type RatingSummary struct {
	ProductID uuid.UUID       `json:"product_id"`
	Average   decimal.Decimal `json:"average"`
	Count     int             `json:"count"`
}

type service struct {
	repo      *Repository
	tx        txRunner
	purchases PurchaseChecker
	outbox    outbox.Emitter
	cfg       config.ReviewsConfig
	now       func() time.Time
}

func NewService(repo *Repository, tx txRunner, purchases PurchaseChecker, emitter outbox.Emitter, cfg config.ReviewsConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if cfg.RequirePurchase && purchases == nil {
		return nil, fmt.Errorf("purchase checker required when purchases are verified")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		purchases: purchases,
		outbox:    emitter,
		cfg:       cfg,
		now:       time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, clientID uuid.UUID, input CreateInput) (*ReviewDTO, error) {
	if clientID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "client identity missing")
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product_id required")
	}
	body, err := validateContent(input.Rating, input.Body)
	if err != nil {
		return nil, err
	}
	if s.cfg.RequirePurchase {
		bought, err := s.purchases.HasDeliveredPurchase(ctx, clientID, input.ProductID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verify purchase")
		}
		if !bought {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only clients who received this product can review it")
		}
	}

	review := &models.Review{
		ProductID: input.ProductID,
		ClientID:  clientID,
		Rating:    input.Rating,
		Title:     trimOptional(input.Title),
		Body:      body,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := s.product(ctx, repo, input.ProductID)
		if err != nil {
			return err
		}
		if err := repo.Create(ctx, review); err != nil {
			if db.IsUniqueViolation(err, uniqueReviewConstraint) {
				return pkgerrors.New(pkgerrors.CodeConflict, "you already reviewed this product")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
		}
		if s.cfg.AutoApprove {
			return s.approve(ctx, tx, repo, review, product, uuid.Nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newReviewDTO(review)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, actor Actor, reviewID uuid.UUID, input UpdateInput) (*ReviewDTO, error) {
	var review *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		review, err = s.locked(ctx, repo, reviewID)
		if err != nil {
			return err
		}
		if review.ClientID != actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the author can edit a review")
		}

		oldRating := review.Rating
		if input.Rating != nil {
			review.Rating = *input.Rating
		}
		if input.Body != nil {
			review.Body = *input.Body
		}
		if input.Title != nil {
			review.Title = trimOptional(input.Title)
		}
		if review.Body, err = validateContent(review.Rating, review.Body); err != nil {
			return err
		}

		sumDelta, countDelta := 0, 0
		if review.Approved {
			if s.cfg.ReapproveOnEdit {
				review.Approved = false
				review.ApprovedAt = nil
				review.ApprovedBy = nil
				sumDelta, countDelta = -oldRating, -1
			} else {
				sumDelta = review.Rating - oldRating
			}
		}
		review.UpdatedAt = s.now().UTC()
		if err := repo.Save(ctx, review); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
		}
		if _, err := repo.ApplyRating(ctx, review.ProductID, sumDelta, countDelta); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product rating")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dto := newReviewDTO(review)
	return &dto, nil
}

func (s *service) Delete(ctx context.Context, actor Actor, reviewID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		review, err := s.locked(ctx, repo, reviewID)
		if err != nil {
			return err
		}
		if review.ClientID != actor.UserID && !actor.Role.IsModerator() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the author or a moderator can delete a review")
		}
		if err := repo.Delete(ctx, review.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
		}
		if review.Approved {
			if _, err := repo.ApplyRating(ctx, review.ProductID, -review.Rating, -1); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product rating")
			}
		}
		return nil
	})
}

// Approve publishes a pending review. Approving an approved review changes nothing.
func (s *service) Approve(ctx context.Context, actor Actor, reviewID uuid.UUID) (*ReviewDTO, error) {
	if !actor.Role.IsModerator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "moderator role required")
	}
	var review *models.Review
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		review, err = s.locked(ctx, repo, reviewID)
		if err != nil {
			return err
		}
		if review.Approved {
			return nil
		}
		product, err := s.product(ctx, repo, review.ProductID)
		if err != nil {
			return err
		}
		return s.approve(ctx, tx, repo, review, product, actor.UserID)
	})
	if err != nil {
		return nil, err
	}
	dto := newReviewDTO(review)
	return &dto, nil
}

func (s *service) approve(ctx context.Context, tx *gorm.DB, repo *Repository, review *models.Review, product *models.Product, moderator uuid.UUID) error {
	now := s.now().UTC()
	review.ApprovedAt = &now
	if moderator != uuid.Nil {
		review.ApprovedBy = &moderator
	}
	flipped, err := repo.MarkApproved(ctx, review)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "approve review")
	}
	if !flipped {
		return nil
	}
	review.Approved = true
	if _, err := repo.ApplyRating(ctx, review.ProductID, review.Rating, 1); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product rating")
	}

	var actor *outbox.ActorRef
	if moderator != uuid.Nil {
		actor = &outbox.ActorRef{UserID: moderator, Role: enums.UserRoleAdmin}
	}
	event := outbox.DomainEvent{
		EventType:     enums.EventReviewApproved,
		AggregateType: enums.AggregateReview,
		AggregateID:   review.ID,
		Actor:         actor,
		OccurredAt:    now,
		Data: payloads.ReviewApprovedEvent{
			ReviewID:  review.ID,
			ProductID: review.ProductID,
			VendorID:  product.VendorID,
			Rating:    review.Rating,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit review approved event")
	}
	return nil
}

func (s *service) ListForProduct(ctx context.Context, productID, viewer uuid.UUID, params pagination.Params) (*ReviewList, error) {
	if _, err := s.product(ctx, s.repo, productID); err != nil {
		return nil, err
	}
	return s.list(ctx, ListFilter{ProductID: &productID, Viewer: viewer, ApprovedOnly: true}, params)
}

func (s *service) ListPending(ctx context.Context, actor Actor, params pagination.Params) (*ReviewList, error) {
	if !actor.Role.IsModerator() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "moderator role required")
	}
	return s.list(ctx, ListFilter{PendingOnly: true}, params)
}

func (s *service) AverageRating(ctx context.Context, productID uuid.UUID) (*RatingSummary, error) {
	product, err := s.product(ctx, s.repo, productID)
	if err != nil {
		return nil, err
	}
	return &RatingSummary{ProductID: product.ID, Average: product.RatingAverage, Count: product.RatingCount}, nil
}

func (s *service) list(ctx context.Context, filter ListFilter, params pagination.Params) (*ReviewList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, filter, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}
	rows, next := pagination.Trim(rows, params.Limit, func(r models.Review) pagination.Cursor {
		return pagination.Cursor{CreatedAt: r.CreatedAt, ID: r.ID}
	})
	out := make([]ReviewDTO, 0, len(rows))
	for i := range rows {
		out = append(out, newReviewDTO(&rows[i]))
	}
	return &ReviewList{Reviews: out, NextCursor: next}, nil
}

func (s *service) product(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Product, error) {
	product, err := repo.FindProduct(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) locked(ctx context.Context, repo *Repository, id uuid.UUID) (*models.Review, error) {
	review, err := repo.FindForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}

func validateContent(rating int, body string) (string, error) {
	if rating < minRating || rating > maxRating {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("rating must be between %d and %d", minRating, maxRating))
	}
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) < minBodyLength {
		return "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("review body must be at least %d characters", minBodyLength))
	}
	return body, nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func newReviewDTO(r *models.Review) ReviewDTO {
	return ReviewDTO{
		ID:         r.ID,
		ProductID:  r.ProductID,
		ClientID:   r.ClientID,
		Rating:     r.Rating,
		Title:      r.Title,
		Body:       r.Body,
		Approved:   r.Approved,
		ApprovedAt: r.ApprovedAt,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}
