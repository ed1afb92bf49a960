// Package disputes runs the customer dispute workflow and settles disputed
// orders.
package disputes

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/vendorhub/marketplace-backend/internal/escrow"
	"github.com/vendorhub/marketplace-backend/internal/gateway"
	"github.com/vendorhub/marketplace-backend/internal/notifications"
	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
	pkgerrors "github.com/vendorhub/marketplace-backend/pkg/errors"
	"github.com/vendorhub/marketplace-backend/pkg/logger"
	"github.com/vendorhub/marketplace-backend/pkg/money"
	"github.com/vendorhub/marketplace-backend/pkg/pagination"
)

const (
	MinDescriptionLength     = 20
	MinResolutionNotesLength = 10
	MaxCommentLength         = 1000
	MaxEvidence              = 5
)

// Rejection reasons specific to disputes.
const (
	ReasonDisputeActive   = "dispute_already_open"
	ReasonNotDelivered    = "order_not_delivered"
	ReasonAlreadyResolved = "dispute_already_resolved"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type Service interface {
	Open(ctx context.Context, input OpenInput) (*DisputeView, error)
	Comment(ctx context.Context, input CommentInput) (*DisputeView, error)
	Resolve(ctx context.Context, input ResolveInput) (*DisputeView, error)
	Get(ctx context.Context, id uuid.UUID, viewer orders.Viewer) (*DisputeView, error)
	List(ctx context.Context, input ListInput) (*DisputeList, error)
}

type ServiceParams struct {
	Repo       Repository
	Orders     orders.Repository
	Tx         txRunner
	Escrow     escrow.Service
	Refunds    gateway.Refunder
	Dispatcher notifications.Dispatcher
	Effects    *notifications.Runner
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	orders     orders.Repository
	tx         txRunner
	escrow     escrow.Service
	refunds    gateway.Refunder
	dispatcher notifications.Dispatcher
	effects    *notifications.Runner
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("disputes repository required")
	case params.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Escrow == nil:
		return nil, fmt.Errorf("escrow service required")
	case params.Refunds == nil:
		return nil, fmt.Errorf("refund gateway required")
	case params.Dispatcher == nil:
		return nil, fmt.Errorf("notification dispatcher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	effects := params.Effects
	if effects == nil {
		effects = notifications.NewRunner(params.Logger, nil)
	}
	return &service{
		repo:       params.Repo,
		orders:     params.Orders,
		tx:         params.Tx,
		escrow:     params.Escrow,
		refunds:    params.Refunds,
		dispatcher: params.Dispatcher,
		effects:    effects,
		logg:       params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func notFound(err error, what string) error {
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, what+" not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load "+what)
}

// Open files a dispute against a delivered order. The order row lock makes
// the one-active-dispute check safe against concurrent opens.
func (s *service) Open(ctx context.Context, input OpenInput) (*DisputeView, error) {
	if err := validateOpen(input); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(input.Description)

	var (
		dispute *models.Dispute
		order   *models.Order
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		disputeRepo := s.repo.WithTx(tx)

		var err error
		order, err = orderRepo.LockOrder(ctx, input.OrderID)
		if err != nil {
			return notFound(err, "order")
		}
		if order.CustomerID != input.CustomerID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to customer")
		}
		active, err := disputeRepo.HasActive(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check active disputes")
		}
		if active {
			return pkgerrors.StateConflict(ReasonDisputeActive, "this order already has an open dispute")
		}
		if order.DeliveryConfirmedAt == nil {
			return pkgerrors.StateConflict(ReasonNotDelivered, "a dispute can only be opened once the order was delivered")
		}
		decision := orders.EvaluateOrderTransition(orders.TransitionRequest{
			Current:             order.Status,
			Target:              enums.OrderStatusDisputed,
			Role:                enums.ActorRoleCustomer,
			CreatedAt:           order.CreatedAt,
			DeliveryConfirmedAt: order.DeliveryConfirmedAt,
			Now:                 s.now(),
		})
		if err := decision.Err(); err != nil {
			return err
		}

		dispute = &models.Dispute{
			OrderID:           order.ID,
			CustomerID:        input.CustomerID,
			Reason:            input.Reason,
			Description:       description,
			Evidence:          input.Evidence,
			Status:            enums.DisputeStatusOpen,
			OrderStatusAtOpen: order.Status,
		}
		if err := disputeRepo.Create(ctx, dispute); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create dispute")
		}
		customerID := input.CustomerID
		trigger := orders.Trigger{
			Source:  orders.TriggerDisputeOpened,
			Role:    enums.ActorRoleCustomer,
			ActorID: &customerID,
			Note:    string(input.Reason),
		}
		return orders.SetOrderStatus(ctx, orderRepo, order, enums.OrderStatusDisputed, trigger, nil)
	})
	if err != nil {
		return nil, err
	}
	_ = s.effects.Run(ctx, s.notifyVendors(order, dispute,
		fmt.Sprintf("The customer opened a dispute on order #%d.", order.OrderNumber))...)
	view := NewDisputeView(dispute)
	return &view, nil
}

func validateOpen(input OpenInput) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "customer identity missing")
	}
	details := map[string]string{}
	if !input.Reason.IsValid() {
		details["reason"] = "unknown dispute reason"
	}
	if utf8.RuneCountInString(strings.TrimSpace(input.Description)) < MinDescriptionLength {
		details["description"] = fmt.Sprintf("must be at least %d characters", MinDescriptionLength)
	}
	if len(input.Evidence) > MaxEvidence {
		details["evidence"] = fmt.Sprintf("at most %d images", MaxEvidence)
	}
	for i, ref := range input.Evidence {
		parsed, err := url.ParseRequestURI(ref)
		if err != nil || parsed.Host == "" {
			details[fmt.Sprintf("evidence[%d]", i)] = "must be an absolute URL"
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid dispute").WithDetails(details)
	}
	return nil
}

// Comment appends to the dispute thread. The first admin comment moves an
// open dispute into review; resolved disputes accept no comments.
func (s *service) Comment(ctx context.Context, input CommentInput) (*DisputeView, error) {
	body := strings.TrimSpace(input.Body)
	switch {
	case body == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "comment body required")
	case utf8.RuneCountInString(body) > MaxCommentLength:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("comment exceeds %d characters", MaxCommentLength))
	case input.Role != enums.ActorRoleCustomer && input.Role != enums.ActorRoleAdmin:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the customer and admins can comment on a dispute")
	}

	var dispute *models.Dispute
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		dispute, err = repo.Lock(ctx, input.DisputeID)
		if err != nil {
			return notFound(err, "dispute")
		}
		if input.Role == enums.ActorRoleCustomer && dispute.CustomerID != input.AuthorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "dispute does not belong to customer")
		}
		if dispute.Status.IsTerminal() {
			return pkgerrors.StateConflict(ReasonAlreadyResolved, "comments are closed on a resolved dispute")
		}
		authorID := input.AuthorID
		if err := repo.AddComment(ctx, &models.DisputeComment{
			DisputeID:  dispute.ID,
			AuthorID:   &authorID,
			AuthorRole: input.Role,
			Body:       body,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add dispute comment")
		}
		if input.Role == enums.ActorRoleAdmin && dispute.Status == enums.DisputeStatusOpen {
			if err := repo.Update(ctx, dispute.ID, map[string]any{"status": enums.DisputeStatusInReview}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "move dispute to review")
			}
		}
		dispute, err = repo.Find(ctx, dispute.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	view := NewDisputeView(dispute)
	return &view, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, viewer orders.Viewer) (*DisputeView, error) {
	dispute, err := s.repo.Find(ctx, id)
	if err != nil {
		return nil, notFound(err, "dispute")
	}
	if viewer.Role != enums.ActorRoleAdmin && dispute.CustomerID != viewer.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "dispute is not visible to this account")
	}
	view := NewDisputeView(dispute)
	return &view, nil
}

// List returns a customer's disputes, or every dispute for admins.
func (s *service) List(ctx context.Context, input ListInput) (*DisputeList, error) {
	q := listQuery{status: input.Status, limit: pagination.LimitWithBuffer(input.Limit)}
	switch input.Viewer.Role {
	case enums.ActorRoleAdmin:
	case enums.ActorRoleCustomer:
		customerID := input.Viewer.UserID
		q.customerID = &customerID
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "disputes are not visible to this account")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid dispute status %q", *input.Status))
	}
	cursor, err := pagination.ParseCursor(input.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	q.cursor = cursor

	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disputes")
	}
	rows, next := pagination.Page(rows, input.Limit, func(d models.Dispute) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	})
	list := &DisputeList{Disputes: make([]DisputeView, 0, len(rows)), NextCursor: next}
	for i := range rows {
		list.Disputes = append(list.Disputes, NewDisputeView(&rows[i]))
	}
	return list, nil
}

func (s *service) notifyVendors(order *models.Order, dispute *models.Dispute, message string) []notifications.Effect {
	seen := map[uuid.UUID]bool{}
	var effects []notifications.Effect
	for _, item := range order.Items {
		if seen[item.VendorID] {
			continue
		}
		seen[item.VendorID] = true
		n := notifications.Notification{
			RecipientID:   item.VendorID,
			RecipientRole: enums.ActorRoleVendor,
			Type:          enums.NotificationTypeDisputeUpdate,
			Title:         "Dispute update",
			Message:       message,
			Link:          fmt.Sprintf("/disputes/%s", dispute.ID),
			Metadata:      map[string]any{"dispute_id": dispute.ID.String(), "order_id": order.ID.String()},
		}
		effects = append(effects, notifications.Effect{
			Name: "notify_vendor",
			Run:  func(ctx context.Context) error { return s.dispatcher.Notify(ctx, n) },
		})
	}
	return effects
}

func (s *service) notifyCustomer(order *models.Order, dispute *models.Dispute, message string) notifications.Effect {
	n := notifications.Notification{
		RecipientID:   order.CustomerID,
		RecipientRole: enums.ActorRoleCustomer,
		Type:          enums.NotificationTypeDisputeUpdate,
		Title:         "Dispute update",
		Message:       message,
		Link:          fmt.Sprintf("/disputes/%s", dispute.ID),
		Metadata:      map[string]any{"dispute_id": dispute.ID.String(), "order_id": order.ID.String()},
	}
	return notifications.Effect{
		Name: "notify_customer",
		Run:  func(ctx context.Context) error { return s.dispatcher.Notify(ctx, n) },
	}
}

func capRefund(requested *decimal.Decimal, total decimal.Decimal) decimal.Decimal {
	if requested == nil {
		return total
	}
	return money.Min(money.Round(*requested), total)
}
