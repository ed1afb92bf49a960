package disputes

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendorhub/marketplace-backend/internal/orders"
	"github.com/vendorhub/marketplace-backend/pkg/db/models"
	"github.com/vendorhub/marketplace-backend/pkg/enums"
)

type OpenInput struct {
	OrderID     uuid.UUID
	CustomerID  uuid.UUID
	Reason      enums.DisputeReason
	Description string
	Evidence    []string
}

type CommentInput struct {
	DisputeID uuid.UUID
	AuthorID  uuid.UUID
	Role      enums.ActorRole
	Body      string
}

// ResolveInput settles a dispute. RefundAmount only applies to customer-favor
// resolutions; nil refunds the full order total.
type ResolveInput struct {
	DisputeID    uuid.UUID
	AdminID      uuid.UUID
	Resolution   enums.DisputeResolution
	Notes        string
	RefundAmount *decimal.Decimal
}

type ListInput struct {
	Viewer orders.Viewer
	Status *enums.DisputeStatus
	Limit  int
	Cursor string
}

type CommentView struct {
	ID         uuid.UUID       `json:"id"`
	AuthorID   *uuid.UUID      `json:"author_id,omitempty"`
	AuthorRole enums.ActorRole `json:"author_role"`
	Body       string          `json:"body"`
	IsSystem   bool            `json:"is_system"`
	CreatedAt  time.Time       `json:"created_at"`
}

type DisputeView struct {
	ID                   uuid.UUID                `json:"id"`
	OrderID              uuid.UUID                `json:"order_id"`
	CustomerID           uuid.UUID                `json:"customer_id"`
	Reason               enums.DisputeReason      `json:"reason"`
	Description          string                   `json:"description"`
	Evidence             []string                 `json:"evidence"`
	Status               enums.DisputeStatus      `json:"status"`
	OrderStatusAtOpen    enums.OrderStatus        `json:"order_status_at_open"`
	ResolutionType       *enums.DisputeResolution `json:"resolution_type,omitempty"`
	ResolutionNotes      *string                  `json:"resolution_notes,omitempty"`
	RefundAmount         *decimal.Decimal         `json:"refund_amount,omitempty"`
	ResolvedBy           *uuid.UUID               `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time               `json:"resolved_at,omitempty"`
	RequiresManualAction bool                     `json:"requires_manual_action"`
	RefundFailureReason  *string                  `json:"refund_failure_reason,omitempty"`
	Comments             []CommentView            `json:"comments"`
	CreatedAt            time.Time                `json:"created_at"`
}

type DisputeList struct {
	Disputes   []DisputeView `json:"disputes"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func NewDisputeView(d *models.Dispute) DisputeView {
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	view := DisputeView{
		ID:                   d.ID,
		OrderID:              d.OrderID,
		CustomerID:           d.CustomerID,
		Reason:               d.Reason,
		Description:          d.Description,
		Evidence:             evidence,
		Status:               d.Status,
		OrderStatusAtOpen:    d.OrderStatusAtOpen,
		ResolutionType:       d.ResolutionType,
		ResolutionNotes:      d.ResolutionNotes,
		RefundAmount:         d.RefundAmount,
		ResolvedBy:           d.ResolvedBy,
		ResolvedAt:           d.ResolvedAt,
		RequiresManualAction: d.RequiresManualAction,
		RefundFailureReason:  d.RefundFailureReason,
		Comments:             make([]CommentView, 0, len(d.Comments)),
		CreatedAt:            d.CreatedAt,
	}
	for _, c := range d.Comments {
		view.Comments = append(view.Comments, CommentView{
			ID:         c.ID,
			AuthorID:   c.AuthorID,
			AuthorRole: c.AuthorRole,
			Body:       c.Body,
			IsSystem:   c.IsSystem,
			CreatedAt:  c.CreatedAt,
		})
	}
	return view
}
