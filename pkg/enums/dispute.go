package enums

import "fmt"

// DisputeStatus tracks a dispute from opening to its single terminal resolution.
type DisputeStatus string

const (
	DisputeStatusOpen                  DisputeStatus = "OPEN"
	DisputeStatusInReview              DisputeStatus = "IN_REVIEW"
	DisputeStatusResolvedCustomerFavor DisputeStatus = "RESOLVED_CUSTOMER_FAVOR"
	DisputeStatusResolvedVendorFavor   DisputeStatus = "RESOLVED_VENDOR_FAVOR"
	DisputeStatusClosed                DisputeStatus = "CLOSED"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusInReview,
	DisputeStatusResolvedCustomerFavor,
	DisputeStatusResolvedVendorFavor,
	DisputeStatusClosed,
}

func (s DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func (s DisputeStatus) IsTerminal() bool {
	switch s {
	case DisputeStatusResolvedCustomerFavor, DisputeStatusResolvedVendorFavor, DisputeStatusClosed:
		return true
	}
	return false
}

// ActiveDisputeStatuses lists the statuses that block a new dispute on the same order.
func ActiveDisputeStatuses() []DisputeStatus {
	return []DisputeStatus{DisputeStatusOpen, DisputeStatusInReview}
}

func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeReason is the customer's stated cause for a dispute.
type DisputeReason string

const (
	DisputeReasonItemNotReceived    DisputeReason = "ITEM_NOT_RECEIVED"
	DisputeReasonItemNotAsDescribed DisputeReason = "ITEM_NOT_AS_DESCRIBED"
	DisputeReasonDamagedItem        DisputeReason = "DAMAGED_ITEM"
	DisputeReasonWrongItem          DisputeReason = "WRONG_ITEM"
	DisputeReasonOther              DisputeReason = "OTHER"
)

var validDisputeReasons = []DisputeReason{
	DisputeReasonItemNotReceived,
	DisputeReasonItemNotAsDescribed,
	DisputeReasonDamagedItem,
	DisputeReasonWrongItem,
	DisputeReasonOther,
}

func (r DisputeReason) IsValid() bool {
	for _, candidate := range validDisputeReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseDisputeReason(value string) (DisputeReason, error) {
	for _, candidate := range validDisputeReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute reason %q", value)
}

// DisputeResolution is the admin's terminal decision.
type DisputeResolution string

const (
	DisputeResolutionCustomerFavor DisputeResolution = "CUSTOMER_FAVOR"
	DisputeResolutionVendorFavor   DisputeResolution = "VENDOR_FAVOR"
	DisputeResolutionClosed        DisputeResolution = "CLOSED"
)

var validDisputeResolutions = []DisputeResolution{
	DisputeResolutionCustomerFavor,
	DisputeResolutionVendorFavor,
	DisputeResolutionClosed,
}

func (r DisputeResolution) IsValid() bool {
	for _, candidate := range validDisputeResolutions {
		if candidate == r {
			return true
		}
	}
	return false
}

// DisputeStatus returns the terminal dispute status produced by the resolution.
func (r DisputeResolution) DisputeStatus() DisputeStatus {
	switch r {
	case DisputeResolutionCustomerFavor:
		return DisputeStatusResolvedCustomerFavor
	case DisputeResolutionVendorFavor:
		return DisputeStatusResolvedVendorFavor
	default:
		return DisputeStatusClosed
	}
}

// OrderStatus returns the order status a resolution settles the order into.
func (r DisputeResolution) OrderStatus() OrderStatus {
	if r == DisputeResolutionCustomerFavor {
		return OrderStatusRefunded
	}
	return OrderStatusClosed
}

func ParseDisputeResolution(value string) (DisputeResolution, error) {
	for _, candidate := range validDisputeResolutions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute resolution %q", value)
}
