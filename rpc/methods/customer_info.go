package methods

import (
	"context"
	"strings"

	"anchorplatform/core/events"
	"anchorplatform/core/types"
)

// Customer statuses reported by the customer service.
const (
	CustomerAccepted   = "ACCEPTED"
	CustomerProcessing = "PROCESSING"
	CustomerNeedsInfo  = "NEEDS_INFO"
	CustomerRejected   = "REJECTED"
)

const customerRejectedMessage = "Customer was rejected"

type notifyCustomerInfoUpdated struct {
	deps *Deps
}

func (t *notifyCustomerInfoUpdated) method() string { return MethodNotifyCustomerInfoUpdated }

func (t *notifyCustomerInfoUpdated) supportedStatuses(tx *types.Transaction) []types.Status {
	switch tx.Protocol {
	case types.ProtocolSEP6:
		return statuses(types.StatusIncomplete, types.StatusPendingAnchor, types.StatusPendingCustomerInfoUpdate)
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingReceiver, types.StatusPendingCustomerInfoUpdate)
	}
	return nil
}

func (t *notifyCustomerInfoUpdated) validate(context.Context, *types.Transaction, *NotifyCustomerInfoUpdatedRequest) error {
	return nil
}

func (t *notifyCustomerInfoUpdated) nextStatus(ctx context.Context, tx *types.Transaction, req *NotifyCustomerInfoUpdatedRequest) (types.Status, error) {
	proceed := types.StatusPendingAnchor
	if tx.Protocol == types.ProtocolSEP31 {
		proceed = types.StatusPendingReceiver
	}
	if req.CustomerID == "" {
		return proceed, nil
	}
	if t.deps.Customers == nil {
		return "", InvalidRequestf("Customer service is not configured")
	}
	status, err := t.deps.Customers.CustomerStatus(ctx, tx.ID, req.CustomerID, req.CustomerType)
	if err != nil {
		return "", Internal(err, "Failed to retrieve status of customer with id[%s]", req.CustomerID)
	}
	req.customerStatus = strings.ToUpper(strings.TrimSpace(status))
	switch req.customerStatus {
	case CustomerAccepted, CustomerProcessing, "":
		return proceed, nil
	case CustomerNeedsInfo:
		return types.StatusPendingCustomerInfoUpdate, nil
	case CustomerRejected:
		if strings.TrimSpace(req.Message) == "" {
			req.Message = customerRejectedMessage
		}
		return types.StatusError, nil
	default:
		return "", Internal(nil, "Unknown customer status[%s]", status)
	}
}

func (t *notifyCustomerInfoUpdated) update(context.Context, *types.Transaction, *NotifyCustomerInfoUpdatedRequest) error {
	return nil
}

func (t *notifyCustomerInfoUpdated) afterSave(ctx context.Context, tx *types.Transaction, req *NotifyCustomerInfoUpdatedRequest) error {
	if req.CustomerID == "" {
		return nil
	}
	evt := events.NewCustomerEvent(events.Customer{
		ID:     req.CustomerID,
		Type:   req.CustomerType,
		Status: req.customerStatus,
	}, tx.UpdatedAt)
	if err := t.deps.Events.Publish(ctx, evt); err != nil {
		return Internal(err, "Failed to publish customer event for transaction with id[%s]", tx.ID)
	}
	return nil
}

type requestCustomerInfoUpdate struct {
	deps *Deps
}

func (t *requestCustomerInfoUpdate) method() string { return MethodRequestCustomerInfoUpdate }

func (t *requestCustomerInfoUpdate) supportedStatuses(tx *types.Transaction) []types.Status {
	switch tx.Protocol {
	case types.ProtocolSEP6:
		return statuses(types.StatusIncomplete, types.StatusPendingAnchor, types.StatusPendingCustomerInfoUpdate)
	case types.ProtocolSEP31:
		return statuses(types.StatusPendingReceiver)
	}
	return nil
}

func (t *requestCustomerInfoUpdate) validate(context.Context, *types.Transaction, *RequestCustomerInfoUpdateRequest) error {
	return nil
}

func (t *requestCustomerInfoUpdate) nextStatus(context.Context, *types.Transaction, *RequestCustomerInfoUpdateRequest) (types.Status, error) {
	return types.StatusPendingCustomerInfoUpdate, nil
}

func (t *requestCustomerInfoUpdate) update(_ context.Context, tx *types.Transaction, req *RequestCustomerInfoUpdateRequest) error {
	tx.RequiredInfoMessage = req.RequiredCustomerInfoMessage
	tx.RequiredInfoUpdates = append([]string(nil), req.RequiredCustomerInfoUpdates...)
	return nil
}
