package methods

import (
	"errors"
	"fmt"
	"sort"
)

// RPC method names.
const (
	MethodRequestOnchainFunds            = "request_onchain_funds"
	MethodRequestOffchainFunds           = "request_offchain_funds"
	MethodNotifyOnchainFundsReceived     = "notify_onchain_funds_received"
	MethodNotifyOffchainFundsReceived    = "notify_offchain_funds_received"
	MethodNotifyOnchainFundsSent         = "notify_onchain_funds_sent"
	MethodNotifyOffchainFundsSent        = "notify_offchain_funds_sent"
	MethodNotifyOffchainFundsPending     = "notify_offchain_funds_pending"
	MethodNotifyOffchainFundsAvailable   = "notify_offchain_funds_available"
	MethodNotifyInteractiveFlowCompleted = "notify_interactive_flow_completed"
	MethodDoStellarPayment               = "do_stellar_payment"
	MethodDoStellarRefund                = "do_stellar_refund"
	MethodNotifyRefundPending            = "notify_refund_pending"
	MethodNotifyRefundSent               = "notify_refund_sent"
	MethodNotifyAmountsUpdated           = "notify_amounts_updated"
	MethodNotifyAmountsAssetsUpdated     = "notify_amounts_assets_updated"
	MethodNotifyCustomerInfoUpdated      = "notify_customer_info_updated"
	MethodRequestCustomerInfoUpdate      = "request_customer_info_update"
	MethodRequestTrust                   = "request_trust"
	MethodNotifyTrustSet                 = "notify_trust_set"
	MethodNotifyTransactionOnHold        = "notify_transaction_on_hold"
	MethodNotifyTransactionRecovery      = "notify_transaction_recovery"
	MethodNotifyTransactionError         = "notify_transaction_error"
	MethodGetTransaction                 = "get_transaction"
	MethodGetTransactions                = "get_transactions"
	MethodGetQuote                       = "get_quote"
)

// Registry maps method names to their handlers.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds every handler over deps.
func NewRegistry(deps Deps) (*Registry, error) {
	if len(deps.Stores) == 0 {
		return nil, errors.New("methods: at least one transaction store is required")
	}
	if deps.Assets == nil {
		return nil, errors.New("methods: asset resolver is required")
	}
	d := &deps
	d.withDefaults()

	reg := &Registry{handlers: make(map[string]Handler)}
	for _, h := range []Handler{
		newStatusHandler(d, func() *RequestOnchainFundsRequest { return &RequestOnchainFundsRequest{} }, &requestOnchainFunds{deps: d}),
		newStatusHandler(d, func() *RequestOffchainFundsRequest { return &RequestOffchainFundsRequest{} }, &requestOffchainFunds{deps: d}),
		newStatusHandler(d, func() *NotifyOnchainFundsReceivedRequest { return &NotifyOnchainFundsReceivedRequest{} }, &notifyOnchainFundsReceived{deps: d}),
		newStatusHandler(d, func() *NotifyOffchainFundsReceivedRequest { return &NotifyOffchainFundsReceivedRequest{} }, &notifyOffchainFundsReceived{deps: d}),
		newStatusHandler(d, func() *NotifyOnchainFundsSentRequest { return &NotifyOnchainFundsSentRequest{} }, &notifyOnchainFundsSent{deps: d}),
		newStatusHandler(d, func() *NotifyOffchainFundsSentRequest { return &NotifyOffchainFundsSentRequest{} }, &notifyOffchainFundsSent{deps: d}),
		newStatusHandler(d, func() *NotifyOffchainFundsPendingRequest { return &NotifyOffchainFundsPendingRequest{} }, &notifyOffchainFundsPending{deps: d}),
		newStatusHandler(d, func() *NotifyOffchainFundsAvailableRequest { return &NotifyOffchainFundsAvailableRequest{} }, &notifyOffchainFundsAvailable{deps: d}),
		newStatusHandler(d, func() *NotifyInteractiveFlowCompletedRequest { return &NotifyInteractiveFlowCompletedRequest{} }, &notifyInteractiveFlowCompleted{deps: d}),
		newStatusHandler(d, func() *DoStellarPaymentRequest { return &DoStellarPaymentRequest{} }, &doStellarPayment{deps: d}),
		newStatusHandler(d, func() *DoStellarRefundRequest { return &DoStellarRefundRequest{} }, &doStellarRefund{deps: d}),
		newStatusHandler(d, func() *NotifyRefundPendingRequest { return &NotifyRefundPendingRequest{} }, &notifyRefundPending{deps: d}),
		newStatusHandler(d, func() *NotifyRefundSentRequest { return &NotifyRefundSentRequest{} }, &notifyRefundSent{deps: d}),
		newStatusHandler(d, func() *NotifyAmountsUpdatedRequest { return &NotifyAmountsUpdatedRequest{} }, &notifyAmountsUpdated{deps: d}),
		newStatusHandler(d, func() *NotifyAmountsAssetsUpdatedRequest { return &NotifyAmountsAssetsUpdatedRequest{} }, &notifyAmountsAssetsUpdated{deps: d}),
		newStatusHandler(d, func() *NotifyCustomerInfoUpdatedRequest { return &NotifyCustomerInfoUpdatedRequest{} }, &notifyCustomerInfoUpdated{deps: d}),
		newStatusHandler(d, func() *RequestCustomerInfoUpdateRequest { return &RequestCustomerInfoUpdateRequest{} }, &requestCustomerInfoUpdate{deps: d}),
		newStatusHandler(d, func() *RequestTrustRequest { return &RequestTrustRequest{} }, &requestTrust{deps: d}),
		newStatusHandler(d, func() *NotifyTrustSetRequest { return &NotifyTrustSetRequest{} }, &notifyTrustSet{deps: d}),
		newStatusHandler(d, func() *NotifyTransactionOnHoldRequest { return &NotifyTransactionOnHoldRequest{} }, &notifyTransactionOnHold{deps: d}),
		newStatusHandler(d, func() *NotifyTransactionRecoveryRequest { return &NotifyTransactionRecoveryRequest{} }, &notifyTransactionRecovery{deps: d}),
		newStatusHandler(d, func() *NotifyTransactionErrorRequest { return &NotifyTransactionErrorRequest{} }, &notifyTransactionError{deps: d}),
		&getTransaction{deps: d},
		&getTransactions{deps: d},
		&getQuote{deps: d},
	} {
		if err := reg.Register(h); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// Register adds a handler. Method names must be unique.
func (r *Registry) Register(h Handler) error {
	name := h.Method()
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("methods: duplicate handler for %s", name)
	}
	r.handlers[name] = h
	return nil
}

// Lookup returns the handler for a method.
func (r *Registry) Lookup(method string) (Handler, bool) {
	h, ok := r.handlers[method]
	return h, ok
}

// Methods lists the registered method names in sorted order.
func (r *Registry) Methods() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
