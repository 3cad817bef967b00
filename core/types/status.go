package types

// Status is the lifecycle position of a transaction.
type Status string

const (
	StatusIncomplete                   Status = "incomplete"
	StatusPendingUserTransferStart     Status = "pending_user_transfer_start"
	StatusPendingUserTransferComplete  Status = "pending_user_transfer_complete"
	StatusPendingExternal              Status = "pending_external"
	StatusPendingAnchor                Status = "pending_anchor"
	StatusPendingStellar               Status = "pending_stellar"
	StatusPendingTrust                 Status = "pending_trust"
	StatusPendingUser                  Status = "pending_user"
	StatusPendingSender                Status = "pending_sender"
	StatusPendingReceiver              Status = "pending_receiver"
	StatusPendingTransactionInfoUpdate Status = "pending_transaction_info_update"
	StatusPendingCustomerInfoUpdate    Status = "pending_customer_info_update"
	StatusOnHold                       Status = "on_hold"
	StatusCompleted                    Status = "completed"
	StatusRefunded                     Status = "refunded"
	StatusExpired                      Status = "expired"
	StatusNoMarket                     Status = "no_market"
	StatusTooSmall                     Status = "too_small"
	StatusTooLarge                     Status = "too_large"
	StatusError                        Status = "error"
)

// Statuses lists every known status in lifecycle order.
var Statuses = []Status{
	StatusIncomplete,
	StatusPendingUserTransferStart,
	StatusPendingUserTransferComplete,
	StatusPendingExternal,
	StatusPendingAnchor,
	StatusPendingStellar,
	StatusPendingTrust,
	StatusPendingUser,
	StatusPendingSender,
	StatusPendingReceiver,
	StatusPendingTransactionInfoUpdate,
	StatusPendingCustomerInfoUpdate,
	StatusOnHold,
	StatusCompleted,
	StatusRefunded,
	StatusExpired,
	StatusNoMarket,
	StatusTooSmall,
	StatusTooLarge,
	StatusError,
}

// ParseStatus resolves a wire value into a known status.
func ParseStatus(raw string) (Status, bool) {
	status := Status(raw)
	for _, known := range Statuses {
		if known == status {
			return status, true
		}
	}
	return status, false
}

// IsFinal reports whether the status is a terminal success.
func (s Status) IsFinal() bool {
	return s == StatusCompleted || s == StatusRefunded
}

// IsError reports whether the status marks a failed transaction.
func (s Status) IsError() bool {
	return s == StatusError || s == StatusExpired
}
