package methods

import (
	"context"
	"encoding/json"
	"strings"

	"anchorplatform/core/types"
)

// Paging limits of get_transactions.
const (
	DefaultPageSize = 20
	MaxPageSize     = 200
)

// TransactionsResponse is the result of get_transactions.
type TransactionsResponse struct {
	Records []*types.TransactionView `json:"records"`
}

type getTransaction struct {
	deps *Deps
}

func (h *getTransaction) Method() string { return MethodGetTransaction }

func (h *getTransaction) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	var req GetTransactionRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.TransactionID) == "" {
		return nil, InvalidParamsf("transaction_id is required")
	}
	tx, _, err := h.deps.findTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, err
	}
	return types.NewTransactionView(tx), nil
}

type getTransactions struct {
	deps *Deps
}

func (h *getTransactions) Method() string { return MethodGetTransactions }

func (h *getTransactions) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	var req GetTransactionsRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	filter, err := req.filter()
	if err != nil {
		return nil, err
	}
	store := h.deps.store(filter.Protocol)
	if store == nil {
		return nil, InvalidParamsf("SEP not supported")
	}
	list, err := store.List(ctx, filter)
	if err != nil {
		return nil, Internal(err, "Failed to list transactions")
	}
	out := TransactionsResponse{Records: make([]*types.TransactionView, 0, len(list))}
	for _, tx := range list {
		out.Records = append(out.Records, types.NewTransactionView(tx))
	}
	return out, nil
}

func (r GetTransactionsRequest) filter() (types.TransactionFilter, error) {
	protocol := types.Protocol(strings.TrimSpace(r.Sep))
	if !protocol.Valid() {
		return types.TransactionFilter{}, InvalidParamsf("SEP not supported")
	}
	filter := types.TransactionFilter{
		Protocol: protocol,
		OrderBy:  types.OrderByCreatedAt,
		PageSize: DefaultPageSize,
	}
	switch orderBy := strings.ToLower(strings.TrimSpace(r.OrderBy)); orderBy {
	case "":
	case types.OrderByCreatedAt, types.OrderByTransferReceivedAt, types.OrderByUserActionRequiredBy:
		filter.OrderBy = orderBy
	default:
		return types.TransactionFilter{}, InvalidParamsf("order_by[%s] is not supported", r.OrderBy)
	}
	switch order := strings.ToLower(strings.TrimSpace(r.Order)); order {
	case "", "asc":
	case "desc":
		filter.Descending = true
	default:
		return types.TransactionFilter{}, InvalidParamsf("order[%s] is not supported", r.Order)
	}
	for _, raw := range r.Statuses {
		status, ok := types.ParseStatus(strings.ToLower(strings.TrimSpace(raw)))
		if !ok {
			return types.TransactionFilter{}, InvalidParamsf("status[%s] is not supported", raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if r.PageNumber != nil {
		if *r.PageNumber < 0 {
			return types.TransactionFilter{}, InvalidParamsf("page_number should be non-negative")
		}
		filter.PageNumber = *r.PageNumber
	}
	if r.PageSize != nil {
		if *r.PageSize < 1 || *r.PageSize > MaxPageSize {
			return types.TransactionFilter{}, InvalidParamsf("page_size should be between 1 and %d", MaxPageSize)
		}
		filter.PageSize = *r.PageSize
	}
	return filter, nil
}

type getQuote struct {
	deps *Deps
}

func (h *getQuote) Method() string { return MethodGetQuote }

func (h *getQuote) Handle(ctx context.Context, params json.RawMessage) (any, error) {
	var req GetQuoteRequest
	if err := decodeParams(params, &req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.QuoteID) == "" {
		return nil, InvalidParamsf("quote_id is required")
	}
	if h.deps.Quotes == nil {
		return nil, NotFoundf("Quote with id[%s] is not found", req.QuoteID)
	}
	quote, err := h.deps.Quotes.FindQuote(ctx, req.QuoteID)
	if err != nil {
		return nil, Internal(err, "Failed to load quote with id[%s]", req.QuoteID)
	}
	if quote == nil {
		return nil, NotFoundf("Quote with id[%s] is not found", req.QuoteID)
	}
	return quote, nil
}
