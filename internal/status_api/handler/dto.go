package handler

// CreatePaymentRequest represents a request to register a payment for monitoring
type CreatePaymentRequest struct {
	DepositAddress string `json:"deposit_address" binding:"required"`
	ExpectedAmount string `json:"expected_amount" binding:"required"`
	AssetCode      string `json:"asset_code" binding:"required"`
	AssetIssuer    string `json:"asset_issuer,omitempty"`
	Description    string `json:"description,omitempty"`
	ExpiresAt      string `json:"expires_at" binding:"required"` // RFC3339
}

// PaymentResponse represents payment detail in API responses
type PaymentResponse struct {
	ID             string `json:"id"`
	DepositAddress string `json:"deposit_address"`
	ExpectedAmount string `json:"expected_amount"`
	AssetCode      string `json:"asset_code"`
	AssetIssuer    string `json:"asset_issuer,omitempty"`
	Description    string `json:"description,omitempty"`
	Status         string `json:"status"`
	ExpiresAt      string `json:"expires_at"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at"`
}

// PaymentStatusResponse is the projection polled by the checkout page
type PaymentStatusResponse struct {
	Status    string `json:"status"`
	UpdatedAt string `json:"updated_at"`
}

// SettlementResponse represents the ledger transaction that settled a payment
type SettlementResponse struct {
	PaymentID       string `json:"payment_id"`
	PagingToken     string `json:"paging_token"`
	TransactionHash string `json:"transaction_hash,omitempty"`
	AssetCode       string `json:"asset_code"`
	AssetIssuer     string `json:"asset_issuer,omitempty"`
	Amount          string `json:"amount"`
	From            string `json:"from,omitempty"`
	To              string `json:"to,omitempty"`
	ObservedAt      string `json:"observed_at"`
}
