package transfers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/payvost/corebanking/internal/ledger"
	"github.com/payvost/corebanking/internal/validation"
)

// Handler exposes transfer endpoints.
type Handler struct {
	service   *Service
	validator *validation.Validator
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service, v *validation.Validator) *Handler {
	if v == nil {
		v = validation.New()
	}
	return &Handler{service: service, validator: v}
}

// amountField accepts either a JSON string or a JSON number and keeps its
// textual form so no precision is lost to float64.
type amountField string

func (a *amountField) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	*a = amountField(data)
	return nil
}

type transferRequest struct {
	FromAccountID  string      `json:"fromAccountId" validate:"required"`
	ToAccountID    string      `json:"toAccountId" validate:"required"`
	Amount         amountField `json:"amount"`
	Currency       string      `json:"currency"`
	IdempotencyKey string      `json:"idempotencyKey" validate:"max=255"`
	Description    string      `json:"description" validate:"max=500"`
	Type           string      `json:"type"`
}

type entryResponse struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"accountId"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	ReferenceID  string    `json:"referenceId"`
	CreatedAt    time.Time `json:"createdAt"`
}

type transferResponse struct {
	ID             string          `json:"id"`
	FromAccountID  string          `json:"fromAccountId"`
	ToAccountID    string          `json:"toAccountId"`
	Amount         string          `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	Type           string          `json:"type"`
	IdempotencyKey string          `json:"idempotencyKey,omitempty"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	Entries        []entryResponse `json:"entries"`
}

// toEntryResponse renders a ledger entry for API consumers.
func toEntryResponse(e ledger.Entry) entryResponse {
	return entryResponse{
		ID:           e.ID,
		AccountID:    e.AccountID,
		Amount:       ledger.FormatAmount(e.Amount),
		BalanceAfter: ledger.FormatAmount(e.BalanceAfter),
		Type:         string(e.Type),
		Description:  e.Description,
		ReferenceID:  e.ReferenceID,
		CreatedAt:    e.CreatedAt,
	}
}

// Transfer executes POST /transfer.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}

	res := h.service.TransferFunds(c.UserContext(), TransferInput{
		FromAccountID:  req.FromAccountID,
		ToAccountID:    req.ToAccountID,
		Amount:         string(req.Amount),
		Currency:       req.Currency,
		Type:           req.Type,
		IdempotencyKey: req.IdempotencyKey,
		Description:    req.Description,
	})
	if !res.Success {
		return fiber.NewError(statusFor(res.Kind), res.Error)
	}

	body := fiber.Map{"success": true, "transferId": res.TransferID}
	if res.Replayed {
		body["replayed"] = true
	}
	return c.Status(http.StatusOK).JSON(body)
}

// Get executes GET /transfer/:transferId.
func (h *Handler) Get(c *fiber.Ctx) error {
	detail, err := h.service.Get(c.UserContext(), c.Params("transferId"))
	if err != nil {
		if errors.Is(err, ledger.ErrTransferNotFound) {
			return fiber.NewError(http.StatusNotFound, "Transfer not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "Failed to load transfer")
	}

	t := detail.Transfer
	out := transferResponse{
		ID:             t.ID,
		FromAccountID:  t.FromAccountID,
		ToAccountID:    t.ToAccountID,
		Amount:         ledger.FormatAmount(t.Amount),
		Currency:       t.Currency,
		Status:         t.Status,
		Type:           string(t.Type),
		IdempotencyKey: t.IdempotencyKey,
		Description:    t.Description,
		CreatedAt:      t.CreatedAt,
		Entries:        make([]entryResponse, 0, len(detail.Entries)),
	}
	for _, e := range detail.Entries {
		out.Entries = append(out.Entries, toEntryResponse(e))
	}
	return c.JSON(out)
}

func statusFor(kind Kind) int {
	switch kind {
	case KindValidation, KindNotFound, KindInsufficientFunds:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
