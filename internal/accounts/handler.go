package accounts

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/payvost/corebanking/internal/ledger"
	"github.com/payvost/corebanking/internal/validation"
)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service   *Service
	validator *validation.Validator
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, v *validation.Validator) *Handler {
	if v == nil {
		v = validation.New()
	}
	return &Handler{service: service, validator: v}
}

type createRequest struct {
	UserID   string `json:"userId" validate:"required,max=128"`
	Currency string `json:"currency" validate:"required,len=3,uppercase,alpha"`
}

type entryResponse struct {
	ID           string    `json:"id"`
	Amount       string    `json:"amount"`
	BalanceAfter string    `json:"balanceAfter"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	ReferenceID  string    `json:"referenceId"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Create opens a new account.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.validator.Struct(req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acc, err := h.service.Create(c.UserContext(), req.UserID, req.Currency)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidCurrency) {
			return fiber.NewError(http.StatusBadRequest, "Invalid currency")
		}
		return fiber.NewError(http.StatusInternalServerError, "Failed to create account")
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"success":   true,
		"accountId": acc.ID,
	})
}

// Balance returns the account balance.
func (h *Handler) Balance(c *fiber.Ctx) error {
	balance, err := h.service.Balance(c.UserContext(), c.Params("accountId"))
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fiber.NewError(http.StatusNotFound, "Account not found")
		}
		return fiber.NewError(http.StatusInternalServerError, "Failed to load balance")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"accountId": balance.AccountID,
		"balance":   ledger.FormatAmount(balance.Amount),
		"currency":  balance.Currency,
	})
}

// Entries returns the newest ledger entries of the account.
func (h *Handler) Entries(c *fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fiber.NewError(http.StatusBadRequest, ErrInvalidLimit.Error())
		}
		limit = n
	}

	entries, err := h.service.Entries(c.UserContext(), c.Params("accountId"), limit)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidLimit):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		case errors.Is(err, ledger.ErrAccountNotFound):
			return fiber.NewError(http.StatusNotFound, "Account not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, "Failed to load entries")
		}
	}

	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResponse{
			ID:           e.ID,
			Amount:       ledger.FormatAmount(e.Amount),
			BalanceAfter: ledger.FormatAmount(e.BalanceAfter),
			Type:         string(e.Type),
			Description:  e.Description,
			ReferenceID:  e.ReferenceID,
			CreatedAt:    e.CreatedAt,
		})
	}
	return c.JSON(fiber.Map{"accountId": c.Params("accountId"), "entries": out})
}
