// internal/handlers/ledger.go
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// LedgerHandler exposes the internal balance ledger: deposits, balances and
// transaction history. Only mounted when the payment provider is "ledger".
type LedgerHandler struct {
	transfer *services.LedgerTransfer
	registry *services.AccessRegistry
}

func NewLedgerHandler(transfer *services.LedgerTransfer, registry *services.AccessRegistry) *LedgerHandler {
	return &LedgerHandler{
		transfer: transfer,
		registry: registry,
	}
}

// POST /ledger/deposits
func (h *LedgerHandler) Deposit(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}
	if !h.registry.IsAdmin(models.Address(caller)) {
		utils.ForbiddenResponse(c, "")
		return
	}

	var req struct {
		To        string `json:"to" binding:"required"`
		Amount    string `json:"amount" binding:"required"`
		Reference string `json:"reference"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid amount", nil)
		return
	}

	to := models.NormalizeAddress(req.To)
	if err := h.transfer.Deposit(to, amount, req.Reference, time.Now()); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"to": to, "amount": amount.Hex()})
}

// GET /ledger/balance
func (h *LedgerHandler) Balance(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	addr := models.Address(caller)
	if other := c.Query("address"); other != "" {
		// Admins can inspect any account's balance.
		if !h.registry.IsAdmin(addr) {
			utils.ForbiddenResponse(c, "")
			return
		}
		addr = models.NormalizeAddress(other)
	}

	balance, err := h.transfer.Balance(addr)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"address": addr, "balance": balance.Hex()})
}

// GET /ledger/transactions
func (h *LedgerHandler) History(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	addr := models.Address(caller)
	if other := c.Query("address"); other != "" {
		if !h.registry.IsAdmin(addr) {
			utils.ForbiddenResponse(c, "")
			return
		}
		addr = models.NormalizeAddress(other)
	}

	transactions, err := h.transfer.History(addr)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"address": addr, "transactions": transactions})
}
