package token

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/yotta-io/tokenledger/internal/middleware"
)

// Handler exposes ledger operations over HTTP. The acting account comes from
// the authenticated request.
type Handler struct {
	ledger *Ledger
}

// NewHandler builds a token HTTP handler.
func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// status maps ledger error kinds to HTTP status codes.
func status(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrNotManager):
		return http.StatusForbidden
	case errors.Is(err, ErrCurrencyNotFound), errors.Is(err, ErrAccountNotOpen),
		errors.Is(err, ErrUnknownAccount), errors.Is(err, ErrUnknownRule),
		errors.Is(err, ErrPoolNotFound), errors.Is(err, ErrNoSuchLock):
		return http.StatusNotFound
	case errors.Is(err, ErrCurrencyAlreadyExists), errors.Is(err, ErrAccountAlreadyOpen),
		errors.Is(err, ErrDuplicateID), errors.Is(err, ErrManagerMismatch):
		return http.StatusConflict
	case errors.Is(err, ErrInsufficientFunds), errors.Is(err, ErrInsufficientDelegation),
		errors.Is(err, ErrSupplyOverflow), errors.Is(err, ErrTooManyLocks),
		errors.Is(err, ErrOverUnlock), errors.Is(err, ErrNonZeroBalance),
		errors.Is(err, ErrQuotaExhausted), errors.Is(err, ErrRegistryUnset),
		errors.Is(err, ErrRegistryAccountInvalid):
		return http.StatusUnprocessableEntity
	case KindOf(err) != nil:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func respondError(err error) error {
	return fiber.NewError(status(err), err.Error())
}

func badRequest(err error) error {
	return fiber.NewError(http.StatusBadRequest, err.Error())
}

func receiptJSON(r Receipt) fiber.Map {
	return fiber.Map{
		"transaction_id": r.TransactionID,
		"op":             r.Op,
		"currency":       r.Currency,
		"from":           r.From,
		"to":             r.To,
		"amount":         r.Amount,
		"from_balance":   r.FromBalance,
		"to_balance":     r.ToBalance,
		"completed_at":   r.CompletedAt,
	}
}

func currencyJSON(cur Currency) fiber.Map {
	m := fiber.Map{
		"symbol":      cur.Symbol.String(),
		"supply":      Asset{Amount: cur.Supply, Symbol: cur.Symbol}.String(),
		"max_supply":  Asset{Amount: cur.MaxSupply, Symbol: cur.Symbol}.String(),
		"issuer":      cur.Issuer,
		"pool_setter": cur.PoolSetter,
		"unlocker":    cur.Unlocker,
		"token_no":    cur.TokenNo,
	}
	if epoch, ok := cur.ExTime.Get(); ok {
		m["extime"] = epoch
	}
	return m
}

type registryRequest struct {
	Account string `json:"account"`
}

// SetRegistry stores the registry pointer.
func (h *Handler) SetRegistry(c *fiber.Ctx) error {
	var req registryRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	if err := h.ledger.SetRegistry(c.UserContext(), middleware.Actor(c), req.Account); err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"registry": req.Account})
}

type createRequest struct {
	MaxSupply string `json:"max_supply"`
	Name      string `json:"name"`
	Memo      string `json:"memo"`
}

// Create registers a currency issued by the caller.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	maxSupply, err := ParseAsset(req.MaxSupply)
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	cur, err := h.ledger.Create(c.UserContext(), CreateInput{
		Actor:     actor,
		Issuer:    actor,
		MaxSupply: maxSupply,
		Name:      req.Name,
		Memo:      req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(currencyJSON(cur))
}

// Currency returns the stats of a currency.
func (h *Handler) Currency(c *fiber.Ctx) error {
	cur, err := h.ledger.Currency(c.UserContext(), c.Params("code"))
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(currencyJSON(cur))
}

type quantityRequest struct {
	To          string `json:"to"`
	Quantity    string `json:"quantity"`
	Memo        string `json:"memo"`
	RequireOpen bool   `json:"require_open"`
}

// Issue mints supply to an account.
func (h *Handler) Issue(c *fiber.Ctx) error {
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	r, err := h.ledger.Issue(c.UserContext(), IssueInput{
		Actor:    middleware.Actor(c),
		To:       req.To,
		Quantity: quantity,
		Memo:     req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(receiptJSON(r))
}

type extimeRequest struct {
	Symbol string `json:"symbol"`
	ExTime int64  `json:"extime"`
}

// SetExTime fixes the vesting epoch of a currency.
func (h *Handler) SetExTime(c *fiber.Ctx) error {
	var req extimeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	sym, err := ParseSymbol(req.Symbol)
	if err != nil {
		return badRequest(err)
	}
	if err := h.ledger.SetExTime(c.UserContext(), middleware.Actor(c), sym, req.ExTime); err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"symbol": sym.String(), "extime": req.ExTime})
}

type poolRequest struct {
	Symbol  string `json:"symbol"`
	Account string `json:"account"`
	Name    string `json:"name"`
	Memo    string `json:"memo"`
}

// AddPool registers a pool account.
func (h *Handler) AddPool(c *fiber.Ctx) error {
	var req poolRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	sym, err := ParseSymbol(req.Symbol)
	if err != nil {
		return badRequest(err)
	}
	pool, err := h.ledger.AddPool(c.UserContext(), PoolInput{
		Actor:   middleware.Actor(c),
		Symbol:  sym,
		Account: req.Account,
		Name:    req.Name,
		Memo:    req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"account": pool.Account, "name": pool.Name, "memo": pool.Memo})
}

// RemovePool unregisters a pool account. The symbol is passed as a query parameter.
func (h *Handler) RemovePool(c *fiber.Ctx) error {
	sym, err := ParseSymbol(c.Query("symbol"))
	if err != nil {
		return badRequest(err)
	}
	if err := h.ledger.RemovePool(c.UserContext(), middleware.Actor(c), sym, c.Params("account")); err != nil {
		return respondError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

type ruleRequest struct {
	Symbol      string   `json:"symbol"`
	ID          uint32   `json:"id"`
	Times       []int64  `json:"times"`
	Pcts        []uint32 `json:"pcts"`
	Base        uint32   `json:"base"`
	Period      uint32   `json:"period"`
	Description string   `json:"description"`
}

func ruleJSON(r Rule) fiber.Map {
	return fiber.Map{
		"id":          r.ID,
		"mode":        r.Mode().String(),
		"times":       r.Times,
		"pcts":        r.Pcts,
		"base":        r.Base,
		"period":      r.Period,
		"description": r.Description,
	}
}

// AddRule defines a vesting rule. The caller must be a pool of the currency.
func (h *Handler) AddRule(c *fiber.Ctx) error {
	var req ruleRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	sym, err := ParseSymbol(req.Symbol)
	if err != nil {
		return badRequest(err)
	}
	rule, err := h.ledger.AddRule(c.UserContext(), RuleInput{
		Actor:  middleware.Actor(c),
		Symbol: sym,
		Rule: Rule{
			ID:          req.ID,
			Times:       req.Times,
			Pcts:        req.Pcts,
			Base:        req.Base,
			Period:      req.Period,
			Description: req.Description,
		},
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(ruleJSON(rule))
}

// Rule returns a vesting rule.
func (h *Handler) Rule(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return badRequest(err)
	}
	rule, err := h.ledger.Rule(c.UserContext(), c.Params("code"), uint32(id))
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(ruleJSON(rule))
}

type openRequest struct {
	Owner  string `json:"owner"`
	Symbol string `json:"symbol"`
}

// Open creates a zero balance for an owner, paid by the caller.
func (h *Handler) Open(c *fiber.Ctx) error {
	var req openRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	sym, err := ParseSymbol(req.Symbol)
	if err != nil {
		return badRequest(err)
	}
	if err := h.ledger.Open(c.UserContext(), OpenInput{Actor: middleware.Actor(c), Owner: req.Owner, Symbol: sym}); err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"owner": req.Owner, "symbol": sym.String()})
}

// Close deletes the caller's zero balance. The symbol is passed as a query parameter.
func (h *Handler) Close(c *fiber.Ctx) error {
	sym, err := ParseSymbol(c.Query("symbol"))
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	if err := h.ledger.Close(c.UserContext(), actor, actor, sym); err != nil {
		return respondError(err)
	}
	return c.SendStatus(http.StatusNoContent)
}

// Position returns the balance breakdown of an account.
func (h *Handler) Position(c *fiber.Ctx) error {
	p, err := h.ledger.Position(c.UserContext(), c.Params("account"), c.Params("code"))
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account":   p.Account,
		"balance":   Asset{Amount: p.Balance, Symbol: p.Symbol}.String(),
		"locked":    Asset{Amount: p.Locked, Symbol: p.Symbol}.String(),
		"delegated": Asset{Amount: p.Delegated, Symbol: p.Symbol}.String(),
		"available": Asset{Amount: p.Available, Symbol: p.Symbol}.String(),
		"as_of":     p.AsOf,
	})
}

// Locks lists the locks held by an account.
func (h *Handler) Locks(c *fiber.Ctx) error {
	set, err := h.ledger.Locks(c.UserContext(), c.Params("account"), c.Params("code"))
	if err != nil {
		return respondError(err)
	}
	rules := make([]fiber.Map, 0, len(set.Rules))
	for _, lk := range set.Rules {
		rules = append(rules, fiber.Map{
			"rule_id":    lk.RuleID,
			"quantity":   lk.Quantity,
			"updated_at": lk.UpdatedAt,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"counter": set.Counter, "rules": rules})
}

// Transfer moves funds from the caller.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req quantityRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	r, err := h.ledger.Transfer(c.UserContext(), TransferInput{
		Actor:       actor,
		From:        actor,
		To:          req.To,
		Quantity:    quantity,
		Memo:        req.Memo,
		RequireOpen: req.RequireOpen,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(receiptJSON(r))
}

type batchRequest struct {
	Symbol  string       `json:"symbol"`
	Entries []BatchEntry `json:"entries"`
	Memo    string       `json:"memo"`
}

// BatchTransfer credits many recipients from the caller.
func (h *Handler) BatchTransfer(c *fiber.Ctx) error {
	var req batchRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	sym, err := ParseSymbol(req.Symbol)
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	res, err := h.ledger.BatchTransfer(c.UserContext(), BatchInput{
		Actor:   actor,
		From:    actor,
		Symbol:  sym,
		Entries: req.Entries,
		Memo:    req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"transaction_id": res.TransactionID,
		"currency":       res.Currency,
		"total":          res.Total,
		"from_balance":   res.FromBalance,
		"credited":       res.Credited,
		"skipped":        res.Skipped,
		"completed_at":   res.CompletedAt,
	})
}

type lockedTransferRequest struct {
	RuleID   uint32 `json:"rule_id"`
	To       string `json:"to"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
}

// LockedTransfer moves funds from the calling pool and locks them.
func (h *Handler) LockedTransfer(c *fiber.Ctx) error {
	var req lockedTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	r, err := h.ledger.LockedTransfer(c.UserContext(), LockedTransferInput{
		Actor:    actor,
		RuleID:   req.RuleID,
		From:     actor,
		To:       req.To,
		Quantity: quantity,
		Memo:     req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(receiptJSON(r))
}

type unlockRequest struct {
	Account  string `json:"account"`
	Quantity string `json:"quantity"`
	Memo     string `json:"memo"`
}

// Unlock reduces an account's counter lock.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	var req unlockRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	remaining, err := h.ledger.Unlock(c.UserContext(), UnlockInput{
		Actor:    middleware.Actor(c),
		Account:  req.Account,
		Quantity: quantity,
		Memo:     req.Memo,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"account": req.Account, "remaining": remaining})
}

type approveRequest struct {
	Manager  string `json:"manager"`
	Quantity string `json:"quantity"`
}

// Approve delegates part of the caller's balance to a manager.
func (h *Handler) Approve(c *fiber.Ctx) error {
	var req approveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	actor := middleware.Actor(c)
	d, err := h.ledger.Approve(c.UserContext(), ApproveInput{
		Actor:    actor,
		Owner:    actor,
		Manager:  req.Manager,
		Quantity: quantity,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"owner": d.Owner, "manager": d.Manager, "quantity": d.Quantity})
}

type delegatedTransferRequest struct {
	From        string `json:"from"`
	To          string `json:"to"`
	Quantity    string `json:"quantity"`
	Memo        string `json:"memo"`
	RequireOpen bool   `json:"require_open"`
}

// DelegatedTransfer moves delegated funds on behalf of their owner.
func (h *Handler) DelegatedTransfer(c *fiber.Ctx) error {
	var req delegatedTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(err)
	}
	quantity, err := ParseAsset(req.Quantity)
	if err != nil {
		return badRequest(err)
	}
	r, err := h.ledger.DelegatedTransfer(c.UserContext(), DelegatedTransferInput{
		Actor:       middleware.Actor(c),
		From:        req.From,
		To:          req.To,
		Quantity:    quantity,
		Memo:        req.Memo,
		RequireOpen: req.RequireOpen,
	})
	if err != nil {
		return respondError(err)
	}
	return c.Status(http.StatusCreated).JSON(receiptJSON(r))
}
