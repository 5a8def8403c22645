package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"moneyman/internal/core"
	"moneyman/internal/ledger"
)

type addTransactionRequest struct {
	Type           string      `json:"type"`
	Amount         json.Number `json:"amount"`
	Category       string      `json:"category"`
	Division       string      `json:"division"`
	Description    string      `json:"description"`
	Date           string      `json:"date"`
	AccountFrom    string      `json:"accountFrom"`
	AccountTo      string      `json:"accountTo"`
	RecipientEmail string      `json:"recipientEmail"`
}

type editTransactionRequest struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Division    string      `json:"division"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
}

func (s *Server) handleAddTransaction(w http.ResponseWriter, r *http.Request) {
	var req addTransactionRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	amount, err := core.ParseAmount(req.Amount.String())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
		return
	}

	var date time.Time
	if req.Date != "" {
		if date, err = parseDate(req.Date); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid date"})
			return
		}
	}

	tx, err := s.ledger.AddTransaction(r.Context(), ledger.AddRequest{
		User:           requestUser(r),
		Type:           core.TransactionType(req.Type),
		Amount:         amount,
		Category:       req.Category,
		Division:       core.Division(req.Division),
		Description:    req.Description,
		Date:           date,
		AccountFrom:    req.AccountFrom,
		AccountTo:      req.AccountTo,
		RecipientEmail: req.RecipientEmail,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ledger.Filter{
		User:     requestUser(r),
		Division: core.Division(q.Get("division")),
		Category: q.Get("category"),
	}
	if t := q.Get("type"); t != "" && t != "all" {
		f.Types = []core.TransactionType{core.TransactionType(t)}
	}
	if from := q.Get("startDate"); from != "" {
		t, err := parseDate(from)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid startDate"})
			return
		}
		f.DateFrom = t
	}
	if to := q.Get("endDate"); to != "" {
		t, err := parseDate(to)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid endDate"})
			return
		}
		f.DateTo = t
	}

	txs, err := s.ledger.ListTransactions(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txs)
}

func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	var req editTransactionRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid request body"})
		return
	}

	edit := ledger.EditRequest{
		User:        requestUser(r),
		Category:    req.Category,
		Division:    core.Division(req.Division),
		Description: req.Description,
	}
	if req.Amount.String() != "" {
		amount, err := core.ParseAmount(req.Amount.String())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
			return
		}
		edit.Amount = amount
	} else {
		edit.Amount = decimal.Zero
	}
	if req.Date != "" {
		date, err := parseDate(req.Date)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid date"})
			return
		}
		edit.Date = date
	}

	tx, err := s.ledger.EditTransaction(r.Context(), r.PathValue("id"), edit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.ledger.DeleteTransaction(r.Context(), r.PathValue("id"), requestUser(r)); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "transaction deleted"})
}
