package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yan96in/neo4j/core/monitor"
	"github.com/yan96in/neo4j/core/transaction"
	"github.com/yan96in/neo4j/internal/database"
	"github.com/yan96in/neo4j/pkg/clock"
)

type transactionView struct {
	ID                string    `json:"id"`
	ReuseCount        int       `json:"reuse_count"`
	Type              string    `json:"type"`
	AccessMode        string    `json:"access_mode"`
	StartTime         time.Time `json:"start_time"`
	AgeMillis         int64     `json:"age_ms"`
	LastCommittedTxID uint64    `json:"last_committed_tx_id_at_start"`
	TerminationReason string    `json:"termination_reason,omitempty"`
}

type statsView struct {
	monitor.Stats
	LastCommittedTxID uint64 `json:"last_committed_tx_id"`
	Pooled            int    `json:"pooled"`
}

// newAdminMux serves health, metrics and the transaction admin endpoints.
func newAdminMux(db *database.Database, metrics http.Handler, clk clock.Clock, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("GET /metrics", metrics)

	mux.HandleFunc("GET /transactions", func(w http.ResponseWriter, r *http.Request) {
		now := clk.Now()
		views := []transactionView{}
		for _, h := range db.Transactions.ActiveTransactions() {
			info := h.Info()
			if !info.Open {
				continue
			}
			views = append(views, transactionView{
				ID:                h.ID.String(),
				ReuseCount:        info.ReuseCount,
				Type:              info.Type.String(),
				AccessMode:        info.AccessMode.String(),
				StartTime:         info.StartTime,
				AgeMillis:         now.Sub(info.StartTime).Milliseconds(),
				LastCommittedTxID: info.LastCommittedTxIDWhenStarted,
				TerminationReason: string(info.TerminationReason),
			})
		}
		writeJSON(w, http.StatusOK, views, logger)
	})

	mux.HandleFunc("POST /transactions/{id}/terminate", func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			http.Error(w, "invalid transaction id", http.StatusBadRequest)
			return
		}
		h, ok := db.Transactions.Lookup(id)
		if !ok {
			http.Error(w, "transaction not found", http.StatusNotFound)
			return
		}
		reason := transaction.Reason(r.URL.Query().Get("reason"))
		if reason == "" {
			reason = transaction.ReasonTerminated
		}
		terminated := h.MarkForTermination(reason)
		logger.Info("termination requested over admin API",
			zap.Stringer("handle", id), zap.Stringer("reason", reason), zap.Bool("terminated", terminated))
		writeJSON(w, http.StatusOK, map[string]bool{"terminated": terminated}, logger)
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsView{
			Stats:             db.Counters.Stats(),
			LastCommittedTxID: db.LastCommittedTransactionID(),
			Pooled:            db.Transactions.Capacity(),
		}, logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to write admin response", zap.Error(err))
	}
}
