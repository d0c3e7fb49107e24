package site

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/masukame/connectivity"
	"github.com/hazyhaar/masukame/formcheck"
	"github.com/hazyhaar/masukame/horosafe"
	"github.com/hazyhaar/masukame/registry"
	"github.com/hazyhaar/masukame/shield"
)

const maxAPIBody = 16 << 10

// callRegistry dispatches a registry service through the connectivity
// router and writes its JSON answer.
func (s *Server) callRegistry(w http.ResponseWriter, r *http.Request, service string, req any) {
	payload, _ := json.Marshal(req)
	out, err := s.router.Call(r.Context(), service, payload)
	if err != nil {
		var snf *connectivity.ErrServiceNotFound
		switch {
		case errors.Is(err, registry.ErrMissingArgument):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &snf):
			writeError(w, http.StatusServiceUnavailable, "registry unavailable")
		case r.Context().Err() != nil:
			// Client went away.
		default:
			shield.GetLogger(r.Context()).Error("site: registry call", "service", service, "error", err)
			writeError(w, http.StatusInternalServerError, "registry error")
		}
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.callRegistry(w, r, "registry_search", registry.SearchRequest{Query: r.URL.Query().Get("q")})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	s.callRegistry(w, r, "registry_statistics", registry.StatisticsRequest{})
}

func (s *Server) handleTransfers(w http.ResponseWriter, r *http.Request) {
	s.callRegistry(w, r, "registry_transfers", registry.TransfersRequest{TokenID: chi.URLParam(r, "tokenID")})
}

// handleVerify checks ownership. The wallet address must have the 0x+40
// hex shape before the registry is asked.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	data, err := horosafe.LimitedReadAll(r.Body, maxAPIBody)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "body too large")
		return
	}
	var req registry.VerifyRequest
	if err := json.Unmarshal(data, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.WalletAddress = strings.TrimSpace(req.WalletAddress)
	if req.WalletAddress != "" && !formcheck.IsWalletAddress(req.WalletAddress) {
		writeError(w, http.StatusBadRequest, formcheck.MsgWallet)
		return
	}
	s.callRegistry(w, r, "registry_verify", req)
}

// handleUpdates relays registry updates to a websocket client until either
// side goes away.
func (s *Server) handleUpdates(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	logger := shield.GetLogger(r.Context())

	var wmu sync.Mutex
	sub, err := s.reg.SubscribeToUpdates(r.Context(), func(u registry.Update) {
		msg := []byte(u.Raw)
		if len(msg) == 0 {
			msg, _ = json.Marshal(u)
		}
		wmu.Lock()
		defer wmu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			logger.Debug("site: update write failed", "error", err)
		}
	})
	if err != nil {
		logger.Warn("site: subscribe failed", "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "updates unavailable"), deadline())
		return
	}
	defer sub.Close()

	// Reads only detect the client closing; client frames are discarded.
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				sub.Close()
				return
			}
		}
	}()
	<-sub.Done()
}

func deadline() time.Time { return time.Now().Add(time.Second) }
