package rpcapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/photon-chain/node/chainmgr"
	"github.com/photon-chain/node/chainparams"
	"github.com/photon-chain/node/keystore"
	"github.com/photon-chain/node/mempool"
	"github.com/photon-chain/node/store"
)

// maxBodySize bounds a single JSON-RPC or REST request body.
const maxBodySize = 1 << 20

// Server is the node's external interface: a JSON-RPC 2.0 endpoint at
// /rpc and a REST bridge under /api/v1, both backed by the same chain
// manager, mempool, and store.
type Server struct {
	addr   string
	mgr    *chainmgr.Manager
	db     *store.DB
	pool   *mempool.Pool
	params chainparams.Params
	logger zerolog.Logger

	keys        *keystore.Store
	anchorKeyID string

	httpServer *http.Server
	ln         net.Listener
}

// New constructs a Server. Proof anchoring stays disabled until
// SetAnchorSigner is called with a keystore and a key id to sign with.
func New(addr string, mgr *chainmgr.Manager, db *store.DB, pool *mempool.Pool, params chainparams.Params, logger zerolog.Logger) *Server {
	s := &Server{
		addr:   addr,
		mgr:    mgr,
		db:     db,
		pool:   pool,
		params: params,
		logger: logger.With().Str("component", "rpc").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/rpc", s.handleRPC).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/balance/{addr}", s.restBalance).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/transaction/send", s.restTransactionSend).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/transactions/{addr}", s.restTransactionsByAddress).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/proof/anchor", s.restProofAnchor).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/proof/verify", s.restProofVerify).Methods(http.MethodPost)

	s.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// SetAnchorSigner enables proof anchoring: submitted anchors are signed by
// keyID from ks. Leaving this unset causes /api/v1/proof/anchor to report
// Unavailable, since the node has no key to author anchor transactions with.
func (s *Server) SetAnchorSigner(ks *keystore.Store, keyID string) {
	s.keys = ks
	s.anchorKeyID = keyID
}

// Start binds the listener and begins serving in a background goroutine,
// returning once the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("rpcapi: listen: %w", err)
	}
	s.ln = ln
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("rpc server stopped")
		}
	}()
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("rpc listening")
	return nil
}

// Addr returns the bound listener address, useful when addr was ":0".
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		writeRPCError(w, nil, codeInternalError, "failed to read request body")
		return
	}
	if len(body) > maxBodySize {
		writeRPCError(w, nil, codeInvalidRequest, "request body too large")
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, nil, codeParseError, "invalid JSON")
		return
	}
	if req.JSONRPC != "2.0" {
		writeRPCError(w, req.ID, codeInvalidRequest, `jsonrpc must be "2.0"`)
		return
	}

	result, apiErr := s.dispatch(&req)
	if apiErr != nil {
		writeJSON(w, Response{JSONRPC: "2.0", ID: req.ID, Error: &Error{
			Code: apiErr.jsonRPCCode(), Message: apiErr.Error(),
		}})
		return
	}
	writeJSON(w, Response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

// dispatch routes one JSON-RPC request to its handler.
func (s *Server) dispatch(req *Request) (interface{}, *apiError) {
	switch req.Method {
	case "chain_getInfo":
		return s.handleChainGetInfo()
	case "chain_getBlockHeight":
		return s.handleChainGetBlockHeight()
	case "chain_getBlockByHeight":
		return s.handleChainGetBlockByHeight(req)
	case "chain_getBlockByHash":
		return s.handleChainGetBlockByHash(req)
	case "chain_getTransaction":
		return s.handleChainGetTransaction(req)
	case "chain_submitTransaction":
		return s.handleChainSubmitTransaction(req)
	case "chain_getBalance":
		return s.handleChainGetBalance(req)
	case "chain_getUtxos":
		return s.handleChainGetUtxos(req)
	default:
		return nil, &apiError{Code: CodeInvalid, Reason: "unknown method " + req.Method}
	}
}

func writeJSON(w http.ResponseWriter, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func writeRPCError(w http.ResponseWriter, id interface{}, code int, message string) {
	writeJSON(w, Response{JSONRPC: "2.0", ID: id, Error: &Error{Code: code, Message: message}})
}

// parseParams decodes req.Params into target, reporting Invalid on
// anything that doesn't round-trip through JSON into target's shape.
func parseParams(req *Request, target interface{}) *apiError {
	if req.Params == nil {
		return errInvalid("params required")
	}
	data, err := json.Marshal(req.Params)
	if err != nil {
		return errInvalid("params not encodable")
	}
	if err := json.Unmarshal(data, target); err != nil {
		return errInvalid(fmt.Sprintf("invalid params: %v", err))
	}
	return nil
}
