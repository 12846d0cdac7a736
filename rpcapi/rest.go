package rpcapi

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/photon-chain/node/consensus"
	"github.com/photon-chain/node/pqcrypto"
)

const defaultTxListLimit = 50

// restEnvelope is the REST bridge's uniform failure body; success bodies
// are whatever the handler returns directly.
type restEnvelope struct {
	Code   Code   `json:"code"`
	Reason string `json:"reason"`
}

func writeRESTJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeRESTError(w http.ResponseWriter, apiErr *apiError) {
	writeRESTJSON(w, apiErr.httpStatus(), restEnvelope{Code: apiErr.Code, Reason: apiErr.Reason})
}

func readRESTBody(r *http.Request, target interface{}) *apiError {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return errInternal("failed to read request body")
	}
	if len(body) > maxBodySize {
		return errInvalid("request body too large")
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errInvalid("invalid JSON: " + err.Error())
	}
	return nil
}

func (s *Server) restBalance(w http.ResponseWriter, r *http.Request) {
	result, apiErr := s.balanceFor(mux.Vars(r)["addr"])
	if apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	writeRESTJSON(w, http.StatusOK, result)
}

func (s *Server) restTransactionSend(w http.ResponseWriter, r *http.Request) {
	var dto TxDTO
	if apiErr := readRESTBody(r, &dto); apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	result, apiErr := s.submitTx(dto)
	if apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	writeRESTJSON(w, http.StatusOK, result)
}

// TxHistoryResult is returned by /api/v1/transactions/:addr.
type TxHistoryResult struct {
	Address      string  `json:"address"`
	Transactions []TxDTO `json:"transactions"`
}

func (s *Server) restTransactionsByAddress(w http.ResponseWriter, r *http.Request) {
	addrHex := mux.Vars(r)["addr"]
	addr, err := parseAddress(addrHex)
	if err != nil {
		writeRESTError(w, errInvalid("addr: "+err.Error()))
		return
	}

	limit := defaultTxListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeRESTError(w, errInvalid("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	offset := 0
	if raw := r.URL.Query().Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeRESTError(w, errInvalid("offset must be a non-negative integer"))
			return
		}
		offset = n
	}

	txs, apiErr := s.transactionsForAddress(addr, limit, offset)
	if apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	writeRESTJSON(w, http.StatusOK, TxHistoryResult{Address: addrHex, Transactions: txs})
}

// transactionsForAddress walks the main chain from the tip backward, most
// recent first, collecting every transaction that either pays an output
// to addr or is signed by a witness whose key hashes to addr. Like
// chain_getTransaction's mempool-miss path, the store keeps no per-address
// index, so the walk is bounded to the last txScanDepth blocks.
func (s *Server) transactionsForAddress(addr [32]byte, limit, offset int) ([]TxDTO, *apiError) {
	var matches []TxDTO
	best := s.mgr.BestHeight()
	minHeight := uint64(0)
	if best > txScanDepth {
		minHeight = best - txScanDepth
	}
	needed := offset + limit
	for h := best; ; h-- {
		hash, ok, err := s.db.GetHashAtHeight(h)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		if ok {
			raw, ok, err := s.db.GetBlockBody(hash)
			if err != nil {
				return nil, errInternal(err.Error())
			}
			if ok {
				block, err := consensus.ParseBlockBytes(raw)
				if err != nil {
					return nil, errInternal("corrupt block body: " + err.Error())
				}
				for i := len(block.Txs) - 1; i >= 0; i-- {
					tx := block.Txs[i]
					if txTouchesAddress(tx, addr) {
						dto := NewTxDTO(tx)
						dto.Confirmed = true
						dto.Height = h
						matches = append(matches, dto)
						if needed > 0 && len(matches) >= needed {
							goto done
						}
					}
				}
			}
		}
		if h == minHeight {
			break
		}
	}
done:
	if offset >= len(matches) {
		return []TxDTO{}, nil
	}
	end := offset + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[offset:end], nil
}

func txTouchesAddress(tx consensus.Transaction, addr [32]byte) bool {
	for _, out := range tx.Outputs {
		if owner, ok := ownerAddress(consensus.UtxoEntry{CovenantType: out.CovenantType, CovenantData: out.CovenantData}); ok && owner == addr {
			return true
		}
	}
	for _, w := range tx.Witnesses {
		if witnessAddress(w) == addr {
			return true
		}
	}
	return false
}

// witnessAddress mirrors consensus's unexported keyIDFromWitness: the
// address a witness authorizes against.
func witnessAddress(w consensus.PqSig) [32]byte {
	if w.Algorithm == consensus.SigHybrid {
		return pqcrypto.SHA3256(append(append([]byte{}, w.PublicKey...), w.HybridPublicKey...))
	}
	return pqcrypto.SHA3256(w.PublicKey)
}

// anchorAuxPrefixLen is the fixed prefix of a ProofAnchor output's CovenantData:
// one proof-type byte followed by the 32-byte proof hash. Any bytes after
// that are the identity id, stored as raw UTF-8 since it is the last field
// and needs no length prefix.
const anchorAuxPrefixLen = 1 + 32

func packAnchorAux(identityID string, proofType uint8, proofHash [32]byte) []byte {
	out := make([]byte, 0, anchorAuxPrefixLen+len(identityID))
	out = append(out, proofType)
	out = append(out, proofHash[:]...)
	out = append(out, []byte(identityID)...)
	return out
}

func parseAnchorAux(aux []byte) (identityID string, proofType uint8, proofHash [32]byte, err error) {
	if len(aux) < anchorAuxPrefixLen {
		return "", 0, proofHash, fmt.Errorf("anchor aux shorter than proof_type+proof_hash")
	}
	proofType = aux[0]
	copy(proofHash[:], aux[1:33])
	identityID = string(aux[33:])
	return identityID, proofType, proofHash, nil
}

// ProofAnchorParam is the shared request shape for proof/anchor.
type ProofAnchorParam struct {
	IdentityID string `json:"identity_id"`
	ProofType  uint8  `json:"proof_type"`
	ProofHash  string `json:"proof_hash"`
}

// ProofAnchorResult is returned by proof/anchor.
type ProofAnchorResult struct {
	Txid string `json:"txid"`
}

func (s *Server) restProofAnchor(w http.ResponseWriter, r *http.Request) {
	var p ProofAnchorParam
	if apiErr := readRESTBody(r, &p); apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	result, apiErr := s.anchorProof(p)
	if apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	writeRESTJSON(w, http.StatusOK, result)
}

// anchorProof composes and submits a single-input, two-output transaction:
// one zero-value ProofAnchor output carrying the tuple, and one P2PKH
// change output returning the spent UTXO's full value to the anchor key so
// anchoring costs no fee. It funds itself from whatever P2PKH UTXO the
// configured anchor key currently owns; the caller is responsible for
// keeping that key funded.
func (s *Server) anchorProof(p ProofAnchorParam) (interface{}, *apiError) {
	if s.keys == nil || s.anchorKeyID == "" {
		return nil, errUnavailable("proof anchoring has no configured signing key")
	}
	proofHashBytes, err := hex.DecodeString(p.ProofHash)
	if err != nil || len(proofHashBytes) != 32 {
		return nil, errInvalid("proof_hash must be 32 bytes of hex")
	}
	var proofHash [32]byte
	copy(proofHash[:], proofHashBytes)

	pub, err := s.keys.PublicKey(s.anchorKeyID)
	if err != nil {
		return nil, errInternal("anchor key: " + err.Error())
	}
	alg, err := s.keys.Algorithm(s.anchorKeyID)
	if err != nil {
		return nil, errInternal("anchor key: " + err.Error())
	}
	anchorAddr := pqcrypto.SHA3256(pub)

	var fundingOp consensus.Outpoint
	var fundingEntry consensus.UtxoEntry
	found := false
	scanErr := s.db.ScanUTXOs(func(op consensus.Outpoint, e consensus.UtxoEntry) bool {
		if owner, ok := ownerAddress(e); ok && owner == anchorAddr {
			fundingOp, fundingEntry = op, e
			found = true
			return false
		}
		return true
	})
	if scanErr != nil {
		return nil, errInternal(scanErr.Error())
	}
	if !found {
		return nil, errUnavailable("no funding utxo available for the anchor key")
	}

	tx := consensus.Transaction{
		Version:  1,
		TxKind:   consensus.TxKindStandard,
		Locktime: 0,
		Inputs: []consensus.TxIn{
			{PrevOut: fundingOp, Sequence: 0xffffffff},
		},
		Outputs: []consensus.TxOut{
			{Value: 0, CovenantType: consensus.CovProofAnchor, CovenantData: packAnchorAux(p.IdentityID, p.ProofType, proofHash)},
			{Value: fundingEntry.Value, CovenantType: consensus.CovP2PKH, CovenantData: append([]byte{}, anchorAddr[:]...)},
		},
	}
	digest := consensus.SighashDigest(s.params.NetworkID, tx, 0, fundingEntry.Value)
	sig, err := s.keys.Sign(s.anchorKeyID, digest[:])
	if err != nil {
		return nil, errInternal("sign anchor tx: " + err.Error())
	}
	tx.Witnesses = []consensus.PqSig{{Algorithm: uint8(alg), PublicKey: pub, Signature: sig}}

	now := uint64(time.Now().Unix())
	if err := s.mgr.SubmitMempoolTx(s.pool, tx, now); err != nil {
		return nil, errRejected(err.Error())
	}
	return ProofAnchorResult{Txid: hashHex(consensus.TxID(tx))}, nil
}

// ProofVerifyParam is the request shape for proof/verify.
type ProofVerifyParam struct {
	IdentityID string `json:"identity_id"`
	ProofType  uint8  `json:"proof_type"`
	ProofHash  string `json:"proof_hash"`
}

// ProofVerifyResult is returned by proof/verify. Anchored is false, not an
// error, when no matching anchor is found within the scan window.
type ProofVerifyResult struct {
	Anchored bool   `json:"anchored"`
	Txid     string `json:"txid,omitempty"`
	Height   uint64 `json:"height,omitempty"`
}

func (s *Server) restProofVerify(w http.ResponseWriter, r *http.Request) {
	var p ProofVerifyParam
	if apiErr := readRESTBody(r, &p); apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	result, apiErr := s.verifyProof(p)
	if apiErr != nil {
		writeRESTError(w, apiErr)
		return
	}
	writeRESTJSON(w, http.StatusOK, result)
}

func (s *Server) verifyProof(p ProofVerifyParam) (interface{}, *apiError) {
	proofHashBytes, err := hex.DecodeString(p.ProofHash)
	if err != nil || len(proofHashBytes) != 32 {
		return nil, errInvalid("proof_hash must be 32 bytes of hex")
	}
	var wantHash [32]byte
	copy(wantHash[:], proofHashBytes)

	best := s.mgr.BestHeight()
	minHeight := uint64(0)
	if best > txScanDepth {
		minHeight = best - txScanDepth
	}
	for h := best; ; h-- {
		hash, ok, err := s.db.GetHashAtHeight(h)
		if err != nil {
			return nil, errInternal(err.Error())
		}
		if ok {
			raw, ok, err := s.db.GetBlockBody(hash)
			if err != nil {
				return nil, errInternal(err.Error())
			}
			if ok {
				block, err := consensus.ParseBlockBytes(raw)
				if err != nil {
					return nil, errInternal("corrupt block body: " + err.Error())
				}
				for _, tx := range block.Txs {
					for _, out := range tx.Outputs {
						if out.CovenantType != consensus.CovProofAnchor {
							continue
						}
						identityID, proofType, proofHash, err := parseAnchorAux(out.CovenantData)
						if err != nil {
							continue
						}
						if identityID == p.IdentityID && proofType == p.ProofType && proofHash == wantHash {
							return ProofVerifyResult{Anchored: true, Txid: hashHex(consensus.TxID(tx)), Height: h}, nil
						}
					}
				}
			}
		}
		if h == minHeight {
			break
		}
	}
	return ProofVerifyResult{Anchored: false}, nil
}
