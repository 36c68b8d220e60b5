package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"zkgm/balance"
	"zkgm/chains"
	"zkgm/channel"
	"zkgm/history"
	"zkgm/primitives"
	"zkgm/salt"
	"zkgm/ucs03"
)

// ChannelResolver finds the channel between two chains.
type ChannelResolver interface {
	Resolve(ctx context.Context, src, dst chains.UniversalChainID) (channel.Channel, error)
}

// History serves recorded submissions.
type History interface {
	Get(ctx context.Context, key string) (*history.Submission, error)
	ByAddress(ctx context.Context, address string, limit int) ([]history.Submission, error)
}

// Balances reads token balances on one chain. An empty token is the
// native token.
type Balances interface {
	CheckAll(ctx context.Context, account string, tokens [][]byte) ([]balance.Result, error)
}

var _ Balances = (*balance.Checker)(nil)

// StatusFunc looks up a transaction on one chain.
type StatusFunc func(ctx context.Context, hash string) (any, error)

// Server exposes the codec, salts, channel lookup and submission history
// over HTTP.
type Server struct {
	codec    ucs03.Codec
	channels ChannelResolver
	history  History
	status   map[chains.UniversalChainID]StatusFunc
	balances map[chains.UniversalChainID]Balances
	logger   log.FieldLogger
}

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Option adjusts a Server.
type Option func(*Server)

func WithChannels(r ChannelResolver) Option {
	return func(s *Server) { s.channels = r }
}

func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithStatus registers a transaction status lookup for chain.
func WithStatus(chain chains.UniversalChainID, fn StatusFunc) Option {
	return func(s *Server) { s.status[chain] = fn }
}

// WithBalances registers a balance reader for chain.
func WithBalances(chain chains.UniversalChainID, b Balances) Option {
	return func(s *Server) { s.balances[chain] = b }
}

func WithLogger(l log.FieldLogger) Option {
	return func(s *Server) { s.logger = l }
}

// New - endpoints whose collaborator is not configured answer 503.
func New(codec ucs03.Codec, opts ...Option) *Server {
	s := &Server{
		codec:  codec,
		status:   make(map[chains.UniversalChainID]StatusFunc),
		balances: make(map[chains.UniversalChainID]Balances),
		logger:   log.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.HandleFunc("POST /api/v1/instruction/encode", s.HandleEncodeInstruction)
	mux.HandleFunc("POST /api/v1/instruction/decode", s.HandleDecodeInstruction)
	mux.HandleFunc("POST /api/v1/packet/encode", s.HandleEncodePacket)
	mux.HandleFunc("POST /api/v1/packet/decode", s.HandleDecodePacket)
	mux.HandleFunc("GET /api/v1/salt", s.HandleSalt)
	mux.HandleFunc("GET /api/v1/channel", s.HandleChannel)
	mux.HandleFunc("GET /api/v1/transaction/status", s.HandleTransactionStatus)
	mux.HandleFunc("GET /api/v1/balance", s.HandleBalance)
	mux.HandleFunc("GET /api/v1/submissions", s.HandleSubmissions)
	mux.HandleFunc("GET /api/v1/submissions/{key}", s.HandleSubmission)
	return s.logRequests(mux)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.WithFields(log.Fields{"method": r.Method, "path": r.URL.Path}).Debug("request")
		next.ServeHTTP(w, r)
	})
}

// HandleEncodeInstruction - POST /api/v1/instruction/encode
func (s *Server) HandleEncodeInstruction(w http.ResponseWriter, r *http.Request) {
	var doc ucs03.Document
	if !decodeBody(w, r, &doc) {
		return
	}
	ins, err := s.codec.FromDocument(doc)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	raw, err := s.codec.EncodeRaw(ins)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	data, err := raw.Bytes()
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, InstructionResponse{
		Instruction: primitives.HexFromBytes(data),
		Version:     raw.Version,
		Opcode:      raw.Opcode,
	}, http.StatusOK)
}

// HandleDecodeInstruction - POST /api/v1/instruction/decode
func (s *Server) HandleDecodeInstruction(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ins, err := s.codec.Decode(req.Data.Bytes())
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, ucs03.ToDocument(ins), http.StatusOK)
}

// HandleEncodePacket - POST /api/v1/packet/encode
func (s *Server) HandleEncodePacket(w http.ResponseWriter, r *http.Request) {
	var req PacketRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ins, err := s.codec.FromDocument(req.Instruction)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var sl salt.Salt
	if req.Salt != "" {
		sl, err = salt.Parse(req.Salt.String())
	} else {
		var family chains.Family
		if family, err = chains.ParseFamily(req.Family); err == nil {
			sl, err = salt.Generate(family)
		}
	}
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	packet := ucs03.NewPacket(sl.Bytes32(), ins)
	if req.Path != "" {
		path, ok := new(big.Int).SetString(req.Path, 10)
		if !ok {
			respondError(w, "path must be a decimal integer", http.StatusBadRequest)
			return
		}
		packet.Path = path
	}
	data, err := s.codec.EncodePacket(packet)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, PacketResponse{
		Packet:       primitives.HexFromBytes(data),
		Salt:         primitives.HexFromBytes(packet.Salt[:]),
		Path:         packet.Path.String(),
		Instruction:  ucs03.ToDocument(ins),
		SaltVerified: true,
	}, http.StatusOK)
}

// HandleDecodePacket - POST /api/v1/packet/decode
func (s *Server) HandleDecodePacket(w http.ResponseWriter, r *http.Request) {
	var req DecodeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	packet, err := s.codec.DecodePacket(req.Data.Bytes())
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondJSON(w, PacketResponse{
		Salt:         primitives.HexFromBytes(packet.Salt[:]),
		Path:         packet.Path.String(),
		Instruction:  ucs03.ToDocument(packet.Instruction),
		SaltVerified: salt.VerifyBytes32(packet.Salt),
	}, http.StatusOK)
}

// HandleSalt - GET /api/v1/salt?family=evm
func (s *Server) HandleSalt(w http.ResponseWriter, r *http.Request) {
	family, err := chains.ParseFamily(r.URL.Query().Get("family"))
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	sl, err := salt.Generate(family)
	if err != nil {
		respondError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	b32 := sl.Bytes32()
	respondJSON(w, SaltResponse{
		Family:  string(family),
		Salt:    primitives.HexFromBytes(sl),
		Bytes32: primitives.HexFromBytes(b32[:]),
	}, http.StatusOK)
}

// HandleChannel - GET /api/v1/channel?source=xxx&destination=yyy
func (s *Server) HandleChannel(w http.ResponseWriter, r *http.Request) {
	if s.channels == nil {
		respondError(w, "channel registry not configured", http.StatusServiceUnavailable)
		return
	}
	src := r.URL.Query().Get("source")
	dst := r.URL.Query().Get("destination")
	if src == "" || dst == "" {
		respondError(w, "source and destination parameters required", http.StatusBadRequest)
		return
	}
	ch, err := s.channels.Resolve(r.Context(), chains.UniversalChainID(src), chains.UniversalChainID(dst))
	if err != nil {
		respondError(w, err.Error(), channelStatus(err))
		return
	}
	respondJSON(w, ch, http.StatusOK)
}

func channelStatus(err error) int {
	switch {
	case errors.Is(err, channel.ErrSourceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, channel.ErrAmbiguousChannel), errors.Is(err, channel.ErrMissingLeg):
		return http.StatusConflict
	case errors.Is(err, channel.ErrNoChannel):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// HandleTransactionStatus - GET /api/v1/transaction/status?chain=xxx&hash=yyy
func (s *Server) HandleTransactionStatus(w http.ResponseWriter, r *http.Request) {
	chain := chains.UniversalChainID(r.URL.Query().Get("chain"))
	hash := r.URL.Query().Get("hash")
	if chain == "" || hash == "" {
		respondError(w, "chain and hash parameters required", http.StatusBadRequest)
		return
	}
	fn, ok := s.status[chain]
	if !ok {
		respondError(w, "no status provider for chain "+string(chain), http.StatusNotFound)
		return
	}
	result, err := fn(r.Context(), hash)
	if err != nil {
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	respondJSON(w, result, http.StatusOK)
}

// HandleBalance - GET /api/v1/balance?chain=xxx&address=yyy&token=zzz
// token may repeat; without it the native balance is returned.
func (s *Server) HandleBalance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	chain := chains.UniversalChainID(q.Get("chain"))
	address := q.Get("address")
	if chain == "" || address == "" {
		respondError(w, "chain and address parameters required", http.StatusBadRequest)
		return
	}
	b, ok := s.balances[chain]
	if !ok {
		respondError(w, "no balance provider for chain "+string(chain), http.StatusNotFound)
		return
	}
	tokens := [][]byte{nil}
	if raw := q["token"]; len(raw) > 0 {
		tokens = make([][]byte, len(raw))
		for i, t := range raw {
			h, err := primitives.ParseHex(t)
			if err != nil {
				respondError(w, "token: "+err.Error(), http.StatusBadRequest)
				return
			}
			tokens[i] = h.Bytes()
		}
	}
	results, err := b.CheckAll(r.Context(), address, tokens)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, balance.ErrBalanceQuery) {
			status = http.StatusBadGateway
		}
		respondError(w, err.Error(), status)
		return
	}
	out := make([]BalanceResponse, len(results))
	for i, res := range results {
		out[i] = BalanceResponse{Token: primitives.HexFromBytes(res.Token), Amount: res.Amount.String()}
	}
	respondJSON(w, out, http.StatusOK)
}

// HandleSubmissions - GET /api/v1/submissions?address=xxx&limit=10
func (s *Server) HandleSubmissions(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, history.ErrNoDatabase.Error(), http.StatusServiceUnavailable)
		return
	}
	address := r.URL.Query().Get("address")
	if address == "" {
		respondError(w, "address parameter required", http.StatusBadRequest)
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			respondError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 100)
	}
	rows, err := s.history.ByAddress(r.Context(), address, limit)
	if err != nil {
		respondError(w, err.Error(), historyStatus(err))
		return
	}
	if rows == nil {
		rows = []history.Submission{}
	}
	respondJSON(w, rows, http.StatusOK)
}

// HandleSubmission - GET /api/v1/submissions/{key}
func (s *Server) HandleSubmission(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondError(w, history.ErrNoDatabase.Error(), http.StatusServiceUnavailable)
		return
	}
	row, err := s.history.Get(r.Context(), r.PathValue("key"))
	if err != nil {
		respondError(w, err.Error(), historyStatus(err))
		return
	}
	respondJSON(w, row, http.StatusOK)
}

func historyStatus(err error) int {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, history.ErrNoDatabase):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// Helper functions
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		respondError(w, "Invalid request body: "+err.Error(), status)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	}, status)
}
